// Package cert manages certified keys for the TLS negotiation core.
//
// The Registry deduplicates certificate loading: identical cert/key
// specifications load once per process and are shared by reference
// across all virtual hosts that use them. Verifiers caches client
// certificate trust anchor pools by file path. Both are filled during
// the single-threaded startup phase and are read-only afterwards.
//
// FallbackSpec generates self-signed certificates for vhosts that have
// no certificates at all, letting them start up in service-unavailable
// mode while real certificates are being provisioned.
//
// The Watcher (fsnotify) reports post-startup changes to certificate
// files; compiled contexts are immutable, so the change takes effect
// only after a restart.
//
// The ocsp subpackage caches stapling responses.
package cert
