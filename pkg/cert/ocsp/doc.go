// Package ocsp caches OCSP stapling responses for certified keys.
//
// When the certificate selection callback picks a key that has a cached
// response, the key is cloned with the response attached; the clone is
// connection-owned and the shared registry key stays untouched.
//
// Two cache backends exist:
//
//   - MemoryCache: in-process map, re-primed at startup
//   - SQLiteCache: file-backed, survives restarts
//
// The Refresher primes the cache for all registered keys at startup and
// re-fetches responses on a cron schedule before they expire. Fetching
// the response from the responder is delegated to a Fetcher
// collaborator; this package performs no network I/O itself.
package ocsp
