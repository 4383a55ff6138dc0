// Package config loads and validates the YAML configuration for the
// TLS negotiation core: listeners, per-virtual-host policies, cache
// backends, logging and metrics.
//
// Configuration is loaded once at startup and is read-only afterwards.
// Environment variables of the form MODTLS_SECTION_FIELD override file
// values (see LoadConfigWithEnvOverrides).
//
// Validation here covers everything decidable from the file alone;
// engine-dependent checks such as protocol floor support and
// certificate loading happen in the policy compiler during startup.
package config
