// Package policy compiles per-virtual-host TLS policies and holds the
// process-wide registry built at startup.
//
// Initialize runs the single-threaded startup phase: it builds the
// capability table from the engine, decides which vhosts are enabled by
// the configured listeners, loads certificates through the deduplicated
// registry, resolves client-auth verifiers, orders cipher suites,
// enforces protocol floors, and finalizes one immutable engine context
// per enabled vhost. Any failure aborts the entire startup.
//
// Everything the Registry holds is read-only after Initialize and safe
// for unsynchronized concurrent reads from many connections; the
// session and OCSP caches are independently synchronized collaborators.
package policy
