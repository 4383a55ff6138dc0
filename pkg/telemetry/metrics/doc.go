// Package metrics collects Prometheus metrics for the TLS core:
// handshake counts and durations, active connections, request admission
// gate decisions, session cache traffic, and OCSP refresh outcomes.
//
// All Record* methods are safe on a nil *Collector and are no-ops when
// metric collection is disabled, so call sites never need to guard.
package metrics
