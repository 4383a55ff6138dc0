// Package health exposes liveness and readiness probes for the
// handshake server. Probes are registered per component (certificate
// registry, session cache) and served alongside the metrics endpoint.
package health
