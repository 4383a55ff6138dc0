// Package telemetry groups the observability surface of the handshake
// server: structured logging (telemetry/logging), Prometheus metrics
// (telemetry/metrics), and liveness/readiness probes (telemetry/health).
package telemetry
