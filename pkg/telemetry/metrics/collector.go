package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/TaIos/mod-tls/pkg/config"
)

// Collector owns every Prometheus metric of the TLS core. Metric
// instances are pre-allocated at construction; recording is a label
// lookup plus an atomic update.
type Collector struct {
	config   config.MetricsConfig
	registry *prometheus.Registry

	handshakesTotal   *prometheus.CounterVec
	handshakeDuration *prometheus.HistogramVec
	activeConnections prometheus.Gauge
	gateDecisions     *prometheus.CounterVec
	sessionCacheOps   *prometheus.CounterVec
	ocspRefreshes     *prometheus.CounterVec
}

// Handshake result labels.
const (
	ResultCompleted = "completed"
	ResultFailed    = "failed"
	ResultRouting   = "routing_error"
)

// NewCollector creates the collector and registers every metric with
// the given registry. A nil registry gets a fresh private one.
func NewCollector(cfg config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	ns := cfg.Namespace
	if ns == "" {
		ns = config.DefaultMetricsNamespace
	}

	c := &Collector{
		config:   cfg,
		registry: registry,

		handshakesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "handshakes_total",
			Help:      "TLS handshakes by resolved server and result.",
		}, []string{"server", "result"}),

		handshakeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "handshake_duration_seconds",
			Help:      "Wall time from first client byte to handshake completion.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"server"}),

		activeConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: ns,
			Name:      "active_connections",
			Help:      "Connections currently in an active TLS state.",
		}),

		gateDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "gate_decisions_total",
			Help:      "Request admission gate decisions by outcome.",
		}, []string{"decision"}),

		sessionCacheOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "session_cache_operations_total",
			Help:      "Session cache operations by kind and outcome.",
		}, []string{"op", "outcome"}),

		ocspRefreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "ocsp_refreshes_total",
			Help:      "OCSP response refresh attempts by outcome.",
		}, []string{"outcome"}),
	}

	registry.MustRegister(
		c.handshakesTotal,
		c.handshakeDuration,
		c.activeConnections,
		c.gateDecisions,
		c.sessionCacheOps,
		c.ocspRefreshes,
	)
	return c
}

// Registry returns the Prometheus registry the metrics live in.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// RecordHandshake records a finished handshake attempt.
func (c *Collector) RecordHandshake(server, result string, duration time.Duration) {
	if c == nil || !c.config.Enabled {
		return
	}
	c.handshakesTotal.WithLabelValues(server, result).Inc()
	if result == ResultCompleted {
		c.handshakeDuration.WithLabelValues(server).Observe(duration.Seconds())
	}
}

// ConnOpened bumps the active connection gauge.
func (c *Collector) ConnOpened() {
	if c == nil || !c.config.Enabled {
		return
	}
	c.activeConnections.Inc()
}

// ConnClosed drops the active connection gauge.
func (c *Collector) ConnClosed() {
	if c == nil || !c.config.Enabled {
		return
	}
	c.activeConnections.Dec()
}

// RecordGateDecision records a request admission outcome, e.g.
// "allowed", "declined", "unavailable", "forbidden", "misdirected".
func (c *Collector) RecordGateDecision(decision string) {
	if c == nil || !c.config.Enabled {
		return
	}
	c.gateDecisions.WithLabelValues(decision).Inc()
}

// RecordSessionCacheOp records a session cache access, op in
// {"get", "put", "remove"}, outcome in {"hit", "miss", "ok", "error"}.
func (c *Collector) RecordSessionCacheOp(op, outcome string) {
	if c == nil || !c.config.Enabled {
		return
	}
	c.sessionCacheOps.WithLabelValues(op, outcome).Inc()
}

// RecordOCSPRefresh records one refresh attempt, outcome in
// {"ok", "error", "skipped"}.
func (c *Collector) RecordOCSPRefresh(outcome string) {
	if c == nil || !c.config.Enabled {
		return
	}
	c.ocspRefreshes.WithLabelValues(outcome).Inc()
}
