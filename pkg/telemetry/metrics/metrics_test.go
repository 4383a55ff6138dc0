package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/TaIos/mod-tls/pkg/config"
)

func testCollector() *Collector {
	return NewCollector(config.MetricsConfig{Enabled: true, Namespace: "test"}, prometheus.NewRegistry())
}

func TestRecordHandshake(t *testing.T) {
	c := testCollector()

	c.RecordHandshake("a.example.org", ResultCompleted, 5*time.Millisecond)
	c.RecordHandshake("a.example.org", ResultCompleted, 7*time.Millisecond)
	c.RecordHandshake("a.example.org", ResultFailed, 0)

	completed := testutil.ToFloat64(c.handshakesTotal.WithLabelValues("a.example.org", ResultCompleted))
	if completed != 2 {
		t.Errorf("completed handshakes = %v, want 2", completed)
	}
	failed := testutil.ToFloat64(c.handshakesTotal.WithLabelValues("a.example.org", ResultFailed))
	if failed != 1 {
		t.Errorf("failed handshakes = %v, want 1", failed)
	}
}

func TestActiveConnectionsGauge(t *testing.T) {
	c := testCollector()

	c.ConnOpened()
	c.ConnOpened()
	c.ConnClosed()

	if got := testutil.ToFloat64(c.activeConnections); got != 1 {
		t.Errorf("active connections = %v, want 1", got)
	}
}

func TestGateDecisions(t *testing.T) {
	c := testCollector()

	c.RecordGateDecision("allowed")
	c.RecordGateDecision("allowed")
	c.RecordGateDecision("misdirected")

	if got := testutil.ToFloat64(c.gateDecisions.WithLabelValues("allowed")); got != 2 {
		t.Errorf("allowed decisions = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.gateDecisions.WithLabelValues("misdirected")); got != 1 {
		t.Errorf("misdirected decisions = %v, want 1", got)
	}
}

func TestDisabledCollectorIsInert(t *testing.T) {
	c := NewCollector(config.MetricsConfig{Enabled: false}, prometheus.NewRegistry())

	c.RecordHandshake("a.example.org", ResultCompleted, time.Millisecond)
	c.ConnOpened()
	c.RecordGateDecision("allowed")

	if got := testutil.ToFloat64(c.activeConnections); got != 0 {
		t.Errorf("disabled collector recorded a connection, gauge = %v", got)
	}

	// nil collectors are safe at every call site
	var nilC *Collector
	nilC.RecordHandshake("a.example.org", ResultCompleted, time.Millisecond)
	nilC.ConnOpened()
	nilC.ConnClosed()
	nilC.RecordGateDecision("allowed")
	nilC.RecordSessionCacheOp("get", "hit")
	nilC.RecordOCSPRefresh("ok")
}
