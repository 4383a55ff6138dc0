package ocsp

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/TaIos/mod-tls/pkg/config"
	"github.com/TaIos/mod-tls/pkg/engine"
	"github.com/TaIos/mod-tls/pkg/telemetry/metrics"
)

type failFetcher struct {
	err error
}

func (f failFetcher) Fetch(ctx context.Context, key *engine.CertifiedKey) ([]byte, error) {
	return nil, f.err
}

func refreshCount(t *testing.T, c *metrics.Collector, outcome string) float64 {
	t.Helper()
	families, err := c.Registry().Gather()
	if err != nil {
		t.Fatalf("gathering metrics: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != "modtls_ocsp_refreshes_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "outcome" && l.GetValue() == outcome {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func TestPrimeRecordsRefreshOutcomes(t *testing.T) {
	collector := metrics.NewCollector(config.MetricsConfig{Enabled: true, Namespace: "modtls"}, nil)
	cache := NewMemoryCache()

	if err := cache.Put(&Response{
		KeyID:       "fresh",
		DER:         []byte{1},
		NextUpdate:  time.Now().Add(time.Hour),
		RetrievedAt: time.Now(),
	}); err != nil {
		t.Fatal(err)
	}

	keys := []*engine.CertifiedKey{
		{ID: "fresh"},
		{ID: "missing"},
	}
	r := NewRefresher(cache, failFetcher{errors.New("responder down")}, keys, nil, collector)
	r.Prime(context.Background())

	if got := refreshCount(t, collector, "skipped"); got != 1 {
		t.Errorf("skipped refreshes = %v, want 1", got)
	}
	if got := refreshCount(t, collector, "error"); got != 1 {
		t.Errorf("failed refreshes = %v, want 1", got)
	}
	if got := refreshCount(t, collector, "ok"); got != 0 {
		t.Errorf("successful refreshes = %v, want 0", got)
	}
}

func TestRefresherWorksWithoutCollector(t *testing.T) {
	cache := NewMemoryCache()
	r := NewRefresher(cache, failFetcher{errors.New("responder down")}, []*engine.CertifiedKey{{ID: "k"}}, nil, nil)
	r.Prime(context.Background())
}
