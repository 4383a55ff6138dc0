package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestReadinessAggregatesProbes(t *testing.T) {
	c := NewChecker(time.Second)
	c.Register("registry", func(ctx context.Context) error { return nil })
	c.Register("cache", func(ctx context.Context) error { return nil })

	report := c.Readiness(context.Background())
	if report.Status != "ok" {
		t.Fatalf("status = %q, want ok", report.Status)
	}
	if len(report.Probes) != 2 {
		t.Fatalf("probes = %d, want 2", len(report.Probes))
	}
}

func TestReadinessDegradedOnFailure(t *testing.T) {
	c := NewChecker(time.Second)
	c.Register("registry", func(ctx context.Context) error { return nil })
	c.Register("cache", func(ctx context.Context) error { return errors.New("cache unreachable") })

	report := c.Readiness(context.Background())
	if report.Status != "degraded" {
		t.Fatalf("status = %q, want degraded", report.Status)
	}
	if report.Probes["cache"].Message != "cache unreachable" {
		t.Fatalf("cache message = %q", report.Probes["cache"].Message)
	}
	if report.Probes["registry"].Status != "ok" {
		t.Fatalf("registry status = %q, want ok", report.Probes["registry"].Status)
	}
}

func TestReadinessHandlerStatusCodes(t *testing.T) {
	tests := []struct {
		name     string
		probeErr error
		wantCode int
	}{
		{"healthy", nil, http.StatusOK},
		{"failing", errors.New("down"), http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewChecker(time.Second)
			c.Register("component", func(ctx context.Context) error { return tt.probeErr })

			rec := httptest.NewRecorder()
			c.ReadinessHandler()(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
			if rec.Code != tt.wantCode {
				t.Fatalf("code = %d, want %d", rec.Code, tt.wantCode)
			}
			var report Report
			if err := json.Unmarshal(rec.Body.Bytes(), &report); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if _, ok := report.Probes["component"]; !ok {
				t.Fatal("probe result missing from report")
			}
		})
	}
}

func TestLivenessHandlerIgnoresProbes(t *testing.T) {
	c := NewChecker(time.Second)
	c.Register("component", func(ctx context.Context) error { return errors.New("down") })

	rec := httptest.NewRecorder()
	c.LivenessHandler()(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d, want 200", rec.Code)
	}
}

func TestProbeTimeout(t *testing.T) {
	c := NewChecker(10 * time.Millisecond)
	c.Register("slow", func(ctx context.Context) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Second):
			return nil
		}
	})

	report := c.Readiness(context.Background())
	if report.Status != "degraded" {
		t.Fatalf("status = %q, want degraded", report.Status)
	}
}
