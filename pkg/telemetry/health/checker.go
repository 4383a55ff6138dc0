package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// Probe reports whether one component of the server is usable. A nil
// return means healthy.
type Probe func(ctx context.Context) error

// Result is the outcome of a single probe.
type Result struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// Report aggregates probe results for the readiness endpoint.
type Report struct {
	Status    string            `json:"status"`
	Probes    map[string]Result `json:"probes,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

const (
	statusOK       = "ok"
	statusDegraded = "degraded"
)

// Checker runs registered probes and serves liveness and readiness
// handlers. Probes are bounded by a per-probe timeout.
type Checker struct {
	mu      sync.RWMutex
	probes  map[string]Probe
	timeout time.Duration
}

// NewChecker returns a Checker with the given per-probe timeout.
// A zero timeout defaults to 5 seconds.
func NewChecker(timeout time.Duration) *Checker {
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	return &Checker{
		probes:  make(map[string]Probe),
		timeout: timeout,
	}
}

// Register adds or replaces a named probe.
func (c *Checker) Register(name string, p Probe) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.probes[name] = p
}

// Readiness runs all probes and aggregates their results. The report
// is degraded when any probe fails.
func (c *Checker) Readiness(ctx context.Context) Report {
	c.mu.RLock()
	probes := make(map[string]Probe, len(c.probes))
	for name, p := range c.probes {
		probes[name] = p
	}
	c.mu.RUnlock()

	report := Report{
		Status:    statusOK,
		Probes:    make(map[string]Result, len(probes)),
		Timestamp: time.Now(),
	}
	for name, p := range probes {
		probeCtx, cancel := context.WithTimeout(ctx, c.timeout)
		err := p(probeCtx)
		cancel()
		if err != nil {
			report.Status = statusDegraded
			report.Probes[name] = Result{Status: statusDegraded, Message: err.Error()}
			continue
		}
		report.Probes[name] = Result{Status: statusOK}
	}
	return report
}

// LivenessHandler answers that the process is running. It never runs
// probes.
func (c *Checker) LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, Report{Status: statusOK, Timestamp: time.Now()})
	}
}

// ReadinessHandler runs all probes and returns 503 when any fails.
func (c *Checker) ReadinessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report := c.Readiness(r.Context())
		code := http.StatusOK
		if report.Status != statusOK {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, report)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
