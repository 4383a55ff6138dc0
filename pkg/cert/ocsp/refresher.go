package ocsp

import (
	"context"
	"crypto/x509"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	stdocsp "golang.org/x/crypto/ocsp"

	"github.com/TaIos/mod-tls/pkg/engine"
	"github.com/TaIos/mod-tls/pkg/telemetry/logging"
	"github.com/TaIos/mod-tls/pkg/telemetry/metrics"
)

// Fetcher obtains a DER-encoded OCSP response for a certified key from
// the responder named in the certificate. It is a collaborator; this
// package performs no network I/O of its own.
type Fetcher interface {
	Fetch(ctx context.Context, key *engine.CertifiedKey) ([]byte, error)
}

// Refresher keeps cached OCSP responses fresh. Prime fetches responses
// for all registered keys at startup; the cron schedule re-fetches
// responses that expire before the next run.
type Refresher struct {
	cache   Cache
	fetcher Fetcher
	keys    []*engine.CertifiedKey
	logger  *logging.Logger
	metrics *metrics.Collector

	cron    *cron.Cron
	entryID cron.EntryID
}

// NewRefresher creates a refresher over the given keys. The collector
// counts refresh outcomes and may be nil.
func NewRefresher(cache Cache, fetcher Fetcher, keys []*engine.CertifiedKey, logger *logging.Logger, collector *metrics.Collector) *Refresher {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Refresher{
		cache:   cache,
		fetcher: fetcher,
		keys:    keys,
		logger:  logger,
		metrics: collector,
	}
}

// Prime fetches responses for every key that has none cached. Fetch
// failures are logged and skipped; stapling is best-effort and a
// missing response never blocks startup.
func (r *Refresher) Prime(ctx context.Context) {
	for _, key := range r.keys {
		if r.cache.Response(key.ID) != nil {
			r.metrics.RecordOCSPRefresh("skipped")
			continue
		}
		if err := r.refreshKey(ctx, key); err != nil {
			r.logger.Warn("ocsp prime failed", "key_id", key.ID, "error", err)
		}
	}
}

// Start schedules periodic refreshes using the cron expression, e.g.
// "@every 1h".
func (r *Refresher) Start(schedule string) error {
	r.cron = cron.New()
	id, err := r.cron.AddFunc(schedule, func() {
		r.refreshExpiring(context.Background())
	})
	if err != nil {
		return fmt.Errorf("invalid ocsp refresh schedule %q: %w", schedule, err)
	}
	r.entryID = id
	r.cron.Start()
	r.logger.Info("ocsp refresher started", "schedule", schedule, "keys", len(r.keys))
	return nil
}

// Stop halts the schedule and waits for a running refresh to finish.
func (r *Refresher) Stop() {
	if r.cron != nil {
		<-r.cron.Stop().Done()
	}
}

// refreshExpiring re-fetches responses that are missing or expire
// within the next two hours.
func (r *Refresher) refreshExpiring(ctx context.Context) {
	horizon := time.Now().Add(2 * time.Hour)
	for _, key := range r.keys {
		resp := r.cache.Response(key.ID)
		if resp != nil && resp.NextUpdate.After(horizon) {
			r.metrics.RecordOCSPRefresh("skipped")
			continue
		}
		if err := r.refreshKey(ctx, key); err != nil {
			r.logger.Warn("ocsp refresh failed", "key_id", key.ID, "error", err)
		}
	}
}

func (r *Refresher) refreshKey(ctx context.Context, key *engine.CertifiedKey) error {
	der, err := r.fetcher.Fetch(ctx, key)
	if err != nil {
		r.metrics.RecordOCSPRefresh("error")
		return err
	}
	resp, err := ParseResponse(key, der)
	if err != nil {
		r.metrics.RecordOCSPRefresh("error")
		return err
	}
	if err := r.cache.Put(resp); err != nil {
		r.metrics.RecordOCSPRefresh("error")
		return err
	}
	r.metrics.RecordOCSPRefresh("ok")
	r.logger.Debug("ocsp response cached",
		"key_id", key.ID,
		"next_update", resp.NextUpdate,
	)
	return nil
}

// ParseResponse validates a DER OCSP response against the key's leaf
// certificate and wraps it for caching.
func ParseResponse(key *engine.CertifiedKey, der []byte) (*Response, error) {
	parsed, err := stdocsp.ParseResponseForCert(der, key.Leaf, issuerOf(key))
	if err != nil {
		return nil, fmt.Errorf("invalid ocsp response: %w", err)
	}
	if parsed.Status != stdocsp.Good {
		return nil, fmt.Errorf("ocsp status for %s is %d, not good", key.ID, parsed.Status)
	}
	return &Response{
		KeyID:       key.ID,
		DER:         der,
		NextUpdate:  parsed.NextUpdate,
		RetrievedAt: time.Now(),
	}, nil
}

// issuerOf returns the issuer certificate from the key's chain when the
// chain carries one; self-signed and single-cert chains yield nil and
// the responder signature is not checked against an issuer.
func issuerOf(key *engine.CertifiedKey) *x509.Certificate {
	if len(key.Chain) < 2 {
		return nil
	}
	issuer, err := x509.ParseCertificate(key.Chain[1])
	if err != nil {
		return nil
	}
	return issuer
}
