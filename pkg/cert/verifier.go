package cert

import (
	"crypto/x509"
	"fmt"
	"os"

	"github.com/TaIos/mod-tls/pkg/engine"
)

// Verifier is a compiled client certificate verifier: a trust anchor
// pool plus the authentication mode.
type Verifier struct {
	Mode engine.ClientAuthMode
	CAs  *x509.CertPool

	// CAFile is the trust anchor file the pool was built from.
	CAFile string
}

// Verifiers caches client verifiers by trust anchor file path so that
// vhosts sharing a CA file share the parsed pool. Built during the
// single-threaded startup phase, read-only afterwards.
type Verifiers struct {
	pools map[string]*x509.CertPool
}

// NewVerifiers creates an empty verifier cache.
func NewVerifiers() *Verifiers {
	return &Verifiers{pools: make(map[string]*x509.CertPool)}
}

// Verifier returns a verifier for the mode and trust anchor file,
// loading and caching the pool on first use.
func (v *Verifiers) Verifier(server string, mode engine.ClientAuthMode, caFile string) (*Verifier, error) {
	if mode == engine.ClientAuthNone {
		return &Verifier{Mode: mode}, nil
	}
	pool, ok := v.pools[caFile]
	if !ok {
		var err error
		pool, err = loadPool(caFile)
		if err != nil {
			return nil, &VerifierError{Server: server, CAFile: caFile, Cause: err}
		}
		v.pools[caFile] = pool
	}
	return &Verifier{Mode: mode, CAs: pool, CAFile: caFile}, nil
}

func loadPool(caFile string) (*x509.CertPool, error) {
	pemBytes, err := os.ReadFile(caFile)
	if err != nil {
		return nil, fmt.Errorf("reading trust anchor file: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pemBytes) {
		return nil, fmt.Errorf("no usable certificates in %q", caFile)
	}
	return pool, nil
}

// ParseClientAuth maps the configured client_auth string to a mode.
func ParseClientAuth(s string) (engine.ClientAuthMode, error) {
	switch s {
	case "", "none":
		return engine.ClientAuthNone, nil
	case "optional":
		return engine.ClientAuthOptional, nil
	case "required":
		return engine.ClientAuthRequired, nil
	default:
		return engine.ClientAuthNone, fmt.Errorf("unknown client auth mode %q", s)
	}
}
