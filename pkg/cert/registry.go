package cert

import (
	"github.com/TaIos/mod-tls/pkg/engine"
	"github.com/TaIos/mod-tls/pkg/telemetry/logging"
)

// Registry is the process-lifetime certified key cache. Identical
// cert/key specs load once and are shared by reference between all
// vhosts that use them.
//
// The registry is filled during the single-threaded startup phase and
// is strictly read-only afterwards, so lookups need no locking.
type Registry struct {
	keys   map[string]*engine.CertifiedKey
	logger *logging.Logger
}

// NewRegistry creates an empty certificate registry.
func NewRegistry(logger *logging.Logger) *Registry {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Registry{
		keys:   make(map[string]*engine.CertifiedKey),
		logger: logger,
	}
}

// CertifiedKey returns the loaded key for the spec, loading it on first
// use. The server name is only for error and log context.
func (r *Registry) CertifiedKey(server string, spec *Spec) (*engine.CertifiedKey, error) {
	id := spec.Fingerprint()
	if key, ok := r.keys[id]; ok {
		return key, nil
	}

	key, err := LoadCertifiedKey(spec)
	if err != nil {
		return nil, &LoadError{Server: server, Spec: spec, Cause: err}
	}
	r.keys[id] = key

	r.logger.Debug("certificate loaded",
		"server", server,
		"key_id", id,
		"subject", key.Leaf.Subject.CommonName,
		"not_after", key.Leaf.NotAfter,
	)
	return key, nil
}

// Key returns a loaded key by id, or nil.
func (r *Registry) Key(id string) *engine.CertifiedKey {
	return r.keys[id]
}

// Keys returns all loaded keys. The result order is unspecified.
func (r *Registry) Keys() []*engine.CertifiedKey {
	out := make([]*engine.CertifiedKey, 0, len(r.keys))
	for _, k := range r.keys {
		out = append(out, k)
	}
	return out
}

// Len returns the number of distinct keys loaded.
func (r *Registry) Len() int {
	return len(r.keys)
}
