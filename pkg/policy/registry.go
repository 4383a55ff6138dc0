package policy

import (
	"strings"

	"github.com/TaIos/mod-tls/pkg/cert"
	"github.com/TaIos/mod-tls/pkg/cert/ocsp"
	"github.com/TaIos/mod-tls/pkg/config"
	"github.com/TaIos/mod-tls/pkg/engine"
	"github.com/TaIos/mod-tls/pkg/proto"
	"github.com/TaIos/mod-tls/pkg/session"
	"github.com/TaIos/mod-tls/pkg/telemetry/logging"
	"github.com/TaIos/mod-tls/pkg/telemetry/metrics"
)

// CertContributor lets collaborators (automated certificate management,
// for example) add certificate specs to a vhost during compilation, and
// supply fallback specs when nothing is configured.
type CertContributor interface {
	AddCertFiles(server string) []*cert.Spec
	AddFallbackCertFiles(server string) []*cert.Spec
}

// Deps are the collaborators the startup compilation wires together.
type Deps struct {
	// Engine is the TLS engine. Required.
	Engine engine.Engine

	// HelloCapture is the callback of the generic hello context; it
	// records SNI/ALPN on the connection and never selects a key.
	// Required.
	HelloCapture engine.HelloFunc

	// SelectKey is the certificate selection callback registered on
	// every compiled server context. Required.
	SelectKey engine.HelloFunc

	// Contributor may add certificate specs per vhost. Optional.
	Contributor CertContributor

	// Logger defaults to a discarding logger.
	Logger *logging.Logger

	// Metrics counts session cache accesses. Optional.
	Metrics *metrics.Collector
}

// Registry is the process-wide registry built once at startup: the
// capability table, certificate registry, verifier cache, session and
// OCSP caches, the generic hello context, and every compiled server
// policy. Immutable after Initialize returns; released with Close.
type Registry struct {
	Table     *proto.Table
	Certs     *cert.Registry
	Verifiers *cert.Verifiers

	// HelloContext is the throwaway compiled context used only to
	// observe a client hello before any server is chosen.
	HelloContext engine.Context

	// Policies holds all vhosts in configuration order, enabled or not.
	Policies []*ServerPolicy

	// Default is the vhost answering when no SNI match exists. Never
	// nil after a successful Initialize.
	Default *ServerPolicy

	SessionCache session.Cache
	OCSPCache    ocsp.Cache

	engine      engine.Engine
	selectKey   engine.HelloFunc
	contributor CertContributor
	logger      *logging.Logger
	metrics     *metrics.Collector
}

// Initialize builds the global registry and compiles every enabled
// vhost. Any failure anywhere aborts the entire startup; there is no
// partial activation.
func Initialize(cfg *config.Config, deps Deps) (*Registry, error) {
	logger := deps.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	if len(cfg.VHosts) == 0 {
		return nil, config.NewConfigError("", "vhosts", "at least one vhost must be configured", nil)
	}

	sessionCache, err := session.Open(cfg.SessionCache)
	if err != nil {
		return nil, config.NewConfigError("", "session_cache", "cannot open session cache", err)
	}

	var ocspCache ocsp.Cache
	if cfg.OCSP.Enabled {
		ocspCache, err = ocsp.Open(cfg.OCSP.Cache)
		if err != nil {
			return nil, config.NewConfigError("", "ocsp.cache", "cannot open ocsp cache", err)
		}
	}

	r := &Registry{
		Table:        proto.NewTable(deps.Engine),
		Certs:        cert.NewRegistry(logger),
		Verifiers:    cert.NewVerifiers(),
		SessionCache: sessionCache,
		OCSPCache:    ocspCache,
		engine:       deps.Engine,
		selectKey:    deps.SelectKey,
		contributor:  deps.Contributor,
		logger:       logger,
		metrics:      deps.Metrics,
	}

	// the generic hello context only runs the capture callback; it
	// never selects a certificate
	helloCtx, err := deps.Engine.NewContext(engine.ContextConfig{
		OnClientHello: deps.HelloCapture,
	})
	if err != nil {
		r.Close()
		return nil, err
	}
	r.HelloContext = helloCtx

	for i := range cfg.VHosts {
		v := &cfg.VHosts[i]
		if !serverEnabled(cfg.Listen, v) {
			r.Policies = append(r.Policies, &ServerPolicy{
				Name:    v.Name,
				Aliases: append([]string(nil), v.Aliases...),
				Default: v.Default,
			})
			logger.Debug("vhost not covered by any listener, TLS disabled", "server", v.Name)
			continue
		}

		p, err := r.compileServer(v)
		if err != nil {
			r.Close()
			return nil, err
		}
		r.Policies = append(r.Policies, p)
		logger.Info("vhost compiled",
			"server", p.Name,
			"certificates", len(p.Keys),
			"client_auth", p.ClientAuth.String(),
			"service_unavailable", p.ServiceUnavailable,
		)
	}

	for _, p := range r.Policies {
		if p.Default {
			r.Default = p
			break
		}
	}
	if r.Default == nil {
		// the first vhost acts as the default server
		r.Default = r.Policies[0]
	}

	logger.Info("startup compilation complete",
		"vhosts", len(r.Policies),
		"certificates", r.Certs.Len(),
	)
	return r, nil
}

// MatchServer resolves an SNI hostname to a vhost, walking the policies
// in configuration order. Resolution is deterministic: identical name
// and vhost set always yield the same policy. Returns nil when nothing
// matches.
func (r *Registry) MatchServer(sni string) *ServerPolicy {
	if sni == "" {
		return nil
	}
	for _, p := range r.Policies {
		if p.Enabled && p.MatchesName(sni) {
			return p
		}
	}
	return nil
}

// Policy returns the vhost with the given name, or nil.
func (r *Registry) Policy(name string) *ServerPolicy {
	for _, p := range r.Policies {
		if strings.EqualFold(p.Name, name) {
			return p
		}
	}
	return nil
}

// EnabledCount returns the number of vhosts serving TLS.
func (r *Registry) EnabledCount() int {
	n := 0
	for _, p := range r.Policies {
		if p.Enabled {
			n++
		}
	}
	return n
}

// CertFilePaths lists the certificate and key files loaded at startup,
// for the file watcher.
func (r *Registry) CertFilePaths(cfg *config.Config) []string {
	var paths []string
	seen := make(map[string]bool)
	for _, v := range cfg.VHosts {
		for _, c := range v.Certificates {
			for _, p := range []string{c.CertFile, c.KeyFile} {
				if p != "" && !seen[p] {
					seen[p] = true
					paths = append(paths, p)
				}
			}
		}
	}
	return paths
}

// Close releases the caches. Compiled contexts and certified keys are
// plain values reclaimed by the runtime.
func (r *Registry) Close() error {
	var firstErr error
	if r.SessionCache != nil {
		if err := r.SessionCache.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if r.OCSPCache != nil {
		if err := r.OCSPCache.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (r *Registry) sessionStore() engine.SessionStore {
	if r.SessionCache == nil {
		return nil
	}
	return &recordingStore{cache: r.SessionCache, metrics: r.metrics}
}

// recordingStore counts cache accesses on their way to the engine.
type recordingStore struct {
	cache   session.Cache
	metrics *metrics.Collector
}

func (s *recordingStore) Get(key string) ([]byte, bool) {
	value, ok := s.cache.Get(key)
	if ok {
		s.metrics.RecordSessionCacheOp("get", "hit")
	} else {
		s.metrics.RecordSessionCacheOp("get", "miss")
	}
	return value, ok
}

func (s *recordingStore) Put(key string, value []byte) error {
	if err := s.cache.Put(key, value); err != nil {
		s.metrics.RecordSessionCacheOp("put", "error")
		return err
	}
	s.metrics.RecordSessionCacheOp("put", "ok")
	return nil
}

func (s *recordingStore) Remove(key string) {
	s.cache.Remove(key)
	s.metrics.RecordSessionCacheOp("remove", "ok")
}

// Engine returns the TLS engine the registry was built with.
func (r *Registry) Engine() engine.Engine {
	return r.engine
}

// StapledResponse returns the cached OCSP response for a key id, or nil
// when stapling is off or nothing is cached.
func (r *Registry) StapledResponse(keyID string) []byte {
	if r.OCSPCache == nil {
		return nil
	}
	resp := r.OCSPCache.Response(keyID)
	if resp == nil {
		return nil
	}
	return resp.DER
}
