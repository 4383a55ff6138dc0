package policy

import (
	"github.com/TaIos/mod-tls/pkg/cert"
	"github.com/TaIos/mod-tls/pkg/config"
	"github.com/TaIos/mod-tls/pkg/engine"
	"github.com/TaIos/mod-tls/pkg/proto"
	"github.com/TaIos/mod-tls/pkg/telemetry/logging"
)

// compileServer turns one enabled vhost configuration into an immutable
// ServerPolicy. Any error is startup-fatal; there is never a partially
// compiled server set.
func (r *Registry) compileServer(v *config.VHostConfig) (*ServerPolicy, error) {
	logger := r.logger.WithServer(v.Name)

	p := &ServerPolicy{
		Name:             v.Name,
		Aliases:          append([]string(nil), v.Aliases...),
		Default:          v.Default,
		Enabled:          true,
		StrictSNI:        v.IsStrictSNI(),
		HonorClientOrder: v.HonorsClientOrder(),
		ClientCAFile:     v.ClientCA,
	}

	mode, err := cert.ParseClientAuth(v.ClientAuth)
	if err != nil {
		return nil, config.NewConfigError(v.Name, "client_auth", err.Error(), nil)
	}
	p.ClientAuth = mode

	// 1. effective cert specs: configured, then contributed, then the
	// self-signed fallback when nothing at all exists.
	specs := configuredSpecs(v)
	if r.contributor != nil {
		specs = append(specs, r.contributor.AddCertFiles(v.Name)...)
	}
	if len(specs) == 0 {
		if r.contributor != nil {
			specs = r.contributor.AddFallbackCertFiles(v.Name)
		}
		if len(specs) == 0 {
			fallback, err := cert.FallbackSpec(v.Name)
			if err != nil {
				return nil, config.NewConfigError(v.Name, "certificates", "failed to generate fallback certificate", err)
			}
			specs = append(specs, fallback)
		}
		p.ServiceUnavailable = true
		logger.Warn("no certificates configured and none contributed, " +
			"answering every request with 503 until real certificates arrive")
	}

	// 2. load through the registry, deduplicated process-wide
	for _, spec := range specs {
		key, err := r.Certs.CertifiedKey(v.Name, spec)
		if err != nil {
			return nil, err
		}
		p.Keys = append(p.Keys, key)
	}
	logger.Debug("certificates resolved", "count", len(p.Keys))

	// 3. client-auth verifier, cached by trust anchor path
	verifier, err := r.Verifiers.Verifier(v.Name, mode, v.ClientCA)
	if err != nil {
		return nil, err
	}

	// 4. cipher ordering
	if err := r.compileCiphers(p, v, logger); err != nil {
		return nil, err
	}

	// 5. protocol floor
	if err := r.compileVersions(p, v, logger); err != nil {
		return nil, err
	}

	// 6.-9. compiled context: selection callback, baseline ALPN,
	// session cache, finalize
	ctx, err := r.engine.NewContext(engine.ContextConfig{
		OnClientHello:     r.selectKey,
		Versions:          p.Versions,
		CipherSuites:      p.Ciphers,
		ALPNProtos:        []string{ProtocolHTTP11},
		IgnoreClientOrder: !p.HonorClientOrder,
		ClientAuth:        verifier.Mode,
		ClientCAs:         verifier.CAs,
		SessionStore:      r.sessionStore(),
	})
	if err != nil {
		return nil, err
	}
	p.Context = ctx

	return p, nil
}

func configuredSpecs(v *config.VHostConfig) []*cert.Spec {
	specs := make([]*cert.Spec, 0, len(v.Certificates))
	for _, c := range v.Certificates {
		specs = append(specs, &cert.Spec{
			CertFile: c.CertFile,
			KeyFile:  c.KeyFile,
			CertPEM:  c.CertPEM,
			KeyPEM:   c.KeyPEM,
		})
	}
	return specs
}

// compileCiphers computes the effective cipher list: supported minus
// suppressed, preferred-and-supported moved to the front in configured
// relative order, remainder untouched. Preferred-but-unsupported suites
// are a warning, never an error.
func (r *Registry) compileCiphers(p *ServerPolicy, v *config.VHostConfig, logger *logging.Logger) error {
	preferred, err := r.parseCiphers(v.Name, "prefer_ciphers", v.PreferCiphers)
	if err != nil {
		return err
	}
	suppressed, err := r.parseCiphers(v.Name, "suppress_ciphers", v.SuppressCiphers)
	if err != nil {
		return err
	}
	p.SuppressedCiphers = suppressed

	supported := r.Table.SupportedCiphers()
	effective := proto.Remove(supported, suppressed)

	var ordered []uint16
	var unsupported []uint16
	for _, id := range preferred {
		switch {
		case proto.Contains(effective, id):
			ordered = append(ordered, id)
		case !r.Table.SupportsCipher(id):
			unsupported = append(unsupported, id)
		}
	}
	if ordered != nil {
		for _, id := range effective {
			if !proto.Contains(ordered, id) {
				ordered = append(ordered, id)
			}
		}
		effective = ordered
	}

	if len(unsupported) > 0 {
		logger.Warn("preferred cipher suites are not supported by the engine and will have no effect",
			"ciphers", r.Table.CipherNames(unsupported))
	}

	// hand the list to the engine only when it deviates from the default
	if len(effective) != len(supported) || ordered != nil {
		p.Ciphers = effective
		logger.Debug("cipher suites configured", "ciphers", r.Table.CipherNames(effective))
	}
	return nil
}

func (r *Registry) parseCiphers(server, field string, names []string) ([]uint16, error) {
	var ids []uint16
	for _, name := range names {
		id, err := r.Table.ParseCipher(name)
		if err != nil {
			return nil, config.NewConfigError(server, field, err.Error(), nil)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// compileVersions applies the configured protocol floor. When the exact
// floor is unsupported the next higher version is used with a warning;
// an unsatisfiable floor fails compilation.
func (r *Registry) compileVersions(p *ServerPolicy, v *config.VHostConfig, logger *logging.Logger) error {
	min, err := proto.ParseVersion(v.MinVersion)
	if err != nil {
		return config.NewConfigError(v.Name, "min_version", err.Error(), nil)
	}
	p.MinVersion = min

	if min == 0 {
		// engine default; the effective minimum is the engine's lowest
		versions := r.Table.VersionsAtLeast(0)
		if len(versions) > 0 {
			p.EffectiveMinVersion = versions[0]
		}
		return nil
	}

	versions := r.Table.VersionsAtLeast(min)
	if len(versions) == 0 {
		return config.NewConfigError(v.Name, "min_version",
			"neither the configured minimum protocol version nor any higher one is supported by the engine", nil)
	}
	if versions[0] != min {
		logger.Warn("configured minimum protocol version is not supported, using the next higher one",
			"configured", r.Table.VersionName(min),
			"selected", r.Table.VersionName(versions[0]))
	}
	p.Versions = versions
	p.EffectiveMinVersion = versions[0]
	return nil
}

