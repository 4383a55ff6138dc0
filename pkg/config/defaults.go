package config

// Default configuration values.
const (
	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"

	DefaultMetricsNamespace = "modtls"

	DefaultSessionCache = "memory:2048"

	DefaultOCSPCache           = "memory"
	DefaultOCSPRefreshSchedule = "@every 1h"

	DefaultHonorClientOrder = true
	DefaultStrictSNI        = true

	DefaultClientAuth = "none"
)

// ApplyDefaults fills unset fields with default values.
func ApplyDefaults(cfg *Config) {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = DefaultLogLevel
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = DefaultLogFormat
	}
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = DefaultMetricsNamespace
	}
	if cfg.SessionCache == "" {
		cfg.SessionCache = DefaultSessionCache
	}
	if cfg.OCSP.Cache == "" {
		cfg.OCSP.Cache = DefaultOCSPCache
	}
	if cfg.OCSP.RefreshSchedule == "" {
		cfg.OCSP.RefreshSchedule = DefaultOCSPRefreshSchedule
	}
	for i := range cfg.VHosts {
		if cfg.VHosts[i].ClientAuth == "" {
			cfg.VHosts[i].ClientAuth = DefaultClientAuth
		}
	}
}
