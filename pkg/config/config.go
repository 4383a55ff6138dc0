package config

// Config is the root configuration for the TLS negotiation core.
type Config struct {
	// Logging configures structured log output.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics configures Prometheus metric collection.
	Metrics MetricsConfig `yaml:"metrics"`

	// Listen lists the addresses TLS is served on, as "host:port",
	// ":port" or "*:port". A vhost is enabled when one of its addresses
	// matches a listener exactly, or when it is the default vhost and a
	// wildcard listener exists.
	Listen []string `yaml:"listen"`

	// SessionCache selects the session cache backend:
	// "none", "memory:<max-entries>" or "sqlite:<path>".
	SessionCache string `yaml:"session_cache"`

	// CertificateDir, when set, is scanned for managed certificates: a
	// vhost picks up <dir>/<name>/cert.pem and key.pem in addition to
	// its configured certificates, and <dir>/<name>/fallback-*.pem when
	// it has none.
	CertificateDir string `yaml:"certificate_dir"`

	// OCSP configures stapling support.
	OCSP OCSPConfig `yaml:"ocsp"`

	// WatchCertificates enables the certificate file watcher that warns
	// when a loaded certificate or key changes on disk after startup.
	WatchCertificates bool `yaml:"watch_certificates"`

	// VHosts lists the virtual hosts, in configuration order. SNI
	// resolution walks this list first to last.
	VHosts []VHostConfig `yaml:"vhosts"`
}

// LoggingConfig configures the logger.
type LoggingConfig struct {
	Level     string `yaml:"level"`
	Format    string `yaml:"format"`
	AddSource bool   `yaml:"add_source"`
}

// MetricsConfig configures metric collection.
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace"`

	// Address is the listen address of the exposition endpoint. Empty
	// disables the endpoint even when collection is on.
	Address string `yaml:"address"`
}

// OCSPConfig configures OCSP stapling.
type OCSPConfig struct {
	// Enabled turns stapling on. Responses are attached to selected
	// certified keys as connection-owned clones.
	Enabled bool `yaml:"enabled"`

	// Cache selects the response cache backend:
	// "memory" or "sqlite:<path>".
	Cache string `yaml:"cache"`

	// RefreshSchedule is a cron expression for re-fetching responses
	// before they expire. Empty means the default hourly schedule.
	RefreshSchedule string `yaml:"refresh_schedule"`
}

// VHostConfig is the per-virtual-host policy configuration. It is
// compiled into an immutable server context at startup.
type VHostConfig struct {
	// Name is the hostname identity of the vhost.
	Name string `yaml:"name"`

	// Aliases lists additional names this vhost answers for. Entries
	// may use a leading wildcard label, e.g. "*.example.net".
	Aliases []string `yaml:"aliases"`

	// Default marks the vhost that answers when no SNI match exists.
	// At most one vhost may be the default.
	Default bool `yaml:"default"`

	// Addresses lists the listen addresses of this vhost.
	Addresses []string `yaml:"addresses"`

	// Certificates lists the configured certificate specs, in order of
	// selection preference.
	Certificates []CertificateConfig `yaml:"certificates"`

	// MinVersion is the minimum protocol version, e.g. "1.2" or "1.3".
	// Empty means the engine default.
	MinVersion string `yaml:"min_version"`

	// PreferCiphers moves the named suites to the front of the cipher
	// list handed to the engine, in the configured relative order.
	PreferCiphers []string `yaml:"prefer_ciphers"`

	// SuppressCiphers removes the named suites from the cipher list.
	SuppressCiphers []string `yaml:"suppress_ciphers"`

	// HonorClientOrder lets the client's cipher preference win.
	// Defaults to true.
	HonorClientOrder *bool `yaml:"honor_client_order"`

	// StrictSNI refuses connections whose SNI matches no vhost.
	// Defaults to true; when false, an unmatched SNI keeps the
	// currently selected vhost (relaxed checking).
	StrictSNI *bool `yaml:"strict_sni"`

	// ClientAuth is one of "none", "optional", "required".
	ClientAuth string `yaml:"client_auth"`

	// ClientCA is the trust anchor file for client certificates.
	// Required when ClientAuth is not "none".
	ClientCA string `yaml:"client_ca"`
}

// CertificateConfig is one certificate specification: either file paths
// or inline PEM.
type CertificateConfig struct {
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
	CertPEM  string `yaml:"cert_pem"`
	KeyPEM   string `yaml:"key_pem"`
}

// HonorsClientOrder resolves the honor_client_order flag with its default.
func (v *VHostConfig) HonorsClientOrder() bool {
	if v.HonorClientOrder == nil {
		return DefaultHonorClientOrder
	}
	return *v.HonorClientOrder
}

// IsStrictSNI resolves the strict_sni flag with its default.
func (v *VHostConfig) IsStrictSNI() bool {
	if v.StrictSNI == nil {
		return DefaultStrictSNI
	}
	return *v.StrictSNI
}
