package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeConfig(t, `
listen:
  - "*:8443"
vhosts:
  - name: example.org
    default: true
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.Logging.Level != DefaultLogLevel {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, DefaultLogLevel)
	}
	if cfg.SessionCache != DefaultSessionCache {
		t.Errorf("SessionCache = %q, want %q", cfg.SessionCache, DefaultSessionCache)
	}
	if cfg.OCSP.RefreshSchedule != DefaultOCSPRefreshSchedule {
		t.Errorf("OCSP.RefreshSchedule = %q, want %q", cfg.OCSP.RefreshSchedule, DefaultOCSPRefreshSchedule)
	}
	if got := cfg.VHosts[0].ClientAuth; got != DefaultClientAuth {
		t.Errorf("VHosts[0].ClientAuth = %q, want %q", got, DefaultClientAuth)
	}
	if !cfg.VHosts[0].HonorsClientOrder() {
		t.Error("HonorsClientOrder() = false, want the default true")
	}
	if !cfg.VHosts[0].IsStrictSNI() {
		t.Error("IsStrictSNI() = false, want the default true")
	}
}

func TestLoadConfigFull(t *testing.T) {
	path := writeConfig(t, `
logging:
  level: debug
  format: text
metrics:
  enabled: true
  address: ":9100"
listen:
  - "*:443"
  - "10.0.0.1:8443"
session_cache: "sqlite:/tmp/sessions.db"
ocsp:
  enabled: true
  cache: memory
watch_certificates: true
vhosts:
  - name: a.example.org
    default: true
    aliases: ["*.example.org"]
    min_version: "1.2"
    prefer_ciphers: ["TLS_AES_256_GCM_SHA384"]
    suppress_ciphers: ["TLS_AES_128_GCM_SHA256"]
    honor_client_order: false
    certificates:
      - cert_file: /etc/certs/a.pem
        key_file: /etc/certs/a-key.pem
  - name: b.example.org
    strict_sni: false
    client_auth: required
    client_ca: /etc/certs/clients.pem
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if len(cfg.Listen) != 2 || len(cfg.VHosts) != 2 {
		t.Fatalf("got %d listeners, %d vhosts", len(cfg.Listen), len(cfg.VHosts))
	}
	a := cfg.VHosts[0]
	if a.HonorsClientOrder() {
		t.Error("a.HonorsClientOrder() = true, want false")
	}
	if a.MinVersion != "1.2" {
		t.Errorf("a.MinVersion = %q", a.MinVersion)
	}
	b := cfg.VHosts[1]
	if b.IsStrictSNI() {
		t.Error("b.IsStrictSNI() = true, want false")
	}
	if b.ClientAuth != "required" {
		t.Errorf("b.ClientAuth = %q", b.ClientAuth)
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(cfg *Config)
		field  string
	}{
		{
			"empty vhost name",
			func(cfg *Config) { cfg.VHosts[0].Name = "" },
			"vhosts[0].name",
		},
		{
			"duplicate vhost name",
			func(cfg *Config) {
				cfg.VHosts = append(cfg.VHosts, VHostConfig{Name: "Example.ORG", ClientAuth: "none"})
			},
			"name",
		},
		{
			"two defaults",
			func(cfg *Config) {
				cfg.VHosts = append(cfg.VHosts, VHostConfig{Name: "other.org", Default: true, ClientAuth: "none"})
			},
			"vhosts",
		},
		{
			"bad listen address",
			func(cfg *Config) { cfg.Listen = []string{"not::an::addr::"} },
			"listen[0]",
		},
		{
			"bad client auth",
			func(cfg *Config) { cfg.VHosts[0].ClientAuth = "sometimes" },
			"client_auth",
		},
		{
			"client auth without trust anchors",
			func(cfg *Config) { cfg.VHosts[0].ClientAuth = "required" },
			"client_ca",
		},
		{
			"incomplete certificate spec",
			func(cfg *Config) {
				cfg.VHosts[0].Certificates = []CertificateConfig{{CertFile: "/only/cert.pem"}}
			},
			"certificates[0]",
		},
		{
			"unknown session cache backend",
			func(cfg *Config) { cfg.SessionCache = "redis:localhost" },
			"session_cache",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				Listen: []string{"*:8443"},
				VHosts: []VHostConfig{{Name: "example.org", Default: true}},
			}
			ApplyDefaults(cfg)
			tt.mutate(cfg)

			err := Validate(cfg)
			if err == nil {
				t.Fatal("Validate accepted an invalid config")
			}
			var cerr *ConfigError
			if !errors.As(err, &cerr) {
				t.Fatalf("error type = %T, want *ConfigError", err)
			}
			if cerr.Field != tt.field {
				t.Errorf("error field = %q, want %q", cerr.Field, tt.field)
			}
		})
	}
}

func TestSplitListenAddr(t *testing.T) {
	tests := []struct {
		in       string
		host     string
		port     string
		wantErr  bool
		wildcard bool
	}{
		{"*:443", "", "443", false, true},
		{":443", "", "443", false, true},
		{"443", "", "443", false, true},
		{"10.0.0.1:8443", "10.0.0.1", "8443", false, false},
		{"host.example.org:443", "host.example.org", "443", false, false},
		{"bad::addr::1", "", "", true, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			host, port, err := SplitListenAddr(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("SplitListenAddr(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if host != tt.host || port != tt.port {
				t.Errorf("SplitListenAddr(%q) = (%q, %q), want (%q, %q)", tt.in, host, port, tt.host, tt.port)
			}
			if IsWildcardAddr(tt.in) != tt.wildcard {
				t.Errorf("IsWildcardAddr(%q) = %v, want %v", tt.in, !tt.wildcard, tt.wildcard)
			}
		})
	}
}

func TestEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
listen:
  - "*:8443"
vhosts:
  - name: example.org
`)
	t.Setenv("MODTLS_LOGGING_LEVEL", "debug")
	t.Setenv("MODTLS_SESSION_CACHE", "none")

	cfg, err := LoadConfigWithEnvOverrides(path)
	if err != nil {
		t.Fatalf("LoadConfigWithEnvOverrides: %v", err)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want env override %q", cfg.Logging.Level, "debug")
	}
	if cfg.SessionCache != "none" {
		t.Errorf("SessionCache = %q, want env override %q", cfg.SessionCache, "none")
	}
}
