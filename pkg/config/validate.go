package config

import (
	"fmt"
	"net"
	"strings"
)

// Validate checks the configuration for startup-fatal mistakes. The
// policy compiler performs the engine-dependent checks (protocol floor
// support, certificate loading) later; Validate covers everything that
// can be decided from the file alone.
func Validate(cfg *Config) error {
	for i, addr := range cfg.Listen {
		if _, _, err := SplitListenAddr(addr); err != nil {
			return NewConfigError("", fmt.Sprintf("listen[%d]", i), "invalid listen address", err)
		}
	}

	if err := validateCacheSpec(cfg.SessionCache, "session_cache", []string{"none", "default", "memory", "sqlite"}); err != nil {
		return err
	}
	if err := validateCacheSpec(cfg.OCSP.Cache, "ocsp.cache", []string{"memory", "sqlite"}); err != nil {
		return err
	}

	seen := make(map[string]bool, len(cfg.VHosts))
	defaults := 0
	for i := range cfg.VHosts {
		v := &cfg.VHosts[i]
		if v.Name == "" {
			return NewConfigError("", fmt.Sprintf("vhosts[%d].name", i), "vhost name must not be empty", nil)
		}
		if seen[strings.ToLower(v.Name)] {
			return NewConfigError(v.Name, "name", "duplicate vhost name", nil)
		}
		seen[strings.ToLower(v.Name)] = true

		if v.Default {
			defaults++
		}

		for j, addr := range v.Addresses {
			if _, _, err := SplitListenAddr(addr); err != nil {
				return NewConfigError(v.Name, fmt.Sprintf("addresses[%d]", j), "invalid address", err)
			}
		}

		switch v.ClientAuth {
		case "none", "optional", "required":
		default:
			return NewConfigError(v.Name, "client_auth", fmt.Sprintf("must be none, optional or required, got %q", v.ClientAuth), nil)
		}
		if v.ClientAuth != "none" && v.ClientCA == "" {
			return NewConfigError(v.Name, "client_ca", "client authentication is enabled but no trust anchor file is set", nil)
		}

		for j, c := range v.Certificates {
			hasFiles := c.CertFile != "" && c.KeyFile != ""
			hasPEM := c.CertPEM != "" && c.KeyPEM != ""
			if !hasFiles && !hasPEM {
				return NewConfigError(v.Name, fmt.Sprintf("certificates[%d]", j), "certificate spec needs cert_file/key_file or cert_pem/key_pem", nil)
			}
		}
	}

	if defaults > 1 {
		return NewConfigError("", "vhosts", "more than one vhost is marked default", nil)
	}

	return nil
}

// SplitListenAddr parses a listen address into host and port. The host
// "*" or an empty host means a wildcard listener.
func SplitListenAddr(addr string) (host, port string, err error) {
	if !strings.Contains(addr, ":") {
		// bare port
		addr = ":" + addr
	}
	host, port, err = net.SplitHostPort(addr)
	if err != nil {
		return "", "", err
	}
	if port == "" {
		return "", "", fmt.Errorf("missing port in address %q", addr)
	}
	if host == "*" {
		host = ""
	}
	return host, port, nil
}

// IsWildcardAddr reports whether the listen address accepts any host.
func IsWildcardAddr(addr string) bool {
	host, _, err := SplitListenAddr(addr)
	return err == nil && host == ""
}

func validateCacheSpec(spec, field string, allowed []string) error {
	kind := spec
	if i := strings.IndexByte(spec, ':'); i >= 0 {
		kind = spec[:i]
	}
	for _, a := range allowed {
		if kind == a {
			return nil
		}
	}
	return NewConfigError("", field, fmt.Sprintf("unknown cache backend %q", kind), nil)
}
