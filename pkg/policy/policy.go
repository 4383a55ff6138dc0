package policy

import (
	"strings"

	"github.com/TaIos/mod-tls/pkg/engine"
	"github.com/TaIos/mod-tls/pkg/proto"
)

// Application protocol identifiers used in ALPN negotiation.
const (
	// ProtocolHTTP11 is the baseline protocol every connection starts
	// with, negotiated or not.
	ProtocolHTTP11 = "http/1.1"

	// ProtocolHTTP2 is the multiplexed HTTP identifier. Anything other
	// than these two is treated as a provisioning/challenge protocol.
	ProtocolHTTP2 = "h2"
)

// ServerPolicy is the compiled policy of one virtual host: resolved
// certificates, client-auth verifier, cipher ordering, protocol floor,
// and the immutable engine context built from them.
//
// A ServerPolicy is built during the single-threaded startup phase and
// shared by reference across every connection that selects this server.
// It is strictly read-only after compilation.
type ServerPolicy struct {
	// Name is the hostname identity of the vhost.
	Name string

	// Aliases are additional names, possibly with a leading wildcard
	// label.
	Aliases []string

	// Default marks the vhost serving connections without an SNI match.
	Default bool

	// Enabled is set when a listener covers one of the vhost addresses.
	Enabled bool

	// ServiceUnavailable is set when the vhost runs on fallback
	// self-signed certificates only; every request is answered 503.
	ServiceUnavailable bool

	// StrictSNI refuses connections whose SNI matches no vhost.
	StrictSNI bool

	// HonorClientOrder lets the client cipher preference win.
	HonorClientOrder bool

	// ClientAuth is the client certificate mode.
	ClientAuth engine.ClientAuthMode

	// ClientCAFile is the trust anchor file for client certificates.
	ClientCAFile string

	// MinVersion is the configured protocol floor, 0 for engine default.
	MinVersion uint16

	// EffectiveMinVersion is the lowest version actually offered. It can
	// exceed MinVersion when the engine does not implement the exact
	// floor.
	EffectiveMinVersion uint16

	// Versions is the version set handed to the engine, empty for the
	// engine default.
	Versions []uint16

	// Ciphers is the effective cipher list handed to the engine:
	// preferred-and-supported suites first in configured order, then the
	// supported remainder in engine order, suppressed suites removed.
	// Empty means the engine default list was left untouched.
	Ciphers []uint16

	// SuppressedCiphers is kept for the request admission gate.
	SuppressedCiphers []uint16

	// Keys are the loaded certified keys, in selection preference order.
	// Shared registry references, never freed per connection.
	Keys []*engine.CertifiedKey

	// Context is the compiled engine context. Immutable, safe for
	// unsynchronized concurrent reads.
	Context engine.Context
}

// MatchesName reports whether the vhost answers for the hostname. The
// vhost name matches exactly (case-insensitive); aliases may carry a
// leading wildcard label covering exactly one label.
func (p *ServerPolicy) MatchesName(host string) bool {
	if host == "" {
		return false
	}
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	if strings.EqualFold(p.Name, host) {
		return true
	}
	for _, alias := range p.Aliases {
		if nameMatches(strings.ToLower(alias), host) {
			return true
		}
	}
	return false
}

func nameMatches(pattern, host string) bool {
	if pattern == host {
		return true
	}
	if rest, ok := strings.CutPrefix(pattern, "*."); ok {
		suffix := "." + rest
		if !strings.HasSuffix(host, suffix) {
			return false
		}
		// the wildcard covers exactly one label
		return !strings.Contains(strings.TrimSuffix(host, suffix), ".")
	}
	return false
}

// SuppressesCipher reports whether the vhost's policy removes the
// cipher from its handshake offer.
func (p *ServerPolicy) SuppressesCipher(id uint16) bool {
	return proto.Contains(p.SuppressedCiphers, id)
}

// CompatibleWith reports whether a connection negotiated under this
// policy may also serve requests for the other vhost. Certificate
// differences are the client's concern; version floor and suppressed
// ciphers are ours.
func (p *ServerPolicy) CompatibleWith(other *ServerPolicy, negotiatedVersion, negotiatedCipher uint16) bool {
	if other == nil {
		return false
	}
	if p == other {
		return true
	}
	if other.MinVersion > 0 && negotiatedVersion < other.MinVersion {
		return false
	}
	if other.SuppressesCipher(negotiatedCipher) {
		return false
	}
	return true
}
