package engine

import (
	"crypto/x509"
)

// ClientHello carries the values this core inspects from a TLS client
// hello: the SNI hostname, the ALPN identifiers in client preference
// order, and the signature schemes and cipher suites the client offers.
type ClientHello struct {
	// ServerName is the SNI hostname, empty when the client sent none.
	ServerName string

	// ALPNProtos lists the application protocols the client proposes,
	// in the client's order of preference. May be empty.
	ALPNProtos []string

	// SignatureSchemes lists the signature schemes the client supports,
	// as TLS SignatureScheme identifiers.
	SignatureSchemes []uint16

	// CipherSuites lists the cipher suite ids the client offers.
	CipherSuites []uint16
}

// HelloFunc is invoked by the engine when a client hello has been read.
// The userdata is whatever value was passed to NewSession; it carries
// the connection identity into the callback. Returning nil means no
// certificate was selected, which fails the handshake on a bound
// context and is the expected result on the hello-capture context.
type HelloFunc func(userdata any, hello *ClientHello) *CertifiedKey

// ClientAuthMode states whether a client certificate is requested
// during the handshake and whether presenting one is mandatory.
type ClientAuthMode int

const (
	ClientAuthNone ClientAuthMode = iota
	ClientAuthOptional
	ClientAuthRequired
)

func (m ClientAuthMode) String() string {
	switch m {
	case ClientAuthOptional:
		return "optional"
	case ClientAuthRequired:
		return "required"
	default:
		return "none"
	}
}

// SessionStore is the opaque, independently synchronized key/value
// store the engine may use for session resumption data.
type SessionStore interface {
	Get(key string) ([]byte, bool)
	Put(key string, value []byte) error
	Remove(key string)
}

// ContextConfig describes one compiled server context. A context built
// from it is immutable and safe for unsynchronized concurrent reads.
type ContextConfig struct {
	// OnClientHello is invoked once per handshake when the client hello
	// has been parsed. Required.
	OnClientHello HelloFunc

	// Versions restricts the protocol versions the context accepts.
	// Empty means the engine default.
	Versions []uint16

	// CipherSuites restricts and orders the cipher suites offered.
	// Empty means the engine default ordering.
	CipherSuites []uint16

	// ALPNProtos is the list of application protocols the context
	// advertises, server preference first.
	ALPNProtos []string

	// IgnoreClientOrder makes the server's cipher preference win over
	// the client's.
	IgnoreClientOrder bool

	// ClientAuth controls client certificate requests.
	ClientAuth ClientAuthMode

	// ClientCAs is the trust anchor pool for client certificates.
	// Required when ClientAuth is not ClientAuthNone.
	ClientCAs *x509.CertPool

	// SessionStore, when set, backs session resumption.
	SessionStore SessionStore
}

// Context is an engine-compiled, immutable server context. Contexts are
// shared by reference across all connections that selected the same
// virtual host.
type Context interface {
	// DerivedConfig returns a copy of the configuration the context was
	// built from, for deriving a rebound context with overrides.
	DerivedConfig() ContextConfig
}

// Session is one live handshake owned by the engine. A connection holds
// at most one live session at any instant; Close releases the engine
// resources and must be called exactly once.
type Session interface {
	// Feed hands raw bytes from the client to the engine. It returns
	// the number of bytes consumed.
	Feed(b []byte) (int, error)

	// Flush drains the bytes the engine wants sent back to the client.
	// The surrounding server layer owns the actual byte transfer.
	Flush() []byte

	// IsHandshaking reports whether the handshake is still in progress.
	IsHandshaking() bool

	// NegotiatedVersion returns the negotiated protocol version id.
	// The second value is false while handshaking.
	NegotiatedVersion() (uint16, bool)

	// NegotiatedCipher returns the negotiated cipher suite id.
	// The second value is false while handshaking.
	NegotiatedCipher() (uint16, bool)

	// NegotiatedALPN returns the negotiated application protocol, or
	// the empty string when ALPN was not negotiated.
	NegotiatedALPN() string

	// PeerCertificate returns the peer certificate at the given chain
	// index, leaf first, or nil when no further certificate exists.
	PeerCertificate(i int) *x509.Certificate

	// Close releases the session.
	Close() error
}

// Engine is the TLS engine collaborator. It enumerates protocol
// capabilities, compiles immutable server contexts, and runs handshake
// sessions that re-enter this core through the hello callback.
type Engine interface {
	// SupportedVersions lists the protocol version ids the engine
	// implements, newest first.
	SupportedVersions() []uint16

	// SupportedCiphers lists the cipher suite ids the engine
	// implements, in its default preference order.
	SupportedCiphers() []uint16

	// VersionName returns the display name for a version id.
	VersionName(id uint16) string

	// CipherName returns the IANA name for a cipher suite id.
	CipherName(id uint16) string

	// NewContext compiles an immutable server context.
	NewContext(cfg ContextConfig) (Context, error)

	// NewSession creates a handshake session bound to a context. The
	// userdata value is handed back to the context's hello callback.
	NewSession(ctx Context, userdata any) (Session, error)
}
