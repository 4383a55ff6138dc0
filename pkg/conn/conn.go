package conn

import (
	"crypto/x509"
	"time"

	"github.com/google/uuid"

	"github.com/TaIos/mod-tls/pkg/engine"
	"github.com/TaIos/mod-tls/pkg/policy"
)

// Conn is the per-connection TLS record. Exactly one worker processes a
// connection at a time, so none of the fields need locking; the record
// is never concurrently mutated.
//
// Resource ownership: the engine session slot holds at most one live
// session; a selected key carrying an OCSP staple is a connection-owned
// clone; override keys installed for challenge protocols are
// exclusively connection-owned. Close releases all three exactly once.
type Conn struct {
	id string

	state  State
	policy *policy.ServerPolicy

	// hello capture results
	helloSeen bool
	sni       string
	alpn      []string

	// helloRaw buffers the client bytes fed to the generic session so
	// they can be replayed into the rebound session.
	helloRaw []byte

	// session is the owned resource slot: at most one live handshake
	// session at any instant.
	session engine.Session

	// selectedKey is the key the selection callback picked. When
	// keyCloned is set it is a connection-owned clone with an OCSP
	// staple attached, released at teardown; otherwise it aliases the
	// shared registry key and is never released here.
	selectedKey *engine.CertifiedKey
	keyCloned   bool

	// overrideKeys is the connection-owned certificate override used by
	// challenge protocols. Distinct ownership class from registry keys.
	overrideKeys []*engine.CertifiedKey

	// negotiated values, immutable once state reaches StatePostHandshake
	protocol    string
	versionID   uint16
	versionName string
	cipherID    uint16
	cipherName  string
	peerCerts   []*x509.Certificate

	serviceUnavailable bool
	lastErr            error
	closed             bool

	// handshakeStart is set when the generic session is created, for
	// handshake duration metrics.
	handshakeStart time.Time
}

// New creates a connection record bound to the initial (default) vhost.
func New(initial *policy.ServerPolicy) *Conn {
	return &Conn{
		id:       uuid.NewString(),
		state:    StateInit,
		policy:   initial,
		protocol: policy.ProtocolHTTP11,
	}
}

// ID returns the connection identity used in logs and callbacks.
func (c *Conn) ID() string { return c.id }

// State returns the current handshake phase.
func (c *Conn) State() State { return c.state }

// Policy returns the currently resolved vhost policy.
func (c *Conn) Policy() *policy.ServerPolicy { return c.policy }

// SNI returns the hostname from the client hello, empty when absent.
func (c *Conn) SNI() string { return c.sni }

// ALPN returns the client-offered protocols in client preference order.
func (c *Conn) ALPN() []string { return c.alpn }

// Protocol returns the application protocol of the connection.
func (c *Conn) Protocol() string { return c.protocol }

// NegotiatedVersion returns the negotiated protocol version id and name.
func (c *Conn) NegotiatedVersion() (uint16, string) { return c.versionID, c.versionName }

// NegotiatedCipher returns the negotiated cipher suite id and name.
func (c *Conn) NegotiatedCipher() (uint16, string) { return c.cipherID, c.cipherName }

// PeerCertificates returns the client certificate chain, leaf first,
// or nil.
func (c *Conn) PeerCertificates() []*x509.Certificate { return c.peerCerts }

// ServiceUnavailable reports whether requests on this connection are
// answered with 503. The flag may diverge from the policy's static flag
// under relaxed SNI matching and challenge protocols.
func (c *Conn) ServiceUnavailable() bool { return c.serviceUnavailable }

// LastError returns the error that disabled the connection, if any.
func (c *Conn) LastError() error { return c.lastErr }

// Session returns the live handshake session, or nil.
func (c *Conn) Session() engine.Session { return c.session }

// setPolicy switches the resolved server. The switch happens at most
// once, at hello time; later calls to a different policy are a
// programming error guarded by the orchestrator.
func (c *Conn) setPolicy(p *policy.ServerPolicy) {
	c.policy = p
}

// replaceSession releases the current session, then stores the new one.
// The release-then-store order guarantees two sessions are never alive
// at once.
func (c *Conn) replaceSession(s engine.Session) {
	if c.session != nil {
		c.session.Close()
		c.session = nil
	}
	c.session = s
}

// disable moves the connection to the terminal Disabled state.
func (c *Conn) disable(err error) {
	if err != nil {
		c.lastErr = err
	}
	c.state = StateDisabled
}

// Close releases the connection's owned resources in order: the live
// session, the cloned selected key, the certificate override. Each is
// released exactly once; Close is idempotent.
func (c *Conn) Close() {
	if c.closed {
		return
	}
	c.closed = true

	if c.session != nil {
		c.session.Close()
		c.session = nil
	}
	if c.keyCloned && c.selectedKey != nil {
		// connection-owned clone; the shared registry key is untouched
		c.selectedKey = nil
		c.keyCloned = false
	}
	c.overrideKeys = nil
}
