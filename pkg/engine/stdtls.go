package engine

import (
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"encoding/hex"
	"io"
	"net"
	"sync"
	"time"
)

// Engine error codes reported by the standard library backed engine.
const (
	CodeInternal      = 1
	CodeNoCertificate = 2
	CodeBadConfig     = 3
	CodeClosed        = 4
)

// StdEngine implements Engine on top of crypto/tls. Handshake bytes are
// fed explicitly through Session.Feed and drained through Session.Flush;
// the engine never touches a network socket itself.
type StdEngine struct{}

// NewStd returns the crypto/tls backed engine.
func NewStd() *StdEngine {
	return &StdEngine{}
}

// SupportedVersions lists the protocol versions crypto/tls serves,
// newest first.
func (e *StdEngine) SupportedVersions() []uint16 {
	return []uint16{tls.VersionTLS13, tls.VersionTLS12}
}

// SupportedCiphers lists the cipher suite ids crypto/tls considers
// secure, in its default preference order.
func (e *StdEngine) SupportedCiphers() []uint16 {
	suites := tls.CipherSuites()
	ids := make([]uint16, 0, len(suites))
	for _, s := range suites {
		ids = append(ids, s.ID)
	}
	return ids
}

// VersionName returns the display name for a version id.
func (e *StdEngine) VersionName(id uint16) string {
	return tls.VersionName(id)
}

// CipherName returns the IANA name for a cipher suite id.
func (e *StdEngine) CipherName(id uint16) string {
	return tls.CipherSuiteName(id)
}

type stdContext struct {
	cfg ContextConfig
}

// NewContext compiles an immutable server context.
func (e *StdEngine) NewContext(cfg ContextConfig) (Context, error) {
	if cfg.OnClientHello == nil {
		return nil, NewError("new_context", CodeBadConfig, "hello callback is required", nil)
	}
	if cfg.ClientAuth != ClientAuthNone && cfg.ClientCAs == nil {
		return nil, NewError("new_context", CodeBadConfig, "client auth without trust anchors", nil)
	}
	return &stdContext{cfg: cfg}, nil
}

// DerivedConfig returns a copy of the context's configuration.
func (c *stdContext) DerivedConfig() ContextConfig {
	cfg := c.cfg
	cfg.Versions = append([]uint16(nil), c.cfg.Versions...)
	cfg.CipherSuites = append([]uint16(nil), c.cfg.CipherSuites...)
	cfg.ALPNProtos = append([]string(nil), c.cfg.ALPNProtos...)
	return cfg
}

// NewSession creates a handshake session bound to a context.
func (e *StdEngine) NewSession(ctx Context, userdata any) (Session, error) {
	sc, ok := ctx.(*stdContext)
	if !ok {
		return nil, NewError("new_session", CodeBadConfig, "context not built by this engine", nil)
	}

	s := &stdSession{
		in:   newFeedPipe(),
		done: make(chan struct{}),
	}
	s.conn = tls.Server(&sessionConn{s: s}, e.tlsConfig(sc.cfg, userdata))

	go func() {
		s.hsErr = s.conn.Handshake()
		s.in.unblock()
		close(s.done)
	}()

	return s, nil
}

// tlsConfig translates a ContextConfig into a crypto/tls server config.
func (e *StdEngine) tlsConfig(cfg ContextConfig, userdata any) *tls.Config {
	tc := &tls.Config{
		NextProtos:   append([]string(nil), cfg.ALPNProtos...),
		ClientCAs:    cfg.ClientCAs,
		CipherSuites: append([]uint16(nil), cfg.CipherSuites...),
	}

	// cfg.IgnoreClientOrder has no translation: crypto/tls applies its
	// own cipher preference and dropped the server-order knob in Go 1.17.
	// The configured suite order above is all the control available.

	switch cfg.ClientAuth {
	case ClientAuthOptional:
		tc.ClientAuth = tls.VerifyClientCertIfGiven
	case ClientAuthRequired:
		tc.ClientAuth = tls.RequireAndVerifyClientCert
	}

	if store := cfg.SessionStore; store != nil {
		tc.WrapSession = func(cs tls.ConnectionState, ss *tls.SessionState) ([]byte, error) {
			data, err := ss.Bytes()
			if err != nil {
				return nil, err
			}
			id := make([]byte, 16)
			if _, err := rand.Read(id); err != nil {
				return nil, err
			}
			key := hex.EncodeToString(id)
			if err := store.Put(key, data); err != nil {
				return nil, err
			}
			return []byte(key), nil
		}
		tc.UnwrapSession = func(identity []byte, cs tls.ConnectionState) (*tls.SessionState, error) {
			data, ok := store.Get(string(identity))
			if !ok {
				return nil, nil
			}
			ss, err := tls.ParseSessionState(data)
			if err != nil {
				// corrupt entry; fall back to a full handshake
				store.Remove(string(identity))
				return nil, nil
			}
			return ss, nil
		}
	}

	for _, v := range cfg.Versions {
		if tc.MinVersion == 0 || v < tc.MinVersion {
			tc.MinVersion = v
		}
		if v > tc.MaxVersion {
			tc.MaxVersion = v
		}
	}

	tc.GetCertificate = func(chi *tls.ClientHelloInfo) (*tls.Certificate, error) {
		key := cfg.OnClientHello(userdata, helloFromInfo(chi))
		if key == nil {
			return nil, NewError("select_key", CodeNoCertificate, "no certificate selected", nil)
		}
		return &tls.Certificate{
			Certificate: key.Chain,
			PrivateKey:  key.PrivateKey,
			Leaf:        key.Leaf,
			OCSPStaple:  key.OCSPStaple,
		}, nil
	}

	return tc
}

// helloFromInfo converts the crypto/tls hello into the engine contract.
func helloFromInfo(chi *tls.ClientHelloInfo) *ClientHello {
	hello := &ClientHello{
		ServerName:   chi.ServerName,
		ALPNProtos:   append([]string(nil), chi.SupportedProtos...),
		CipherSuites: append([]uint16(nil), chi.CipherSuites...),
	}
	for _, s := range chi.SignatureSchemes {
		hello.SignatureSchemes = append(hello.SignatureSchemes, uint16(s))
	}
	return hello
}

// stdSession is one live handshake over an in-memory byte pipe.
type stdSession struct {
	conn *tls.Conn
	in   *feedPipe
	done chan struct{}

	outMu sync.Mutex
	out   []byte

	closeOnce sync.Once
	hsErr     error
}

// Feed hands raw client bytes to the handshake. It returns once the
// engine has consumed them and gone back to waiting for input, so
// callback side effects (hello capture, certificate selection) are
// visible to the caller afterwards.
func (s *stdSession) Feed(b []byte) (int, error) {
	n, err := s.in.write(b)
	if err != nil {
		return n, NewError("feed", CodeClosed, "session input closed", err)
	}
	s.in.waitIdle(s.done)
	return n, nil
}

// Flush drains the bytes the engine wants sent to the client.
func (s *stdSession) Flush() []byte {
	s.outMu.Lock()
	defer s.outMu.Unlock()
	out := s.out
	s.out = nil
	return out
}

// IsHandshaking reports whether the handshake is still in progress.
func (s *stdSession) IsHandshaking() bool {
	select {
	case <-s.done:
		return false
	default:
		return true
	}
}

// HandshakeError returns the terminal handshake error, if any.
func (s *stdSession) HandshakeError() error {
	select {
	case <-s.done:
		return s.hsErr
	default:
		return nil
	}
}

func (s *stdSession) state() (tls.ConnectionState, bool) {
	select {
	case <-s.done:
		if s.hsErr != nil {
			return tls.ConnectionState{}, false
		}
		return s.conn.ConnectionState(), true
	default:
		return tls.ConnectionState{}, false
	}
}

func (s *stdSession) NegotiatedVersion() (uint16, bool) {
	cs, ok := s.state()
	return cs.Version, ok
}

func (s *stdSession) NegotiatedCipher() (uint16, bool) {
	cs, ok := s.state()
	return cs.CipherSuite, ok
}

func (s *stdSession) NegotiatedALPN() string {
	cs, _ := s.state()
	return cs.NegotiatedProtocol
}

func (s *stdSession) PeerCertificate(i int) *x509.Certificate {
	cs, ok := s.state()
	if !ok || i < 0 || i >= len(cs.PeerCertificates) {
		return nil
	}
	return cs.PeerCertificates[i]
}

// Close releases the session. Safe to call exactly once per the
// ownership contract; additional calls are no-ops.
func (s *stdSession) Close() error {
	s.closeOnce.Do(func() {
		s.in.close()
		<-s.done
	})
	return nil
}

// sessionConn adapts the session's byte pipes to net.Conn for tls.Server.
type sessionConn struct {
	s *stdSession
}

func (c *sessionConn) Read(p []byte) (int, error) {
	return c.s.in.read(p)
}

func (c *sessionConn) Write(p []byte) (int, error) {
	c.s.outMu.Lock()
	defer c.s.outMu.Unlock()
	c.s.out = append(c.s.out, p...)
	return len(p), nil
}

func (c *sessionConn) Close() error                       { return nil }
func (c *sessionConn) LocalAddr() net.Addr                { return sessionAddr{} }
func (c *sessionConn) RemoteAddr() net.Addr               { return sessionAddr{} }
func (c *sessionConn) SetDeadline(t time.Time) error      { return nil }
func (c *sessionConn) SetReadDeadline(t time.Time) error  { return nil }
func (c *sessionConn) SetWriteDeadline(t time.Time) error { return nil }

type sessionAddr struct{}

func (sessionAddr) Network() string { return "mem" }
func (sessionAddr) String() string  { return "mem" }

// feedPipe is a blocking byte buffer between Feed and the handshake
// goroutine. Reads block until data arrives or the pipe closes; writers
// can wait until the reader consumed everything and is parked again.
type feedPipe struct {
	mu      sync.Mutex
	cond    *sync.Cond
	buf     []byte
	closed  bool
	stalled bool

	// reading is true while the handshake goroutine is parked in read
	// waiting for more input. An empty buffer alone does not mean the
	// bytes were processed; the reader may still be inside the record
	// layer invoking callbacks.
	reading bool
}

func newFeedPipe() *feedPipe {
	p := &feedPipe{}
	p.cond = sync.NewCond(&p.mu)
	return p
}

func (p *feedPipe) write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return 0, io.ErrClosedPipe
	}
	p.buf = append(p.buf, b...)
	p.cond.Broadcast()
	return len(b), nil
}

func (p *feedPipe) read(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for len(p.buf) == 0 {
		if p.closed || p.stalled {
			return 0, io.EOF
		}
		p.reading = true
		p.cond.Broadcast()
		p.cond.Wait()
		p.reading = false
	}
	n := copy(b, p.buf)
	p.buf = p.buf[n:]
	if len(p.buf) == 0 {
		p.cond.Broadcast()
	}
	return n, nil
}

// waitIdle blocks until the handshake goroutine consumed everything
// written so far and is parked waiting for more input, the handshake
// finished, or the pipe closed. Callbacks triggered by the consumed
// bytes have returned by then.
func (p *feedPipe) waitIdle(done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		default:
		}
		p.mu.Lock()
		if p.closed || p.stalled || (len(p.buf) == 0 && p.reading) {
			p.mu.Unlock()
			return
		}
		p.cond.Wait()
		p.mu.Unlock()
	}
}

// unblock releases a reader waiting for more data without closing the
// pipe for writers that still need an error result.
func (p *feedPipe) unblock() {
	p.mu.Lock()
	p.stalled = true
	p.cond.Broadcast()
	p.mu.Unlock()
}

func (p *feedPipe) close() {
	p.mu.Lock()
	p.closed = true
	p.cond.Broadcast()
	p.mu.Unlock()
}
