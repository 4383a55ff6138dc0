// Package enginetest provides a scripted TLS engine for tests. The fake
// engine delivers a configured client hello to the context callback on
// the first Feed, completes the handshake when the callback selected a
// certificate, and records every created session so tests can assert
// resource ownership.
package enginetest

import (
	"crypto/x509"
	"errors"
	"fmt"
	"sync"

	"github.com/TaIos/mod-tls/pkg/engine"
)

// Default capability script: TLS 1.3 and 1.2, three suites.
var (
	DefaultVersions = []uint16{0x0304, 0x0303}
	DefaultCiphers  = []uint16{0x1301, 0x1302, 0xc02f}
)

// Engine is a scripted engine.Engine. Configure the script before
// creating sessions; the zero value serves the defaults.
type Engine struct {
	// Versions and Ciphers override the default capability script.
	Versions []uint16
	Ciphers  []uint16

	// Hello is delivered to the context callback on the first Feed.
	Hello *engine.ClientHello

	// Negotiated values reported once the handshake completes.
	Version uint16
	Cipher  uint16

	// PeerChain is the client certificate chain, leaf first.
	PeerChain []*x509.Certificate

	// FeedErr, when set, fails every Feed.
	FeedErr error

	// ContextErr, when set, fails NewContext.
	ContextErr error

	mu       sync.Mutex
	sessions []*Session
}

// NewEngine creates a fake engine scripted to deliver the given hello.
func NewEngine(hello *engine.ClientHello) *Engine {
	return &Engine{
		Hello:   hello,
		Version: DefaultVersions[0],
		Cipher:  DefaultCiphers[0],
	}
}

func (e *Engine) SupportedVersions() []uint16 {
	if e.Versions != nil {
		return e.Versions
	}
	return DefaultVersions
}

func (e *Engine) SupportedCiphers() []uint16 {
	if e.Ciphers != nil {
		return e.Ciphers
	}
	return DefaultCiphers
}

func (e *Engine) VersionName(id uint16) string {
	switch id {
	case 0x0304:
		return "TLSv1.3"
	case 0x0303:
		return "TLSv1.2"
	default:
		return fmt.Sprintf("0x%04x", id)
	}
}

func (e *Engine) CipherName(id uint16) string {
	switch id {
	case 0x1301:
		return "TLS_AES_128_GCM_SHA256"
	case 0x1302:
		return "TLS_AES_256_GCM_SHA384"
	case 0xc02f:
		return "TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256"
	default:
		return fmt.Sprintf("0x%04x", id)
	}
}

func (e *Engine) NewContext(cfg engine.ContextConfig) (engine.Context, error) {
	if e.ContextErr != nil {
		return nil, e.ContextErr
	}
	if cfg.OnClientHello == nil {
		return nil, errors.New("context without hello callback")
	}
	return &Context{cfg: cfg}, nil
}

func (e *Engine) NewSession(ctx engine.Context, userdata any) (engine.Session, error) {
	c, ok := ctx.(*Context)
	if !ok {
		return nil, errors.New("foreign context")
	}
	s := &Session{engine: e, ctx: c, userdata: userdata}
	e.mu.Lock()
	e.sessions = append(e.sessions, s)
	e.mu.Unlock()
	return s, nil
}

// Sessions returns every session the engine created, in order.
func (e *Engine) Sessions() []*Session {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]*Session(nil), e.sessions...)
}

// LiveSessions counts the sessions not yet closed.
func (e *Engine) LiveSessions() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, s := range e.sessions {
		if !s.Closed {
			n++
		}
	}
	return n
}

// Context is the fake compiled context; it just remembers its config.
type Context struct {
	cfg engine.ContextConfig
}

func (c *Context) DerivedConfig() engine.ContextConfig {
	return c.cfg
}

// Config exposes the context configuration to tests.
func (c *Context) Config() engine.ContextConfig {
	return c.cfg
}

// Session is a scripted handshake. The first Feed delivers the hello to
// the context callback; the handshake completes when the callback
// returned a certificate.
type Session struct {
	engine   *Engine
	ctx      *Context
	userdata any

	Fed            []byte
	HelloDelivered bool
	SelectedKey    *engine.CertifiedKey
	Done           bool
	Closed         bool
}

// ContextConfig exposes the configuration of the context the session
// was bound to.
func (s *Session) ContextConfig() engine.ContextConfig {
	return s.ctx.cfg
}

func (s *Session) Feed(b []byte) (int, error) {
	if s.Closed {
		return 0, errors.New("feed on closed session")
	}
	if s.engine.FeedErr != nil {
		return 0, s.engine.FeedErr
	}
	s.Fed = append(s.Fed, b...)

	if !s.HelloDelivered && s.engine.Hello != nil {
		s.HelloDelivered = true
		s.SelectedKey = s.ctx.cfg.OnClientHello(s.userdata, s.engine.Hello)
		if s.SelectedKey != nil {
			s.Done = true
		}
	}
	return len(b), nil
}

func (s *Session) Flush() []byte {
	if s.Done {
		return []byte("server-flight")
	}
	return nil
}

func (s *Session) IsHandshaking() bool {
	return !s.Done
}

func (s *Session) NegotiatedVersion() (uint16, bool) {
	if !s.Done {
		return 0, false
	}
	return s.engine.Version, true
}

func (s *Session) NegotiatedCipher() (uint16, bool) {
	if !s.Done {
		return 0, false
	}
	return s.engine.Cipher, true
}

// NegotiatedALPN intersects the context's advertisement with the
// client's offer, server preference first.
func (s *Session) NegotiatedALPN() string {
	if !s.Done || s.engine.Hello == nil {
		return ""
	}
	for _, p := range s.ctx.cfg.ALPNProtos {
		for _, o := range s.engine.Hello.ALPNProtos {
			if p == o {
				return p
			}
		}
	}
	return ""
}

func (s *Session) PeerCertificate(i int) *x509.Certificate {
	if !s.Done || i >= len(s.engine.PeerChain) {
		return nil
	}
	return s.engine.PeerChain[i]
}

func (s *Session) Close() error {
	s.Closed = true
	return nil
}
