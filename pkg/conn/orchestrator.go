package conn

import (
	"time"

	"github.com/TaIos/mod-tls/pkg/cert"
	"github.com/TaIos/mod-tls/pkg/engine"
	"github.com/TaIos/mod-tls/pkg/policy"
	"github.com/TaIos/mod-tls/pkg/telemetry/logging"
	"github.com/TaIos/mod-tls/pkg/telemetry/metrics"
)

// Layer is the surrounding server layer the orchestrator calls back
// into when the handshake touches application concerns: application
// protocol selection, protocol switching, provisioning challenges, and
// variable export into request processing.
type Layer interface {
	// SelectProtocol picks the application protocol for a connection
	// from the client's ALPN offer, in client preference order. An
	// empty return keeps the http/1.1 baseline.
	SelectProtocol(c *Conn, offered []string) string

	// SwitchProtocol installs handling for a protocol other than the
	// baseline before the handshake resumes.
	SwitchProtocol(c *Conn, protocol string) error

	// AnswerChallenge supplies the certificate answering a provisioning
	// challenge protocol (ACME tls-alpn-01 and the like), in PEM form.
	AnswerChallenge(c *Conn, protocol string) (certPEM, keyPEM []byte, err error)

	// ExportVariable publishes a negotiated value to request
	// processing, e.g. SSL_PROTOCOL.
	ExportVariable(c *Conn, name, value string)
}

// Variable names exported to the surrounding layer after the handshake.
const (
	VarProtocol      = "SSL_PROTOCOL"
	VarCipher        = "SSL_CIPHER"
	VarSNI           = "SSL_TLS_SNI"
	VarClientSubject = "SSL_CLIENT_S_DN"
)

// Orchestrator drives connections through the two-phase handshake: a
// generic hello-capturing session first, then a session rebound to the
// context of the server the client hello resolved to.
//
// One orchestrator serves all connections; per-connection state lives
// entirely on the Conn, so the orchestrator itself needs no locking.
type Orchestrator struct {
	reg     *policy.Registry
	layer   Layer
	logger  *logging.Logger
	metrics *metrics.Collector
}

// NewOrchestrator wires the orchestrator to the compiled registry and
// the surrounding server layer. The layer may be nil, which disables
// protocol switching and challenge answering.
func NewOrchestrator(reg *policy.Registry, layer Layer, logger *logging.Logger, collector *metrics.Collector) *Orchestrator {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Orchestrator{
		reg:     reg,
		layer:   layer,
		logger:  logger,
		metrics: collector,
	}
}

// NewConn creates a connection record bound to the default server.
func (o *Orchestrator) NewConn() *Conn {
	return New(o.reg.Default)
}

// Start decides whether TLS runs on the connection and, if so, creates
// the generic hello-capturing session. A connection that Start disables
// stays disabled; every other transition is driven by Feed.
func (o *Orchestrator) Start(c *Conn) error {
	if c.state != StateInit {
		return nil
	}
	if c.policy == nil || !c.policy.Enabled {
		c.disable(nil)
		o.logger.WithConn(c.id).Debug("TLS not enabled for connection")
		return nil
	}

	c.state = StatePreHandshake
	c.serviceUnavailable = c.policy.ServiceUnavailable

	sess, err := o.reg.Engine().NewSession(o.reg.HelloContext, c)
	if err != nil {
		return o.fail(c, "pre_handshake", err)
	}
	c.replaceSession(sess)
	c.handshakeStart = time.Now()
	c.state = StateHandshakeGeneric
	o.metrics.ConnOpened()
	return nil
}

// Feed hands client bytes to the live session and advances the state
// machine: it triggers the rebind once the client hello has been
// captured and finalizes the connection when the handshake completes.
// The returned bytes are what the engine wants written back to the
// client; the caller owns the transfer.
func (o *Orchestrator) Feed(c *Conn, b []byte) ([]byte, error) {
	if c.state == StateDisabled {
		return nil, c.lastErr
	}
	if c.session == nil {
		return nil, o.fail(c, "feed", ErrNoSession)
	}

	// phase 1: buffer the bytes going into the throwaway session so
	// they can be replayed into the rebound one
	if c.state == StateHandshakeGeneric {
		c.helloRaw = append(c.helloRaw, b...)
		if _, err := c.session.Feed(b); err != nil {
			return nil, o.fail(c, "hello_capture", err)
		}
		if !c.helloSeen {
			// hello still incomplete, nothing to send yet
			return c.session.Flush(), nil
		}
		if err := o.rebind(c); err != nil {
			return nil, err
		}
	} else if _, err := c.session.Feed(b); err != nil {
		return nil, o.fail(c, "handshake", err)
	}

	out := c.session.Flush()
	if c.state == StateHandshakeBound && !c.session.IsHandshaking() {
		if err := o.finishHandshake(c); err != nil {
			return out, err
		}
	}
	return out, nil
}

// rebind resolves the client hello to a server, applies application
// protocol selection, and replaces the generic session with one bound
// to the resolved server's context. The hello bytes buffered during
// phase 1 are replayed into the new session.
func (o *Orchestrator) rebind(c *Conn) error {
	log := o.logger.WithConn(c.id)

	// 2a: SNI resolution
	if c.sni != "" {
		switch matched := o.reg.MatchServer(c.sni); {
		case matched != nil:
			c.setPolicy(matched)
			c.serviceUnavailable = matched.ServiceUnavailable
		case c.policy.StrictSNI:
			err := &RoutingError{ConnID: c.id, SNI: c.sni, Reason: "no virtual host matches the SNI hostname"}
			o.metrics.RecordHandshake(c.policy.Name, metrics.ResultRouting, 0)
			c.disable(err)
			log.Warn("refusing connection", "sni", c.sni, "error", err)
			return err
		default:
			// relaxed checking keeps the current server; it is going to
			// serve real requests, so the 503 marker is cleared
			c.serviceUnavailable = false
			log.Debug("no virtual host matches the SNI hostname, keeping current server",
				"sni", c.sni, "server", c.policy.Name)
		}
	}
	// without SNI the initial server and its availability marker stand

	log.Debug("client hello resolved",
		"sni", c.sni,
		"server", c.policy.Name,
		"alpn", c.alpn,
	)

	// 2b: application protocol selection
	derived := c.policy.Context.DerivedConfig()
	if len(c.alpn) > 0 && o.layer != nil {
		selected := o.layer.SelectProtocol(c, c.alpn)
		if selected != "" && selected != c.protocol {
			if selected != policy.ProtocolHTTP11 && selected != policy.ProtocolHTTP2 {
				if err := o.answerChallenge(c, selected); err != nil {
					return o.fail(c, "challenge", err)
				}
			}
			if err := o.layer.SwitchProtocol(c, selected); err != nil {
				return o.fail(c, "protocol_switch", err)
			}
			c.protocol = selected
			log.Debug("application protocol switched", "protocol", selected)
		}
		if c.protocol != "" {
			// the bound context advertises only the settled protocol
			derived.ALPNProtos = []string{c.protocol}
		}
	}

	// 2c: release the generic session, construct the bound one, replay
	boundCtx, err := o.reg.Engine().NewContext(derived)
	if err != nil {
		return o.fail(c, "rebind", err)
	}
	sess, err := o.reg.Engine().NewSession(boundCtx, c)
	if err != nil {
		return o.fail(c, "rebind", err)
	}
	c.replaceSession(sess)
	c.state = StateHandshakeBound

	raw := c.helloRaw
	c.helloRaw = nil
	if _, err := sess.Feed(raw); err != nil {
		return o.fail(c, "handshake", err)
	}
	return nil
}

// answerChallenge installs the connection-owned certificate override
// answering a provisioning challenge. A connection serving a challenge
// never serves requests.
func (o *Orchestrator) answerChallenge(c *Conn, protocol string) error {
	certPEM, keyPEM, err := o.layer.AnswerChallenge(c, protocol)
	if err != nil {
		return err
	}
	key, err := cert.LoadCertifiedKey(&cert.Spec{
		CertPEM: string(certPEM),
		KeyPEM:  string(keyPEM),
	})
	if err != nil {
		return err
	}
	c.overrideKeys = []*engine.CertifiedKey{key}
	c.serviceUnavailable = true
	o.logger.WithConn(c.id).Info("answering provisioning challenge",
		"protocol", protocol, "server", c.policy.Name)
	return nil
}

// finishHandshake collects the negotiated values, enforces mandatory
// client authentication, and exports the connection variables. After it
// returns, the negotiated values on the Conn never change again.
func (o *Orchestrator) finishHandshake(c *Conn) error {
	log := o.logger.WithConn(c.id).WithServer(c.policy.Name)

	version, ok := c.session.NegotiatedVersion()
	if !ok {
		return o.fail(c, "finish", ErrIncompleteNegotiation)
	}
	cipher, ok := c.session.NegotiatedCipher()
	if !ok {
		return o.fail(c, "finish", ErrIncompleteNegotiation)
	}
	c.versionID = version
	c.versionName = o.reg.Table.VersionName(version)
	c.cipherID = cipher
	c.cipherName = o.reg.Table.CipherName(cipher)

	if alpn := c.session.NegotiatedALPN(); alpn != "" {
		c.protocol = alpn
	}

	for i := 0; ; i++ {
		peer := c.session.PeerCertificate(i)
		if peer == nil {
			break
		}
		c.peerCerts = append(c.peerCerts, peer)
	}
	if c.policy.ClientAuth == engine.ClientAuthRequired && len(c.peerCerts) == 0 {
		return o.fail(c, "client_auth", ErrNoClientCertificate)
	}

	if o.layer != nil {
		o.layer.ExportVariable(c, VarProtocol, c.versionName)
		o.layer.ExportVariable(c, VarCipher, c.cipherName)
		if c.sni != "" {
			o.layer.ExportVariable(c, VarSNI, c.sni)
		}
		if len(c.peerCerts) > 0 {
			o.layer.ExportVariable(c, VarClientSubject, c.peerCerts[0].Subject.String())
		}
	}

	c.state = StatePostHandshake
	o.metrics.RecordHandshake(c.policy.Name, metrics.ResultCompleted, time.Since(c.handshakeStart))
	log.Info("handshake completed",
		"version", c.versionName,
		"cipher", c.cipherName,
		"protocol", c.protocol,
		"client_cert", len(c.peerCerts) > 0,
	)
	return nil
}

// Teardown releases the connection's owned resources. Idempotent.
func (o *Orchestrator) Teardown(c *Conn) {
	if c.closed {
		return
	}
	if !c.handshakeStart.IsZero() {
		o.metrics.ConnClosed()
	}
	c.Close()
}

// fail disables the connection and records the failure. The session is
// kept alive so the caller can still flush a close alert; Teardown
// releases it.
func (o *Orchestrator) fail(c *Conn, phase string, err error) error {
	herr := &HandshakeError{
		ConnID: c.id,
		Server: c.policy.Name,
		Phase:  phase,
		Cause:  err,
	}
	o.metrics.RecordHandshake(c.policy.Name, metrics.ResultFailed, 0)
	c.disable(herr)
	o.logger.WithConn(c.id).Error("handshake failed", "phase", phase, "error", err)
	return herr
}
