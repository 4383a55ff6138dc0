package server

import (
	"fmt"
	"sync"

	"github.com/TaIos/mod-tls/pkg/conn"
	"github.com/TaIos/mod-tls/pkg/policy"
	"github.com/TaIos/mod-tls/pkg/telemetry/logging"
)

// ChallengeSolver answers a provisioning challenge protocol (ACME
// tls-alpn-01 and the like) with a short-lived certificate for the
// challenged domain.
type ChallengeSolver interface {
	// Answer returns the challenge certificate in PEM form.
	Answer(domain string) (certPEM, keyPEM []byte, err error)
}

// Layer is the server side of the handshake orchestration: it selects
// application protocols with server preference, dispatches provisioning
// challenges to registered solvers, and holds the per-connection
// variables exported after the handshake.
type Layer struct {
	// preference is the server's application protocol order.
	preference []string

	logger *logging.Logger

	mu      sync.RWMutex
	solvers map[string]ChallengeSolver
	vars    map[string]map[string]string
}

// NewLayer creates the layer with the given protocol preference;
// nil means h2 first, http/1.1 second.
func NewLayer(preference []string, logger *logging.Logger) *Layer {
	if len(preference) == 0 {
		preference = []string{policy.ProtocolHTTP2, policy.ProtocolHTTP11}
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Layer{
		preference: append([]string(nil), preference...),
		logger:     logger,
		solvers:    make(map[string]ChallengeSolver),
		vars:       make(map[string]map[string]string),
	}
}

// RegisterSolver installs a challenge solver for an ALPN protocol
// identifier, e.g. "acme-tls/1". Registration happens at startup,
// before connections flow.
func (l *Layer) RegisterSolver(protocol string, solver ChallengeSolver) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.solvers[protocol] = solver
}

// SelectProtocol picks the application protocol for a connection. A
// challenge protocol with a registered solver wins over everything;
// otherwise the server's preference order decides among the client's
// offer.
func (l *Layer) SelectProtocol(c *conn.Conn, offered []string) string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, p := range offered {
		if _, ok := l.solvers[p]; ok {
			return p
		}
	}
	for _, p := range l.preference {
		for _, o := range offered {
			if p == o {
				return p
			}
		}
	}
	return ""
}

// SwitchProtocol is called before the handshake resumes under the
// selected protocol. The byte-level handling is identical for h2 and
// http/1.1 at this layer, so only the switch itself is recorded.
func (l *Layer) SwitchProtocol(c *conn.Conn, protocol string) error {
	l.logger.WithConn(c.ID()).Debug("switching application protocol", "protocol", protocol)
	return nil
}

// AnswerChallenge dispatches to the solver registered for the protocol.
func (l *Layer) AnswerChallenge(c *conn.Conn, protocol string) (certPEM, keyPEM []byte, err error) {
	l.mu.RLock()
	solver, ok := l.solvers[protocol]
	l.mu.RUnlock()
	if !ok {
		return nil, nil, fmt.Errorf("no solver registered for challenge protocol %q", protocol)
	}
	return solver.Answer(c.SNI())
}

// ExportVariable records a negotiated value for the connection.
func (l *Layer) ExportVariable(c *conn.Conn, name, value string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	vars := l.vars[c.ID()]
	if vars == nil {
		vars = make(map[string]string)
		l.vars[c.ID()] = vars
	}
	vars[name] = value
}

// Variable returns an exported value for a connection, "" when unset.
func (l *Layer) Variable(connID, name string) string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.vars[connID][name]
}

// Forget drops the exported variables of a finished connection.
func (l *Layer) Forget(connID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.vars, connID)
}
