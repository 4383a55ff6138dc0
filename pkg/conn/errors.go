package conn

import (
	"errors"
	"fmt"
)

// Handshake failure causes wrapped into a HandshakeError by the
// orchestrator.
var (
	// ErrNoSession means bytes arrived for a connection without a live
	// handshake session.
	ErrNoSession = errors.New("no live handshake session")

	// ErrIncompleteNegotiation means the engine reported the handshake
	// complete without a negotiated version or cipher.
	ErrIncompleteNegotiation = errors.New("handshake completed without negotiated parameters")

	// ErrNoClientCertificate means mandatory client authentication
	// finished without a client certificate.
	ErrNoClientCertificate = errors.New("client certificate required but none presented")
)

// RoutingError reports an SNI resolution failure. It aborts the single
// connection it occurred on; other connections are unaffected.
type RoutingError struct {
	ConnID string
	SNI    string
	Reason string
}

// Error implements the error interface.
func (e *RoutingError) Error() string {
	return fmt.Sprintf("routing error [conn=%s, sni=%q]: %s", e.ConnID, e.SNI, e.Reason)
}

// HandshakeError reports a handshake failure on a live connection,
// carrying the connection and server identity alongside the engine
// cause.
type HandshakeError struct {
	ConnID string
	Server string
	Phase  string
	Cause  error
}

// Error implements the error interface.
func (e *HandshakeError) Error() string {
	return fmt.Sprintf("handshake error [conn=%s, server=%s, phase=%s]: %v",
		e.ConnID, e.Server, e.Phase, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *HandshakeError) Unwrap() error {
	return e.Cause
}
