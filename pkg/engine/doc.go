// Package engine defines the contract between the TLS negotiation core
// and the TLS engine that performs the actual cryptographic handshake.
//
// The core never parses TLS records or touches network sockets. It
// compiles immutable server contexts (Context), creates handshake
// sessions bound to them (Session), and is re-entered by the engine
// through the hello callback (HelloFunc) when a client hello has been
// parsed. Connection identity travels through the callback as the
// userdata value given to NewSession.
//
// StdEngine is the crypto/tls backed implementation. Other engines can
// be plugged in by implementing the Engine interface.
package engine
