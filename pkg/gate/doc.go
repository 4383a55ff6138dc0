// Package gate decides whether requests on an established TLS
// connection are admitted. A connection that completed its handshake
// can still be refused per request: 503 while the server has no real
// certificates, 403 when name-based routing gets a request without SNI,
// and 421 when the addressed virtual host is incompatible with the
// negotiated protocol version or cipher suite.
package gate
