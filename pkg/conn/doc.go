// Package conn drives individual TLS connections through a two-phase
// handshake.
//
// Phase 1 runs a throwaway session compiled only to observe the client
// hello; once the SNI hostname and ALPN offer are captured, phase 2
// resolves the virtual host, applies application protocol selection,
// and rebinds the connection to a session built from the resolved
// server's context, replaying the buffered hello bytes. A connection
// owns at most one live session at any instant.
//
// Each connection is processed by exactly one worker at a time, so the
// Conn record carries no locks. The Orchestrator is shared and
// stateless beyond its collaborators.
package conn
