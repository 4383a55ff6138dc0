// Package server accepts TCP connections and drives them through the
// TLS handshake orchestration. It implements the layer the orchestrator
// calls back into (application protocol selection, challenge solving,
// variable export), contributes managed certificates during policy
// compilation, and applies the request admission gate to established
// connections.
package server
