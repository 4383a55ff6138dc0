package conn

import (
	"github.com/TaIos/mod-tls/pkg/engine"
)

// CaptureHello is the callback of the generic hello-capturing context.
// It records the SNI hostname and the client's ALPN identifiers on the
// connection and never selects a certificate: the generic session's
// only job is to let us observe the hello before a server is chosen.
func CaptureHello(userdata any, hello *engine.ClientHello) *engine.CertifiedKey {
	c, ok := userdata.(*Conn)
	if !ok || c == nil {
		return nil
	}
	c.helloSeen = true
	c.sni = hello.ServerName
	if len(hello.ALPNProtos) > 0 {
		c.alpn = append([]string(nil), hello.ALPNProtos...)
	}
	return nil
}

// SelectCertifiedKey is the certificate selection callback registered
// on every compiled server context. Selection order: a connection-owned
// override key list wins over the resolved server's compiled keys; the
// first key whose signature schemes intersect the client's offer is
// taken. Returning nil fails the handshake.
//
// When a cached OCSP response exists for the chosen key, a clone with
// the response attached is returned instead of the shared original; the
// clone becomes connection-owned and is released at teardown.
func (o *Orchestrator) SelectCertifiedKey(userdata any, hello *engine.ClientHello) *engine.CertifiedKey {
	c, ok := userdata.(*Conn)
	if !ok || c == nil || c.policy == nil {
		return nil
	}

	c.selectedKey = nil
	c.keyCloned = false

	keys := c.overrideKeys
	if len(keys) == 0 {
		keys = c.policy.Keys
	}

	for _, key := range keys {
		if !key.SupportsAnyScheme(hello.SignatureSchemes) {
			continue
		}
		if staple := o.reg.StapledResponse(key.ID); staple != nil {
			clone := key.CloneWithStaple(staple)
			c.selectedKey = clone
			c.keyCloned = true
			return clone
		}
		c.selectedKey = key
		return key
	}

	o.logger.WithConn(c.id).Warn("no certified key matches the client's signature schemes",
		"server", c.policy.Name,
		"offered_schemes", len(hello.SignatureSchemes),
	)
	return nil
}
