package gate

import (
	"github.com/TaIos/mod-tls/pkg/conn"
	"github.com/TaIos/mod-tls/pkg/policy"
	"github.com/TaIos/mod-tls/pkg/telemetry/metrics"
)

// Decision is the admission outcome for one request on an established
// connection.
type Decision int

const (
	// Allowed admits the request.
	Allowed Decision = iota

	// Declined means this core does not handle the connection; another
	// handler may.
	Declined

	// Unavailable rejects with 503: the connection's server has no real
	// certificates or is answering a provisioning challenge.
	Unavailable

	// Forbidden rejects with 403: the client sent no SNI while
	// name-based virtual host routing is in use.
	Forbidden

	// Misdirected rejects with 421: the request targets a vhost whose
	// policy is incompatible with the negotiated connection parameters.
	Misdirected
)

func (d Decision) String() string {
	switch d {
	case Allowed:
		return "allowed"
	case Declined:
		return "declined"
	case Unavailable:
		return "unavailable"
	case Forbidden:
		return "forbidden"
	case Misdirected:
		return "misdirected"
	default:
		return "unknown"
	}
}

// HTTPStatus maps a rejecting decision to its HTTP status code, 0 for
// decisions that carry none.
func (d Decision) HTTPStatus() int {
	switch d {
	case Unavailable:
		return 503
	case Forbidden:
		return 403
	case Misdirected:
		return 421
	default:
		return 0
	}
}

// Gate decides request admission on established TLS connections.
type Gate struct {
	// VHostRouting states whether name-based virtual host routing is in
	// use: with several vhosts, a request without SNI cannot be routed
	// safely.
	VHostRouting bool

	Metrics *metrics.Collector
}

// New creates the admission gate for a compiled registry.
func New(reg *policy.Registry, collector *metrics.Collector) *Gate {
	return &Gate{
		VHostRouting: reg.EnabledCount() > 1,
		Metrics:      collector,
	}
}

// Check admits or rejects one request. The target is the vhost the
// request addresses (by Host header), which may differ from the vhost
// the connection negotiated under; nil means the connection's own
// server.
func (g *Gate) Check(c *conn.Conn, target *policy.ServerPolicy) Decision {
	d := g.decide(c, target)
	g.Metrics.RecordGateDecision(d.String())
	return d
}

func (g *Gate) decide(c *conn.Conn, target *policy.ServerPolicy) Decision {
	if c.State() != conn.StatePostHandshake {
		return Declined
	}
	if c.ServiceUnavailable() {
		return Unavailable
	}
	if c.SNI() == "" && g.VHostRouting {
		return Forbidden
	}
	if target != nil {
		version, _ := c.NegotiatedVersion()
		cipher, _ := c.NegotiatedCipher()
		if !c.Policy().CompatibleWith(target, version, cipher) {
			return Misdirected
		}
	}
	return Allowed
}
