package gate_test

import (
	"testing"

	"github.com/TaIos/mod-tls/internal/enginetest"
	"github.com/TaIos/mod-tls/pkg/cert"
	"github.com/TaIos/mod-tls/pkg/config"
	"github.com/TaIos/mod-tls/pkg/conn"
	"github.com/TaIos/mod-tls/pkg/engine"
	"github.com/TaIos/mod-tls/pkg/gate"
	"github.com/TaIos/mod-tls/pkg/policy"
)

func inlineCert(t *testing.T, hostname string) config.CertificateConfig {
	t.Helper()
	certPEM, keyPEM, err := cert.GenerateSelfSigned(hostname)
	if err != nil {
		t.Fatalf("GenerateSelfSigned: %v", err)
	}
	return config.CertificateConfig{CertPEM: certPEM, KeyPEM: keyPEM}
}

// establish compiles the vhosts, runs one connection through the
// handshake with the scripted hello, and returns the pieces a gate
// check needs.
func establish(t *testing.T, e *enginetest.Engine, vhosts ...config.VHostConfig) (*policy.Registry, *gate.Gate, *conn.Conn) {
	t.Helper()
	cfg := &config.Config{
		Listen:       []string{"*:8443"},
		SessionCache: "none",
		VHosts:       vhosts,
	}
	config.ApplyDefaults(cfg)

	var orch *conn.Orchestrator
	reg, err := policy.Initialize(cfg, policy.Deps{
		Engine:       e,
		HelloCapture: conn.CaptureHello,
		SelectKey: func(userdata any, hello *engine.ClientHello) *engine.CertifiedKey {
			return orch.SelectCertifiedKey(userdata, hello)
		},
	})
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	t.Cleanup(func() { reg.Close() })
	orch = conn.NewOrchestrator(reg, nil, nil, nil)

	c := orch.NewConn()
	t.Cleanup(func() { orch.Teardown(c) })
	if err := orch.Start(c); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := orch.Feed(c, []byte("hello")); err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if c.State() != conn.StatePostHandshake {
		t.Fatalf("connection not established, state = %s", c.State())
	}
	return reg, gate.New(reg, nil), c
}

func TestAllowed(t *testing.T) {
	e := enginetest.NewEngine(&engine.ClientHello{ServerName: "a.example.org"})
	_, g, c := establish(t, e,
		config.VHostConfig{Name: "a.example.org", Certificates: []config.CertificateConfig{inlineCert(t, "a.example.org")}},
	)

	if d := g.Check(c, nil); d != gate.Allowed {
		t.Errorf("Check = %s, want allowed", d)
	}
	if d := g.Check(c, c.Policy()); d != gate.Allowed {
		t.Errorf("Check against own server = %s, want allowed", d)
	}
}

func TestDeclinedBeforeHandshake(t *testing.T) {
	e := enginetest.NewEngine(&engine.ClientHello{ServerName: "a.example.org"})
	_, g, _ := establish(t, e,
		config.VHostConfig{Name: "a.example.org", Certificates: []config.CertificateConfig{inlineCert(t, "a.example.org")}},
	)

	fresh := conn.New(nil)
	if d := g.Check(fresh, nil); d != gate.Declined {
		t.Errorf("Check on un-handshaken connection = %s, want declined", d)
	}
}

func TestUnavailableOnFallbackCertificates(t *testing.T) {
	e := enginetest.NewEngine(&engine.ClientHello{ServerName: "a.example.org"})
	_, g, c := establish(t, e,
		// no certificates: compiled onto a self-signed fallback
		config.VHostConfig{Name: "a.example.org"},
	)

	d := g.Check(c, nil)
	if d != gate.Unavailable {
		t.Fatalf("Check = %s, want unavailable", d)
	}
	if d.HTTPStatus() != 503 {
		t.Errorf("HTTPStatus = %d, want 503", d.HTTPStatus())
	}
}

func TestForbiddenWithoutSNIUnderVHostRouting(t *testing.T) {
	e := enginetest.NewEngine(&engine.ClientHello{}) // no SNI
	_, g, c := establish(t, e,
		config.VHostConfig{Name: "a.example.org", Default: true, Certificates: []config.CertificateConfig{inlineCert(t, "a.example.org")}},
		config.VHostConfig{Name: "b.example.org", Certificates: []config.CertificateConfig{inlineCert(t, "b.example.org")}},
	)

	d := g.Check(c, nil)
	if d != gate.Forbidden {
		t.Fatalf("Check = %s, want forbidden", d)
	}
	if d.HTTPStatus() != 403 {
		t.Errorf("HTTPStatus = %d, want 403", d.HTTPStatus())
	}
}

func TestNoSNISingleVHostIsAllowed(t *testing.T) {
	e := enginetest.NewEngine(&engine.ClientHello{})
	_, g, c := establish(t, e,
		config.VHostConfig{Name: "only.example.org", Default: true, Certificates: []config.CertificateConfig{inlineCert(t, "only.example.org")}},
	)

	if d := g.Check(c, nil); d != gate.Allowed {
		t.Errorf("Check = %s, want allowed without vhost routing", d)
	}
}

func TestMisdirectedOnVersionFloor(t *testing.T) {
	e := enginetest.NewEngine(&engine.ClientHello{ServerName: "a.example.org"})
	e.Version = 0x0303 // connection negotiates TLS 1.2

	reg, g, c := establish(t, e,
		config.VHostConfig{Name: "a.example.org", Certificates: []config.CertificateConfig{inlineCert(t, "a.example.org")}},
		config.VHostConfig{
			Name:         "strict.example.org",
			MinVersion:   "1.3",
			Certificates: []config.CertificateConfig{inlineCert(t, "strict.example.org")},
		},
	)

	d := g.Check(c, reg.Policy("strict.example.org"))
	if d != gate.Misdirected {
		t.Fatalf("Check = %s, want misdirected", d)
	}
	if d.HTTPStatus() != 421 {
		t.Errorf("HTTPStatus = %d, want 421", d.HTTPStatus())
	}
}

func TestMisdirectedOnSuppressedCipher(t *testing.T) {
	e := enginetest.NewEngine(&engine.ClientHello{ServerName: "a.example.org"})
	// connection negotiates TLS_AES_128_GCM_SHA256 (0x1301)

	reg, g, c := establish(t, e,
		config.VHostConfig{Name: "a.example.org", Certificates: []config.CertificateConfig{inlineCert(t, "a.example.org")}},
		config.VHostConfig{
			Name:            "picky.example.org",
			SuppressCiphers: []string{"TLS_AES_128_GCM_SHA256"},
			Certificates:    []config.CertificateConfig{inlineCert(t, "picky.example.org")},
		},
	)

	if d := g.Check(c, reg.Policy("picky.example.org")); d != gate.Misdirected {
		t.Errorf("Check = %s, want misdirected", d)
	}
	// a target without constraints accepts the connection parameters
	if d := g.Check(c, reg.Policy("a.example.org")); d != gate.Allowed {
		t.Errorf("Check against compatible target = %s, want allowed", d)
	}
}
