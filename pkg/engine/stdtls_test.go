package engine

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"net"
	"sync"
	"testing"
	"time"
)

func TestStdEngineCapabilities(t *testing.T) {
	e := NewStd()

	versions := e.SupportedVersions()
	if len(versions) == 0 {
		t.Fatal("engine reports no protocol versions")
	}
	foundTLS13 := false
	for _, v := range versions {
		if v == 0x0304 {
			foundTLS13 = true
		}
		if e.VersionName(v) == "" {
			t.Errorf("version 0x%04x has no name", v)
		}
	}
	if !foundTLS13 {
		t.Error("TLS 1.3 missing from the capability table")
	}

	ciphers := e.SupportedCiphers()
	if len(ciphers) == 0 {
		t.Fatal("engine reports no cipher suites")
	}
	for _, c := range ciphers {
		if e.CipherName(c) == "" {
			t.Errorf("cipher 0x%04x has no name", c)
		}
	}
}

// clientHelloRecord captures the first flight a real crypto/tls client
// sends, so session tests feed genuine handshake bytes.
func clientHelloRecord(t *testing.T) []byte {
	t.Helper()
	c1, c2 := net.Pipe()
	defer c1.Close()
	defer c2.Close()
	go func() {
		cli := tls.Client(c1, &tls.Config{
			ServerName:         "a.example.org",
			InsecureSkipVerify: true,
			NextProtos:         []string{"h2", "http/1.1"},
		})
		cli.Handshake()
	}()
	c2.SetReadDeadline(time.Now().Add(5 * time.Second))
	buf := make([]byte, 16*1024)
	n, err := c2.Read(buf)
	if err != nil {
		t.Fatalf("reading client hello: %v", err)
	}
	return buf[:n]
}

func testServerKey(t *testing.T) *CertifiedKey {
	t.Helper()
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "a.example.org"},
		DNSNames:     []string{"a.example.org"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &priv.PublicKey, priv)
	if err != nil {
		t.Fatal(err)
	}
	leaf, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatal(err)
	}
	return &CertifiedKey{
		ID:               "test-key",
		Chain:            [][]byte{der},
		Leaf:             leaf,
		PrivateKey:       priv,
		SignatureSchemes: SchemesForKey(priv),
	}
}

// Feed must not return before the hello callback ran: callers read the
// captured hello right after Feed, and a connection whose hello went
// unnoticed never leaves the generic handshake phase. A slow callback
// makes the ordering observable.
func TestFeedWaitsForHelloCallback(t *testing.T) {
	raw := clientHelloRecord(t)
	key := testServerKey(t)

	var (
		mu  sync.Mutex
		sni string
	)
	e := NewStd()
	ctx, err := e.NewContext(ContextConfig{
		OnClientHello: func(userdata any, hello *ClientHello) *CertifiedKey {
			time.Sleep(30 * time.Millisecond)
			mu.Lock()
			sni = hello.ServerName
			mu.Unlock()
			return key
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	sess, err := e.NewSession(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer sess.Close()

	if _, err := sess.Feed(raw); err != nil {
		t.Fatalf("Feed: %v", err)
	}

	mu.Lock()
	got := sni
	mu.Unlock()
	if got != "a.example.org" {
		t.Fatalf("hello callback had not completed when Feed returned (sni = %q)", got)
	}
	if out := sess.Flush(); len(out) == 0 {
		t.Error("no server flight after a complete client hello")
	}
}

type mapStore struct {
	mu sync.Mutex
	m  map[string][]byte
}

func (s *mapStore) Get(key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.m[key]
	return v, ok
}

func (s *mapStore) Put(key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[key] = value
	return nil
}

func (s *mapStore) Remove(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, key)
}

func TestSessionStoreWiredIntoTLSConfig(t *testing.T) {
	e := NewStd()
	hello := func(any, *ClientHello) *CertifiedKey { return nil }

	bare := e.tlsConfig(ContextConfig{OnClientHello: hello}, nil)
	if bare.WrapSession != nil || bare.UnwrapSession != nil {
		t.Error("session hooks set without a store")
	}

	store := &mapStore{m: make(map[string][]byte)}
	tc := e.tlsConfig(ContextConfig{OnClientHello: hello, SessionStore: store}, nil)
	if tc.WrapSession == nil || tc.UnwrapSession == nil {
		t.Fatal("session store not wired into the tls config")
	}

	// unknown identity falls back to a full handshake
	ss, err := tc.UnwrapSession([]byte("absent"), tls.ConnectionState{})
	if err != nil || ss != nil {
		t.Errorf("UnwrapSession(absent) = %v, %v, want nil, nil", ss, err)
	}

	// a corrupt entry is evicted instead of failing the handshake
	store.Put("bad", []byte("not a session state"))
	ss, err = tc.UnwrapSession([]byte("bad"), tls.ConnectionState{})
	if err != nil || ss != nil {
		t.Errorf("UnwrapSession(bad) = %v, %v, want nil, nil", ss, err)
	}
	if _, ok := store.Get("bad"); ok {
		t.Error("corrupt session entry not removed")
	}
}

func TestStdEngineRequiresHelloCallback(t *testing.T) {
	e := NewStd()
	if _, err := e.NewContext(ContextConfig{}); err == nil {
		t.Error("NewContext accepted a config without a hello callback")
	}
}
