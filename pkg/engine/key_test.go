package engine

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"testing"
)

func TestSchemesForKey(t *testing.T) {
	rsaKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}
	p256Key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	p384Key, err := ecdsa.GenerateKey(elliptic.P384(), rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	_, edKey, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}

	rsaSchemes := SchemesForKey(rsaKey)
	if len(rsaSchemes) != 6 {
		t.Errorf("RSA schemes = %v, want PSS and PKCS1 for three hashes", rsaSchemes)
	}

	if got := SchemesForKey(p256Key); len(got) != 1 || got[0] != SchemeECDSAWithP256SHA256 {
		t.Errorf("P-256 schemes = %v", got)
	}
	if got := SchemesForKey(p384Key); len(got) != 1 || got[0] != SchemeECDSAWithP384SHA384 {
		t.Errorf("P-384 schemes = %v", got)
	}
	if got := SchemesForKey(edKey); len(got) != 1 || got[0] != SchemeEd25519 {
		t.Errorf("Ed25519 schemes = %v", got)
	}
}

func TestSupportsAnyScheme(t *testing.T) {
	key := &CertifiedKey{SignatureSchemes: []uint16{SchemeECDSAWithP256SHA256}}

	tests := []struct {
		name    string
		offered []uint16
		want    bool
	}{
		{"empty offer matches any key", nil, true},
		{"matching scheme", []uint16{SchemePSSWithSHA256, SchemeECDSAWithP256SHA256}, true},
		{"no intersection", []uint16{SchemePSSWithSHA256, SchemeEd25519}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := key.SupportsAnyScheme(tt.offered); got != tt.want {
				t.Errorf("SupportsAnyScheme(%v) = %v, want %v", tt.offered, got, tt.want)
			}
		})
	}

	// a key with no derivable schemes never matches a restricted offer
	bare := &CertifiedKey{}
	if bare.SupportsAnyScheme([]uint16{SchemePSSWithSHA256}) {
		t.Error("schemeless key matched a restricted offer")
	}
	if !bare.SupportsAnyScheme(nil) {
		t.Error("schemeless key rejected an unrestricted offer")
	}
}

func TestCloneWithStaple(t *testing.T) {
	original := &CertifiedKey{
		ID:               "key-1",
		SignatureSchemes: []uint16{SchemeECDSAWithP256SHA256},
	}
	staple := []byte{0x30, 0x01, 0x00}

	clone := original.CloneWithStaple(staple)
	if clone == original {
		t.Fatal("CloneWithStaple returned the original")
	}
	if string(clone.OCSPStaple) != string(staple) {
		t.Errorf("clone staple = %x", clone.OCSPStaple)
	}
	if original.OCSPStaple != nil {
		t.Error("CloneWithStaple mutated the shared original")
	}
	if clone.ID != original.ID {
		t.Errorf("clone ID = %q, want %q", clone.ID, original.ID)
	}
}
