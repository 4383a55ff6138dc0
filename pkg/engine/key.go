package engine

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rsa"
	"crypto/x509"
)

// TLS SignatureScheme identifiers (RFC 8446, section 4.2.3) relevant
// for server certificate selection.
const (
	SchemePKCS1WithSHA256     uint16 = 0x0401
	SchemePKCS1WithSHA384     uint16 = 0x0501
	SchemePKCS1WithSHA512     uint16 = 0x0601
	SchemePSSWithSHA256       uint16 = 0x0804
	SchemePSSWithSHA384       uint16 = 0x0805
	SchemePSSWithSHA512       uint16 = 0x0806
	SchemeECDSAWithP256SHA256 uint16 = 0x0403
	SchemeECDSAWithP384SHA384 uint16 = 0x0503
	SchemeECDSAWithP521SHA512 uint16 = 0x0603
	SchemeEd25519             uint16 = 0x0807
)

// CertifiedKey is a certificate chain paired with its private key,
// ready for use in a handshake. Registry-owned keys are shared by
// reference across connections and never freed per connection; a key
// carrying a stapled OCSP response is a connection-owned clone.
type CertifiedKey struct {
	// ID identifies the key within the certificate registry.
	ID string

	// Chain is the certificate chain in DER encoding, leaf first.
	Chain [][]byte

	// Leaf is the parsed leaf certificate.
	Leaf *x509.Certificate

	// PrivateKey is the key matching the leaf certificate.
	PrivateKey crypto.Signer

	// SignatureSchemes lists the schemes this key can sign with.
	SignatureSchemes []uint16

	// OCSPStaple is the DER-encoded OCSP response attached to this
	// key, if any. Set only on connection-owned clones.
	OCSPStaple []byte
}

// CloneWithStaple returns a copy of the key with an OCSP response
// attached. The clone is owned by the connection that requested it and
// is released at connection teardown; the original stays shared.
func (k *CertifiedKey) CloneWithStaple(der []byte) *CertifiedKey {
	clone := *k
	clone.OCSPStaple = der
	return &clone
}

// SupportsAnyScheme reports whether the key can sign with at least one
// of the offered schemes. An empty offer matches any key.
func (k *CertifiedKey) SupportsAnyScheme(offered []uint16) bool {
	if len(offered) == 0 {
		return true
	}
	for _, want := range offered {
		for _, have := range k.SignatureSchemes {
			if want == have {
				return true
			}
		}
	}
	return false
}

// SchemesForKey derives the signature schemes a private key can
// produce. Unknown key types yield an empty set, which never matches a
// restricted client offer.
func SchemesForKey(key crypto.Signer) []uint16 {
	switch pk := key.Public().(type) {
	case *rsa.PublicKey:
		return []uint16{
			SchemePSSWithSHA256, SchemePSSWithSHA384, SchemePSSWithSHA512,
			SchemePKCS1WithSHA256, SchemePKCS1WithSHA384, SchemePKCS1WithSHA512,
		}
	case *ecdsa.PublicKey:
		switch pk.Curve {
		case elliptic.P256():
			return []uint16{SchemeECDSAWithP256SHA256}
		case elliptic.P384():
			return []uint16{SchemeECDSAWithP384SHA384}
		case elliptic.P521():
			return []uint16{SchemeECDSAWithP521SHA512}
		}
	case ed25519.PublicKey:
		return []uint16{SchemeEd25519}
	}
	return nil
}
