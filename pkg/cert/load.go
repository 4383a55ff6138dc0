package cert

import (
	"crypto"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"time"

	"github.com/TaIos/mod-tls/pkg/engine"
)

// LoadCertifiedKey loads and parses one certificate chain plus its
// private key from a spec. The chain is kept in DER, leaf first, and
// the signature schemes the key can serve are derived from the key type.
func LoadCertifiedKey(spec *Spec) (*engine.CertifiedKey, error) {
	certPEM, keyPEM, err := readSpec(spec)
	if err != nil {
		return nil, err
	}

	chain, leaf, err := parseChain(certPEM)
	if err != nil {
		return nil, fmt.Errorf("parsing certificate %s: %w", specSource(spec), err)
	}

	key, err := parsePrivateKey(keyPEM)
	if err != nil {
		return nil, fmt.Errorf("parsing private key %s: %w", specSource(spec), err)
	}

	if err := validateLeaf(leaf); err != nil {
		return nil, fmt.Errorf("certificate %s: %w", specSource(spec), err)
	}

	return &engine.CertifiedKey{
		ID:               spec.Fingerprint(),
		Chain:            chain,
		Leaf:             leaf,
		PrivateKey:       key,
		SignatureSchemes: engine.SchemesForKey(key),
	}, nil
}

func readSpec(spec *Spec) (certPEM, keyPEM []byte, err error) {
	if spec.Inline() {
		return []byte(spec.CertPEM), []byte(spec.KeyPEM), nil
	}
	certPEM, err = os.ReadFile(spec.CertFile)
	if err != nil {
		return nil, nil, fmt.Errorf("reading certificate file: %w", err)
	}
	keyFile := spec.KeyFile
	if keyFile == "" {
		// a single file may hold both certificate and key
		keyFile = spec.CertFile
	}
	keyPEM, err = os.ReadFile(keyFile)
	if err != nil {
		return nil, nil, fmt.Errorf("reading key file: %w", err)
	}
	return certPEM, keyPEM, nil
}

func specSource(spec *Spec) string {
	if spec.Inline() {
		return "(inline)"
	}
	return spec.CertFile
}

// parseChain decodes all CERTIFICATE blocks, leaf first, and parses the
// leaf.
func parseChain(pemBytes []byte) ([][]byte, *x509.Certificate, error) {
	var chain [][]byte
	rest := pemBytes
	for {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			break
		}
		if block.Type != "CERTIFICATE" {
			continue
		}
		chain = append(chain, block.Bytes)
	}
	if len(chain) == 0 {
		return nil, nil, fmt.Errorf("no CERTIFICATE block found")
	}
	leaf, err := x509.ParseCertificate(chain[0])
	if err != nil {
		return nil, nil, err
	}
	return chain, leaf, nil
}

// parsePrivateKey decodes the first private key block, trying PKCS#8,
// PKCS#1 and SEC1 encodings.
func parsePrivateKey(pemBytes []byte) (crypto.Signer, error) {
	rest := pemBytes
	for {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			return nil, fmt.Errorf("no private key block found")
		}
		switch block.Type {
		case "PRIVATE KEY":
			key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
			if err != nil {
				return nil, err
			}
			signer, ok := key.(crypto.Signer)
			if !ok {
				return nil, fmt.Errorf("key type %T cannot sign", key)
			}
			return signer, nil
		case "RSA PRIVATE KEY":
			return x509.ParsePKCS1PrivateKey(block.Bytes)
		case "EC PRIVATE KEY":
			return x509.ParseECPrivateKey(block.Bytes)
		}
	}
}

// validateLeaf rejects certificates outside their validity window.
func validateLeaf(leaf *x509.Certificate) error {
	now := time.Now()
	if now.Before(leaf.NotBefore) {
		return fmt.Errorf("certificate is not yet valid (valid from %s)", leaf.NotBefore.Format(time.RFC3339))
	}
	if now.After(leaf.NotAfter) {
		return fmt.Errorf("certificate expired on %s", leaf.NotAfter.Format(time.RFC3339))
	}
	return nil
}

// ExpiresWithin reports whether the leaf certificate expires within d,
// and how long remains.
func ExpiresWithin(leaf *x509.Certificate, d time.Duration) (bool, time.Duration) {
	remaining := time.Until(leaf.NotAfter)
	return remaining < d, remaining
}
