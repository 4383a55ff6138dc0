package cert

import (
	"crypto/sha256"
	"encoding/hex"
)

// Spec is one certificate specification: a cert/key file pair or
// inline PEM. Specs with the same fingerprint resolve to the same
// certified key, loaded once process-wide.
type Spec struct {
	CertFile string
	KeyFile  string
	CertPEM  string
	KeyPEM   string
}

// Fingerprint returns the registry deduplication key for the spec.
// File-based specs are identified by their paths, inline specs by a
// digest of the PEM content.
func (s *Spec) Fingerprint() string {
	if s.CertFile != "" {
		return "file:" + s.CertFile + "," + s.KeyFile
	}
	sum := sha256.Sum256([]byte(s.CertPEM + "\x00" + s.KeyPEM))
	return "pem:" + hex.EncodeToString(sum[:16])
}

// Inline reports whether the spec carries PEM content directly.
func (s *Spec) Inline() bool {
	return s.CertFile == "" && s.CertPEM != ""
}
