package ocsp

import (
	"time"
)

// Response is a cached OCSP response for one certified key.
type Response struct {
	// KeyID identifies the certified key the response belongs to.
	KeyID string

	// DER is the raw DER-encoded OCSP response, ready for stapling.
	DER []byte

	// NextUpdate is when the responder will publish fresher status.
	// The refresher re-fetches before this point.
	NextUpdate time.Time

	// RetrievedAt is when the response was fetched.
	RetrievedAt time.Time
}

// Expired reports whether the response is past its update window.
func (r *Response) Expired(now time.Time) bool {
	return !r.NextUpdate.IsZero() && now.After(r.NextUpdate)
}

// Cache stores OCSP responses by certified key id. Implementations must
// be safe for concurrent use: responses are read during handshakes and
// written by the refresher.
type Cache interface {
	// Response returns the cached response for a key id, or nil when
	// none exists or the cached one expired.
	Response(keyID string) *Response

	// Put stores a response, replacing any previous one for the key.
	Put(resp *Response) error

	// Remove deletes the response for a key id. No-op when absent.
	Remove(keyID string) error

	// Close releases backend resources.
	Close() error
}
