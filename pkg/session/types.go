package session

// Cache is the opaque session resumption store handed to compiled
// server contexts. Implementations must be safe for concurrent use;
// the engine reads and writes it from many connections at once.
//
// Cache satisfies the engine.SessionStore contract.
type Cache interface {
	// Get returns the stored value for a session key.
	Get(key string) ([]byte, bool)

	// Put stores a session value, replacing any previous one.
	Put(key string, value []byte) error

	// Remove deletes a session entry. No-op when absent.
	Remove(key string)

	// Close releases backend resources.
	Close() error
}
