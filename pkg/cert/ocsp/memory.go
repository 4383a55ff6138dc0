package ocsp

import (
	"sync"
	"time"
)

// MemoryCache is the in-memory OCSP response cache. Responses do not
// survive a restart; the refresher re-primes them at startup.
type MemoryCache struct {
	mu        sync.RWMutex
	responses map[string]*Response
}

// NewMemoryCache creates an empty in-memory cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{responses: make(map[string]*Response)}
}

// Response returns the cached response for a key id, or nil.
func (c *MemoryCache) Response(keyID string) *Response {
	c.mu.RLock()
	defer c.mu.RUnlock()
	resp := c.responses[keyID]
	if resp == nil || resp.Expired(time.Now()) {
		return nil
	}
	return resp
}

// Put stores a response.
func (c *MemoryCache) Put(resp *Response) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.responses[resp.KeyID] = resp
	return nil
}

// Remove deletes the response for a key id.
func (c *MemoryCache) Remove(keyID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.responses, keyID)
	return nil
}

// Close is a no-op for the memory cache.
func (c *MemoryCache) Close() error {
	return nil
}
