package cache

import (
	"crypto/sha256"
	"fmt"
	"sync"
	"time"

	"MediChat/internal/store"
)

// CachedResponse represents a cached generator output
type CachedResponse struct {
	Response  string
	Timestamp time.Time
}

// GenerateCacheKey generates a cache key from the system prompt and messages
func GenerateCacheKey(system string, messages []store.Message) string {
	h := sha256.New()
	h.Write([]byte(system))
	for _, msg := range messages {
		h.Write([]byte{0})
		h.Write([]byte(msg.Role))
		h.Write([]byte{0})
		h.Write([]byte(msg.Content))
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}

// Cache maps prompt keys to generator outputs. Entries older than ttl are
// ignored; a zero ttl never expires.
type Cache struct {
	entries sync.Map
	ttl     time.Duration
}

// New creates a cache
func New(ttl time.Duration) *Cache {
	return &Cache{ttl: ttl}
}

// Get returns the cached output for key
func (c *Cache) Get(key string) (string, bool) {
	val, ok := c.entries.Load(key)
	if !ok {
		return "", false
	}
	cached := val.(CachedResponse)
	if c.ttl > 0 && time.Since(cached.Timestamp) > c.ttl {
		c.entries.Delete(key)
		return "", false
	}
	return cached.Response, true
}

// Put stores an output
func (c *Cache) Put(key, response string) {
	c.entries.Store(key, CachedResponse{
		Response:  response,
		Timestamp: time.Now(),
	})
}
