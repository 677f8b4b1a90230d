// Package cache provides in-memory caching for backend API responses.
// Values are stored with expiration timestamps for cache-first behavior;
// expiry is checked lazily on read, so absent and expired look the same
// to callers.
package cache

import (
	"strings"
	"sync"
	"time"
)

// Entry is a single cached value with its expiry.
type Entry struct {
	Value     interface{}
	ExpiresAt time.Time
}

// Cache is a key-value store with per-entry TTL and prefix invalidation.
// Safe for concurrent use.
type Cache struct {
	mu         sync.RWMutex
	entries    map[string]Entry
	defaultTTL time.Duration
}

// New creates a cache with the given default TTL. Set calls that don't
// specify a TTL use the default.
func New(defaultTTL time.Duration) *Cache {
	return &Cache{
		entries:    make(map[string]Entry),
		defaultTTL: defaultTTL,
	}
}

// Get returns the value for key if present and not expired.
// An expired entry is evicted and reported as absent.
func (c *Cache) Get(key string) (interface{}, bool) {
	c.mu.RLock()
	ent, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}

	if time.Now().After(ent.ExpiresAt) {
		c.mu.Lock()
		// Re-check under the write lock: a concurrent Set may have
		// refreshed the entry since the read above.
		if cur, still := c.entries[key]; still && time.Now().After(cur.ExpiresAt) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return nil, false
	}

	return ent.Value, true
}

// Set stores a value with the cache's default TTL.
func (c *Cache) Set(key string, value interface{}) {
	c.SetTTL(key, value, c.defaultTTL)
}

// SetTTL stores a value with an explicit TTL, overriding the default.
func (c *Cache) SetTTL(key string, value interface{}, ttl time.Duration) {
	c.mu.Lock()
	c.entries[key] = Entry{
		Value:     value,
		ExpiresAt: time.Now().Add(ttl),
	}
	c.mu.Unlock()
}

// Invalidate removes the exact key and every key that starts with it,
// so "sales:7" clears "sales:7", "sales:7:weeks", etc. while leaving
// "sales:8" untouched. Returns the number of entries removed.
func (c *Cache) Invalidate(keyOrPrefix string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for k := range c.entries {
		if k == keyOrPrefix || strings.HasPrefix(k, keyOrPrefix) {
			delete(c.entries, k)
			removed++
		}
	}
	return removed
}

// Clear removes all entries.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]Entry)
	c.mu.Unlock()
}

// Len returns the number of stored entries, including not-yet-evicted
// expired ones.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// purgeExpired removes all entries whose expiry has passed.
// Returns the number of entries removed.
func (c *Cache) purgeExpired() int {
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for k, ent := range c.entries {
		if now.After(ent.ExpiresAt) {
			delete(c.entries, k)
			removed++
		}
	}
	return removed
}
