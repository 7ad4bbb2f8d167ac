package service

import (
	"sync"
	"time"
)

// cacheEntry holds a value with its absolute expiry deadline
type cacheEntry struct {
	value     any
	expiresAt time.Time
}

// TTLCache is a small in-process key/value store with per-entry expiry.
// Entries are reaped lazily on read and by explicit Cleanup sweeps; there is
// no timer per key. Used to coalesce concurrent identical audit requests;
// best-effort only, the store-level duplicate check remains authoritative.
type TTLCache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	now     func() time.Time // overridable in tests
}

// NewTTLCache creates an empty cache
func NewTTLCache() *TTLCache {
	return &TTLCache{
		entries: make(map[string]cacheEntry),
		now:     time.Now,
	}
}

// Set stores value under key with the given TTL. Overwriting an existing key
// replaces its deadline rather than stacking a second one.
func (c *TTLCache) Set(key string, value any, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{
		value:     value,
		expiresAt: c.now().Add(ttl),
	}
}

// Get returns the value for key, or nil if absent or expired. Expired entries
// are deleted on read.
func (c *TTLCache) Get(key string) any {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil
	}
	if !c.now().Before(entry.expiresAt) {
		delete(c.entries, key)
		return nil
	}
	return entry.value
}

// Has reports whether key is present and unexpired
func (c *TTLCache) Has(key string) bool {
	return c.Get(key) != nil
}

// Delete removes key if present
func (c *TTLCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Size returns the number of stored entries, including any expired entries
// that have not been swept yet
func (c *TTLCache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Keys returns all stored keys, including not-yet-swept expired ones
func (c *TTLCache) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := make([]string, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	return keys
}

// Clear removes all entries
func (c *TTLCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]cacheEntry)
}

// Cleanup sweeps out every expired entry and returns the number removed.
// Correctness does not depend on it; it bounds memory under sustained load.
func (c *TTLCache) Cleanup() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for k, entry := range c.entries {
		if !now.Before(entry.expiresAt) {
			delete(c.entries, k)
			removed++
		}
	}
	return removed
}
