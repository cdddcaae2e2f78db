package taskspec

import (
	"sync"
	"time"
)

// memoryEntry is one cached response plus its expiry deadline.
// A zero deadline means the entry never expires.
type memoryEntry struct {
	value     string
	expiresAt time.Time
}

// MemoryCache is an in-process Cache backend. Entries vanish on process
// exit. There is no eviction beyond lazy TTL expiry on read.
//
// MemoryCache is safe for concurrent use by multiple pipeline runs.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	hits    int64
	misses  int64

	// now is the clock used for expiry checks; tests substitute it.
	now func() time.Time
}

// NewMemoryCache creates an empty in-memory cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

// Get returns the value for key, removing and missing expired entries.
func (c *MemoryCache) Get(key string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		c.misses++
		return "", false, nil
	}
	if !entry.expiresAt.IsZero() && c.now().After(entry.expiresAt) {
		delete(c.entries, key)
		c.misses++
		return "", false, nil
	}
	c.hits++
	return entry.value, true, nil
}

// Put stores value under key. A ttl <= 0 stores the entry without expiry.
func (c *MemoryCache) Put(key, value string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry := memoryEntry{value: value}
	if ttl > 0 {
		entry.expiresAt = c.now().Add(ttl)
	}
	c.entries[key] = entry
	return nil
}

// Clear removes all entries.
func (c *MemoryCache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]memoryEntry)
	return nil
}

// ClearExpired removes entries whose deadline has elapsed.
func (c *MemoryCache) ClearExpired() (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for key, entry := range c.entries {
		if !entry.expiresAt.IsZero() && now.After(entry.expiresAt) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed, nil
}

// Stats returns hit/miss counters and the current entry count.
func (c *MemoryCache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return CacheStats{
		Hits:    c.hits,
		Misses:  c.misses,
		Entries: int64(len(c.entries)),
	}
}

// Close is a no-op for the memory backend.
func (*MemoryCache) Close() error { return nil }
