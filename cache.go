package taskspec

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// Cache is a content-addressable store for provider responses.
//
// A miss is reported through the bool return, never by an empty value: an
// empty cached response is a hit. Both backends behave identically apart
// from persistence, so callers can switch backend without behavioral change.
//
// TTL policy: a ttl of zero or less means the entry never expires. Expiry
// is lazy, checked on read and swept by ClearExpired.
type Cache interface {
	// Get returns the value for key. The bool reports presence; expired
	// entries are absent and removed lazily. Backend I/O failures are
	// reported as a *CacheError but read as a miss by the gateway.
	Get(key string) (string, bool, error)

	// Put stores value under key with the given lifetime. A ttl <= 0
	// stores the entry without expiry.
	Put(key, value string, ttl time.Duration) error

	// Clear removes all entries.
	Clear() error

	// ClearExpired removes entries whose lifetime has elapsed and returns
	// how many were removed.
	ClearExpired() (int, error)

	// Stats returns hit/miss counters and the current entry count.
	Stats() CacheStats

	// Close releases backend resources. The memory backend is a no-op.
	Close() error
}

// CacheStats holds cache effectiveness counters.
type CacheStats struct {
	Hits    int64
	Misses  int64
	Entries int64
}

// Fingerprint derives the cache key for one logical provider call. The key
// is a SHA-256 over a canonical JSON encoding of every input that changes
// the response: provider, model, the full message sequence, temperature,
// and token budget. Two logically identical calls always produce the same
// key; any parameter difference produces a different one.
func Fingerprint(provider string, messages []Message, params Params) string {
	canonical := struct {
		Provider    string    `json:"provider"`
		Model       string    `json:"model"`
		Messages    []Message `json:"messages"`
		Temperature float32   `json:"temperature"`
		MaxTokens   int       `json:"max_tokens"`
	}{
		Provider:    provider,
		Model:       params.Model,
		Messages:    messages,
		Temperature: params.Temperature,
		MaxTokens:   params.MaxTokens,
	}

	// Struct encoding field order is fixed, so the encoding is canonical.
	data, err := json.Marshal(canonical)
	if err != nil {
		// Message and Params contain only strings and numbers; Marshal
		// cannot fail on them.
		data = []byte(fmt.Sprintf("%s|%s|%v|%v", provider, params.Model, messages, params))
	}

	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// OpenCache constructs the cache selected by cfg. A disabled cache yields
// a NopCache so callers never branch on the enabled flag.
func OpenCache(cfg *Config) (Cache, error) {
	if !cfg.Cache.Enabled {
		return NopCache{}, nil
	}
	switch cfg.Cache.Backend {
	case CacheBackendMemory:
		return NewMemoryCache(), nil
	case CacheBackendDisk:
		return OpenDiskCache(cfg.Cache.Path)
	default:
		return nil, fmt.Errorf("unsupported cache backend: %q", cfg.Cache.Backend)
	}
}

// NopCache satisfies Cache without storing anything. Every Get is a miss
// and every Put is dropped, so a disabled cache means every gateway call
// reaches the provider.
type NopCache struct{}

func (NopCache) Get(string) (string, bool, error)       { return "", false, nil }
func (NopCache) Put(string, string, time.Duration) error { return nil }
func (NopCache) Clear() error                            { return nil }
func (NopCache) ClearExpired() (int, error)              { return 0, nil }
func (NopCache) Stats() CacheStats                       { return CacheStats{} }
func (NopCache) Close() error                            { return nil }
