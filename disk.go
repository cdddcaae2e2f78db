package taskspec

import (
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// DiskCache is a Cache backend persisted as a SQLite file, one row per
// fingerprint. Entries survive process restarts; a fresh process reuses
// cache contents from earlier invocations.
//
// Each Put is a single upsert statement, so an interrupted process never
// leaves a partially-written entry. WAL mode plus a busy timeout keeps
// concurrent readers (including external inspection of the file) safe.
// Deleting the file externally only forces the next lookup to miss.
type DiskCache struct {
	db     *sql.DB
	mu     sync.Mutex
	hits   int64
	misses int64

	// now is the clock used for expiry checks; tests substitute it.
	now func() time.Time
}

// OpenDiskCache opens (or creates) the cache database at path, creating
// parent directories as needed.
func OpenDiskCache(path string) (*DiskCache, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, &CacheError{Op: "open", Err: err}
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, &CacheError{Op: "open", Err: err}
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, &CacheError{Op: "open", Err: err}
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, &CacheError{Op: "open", Err: err}
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, &CacheError{Op: "open", Err: err}
	}

	schema := `
	CREATE TABLE IF NOT EXISTS entries (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		ttl_seconds INTEGER NOT NULL
	)`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, &CacheError{Op: "open", Err: err}
	}

	return &DiskCache{db: db, now: time.Now}, nil
}

// Get returns the value for key. Expired rows are deleted lazily. A read
// failure is reported as a *CacheError alongside the miss so the gateway
// can degrade to the provider rather than failing the pipeline.
func (c *DiskCache) Get(key string) (string, bool, error) {
	var value string
	var createdAt, ttlSeconds int64

	err := c.db.QueryRow(
		"SELECT value, created_at, ttl_seconds FROM entries WHERE key = ?", key,
	).Scan(&value, &createdAt, &ttlSeconds)
	if errors.Is(err, sql.ErrNoRows) {
		c.count(&c.misses)
		return "", false, nil
	}
	if err != nil {
		c.count(&c.misses)
		return "", false, &CacheError{Op: "get", Err: err}
	}

	if ttlSeconds > 0 {
		expiresAt := time.Unix(createdAt, 0).Add(time.Duration(ttlSeconds) * time.Second)
		if c.now().After(expiresAt) {
			// Best effort; the entry already reads as absent.
			c.db.Exec("DELETE FROM entries WHERE key = ?", key)
			c.count(&c.misses)
			return "", false, nil
		}
	}

	c.count(&c.hits)
	return value, true, nil
}

// Put stores value under key. A ttl <= 0 stores the entry without expiry.
// The upsert is a single statement, atomic per key.
func (c *DiskCache) Put(key, value string, ttl time.Duration) error {
	// Lifetimes are stored in whole seconds; a positive sub-second ttl
	// rounds up so it still expires rather than reading as "never".
	var ttlSeconds int64
	if ttl > 0 {
		ttlSeconds = int64((ttl + time.Second - 1) / time.Second)
	}
	_, err := c.db.Exec(
		"INSERT OR REPLACE INTO entries (key, value, created_at, ttl_seconds) VALUES (?, ?, ?, ?)",
		key, value, c.now().Unix(), ttlSeconds,
	)
	if err != nil {
		return &CacheError{Op: "put", Err: err}
	}
	return nil
}

// Clear removes all entries.
func (c *DiskCache) Clear() error {
	if _, err := c.db.Exec("DELETE FROM entries"); err != nil {
		return &CacheError{Op: "clear", Err: err}
	}
	return nil
}

// ClearExpired removes entries whose lifetime has elapsed. Rows stored
// without expiry (ttl_seconds = 0) are never touched.
func (c *DiskCache) ClearExpired() (int, error) {
	result, err := c.db.Exec(
		"DELETE FROM entries WHERE ttl_seconds > 0 AND created_at + ttl_seconds < ?",
		c.now().Unix(),
	)
	if err != nil {
		return 0, &CacheError{Op: "clear_expired", Err: err}
	}
	removed, err := result.RowsAffected()
	if err != nil {
		return 0, &CacheError{Op: "clear_expired", Err: err}
	}
	return int(removed), nil
}

// Stats returns hit/miss counters and the current row count.
func (c *DiskCache) Stats() CacheStats {
	c.mu.Lock()
	stats := CacheStats{Hits: c.hits, Misses: c.misses}
	c.mu.Unlock()

	var entries int64
	if err := c.db.QueryRow("SELECT COUNT(*) FROM entries").Scan(&entries); err == nil {
		stats.Entries = entries
	}
	return stats
}

// Close closes the underlying database.
func (c *DiskCache) Close() error {
	return c.db.Close()
}

func (c *DiskCache) count(counter *int64) {
	c.mu.Lock()
	*counter++
	c.mu.Unlock()
}
