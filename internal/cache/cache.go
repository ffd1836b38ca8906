// Package cache is a small SQLite key/value store with per-entry expiry,
// used to keep resolved embeds between requests and restarts.
package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS cache_entries (
	key        TEXT PRIMARY KEY,
	value      BLOB NOT NULL,
	stored_at  INTEGER NOT NULL,
	expires_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_cache_entries_expires_at ON cache_entries (expires_at);
`

// Cache stores byte values under string keys until they expire.
type Cache struct {
	db  *sqlx.DB
	now func() time.Time
}

// New opens (or creates) the cache database at filePath. "file::memory:"
// gives a cache that lives as long as the process.
func New(filePath string) (*Cache, error) {
	db, err := sqlx.Connect("sqlite", filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to sqlite cache: %w", err)
	}
	// An in-memory database exists once per connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode on sqlite cache: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create cache schema: %w", err)
	}
	return &Cache{db: db, now: time.Now}, nil
}

// Get returns the value stored under key. ok is false when the key is
// absent or its entry has expired.
func (c *Cache) Get(ctx context.Context, key string) (value []byte, ok bool, err error) {
	query := `SELECT value FROM cache_entries WHERE key = ? AND expires_at > ?`
	if err := c.db.GetContext(ctx, &value, query, key, c.now().Unix()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to get %q from cache: %w", key, err)
	}
	return value, true, nil
}

// Set stores value under key for ttl, replacing any previous entry.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("cache ttl for %q must be positive, got %s", key, ttl)
	}
	now := c.now()
	query := `INSERT INTO cache_entries (key, value, stored_at, expires_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, stored_at = excluded.stored_at, expires_at = excluded.expires_at`
	if _, err := c.db.ExecContext(ctx, query, key, value, now.Unix(), now.Add(ttl).Unix()); err != nil {
		return fmt.Errorf("failed to set %q in cache: %w", key, err)
	}
	return nil
}

// Delete removes key from the cache.
func (c *Cache) Delete(ctx context.Context, key string) error {
	if _, err := c.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE key = ?`, key); err != nil {
		return fmt.Errorf("failed to delete %q from cache: %w", key, err)
	}
	return nil
}

// Purge removes every expired entry and returns how many were dropped.
func (c *Cache) Purge(ctx context.Context) (int64, error) {
	res, err := c.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE expires_at <= ?`, c.now().Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to purge cache: %w", err)
	}
	return res.RowsAffected()
}

// Close closes the database connection.
func (c *Cache) Close() error {
	return c.db.Close()
}
