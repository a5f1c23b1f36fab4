package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteCache persists values in a single sqlite table so results survive
// restarts. Expired rows are ignored on read and removed lazily.
type SQLiteCache struct {
	db  *sql.DB
	now func() time.Time
}

// OpenSQLiteCache opens (or creates) the database at path.
// Use ":memory:" for a private in-memory database.
func OpenSQLiteCache(path string) (*SQLiteCache, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("cache: open sqlite: %w", err)
	}
	// a single connection keeps ":memory:" databases shared and serialises writers
	db.SetMaxOpenConns(1)

	c, err := NewSQLiteCache(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return c, nil
}

// NewSQLiteCache uses an existing handle and creates the table if needed.
func NewSQLiteCache(db *sql.DB) (*SQLiteCache, error) {
	if _, err := db.Exec(`PRAGMA journal_mode=WAL;`); err != nil {
		return nil, fmt.Errorf("cache: sqlite pragma: %w", err)
	}
	if err := migrate(db); err != nil {
		return nil, err
	}
	return &SQLiteCache{db: db, now: time.Now}, nil
}

func migrate(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS dispatch_cache (
			key TEXT PRIMARY KEY,
			value BLOB NOT NULL,
			expires_at INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_dispatch_cache_expires ON dispatch_cache(expires_at);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return fmt.Errorf("cache: sqlite migrate: %w", err)
		}
	}
	return nil
}

// Get retrieves a value. Returns (nil, false) on miss, expiry or error.
func (c *SQLiteCache) Get(ctx context.Context, key string) ([]byte, bool) {
	var (
		value     []byte
		expiresAt int64
	)
	err := c.db.QueryRowContext(ctx,
		`SELECT value, expires_at FROM dispatch_cache WHERE key = ?`, key,
	).Scan(&value, &expiresAt)
	if err != nil {
		return nil, false
	}
	if c.now().UnixNano() >= expiresAt {
		_, _ = c.db.ExecContext(ctx,
			`DELETE FROM dispatch_cache WHERE key = ? AND expires_at = ?`, key, expiresAt)
		return nil, false
	}
	return value, true
}

// Set upserts value with ttl. Non-positive ttl stores nothing.
func (c *SQLiteCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	expiresAt := c.now().Add(ttl).UnixNano()
	_, err := c.db.ExecContext(ctx,
		`INSERT INTO dispatch_cache (key, value, expires_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at`,
		key, value, expiresAt)
	if err != nil {
		return fmt.Errorf("cache: sqlite set: %w", err)
	}
	return nil
}

// Delete removes a value. Idempotent.
func (c *SQLiteCache) Delete(ctx context.Context, key string) error {
	_, err := c.db.ExecContext(ctx, `DELETE FROM dispatch_cache WHERE key = ?`, key)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("cache: sqlite delete: %w", err)
	}
	return nil
}

// PurgeExpired removes every expired row and returns how many were removed.
func (c *SQLiteCache) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := c.db.ExecContext(ctx,
		`DELETE FROM dispatch_cache WHERE expires_at <= ?`, c.now().UnixNano())
	if err != nil {
		return 0, fmt.Errorf("cache: sqlite purge: %w", err)
	}
	return res.RowsAffected()
}

// Ping checks the database handle.
func (c *SQLiteCache) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// Close closes the underlying database.
func (c *SQLiteCache) Close() error {
	return c.db.Close()
}

var (
	_ Cache  = (*SQLiteCache)(nil)
	_ Pinger = (*SQLiteCache)(nil)
)
