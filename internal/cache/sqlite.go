package cache

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLite is a cache backend that survives restarts. Useful when the relay
// set is slow or flaky and a cold start would otherwise show empty feeds.
type SQLite struct {
	conn       *sql.DB
	maxEntries int
}

var _ Store = (*SQLite)(nil)

// NewSQLite opens or creates the cache database at the given path.
// maxEntries <= 0 means unbounded.
func NewSQLite(path string, maxEntries int) (*SQLite, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w", err)
	}
	// WAL mode for better concurrency.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("set wal mode: %w", err)
	}
	s := &SQLite{conn: conn, maxEntries: maxEntries}
	if err := s.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate cache db: %w", err)
	}
	return s, nil
}

func (s *SQLite) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS cache (
		key TEXT PRIMARY KEY,
		value BLOB NOT NULL,
		created_at INTEGER NOT NULL,
		expires_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_cache_expires_at ON cache(expires_at);
	`
	_, err := s.conn.Exec(schema)
	return err
}

// Get returns the cached value, or false if absent or expired.
func (s *SQLite) Get(key string) ([]byte, bool) {
	var value []byte
	err := s.conn.QueryRow(
		"SELECT value FROM cache WHERE key = ? AND expires_at > ?",
		key, time.Now().Unix(),
	).Scan(&value)
	if err != nil {
		return nil, false
	}
	return value, true
}

// Set stores a value with the given TTL and trims the store to capacity.
func (s *SQLite) Set(key string, value []byte, ttl time.Duration) {
	now := time.Now()
	_, err := s.conn.Exec(`
		INSERT INTO cache (key, value, created_at, expires_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value,
			created_at = excluded.created_at,
			expires_at = excluded.expires_at`,
		key, value, now.Unix(), now.Add(ttl).Unix())
	if err != nil {
		return
	}
	s.trim()
}

// Delete removes a single entry.
func (s *SQLite) Delete(key string) {
	_, _ = s.conn.Exec("DELETE FROM cache WHERE key = ?", key)
}

// Purge removes expired entries.
func (s *SQLite) Purge() (int64, error) {
	res, err := s.conn.Exec("DELETE FROM cache WHERE expires_at <= ?", time.Now().Unix())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Backend returns the cache backend name.
func (s *SQLite) Backend() string { return "sqlite" }

// Close closes the database connection.
func (s *SQLite) Close() error { return s.conn.Close() }

// trim drops the oldest entries once the store is over capacity.
func (s *SQLite) trim() {
	if s.maxEntries <= 0 {
		return
	}
	_, _ = s.conn.Exec(`
		DELETE FROM cache WHERE key IN (
			SELECT key FROM cache
			ORDER BY created_at ASC
			LIMIT max((SELECT count(*) FROM cache) - ?, 0)
		)`, s.maxEntries)
}
