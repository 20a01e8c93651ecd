package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	_ "github.com/mattn/go-sqlite3"
)

// SQLite stores entries in a kv table keyed by origin. Several processes
// may open the same database file.
type SQLite struct {
	db     *sql.DB
	origin string

	mu     sync.RWMutex
	closed bool
}

var _ Storage = (*SQLite)(nil)

// NewSQLite opens (or creates) the database at path. An empty path opens a
// private in-memory database.
func NewSQLite(path, origin string) (*SQLite, error) {
	if err := ValidateOrigin(origin); err != nil {
		return nil, err
	}

	var dsn string
	if path != "" {
		dsn = path + "?_busy_timeout=5000"
	} else {
		// A unique name keeps each in-memory store separate
		id, err := gonanoid.New()
		if err != nil {
			return nil, fmt.Errorf("failed to name in-memory database: %w", err)
		}
		dsn = "file:kv-" + id + "?mode=memory&cache=shared"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if path == "" {
		db.SetMaxOpenConns(1)
	}

	// Enable WAL mode so sibling tabs can read while one writes
	if path != "" {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	schema := `
		CREATE TABLE IF NOT EXISTS kv (
			origin TEXT NOT NULL,
			key TEXT NOT NULL,
			value TEXT NOT NULL,
			updated_at INTEGER NOT NULL,
			PRIMARY KEY (origin, key)
		)`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLite{db: db, origin: origin}, nil
}

func (s *SQLite) Get(key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return "", false, ErrClosed
	}

	var value string
	err := s.db.QueryRow(`SELECT value FROM kv WHERE origin = ? AND key = ?`, s.origin, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return value, true, nil
}

func (s *SQLite) Set(key, value string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}

	_, err := s.db.Exec(`
		INSERT INTO kv (origin, key, value, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (origin, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		s.origin, key, value, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

func (s *SQLite) Remove(key string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}

	if _, err := s.db.Exec(`DELETE FROM kv WHERE origin = ? AND key = ?`, s.origin, key); err != nil {
		return fmt.Errorf("failed to remove %s: %w", key, err)
	}
	return nil
}

func (s *SQLite) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
