// Package store persists string-keyed JSON documents in SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	_ "modernc.org/sqlite"
)

// Store is a namespaced key-value store. Writes are last-write-wins at
// document granularity.
type Store struct {
	db        *sql.DB
	namespace string
	cache     *cache.Cache

	writeMu sync.Mutex
	now     func() time.Time
}

// Options controls how the store is opened.
type Options struct {
	Namespace string
	CacheTTL  time.Duration
}

// Open opens (creating when needed) the SQLite database at path.
func Open(path string, opts Options) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// A single connection keeps ":memory:" databases coherent and serializes
	// SQLite writers.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	ttl := opts.CacheTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}

	s := &Store{
		db:        db,
		namespace: opts.Namespace,
		cache:     cache.New(ttl, 2*ttl),
		now:       time.Now,
	}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS documents (
			namespace TEXT NOT NULL,
			key TEXT NOT NULL,
			value TEXT NOT NULL,
			updated_at TIMESTAMP NOT NULL,
			PRIMARY KEY (namespace, key)
		);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Get returns the document stored under key.
func (s *Store) Get(ctx context.Context, key string) (json.RawMessage, bool, error) {
	if cached, ok := s.cache.Get(key); ok {
		return cloneDoc(cached.(json.RawMessage)), true, nil
	}

	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM documents WHERE namespace = ? AND key = ?`, s.namespace, key,
	).Scan(&value)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, false, nil
	case err != nil:
		return nil, false, fmt.Errorf("read %q: %w", key, err)
	}

	doc := json.RawMessage(value)
	if !json.Valid(doc) {
		return nil, false, fmt.Errorf("read %q: %w", key, ErrCorruptDocument)
	}
	s.cache.SetDefault(key, cloneDoc(doc))
	return doc, true, nil
}

// Set overwrites the document stored under key.
func (s *Store) Set(ctx context.Context, key string, doc json.RawMessage) error {
	if !json.Valid(doc) {
		return fmt.Errorf("write %q: %w", key, ErrCorruptDocument)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_, err := s.db.ExecContext(ctx, `INSERT INTO documents(namespace, key, value, updated_at)
		VALUES(?, ?, ?, ?)
		ON CONFLICT(namespace, key) DO UPDATE SET value=excluded.value, updated_at=excluded.updated_at`,
		s.namespace, key, string(doc), s.now().UTC())
	if err != nil {
		s.cache.Delete(key)
		return fmt.Errorf("write %q: %w", key, err)
	}
	s.cache.SetDefault(key, cloneDoc(doc))
	return nil
}

// Remove deletes the document stored under key. Removing a missing key is
// not an error.
func (s *Store) Remove(ctx context.Context, key string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.cache.Delete(key)
	if _, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE namespace = ? AND key = ?`, s.namespace, key); err != nil {
		return fmt.Errorf("remove %q: %w", key, err)
	}
	return nil
}

// Keys lists every key in the store's namespace.
func (s *Store) Keys(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key FROM documents WHERE namespace = ? ORDER BY key`, s.namespace)
	if err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("scan key: %w", err)
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// ErrCorruptDocument reports a stored or submitted value that is not JSON.
var ErrCorruptDocument = errors.New("document is not valid JSON")

func cloneDoc(doc json.RawMessage) json.RawMessage {
	return append(json.RawMessage(nil), doc...)
}
