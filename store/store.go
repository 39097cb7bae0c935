// Package store keeps compiled units in a SQLite database keyed by the
// SHA-256 of their source, so identical programs compile once no matter
// where they live on disk.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/tliron/commonlog"
	_ "modernc.org/sqlite"

	"github.com/chazu/paxy/vm"
)

var log = commonlog.GetLogger("paxy.store")

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("store is closed")

const schema = `CREATE TABLE IF NOT EXISTS units (
	hash    TEXT PRIMARY KEY,
	name    TEXT NOT NULL,
	data    BLOB NOT NULL,
	stored  INTEGER NOT NULL
)`

// Store is a content-addressed cache of serialized units.
type Store struct {
	mu   sync.Mutex
	db   *sql.DB
	path string
}

// Open opens (creating if needed) the store database at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating store directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Set busy timeout for concurrent builds
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating table: %w", err)
	}
	log.Debugf("opened %s", path)
	return &Store{db: db, path: path}, nil
}

// Path returns the database file.
func (s *Store) Path() string { return s.path }

// Close closes the database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// Get returns the unit stored under hash, if any.
func (s *Store) Get(ctx context.Context, hash string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil, false, ErrClosed
	}

	var data []byte
	err := s.db.QueryRowContext(ctx, "SELECT data FROM units WHERE hash = ?", hash).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("querying unit %s: %w", hash, err)
	}
	return data, true, nil
}

// Put stores data under hash, replacing any earlier entry.
func (s *Store) Put(ctx context.Context, hash, name string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return ErrClosed
	}

	_, err := s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO units (hash, name, data, stored) VALUES (?, ?, ?, ?)",
		hash, name, data, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("saving unit %s: %w", hash, err)
	}
	log.Debugf("stored %s as %s", name, hash)
	return nil
}

// Entry describes a stored unit without its data.
type Entry struct {
	Hash   string
	Name   string
	Size   int
	Stored time.Time
}

// List returns the stored units, most recent first.
func (s *Store) List(ctx context.Context) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil, ErrClosed
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT hash, name, length(data), stored FROM units ORDER BY stored DESC, name")
	if err != nil {
		return nil, fmt.Errorf("listing units: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var stored int64
		if err := rows.Scan(&e.Hash, &e.Name, &e.Size, &stored); err != nil {
			return nil, fmt.Errorf("listing units: %w", err)
		}
		e.Stored = time.Unix(stored, 0)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Hash is the key a source text is stored under.
func Hash(source []byte) string {
	return vm.SourceHash(source)
}
