// Package store keeps taiji session state in SQLite.
//
// The default database is in-memory and lives exactly as long as the process,
// which is the lifetime of a practice session. A file path keeps calibration
// and retargeted segments across restarts.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// MemoryPath selects a private in-memory database.
const MemoryPath = ":memory:"

// Store wraps the session database.
type Store struct {
	db   *sql.DB
	path string
}

// New opens the database at dbPath, creating parent directories for file
// databases, and brings the schema up to date. An empty path is MemoryPath.
func New(dbPath string) (*Store, error) {
	if dbPath == "" {
		dbPath = MemoryPath
	}
	if dbPath != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// Pragmas apply per connection and each :memory: connection is a
	// separate database.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, path: dbPath}
	if err := s.configure(); err != nil {
		db.Close()
		return nil, err
	}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) configure() error {
	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, p := range pragmas {
		if _, err := s.db.Exec(p); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the connection for ad hoc queries.
func (s *Store) DB() *sql.DB { return s.db }

// Path is the database path the store was opened with.
func (s *Store) Path() string { return s.path }
