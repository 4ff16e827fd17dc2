// Package cache persists optimized method bodies in SQLite so a fresh
// optimizer process can skip reoptimizing methods whose input versions are
// unchanged since an earlier run.
package cache

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"

	_ "modernc.org/sqlite"
)

// ErrNotFound indicates no cached entry matches the requested key.
var ErrNotFound = errors.New("cache: entry not found")

// Entry is one cached optimized method.
type Entry struct {
	ClassName  string
	Namespace  int
	MethodName string
	InVersion  string // input version of the definition the entry was built from
	OutVersion string // output version the optimizer assigned
	Body       []byte // wire serialization of the optimized body
}

// Store is a SQLite-backed optimized-method store.
type Store struct {
	db     *sql.DB
	dbPath string
	mu     sync.Mutex
}

// Open opens (creating if needed) a store at the given path.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("cache: opening database: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("cache: setting busy timeout: %w", err)
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS optimized_methods (
		class_name  TEXT NOT NULL,
		namespace   INTEGER NOT NULL,
		method_name TEXT NOT NULL,
		in_version  TEXT NOT NULL,
		out_version TEXT NOT NULL,
		body        BLOB NOT NULL,
		PRIMARY KEY (class_name, namespace, method_name)
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("cache: creating table: %w", err)
	}

	return &Store{db: db, dbPath: dbPath}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Put inserts or replaces the entry for the method.
func (s *Store) Put(e *Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`INSERT OR REPLACE INTO optimized_methods
		(class_name, namespace, method_name, in_version, out_version, body)
		VALUES (?, ?, ?, ?, ?, ?)`,
		e.ClassName, e.Namespace, e.MethodName, e.InVersion, e.OutVersion, e.Body)
	if err != nil {
		return fmt.Errorf("cache: storing %s.%s: %w", e.ClassName, e.MethodName, err)
	}
	return nil
}

// Get returns the entry for the method if its cached input version matches
// inVersion; ErrNotFound otherwise. An empty inVersion never matches.
func (s *Store) Get(className string, namespace int, methodName, inVersion string) (*Entry, error) {
	if inVersion == "" {
		return nil, ErrNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.db.QueryRow(`SELECT in_version, out_version, body FROM optimized_methods
		WHERE class_name = ? AND namespace = ? AND method_name = ?`,
		className, namespace, methodName)

	e := &Entry{ClassName: className, Namespace: namespace, MethodName: methodName}
	if err := row.Scan(&e.InVersion, &e.OutVersion, &e.Body); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("cache: loading %s.%s: %w", className, methodName, err)
	}
	if e.InVersion != inVersion {
		return nil, ErrNotFound
	}
	return e, nil
}

// Count returns the number of cached entries.
func (s *Store) Count() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM optimized_methods`).Scan(&n); err != nil {
		return 0, fmt.Errorf("cache: counting entries: %w", err)
	}
	return n, nil
}
