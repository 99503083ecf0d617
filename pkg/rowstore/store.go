// Package rowstore is the SQLite row store enrichments read from and write
// back to.
//
// Writes go through ExecuteWrite and ExecuteWriteFn and are serialized on a
// single connection, the way a hosting framework funnels writes through one
// writer. Reads share the same pool.
package rowstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

var (
	// ErrNoTable is returned when a table does not exist.
	ErrNoTable = errors.New("table not found")
	// ErrNoRows is returned when a primary key matches no row.
	ErrNoRows = errors.New("no matching row")
)

// Writer is the write contract enrichments depend on.
type Writer interface {
	// ExecuteWrite runs one parameterized statement.
	ExecuteWrite(ctx context.Context, query string, args ...any) error
	// ExecuteWriteFn runs fn inside a write transaction.
	ExecuteWriteFn(ctx context.Context, fn func(tx *sql.Tx) error) error
}

// Database is the subset of Store used at configuration time.
type Database interface {
	Writer
	TableColumns(ctx context.Context, table string) ([]string, error)
}

// Store wraps a SQLite database.
type Store struct {
	db      *sql.DB
	writeMu sync.Mutex
}

var _ Database = (*Store)(nil)

// Open opens the SQLite database at path. Use ":memory:" for an in-memory
// database.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection keeps :memory: databases coherent and serializes writers.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return New(db), nil
}

// New wraps an existing database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// DB returns the underlying handle.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// ExecuteWrite runs one parameterized write statement.
func (s *Store) ExecuteWrite(ctx context.Context, query string, args ...any) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("execute write: %w", err)
	}
	return nil
}

// ExecuteWriteFn runs fn in a transaction, committing when fn returns nil.
func (s *Store) ExecuteWriteFn(ctx context.Context, fn func(tx *sql.Tx) error) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin write: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit write: %w", err)
	}
	return nil
}
