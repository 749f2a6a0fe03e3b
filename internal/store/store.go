package store

import (
	"database/sql"
	"fmt"
)

// Writer abstracts write operations so a replicated writer can be inserted
// later. For a single-node deployment, DirectWriter executes against SQLite
// directly.
type Writer interface {
	Execute(query string, args ...interface{}) (sql.Result, error)
	ExecuteTx(fn func(tx *sql.Tx) error) error
}

// Store is the main data access layer for switchyard.
type Store struct {
	db     *DB
	writer Writer

	// pools maps a routing group to its ordered list of candidate
	// assignees. Configured at startup; read-only afterwards.
	pools map[string][]string

	// poolUser is the shared pool identity. Tickets owned by it are
	// claimable by anyone.
	poolUser string
}

// NewStore creates a new Store with the given DB.
// It uses a DirectWriter that writes to SQLite immediately.
func NewStore(db *DB) *Store {
	return &Store{
		db:     db,
		writer: &DirectWriter{db: db.Write},
		pools:  map[string][]string{},
	}
}

// SetRotationPools installs the per-group round-robin pools.
func (s *Store) SetRotationPools(pools map[string][]string) {
	if pools == nil {
		pools = map[string][]string{}
	}
	s.pools = pools
}

// SetPoolUser installs the shared pool identity used by the claim protocol.
func (s *Store) SetPoolUser(email string) {
	s.poolUser = email
}

// DirectWriter executes SQL directly against the SQLite write connection.
type DirectWriter struct {
	db *sql.DB
}

func (w *DirectWriter) Execute(query string, args ...interface{}) (sql.Result, error) {
	return w.db.Exec(query, args...)
}

func (w *DirectWriter) ExecuteTx(fn func(tx *sql.Tx) error) error {
	tx, err := w.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	return tx.Commit()
}

// ReadDB returns the read database connection for queries.
func (s *Store) ReadDB() *sql.DB {
	return s.db.Read
}
