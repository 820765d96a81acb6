// Package storage persists realms and tokens in SQLite and implements the
// storage port consumed by the authorization service.
package storage

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite" // database/sql driver
)

// SQLiteStorage implements persistence over a single SQLite database.
type SQLiteStorage struct {
	db *sql.DB
}

// New opens (or creates) the database at dbPath and initializes the schema.
// Use ":memory:" for tests.
func New(dbPath string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// modernc.org/sqlite serializes writes; a single connection avoids
	// SQLITE_BUSY under concurrent usage updates.
	db.SetMaxOpenConns(1)

	if err := InitSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &SQLiteStorage{db: db}, nil
}

// NewWithDB wraps an existing database handle. The caller is responsible
// for schema initialization. Used by tests that inject mock connections.
func NewWithDB(db *sql.DB) *SQLiteStorage {
	return &SQLiteStorage{db: db}
}

// Ping verifies the database connection is alive.
func (s *SQLiteStorage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
