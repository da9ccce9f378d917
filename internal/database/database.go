// Package database keeps the run history in SQLite.
package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	_ "modernc.org/sqlite"
)

// pragmas are applied to every connection before migrating. A scheduled run
// and an interactive status call can overlap, so writers wait for the lock
// instead of failing with SQLITE_BUSY.
var pragmas = []struct {
	stmt string
	desc string
}{
	{"PRAGMA journal_mode=WAL", "setting journal mode"},
	{"PRAGMA foreign_keys=ON", "enabling foreign keys"},
	{"PRAGMA busy_timeout=5000", "setting busy timeout"},
}

// DB wraps the run-history database.
type DB struct {
	conn *sql.DB
	path string
}

// Open creates or opens the run history at dbPath, creating its directory.
func Open(dbPath string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening run history: %w", err)
	}
	// Pragmas are per connection; a single pooled connection keeps them in force.
	conn.SetMaxOpenConns(1)

	for _, p := range pragmas {
		if _, err := conn.Exec(p.stmt); err != nil {
			conn.Close()
			return nil, fmt.Errorf("%s: %w", p.desc, err)
		}
	}

	if err := migrate(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrating schema: %w", err)
	}

	log.Debug("run history open", "path", dbPath)
	return &DB{conn: conn, path: dbPath}, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.path
}
