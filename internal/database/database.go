package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// openParams enables WAL, a busy timeout for contended writes, and the
// foreign keys the graph schema relies on.
const openParams = "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=ON"

// Open opens the graph store at the given path, creating the parent
// directory if needed. The pool is capped at one connection: every batch
// write path (edges, credits, quota state) funnels through the same SQLite
// writer.
func Open(dbPath string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o750); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+openParams)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.PingContext(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	db.SetMaxOpenConns(1)

	return db, nil
}
