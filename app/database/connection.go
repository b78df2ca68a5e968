package database

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// ErrNotReady is returned by repository operations when the store failed to
// initialize. Callers use it to tell a broken store apart from a transient
// query failure.
var ErrNotReady = errors.New("database is not initialized")

type DB struct {
	*sql.DB
}

// NewConnection opens the SQLite database at path, creating the parent
// directory when needed. An unwritable location or a corrupt file is an
// initialization failure; the caller keeps the process running in a
// degraded read-only mode and reports it via the health endpoint.
func NewConnection(path string) (*DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite allows a single writer; the run coordinator and the notifier
	// are the only writers and both are strictly sequential, but the API
	// reads concurrently.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{DB: db}, nil
}

// Health tracks the store initialization outcome for the health endpoint.
type Health struct {
	Ready  bool
	Reason string
}

func NewHealth(initErr error) Health {
	if initErr != nil {
		return Health{Ready: false, Reason: initErr.Error()}
	}
	return Health{Ready: true}
}
