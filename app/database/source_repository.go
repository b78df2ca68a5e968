package database

import (
	"fmt"
	"time"
)

var _ SourceRepository = (*SourceRepositoryImpl)(nil)

type SourceRepositoryImpl struct {
	db *DB
}

func NewSourceRepository(db *DB) *SourceRepositoryImpl {
	return &SourceRepositoryImpl{db: db}
}

// UpsertSource registers a configured source, updating name and enabled flag
// when the key already exists.
func (r *SourceRepositoryImpl) UpsertSource(key, name string, enabled bool) error {
	if r.db == nil {
		return ErrNotReady
	}

	_, err := r.db.Exec(`
		INSERT INTO sources (key, name, enabled)
		VALUES (?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET
			name = excluded.name,
			enabled = excluded.enabled
	`, key, name, enabled)
	if err != nil {
		return fmt.Errorf("failed to upsert source: %w", err)
	}

	return nil
}

func (r *SourceRepositoryImpl) GetSources() ([]Source, error) {
	if r.db == nil {
		return nil, ErrNotReady
	}

	rows, err := r.db.Query(`
		SELECT key, name, enabled, last_run_at, created_at
		FROM sources
		ORDER BY key
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to get sources: %w", err)
	}
	defer rows.Close()

	var sources []Source
	for rows.Next() {
		var s Source
		if err := rows.Scan(&s.Key, &s.Name, &s.Enabled, &s.LastRunAt, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan source row: %w", err)
		}
		sources = append(sources, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating source rows: %w", err)
	}

	return sources, nil
}

// TouchLastRun records a run attempt for the source regardless of per-date
// success.
func (r *SourceRepositoryImpl) TouchLastRun(key string, at time.Time) error {
	if r.db == nil {
		return ErrNotReady
	}

	_, err := r.db.Exec(`
		UPDATE sources SET last_run_at = ? WHERE key = ?
	`, at.UTC(), key)
	if err != nil {
		return fmt.Errorf("failed to touch source last run: %w", err)
	}

	return nil
}
