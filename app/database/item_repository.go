package database

import (
	"fmt"
	"time"
)

var _ ItemRepository = (*ItemRepositoryImpl)(nil)

type ItemRepositoryImpl struct {
	db *DB
}

func NewItemRepository(db *DB) *ItemRepositoryImpl {
	return &ItemRepositoryImpl{db: db}
}

// UpsertDay marks a (source, date) pair as fetched, even when the page held
// zero items. This is how "known empty" is told apart from "never attempted".
func (r *ItemRepositoryImpl) UpsertDay(sourceKey, day string, scrapedAt time.Time) error {
	if r.db == nil {
		return ErrNotReady
	}

	_, err := r.db.Exec(`
		INSERT INTO days (source_key, day, scraped_at)
		VALUES (?, ?, ?)
		ON CONFLICT (source_key, day) DO UPDATE SET
			scraped_at = excluded.scraped_at
	`, sourceKey, day, scrapedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to upsert day: %w", err)
	}

	return nil
}

func (r *ItemRepositoryImpl) GetDays(sourceKey, from, to string) ([]Day, error) {
	if r.db == nil {
		return nil, ErrNotReady
	}

	query := `SELECT source_key, day, scraped_at FROM days WHERE source_key = ?`
	args := []interface{}{sourceKey}

	if from != "" {
		query += ` AND day >= ?`
		args = append(args, from)
	}
	if to != "" {
		query += ` AND day <= ?`
		args = append(args, to)
	}
	query += ` ORDER BY day`

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get days: %w", err)
	}
	defer rows.Close()

	var days []Day
	for rows.Next() {
		var d Day
		if err := rows.Scan(&d.SourceKey, &d.Day, &d.ScrapedAt); err != nil {
			return nil, fmt.Errorf("failed to scan day row: %w", err)
		}
		days = append(days, d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating day rows: %w", err)
	}

	return days, nil
}

// UpsertItems stores a batch in one transaction. A conflict on the dedup key
// (day, source, presenter, title, start, end) is skipped silently; the
// first-written row for a key wins permanently.
func (r *ItemRepositoryImpl) UpsertItems(sourceKey string, items []NewItem) (int, error) {
	if r.db == nil {
		return 0, ErrNotReady
	}
	if len(items) == 0 {
		return 0, nil
	}

	tx, err := r.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO items (source_key, day, presenter, title, start_time, end_time, style)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (day, source_key, presenter, title, start_time, end_time) DO NOTHING
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare item insert: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, item := range items {
		res, err := stmt.Exec(sourceKey, item.Day, item.Presenter, item.Title,
			item.StartTime, item.EndTime, item.Style)
		if err != nil {
			return 0, fmt.Errorf("failed to insert item: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil {
			inserted += int(n)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit item batch: %w", err)
	}

	return inserted, nil
}

func (r *ItemRepositoryImpl) GetItemsForDay(sourceKey, day string) ([]Item, error) {
	if r.db == nil {
		return nil, ErrNotReady
	}

	return r.queryItems(`
		SELECT id, source_key, day, presenter, title, start_time, end_time, style, created_at
		FROM items
		WHERE source_key = ? AND day = ?
		ORDER BY day, start_time, id
	`, sourceKey, day)
}

func (r *ItemRepositoryImpl) GetItemsForRange(sourceKey, from, to string) ([]Item, error) {
	if r.db == nil {
		return nil, ErrNotReady
	}

	return r.queryItems(`
		SELECT id, source_key, day, presenter, title, start_time, end_time, style, created_at
		FROM items
		WHERE source_key = ? AND day >= ? AND day <= ?
		ORDER BY day, start_time, id
	`, sourceKey, from, to)
}

// GetAllItems returns every stored item for a source. This is a full scan;
// callers should prefer the day or range variants.
func (r *ItemRepositoryImpl) GetAllItems(sourceKey string) ([]Item, error) {
	if r.db == nil {
		return nil, ErrNotReady
	}

	return r.queryItems(`
		SELECT id, source_key, day, presenter, title, start_time, end_time, style, created_at
		FROM items
		WHERE source_key = ?
		ORDER BY day, start_time, id
	`, sourceKey)
}

func (r *ItemRepositoryImpl) GetItemCount(sourceKey string) (int, error) {
	if r.db == nil {
		return 0, ErrNotReady
	}

	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM items WHERE source_key = ?", sourceKey).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get item count: %w", err)
	}
	return count, nil
}

// CleanupRetention deletes items and day records whose date lies the
// configured retention window or more in the past: for a window of N days,
// an item dated today-N is removed and one dated today-(N-1) is kept.
// Notification records pointing at deleted items go with them via cascade.
func (r *ItemRepositoryImpl) CleanupRetention(today string, retentionDays int) (int64, int64, error) {
	if r.db == nil {
		return 0, 0, ErrNotReady
	}

	ref, err := time.Parse("2006-01-02", today)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid reference date %q: %w", today, err)
	}
	cutoff := ref.AddDate(0, 0, -retentionDays).Format("2006-01-02")

	tx, err := r.db.Begin()
	if err != nil {
		return 0, 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	itemRes, err := tx.Exec(`DELETE FROM items WHERE day <= ?`, cutoff)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to delete expired items: %w", err)
	}

	dayRes, err := tx.Exec(`DELETE FROM days WHERE day <= ?`, cutoff)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to delete expired days: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("failed to commit retention cleanup: %w", err)
	}

	itemCount, _ := itemRes.RowsAffected()
	dayCount, _ := dayRes.RowsAffected()

	return itemCount, dayCount, nil
}

func (r *ItemRepositoryImpl) queryItems(query string, args ...interface{}) ([]Item, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get items: %w", err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var item Item
		err := rows.Scan(&item.ID, &item.SourceKey, &item.Day, &item.Presenter,
			&item.Title, &item.StartTime, &item.EndTime, &item.Style, &item.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan item row: %w", err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating item rows: %w", err)
	}

	return items, nil
}
