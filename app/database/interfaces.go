package database

import (
	"time"
)

// NewItem is one extracted broadcast slot handed to the store by the write
// path. The tuple (day, source, presenter, title, start, end) is the dedup
// key; re-upserting the same slot is a silent no-op.
type NewItem struct {
	Day       string
	Presenter string
	Title     string
	StartTime string
	EndTime   string
	Style     string
}

type SourceRepository interface {
	UpsertSource(key, name string, enabled bool) error
	GetSources() ([]Source, error)
	TouchLastRun(key string, at time.Time) error
}

type ItemRepository interface {
	UpsertDay(sourceKey, day string, scrapedAt time.Time) error
	GetDays(sourceKey, from, to string) ([]Day, error)

	// UpsertItems stores a batch in a single transaction; dedup-key
	// conflicts are skipped silently. Returns the number of rows inserted.
	UpsertItems(sourceKey string, items []NewItem) (int, error)
	GetItemsForDay(sourceKey, day string) ([]Item, error)
	GetItemsForRange(sourceKey, from, to string) ([]Item, error)
	GetAllItems(sourceKey string) ([]Item, error)
	GetItemCount(sourceKey string) (int, error)

	// CleanupRetention deletes items and day records dated retentionDays or
	// more before today. Dependent notification records are removed by
	// cascade. Returns deleted item and day counts.
	CleanupRetention(today string, retentionDays int) (int64, int64, error)
}

type UserRepository interface {
	UpsertUser(chatID int64, timezone string, offsets []string) error
	GetUser(chatID int64) (*User, error)
	GetUsers() ([]User, error)

	AddFavorite(chatID int64, sourceKey, presenter string) error
	RemoveFavorite(chatID int64, sourceKey, presenter string) error
	GetFavorites(chatID int64) ([]Favorite, error)

	WasNotified(chatID, itemID int64, kind string) (bool, error)
	MarkNotified(chatID, itemID int64, kind string) error
}
