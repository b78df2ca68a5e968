package database

import (
	"time"
)

type Source struct {
	Key       string // Domain-like identifier, e.g. "technobase.fm"
	Name      string
	Enabled   bool
	LastRunAt *time.Time
	CreatedAt time.Time
}

// Day marks that a (source, calendar-date) pair has been fetched at least
// once. A day row with no items means "known empty", which is distinct from
// "never attempted".
type Day struct {
	SourceKey string
	Day       string // ISO date YYYY-MM-DD
	ScrapedAt time.Time
}

type Item struct {
	ID        int64
	SourceKey string
	Day       string // ISO date YYYY-MM-DD
	Presenter string
	Title     string
	StartTime string // HH:MM, local to the source
	EndTime   string // HH:MM, may be on the following day when it wraps past midnight
	Style     string
	CreatedAt time.Time
}

type User struct {
	ChatID    int64
	Timezone  string
	Offsets   []string // Offset literals, e.g. "30m", "4.5h", "1d"
	CreatedAt time.Time
}

type Favorite struct {
	ChatID    int64
	SourceKey string
	Presenter string
}
