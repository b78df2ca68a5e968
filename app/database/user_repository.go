package database

import (
	"database/sql"
	"fmt"
	"strings"
)

var _ UserRepository = (*UserRepositoryImpl)(nil)

type UserRepositoryImpl struct {
	db *DB
}

func NewUserRepository(db *DB) *UserRepositoryImpl {
	return &UserRepositoryImpl{db: db}
}

// UpsertUser registers a user or fully overwrites the stored timezone and
// offset list. Offsets are not merged with previous values.
func (r *UserRepositoryImpl) UpsertUser(chatID int64, timezone string, offsets []string) error {
	if r.db == nil {
		return ErrNotReady
	}

	_, err := r.db.Exec(`
		INSERT INTO users (chat_id, timezone, offsets)
		VALUES (?, ?, ?)
		ON CONFLICT (chat_id) DO UPDATE SET
			timezone = excluded.timezone,
			offsets = excluded.offsets
	`, chatID, timezone, strings.Join(offsets, ","))
	if err != nil {
		return fmt.Errorf("failed to upsert user: %w", err)
	}

	return nil
}

func (r *UserRepositoryImpl) GetUser(chatID int64) (*User, error) {
	if r.db == nil {
		return nil, ErrNotReady
	}

	var u User
	var offsets string
	err := r.db.QueryRow(`
		SELECT chat_id, timezone, offsets, created_at FROM users WHERE chat_id = ?
	`, chatID).Scan(&u.ChatID, &u.Timezone, &offsets, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	u.Offsets = splitOffsets(offsets)
	return &u, nil
}

func (r *UserRepositoryImpl) GetUsers() ([]User, error) {
	if r.db == nil {
		return nil, ErrNotReady
	}

	rows, err := r.db.Query(`SELECT chat_id, timezone, offsets, created_at FROM users ORDER BY chat_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to get users: %w", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var u User
		var offsets string
		if err := rows.Scan(&u.ChatID, &u.Timezone, &offsets, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan user row: %w", err)
		}
		u.Offsets = splitOffsets(offsets)
		users = append(users, u)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating user rows: %w", err)
	}

	return users, nil
}

func (r *UserRepositoryImpl) AddFavorite(chatID int64, sourceKey, presenter string) error {
	if r.db == nil {
		return ErrNotReady
	}

	_, err := r.db.Exec(`
		INSERT INTO favorites (chat_id, source_key, presenter)
		VALUES (?, ?, ?)
		ON CONFLICT (chat_id, source_key, presenter) DO NOTHING
	`, chatID, sourceKey, presenter)
	if err != nil {
		return fmt.Errorf("failed to add favorite: %w", err)
	}

	return nil
}

func (r *UserRepositoryImpl) RemoveFavorite(chatID int64, sourceKey, presenter string) error {
	if r.db == nil {
		return ErrNotReady
	}

	_, err := r.db.Exec(`
		DELETE FROM favorites WHERE chat_id = ? AND source_key = ? AND presenter = ?
	`, chatID, sourceKey, presenter)
	if err != nil {
		return fmt.Errorf("failed to remove favorite: %w", err)
	}

	return nil
}

func (r *UserRepositoryImpl) GetFavorites(chatID int64) ([]Favorite, error) {
	if r.db == nil {
		return nil, ErrNotReady
	}

	rows, err := r.db.Query(`
		SELECT chat_id, source_key, presenter
		FROM favorites
		WHERE chat_id = ?
		ORDER BY source_key, presenter
	`, chatID)
	if err != nil {
		return nil, fmt.Errorf("failed to get favorites: %w", err)
	}
	defer rows.Close()

	var favorites []Favorite
	for rows.Next() {
		var f Favorite
		if err := rows.Scan(&f.ChatID, &f.SourceKey, &f.Presenter); err != nil {
			return nil, fmt.Errorf("failed to scan favorite row: %w", err)
		}
		favorites = append(favorites, f)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating favorite rows: %w", err)
	}

	return favorites, nil
}

func (r *UserRepositoryImpl) WasNotified(chatID, itemID int64, kind string) (bool, error) {
	if r.db == nil {
		return false, ErrNotReady
	}

	var one int
	err := r.db.QueryRow(`
		SELECT 1 FROM sent_notifications WHERE chat_id = ? AND item_id = ? AND kind = ?
	`, chatID, itemID, kind).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check sent notification: %w", err)
	}

	return true, nil
}

func (r *UserRepositoryImpl) MarkNotified(chatID, itemID int64, kind string) error {
	if r.db == nil {
		return ErrNotReady
	}

	_, err := r.db.Exec(`
		INSERT INTO sent_notifications (chat_id, item_id, kind)
		VALUES (?, ?, ?)
		ON CONFLICT (chat_id, item_id, kind) DO NOTHING
	`, chatID, itemID, kind)
	if err != nil {
		return fmt.Errorf("failed to mark notification as sent: %w", err)
	}

	return nil
}

func splitOffsets(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	offsets := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			offsets = append(offsets, p)
		}
	}
	return offsets
}
