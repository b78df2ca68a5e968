package database

import (
	"testing"
)

func TestUpsertUserOverwritesOffsets(t *testing.T) {
	repo := NewUserRepository(newTestDB(t))

	if err := repo.UpsertUser(42, "Europe/Berlin", []string{"1h"}); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if err := repo.UpsertUser(42, "UTC", []string{"30m", "4.5h"}); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	user, err := repo.GetUser(42)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if user == nil {
		t.Fatal("Expected user, got nil")
	}
	if user.Timezone != "UTC" {
		t.Errorf("Expected timezone 'UTC', got '%s'", user.Timezone)
	}
	if len(user.Offsets) != 2 || user.Offsets[0] != "30m" || user.Offsets[1] != "4.5h" {
		t.Errorf("Expected offsets [30m 4.5h], got %v", user.Offsets)
	}
}

func TestGetUserMissing(t *testing.T) {
	repo := NewUserRepository(newTestDB(t))

	user, err := repo.GetUser(999)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if user != nil {
		t.Errorf("Expected nil for missing user, got %+v", user)
	}
}

func TestFavoriteUniqueness(t *testing.T) {
	repo := NewUserRepository(newTestDB(t))

	if err := repo.UpsertUser(42, "Europe/Berlin", []string{"1h"}); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if err := repo.AddFavorite(42, "technobase.fm", "Cloud Seven"); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	// Adding the same pair again is a no-op, not an error.
	if err := repo.AddFavorite(42, "technobase.fm", "Cloud Seven"); err != nil {
		t.Fatalf("Expected no error on duplicate favorite, got: %v", err)
	}

	favorites, err := repo.GetFavorites(42)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(favorites) != 1 {
		t.Fatalf("Expected 1 favorite, got %d", len(favorites))
	}

	if err := repo.RemoveFavorite(42, "technobase.fm", "Cloud Seven"); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	favorites, err = repo.GetFavorites(42)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(favorites) != 0 {
		t.Errorf("Expected 0 favorites after removal, got %d", len(favorites))
	}
}

func TestNotificationSuppression(t *testing.T) {
	db := newTestDB(t)
	itemRepo := NewItemRepository(db)
	userRepo := NewUserRepository(db)

	if err := userRepo.UpsertUser(42, "Europe/Berlin", []string{"4h"}); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if _, err := itemRepo.UpsertItems("technobase.fm", testBatch()); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	items, err := itemRepo.GetItemsForDay("technobase.fm", "2025-01-15")
	if err != nil || len(items) == 0 {
		t.Fatalf("Expected items, got %d (err: %v)", len(items), err)
	}

	itemID := items[0].ID

	sent, err := userRepo.WasNotified(42, itemID, "upcoming_show_4h")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if sent {
		t.Error("Expected no sent record before marking")
	}

	if err := userRepo.MarkNotified(42, itemID, "upcoming_show_4h"); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	sent, err = userRepo.WasNotified(42, itemID, "upcoming_show_4h")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if !sent {
		t.Error("Expected sent record after marking")
	}

	// A different offset literal is a distinct suppression key.
	sent, err = userRepo.WasNotified(42, itemID, "upcoming_show_4.0h")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if sent {
		t.Error("Expected '4.0h' key to be distinct from '4h'")
	}
}
