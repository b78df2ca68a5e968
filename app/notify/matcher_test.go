package notify

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/showplan/showplan/app/database"
)

// MockUserRepository implements a simple mock for testing
type MockUserRepository struct {
	users     []database.User
	favorites map[int64][]database.Favorite
	sent      map[string]bool
}

var _ database.UserRepository = (*MockUserRepository)(nil)

func newMockUserRepository() *MockUserRepository {
	return &MockUserRepository{
		favorites: make(map[int64][]database.Favorite),
		sent:      make(map[string]bool),
	}
}

func (m *MockUserRepository) UpsertUser(chatID int64, timezone string, offsets []string) error {
	return nil
}

func (m *MockUserRepository) GetUser(chatID int64) (*database.User, error) {
	for _, u := range m.users {
		if u.ChatID == chatID {
			return &u, nil
		}
	}
	return nil, nil
}

func (m *MockUserRepository) GetUsers() ([]database.User, error) {
	return m.users, nil
}

func (m *MockUserRepository) AddFavorite(chatID int64, sourceKey, presenter string) error {
	return nil
}

func (m *MockUserRepository) RemoveFavorite(chatID int64, sourceKey, presenter string) error {
	return nil
}

func (m *MockUserRepository) GetFavorites(chatID int64) ([]database.Favorite, error) {
	return m.favorites[chatID], nil
}

func (m *MockUserRepository) WasNotified(chatID, itemID int64, kind string) (bool, error) {
	return m.sent[fmt.Sprintf("%d/%d/%s", chatID, itemID, kind)], nil
}

func (m *MockUserRepository) MarkNotified(chatID, itemID int64, kind string) error {
	m.sent[fmt.Sprintf("%d/%d/%s", chatID, itemID, kind)] = true
	return nil
}

// MockItemRepository implements a simple mock for testing
type MockItemRepository struct {
	items []database.Item
}

var _ database.ItemRepository = (*MockItemRepository)(nil)

func (m *MockItemRepository) UpsertDay(sourceKey, day string, scrapedAt time.Time) error {
	return nil
}

func (m *MockItemRepository) GetDays(sourceKey, from, to string) ([]database.Day, error) {
	return nil, nil
}

func (m *MockItemRepository) UpsertItems(sourceKey string, items []database.NewItem) (int, error) {
	return 0, nil
}

func (m *MockItemRepository) GetItemsForDay(sourceKey, day string) ([]database.Item, error) {
	return m.items, nil
}

func (m *MockItemRepository) GetItemsForRange(sourceKey, from, to string) ([]database.Item, error) {
	var out []database.Item
	for _, item := range m.items {
		if item.SourceKey == sourceKey && item.Day >= from && item.Day <= to {
			out = append(out, item)
		}
	}
	return out, nil
}

func (m *MockItemRepository) GetAllItems(sourceKey string) ([]database.Item, error) {
	return m.items, nil
}

func (m *MockItemRepository) GetItemCount(sourceKey string) (int, error) {
	return len(m.items), nil
}

func (m *MockItemRepository) CleanupRetention(today string, retentionDays int) (int64, int64, error) {
	return 0, 0, nil
}

// MockDispatcher records dispatched notifications
type MockDispatcher struct {
	dispatched []string
	failNext   bool
}

var _ Dispatcher = (*MockDispatcher)(nil)

func (m *MockDispatcher) SendUpcomingShow(ctx context.Context, chatID int64, item database.Item, startsAt time.Time, offsetLiteral string) error {
	if m.failNext {
		m.failNext = false
		return fmt.Errorf("delivery error")
	}
	m.dispatched = append(m.dispatched, fmt.Sprintf("%d/%d/%s", chatID, item.ID, offsetLiteral))
	return nil
}

func fixtureMatcher(day string) (*Matcher, *MockUserRepository, *MockDispatcher) {
	userRepo := newMockUserRepository()
	userRepo.users = []database.User{
		{ChatID: 42, Timezone: "UTC", Offsets: []string{"4h"}},
	}
	userRepo.favorites[42] = []database.Favorite{
		{ChatID: 42, SourceKey: "technobase.fm", Presenter: "Cloud Seven"},
	}

	itemRepo := &MockItemRepository{
		items: []database.Item{
			{ID: 7, SourceKey: "technobase.fm", Day: day, Presenter: "DJ Cloud Seven",
				Title: "Cloud Factory", StartTime: "20:00", EndTime: "22:00", Style: "Hands Up"},
		},
	}

	dispatcher := &MockDispatcher{}
	return NewMatcher(userRepo, itemRepo, dispatcher, time.UTC), userRepo, dispatcher
}

func TestMatcherFiresInsideWindow(t *testing.T) {
	day := "2025-01-15"
	matcher, _, dispatcher := fixtureMatcher(day)

	// Show at 20:00, offset 4h: the fire window is [16:00, 16:15).
	now := time.Date(2025, 1, 15, 16, 0, 0, 0, time.UTC)
	if err := matcher.Run(context.Background(), now); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if len(dispatcher.dispatched) != 1 {
		t.Fatalf("Expected 1 dispatch, got %d", len(dispatcher.dispatched))
	}
	if dispatcher.dispatched[0] != "42/7/4h" {
		t.Errorf("Expected dispatch '42/7/4h', got '%s'", dispatcher.dispatched[0])
	}
}

func TestMatcherOutsideWindow(t *testing.T) {
	day := "2025-01-15"
	matcher, _, dispatcher := fixtureMatcher(day)

	// 15:44 is before the window opens at 16:00.
	now := time.Date(2025, 1, 15, 15, 44, 0, 0, time.UTC)
	if err := matcher.Run(context.Background(), now); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(dispatcher.dispatched) != 0 {
		t.Errorf("Expected no dispatch before the window, got %d", len(dispatcher.dispatched))
	}

	// 16:15 is past the end of the window.
	now = time.Date(2025, 1, 15, 16, 15, 0, 0, time.UTC)
	if err := matcher.Run(context.Background(), now); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(dispatcher.dispatched) != 0 {
		t.Errorf("Expected no dispatch after the window, got %d", len(dispatcher.dispatched))
	}
}

func TestMatcherFireInstantIgnoresUserTimezone(t *testing.T) {
	berlin, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		t.Fatalf("Failed to load location: %v", err)
	}

	userRepo := newMockUserRepository()
	userRepo.users = []database.User{
		{ChatID: 42, Timezone: "America/New_York", Offsets: []string{"4h"}},
	}
	userRepo.favorites[42] = []database.Favorite{
		{ChatID: 42, SourceKey: "technobase.fm", Presenter: "Cloud Seven"},
	}

	itemRepo := &MockItemRepository{
		items: []database.Item{
			{ID: 7, SourceKey: "technobase.fm", Day: "2025-01-15", Presenter: "Cloud Seven",
				Title: "Cloud Factory", StartTime: "20:00", EndTime: "22:00", Style: "Hands Up"},
		},
	}
	dispatcher := &MockDispatcher{}
	matcher := NewMatcher(userRepo, itemRepo, dispatcher, berlin)

	// The show starts at 20:00 Berlin time = 19:00 UTC. With a 4h offset
	// the alert is due at 16:00 Berlin = 15:00 UTC, no matter what
	// timezone the user reads the message in.
	now := time.Date(2025, 1, 15, 15, 0, 0, 0, time.UTC)
	if err := matcher.Run(context.Background(), now); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(dispatcher.dispatched) != 1 {
		t.Fatalf("Expected 1 dispatch at the schedule-local fire instant, got %d", len(dispatcher.dispatched))
	}

	// 16:00 in the user's timezone (21:00 UTC) is five hours past the
	// window; nothing should fire there.
	dispatcher.dispatched = nil
	userRepo.sent = make(map[string]bool)
	now = time.Date(2025, 1, 15, 21, 0, 0, 0, time.UTC)
	if err := matcher.Run(context.Background(), now); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(dispatcher.dispatched) != 0 {
		t.Errorf("Expected no dispatch at the user-local reading of the offset, got %d", len(dispatcher.dispatched))
	}
}

func TestMatcherSuppressesDuplicates(t *testing.T) {
	day := "2025-01-15"
	matcher, _, dispatcher := fixtureMatcher(day)

	now := time.Date(2025, 1, 15, 16, 5, 0, 0, time.UTC)
	if err := matcher.Run(context.Background(), now); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if err := matcher.Run(context.Background(), now.Add(5*time.Minute)); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if len(dispatcher.dispatched) != 1 {
		t.Errorf("Expected exactly 1 dispatch across polls, got %d", len(dispatcher.dispatched))
	}
}

func TestMatcherRetriesAfterDispatchFailure(t *testing.T) {
	day := "2025-01-15"
	matcher, userRepo, dispatcher := fixtureMatcher(day)
	dispatcher.failNext = true

	now := time.Date(2025, 1, 15, 16, 2, 0, 0, time.UTC)
	if err := matcher.Run(context.Background(), now); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(dispatcher.dispatched) != 0 {
		t.Fatalf("Expected failed dispatch, got %d", len(dispatcher.dispatched))
	}
	if len(userRepo.sent) != 0 {
		t.Fatal("Expected no suppression record after failed dispatch")
	}

	// Next poll, still inside the window: the dispatch is retried.
	if err := matcher.Run(context.Background(), now.Add(5*time.Minute)); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(dispatcher.dispatched) != 1 {
		t.Errorf("Expected retry to dispatch, got %d", len(dispatcher.dispatched))
	}
}

func TestMatcherSkipsUserWithoutFavorites(t *testing.T) {
	userRepo := newMockUserRepository()
	userRepo.users = []database.User{{ChatID: 1, Timezone: "UTC", Offsets: []string{"1h"}}}
	itemRepo := &MockItemRepository{}
	dispatcher := &MockDispatcher{}

	matcher := NewMatcher(userRepo, itemRepo, dispatcher, time.UTC)
	if err := matcher.Run(context.Background(), time.Now()); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(dispatcher.dispatched) != 0 {
		t.Errorf("Expected no dispatches, got %d", len(dispatcher.dispatched))
	}
}

func TestMatchPresenter(t *testing.T) {
	cases := []struct {
		favorite  string
		presenter string
		expected  bool
	}{
		{"Cloud Seven", "DJ Cloud Seven", true},
		{"DJ Cloud Seven", "Cloud Seven", true},
		{"cloud seven", "DJ CLOUD SEVEN", true},
		{"Cloud Seven", "dj cloud seven", true},
		{"DJ  Cloud   Seven", "Cloud Seven", true},
		{"Cloud", "DJ Cloud Seven", true},
		{"Seven Cloud", "Cloud Seven", false},
		{"", "Cloud Seven", false},
		{"Cloud Seven", "", false},
	}

	for _, c := range cases {
		if got := MatchPresenter(c.favorite, c.presenter); got != c.expected {
			t.Errorf("MatchPresenter(%q, %q): expected %v, got %v", c.favorite, c.presenter, c.expected, got)
		}
	}
}
