package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/showplan/showplan/app/database"
)

// FireWindow is how long a computed alert instant stays eligible for
// dispatch. It matches the polling interval, so discrete polling misses no
// firing and the suppression record prevents doubles.
const FireWindow = 15 * time.Minute

const kindPrefix = "upcoming_show_"

// Dispatcher delivers one due notification. A failed dispatch leaves the
// suppression record unset, so the next poll inside the fire window retries.
type Dispatcher interface {
	SendUpcomingShow(ctx context.Context, chatID int64, item database.Item, startsAt time.Time, offsetLiteral string) error
}

type Matcher struct {
	userRepo   database.UserRepository
	itemRepo   database.ItemRepository
	dispatcher Dispatcher
	loc        *time.Location
}

// NewMatcher builds a matcher. loc is the schedule timezone: stored times
// are local to the source, so the absolute alert instant is derived there.
// A user's own timezone only affects how the bot renders the message.
func NewMatcher(userRepo database.UserRepository, itemRepo database.ItemRepository, dispatcher Dispatcher, loc *time.Location) *Matcher {
	if loc == nil {
		loc = time.Local
	}
	return &Matcher{
		userRepo:   userRepo,
		itemRepo:   itemRepo,
		dispatcher: dispatcher,
		loc:        loc,
	}
}

// Run evaluates every user's favorites against upcoming schedule items and
// dispatches the alerts whose fire window contains now.
func (m *Matcher) Run(ctx context.Context, now time.Time) error {
	users, err := m.userRepo.GetUsers()
	if err != nil {
		return fmt.Errorf("failed to load users: %w", err)
	}

	for _, user := range users {
		if err := ctx.Err(); err != nil {
			return err
		}
		m.runUser(ctx, user, now)
	}

	return nil
}

func (m *Matcher) runUser(ctx context.Context, user database.User, now time.Time) {
	favorites, err := m.userRepo.GetFavorites(user.ChatID)
	if err != nil {
		slog.Warn("Failed to load favorites, skipping user", "chat_id", user.ChatID, "error", err)
		return
	}
	if len(favorites) == 0 {
		return
	}

	// Day keys are source-local, so the lookup window is too.
	today := now.In(m.loc).Format("2006-01-02")
	tomorrow := now.In(m.loc).AddDate(0, 0, 1).Format("2006-01-02")

	for _, favorite := range favorites {
		items, err := m.itemRepo.GetItemsForRange(favorite.SourceKey, today, tomorrow)
		if err != nil {
			slog.Warn("Failed to load items for favorite", "chat_id", user.ChatID,
				"source", favorite.SourceKey, "presenter", favorite.Presenter, "error", err)
			continue
		}

		for _, item := range items {
			if !MatchPresenter(favorite.Presenter, item.Presenter) {
				continue
			}
			m.fireDue(ctx, user, item, now)
		}
	}
}

// fireDue computes the absolute alert instant for each of the user's
// offsets. The start is parsed in the schedule timezone; the broadcast airs
// at one instant no matter where the user lives.
func (m *Matcher) fireDue(ctx context.Context, user database.User, item database.Item, now time.Time) {
	startsAt, err := time.ParseInLocation("2006-01-02 15:04", item.Day+" "+item.StartTime, m.loc)
	if err != nil {
		slog.Warn("Unparseable item start, skipping", "item_id", item.ID, "day", item.Day, "start", item.StartTime)
		return
	}

	for _, literal := range user.Offsets {
		offset, err := ParseOffset(literal)
		if err != nil {
			// Literals are validated at preference-write time; a bad one
			// here means the row predates validation.
			slog.Warn("Stored offset literal does not parse, skipping", "chat_id", user.ChatID, "offset", literal)
			continue
		}

		alertAt := startsAt.Add(-offset)
		if now.Before(alertAt) || !now.Before(alertAt.Add(FireWindow)) {
			continue
		}

		kind := kindPrefix + literal
		sent, err := m.userRepo.WasNotified(user.ChatID, item.ID, kind)
		if err != nil {
			slog.Warn("Failed to check sent notification", "chat_id", user.ChatID, "item_id", item.ID, "error", err)
			continue
		}
		if sent {
			continue
		}

		if err := m.dispatcher.SendUpcomingShow(ctx, user.ChatID, item, startsAt, literal); err != nil {
			// Do not mark as sent; the next poll retries while the fire
			// window lasts.
			slog.Error("Notification dispatch failed", "chat_id", user.ChatID, "item_id", item.ID, "offset", literal, "error", err)
			continue
		}

		if err := m.userRepo.MarkNotified(user.ChatID, item.ID, kind); err != nil {
			slog.Error("Failed to record sent notification", "chat_id", user.ChatID, "item_id", item.ID, "error", err)
		}

		slog.Info("Notification dispatched", "chat_id", user.ChatID, "item_id", item.ID,
			"presenter", item.Presenter, "offset", literal)
	}
}

// MatchPresenter decides whether a favorite presenter name refers to a
// scheduled item's presenter. Upstream naming is inconsistent, so the match
// is deliberately loose: case-insensitive containment in either direction,
// or equality after dropping a leading "DJ " token and collapsing runs of
// whitespace on both sides.
func MatchPresenter(favorite, presenter string) bool {
	a := strings.ToLower(strings.TrimSpace(favorite))
	b := strings.ToLower(strings.TrimSpace(presenter))
	if a == "" || b == "" {
		return false
	}

	if strings.Contains(a, b) || strings.Contains(b, a) {
		return true
	}

	return canonicalName(a) == canonicalName(b)
}

func canonicalName(name string) string {
	name = strings.TrimPrefix(name, "dj ")
	return strings.Join(strings.Fields(name), " ")
}
