package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/showplan/showplan/app/database"
	"github.com/showplan/showplan/app/notify"
	"github.com/showplan/showplan/app/scraper"
)

const defaultOffset = "1h"

const helpText = `Commands:
/start - register for show alerts
/fav <source> <presenter> - follow a presenter
/unfav <source> <presenter> - unfollow a presenter
/favs - list followed presenters
/offsets <list> - set alert offsets, e.g. /offsets 30m 4h 1d
/tz <zone> - set your timezone, e.g. /tz Europe/Berlin
/plan <source> [YYYY-MM-DD] - show the schedule for a day
/djs <source> - list a station's DJs
/test - send a test alert`

func (s *Service) handleStart(ctx context.Context, b *tgbot.Bot, update *models.Update) {
	chatID := update.Message.Chat.ID

	if err := s.userRepo.UpsertUser(chatID, s.loc.String(), []string{defaultOffset}); err != nil {
		s.replyStoreError(ctx, chatID, "/start", err)
		return
	}

	slog.Info("User registered", "chat_id", chatID)
	s.reply(ctx, chatID, fmt.Sprintf(
		"Welcome! You will be alerted %s before shows of presenters you follow.\n\n%s",
		defaultOffset, helpText))
}

func (s *Service) handleHelp(ctx context.Context, b *tgbot.Bot, update *models.Update) {
	s.reply(ctx, update.Message.Chat.ID, helpText)
}

func (s *Service) handleFav(ctx context.Context, b *tgbot.Bot, update *models.Update) {
	chatID := update.Message.Chat.ID

	sourceKey, presenter, err := s.parseFavoriteArgs(update.Message.Text, "/fav")
	if err != nil {
		s.reply(ctx, chatID, err.Error())
		return
	}

	if err := s.userRepo.AddFavorite(chatID, sourceKey, presenter); err != nil {
		s.replyStoreError(ctx, chatID, "/fav", err)
		return
	}

	s.reply(ctx, chatID, fmt.Sprintf("Following %s on %s.", presenter, sourceKey))
}

func (s *Service) handleUnfav(ctx context.Context, b *tgbot.Bot, update *models.Update) {
	chatID := update.Message.Chat.ID

	sourceKey, presenter, err := s.parseFavoriteArgs(update.Message.Text, "/unfav")
	if err != nil {
		s.reply(ctx, chatID, err.Error())
		return
	}

	if err := s.userRepo.RemoveFavorite(chatID, sourceKey, presenter); err != nil {
		s.replyStoreError(ctx, chatID, "/unfav", err)
		return
	}

	s.reply(ctx, chatID, fmt.Sprintf("No longer following %s on %s.", presenter, sourceKey))
}

func (s *Service) handleFavs(ctx context.Context, b *tgbot.Bot, update *models.Update) {
	chatID := update.Message.Chat.ID

	favorites, err := s.userRepo.GetFavorites(chatID)
	if err != nil {
		s.replyStoreError(ctx, chatID, "/favs", err)
		return
	}

	if len(favorites) == 0 {
		s.reply(ctx, chatID, "You are not following anyone yet. Use /fav <source> <presenter>.")
		return
	}

	var sb strings.Builder
	sb.WriteString("You follow:\n")
	for _, f := range favorites {
		fmt.Fprintf(&sb, "• %s (%s)\n", f.Presenter, f.SourceKey)
	}
	s.reply(ctx, chatID, sb.String())
}

func (s *Service) handleOffsets(ctx context.Context, b *tgbot.Bot, update *models.Update) {
	chatID := update.Message.Chat.ID
	args := commandArgs(update.Message.Text, "/offsets")

	user, err := s.userRepo.GetUser(chatID)
	if err != nil {
		s.replyStoreError(ctx, chatID, "/offsets", err)
		return
	}

	if len(args) == 0 {
		if user == nil || len(user.Offsets) == 0 {
			s.reply(ctx, chatID, "No offsets set. Use /offsets 30m 4h 1d.")
			return
		}
		s.reply(ctx, chatID, "Your alert offsets: "+strings.Join(user.Offsets, ", "))
		return
	}

	if err := notify.ValidateOffsets(args); err != nil {
		s.reply(ctx, chatID, fmt.Sprintf("Invalid offset: %v. Use values like 30m, 4.5h or 1d.", err))
		return
	}

	timezone := s.loc.String()
	if user != nil && user.Timezone != "" {
		timezone = user.Timezone
	}

	if err := s.userRepo.UpsertUser(chatID, timezone, args); err != nil {
		s.replyStoreError(ctx, chatID, "/offsets", err)
		return
	}

	s.reply(ctx, chatID, "Alert offsets set to: "+strings.Join(args, ", "))
}

func (s *Service) handleTimezone(ctx context.Context, b *tgbot.Bot, update *models.Update) {
	chatID := update.Message.Chat.ID
	args := commandArgs(update.Message.Text, "/tz")

	if len(args) != 1 {
		s.reply(ctx, chatID, "Usage: /tz <zone>, e.g. /tz Europe/Berlin")
		return
	}

	if _, err := time.LoadLocation(args[0]); err != nil {
		s.reply(ctx, chatID, fmt.Sprintf("Unknown timezone %q.", args[0]))
		return
	}

	user, err := s.userRepo.GetUser(chatID)
	if err != nil {
		s.replyStoreError(ctx, chatID, "/tz", err)
		return
	}

	offsets := []string{defaultOffset}
	if user != nil && len(user.Offsets) > 0 {
		offsets = user.Offsets
	}

	if err := s.userRepo.UpsertUser(chatID, args[0], offsets); err != nil {
		s.replyStoreError(ctx, chatID, "/tz", err)
		return
	}

	s.reply(ctx, chatID, "Timezone set to "+args[0]+".")
}

func (s *Service) handlePlan(ctx context.Context, b *tgbot.Bot, update *models.Update) {
	chatID := update.Message.Chat.ID
	args := commandArgs(update.Message.Text, "/plan")

	if len(args) < 1 || len(args) > 2 {
		s.reply(ctx, chatID, "Usage: /plan <source> [YYYY-MM-DD]")
		return
	}

	sourceKey := args[0]
	if _, err := s.sourceCache.GetConfig(sourceKey); err != nil {
		s.reply(ctx, chatID, fmt.Sprintf("Unknown source %q. Known sources: %s.",
			sourceKey, strings.Join(s.sourceKeys(), ", ")))
		return
	}

	day := time.Now().In(s.loc).Format("2006-01-02")
	if len(args) == 2 {
		if _, err := time.Parse("2006-01-02", args[1]); err != nil {
			s.reply(ctx, chatID, fmt.Sprintf("Invalid date %q, expected YYYY-MM-DD.", args[1]))
			return
		}
		day = args[1]
	}

	items, err := s.itemRepo.GetItemsForDay(sourceKey, day)
	if err != nil {
		s.replyStoreError(ctx, chatID, "/plan", err)
		return
	}

	if len(items) == 0 {
		s.reply(ctx, chatID, fmt.Sprintf("No shows stored for %s on %s.", sourceKey, day))
		return
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s on %s:\n", sourceKey, day)
	for _, item := range items {
		sb.WriteString(formatShowLine(item))
		sb.WriteByte('\n')
	}
	s.reply(ctx, chatID, sb.String())
}

// handleDJs lists a station's resident DJs. The roster page is best-effort;
// when it yields nothing, the stored schedule's presenters stand in.
func (s *Service) handleDJs(ctx context.Context, b *tgbot.Bot, update *models.Update) {
	chatID := update.Message.Chat.ID
	args := commandArgs(update.Message.Text, "/djs")

	if len(args) != 1 {
		s.reply(ctx, chatID, "Usage: /djs <source>")
		return
	}

	sourceKey := args[0]
	if _, err := s.sourceCache.GetConfig(sourceKey); err != nil {
		s.reply(ctx, chatID, fmt.Sprintf("Unknown source %q. Known sources: %s.",
			sourceKey, strings.Join(s.sourceKeys(), ", ")))
		return
	}

	names := s.rosterNames(ctx, sourceKey)
	if len(names) == 0 {
		s.reply(ctx, chatID, fmt.Sprintf("No DJs found for %s.", sourceKey))
		return
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "DJs on %s:\n", sourceKey)
	for _, name := range names {
		sb.WriteString("• " + name + "\n")
	}
	s.reply(ctx, chatID, sb.String())
}

func (s *Service) rosterNames(ctx context.Context, sourceKey string) []string {
	day := time.Now().In(s.loc).Format("2006-01-02")

	if s.fetcher != nil {
		if data, err := s.fetcher.Run(ctx, scraper.BuildURL(sourceKey, day)); err == nil {
			if names := scraper.ExtractPresenters(data); len(names) > 0 {
				return names
			}
		} else {
			slog.Warn("Roster page fetch failed", "source", sourceKey, "error", err)
		}
	}

	items, err := s.itemRepo.GetAllItems(sourceKey)
	if err != nil {
		slog.Warn("Roster fallback query failed", "source", sourceKey, "error", err)
		return nil
	}

	seen := make(map[string]bool)
	var names []string
	for _, item := range items {
		key := strings.ToLower(item.Presenter)
		if seen[key] {
			continue
		}
		seen[key] = true
		names = append(names, item.Presenter)
	}
	return names
}

// handleTest pushes a sample alert through the same dispatch path the
// matcher uses, so a user can verify delivery end to end.
func (s *Service) handleTest(ctx context.Context, b *tgbot.Bot, update *models.Update) {
	chatID := update.Message.Chat.ID

	now := time.Now().In(s.loc)
	sample := database.Item{
		SourceKey: "technobase.fm",
		Day:       now.Format("2006-01-02"),
		Presenter: "Test DJ",
		Title:     "Test Show",
		StartTime: now.Add(time.Hour).Format("15:04"),
		EndTime:   now.Add(3 * time.Hour).Format("15:04"),
		Style:     "Test",
	}

	if err := s.SendUpcomingShow(ctx, chatID, sample, now.Add(time.Hour), defaultOffset); err != nil {
		slog.Error("Test alert failed", "chat_id", chatID, "error", err)
	}
}

func (s *Service) replyStoreError(ctx context.Context, chatID int64, command string, err error) {
	slog.Error("Command failed", "command", command, "chat_id", chatID, "error", err)
	if errors.Is(err, database.ErrNotReady) {
		s.reply(ctx, chatID, "The schedule store is currently unavailable, try again later.")
		return
	}
	s.reply(ctx, chatID, "Something went wrong, try again later.")
}

// parseFavoriteArgs splits "/fav technobase.fm Cloud Seven" into the source
// key and a possibly multi-word presenter name.
func (s *Service) parseFavoriteArgs(text, command string) (string, string, error) {
	args := commandArgs(text, command)
	if len(args) < 2 {
		return "", "", fmt.Errorf("Usage: %s <source> <presenter>", command)
	}

	sourceKey := args[0]
	if _, err := s.sourceCache.GetConfig(sourceKey); err != nil {
		return "", "", fmt.Errorf("Unknown source %q. Known sources: %s.",
			sourceKey, strings.Join(s.sourceKeys(), ", "))
	}

	return sourceKey, strings.Join(args[1:], " "), nil
}

func (s *Service) sourceKeys() []string {
	configs := s.sourceCache.GetConfigs()
	keys := make([]string, 0, len(configs))
	for _, c := range configs {
		keys = append(keys, c.Key)
	}
	return keys
}

func commandArgs(text, command string) []string {
	return strings.Fields(strings.TrimSpace(strings.TrimPrefix(text, command)))
}

func formatShowLine(item database.Item) string {
	line := fmt.Sprintf("%s-%s %s - %s", item.StartTime, item.EndTime, item.Presenter, item.Title)
	if item.Style != "" && item.Style != "Unknown" {
		line += " [" + item.Style + "]"
	}
	return line
}
