package bot

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/showplan/showplan/app/database"
	"github.com/showplan/showplan/app/notify"
	"github.com/showplan/showplan/app/sources"
)

var _ notify.Dispatcher = (*Service)(nil)

// PageFetcher retrieves raw pages for the on-demand roster lookup.
type PageFetcher interface {
	Run(ctx context.Context, pageURL string) ([]byte, error)
}

// Service is the Telegram surface: command handling for subscriptions and
// the delivery channel for upcoming-show alerts.
type Service struct {
	bot         *tgbot.Bot
	sourceCache *sources.Cache
	userRepo    database.UserRepository
	itemRepo    database.ItemRepository
	fetcher     PageFetcher
	loc         *time.Location
}

func NewService(token string, sourceCache *sources.Cache, userRepo database.UserRepository,
	itemRepo database.ItemRepository, fetcher PageFetcher, loc *time.Location) (*Service, error) {
	if token == "" {
		return nil, fmt.Errorf("telegram token is required")
	}

	s := &Service{
		sourceCache: sourceCache,
		userRepo:    userRepo,
		itemRepo:    itemRepo,
		fetcher:     fetcher,
		loc:         loc,
	}

	opts := []tgbot.Option{
		tgbot.WithDefaultHandler(s.handleDefault),
	}

	b, err := tgbot.New(token, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	s.bot = b

	b.RegisterHandler(tgbot.HandlerTypeMessageText, "/start", tgbot.MatchTypeExact, s.handleStart)
	b.RegisterHandler(tgbot.HandlerTypeMessageText, "/help", tgbot.MatchTypeExact, s.handleHelp)
	b.RegisterHandler(tgbot.HandlerTypeMessageText, "/fav", tgbot.MatchTypePrefix, s.handleFav)
	b.RegisterHandler(tgbot.HandlerTypeMessageText, "/unfav", tgbot.MatchTypePrefix, s.handleUnfav)
	b.RegisterHandler(tgbot.HandlerTypeMessageText, "/favs", tgbot.MatchTypeExact, s.handleFavs)
	b.RegisterHandler(tgbot.HandlerTypeMessageText, "/offsets", tgbot.MatchTypePrefix, s.handleOffsets)
	b.RegisterHandler(tgbot.HandlerTypeMessageText, "/tz", tgbot.MatchTypePrefix, s.handleTimezone)
	b.RegisterHandler(tgbot.HandlerTypeMessageText, "/plan", tgbot.MatchTypePrefix, s.handlePlan)
	b.RegisterHandler(tgbot.HandlerTypeMessageText, "/djs", tgbot.MatchTypePrefix, s.handleDJs)
	b.RegisterHandler(tgbot.HandlerTypeMessageText, "/test", tgbot.MatchTypeExact, s.handleTest)

	return s, nil
}

// Start runs the long-polling loop until ctx is cancelled.
func (s *Service) Start(ctx context.Context) {
	slog.Info("Starting telegram bot")
	s.bot.Start(ctx)
	slog.Info("Telegram bot stopped")
}

// SendUpcomingShow delivers one show alert. Callers record suppression only
// after a nil return, so a failed send is retried on the next matcher pass.
func (s *Service) SendUpcomingShow(ctx context.Context, chatID int64, item database.Item,
	startsAt time.Time, offsetLiteral string) error {

	userLoc := s.loc
	if user, err := s.userRepo.GetUser(chatID); err == nil && user != nil && user.Timezone != "" {
		if loc, err := time.LoadLocation(user.Timezone); err == nil {
			userLoc = loc
		}
	}

	text := fmt.Sprintf("🎧 %s is on in %s!\n\n%s\n%s\nStarts at %s",
		item.Presenter, offsetLiteral, formatShowLine(item), item.SourceKey,
		startsAt.In(userLoc).Format("15:04 (Mon, Jan 2)"))

	return s.send(ctx, chatID, text)
}

func (s *Service) send(ctx context.Context, chatID int64, text string) error {
	_, err := s.bot.SendMessage(ctx, &tgbot.SendMessageParams{
		ChatID: chatID,
		Text:   text,
	})
	if err != nil {
		return fmt.Errorf("failed to send telegram message: %w", err)
	}
	return nil
}

// reply is for command responses where a delivery failure is only worth a
// log line.
func (s *Service) reply(ctx context.Context, chatID int64, text string) {
	if err := s.send(ctx, chatID, text); err != nil {
		slog.Error("Failed to send reply", "chat_id", chatID, "error", err)
	}
}

func (s *Service) handleDefault(ctx context.Context, b *tgbot.Bot, update *models.Update) {
	if update.Message == nil || update.Message.Text == "" {
		return
	}
	s.reply(ctx, update.Message.Chat.ID, "Unknown command. Send /help for the list of commands.")
}
