package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/showplan/showplan/app/database"
	"github.com/showplan/showplan/app/notify"
	"github.com/showplan/showplan/app/scraper"
	"github.com/showplan/showplan/app/sources"
)

var _ SchedulerInterface = (*Scheduler)(nil)

// ErrRunActive is returned when a run trigger arrives while another run is
// in progress. Triggers are dropped, never queued.
var ErrRunActive = errors.New("a scrape run is already active")

var dayPattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// matcherSchedule fires the notification pass every quarter hour, matching
// the notify.FireWindow width.
const matcherSchedule = "*/15 * * * *"

// PageFetcher retrieves raw schedule pages.
type PageFetcher interface {
	Run(ctx context.Context, pageURL string) ([]byte, error)
}

// PageExtractor turns raw pages into show records.
type PageExtractor interface {
	Run(data []byte, sourceKey, day string) ([]scraper.Show, error)
}

type Scheduler struct {
	sourceCache   *sources.Cache
	sourceRepo    database.SourceRepository
	itemRepo      database.ItemRepository
	fetcher       PageFetcher
	extractor     PageExtractor
	matcher       *notify.Matcher
	schedule      string
	retentionDays int
	health        database.Health
	cron          *cron.Cron
	scrapeEntry   cron.EntryID
	scraping      atomic.Bool
	matching      atomic.Bool
	ctx           context.Context
	cancel        context.CancelFunc
	wg            sync.WaitGroup
}

func NewScheduler(sourceCache *sources.Cache, sourceRepo database.SourceRepository,
	itemRepo database.ItemRepository, fetcher PageFetcher, extractor PageExtractor,
	matcher *notify.Matcher, schedule string, retentionDays int, loc *time.Location,
	health database.Health) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		sourceCache:   sourceCache,
		sourceRepo:    sourceRepo,
		itemRepo:      itemRepo,
		fetcher:       fetcher,
		extractor:     extractor,
		matcher:       matcher,
		schedule:      schedule,
		retentionDays: retentionDays,
		health:        health,
		cron:          cron.New(cron.WithLocation(loc)),
		ctx:           ctx,
		cancel:        cancel,
	}
}

func (s *Scheduler) Start() error {
	entry, err := s.cron.AddFunc(s.schedule, func() {
		if err := s.trigger("", nil); err != nil {
			slog.Warn("Scheduled run dropped", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid scrape schedule %q: %w", s.schedule, err)
	}
	s.scrapeEntry = entry

	if _, err := s.cron.AddFunc(matcherSchedule, s.triggerMatch); err != nil {
		return fmt.Errorf("failed to register matcher schedule: %w", err)
	}

	s.cron.Start()
	slog.Info("Scheduler started", "scrape_schedule", s.schedule, "matcher_schedule", matcherSchedule)

	return nil
}

func (s *Scheduler) Stop() {
	cronCtx := s.cron.Stop()
	s.cancel()
	<-cronCtx.Done()
	s.wg.Wait()
}

// RunNow validates an on-demand request and starts it asynchronously.
// Validation failures and a busy coordinator are reported synchronously;
// nothing is fetched before both checks pass.
func (s *Scheduler) RunNow(sourceKey string, days []string) error {
	// A broken store makes every scrape unit fail; reject at the boundary.
	if !s.health.Ready {
		return database.ErrNotReady
	}

	if sourceKey != "" {
		if _, err := s.sourceCache.GetConfig(sourceKey); err != nil {
			return fmt.Errorf("unknown source %q", sourceKey)
		}
	}

	for _, day := range days {
		if !dayPattern.MatchString(day) {
			return fmt.Errorf("malformed date %q, expected YYYY-MM-DD", day)
		}
		if _, err := time.Parse("2006-01-02", day); err != nil {
			return fmt.Errorf("invalid date %q: %w", day, err)
		}
	}

	return s.trigger(sourceKey, days)
}

func (s *Scheduler) IsRunning() bool {
	return s.scraping.Load()
}

func (s *Scheduler) NextRun() *time.Time {
	entry := s.cron.Entry(s.scrapeEntry)
	if entry.Next.IsZero() {
		return nil
	}
	next := entry.Next
	return &next
}

// trigger moves the coordinator from Idle to Running, or drops the request
// when a run is already active. At most one run proceeds process-wide.
func (s *Scheduler) trigger(sourceKey string, days []string) error {
	if !s.scraping.CompareAndSwap(false, true) {
		slog.Warn("Run trigger dropped, another run is active", "source", sourceKey)
		return ErrRunActive
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.scraping.Store(false)
		s.executeRun(s.ctx, sourceKey, days)
	}()

	return nil
}

func (s *Scheduler) triggerMatch() {
	// No matcher means notifications are disabled.
	if s.matcher == nil {
		return
	}
	if !s.matching.CompareAndSwap(false, true) {
		slog.Warn("Matcher pass dropped, previous pass still running")
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.matching.Store(false)

		if err := s.matcher.Run(s.ctx, time.Now()); err != nil {
			slog.Error("Matcher pass failed", "error", err)
		}
	}()
}
