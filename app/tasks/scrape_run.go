package tasks

import (
	"context"
	"log/slog"
	"time"

	"github.com/showplan/showplan/app/database"
	"github.com/showplan/showplan/app/scraper"
	"github.com/showplan/showplan/app/sources"
)

// fetchDelay paces consecutive date fetches within one source so the
// upstream site is not hammered.
const fetchDelay = 2 * time.Second

// executeRun processes one full scrape pass: every enabled source (or the
// requested one) across the date window, strictly sequentially. A failing
// (source, date) unit is logged and skipped; only a failure of the outer
// coordination itself would abort the run.
func (s *Scheduler) executeRun(ctx context.Context, sourceKey string, days []string) {
	started := time.Now()

	var configs []*sources.Config
	if sourceKey != "" {
		config, err := s.sourceCache.GetConfig(sourceKey)
		if err != nil {
			slog.Error("Run aborted, source vanished from configuration", "source", sourceKey, "error", err)
			return
		}
		configs = []*sources.Config{config}
	} else {
		configs = s.sourceCache.GetEnabledConfigs()
	}

	if len(days) == 0 {
		days = defaultWindow(time.Now())
	}

	slog.Info("Scrape run started", "sources", len(configs), "days", len(days))

	units, failures := 0, 0
	for _, config := range configs {
		for i, day := range days {
			if i > 0 {
				select {
				case <-ctx.Done():
					slog.Warn("Scrape run abandoned on shutdown")
					return
				case <-time.After(fetchDelay):
				}
			}

			units++
			if err := s.scrapeUnit(ctx, config, day); err != nil {
				failures++
				slog.Error("Scrape unit failed", "source", config.Key, "day", day, "error", err)
			}
		}

		if err := s.sourceRepo.TouchLastRun(config.Key, time.Now()); err != nil {
			slog.Warn("Failed to record source run timestamp", "source", config.Key, "error", err)
		}
	}

	today := time.Now().Format("2006-01-02")
	deletedItems, deletedDays, err := s.itemRepo.CleanupRetention(today, s.retentionDays)
	if err != nil {
		slog.Error("Retention cleanup failed", "error", err)
	} else if deletedItems > 0 || deletedDays > 0 {
		slog.Info("Retention cleanup done", "items", deletedItems, "days", deletedDays)
	}

	slog.Info("Scrape run completed", "duration", time.Since(started),
		"units", units, "failures", failures)
}

// scrapeUnit handles one (source, date) pair: fetch, extract, persist. The
// day record is written even for an empty page, marking it "known empty";
// item rows are only written when the page yielded shows.
func (s *Scheduler) scrapeUnit(ctx context.Context, config *sources.Config, day string) error {
	data, err := s.fetcher.Run(ctx, scraper.BuildURL(config.Key, day))
	if err != nil {
		return err
	}

	shows, err := s.extractor.Run(data, config.Key, day)
	if err != nil {
		return err
	}

	if err := s.itemRepo.UpsertDay(config.Key, day, time.Now()); err != nil {
		return err
	}

	if len(shows) == 0 {
		slog.Debug("Page yielded no shows", "source", config.Key, "day", day)
		return nil
	}

	items := make([]database.NewItem, 0, len(shows))
	for _, show := range shows {
		items = append(items, database.NewItem{
			Day:       show.Day,
			Presenter: show.Presenter,
			Title:     show.Title,
			StartTime: show.StartTime,
			EndTime:   show.EndTime,
			Style:     show.Style,
		})
	}

	inserted, err := s.itemRepo.UpsertItems(config.Key, items)
	if err != nil {
		return err
	}

	slog.Info("Scrape unit done", "source", config.Key, "day", day,
		"extracted", len(shows), "new", inserted)

	return nil
}

// defaultWindow is the relative date range a full run covers: yesterday
// through five days ahead, seven dates total.
func defaultWindow(now time.Time) []string {
	days := make([]string, 0, 7)
	for offset := -1; offset <= 5; offset++ {
		days = append(days, now.AddDate(0, 0, offset).Format("2006-01-02"))
	}
	return days
}
