package tasks

import (
	"time"
)

// SchedulerInterface is what the API layer sees of the run coordinator.
// Example usage:
//
//	scheduler := NewScheduler(sourceCache, sourceRepo, itemRepo, fetcher,
//		extractor, matcher, schedule, retentionDays, loc, health)
//	scheduler.Start()
//	defer scheduler.Stop()
//	scheduler.RunNow("", nil)
type SchedulerInterface interface {
	Start() error
	Stop()
	RunNow(sourceKey string, days []string) error
	IsRunning() bool
	NextRun() *time.Time
}
