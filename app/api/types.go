package api

import (
	"time"

	"github.com/showplan/showplan/app/calendar"
	"github.com/showplan/showplan/app/database"
	"github.com/showplan/showplan/app/sources"
	"github.com/showplan/showplan/app/tasks"
)

type Handler struct {
	sourceCache *sources.Cache
	sourceRepo  database.SourceRepository
	itemRepo    database.ItemRepository
	scheduler   tasks.SchedulerInterface
	generator   *calendar.Generator
	health      database.Health
	loc         *time.Location
	version     string
}

type runRequest struct {
	Source string   `json:"source"`
	Days   []string `json:"days"`
}

type itemResponse struct {
	ID        int64  `json:"id"`
	Source    string `json:"source"`
	Day       string `json:"day"`
	Presenter string `json:"presenter"`
	Title     string `json:"title"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Style     string `json:"style"`
}

type sourceResponse struct {
	Key       string     `json:"key"`
	Name      string     `json:"name"`
	Enabled   bool       `json:"enabled"`
	LastRunAt *time.Time `json:"last_run_at,omitempty"`
}
