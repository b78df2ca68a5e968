package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/showplan/showplan/app/calendar"
	"github.com/showplan/showplan/app/database"
	"github.com/showplan/showplan/app/sources"
	"github.com/showplan/showplan/app/tasks"
)

func NewHandler(sourceCache *sources.Cache, sourceRepo database.SourceRepository,
	itemRepo database.ItemRepository, scheduler tasks.SchedulerInterface,
	health database.Health, loc *time.Location, version string) *Handler {
	return &Handler{
		sourceCache: sourceCache,
		sourceRepo:  sourceRepo,
		itemRepo:    itemRepo,
		scheduler:   scheduler,
		generator:   calendar.NewGenerator(version),
		health:      health,
		loc:         loc,
		version:     version,
	}
}

func (h *Handler) GetRoot(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service":     "showplan",
		"version":     h.version,
		"description": "Web-radio schedule scraper with query API, calendar feeds, and show notifications",
		"endpoints": map[string]string{
			"health":     "/health",
			"sources":    "/sources",
			"items":      "/items/<source>?date=YYYY-MM-DD | ?from=...&to=...",
			"calendar":   "/calendar/<source>.ics?days=7",
			"run":        "/runs (POST)",
			"run_status": "/runs/status",
		},
	})
}

// GetHealth reports overall and store health. A store that failed to
// initialize leaves the process serving reads in a degraded mode, and this
// endpoint is how operators see that.
func (h *Handler) GetHealth(c *gin.Context) {
	store := gin.H{"status": "ok"}
	status := "ok"

	if !h.health.Ready {
		store = gin.H{"status": "degraded", "reason": h.health.Reason}
		status = "degraded"
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    status,
		"store":     store,
		"timestamp": time.Now().In(h.loc).Format(time.RFC3339),
	})
}

func (h *Handler) GetSources(c *gin.Context) {
	dbSources, err := h.sourceRepo.GetSources()
	if err != nil {
		slog.Error("Database error", "operation", "get_sources", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	out := make([]sourceResponse, 0, len(dbSources))
	for _, s := range dbSources {
		out = append(out, sourceResponse{
			Key:       s.Key,
			Name:      s.Name,
			Enabled:   s.Enabled,
			LastRunAt: s.LastRunAt,
		})
	}

	c.JSON(http.StatusOK, gin.H{"sources": out})
}

// GetItems returns schedule items for a source, ordered by day and start
// time. An exact date takes precedence over a range; with neither, every
// stored item for the source is returned.
func (h *Handler) GetItems(c *gin.Context) {
	sourceKey := c.Param("source")
	if _, err := h.sourceCache.GetConfig(sourceKey); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown source"})
		return
	}

	var items []database.Item
	var err error

	date := c.Query("date")
	from, to := c.Query("from"), c.Query("to")

	switch {
	case date != "":
		items, err = h.itemRepo.GetItemsForDay(sourceKey, date)
	case from != "" && to != "":
		items, err = h.itemRepo.GetItemsForRange(sourceKey, from, to)
	default:
		items, err = h.itemRepo.GetAllItems(sourceKey)
	}

	if err != nil {
		if errors.Is(err, database.ErrNotReady) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "store unavailable"})
			return
		}
		slog.Error("Database error", "operation", "get_items", "source", sourceKey, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	out := make([]itemResponse, 0, len(items))
	for _, item := range items {
		out = append(out, itemResponse{
			ID:        item.ID,
			Source:    item.SourceKey,
			Day:       item.Day,
			Presenter: item.Presenter,
			Title:     item.Title,
			StartTime: item.StartTime,
			EndTime:   item.EndTime,
			Style:     item.Style,
		})
	}

	resp := gin.H{"items": out}

	// For an exact date, a day record tells "known empty" apart from
	// "never scraped".
	if date != "" {
		if days, err := h.itemRepo.GetDays(sourceKey, date, date); err == nil {
			resp["scraped"] = len(days) > 0
		}
	}

	c.JSON(http.StatusOK, resp)
}

// TriggerRun accepts an on-demand scrape request. Validation happens before
// anything is fetched; the run itself is asynchronous.
func (h *Handler) TriggerRun(c *gin.Context) {
	var req runRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if err := h.scheduler.RunNow(req.Source, req.Days); err != nil {
		if errors.Is(err, tasks.ErrRunActive) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		if errors.Is(err, database.ErrNotReady) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "store unavailable"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
}

func (h *Handler) GetRunStatus(c *gin.Context) {
	status := gin.H{"active": h.scheduler.IsRunning()}
	if next := h.scheduler.NextRun(); next != nil {
		status["next_run"] = next.Format(time.RFC3339)
	}

	c.JSON(http.StatusOK, status)
}

// GetCalendar serves a bounded iCalendar feed for one source.
func (h *Handler) GetCalendar(c *gin.Context) {
	sourceKey := strings.TrimSuffix(c.Param("source"), ".ics")

	config, err := h.sourceCache.GetConfig(sourceKey)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown source"})
		return
	}

	days := calendar.DefaultDays
	if raw := c.Query("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid day count"})
			return
		}
		days = calendar.ClampDays(parsed)
	}

	now := time.Now().In(h.loc)
	from := now.Format("2006-01-02")
	to := now.AddDate(0, 0, days-1).Format("2006-01-02")

	items, err := h.itemRepo.GetItemsForRange(sourceKey, from, to)
	if err != nil {
		if errors.Is(err, database.ErrNotReady) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "store unavailable"})
			return
		}
		slog.Error("Database error", "operation", "get_calendar", "source", sourceKey, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	c.Header("Content-Type", "text/calendar; charset=utf-8")
	c.String(http.StatusOK, h.generator.Run(config.Name, items, h.loc))
}
