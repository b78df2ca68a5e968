package cfg

import (
	"cmp"
	"fmt"
	"time"

	"github.com/jessevdk/go-flags"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Storage configuration
	DataPath string `long:"data-path" env:"DATA_PATH" default:"./data/showplan.db" description:"Path to the SQLite database file"`

	// Application configuration
	Port           string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	BaseUrl        string `long:"base-url" env:"BASE_URL" description:"Public base URL for the service (e.g., https://plan.example.com)"`
	SourcesDir     string `long:"sources-dir" env:"SOURCES_DIR" default:"./sources" description:"Directory containing source configuration files"`
	ScrapeSchedule string `long:"scrape-schedule" env:"SCRAPE_SCHEDULE" default:"0 */4 * * *" description:"Cron expression for the recurring scrape run"`
	RetentionDays  int    `long:"retention-days" env:"RETENTION_DAYS" default:"60" description:"Days to keep schedule data before cleanup"`
	ProxyURL       string `long:"proxy-url" env:"PROXY_URL" description:"Optional upstream HTTP proxy for page fetches"`

	// Notification configuration
	TelegramToken string `long:"telegram-token" env:"TELEGRAM_TOKEN" description:"Telegram bot token (bot disabled when empty)"`

	// Application metadata
	UserAgent string `long:"user-agent" env:"USER_AGENT" default:"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:130.0) Gecko/20100101 Firefox/130.0" description:"User agent string for page fetches"`
	Timezone  string `long:"timezone" env:"TZ" default:"Europe/Berlin" description:"Timezone of the upstream schedules (e.g., Europe/Berlin)"`
	Debug     bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

var globalCfg *Cfg

func Load() (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	if raw.RetentionDays <= 0 {
		return nil, fmt.Errorf("retention days must be positive, got %d", raw.RetentionDays)
	}

	cfg := &Cfg{
		DataPath:       raw.DataPath,
		Port:           raw.Port,
		BaseUrl:        raw.BaseUrl,
		SourcesDir:     raw.SourcesDir,
		ScrapeSchedule: raw.ScrapeSchedule,
		RetentionDays:  raw.RetentionDays,
		ProxyURL:       raw.ProxyURL,
		TelegramToken:  raw.TelegramToken,
		UserAgent:      raw.UserAgent,
		Timezone:       raw.Timezone,
		Debug:          raw.Debug,
		Version:        GetVersion(),
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		fmt.Printf("Warning: Invalid timezone '%s', using system default: %v\n", cfg.Timezone, err)
	}

	globalCfg = cfg

	return cfg, nil
}

func Get() *Cfg {
	if globalCfg == nil {
		panic("configuration not loaded - call cfg.Load() first")
	}
	return globalCfg
}

// Location returns the configured schedule timezone, falling back to the
// process-local zone when the configured name does not resolve.
func Location() *time.Location {
	c := Get()
	if loc, err := time.LoadLocation(c.Timezone); err == nil {
		return loc
	}
	return time.Local
}

func applyTimezone(timezone string) error {
	if timezone != "" {
		if loc, err := time.LoadLocation(timezone); err != nil {
			return err
		} else {
			time.Local = loc
		}
	}
	return nil
}
