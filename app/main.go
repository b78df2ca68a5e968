package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/showplan/showplan/app/api"
	"github.com/showplan/showplan/app/bot"
	"github.com/showplan/showplan/app/cfg"
	"github.com/showplan/showplan/app/database"
	"github.com/showplan/showplan/app/notify"
	"github.com/showplan/showplan/app/scraper"
	"github.com/showplan/showplan/app/sources"
	"github.com/showplan/showplan/app/tasks"
)

func main() {
	// A missing .env file is fine, environment variables still apply
	_ = godotenv.Load()

	appCfg, err := cfg.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if appCfg == nil {
		// Help was shown, exit gracefully
		return
	}

	logLevel := slog.LevelInfo
	if appCfg.Debug {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})))

	slog.Info("Starting showplan", "version", appCfg.Version, "timezone", appCfg.Timezone)

	// A broken store is not fatal: the scraper and write paths stay off,
	// but the HTTP surface keeps serving and reports degraded health.
	db, initErr := openStore(appCfg.DataPath)
	if initErr != nil {
		slog.Error("Store initialization failed, running degraded", "error", initErr)
	} else {
		defer db.Close()
	}
	health := database.NewHealth(initErr)

	sourceRepo := database.NewSourceRepository(db)
	itemRepo := database.NewItemRepository(db)
	userRepo := database.NewUserRepository(db)

	slog.Info("Loading source configurations", "dir", appCfg.SourcesDir)
	sourceCache := sources.NewCache(appCfg.SourcesDir)
	if err := sourceCache.Run(); err != nil {
		slog.Error("Failed to load source configurations", "error", err)
		os.Exit(1)
	}
	slog.Info("Source configurations loaded", "count", sourceCache.GetConfigCount())

	if health.Ready {
		for _, config := range sourceCache.GetConfigs() {
			if err := sourceRepo.UpsertSource(config.Key, config.Name, config.Enabled); err != nil {
				slog.Warn("Failed to register source", "source", config.Key, "error", err)
				continue
			}
			slog.Info("Registered source", "source", config.Key, "name", config.Name, "enabled", config.Enabled)
		}
	}

	fetcher, err := scraper.NewFetcher(appCfg.UserAgent, appCfg.ProxyURL)
	if err != nil {
		slog.Error("Failed to initialize fetcher", "error", err)
		os.Exit(1)
	}
	extractor := scraper.NewExtractor()

	loc := cfg.Location()

	var botService *bot.Service
	var matcher *notify.Matcher
	if appCfg.TelegramToken != "" {
		botService, err = bot.NewService(appCfg.TelegramToken, sourceCache, userRepo, itemRepo, fetcher, loc)
		if err != nil {
			slog.Error("Failed to initialize telegram bot", "error", err)
			os.Exit(1)
		}
		matcher = notify.NewMatcher(userRepo, itemRepo, botService, loc)
	} else {
		slog.Info("Telegram token not set, notifications disabled")
	}

	scheduler := tasks.NewScheduler(sourceCache, sourceRepo, itemRepo, fetcher, extractor,
		matcher, appCfg.ScrapeSchedule, appCfg.RetentionDays, loc, health)
	if health.Ready {
		if err := scheduler.Start(); err != nil {
			slog.Error("Failed to start scheduler", "error", err)
			os.Exit(1)
		}
		defer scheduler.Stop()
	} else {
		slog.Warn("Scheduler not started, store unavailable")
	}

	botCtx, botCancel := context.WithCancel(context.Background())
	defer botCancel()
	if botService != nil {
		go botService.Start(botCtx)
	}

	handler := api.NewHandler(sourceCache, sourceRepo, itemRepo, scheduler, health, loc, appCfg.Version)
	server := api.NewServer(handler)

	httpServer := &http.Server{
		Addr:         ":" + appCfg.Port,
		Handler:      server,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("Starting HTTP server", "port", appCfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		slog.Info("Received signal", "signal", sig.String())
	case err := <-serverErrChan:
		slog.Error("Server error", "error", err)
	}

	slog.Info("Shutting down gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	botCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	} else {
		slog.Info("HTTP server stopped")
	}

	// Scheduler is stopped via defer
	slog.Info("Shutdown complete")
}

func openStore(path string) (*database.DB, error) {
	db, err := database.NewConnection(path)
	if err != nil {
		return nil, err
	}

	version, dirty, err := database.RunMigrations(db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Info("Store ready", "path", path, "schema_version", version, "dirty", dirty)

	return db, nil
}
