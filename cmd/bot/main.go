package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	"github.com/olegsv/twmentions/internal/config"
	"github.com/olegsv/twmentions/internal/database"
	"github.com/olegsv/twmentions/internal/dispatcher"
	"github.com/olegsv/twmentions/internal/engine"
	"github.com/olegsv/twmentions/internal/scheduler"
	"github.com/olegsv/twmentions/internal/twitter"
	"github.com/olegsv/twmentions/pkg/models"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Setup logger
	logger := setupLogger(cfg.LogLevel, cfg.LogFormat)
	logger.Info("starting twitter mention bot")

	// Connect to database
	db, err := database.New(cfg.DatabasePath)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Run migrations
	ctx := context.Background()
	if err := db.Migrate(ctx); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}
	logger.Info("database migrations completed")

	// Create components
	engineClient := engine.NewClient(engine.Config{
		BaseURL: cfg.EngineURL,
		Timeout: cfg.EngineTimeout,
	})

	disp := dispatcher.New(dispatcher.Deps{
		Accounts: db,
		Quotas:   db,
		Cursors:  db,
		NewClient: func(creds models.Credentials) dispatcher.PlatformClient {
			return twitter.NewClient(twitter.Config{
				BaseURL:     cfg.TwitterAPIBaseURL,
				Credentials: creds,
				Timeout:     cfg.HTTPTimeout,
			}, logger)
		},
		Engine:         engineClient,
		Logger:         logger,
		Lookback:       cfg.MentionLookback,
		MaxResults:     cfg.MentionMaxResults,
		DebugResponses: cfg.DebugResponses,
	})

	mentionJob := scheduler.New("mentions", cfg.PollInterval, func(ctx context.Context) {
		disp.RunTick(ctx)
	}, logger)

	quotaResetJob := scheduler.New("quota_reset", 24*time.Hour, func(ctx context.Context) {
		if err := db.ResetDailyQuotas(ctx); err != nil {
			logger.Error("failed to reset daily quotas", "error", err)
		}
	}, logger)

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(ctx)
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh

		logger.Info("received shutdown signal", "signal", sig)
		logger.Info("shutting down...")
		cancel()
	}()

	// Run both jobs; each drains its in-flight run before returning
	logger.Info("bot is running, press Ctrl+C to stop")
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		quotaResetJob.Run(ctx)
	}()
	mentionJob.Run(ctx)
	wg.Wait()

	logger.Info("bot stopped")
}

func setupLogger(level, format string) *slog.Logger {
	var handler slog.Handler
	logLevel := parseLevel(level)

	if format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: logLevel,
		})
	} else {
		// Pretty colored output for console
		handler = tint.NewHandler(os.Stdout, &tint.Options{
			Level:      logLevel,
			TimeFormat: time.DateTime,
			NoColor:    false,
		})
	}

	return slog.New(handler)
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
