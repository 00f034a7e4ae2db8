package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/jonathan/autopublisher/internal/config"
	"github.com/jonathan/autopublisher/internal/db"
	"github.com/jonathan/autopublisher/internal/fetch"
	"github.com/jonathan/autopublisher/internal/observability"
	"github.com/jonathan/autopublisher/internal/publishing"
	"github.com/jonathan/autopublisher/internal/queue"
)

// mediaFetchInterval paces featured image downloads per image host.
const mediaFetchInterval = 500 * time.Millisecond

// loadConfig loads the effective configuration and a logger for it.
func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	return cfg, observability.NewLogger(cfg.LogLevel), nil
}

func openBroker(cfg *config.Config, logger *slog.Logger) (*queue.Broker, error) {
	broker, err := queue.New(queue.Config{
		URL:       cfg.RedisURL,
		ResultTTL: cfg.ResultExpires(),
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to queue: %w", err)
	}
	return broker, nil
}

// openPublicationLog connects to the publication log and applies its schema.
// It returns nil when no database is configured.
func openPublicationLog(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*db.DB, error) {
	if cfg.DatabaseURL == "" {
		logger.Info("DATABASE_URL not set, publication log disabled")
		return nil, nil
	}
	database, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(ctx); err != nil {
		database.Close()
		return nil, err
	}
	return database, nil
}

func newFactory(cfg *config.Config, logger *slog.Logger) *publishing.Factory {
	media := fetch.DefaultOptions()
	media.Limiter = fetch.NewHostLimiter(mediaFetchInterval, 2)
	return publishing.NewFactory(
		publishing.WithLogger(logger),
		publishing.WithInstagramGrace(cfg.InstagramGrace()),
		publishing.WithFetchOptions(media),
	)
}

// newPublishingService wires the factory, credentials and retry policy. A nil
// log leaves publications unrecorded.
func newPublishingService(cfg *config.Config, logger *slog.Logger, log *db.DB) *publishing.Service {
	policy := publishing.RetryPolicy{
		MaxAttempts: cfg.MaxRetryAttempts,
		Delay:       cfg.RetryDelay(),
	}
	opts := []publishing.ServiceOption{publishing.WithServiceLogger(logger)}
	if log != nil {
		opts = append(opts, publishing.WithRecorder(log))
	}
	return publishing.NewService(newFactory(cfg, logger), cfg.Platforms, policy, opts...)
}

// readJSONFile decodes the JSON document at path into v.
func readJSONFile(path string, v any) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := json.Unmarshal(content, v); err != nil {
		return fmt.Errorf("failed to unmarshal %s: %w", path, err)
	}
	return nil
}
