package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"NewsAggregator/internal/api"
	"NewsAggregator/internal/config"
	"NewsAggregator/internal/domain"
	"NewsAggregator/internal/infrastructure/httpfetch"
	"NewsAggregator/internal/infrastructure/sources"
	"NewsAggregator/internal/infrastructure/storage"
	"NewsAggregator/internal/logging"
	"NewsAggregator/internal/metrics"
	"NewsAggregator/internal/ports"
	"NewsAggregator/internal/usecase"
)

// schemaMigrator is implemented by stores that own a schema.
type schemaMigrator interface {
	MigrateUp(logger *slog.Logger) error
	MigrateDown(steps int, logger *slog.Logger) error
}

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg       config.Config
	logger    *slog.Logger
	store     ports.Store
	metrics   *metrics.Metrics
	ingestion *usecase.Ingestion
}

// New opens the store and builds the ingestion pipeline. The in-memory
// store starts empty, so configured sources are synced into it right away.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	}

	store, err := storage.Open(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	application := NewWithStore(cfg, store, nil, baseLogger)

	if _, inMemory := store.(*storage.MemoryStore); inMemory {
		if err := application.SyncSources(ctx); err != nil {
			_ = store.Close()
			return nil, err
		}
	}
	return application, nil
}

// NewWithStore wires the application around an already opened store.
// A nil fetcher selects the default HTTP client.
func NewWithStore(cfg config.Config, store ports.Store, fetcher ports.Fetcher, baseLogger *slog.Logger) *Application {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	}
	if fetcher == nil {
		opts := []httpfetch.Option{httpfetch.WithLogger(baseLogger.With("component", "httpfetch"))}
		if cfg.Ingestion.UserAgent != "" {
			opts = append(opts, httpfetch.WithUserAgent(cfg.Ingestion.UserAgent))
		}
		fetcher = httpfetch.New(opts...)
	}

	m := metrics.New()
	ingestion := usecase.NewIngestion(usecase.IngestionDeps{
		Profiles:    cfg.Profiles(),
		Adapters:    sources.Registry(fetcher, baseLogger.With("component", "adapter")),
		Store:       store,
		Metrics:     m,
		Logger:      baseLogger,
		Concurrency: cfg.Ingestion.Concurrency,
	})

	return &Application{
		cfg:       cfg,
		logger:    baseLogger,
		store:     store,
		metrics:   m,
		ingestion: ingestion,
	}
}

// Ingestion exposes the orchestrator.
func (a *Application) Ingestion() *usecase.Ingestion {
	return a.ingestion
}

// Config returns the loaded configuration.
func (a *Application) Config() config.Config {
	return a.cfg
}

// SyncSources upserts a sources row for every valid configured profile.
func (a *Application) SyncSources(ctx context.Context) error {
	for _, p := range a.cfg.Profiles().Valid() {
		src, err := a.store.UpsertSource(ctx, domain.Source{
			Name:          p.Name,
			APIIdentifier: p.ID,
			WebsiteURL:    p.WebsiteURL,
			Description:   p.Description,
			IsActive:      true,
		})
		if err != nil {
			return fmt.Errorf("sync source %s: %w", p.ID, err)
		}
		a.logger.Info("source synced", "source", src.APIIdentifier, "id", src.ID)
	}
	return nil
}

// Migrate applies (up) or rolls back one step of (down) the schema.
// Stores without a schema accept both as no-ops.
func (a *Application) Migrate(direction string) error {
	m, ok := a.store.(schemaMigrator)
	if !ok {
		a.logger.Info("store has no schema to migrate")
		return nil
	}
	logger := a.logger.With("component", "migrate")
	switch direction {
	case "", "up":
		return m.MigrateUp(logger)
	case "down":
		return m.MigrateDown(1, logger)
	default:
		return fmt.Errorf("unknown migration direction %q", direction)
	}
}

// Handler builds the HTTP API over the store.
func (a *Application) Handler() http.Handler {
	return api.NewRouter(api.Deps{
		Reader:      a.store,
		Preferences: a.store,
		Metrics:     a.metrics.Handler(),
		JWTSecret:   a.cfg.Auth.JWTSecret,
		Logger:      a.logger,
	})
}

// Close releases the store.
func (a *Application) Close() error {
	return a.store.Close()
}
