package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/acmg-amp-rating/internal/api"
	"github.com/acmg-amp-rating/internal/cache"
	"github.com/acmg-amp-rating/internal/config"
	"github.com/acmg-amp-rating/internal/database"
	"github.com/acmg-amp-rating/internal/domain"
	"github.com/acmg-amp-rating/internal/rating"
	"github.com/acmg-amp-rating/internal/repository"
	"github.com/acmg-amp-rating/internal/service"
	"github.com/acmg-amp-rating/pkg/external"
)

const (
	memoryCacheItems = 1000
	memoryCacheTTL   = 15 * time.Minute
)

func main() {
	// Load configuration
	configManager, err := config.NewManager()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Validate configuration
	if err := configManager.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}

	cfg := configManager.GetConfig()
	logger, err := config.LoggerFromConfig(cfg.Logging)
	if err != nil {
		log.Fatalf("Failed to configure logging: %v", err)
	}

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, gracefully shutting down...")
		cancel()
	}()

	if err := run(ctx, configManager, logger); err != nil {
		logger.WithError(err).Fatal("Server failed")
	}

	logger.Info("Server stopped")
}

func run(ctx context.Context, configManager *config.Manager, logger *logrus.Logger) error {
	cfg := configManager.GetConfig()

	var (
		checks   []api.ServerOption
		closers  []func()
		svcOpts  []service.RatingServiceOption
		useDB    = cfg.Storage.Backend == config.StoragePostgres || cfg.Database.RecordHistory
		dbConfig = database.ConfigFromDomain(cfg.Database)
	)
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}()

	if useDB {
		if err := migrate(ctx, dbConfig, cfg.Database.MigrationsPath, logger); err != nil {
			return err
		}
	}

	store, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	if c, ok := store.(interface{ Close() error }); ok {
		closers = append(closers, func() { c.Close() })
	}
	if h, ok := store.(healthReporter); ok {
		checks = append(checks, api.WithHealthCheck("rating_backend", breakerCheck(h)))
	}

	if cfg.Database.RecordHistory {
		db, err := database.NewConnection(ctx, dbConfig, logger)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		closers = append(closers, db.Close)
		checks = append(checks, api.WithHealthCheck("database", db.Health))
		svcOpts = append(svcOpts, service.WithHistory(repository.NewVerdictHistoryRepository(db.Pool, logger)))
	}

	sources, err := external.NewPredictionSources(cfg.Annotation, logger)
	if err != nil {
		return fmt.Errorf("failed to create prediction clients: %w", err)
	}
	for _, src := range sources {
		if h, ok := src.(healthReporter); ok {
			checks = append(checks, api.WithHealthCheck("prediction_"+strings.ToLower(src.Source().String()), breakerCheck(h)))
		}
	}
	if len(sources) > 0 {
		var remote service.JudgmentCache
		if cfg.Cache.RedisURL != "" {
			cacheClient, err := external.NewCacheClient(cfg.Cache)
			if err != nil {
				return fmt.Errorf("failed to connect to redis: %w", err)
			}
			closers = append(closers, func() { cacheClient.Close() })
			checks = append(checks, api.WithHealthCheck("redis", cacheClient.Ping))
			remote = cacheClient
		}

		resolver := service.NewPredictionResolver(
			service.PredictionResolverConfig{RemoteTTL: cfg.Cache.DefaultTTL},
			sources,
			cache.NewMemoryCache(memoryCacheItems, memoryCacheTTL),
			remote,
			logger,
		)
		svcOpts = append(svcOpts, service.WithPredictions(resolver))
	}

	svc := service.NewRatingService(logger, store, svcOpts...)
	server := api.NewServer(configManager, svc, logger, checks...)

	logger.WithFields(logrus.Fields{
		"host":               cfg.Server.Host,
		"port":               cfg.Server.Port,
		"storage":            cfg.Storage.Backend,
		"prediction_sources": len(sources),
		"record_history":     cfg.Database.RecordHistory,
	}).Info("Starting ACMG/AMP rating server")

	return server.Start(ctx)
}

type healthReporter interface {
	Health() external.ServiceHealth
}

func breakerCheck(h healthReporter) api.HealthCheck {
	return func(context.Context) error {
		if health := h.Health(); !health.Healthy {
			return fmt.Errorf("%s circuit %s: %s", health.Service, health.State, health.Error)
		}
		return nil
	}
}

func migrate(ctx context.Context, dbConfig database.Config, path string, logger *logrus.Logger) error {
	runner, err := database.NewMigrationRunner(dbConfig.URL(), path, logger)
	if err != nil {
		return fmt.Errorf("failed to create migration runner: %w", err)
	}
	defer runner.Close()

	if err := runner.Up(ctx); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}

func openStore(cfg *domain.Config, logger *logrus.Logger) (domain.RatingStore, error) {
	switch cfg.Storage.Backend {
	case config.StorageSQLite:
		store, err := rating.NewSQLiteStore(cfg.Storage.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite store: %w", err)
		}
		return store, nil
	case config.StoragePostgres:
		store, err := rating.NewPostgresStoreFromConfig(cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres store: %w", err)
		}
		return store, nil
	case config.StorageRemote:
		client, err := external.NewRatingClient(cfg.RatingBackend, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create rating backend client: %w", err)
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unsupported storage backend %q", cfg.Storage.Backend)
	}
}
