// Package mcp exposes the rating engine as MCP tools over stdio.
// The lite server keeps ratings in SQLite and caches automated predictions in memory,
// so it runs without external databases.
package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/acmg-amp-rating/internal/cache"
	litecfg "github.com/acmg-amp-rating/internal/config"
	"github.com/acmg-amp-rating/internal/domain"
	"github.com/acmg-amp-rating/internal/rating"
	"github.com/acmg-amp-rating/internal/service"
	"github.com/acmg-amp-rating/pkg/external"
)

const (
	liteServerName    = "acmg-amp-rating-lite"
	liteServerVersion = "v1.0.0"
)

// LiteServer is a lightweight MCP server that requires no external databases.
type LiteServer struct {
	config      *litecfg.LiteConfig
	mcpServer   *mcp.Server
	store       rating.Store
	cache       *cache.MemoryCache
	predictions []domain.PredictionSource
	service     *service.RatingService
	logger      *logrus.Logger
}

// LiteServerOption is a functional option for LiteServer.
type LiteServerOption func(*LiteServer) error

// WithRatingStore sets a custom rating store.
func WithRatingStore(store rating.Store) LiteServerOption {
	return func(s *LiteServer) error {
		s.store = store
		return nil
	}
}

// WithPredictionSources replaces the sources built from the configured URLs.
func WithPredictionSources(sources ...domain.PredictionSource) LiteServerOption {
	return func(s *LiteServer) error {
		s.predictions = sources
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *logrus.Logger) LiteServerOption {
	return func(s *LiteServer) error {
		s.logger = logger
		return nil
	}
}

// NewLiteServer creates a new lightweight MCP server instance.
func NewLiteServer(cfg *litecfg.LiteConfig, opts ...LiteServerOption) (*LiteServer, error) {
	server := &LiteServer{
		config: cfg,
		logger: litecfg.NewLogger(cfg.LogLevel, cfg.LogFormat),
	}

	for _, opt := range opts {
		if err := opt(server); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	if err := cfg.EnsureDataDir(); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	server.cache = cache.NewMemoryCache(cfg.CacheMaxItems, cfg.CacheTTL)

	if server.store == nil {
		store, err := rating.NewSQLiteStore(cfg.RatingsDBPath())
		if err != nil {
			return nil, fmt.Errorf("failed to create rating store: %w", err)
		}
		server.store = store
	}

	if server.predictions == nil {
		sources, err := external.NewPredictionSources(cfg.AnnotationConfig(), server.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create prediction clients: %w", err)
		}
		server.predictions = sources
	}

	svcOpts := []service.RatingServiceOption{}
	if len(server.predictions) > 0 {
		resolver := service.NewPredictionResolver(
			service.PredictionResolverConfig{},
			server.predictions,
			server.cache,
			nil,
			server.logger,
		)
		svcOpts = append(svcOpts, service.WithPredictions(resolver))
	}
	server.service = service.NewRatingService(server.logger, server.store, svcOpts...)

	server.mcpServer = mcp.NewServer(&mcp.Implementation{
		Name:    liteServerName,
		Version: liteServerVersion,
	}, nil)
	server.registerTools()

	server.logger.WithFields(logrus.Fields{
		"data_dir":           cfg.DataDir,
		"prediction_sources": len(server.predictions),
	}).Info("Lite server initialized successfully")
	return server, nil
}

// Start serves MCP over stdin/stdout until ctx is cancelled or the client disconnects.
func (s *LiteServer) Start(ctx context.Context) error {
	s.logger.Info("Starting ACMG/AMP rating MCP server (lite)")

	if err := s.mcpServer.Run(ctx, &mcp.StdioTransport{}); err != nil {
		return fmt.Errorf("MCP server failed: %w", err)
	}
	return nil
}

// Close cleans up server resources.
func (s *LiteServer) Close() error {
	if s.cache != nil {
		s.cache.Purge()
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			s.logger.WithError(err).Error("Failed to close rating store")
			return err
		}
	}
	return nil
}

// Service returns the rating service behind the tools.
func (s *LiteServer) Service() *service.RatingService {
	return s.service
}

// GetCache returns the memory cache for external access.
func (s *LiteServer) GetCache() *cache.MemoryCache {
	return s.cache
}
