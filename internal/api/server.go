package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/acmg-amp-rating/internal/domain"
	"github.com/acmg-amp-rating/internal/middleware"
	"github.com/acmg-amp-rating/internal/service"
)

// HealthCheck probes one dependency for the health endpoint.
type HealthCheck func(ctx context.Context) error

// Server represents the HTTP server
type Server struct {
	configManager domain.ConfigManager
	service       *service.RatingService
	logger        *logrus.Logger
	router        *gin.Engine
	server        *http.Server
	checks        map[string]HealthCheck
	version       string
}

// ServerOption configures optional server behaviour.
type ServerOption func(*Server)

// WithHealthCheck adds a named dependency probe to GET /health.
func WithHealthCheck(name string, check HealthCheck) ServerOption {
	return func(s *Server) {
		s.checks[name] = check
	}
}

// WithVersion sets the version reported by GET /health.
func WithVersion(version string) ServerOption {
	return func(s *Server) {
		s.version = version
	}
}

// NewServer creates a new HTTP server instance
func NewServer(configManager domain.ConfigManager, svc *service.RatingService, logger *logrus.Logger, opts ...ServerOption) *Server {
	cfg := configManager.GetConfig()

	// Set Gin mode based on environment
	if gin.Mode() != gin.TestMode {
		if cfg.Logging.Level == "debug" {
			gin.SetMode(gin.DebugMode)
		} else {
			gin.SetMode(gin.ReleaseMode)
		}
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CorrelationID())
	router.Use(middleware.AuditLogger(logger))
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.CORS())

	server := &Server{
		configManager: configManager,
		service:       svc,
		logger:        logger,
		router:        router,
		checks:        make(map[string]HealthCheck),
		version:       "1.0.0",
	}
	for _, opt := range opts {
		opt(server)
	}

	server.setupRoutes(cfg.Server.RequestTimeout)

	return server
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server and blocks until ctx is cancelled or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	cfg := s.configManager.GetServerConfig()
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithFields(logrus.Fields{"addr": addr, "tls": cfg.TLSEnabled}).Info("HTTP server listening")

		var err error
		if cfg.TLSEnabled {
			err = s.server.ListenAndServeTLS(cfg.CertFile, cfg.KeyFile)
		} else {
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s.logger.Info("Shutting down HTTP server")
	return s.server.Shutdown(shutdownCtx)
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes(requestTimeout time.Duration) {
	s.router.GET("/health", s.handleHealth)

	// Live sessions are long-lived and stay outside the request timeout.
	s.router.GET("/api/v1/ratings/:variant/live", s.handleLiveSession)

	v1 := s.router.Group("/api/v1")
	v1.Use(middleware.RequestTimeout(requestTimeout))
	{
		v1.GET("/criteria", s.handleListCriteria)
		v1.POST("/classify", s.handleClassify)
		v1.POST("/merge", s.handleMerge)

		v1.GET("/ratings", s.handleListRatings)
		v1.GET("/ratings/:variant", s.handleGetRating)
		v1.POST("/ratings/:variant", s.handleCreateRating)
		v1.PUT("/ratings/:variant", s.handlePutRating)
		v1.DELETE("/ratings/:variant", s.handleDeleteRating)
		v1.GET("/ratings/:variant/verdict", s.handleGetVerdict)
		v1.GET("/ratings/:variant/history", s.handleHistory)
	}
}

// handleHealth handles health check requests
func (s *Server) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	status := "healthy"
	code := http.StatusOK
	deps := make(map[string]string, len(s.checks))
	for name, check := range s.checks {
		if err := check(ctx); err != nil {
			deps[name] = err.Error()
			status = "degraded"
			code = http.StatusServiceUnavailable
			continue
		}
		deps[name] = "ok"
	}

	c.JSON(code, gin.H{
		"status":       status,
		"timestamp":    time.Now().UTC(),
		"version":      s.version,
		"dependencies": deps,
	})
}
