// Package main runs the ACMG/AMP rating tools over MCP stdio. Ratings live in SQLite under
// ACMG_DATA_DIR and automated predictions are cached in memory, so no external services are needed.
package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/acmg-amp-rating/internal/config"
	"github.com/acmg-amp-rating/internal/mcp"
)

func main() {
	cfg := config.LoadLiteConfig()
	// NewLogger writes to stderr; stdout belongs to the protocol.
	logger := config.NewLogger(cfg.LogLevel, cfg.LogFormat)

	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Fatal("MCP server failed")
	}
}

func run(cfg *config.LiteConfig, logger *logrus.Logger) error {
	server, err := mcp.NewLiteServer(cfg, mcp.WithLogger(logger))
	if err != nil {
		return err
	}
	defer server.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.WithField("data_dir", cfg.DataDir).Info("Serving rating tools on stdio")

	if err := server.Start(ctx); err != nil && ctx.Err() == nil {
		return err
	}

	logger.Info("MCP server stopped")
	return nil
}
