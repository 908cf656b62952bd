// Package config provides configuration management for the rating services.
// This file contains the environment-only configuration for standalone operation.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/acmg-amp-rating/internal/domain"
)

// LiteConfig is a simplified configuration for standalone operation.
// It requires no external databases and uses sensible defaults.
type LiteConfig struct {
	// Data storage
	DataDir string // Base directory for the SQLite store and exports

	// Cache settings
	CacheMaxItems int           // Maximum entries in the judgment cache
	CacheTTL      time.Duration // Judgment cache TTL

	// Prediction services; empty disables the source
	InterVarURL string
	AutoACMGURL string
	AutoPVS1URL string

	// Logging
	LogLevel  string // Log level: debug, info, warn, error
	LogFormat string // Log format: json, text
}

// DefaultLiteConfig returns a configuration with sensible defaults.
func DefaultLiteConfig() *LiteConfig {
	homeDir, _ := os.UserHomeDir()
	dataDir := filepath.Join(homeDir, ".acmg-rating")

	return &LiteConfig{
		DataDir:       dataDir,
		CacheMaxItems: 1000,
		CacheTTL:      15 * time.Minute,
		LogLevel:      "info",
		LogFormat:     "json",
	}
}

// LoadLiteConfig loads configuration from environment variables.
// Falls back to defaults if not set.
func LoadLiteConfig() *LiteConfig {
	cfg := DefaultLiteConfig()

	if v := os.Getenv("ACMG_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}

	if v := os.Getenv("ACMG_CACHE_MAX_ITEMS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.CacheMaxItems = n
		}
	}
	if v := os.Getenv("ACMG_CACHE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.CacheTTL = d
		}
	}

	cfg.InterVarURL = os.Getenv("ACMG_INTERVAR_URL")
	cfg.AutoACMGURL = os.Getenv("ACMG_AUTOACMG_URL")
	cfg.AutoPVS1URL = os.Getenv("ACMG_AUTOPVS1_URL")

	if v := os.Getenv("ACMG_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("ACMG_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}

	return cfg
}

// RatingsDBPath returns the path to the ratings SQLite database.
func (c *LiteConfig) RatingsDBPath() string {
	return filepath.Join(c.DataDir, "ratings.db")
}

// ExportDir returns the directory for JSON exports.
func (c *LiteConfig) ExportDir() string {
	return filepath.Join(c.DataDir, "exports")
}

// EnsureDataDir creates the data directory if it doesn't exist.
func (c *LiteConfig) EnsureDataDir() error {
	if err := os.MkdirAll(c.DataDir, 0755); err != nil {
		return err
	}
	return os.MkdirAll(c.ExportDir(), 0755)
}

// AnnotationConfig returns the prediction services in the shape the clients take.
func (c *LiteConfig) AnnotationConfig() domain.AnnotationConfig {
	return domain.AnnotationConfig{
		InterVar: domain.PredictionSourceConfig{BaseURL: c.InterVarURL},
		AutoACMG: domain.PredictionSourceConfig{BaseURL: c.AutoACMGURL},
		AutoPVS1: domain.PredictionSourceConfig{BaseURL: c.AutoPVS1URL},
	}
}
