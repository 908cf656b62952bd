package config

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/acmg-amp-rating/internal/domain"
)

// NewLogger builds the application logger. Unknown levels fall back to info, any
// format other than "text" gives JSON.
func NewLogger(level, format string) *logrus.Logger {
	logger := logrus.New()

	if strings.EqualFold(format, "text") {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logger.SetLevel(lvl)

	return logger
}

// LoggerFromConfig builds the logger described by the logging section.
// Output is "stdout", "stderr" or a file path.
func LoggerFromConfig(cfg domain.LoggingConfig) (*logrus.Logger, error) {
	logger := NewLogger(cfg.Level, cfg.Format)

	var out io.Writer
	switch strings.ToLower(cfg.Output) {
	case "", "stdout":
		out = os.Stdout
	case "stderr":
		out = os.Stderr
	default:
		f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, err
		}
		out = f
	}
	logger.SetOutput(out)
	return logger, nil
}
