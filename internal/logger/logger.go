// Package logger configures the process-wide zerolog logger.
package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shelfmark/backend/internal/config"
)

// New builds a logger from cfg. A nil writer means stdout.
func New(cfg config.LogConfig, w io.Writer) zerolog.Logger {
	if w == nil {
		w = os.Stdout
	}
	if strings.EqualFold(cfg.Format, "console") {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}

	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(cfg.Level)))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	return zerolog.New(w).Level(level).With().Timestamp().Str("service", "shelfmark").Logger()
}

// Setup installs the logger as the global zerolog logger.
func Setup(cfg config.LogConfig, w io.Writer) zerolog.Logger {
	l := New(cfg, w)
	log.Logger = l
	zerolog.DefaultContextLogger = &l
	return l
}
