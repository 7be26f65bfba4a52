// Package logging configures the broker's structured logger. Adapted from
// the teacher's internal/single/monitoring/logger.go: zerolog, JSON by
// default, a pretty console writer for local development, global level
// set once at startup.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Format selects the logger's output encoding.
type Format string

const (
	FormatJSON   Format = "json"
	FormatPretty Format = "pretty"
)

// Config configures New.
type Config struct {
	Level  string // debug, info, warn, error
	Format Format
}

// New builds a zerolog.Logger with a "service" field identifying the
// broker, timestamps, and caller information.
func New(cfg Config) zerolog.Logger {
	var output io.Writer = os.Stdout

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Format == FormatPretty {
		output = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}

	return zerolog.New(output).
		With().
		Timestamp().
		Caller().
		Str("service", "pubsub-broker").
		Logger()
}
