// Package config loads broker configuration from the environment,
// following the teacher's pattern (config.go): struct tags parsed by
// caarlos0/env, an optional .env file loaded first via joho/godotenv,
// then validation.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// Config holds all broker configuration.
type Config struct {
	// Server basics
	Addr        string `env:"BROKER_ADDR" envDefault:":8080"`
	RoutePrefix string `env:"BROKER_ROUTE_PREFIX" envDefault:"/info"`

	// Delivery
	DeliveryTimeout time.Duration `env:"BROKER_DELIVERY_TIMEOUT" envDefault:"5s"`
	MaxDispatchRate float64       `env:"BROKER_MAX_DISPATCH_RATE" envDefault:"0"` // 0 = unthrottled
	DispatchBurst   int           `env:"BROKER_DISPATCH_BURST" envDefault:"50"`

	// Fan-out concurrency
	WorkerCount     int `env:"BROKER_WORKER_COUNT" envDefault:"16"`
	WorkerQueueSize int `env:"BROKER_WORKER_QUEUE_SIZE" envDefault:"1024"`

	// Monitoring
	MetricsInterval time.Duration `env:"BROKER_METRICS_INTERVAL" envDefault:"15s"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	Environment string `env:"ENVIRONMENT" envDefault:"development"`
}

// Load reads configuration from an optional .env file and from
// environment variables. Environment variables win over the .env file,
// which wins over envDefault tags.
func Load(logger *zerolog.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		if logger != nil {
			logger.Info().Msg("no .env file found, using environment variables only")
		}
	} else if logger != nil {
		logger.Info().Msg("loaded configuration from .env file")
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// Validate rejects configuration values that cannot produce a working
// broker.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("BROKER_ADDR is required")
	}
	if c.RoutePrefix == "" {
		return fmt.Errorf("BROKER_ROUTE_PREFIX is required")
	}
	if c.WorkerCount < 1 {
		return fmt.Errorf("BROKER_WORKER_COUNT must be > 0, got %d", c.WorkerCount)
	}
	if c.DeliveryTimeout <= 0 {
		return fmt.Errorf("BROKER_DELIVERY_TIMEOUT must be > 0, got %s", c.DeliveryTimeout)
	}
	if c.MaxDispatchRate < 0 {
		return fmt.Errorf("BROKER_MAX_DISPATCH_RATE must be >= 0, got %f", c.MaxDispatchRate)
	}
	if c.MetricsInterval <= 0 {
		return fmt.Errorf("BROKER_METRICS_INTERVAL must be > 0, got %s", c.MetricsInterval)
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("LOG_LEVEL must be one of: debug, info, warn, error (got: %s)", c.LogLevel)
	}
	validLogFormats := map[string]bool{"json": true, "pretty": true}
	if !validLogFormats[c.LogFormat] {
		return fmt.Errorf("LOG_FORMAT must be one of: json, pretty (got: %s)", c.LogFormat)
	}
	return nil
}

// LogConfig emits the loaded configuration via structured logging.
func (c *Config) LogConfig(logger zerolog.Logger) {
	logger.Info().
		Str("environment", c.Environment).
		Str("addr", c.Addr).
		Str("route_prefix", c.RoutePrefix).
		Dur("delivery_timeout", c.DeliveryTimeout).
		Float64("max_dispatch_rate", c.MaxDispatchRate).
		Int("worker_count", c.WorkerCount).
		Int("worker_queue_size", c.WorkerQueueSize).
		Dur("metrics_interval", c.MetricsInterval).
		Str("log_level", c.LogLevel).
		Str("log_format", c.LogFormat).
		Msg("broker configuration loaded")
}
