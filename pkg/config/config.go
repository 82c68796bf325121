// Package config loads process configuration from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds everything a durajobs process reads from the environment.
// DatabaseURL selects the store: a postgres:// URL uses the native Postgres
// store, anything else is treated as a SQLite path.
type Config struct {
	DatabaseURL string `env:"DATABASE_URL" envDefault:"jobs.db"`

	PollInterval  time.Duration `env:"POLL_INTERVAL" envDefault:"100ms"`
	JobTimeout    time.Duration `env:"JOB_TIMEOUT" envDefault:"0"`
	ShutdownGrace time.Duration `env:"SHUTDOWN_GRACE" envDefault:"30s"`

	PrunerMaxAge time.Duration `env:"PRUNER_MAX_AGE" envDefault:"168h"`
	PrunerLimit  int           `env:"PRUNER_LIMIT" envDefault:"1000"`
	RescueAfter  time.Duration `env:"RESCUE_AFTER" envDefault:"1h"`

	// StatsAddr is the listen address for the introspection HTTP server.
	// Empty disables it.
	StatsAddr string `env:"STATS_ADDR"`
}

// Load parses configuration from the environment.
func Load() (Config, error) {
	var c Config
	if err := env.Parse(&c); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if c.PollInterval <= 0 {
		return Config{}, fmt.Errorf("config: POLL_INTERVAL must be positive")
	}
	if c.PrunerLimit < 1 {
		return Config{}, fmt.Errorf("config: PRUNER_LIMIT must be positive")
	}
	if c.RescueAfter <= 0 {
		return Config{}, fmt.Errorf("config: RESCUE_AFTER must be positive")
	}
	return c, nil
}
