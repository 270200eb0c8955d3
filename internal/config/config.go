package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	HTTPAddr    string   `env:"HTTP_ADDR" envDefault:":8080"`
	Debug       bool     `env:"DEBUG" envDefault:"false"`
	SystemLog   bool     `env:"SYSTEM_LOG" envDefault:"false"`
	CORSOrigins []string `env:"CORS_ORIGINS" envSeparator:"," envDefault:"http://localhost:8080"`

	Redis struct {
		// Registrations stay in memory unless Redis is enabled.
		Enabled  bool   `env:"REDIS_ENABLED" envDefault:"false"`
		Addr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
		Password string `env:"REDIS_PASSWORD" envDefault:""`
		DB       int    `env:"REDIS_DB" envDefault:"0"`
	}

	Raffle struct {
		SessionMaxIdle      time.Duration `env:"SESSION_MAX_IDLE" envDefault:"1h"`
		JanitorInterval     time.Duration `env:"JANITOR_INTERVAL" envDefault:"10m"`
		CelebrationFollowUp time.Duration `env:"CELEBRATION_FOLLOW_UP" envDefault:"700ms"`
	}
}

// Load reads an optional .env file and then the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if cfg.Raffle.JanitorInterval <= 0 {
		return nil, fmt.Errorf("JANITOR_INTERVAL must be positive, got %s", cfg.Raffle.JanitorInterval)
	}
	return cfg, nil
}
