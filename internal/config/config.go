package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	// Model backend
	OpenRouterKey string `env:"OPENROUTER_API_KEY"`

	// Snapshot persistence
	SnapshotBackend string `env:"SNAPSHOT_BACKEND" envDefault:"file"`
	SnapshotPath    string `env:"SNAPSHOT_PATH" envDefault:"sillogic.snapshot.json"`
	DatabaseURL     string `env:"DATABASE_URL"`
	RedisURL        string `env:"REDIS_URL"`

	// Workspace defaults
	DefaultModels []string `env:"DEFAULT_MODELS" envSeparator:"," envDefault:"gemini-2.5-flash"`

	// Generation
	Temperature   float64       `env:"TEMPERATURE" envDefault:"1.0"`
	StreamTimeout time.Duration `env:"STREAM_TIMEOUT" envDefault:"120s"`
	EnableSearch  bool          `env:"ENABLE_SEARCH" envDefault:"false"`
}

func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.SnapshotBackend {
	case "file", "memory":
	case "sqlite":
		if c.SnapshotPath == "" {
			return fmt.Errorf("SNAPSHOT_PATH required for sqlite backend")
		}
	case "postgres":
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL required for postgres backend")
		}
	case "redis":
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL required for redis backend")
		}
	default:
		return fmt.Errorf("unknown snapshot backend %q", c.SnapshotBackend)
	}
	return nil
}
