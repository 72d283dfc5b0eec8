package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// #region config

// Config is the environment-driven configuration shared by the CLIs and the
// session server.
type Config struct {
	DBPath     string `env:"PROGRESSION_DB" envDefault:"progression.db"`
	GraphPath  string `env:"PROGRESSION_GRAPH" envDefault:"content/graph.yaml"`
	ProfileKey string `env:"PROGRESSION_PROFILE" envDefault:"default"`
	ListenAddr string `env:"PROGRESSION_ADDR" envDefault:":8080"`

	// RedisAddr switches persistence from SQLite to Redis when non-empty.
	RedisAddr   string `env:"PROGRESSION_REDIS"`
	RedisPrefix string `env:"PROGRESSION_REDIS_PREFIX" envDefault:"progression"`

	// SaveWindowMS is the write-coalescing window for profile saves.
	SaveWindowMS int `env:"PROGRESSION_SAVE_WINDOW_MS" envDefault:"250"`
}

// Load parses configuration from environment variables.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// #endregion config
