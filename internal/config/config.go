// Package config loads service configuration from environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the full service configuration.
type Config struct {
	Port     string `env:"DEFILY_PORT" envDefault:"8080"`
	DBPath   string `env:"DEFILY_DB_PATH" envDefault:"defily.db"`
	LogLevel string `env:"DEFILY_LOG_LEVEL" envDefault:"info"`

	// Challenge selection.
	LookbackDays int   `env:"DEFILY_LOOKBACK_DAYS" envDefault:"30"`
	RandomSeed   int64 `env:"DEFILY_RANDOM_SEED"` // 0 means time-seeded

	// Remote catalog provider (read-only).
	CatalogURL     string        `env:"DEFILY_CATALOG_URL"`
	CatalogTimeout time.Duration `env:"DEFILY_CATALOG_TIMEOUT" envDefault:"10s"`

	// S3-compatible snapshot target.
	BackupEndpoint  string        `env:"DEFILY_BACKUP_ENDPOINT"`
	BackupBucket    string        `env:"DEFILY_BACKUP_BUCKET"`
	BackupRegion    string        `env:"DEFILY_BACKUP_REGION" envDefault:"auto"`
	BackupAccessKey string        `env:"DEFILY_BACKUP_ACCESS_KEY"`
	BackupSecretKey string        `env:"DEFILY_BACKUP_SECRET_KEY"`
	BackupInterval  time.Duration `env:"DEFILY_BACKUP_INTERVAL" envDefault:"24h"`
}

// Load parses the environment into a Config.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return &cfg, nil
}
