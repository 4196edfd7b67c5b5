// Package config loads server configuration from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the full server configuration, loaded from ECOTRACK_* variables.
type Config struct {
	Port     string `env:"ECOTRACK_PORT" envDefault:"8080"`
	DBPath   string `env:"ECOTRACK_DB_PATH" envDefault:"ecotrack.db"`
	LogLevel string `env:"ECOTRACK_LOG_LEVEL" envDefault:"info"`

	JWTSecret  string        `env:"ECOTRACK_JWT_SECRET,required"`
	AccessTTL  time.Duration `env:"ECOTRACK_ACCESS_TTL" envDefault:"15m"`
	SessionTTL time.Duration `env:"ECOTRACK_SESSION_TTL" envDefault:"720h"`

	PostmarkToken   string `env:"ECOTRACK_POSTMARK_TOKEN"`
	PostmarkFrom    string `env:"ECOTRACK_POSTMARK_FROM"`
	PostmarkBaseURL string `env:"ECOTRACK_POSTMARK_BASE_URL" envDefault:"https://api.postmarkapp.com"`

	S3Endpoint  string `env:"ECOTRACK_S3_ENDPOINT"`
	S3Bucket    string `env:"ECOTRACK_S3_BUCKET"`
	S3Region    string `env:"ECOTRACK_S3_REGION" envDefault:"auto"`
	S3AccessKey string `env:"ECOTRACK_S3_ACCESS_KEY"`
	S3SecretKey string `env:"ECOTRACK_S3_SECRET_KEY"`

	BackupPassphrase    string `env:"ECOTRACK_BACKUP_PASSPHRASE"`
	BackupScheduleHour  int    `env:"ECOTRACK_BACKUP_HOUR" envDefault:"3"`
	BackupRetentionDays int    `env:"ECOTRACK_BACKUP_RETENTION_DAYS" envDefault:"30"`
}

// Load parses the environment into a Config.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	return &cfg, nil
}
