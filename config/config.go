// Package config reads the bot's settings from the environment. A .env file
// in the working directory is loaded first when present.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config is the process configuration.
type Config struct {
	DiscordToken string `env:"DISCORD_TOKEN"`
	// OwnerID is the user allowed to run owner commands.
	OwnerID int64 `env:"DISCORD_OWNER"`

	// SettingsDriver is one of sqlite, postgres, file or memory.
	SettingsDriver string        `env:"SETTINGS_DRIVER" envDefault:"sqlite"`
	DatabaseURL    string        `env:"DATABASE_URL"`
	StorageTimeout time.Duration `env:"STORAGE_TIMEOUT" envDefault:"5s"`
	// BackupSchedule is a cron spec for file backend backups; empty disables them.
	BackupSchedule string `env:"SETTINGS_BACKUP_SCHEDULE" envDefault:"@hourly"`
	BackupCount    int    `env:"SETTINGS_BACKUP_COUNT" envDefault:"10"`

	ExtensionRoots    []string `env:"EXTENSION_ROOTS" envDefault:"." envSeparator:","`
	ExtensionManifest string   `env:"EXTENSION_MANIFEST" envDefault:"extensions.yaml"`
	InitialExtensions []string `env:"INITIAL_EXTENSIONS" envDefault:"extensions/owner,extensions/help,extensions/admin,extensions/roles" envSeparator:","`
	WatchExtensions   bool     `env:"WATCH_EXTENSIONS" envDefault:"false"`

	// ResponseTTL is how long replies stay in guild channels; 0 keeps them.
	ResponseTTL time.Duration `env:"RESPONSE_TTL" envDefault:"60s"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`
}

// Load reads .env files, if any, then parses the environment.
func Load(files ...string) (*Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load env file: %w", err)
	}
	return Parse()
}

// Parse reads the configuration from the environment only.
func Parse() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return &cfg, nil
}

// Validate checks what the bot needs to connect.
func (c *Config) Validate() error {
	var errs []error
	if c.DiscordToken == "" {
		errs = append(errs, errors.New("DISCORD_TOKEN is not set"))
	}
	switch strings.ToLower(c.SettingsDriver) {
	case "postgres", "postgresql", "file", "json":
		if c.DatabaseURL == "" {
			errs = append(errs, fmt.Errorf("DATABASE_URL is required for the %s driver", c.SettingsDriver))
		}
	}
	if c.StorageTimeout <= 0 {
		errs = append(errs, errors.New("STORAGE_TIMEOUT must be positive"))
	}
	if c.BackupCount < 0 {
		errs = append(errs, errors.New("SETTINGS_BACKUP_COUNT must not be negative"))
	}
	if c.ResponseTTL < 0 {
		errs = append(errs, errors.New("RESPONSE_TTL must not be negative"))
	}
	return errors.Join(errs...)
}
