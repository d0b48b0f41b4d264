// Package config loads environment driven settings for the timeclock service.
package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config captures environment driven configuration values for the service.
type Config struct {
	HTTPPort   int           `env:"TIMECLOCK_HTTP_PORT" env-default:"8080"`
	SQLiteDSN  string        `env:"TIMECLOCK_SQLITE_DSN" env-default:"file:timeclock.db?_pragma=foreign_keys(1)"`
	SessionTTL time.Duration `env:"TIMECLOCK_SESSION_TTL" env-default:"24h"`
	// Timezone resolves punch dates and rollup windows; punches are attributed
	// to calendar days in this zone.
	Timezone string `env:"TIMECLOCK_TIMEZONE" env-default:"Local"`
	// SweepSchedule is a cron expression for the stale-punch sweep.
	SweepSchedule string `env:"TIMECLOCK_SWEEP_SCHEDULE" env-default:"@hourly"`
	LogLevel      string `env:"TIMECLOCK_LOG_LEVEL" env-default:"info"`
	// BootstrapAdminEmail and BootstrapAdminPassword seed an admin account on
	// first start when the user table is empty.
	BootstrapAdminEmail    string `env:"TIMECLOCK_ADMIN_EMAIL" env-default:""`
	BootstrapAdminPassword string `env:"TIMECLOCK_ADMIN_PASSWORD" env-default:""`
}

// Load parses configuration values from the current process environment.
func Load() (Config, error) {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to read environment: %w", err)
	}

	if cfg.HTTPPort <= 0 {
		return Config{}, fmt.Errorf("TIMECLOCK_HTTP_PORT must be positive")
	}
	if cfg.SessionTTL <= 0 {
		return Config{}, fmt.Errorf("TIMECLOCK_SESSION_TTL must be positive")
	}
	if (cfg.BootstrapAdminEmail == "") != (cfg.BootstrapAdminPassword == "") {
		return Config{}, fmt.Errorf("TIMECLOCK_ADMIN_EMAIL and TIMECLOCK_ADMIN_PASSWORD must be set together")
	}

	return cfg, nil
}

// Location resolves the configured timezone.
func (c Config) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMECLOCK_TIMEZONE: %w", err)
	}
	return loc, nil
}
