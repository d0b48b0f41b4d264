package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.HTTPPort != 8080 {
		t.Fatalf("expected default port 8080, got %d", cfg.HTTPPort)
	}
	if cfg.SessionTTL != 24*time.Hour {
		t.Fatalf("expected default session TTL 24h, got %v", cfg.SessionTTL)
	}
	if cfg.SweepSchedule != "@hourly" {
		t.Fatalf("expected default sweep schedule @hourly, got %q", cfg.SweepSchedule)
	}
}

func TestLoad_OverridesFromEnvironment(t *testing.T) {
	t.Setenv("TIMECLOCK_HTTP_PORT", "9090")
	t.Setenv("TIMECLOCK_SESSION_TTL", "2h")
	t.Setenv("TIMECLOCK_LOG_LEVEL", "debug")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.HTTPPort != 9090 {
		t.Fatalf("expected port 9090, got %d", cfg.HTTPPort)
	}
	if cfg.SessionTTL != 2*time.Hour {
		t.Fatalf("expected session TTL 2h, got %v", cfg.SessionTTL)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("expected log level debug, got %q", cfg.LogLevel)
	}
}

func TestLoad_RejectsPartialBootstrapCredentials(t *testing.T) {
	t.Setenv("TIMECLOCK_ADMIN_EMAIL", "admin@example.com")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for email without password")
	}
}

func TestConfig_Location(t *testing.T) {
	cfg := Config{Timezone: "UTC"}
	loc, err := cfg.Location()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loc != time.UTC {
		t.Fatalf("expected UTC, got %v", loc)
	}

	bad := Config{Timezone: "Not/AZone"}
	if _, err := bad.Location(); err == nil {
		t.Fatal("expected error for unknown timezone")
	}
}
