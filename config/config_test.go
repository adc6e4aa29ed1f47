package config

import (
	"log/slog"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ListenAddr != ":8080" {
		t.Errorf("listen addr = %q", cfg.ListenAddr)
	}
	if got := cfg.DefaultSessionDuration(); got != 5*time.Minute {
		t.Errorf("default duration = %v", got)
	}
	if got := cfg.ReminderLead(); got != time.Minute {
		t.Errorf("reminder lead = %v", got)
	}
	if cfg.WorkerPoolSize != 10 {
		t.Errorf("pool size = %d", cfg.WorkerPoolSize)
	}
	if cfg.MaxConcurrentSessions != 0 {
		t.Errorf("max sessions = %d", cfg.MaxConcurrentSessions)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DEFAULT_SESSION_MINUTES", "30")
	t.Setenv("MAX_CONCURRENT_SESSIONS", "8")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := cfg.DefaultSessionDuration(); got != 30*time.Minute {
		t.Errorf("default duration = %v", got)
	}
	if cfg.MaxConcurrentSessions != 8 {
		t.Errorf("max sessions = %d", cfg.MaxConcurrentSessions)
	}
	if cfg.SlogLevel() != slog.LevelDebug {
		t.Errorf("level = %v", cfg.SlogLevel())
	}
}

func TestLoadRejectsNonPositiveDuration(t *testing.T) {
	t.Setenv("DEFAULT_SESSION_MINUTES", "0")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for zero session minutes")
	}
}

func TestNegativeMaxSessionsClampedToUnlimited(t *testing.T) {
	t.Setenv("MAX_CONCURRENT_SESSIONS", "-3")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.MaxConcurrentSessions != 0 {
		t.Errorf("max sessions = %d, want 0", cfg.MaxConcurrentSessions)
	}
}

func TestSlogLevelUnknownDefaultsToInfo(t *testing.T) {
	cfg := &Config{LogLevel: "loud"}
	if cfg.SlogLevel() != slog.LevelInfo {
		t.Errorf("level = %v", cfg.SlogLevel())
	}
}
