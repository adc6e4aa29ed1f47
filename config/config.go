// Package config loads the daemon's environment configuration.
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
)

// Config holds every tunable the daemon reads from the environment.
// The lifecycle core itself takes these as plain values; nothing below
// the orchestration layer touches the environment.
type Config struct {
	ListenAddr string `env:"LISTEN_ADDR,default=:8080"`

	// Chat platform credentials.
	SlackBotToken string `env:"SLACK_BOT_TOKEN"`
	SlackBaseURL  string `env:"SLACK_BASE_URL"`

	// Session defaults.
	DefaultSessionMinutes int `env:"DEFAULT_SESSION_MINUTES,default=5"`
	MaxConcurrentSessions int `env:"MAX_CONCURRENT_SESSIONS,default=0"`
	ReminderLeadSeconds   int `env:"REMINDER_LEAD_SECONDS,default=60"`

	WorkerPoolSize int `env:"WORKER_POOL_SIZE,default=10"`

	// Analysis backend.
	OpenAIAPIKey  string `env:"OPENAI_API_KEY"`
	OpenAIModel   string `env:"OPENAI_MODEL,default=gpt-4.1"`
	OpenAIBaseURL string `env:"OPENAI_BASE_URL,default=https://api.openai.com/v1"`

	LogLevel string `env:"LOG_LEVEL,default=info"`
}

// Load decodes the environment into a Config and validates it.
func Load() (*Config, error) {
	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode environment: %w", err)
	}
	if cfg.DefaultSessionMinutes <= 0 {
		return nil, fmt.Errorf("config: DEFAULT_SESSION_MINUTES must be positive, got %d", cfg.DefaultSessionMinutes)
	}
	if cfg.WorkerPoolSize <= 0 {
		return nil, fmt.Errorf("config: WORKER_POOL_SIZE must be positive, got %d", cfg.WorkerPoolSize)
	}
	if cfg.MaxConcurrentSessions < 0 {
		cfg.MaxConcurrentSessions = 0
	}
	return &cfg, nil
}

// DefaultSessionDuration returns the default session length.
func (c *Config) DefaultSessionDuration() time.Duration {
	return time.Duration(c.DefaultSessionMinutes) * time.Minute
}

// ReminderLead returns how long before expiry reminders go out.
func (c *Config) ReminderLead() time.Duration {
	return time.Duration(c.ReminderLeadSeconds) * time.Second
}

// SlogLevel maps the configured level name to a slog.Level, defaulting
// to info for unknown names.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
