package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds all application configuration
type Config struct {
	// Server
	Port        string `env:"PORT" envDefault:"8000"`
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// Database
	DatabaseURL string `env:"DATABASE_URL" envDefault:"sqlite://./covenantops.db"`

	// Storage
	StorageDir     string `env:"STORAGE_DIR" envDefault:"./storage"`
	MaxUploadBytes int64  `env:"MAX_UPLOAD_BYTES" envDefault:"26214400"`

	// CORS
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:4200,http://127.0.0.1:4200"`

	// Extraction
	ExtractorProvider string `env:"EXTRACTOR_PROVIDER" envDefault:"mock"`

	// Optional bearer auth; empty disables it
	JWTSecret string `env:"JWT_SECRET"`

	// Exports
	WkhtmltopdfEnabled bool `env:"WKHTMLTOPDF_ENABLED" envDefault:"false"`

	// Reminders (Resend)
	ResendAPIKey       string        `env:"RESEND_API_KEY"`
	FromEmail          string        `env:"FROM_EMAIL" envDefault:"noreply@covenantops.local"`
	ReminderRecipients []string      `env:"REMINDER_RECIPIENTS" envSeparator:","`
	ReminderInterval   time.Duration `env:"REMINDER_INTERVAL" envDefault:"0s"`

	// Background Workers
	WorkerCount int `env:"WORKER_COUNT" envDefault:"2"`

	// Sentry
	SentryDSN string `env:"SENTRY_DSN"`
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values env parsing cannot express
func (c *Config) Validate() error {
	c.ExtractorProvider = strings.ToLower(strings.TrimSpace(c.ExtractorProvider))
	switch c.ExtractorProvider {
	case "mock", "llm":
	default:
		return fmt.Errorf("EXTRACTOR_PROVIDER must be mock or llm, got %q", c.ExtractorProvider)
	}

	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_BYTES must be positive")
	}

	if c.ReminderInterval < 0 {
		return fmt.Errorf("REMINDER_INTERVAL must not be negative")
	}

	if c.WorkerCount < 1 {
		c.WorkerCount = 1
	}

	recipients := c.ReminderRecipients[:0]
	for _, r := range c.ReminderRecipients {
		if r = strings.TrimSpace(r); r != "" {
			recipients = append(recipients, r)
		}
	}
	c.ReminderRecipients = recipients

	return nil
}

// RemindersEnabled reports whether the periodic digest should be scheduled
func (c *Config) RemindersEnabled() bool {
	return c.ReminderInterval > 0 && len(c.ReminderRecipients) > 0
}
