// Package config provides application configuration management.
// Configuration is loaded from environment variables following 12-factor principles,
// optionally seeded from a local .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Config holds the web API configuration.
// All fields are populated from environment variables.
type Config struct {
	// Application settings
	AppEnv  string `env:"APP_ENV" envDefault:"development"`
	AppPort int    `env:"APP_PORT" envDefault:"8080"`

	// Database (PostgreSQL)
	DatabaseURL string `env:"DATABASE_URL,required"`

	// Cache (Redis)
	RedisURL string `env:"REDIS_URL,required"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// Server timeouts
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"10s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// Comma-separated list of allowed origins (e.g., "https://example.com,https://app.example.com")
	CORSAllowedOrigins string `env:"CORS_ALLOWED_ORIGINS" envDefault:""`

	// Request body size limit in bytes (default 1MB)
	MaxRequestBodySize int64 `env:"MAX_REQUEST_BODY_SIZE" envDefault:"1048576"`

	// Chat platform
	PageAccessToken      string `env:"PAGE_ACCESS_TOKEN,required"`
	MessengerGraphURL    string `env:"MESSENGER_GRAPH_URL" envDefault:"https://graph.facebook.com/v2.6"`
	MessengerVerifyToken string `env:"MESSENGER_VERIFY_TOKEN,required"`
	MessengerAppSecret   string `env:"MESSENGER_APP_SECRET" envDefault:""`
	MessengerLoginURL    string `env:"MESSENGER_LOGIN_URL" envDefault:""`

	// Identity provider. When IdentityJWTSecret is set, auth tokens are
	// verified locally as HS256 JWTs instead of being resolved over HTTP.
	IdentityGraphURL  string `env:"IDENTITY_GRAPH_URL" envDefault:"https://graph.facebook.com"`
	IdentityJWTSecret string `env:"IDENTITY_JWT_SECRET" envDefault:""`

	// Argon2id hash of the token the dispatcher presents. Empty disables the check.
	ServiceTokenHash string `env:"SERVICE_TOKEN_HASH" envDefault:""`

	// Per-IP rate limiting on the inbound webhook
	RateLimitWebhookEnabled bool `env:"RATE_LIMIT_WEBHOOK_ENABLED" envDefault:"true"`
	RateLimitWebhookRPS     int  `env:"RATE_LIMIT_WEBHOOK_RPS" envDefault:"20"`
	RateLimitWebhookBurst   int  `env:"RATE_LIMIT_WEBHOOK_BURST" envDefault:"40"`
}

// DispatcherConfig holds the reminder dispatcher configuration.
type DispatcherConfig struct {
	ReminderServiceURL string        `env:"REMINDER_SERVICE_URL,required"`
	ServiceToken       string        `env:"SERVICE_TOKEN" envDefault:""`
	PageAccessToken    string        `env:"PAGE_ACCESS_TOKEN,required"`
	MessengerGraphURL  string        `env:"MESSENGER_GRAPH_URL" envDefault:"https://graph.facebook.com/v2.6"`
	HTTPTimeout        time.Duration `env:"HTTP_TIMEOUT" envDefault:"30s"`

	// Optional. When set, overlapping runs are excluded with a Redis lock.
	RedisURL string        `env:"REDIS_URL" envDefault:""`
	LockTTL  time.Duration `env:"DISPATCHER_LOCK_TTL" envDefault:"5m"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// GetCORSAllowedOrigins parses the comma-separated origins string into a slice.
func (c *Config) GetCORSAllowedOrigins() []string {
	if c.CORSAllowedOrigins == "" {
		return nil
	}

	origins := strings.Split(c.CORSAllowedOrigins, ",")
	result := make([]string, 0, len(origins))

	for _, origin := range origins {
		trimmed := strings.TrimSpace(origin)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}

// LockEnabled reports whether the dispatcher should take a run lock.
func (c *DispatcherConfig) LockEnabled() bool {
	return c.RedisURL != ""
}

// Load parses environment variables and returns the API Config.
// Returns an error if required variables are missing.
func Load() (*Config, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

// LoadDispatcher parses environment variables and returns the DispatcherConfig.
func LoadDispatcher() (*DispatcherConfig, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	cfg := &DispatcherConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse dispatcher config: %w", err)
	}
	return cfg, nil
}

// dotEnvFile is the optional file read before the environment is parsed.
// Variables already present in the environment win.
var dotEnvFile = ".env"

func loadDotEnv() error {
	if err := godotenv.Load(dotEnvFile); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", dotEnvFile, err)
	}
	return nil
}
