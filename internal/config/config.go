// Package config provides application configuration management.
// Configuration is loaded from environment variables following 12-factor principles.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// Storage and ledger backends.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// Config holds all application configuration.
// All fields are populated from environment variables.
type Config struct {
	// Application settings
	AppEnv  string `env:"APP_ENV" envDefault:"development"`
	AppPort int    `env:"APP_PORT" envDefault:"8080"`

	// Database (PostgreSQL)
	DatabaseURL      string `env:"DATABASE_URL"`
	DatabaseMaxConns int32  `env:"DATABASE_MAX_CONNS" envDefault:"20"`

	// Cache (Redis)
	RedisURL      string `env:"REDIS_URL"`
	RedisPoolSize int    `env:"REDIS_POOL_SIZE" envDefault:"20"`

	// Backends: where content/artifacts live and where credits are metered.
	StorageBackend string `env:"STORAGE_BACKEND" envDefault:"postgres"`
	LedgerBackend  string `env:"LEDGER_BACKEND" envDefault:"postgres"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// Server timeouts. Generations can take a full provider timeout plus a retry.
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"90s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// Provider (OpenAI-compatible chat completions)
	ProviderBaseURL         string        `env:"PROVIDER_BASE_URL" envDefault:"https://openrouter.ai/api/v1"`
	ProviderAPIKey          string        `env:"PROVIDER_API_KEY"`
	ProviderTimeout         time.Duration `env:"PROVIDER_TIMEOUT" envDefault:"60s"`
	ProviderMaxConcurrency  int64         `env:"PROVIDER_MAX_CONCURRENCY" envDefault:"16"`
	ProviderMaxOutputTokens int           `env:"PROVIDER_MAX_OUTPUT_TOKENS" envDefault:"2000"`
	ProviderTemperature     float64       `env:"PROVIDER_TEMPERATURE" envDefault:"0.7"`
	ProviderReferer         string        `env:"PROVIDER_REFERER" envDefault:"http://localhost:8080"`
	ProviderTitle           string        `env:"PROVIDER_TITLE" envDefault:"Recast"`

	// Generation
	RetryBackoff time.Duration `env:"RETRY_BACKOFF" envDefault:"1s"`
	DefaultPlan  string        `env:"DEFAULT_PLAN" envDefault:"free"`

	// Rate limiting (per account)
	RateLimitEnabled bool `env:"RATE_LIMIT_ENABLED" envDefault:"true"`
	RateLimitRPM     int  `env:"RATE_LIMIT_RPM" envDefault:"30"`
	RateLimitBurst   int  `env:"RATE_LIMIT_BURST" envDefault:"10"`

	// Generation events on the Redis stream
	EventsEnabled bool `env:"EVENTS_ENABLED" envDefault:"true"`

	// CORS configuration
	// Comma-separated list of allowed origins (e.g., "https://example.com,https://app.example.com")
	CORSAllowedOrigins string `env:"CORS_ALLOWED_ORIGINS" envDefault:""`

	// Request body size limit in bytes (default 1MB)
	MaxRequestBodySize int64 `env:"MAX_REQUEST_BODY_SIZE" envDefault:"1048576"`
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

// NeedsPostgres reports whether any configured backend uses PostgreSQL.
func (c *Config) NeedsPostgres() bool {
	return c.StorageBackend == BackendPostgres || c.LedgerBackend == BackendPostgres
}

// NeedsRedis reports whether any enabled feature uses Redis.
func (c *Config) NeedsRedis() bool {
	return c.LedgerBackend == BackendRedis || c.RateLimitEnabled || c.EventsEnabled
}

// Validate checks cross-field constraints that struct tags cannot express.
func (c *Config) Validate() error {
	var errs []error

	switch c.StorageBackend {
	case BackendMemory, BackendPostgres:
	default:
		errs = append(errs, fmt.Errorf("STORAGE_BACKEND must be memory or postgres, got %q", c.StorageBackend))
	}
	switch c.LedgerBackend {
	case BackendMemory, BackendPostgres, BackendRedis:
	default:
		errs = append(errs, fmt.Errorf("LEDGER_BACKEND must be memory, postgres or redis, got %q", c.LedgerBackend))
	}

	if c.NeedsPostgres() && c.DatabaseURL == "" {
		errs = append(errs, errors.New("DATABASE_URL is required for the postgres backend"))
	}
	if c.NeedsRedis() && c.RedisURL == "" {
		errs = append(errs, errors.New("REDIS_URL is required for the redis ledger, rate limiting and events"))
	}
	if c.DatabaseMaxConns < 1 || c.RedisPoolSize < 1 {
		errs = append(errs, errors.New("DATABASE_MAX_CONNS and REDIS_POOL_SIZE must be positive"))
	}
	if c.ProviderBaseURL == "" {
		errs = append(errs, errors.New("PROVIDER_BASE_URL is required"))
	}
	if c.IsProduction() && c.ProviderAPIKey == "" {
		errs = append(errs, errors.New("PROVIDER_API_KEY is required in production"))
	}
	if c.ProviderMaxConcurrency < 1 {
		errs = append(errs, errors.New("PROVIDER_MAX_CONCURRENCY must be at least 1"))
	}
	if c.RetryBackoff < 0 {
		errs = append(errs, errors.New("RETRY_BACKOFF must not be negative"))
	}
	switch c.DefaultPlan {
	case "free", "pro", "business":
	default:
		errs = append(errs, fmt.Errorf("DEFAULT_PLAN must be free, pro or business, got %q", c.DefaultPlan))
	}
	if c.RateLimitEnabled && (c.RateLimitRPM < 1 || c.RateLimitBurst < 1) {
		errs = append(errs, errors.New("RATE_LIMIT_RPM and RATE_LIMIT_BURST must be positive"))
	}

	return errors.Join(errs...)
}

// Load parses environment variables and returns a validated Config.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
