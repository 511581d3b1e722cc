// Package config provides application configuration management.
// Configuration is loaded from environment variables following 12-factor principles.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds all application configuration.
// All fields are populated from environment variables.
type Config struct {
	// Application settings
	AppEnv  string `env:"APP_ENV" envDefault:"development"`
	AppPort int    `env:"APP_PORT" envDefault:"8080"`

	// Database (PostgreSQL)
	DatabaseURL string `env:"DATABASE_URL,required"`

	// Cache (Redis)
	RedisURL string `env:"REDIS_URL,required"`

	// Base URL used to build returned short links and QR payloads
	// (e.g., https://hopl.in)
	BaseURL string `env:"APP_BASE_URL" envDefault:"http://localhost:8080"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// Server timeouts
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"10s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// Fixed-window rate limit for the redirect and unlock routes
	RateLimitWindowSeconds int `env:"RATE_LIMIT_WINDOW_SECONDS" envDefault:"60"`
	RateLimitMaxRequests   int `env:"RATE_LIMIT_MAX_REQUESTS" envDefault:"100"`

	// Hot cache TTL for short-key lookups
	CacheTTLHours int `env:"CACHE_TTL_HOURS" envDefault:"24"`

	// AI annotation cache lifetime
	AnnotationTTLDays int `env:"ANNOTATION_TTL_DAYS" envDefault:"7"`

	// Ollama endpoint for AI enrichment
	OllamaBaseURL string `env:"OLLAMA_BASE_URL" envDefault:"http://localhost:11434"`
	OllamaModel   string `env:"OLLAMA_MODEL" envDefault:"llama3"`

	// Geolocation endpoint for click enrichment. Empty means the
	// public ip-api.com service.
	GeoIPBaseURL string `env:"GEOIP_BASE_URL" envDefault:""`

	// Page metadata fetching
	MetadataFetchTimeout time.Duration `env:"METADATA_FETCH_TIMEOUT" envDefault:"10s"`
	MetadataMaxBodySize  int64         `env:"METADATA_MAX_BODY_SIZE" envDefault:"1048576"`

	// Click tracker pool sizing. Zero workers means 4 per CPU.
	TrackerWorkers   int `env:"TRACKER_WORKERS" envDefault:"0"`
	TrackerQueueSize int `env:"TRACKER_QUEUE_SIZE" envDefault:"1024"`

	// Expired-mapping sweep interval
	SweepInterval time.Duration `env:"SWEEP_INTERVAL" envDefault:"1h"`

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

// RateLimitWindow returns the limiter window as a duration.
func (c *Config) RateLimitWindow() time.Duration {
	return time.Duration(c.RateLimitWindowSeconds) * time.Second
}

// CacheTTL returns the hot cache TTL as a duration.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLHours) * time.Hour
}

// AnnotationTTL returns the annotation cache lifetime as a duration.
func (c *Config) AnnotationTTL() time.Duration {
	return time.Duration(c.AnnotationTTLDays) * 24 * time.Hour
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

// Load parses environment variables and returns a Config.
// Returns an error if required variables are missing.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}
