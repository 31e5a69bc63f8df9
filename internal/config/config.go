// Package config handles application configuration from environment variables
package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Server settings
	Port           string
	AllowedOrigins string // CORS origins, comma-separated or "*"

	// Database
	DatabaseURL string // PostgreSQL connection string (optional, engine runs without persistence if not set)

	// Security
	APIAuthToken    string // Bearer token for the API (optional, auth disabled if not set)
	RateLimitPerMin int    // Per-IP requests allowed per minute

	// Scoring
	ScorerSeed     int64 // Fixed noise seed for reproducible runs
	ScorerSeedSet  bool  // False when SCORER_SEED is unset; each run derives a seed from the clock
	FeatureWorkers int   // Parallel feature extraction workers, 0 uses all CPUs
}

const (
	DefaultPort      = "8080"
	DefaultOrigins   = "*"
	DefaultRateLimit = 120
)

// Load reads configuration from environment variables
// It loads .env file if present (for local development)
func Load() *Config {
	// Load .env file if it exists (ignore error if not present)
	_ = godotenv.Load()

	cfg := &Config{
		Port:            getEnv("PORT", DefaultPort),
		AllowedOrigins:  getEnv("ALLOWED_ORIGINS", DefaultOrigins),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		APIAuthToken:    os.Getenv("API_AUTH_TOKEN"),
		RateLimitPerMin: int(getEnvInt64("RATE_LIMIT_PER_MIN", DefaultRateLimit)),
		FeatureWorkers:  int(getEnvInt64("FEATURE_WORKERS", 0)),
	}
	if cfg.RateLimitPerMin <= 0 {
		cfg.RateLimitPerMin = DefaultRateLimit
	}
	if v := os.Getenv("SCORER_SEED"); v != "" {
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.ScorerSeed = i
			cfg.ScorerSeedSet = true
		}
	}
	return cfg
}

// AuthEnabled reports whether bearer-token auth is configured.
func (c *Config) AuthEnabled() bool {
	return c.APIAuthToken != ""
}

// HasDatabase reports whether a Postgres connection string is configured.
func (c *Config) HasDatabase() bool {
	return c.DatabaseURL != ""
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}
