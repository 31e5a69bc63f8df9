package config

import "testing"

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("ALLOWED_ORIGINS", "")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("API_AUTH_TOKEN", "")
	t.Setenv("RATE_LIMIT_PER_MIN", "")
	t.Setenv("SCORER_SEED", "")
	t.Setenv("FEATURE_WORKERS", "")

	cfg := Load()

	if cfg.Port != "8080" {
		t.Errorf("Expected default port 8080. Got: %s", cfg.Port)
	}
	if cfg.AllowedOrigins != "*" {
		t.Errorf("Expected default origins *. Got: %s", cfg.AllowedOrigins)
	}
	if cfg.RateLimitPerMin != 120 {
		t.Errorf("Expected default rate limit 120. Got: %d", cfg.RateLimitPerMin)
	}
	if cfg.ScorerSeedSet {
		t.Errorf("Expected seed unset by default")
	}
	if cfg.FeatureWorkers != 0 {
		t.Errorf("Expected 0 workers by default. Got: %d", cfg.FeatureWorkers)
	}
	if cfg.AuthEnabled() {
		t.Errorf("Expected auth disabled without a token")
	}
	if cfg.HasDatabase() {
		t.Errorf("Expected no database without a connection string")
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("ALLOWED_ORIGINS", "https://app.example.com")
	t.Setenv("DATABASE_URL", "postgres://localhost/scores")
	t.Setenv("API_AUTH_TOKEN", "secret")
	t.Setenv("RATE_LIMIT_PER_MIN", "30")
	t.Setenv("SCORER_SEED", "42")
	t.Setenv("FEATURE_WORKERS", "4")

	cfg := Load()

	if cfg.Port != "9090" {
		t.Errorf("Expected port 9090. Got: %s", cfg.Port)
	}
	if cfg.AllowedOrigins != "https://app.example.com" {
		t.Errorf("Expected configured origins. Got: %s", cfg.AllowedOrigins)
	}
	if !cfg.HasDatabase() {
		t.Errorf("Expected database to be configured")
	}
	if !cfg.AuthEnabled() {
		t.Errorf("Expected auth enabled with a token")
	}
	if cfg.RateLimitPerMin != 30 {
		t.Errorf("Expected rate limit 30. Got: %d", cfg.RateLimitPerMin)
	}
	if !cfg.ScorerSeedSet || cfg.ScorerSeed != 42 {
		t.Errorf("Expected seed 42. Got: %d (set=%v)", cfg.ScorerSeed, cfg.ScorerSeedSet)
	}
	if cfg.FeatureWorkers != 4 {
		t.Errorf("Expected 4 workers. Got: %d", cfg.FeatureWorkers)
	}
}

func TestLoad_BadNumbersFallBack(t *testing.T) {
	t.Setenv("RATE_LIMIT_PER_MIN", "not-a-number")
	t.Setenv("SCORER_SEED", "abc")
	t.Setenv("FEATURE_WORKERS", "")

	cfg := Load()

	if cfg.RateLimitPerMin != 120 {
		t.Errorf("Expected fallback rate limit 120. Got: %d", cfg.RateLimitPerMin)
	}
	if cfg.ScorerSeedSet {
		t.Errorf("Expected unparseable seed to stay unset")
	}
}

func TestLoad_NonPositiveRateLimitFallsBack(t *testing.T) {
	t.Setenv("RATE_LIMIT_PER_MIN", "-5")

	if cfg := Load(); cfg.RateLimitPerMin != 120 {
		t.Errorf("Expected non-positive rate limit to fall back to 120. Got: %d", cfg.RateLimitPerMin)
	}
}
