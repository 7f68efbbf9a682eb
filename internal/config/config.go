// Package config loads service configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	// Fallback token lifetimes used when the environment does not override
	// them: 15 minutes for access tokens, 7 days for refresh tokens.
	DefaultAccessTTL  = 15 * time.Minute
	DefaultRefreshTTL = 7 * 24 * time.Hour
)

// Config carries everything cmd/api needs to wire the service.
type Config struct {
	Addr  string
	PGDSN string

	JWTAccessSecret  string
	JWTRefreshSecret string
	AccessTTL        time.Duration
	RefreshTTL       time.Duration

	GoogleClientID string

	PermissionsFile string

	RateLimitBurst     int
	RateLimitPerSecond int
}

// Load reads configuration from the environment. A local .env file is applied
// first when present so development setups do not need exported variables.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Addr:               getenv("FITBOOK_ADDR", ":8080"),
		PGDSN:              os.Getenv("FITBOOK_PG_DSN"),
		JWTAccessSecret:    os.Getenv("FITBOOK_JWT_SECRET"),
		JWTRefreshSecret:   os.Getenv("FITBOOK_JWT_REFRESH_SECRET"),
		AccessTTL:          durationMS("FITBOOK_JWT_ACCESS_EXPIRATION_MS", DefaultAccessTTL),
		RefreshTTL:         durationMS("FITBOOK_JWT_REFRESH_EXPIRATION_MS", DefaultRefreshTTL),
		GoogleClientID:     os.Getenv("FITBOOK_GOOGLE_CLIENT_ID"),
		PermissionsFile:    os.Getenv("FITBOOK_PERMISSIONS_FILE"),
		RateLimitBurst:     intenv("FITBOOK_RATE_LIMIT_BURST", 20),
		RateLimitPerSecond: intenv("FITBOOK_RATE_LIMIT_PER_SECOND", 10),
	}

	if cfg.JWTAccessSecret == "" {
		return Config{}, fmt.Errorf("FITBOOK_JWT_SECRET is required")
	}
	if cfg.JWTRefreshSecret == "" {
		return Config{}, fmt.Errorf("FITBOOK_JWT_REFRESH_SECRET is required")
	}
	if cfg.JWTAccessSecret == cfg.JWTRefreshSecret {
		return Config{}, fmt.Errorf("access and refresh secrets must differ")
	}
	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func intenv(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

// durationMS parses a millisecond count from the environment. Invalid or
// missing values fall back silently so a misconfigured TTL cannot take the
// service down.
func durationMS(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || ms <= 0 {
		return fallback
	}
	return time.Duration(ms) * time.Millisecond
}
