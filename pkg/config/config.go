// Package config loads service configuration from the environment.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds everything the storefront service reads at startup.
type Config struct {
	Env  string
	Addr string

	RedisAddr   string
	DatabaseURL string

	// CommerceURL points at a remote commerce platform. Empty selects the
	// in-process backend.
	CommerceURL   string
	CommerceToken string

	CheckoutBase string
	TaxRate      float64
	SessionTTL   time.Duration

	OtelHost string
}

// Load reads the environment with defaults suitable for local development.
func Load() Config {
	return Config{
		Env:           getEnv("APP_ENV", "dev"),
		Addr:          getEnv("HTTP_ADDR", ":8080"),
		RedisAddr:     getEnv("REDIS_ADDR", ""),
		DatabaseURL:   getEnv("DATABASE_URL", ""),
		CommerceURL:   getEnv("COMMERCE_URL", ""),
		CommerceToken: getEnv("COMMERCE_TOKEN", ""),
		CheckoutBase:  getEnv("CHECKOUT_BASE", "https://checkout.example.com"),
		TaxRate:       getEnvFloat("TAX_RATE", 0),
		SessionTTL:    getEnvDuration("SESSION_TTL", 24*time.Hour),
		OtelHost:      getEnv("OTEL_HOST", ""),
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
