// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	Port           int
	LogLevel       string
	Pretty         bool
	AllowedOrigins []string

	// Risk engine defaults. Callers may override per request; these are the
	// values used when a request leaves the corresponding field empty.
	ValidationLevel    string // strict, moderate, permissive
	MinObservations    int    // alignment floor
	BootstrapResamples int
	BootstrapSeed      int64
	WorkerPoolSize     int // batch estimation workers
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		Port:               getEnvAsInt("RISK_PORT", 8010),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		Pretty:             getEnvAsBool("LOG_PRETTY", true),
		AllowedOrigins:     getEnvAsSlice("ALLOWED_ORIGINS", []string{"*"}),
		ValidationLevel:    getEnv("VALIDATION_LEVEL", "moderate"),
		MinObservations:    getEnvAsInt("MIN_OBSERVATIONS", 30),
		BootstrapResamples: getEnvAsInt("BOOTSTRAP_RESAMPLES", 1000),
		BootstrapSeed:      int64(getEnvAsInt("BOOTSTRAP_SEED", 42)),
		WorkerPoolSize:     getEnvAsInt("WORKER_POOL_SIZE", 10),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present and sane
func (c *Config) Validate() error {
	switch c.ValidationLevel {
	case "strict", "moderate", "permissive":
	default:
		return fmt.Errorf("invalid VALIDATION_LEVEL %q (want strict, moderate or permissive)", c.ValidationLevel)
	}

	if c.MinObservations < 2 {
		return fmt.Errorf("MIN_OBSERVATIONS must be at least 2, got %d", c.MinObservations)
	}
	if c.BootstrapResamples < 1 {
		return fmt.Errorf("BOOTSTRAP_RESAMPLES must be positive, got %d", c.BootstrapResamples)
	}

	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return defaultValue
}
