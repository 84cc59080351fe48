// Package config loads server configuration from environment variables and
// an optional .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config represents the server configuration.
type Config struct {
	Port     int
	DBPath   string
	LogLevel string
	// LogPretty switches logs to the console writer.
	LogPretty bool
	Cache     CacheConfig
	// CORSOrigins lists allowed origins. Empty allows any origin.
	CORSOrigins []string
}

// CacheConfig bounds the category tree cache.
type CacheConfig struct {
	Size int
	TTL  time.Duration
}

// Load reads configuration from the environment. A .env file in the
// current directory is loaded when present; an explicit envPath must exist.
// Variables already set in the environment win over the file.
func Load(envPath ...string) (*Config, error) {
	if len(envPath) > 0 && envPath[0] != "" {
		if err := godotenv.Load(envPath[0]); err != nil {
			return nil, fmt.Errorf("failed to load .env file: %w", err)
		}
	} else {
		_ = godotenv.Load()
	}

	port, err := parseIntEnv("LEDGER_PORT", 8080)
	if err != nil {
		return nil, err
	}
	cacheSize, err := parseIntEnv("LEDGER_TREE_CACHE_SIZE", 256)
	if err != nil {
		return nil, err
	}
	cacheTTL, err := parseDurationEnv("LEDGER_TREE_CACHE_TTL", 5*time.Minute)
	if err != nil {
		return nil, err
	}
	pretty, err := parseBoolEnv("LEDGER_LOG_PRETTY", false)
	if err != nil {
		return nil, err
	}

	return &Config{
		Port:        port,
		DBPath:      getEnvOrDefault("LEDGER_DB_PATH", "ledger.db"),
		LogLevel:    getEnvOrDefault("LEDGER_LOG_LEVEL", "info"),
		LogPretty:   pretty,
		Cache:       CacheConfig{Size: cacheSize, TTL: cacheTTL},
		CORSOrigins: splitList(os.Getenv("LEDGER_CORS_ORIGINS")),
	}, nil
}

// Validate checks that every value is usable.
func (c *Config) Validate() error {
	var errs []error
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if strings.TrimSpace(c.DBPath) == "" {
		errs = append(errs, errors.New("database path is empty"))
	}
	if c.Cache.Size <= 0 {
		errs = append(errs, fmt.Errorf("tree cache size must be positive, got %d", c.Cache.Size))
	}
	if c.Cache.TTL <= 0 {
		errs = append(errs, fmt.Errorf("tree cache TTL must be positive, got %s", c.Cache.TTL))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

// Addr returns the listen address for the HTTP server.
func (c *Config) Addr() string {
	return ":" + strconv.Itoa(c.Port)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseIntEnv(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid integer value for %s: %s", key, value)
	}
	return parsed, nil
}

func parseDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid duration value for %s: %s", key, value)
	}
	return parsed, nil
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("invalid boolean value for %s: %s", key, value)
	}
	return parsed, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
