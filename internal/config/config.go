package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds command defaults taken from the environment. Flags
// override every field.
type Config struct {
	Timeout     time.Duration
	Concurrency int
	UserAgent   string
	MaxBodySize int64
	LogLevel    string
	NoColor     bool
}

// Load reads an optional .env file from the working directory and
// builds the configuration from the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := &Config{
		Timeout:     getEnvAsDuration("PLUGINSCAN_TIMEOUT", 10*time.Second),
		Concurrency: getEnvAsInt("PLUGINSCAN_CONCURRENCY", 1),
		UserAgent:   getEnv("PLUGINSCAN_USER_AGENT", ""),
		MaxBodySize: int64(getEnvAsInt("PLUGINSCAN_MAX_BODY_SIZE", 0)),
		LogLevel:    getEnv("LOG_LEVEL", "warn"),
		NoColor:     getEnv("NO_COLOR", "") != "",
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration values
func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", c.Timeout)
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1, got %d", c.Concurrency)
	}
	if c.MaxBodySize < 0 {
		return fmt.Errorf("max body size must not be negative, got %d", c.MaxBodySize)
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// ParseLevel converts a level name to a slog level
func ParseLevel(name string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(strings.TrimSpace(name)))); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q", name)
	}
	return level, nil
}

func getEnv(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	value, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	// plain numbers are seconds
	if secs, err := strconv.Atoi(raw); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}
