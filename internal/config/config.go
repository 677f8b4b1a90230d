package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	BackendBaseURL string
	BackendToken   string
	LogLevel       string
	Port           int
	DevMode        bool

	// Backend quota: the service enforces a hard limit of MaxRequests
	// request starts per Window, plus a concurrency cap.
	MaxRequests   int
	Window        time.Duration
	MaxConcurrent int

	// Retry policy for rate-limited responses.
	MaxRetries   int
	RetryBackoff time.Duration

	// Per-call HTTP timeout.
	RequestTimeout time.Duration

	// Default cache TTL for read responses.
	CacheTTL time.Duration
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		BackendBaseURL: getEnv("BACKEND_BASE_URL", "http://localhost:8090"),
		BackendToken:   getEnv("BACKEND_TOKEN", ""),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		Port:           getEnvAsInt("PORT", 8080),
		DevMode:        getEnvAsBool("DEV_MODE", false),
		MaxRequests:    getEnvAsInt("BACKEND_MAX_REQUESTS", 50),
		Window:         getEnvAsDuration("BACKEND_WINDOW", 20*time.Second),
		MaxConcurrent:  getEnvAsInt("BACKEND_MAX_CONCURRENT", 4),
		MaxRetries:     getEnvAsInt("BACKEND_MAX_RETRIES", 3),
		RetryBackoff:   getEnvAsDuration("BACKEND_RETRY_BACKOFF", time.Second),
		RequestTimeout: getEnvAsDuration("BACKEND_REQUEST_TIMEOUT", 15*time.Second),
		CacheTTL:       getEnvAsDuration("CACHE_TTL", 5*time.Minute),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.BackendBaseURL == "" {
		return fmt.Errorf("BACKEND_BASE_URL is required")
	}
	if c.MaxRequests <= 0 {
		return fmt.Errorf("BACKEND_MAX_REQUESTS must be positive")
	}
	if c.MaxConcurrent <= 0 {
		return fmt.Errorf("BACKEND_MAX_CONCURRENT must be positive")
	}

	// Note: BACKEND_TOKEN optional for local development backends

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

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
