// Package config provides application configuration.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	// BackendURL is the base URL of the agent service.
	BackendURL string
	// HTTPTimeout bounds request/response calls (streaming is exempt).
	HTTPTimeout time.Duration
	// PollInterval is the readiness query cadence.
	PollInterval time.Duration
	// PollTimeout bounds the whole readiness wait.
	PollTimeout time.Duration
	// Streaming selects the event-stream gameplay endpoint.
	Streaming bool
	// DBPath is the SQLite transcript archive location.
	DBPath string
	// LogFile receives structured logs from the TUI (stdout belongs to the
	// terminal UI).
	LogFile  string
	LogLevel string

	// Port is the stub server listen port.
	Port string
	// ReadyDelay is how long the stub server waits after character
	// completion before reporting ready_for_game.
	ReadyDelay time.Duration
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		BackendURL:   getEnv("BACKEND_URL", "http://localhost:8000"),
		HTTPTimeout:  getEnvDuration("HTTP_TIMEOUT", 60*time.Second),
		PollInterval: getEnvDuration("POLL_INTERVAL", time.Second),
		PollTimeout:  getEnvDuration("POLL_TIMEOUT", 20*time.Second),
		Streaming:    getEnvBool("GAME_STREAMING", true),
		DBPath:       getEnv("DB_PATH", "./data/aidm.db"),
		LogFile:      getEnv("LOG_FILE", "./data/aidm.log"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		Port:         getEnv("PORT", "8000"),
		ReadyDelay:   getEnvDuration("READY_DELAY", 2*time.Second),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	u, err := url.Parse(c.BackendURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("BACKEND_URL must be an absolute URL, got %q", c.BackendURL)
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be > 0")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("POLL_INTERVAL must be > 0")
	}
	if c.PollTimeout < c.PollInterval {
		return fmt.Errorf("POLL_TIMEOUT must be >= POLL_INTERVAL")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	// Accept bare numbers as seconds.
	if n, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
		return time.Duration(n) * time.Second
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}
