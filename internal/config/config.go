// Package config loads application configuration from environment variables.
package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// DefaultAPIBaseURL is the trading service the desktop client talks to.
const DefaultAPIBaseURL = "http://13.48.249.94:3001"

// Config holds the application configuration loaded from environment variables.
type Config struct {
	APIBaseURL  string
	HTTPTimeout time.Duration
	ListenAddr  string
	DBPath      string
	SecretKey   []byte
	LogLevel    slog.Level
}

// HasSecretKey returns true when a secret store encryption key is configured.
// Without one the credential cannot be stored or read.
func (c *Config) HasSecretKey() bool {
	return len(c.SecretKey) > 0
}

// LoadDotEnv copies variables from a .env file into the process environment.
// Variables already set are not overridden and a missing file is not an error.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// Load reads configuration from environment variables and returns a validated Config.
// All variables are optional: PROFITPILOT_API_BASE_URL (DefaultAPIBaseURL),
// PROFITPILOT_HTTP_TIMEOUT (30s), PROFITPILOT_LISTEN_ADDR (127.0.0.1:8080),
// PROFITPILOT_DB_PATH (profitpilot.db), PROFITPILOT_SECRET_KEY (64 hex chars,
// no default), PROFITPILOT_LOG_LEVEL (info).
func Load() (*Config, error) {
	baseURL := DefaultAPIBaseURL
	if v, ok := os.LookupEnv("PROFITPILOT_API_BASE_URL"); ok && v != "" {
		u, err := url.Parse(v)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("PROFITPILOT_API_BASE_URL must be an absolute URL, got %q", v)
		}
		baseURL = v
	}

	timeout := 30 * time.Second
	if v, ok := os.LookupEnv("PROFITPILOT_HTTP_TIMEOUT"); ok {
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("PROFITPILOT_HTTP_TIMEOUT has invalid duration %q: %w", v, err)
		}
		if parsed <= 0 {
			return nil, fmt.Errorf("PROFITPILOT_HTTP_TIMEOUT must be positive, got %s", parsed)
		}
		timeout = parsed
	}

	listenAddr := "127.0.0.1:8080"
	if v, ok := os.LookupEnv("PROFITPILOT_LISTEN_ADDR"); ok {
		listenAddr = v
	}

	dbPath := "profitpilot.db"
	if v, ok := os.LookupEnv("PROFITPILOT_DB_PATH"); ok {
		dbPath = v
	}

	var secretKey []byte
	if v, ok := os.LookupEnv("PROFITPILOT_SECRET_KEY"); ok && v != "" {
		key, err := hex.DecodeString(v)
		if err != nil {
			return nil, fmt.Errorf("PROFITPILOT_SECRET_KEY must be hex encoded: %w", err)
		}
		if len(key) != 32 {
			return nil, fmt.Errorf("PROFITPILOT_SECRET_KEY must be 64 hex characters (32 bytes), got %d bytes", len(key))
		}
		secretKey = key
	}

	logLevel := slog.LevelInfo
	if v, ok := os.LookupEnv("PROFITPILOT_LOG_LEVEL"); ok && v != "" {
		if err := logLevel.UnmarshalText([]byte(v)); err != nil {
			return nil, fmt.Errorf("PROFITPILOT_LOG_LEVEL has invalid level %q: %w", v, err)
		}
	}

	return &Config{
		APIBaseURL:  baseURL,
		HTTPTimeout: timeout,
		ListenAddr:  listenAddr,
		DBPath:      dbPath,
		SecretKey:   secretKey,
		LogLevel:    logLevel,
	}, nil
}
