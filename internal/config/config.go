// Package config provides configuration management for the listing dashboard.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Default configuration values.
const (
	DefaultServerPort      = 8080
	DefaultLogLevel        = "info"
	DefaultShutdownTimeout = 30 * time.Second
	DefaultMetricsEnabled  = true
	DefaultAPIBaseURL      = "http://localhost:5000"
	DefaultAPITimeout      = 0
	DefaultMaxUploadBytes  = 32 << 20
	DefaultMaxFormSessions = 256
	DefaultEnvFile         = ".env"
)

// Environment variable names.
const (
	EnvServerPort      = "APP_SERVER_PORT"
	EnvLogLevel        = "APP_LOG_LEVEL"
	EnvShutdownTimeout = "APP_SHUTDOWN_TIMEOUT"
	EnvMetricsEnabled  = "APP_METRICS_ENABLED"
	EnvAPIBaseURL      = "APP_API_BASE_URL"
	EnvAPITimeout      = "APP_API_TIMEOUT"
	EnvMaxUploadBytes  = "APP_MAX_UPLOAD_BYTES"
	EnvMaxFormSessions = "APP_MAX_FORM_SESSIONS"
	EnvEnvFile         = "APP_ENV_FILE"
)

// Config holds the application configuration.
type Config struct {
	// Server settings.
	ServerPort      int
	LogLevel        string
	ShutdownTimeout time.Duration
	MetricsEnabled  bool

	// Backend settings. One base URL serves every listing call.
	APIBaseURL string
	APITimeout time.Duration // 0 = transport default.

	// Form settings.
	MaxUploadBytes  int64
	MaxFormSessions int
}

// Validation errors.
var (
	ErrInvalidServerPort      = errors.New("server port must be between 1 and 65535")
	ErrInvalidLogLevel        = errors.New("log level must be one of: debug, info, warn, error")
	ErrInvalidShutdownTimeout = errors.New("shutdown timeout must be positive")
	ErrInvalidAPIBaseURL      = errors.New("API base URL must be an absolute http or https URL")
	ErrInvalidAPITimeout      = errors.New("API timeout cannot be negative")
	ErrInvalidMaxUploadBytes  = errors.New("max upload bytes must be positive")
	ErrInvalidMaxFormSessions = errors.New("max form sessions must be positive")
)

// Load reads configuration from an optional dotenv file and environment
// variables with defaults. Variables already set in the environment take
// priority over the dotenv file, which takes priority over defaults.
func Load() (*Config, error) {
	if err := loadEnvFile(); err != nil {
		return nil, fmt.Errorf("loading env file: %w", err)
	}

	cfg := &Config{
		ServerPort:      DefaultServerPort,
		LogLevel:        DefaultLogLevel,
		ShutdownTimeout: DefaultShutdownTimeout,
		MetricsEnabled:  DefaultMetricsEnabled,
		APIBaseURL:      DefaultAPIBaseURL,
		APITimeout:      DefaultAPITimeout,
		MaxUploadBytes:  DefaultMaxUploadBytes,
		MaxFormSessions: DefaultMaxFormSessions,
	}

	if err := cfg.loadFromEnv(); err != nil {
		return nil, fmt.Errorf("loading config from environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// loadEnvFile loads the dotenv file named by APP_ENV_FILE. A missing default
// file is not an error; a missing explicitly named file is.
func loadEnvFile() error {
	path := os.Getenv(EnvEnvFile)
	explicit := path != ""
	if !explicit {
		path = DefaultEnvFile
	}

	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) && !explicit {
			return nil
		}
		return err
	}

	// godotenv.Load never overrides variables that are already set.
	return godotenv.Load(path)
}

// loadFromEnv loads configuration values from environment variables.
func (c *Config) loadFromEnv() error {
	if err := c.loadServerEnv(); err != nil {
		return err
	}

	if err := c.loadBackendEnv(); err != nil {
		return err
	}

	if err := c.loadFormEnv(); err != nil {
		return err
	}

	return nil
}

// loadServerEnv loads server-related environment variables.
func (c *Config) loadServerEnv() error {
	if val := os.Getenv(EnvServerPort); val != "" {
		port, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("parsing %s: %w", EnvServerPort, err)
		}
		c.ServerPort = port
	}

	if val := os.Getenv(EnvLogLevel); val != "" {
		c.LogLevel = val
	}

	if val := os.Getenv(EnvShutdownTimeout); val != "" {
		timeout, err := time.ParseDuration(val)
		if err != nil {
			return fmt.Errorf("parsing %s: %w", EnvShutdownTimeout, err)
		}
		c.ShutdownTimeout = timeout
	}

	if val := os.Getenv(EnvMetricsEnabled); val != "" {
		enabled, err := strconv.ParseBool(val)
		if err != nil {
			return fmt.Errorf("parsing %s: %w", EnvMetricsEnabled, err)
		}
		c.MetricsEnabled = enabled
	}

	return nil
}

// loadBackendEnv loads the listings backend settings.
func (c *Config) loadBackendEnv() error {
	if val := os.Getenv(EnvAPIBaseURL); val != "" {
		c.APIBaseURL = val
	}

	if val := os.Getenv(EnvAPITimeout); val != "" {
		timeout, err := time.ParseDuration(val)
		if err != nil {
			return fmt.Errorf("parsing %s: %w", EnvAPITimeout, err)
		}
		c.APITimeout = timeout
	}

	return nil
}

// loadFormEnv loads form handling limits.
func (c *Config) loadFormEnv() error {
	if val := os.Getenv(EnvMaxUploadBytes); val != "" {
		size, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			return fmt.Errorf("parsing %s: %w", EnvMaxUploadBytes, err)
		}
		c.MaxUploadBytes = size
	}

	if val := os.Getenv(EnvMaxFormSessions); val != "" {
		n, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("parsing %s: %w", EnvMaxFormSessions, err)
		}
		c.MaxFormSessions = n
	}

	return nil
}

// Validate checks if the configuration values are valid.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}

	if err := c.validateBackend(); err != nil {
		return err
	}

	if c.MaxUploadBytes <= 0 {
		return ErrInvalidMaxUploadBytes
	}

	if c.MaxFormSessions <= 0 {
		return ErrInvalidMaxFormSessions
	}

	return nil
}

// validateServer validates server-related configuration.
func (c *Config) validateServer() error {
	if c.ServerPort < 1 || c.ServerPort > 65535 {
		return ErrInvalidServerPort
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return ErrInvalidLogLevel
	}

	if c.ShutdownTimeout <= 0 {
		return ErrInvalidShutdownTimeout
	}

	return nil
}

// validateBackend validates the backend address and timeout.
func (c *Config) validateBackend() error {
	u, err := url.Parse(c.APIBaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ErrInvalidAPIBaseURL
	}

	if c.APITimeout < 0 {
		return ErrInvalidAPITimeout
	}

	return nil
}

// Address returns the server address in host:port format.
func (c *Config) Address() string {
	return fmt.Sprintf(":%d", c.ServerPort)
}
