// Package config provides process configuration for curator.
//
// Values are layered: built-in defaults, then an optional YAML file named by
// CURATOR_CONFIG, then CURATOR_* environment variables. AI provider settings
// are not part of this config; they are persisted by the settings service.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all process configuration.
type Config struct {
	Storage  StorageConfig  `yaml:"storage"`
	Analysis AnalysisConfig `yaml:"analysis"`
	Batch    BatchConfig    `yaml:"batch"`
	Server   ServerConfig   `yaml:"server"`
	Logging  LoggingConfig  `yaml:"logging"`
	Eagle    EagleConfig    `yaml:"eagle"`
}

// StorageConfig contains database configuration.
type StorageConfig struct {
	DataPath string `yaml:"data_path"` // directory holding the database (default: ./data)
	DSN      string `yaml:"dsn"`       // overrides DataPath when set, e.g. ":memory:"
}

// AnalysisConfig tunes the analysis pipeline.
type AnalysisConfig struct {
	// SimulationDelay is the artificial latency of local simulation mode.
	// Negative disables it.
	SimulationDelay time.Duration `yaml:"simulation_delay"`

	// CloudRequestsPerMinute throttles cloud provider calls. 0 disables.
	CloudRequestsPerMinute int `yaml:"cloud_requests_per_minute"`

	// FetchMaxBytes caps the size of a fetched asset payload.
	FetchMaxBytes int64 `yaml:"fetch_max_bytes"`

	// FetchTimeout bounds a single remote asset download.
	FetchTimeout time.Duration `yaml:"fetch_timeout"`
}

// BatchConfig contains batch controller configuration.
type BatchConfig struct {
	// ItemInterval is the minimum spacing between batch items. 0 disables.
	ItemInterval time.Duration `yaml:"item_interval"`
}

// ServerConfig contains the progress/metrics HTTP server configuration.
type ServerConfig struct {
	Host string `yaml:"host"` // default: 127.0.0.1
	Port int    `yaml:"port"` // default: 7373
}

// LoggingConfig controls the zerolog setup.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // trace, debug, info, warn, error (default: info)
	Pretty bool   `yaml:"pretty"` // human-readable console output (default: true)
}

// EagleConfig points at a running Eagle library for export.
type EagleConfig struct {
	URL string `yaml:"url"` // default: http://localhost:41595
}

// Default returns the built-in defaults.
func Default() *Config {
	return &Config{
		Storage: StorageConfig{
			DataPath: "./data",
		},
		Analysis: AnalysisConfig{
			SimulationDelay: 500 * time.Millisecond,
			FetchMaxBytes:   64 << 20,
			FetchTimeout:    60 * time.Second,
		},
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 7373,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Pretty: true,
		},
		Eagle: EagleConfig{
			URL: "http://localhost:41595",
		},
	}
}

// LoadConfig builds the layered configuration and validates it.
func LoadConfig() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("CURATOR_CONFIG"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: failed to read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("config: failed to parse %s: %w", path, err)
	}
	return nil
}

// applyEnv overrides every field that has a CURATOR_* variable set.
func (c *Config) applyEnv() {
	c.Storage.DataPath = getEnv("CURATOR_DATA_PATH", c.Storage.DataPath)
	c.Storage.DSN = getEnv("CURATOR_DSN", c.Storage.DSN)

	c.Analysis.SimulationDelay = getEnvDuration("CURATOR_SIMULATION_DELAY", c.Analysis.SimulationDelay)
	c.Analysis.CloudRequestsPerMinute = getEnvInt("CURATOR_CLOUD_RPM", c.Analysis.CloudRequestsPerMinute)
	c.Analysis.FetchMaxBytes = int64(getEnvInt("CURATOR_FETCH_MAX_BYTES", int(c.Analysis.FetchMaxBytes)))
	c.Analysis.FetchTimeout = getEnvDuration("CURATOR_FETCH_TIMEOUT", c.Analysis.FetchTimeout)

	c.Batch.ItemInterval = getEnvDuration("CURATOR_BATCH_INTERVAL", c.Batch.ItemInterval)

	c.Server.Host = getEnv("CURATOR_HOST", c.Server.Host)
	c.Server.Port = getEnvInt("CURATOR_PORT", c.Server.Port)

	c.Logging.Level = getEnv("CURATOR_LOG_LEVEL", c.Logging.Level)
	c.Logging.Pretty = getEnvBool("CURATOR_LOG_PRETTY", c.Logging.Pretty)

	c.Eagle.URL = getEnv("CURATOR_EAGLE_URL", c.Eagle.URL)
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	var errs []error
	if c.Storage.DSN == "" && c.Storage.DataPath == "" {
		errs = append(errs, errors.New("storage: data_path or dsn is required"))
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server: invalid port %d", c.Server.Port))
	}
	if c.Analysis.CloudRequestsPerMinute < 0 {
		errs = append(errs, fmt.Errorf("analysis: cloud_requests_per_minute must be >= 0, got %d", c.Analysis.CloudRequestsPerMinute))
	}
	if c.Analysis.FetchMaxBytes <= 0 {
		errs = append(errs, fmt.Errorf("analysis: fetch_max_bytes must be > 0, got %d", c.Analysis.FetchMaxBytes))
	}
	if c.Batch.ItemInterval < 0 {
		errs = append(errs, fmt.Errorf("batch: item_interval must be >= 0, got %s", c.Batch.ItemInterval))
	}
	switch strings.ToLower(c.Logging.Level) {
	case "trace", "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("logging: invalid level %q", c.Logging.Level))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// DatabaseDSN returns the DSN to open, creating the data directory if needed.
func (c *Config) DatabaseDSN() (string, error) {
	if c.Storage.DSN != "" {
		return c.Storage.DSN, nil
	}
	if err := os.MkdirAll(c.Storage.DataPath, 0o755); err != nil {
		return "", fmt.Errorf("config: failed to create data path: %w", err)
	}
	return filepath.Join(c.Storage.DataPath, "curator.db"), nil
}

// ServerAddr returns host:port for the progress server.
func (c *Config) ServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// getEnv retrieves a string environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an integer environment variable or returns a default value.
// If the environment variable exists but cannot be parsed as an integer,
// it returns the default value.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvBool retrieves a boolean environment variable or returns a default value.
// It recognizes "true", "1", "yes" as true and "false", "0", "no" as false (case-insensitive).
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		switch strings.ToLower(value) {
		case "true", "1", "yes":
			return true
		case "false", "0", "no":
			return false
		}
	}
	return defaultValue
}

// getEnvDuration retrieves a time.Duration environment variable ("750ms", "2s")
// or returns a default value.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
