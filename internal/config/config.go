// Package config loads configuration from an optional YAML file and
// environment variables.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"
)

// AppName names the per-user config and data directories.
const AppName = "docshelf"

// Config holds all client configuration.
type Config struct {
	// Backend
	APIURL        string        `yaml:"api_url"`
	Timeout       time.Duration `yaml:"timeout"`
	RetryAttempts int           `yaml:"retry_attempts"`

	// Session
	TokenFile string `yaml:"token_file"`

	// Cache staleness windows
	StaleTime          time.Duration `yaml:"stale_time"`
	DocumentsStaleTime time.Duration `yaml:"documents_stale_time"`

	// Uploads
	MaxUploadSize int64 `yaml:"max_upload_size"`

	// Logging
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	// Metrics (empty = disabled)
	MetricsAddr string `yaml:"metrics_addr"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		APIURL:             "http://localhost:3001/api",
		Timeout:            30 * time.Second,
		RetryAttempts:      3,
		TokenFile:          "",
		StaleTime:          5 * time.Minute,
		DocumentsStaleTime: 0,
		MaxUploadSize:      50 * 1024 * 1024, // 50MB
		LogLevel:           "warn",
		LogFormat:          "console",
	}
}

// Load reads configuration: defaults, then the YAML file (DOCSHELF_CONFIG or
// the XDG config file when present), then environment variables.
func Load() (*Config, error) {
	cfg := Default()

	path := os.Getenv("DOCSHELF_CONFIG")
	explicit := path != ""
	if !explicit {
		path = DefaultConfigFile()
	}
	if err := cfg.mergeFile(path, explicit); err != nil {
		return nil, err
	}

	cfg.APIURL = envOr("DOCSHELF_API_URL", cfg.APIURL)
	cfg.Timeout = envDuration("DOCSHELF_TIMEOUT", cfg.Timeout)
	cfg.RetryAttempts = envInt("DOCSHELF_RETRY_ATTEMPTS", cfg.RetryAttempts)
	cfg.TokenFile = envOr("DOCSHELF_TOKEN_FILE", cfg.TokenFile)
	cfg.StaleTime = envDuration("DOCSHELF_STALE_TIME", cfg.StaleTime)
	cfg.DocumentsStaleTime = envDuration("DOCSHELF_DOCUMENTS_STALE_TIME", cfg.DocumentsStaleTime)
	cfg.MaxUploadSize = envInt64("DOCSHELF_MAX_UPLOAD_SIZE", cfg.MaxUploadSize)
	cfg.LogLevel = envOr("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = envOr("LOG_FORMAT", cfg.LogFormat)
	cfg.MetricsAddr = envOr("METRICS_ADDR", cfg.MetricsAddr)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for values the client cannot work with.
func (c *Config) Validate() error {
	if c.APIURL == "" {
		return errors.New("DOCSHELF_API_URL is required")
	}
	u, err := url.Parse(c.APIURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid DOCSHELF_API_URL %q", c.APIURL)
	}
	if c.Timeout < 0 || c.StaleTime < 0 || c.DocumentsStaleTime < 0 {
		return errors.New("durations must not be negative")
	}
	if c.MaxUploadSize <= 0 {
		return errors.New("DOCSHELF_MAX_UPLOAD_SIZE must be positive")
	}
	return nil
}

// TokenPath returns the token file location, defaulting to the XDG config dir.
func (c *Config) TokenPath() string {
	if c.TokenFile != "" {
		return c.TokenFile
	}
	return filepath.Join(xdg.ConfigHome, AppName, "token.json")
}

// DefaultConfigFile returns the XDG location of the optional config file.
func DefaultConfigFile() string {
	return filepath.Join(xdg.ConfigHome, AppName, "config.yaml")
}

func (c *Config) mergeFile(path string, required bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !required {
			return nil
		}
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}

func envInt64(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return i
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
