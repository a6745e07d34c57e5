// Package config provides unified configuration for the datastash CLI.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/datastash/datastash/pkg/stash"
)

// Config holds every knob the CLI exposes. Library users configure a Cache
// directly through stash options; this package exists so files, environment
// variables, and flags all land in one struct.
type Config struct {
	// Subdir is the cache subdirectory under the user cache root
	Subdir string `json:"subdir" yaml:"subdir"`

	// CacheDir, when set, overrides cache directory resolution entirely
	CacheDir string `json:"cache_dir" yaml:"cache_dir"`

	// HTTP holds transfer settings for http and https sources
	HTTP HTTPConfig `json:"http" yaml:"http"`

	// S3 holds settings for s3:// sources
	S3 S3Config `json:"s3" yaml:"s3"`

	// Database holds materialization settings
	Database DatabaseConfig `json:"database" yaml:"database"`
}

// HTTPConfig holds HTTP transfer configuration.
type HTTPConfig struct {
	// Timeout bounds each transfer
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is sent with each request
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// UnmarshalYAML accepts durations in the "30s" form; neither codec parses
// them into time.Duration on its own.
func (h *HTTPConfig) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		Timeout   string `yaml:"timeout"`
		UserAgent string `yaml:"user_agent"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	if raw.Timeout != "" {
		d, err := time.ParseDuration(raw.Timeout)
		if err != nil {
			return fmt.Errorf("http.timeout: %w", err)
		}
		h.Timeout = d
	}
	if raw.UserAgent != "" {
		h.UserAgent = raw.UserAgent
	}
	return nil
}

// UnmarshalJSON accepts durations as "30s" strings or nanosecond numbers.
func (h *HTTPConfig) UnmarshalJSON(data []byte) error {
	var raw struct {
		Timeout   json.RawMessage `json:"timeout"`
		UserAgent string          `json:"user_agent"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.UserAgent != "" {
		h.UserAgent = raw.UserAgent
	}
	if len(raw.Timeout) > 0 {
		var s string
		if err := json.Unmarshal(raw.Timeout, &s); err == nil {
			d, err := time.ParseDuration(s)
			if err != nil {
				return fmt.Errorf("http.timeout: %w", err)
			}
			h.Timeout = d
			return nil
		}
		var n int64
		if err := json.Unmarshal(raw.Timeout, &n); err != nil {
			return fmt.Errorf("http.timeout: want a duration string or nanoseconds")
		}
		h.Timeout = time.Duration(n)
	}
	return nil
}

// S3Config holds S3 transfer configuration.
type S3Config struct {
	// Region is the AWS region
	Region string `json:"region" yaml:"region"`

	// Endpoint is the S3 endpoint (for S3-compatible storage)
	Endpoint string `json:"endpoint" yaml:"endpoint"`

	// UsePathStyle switches to path-style addressing
	UsePathStyle bool `json:"use_path_style" yaml:"use_path_style"`

	// MaxRetries bounds retry attempts for transient failures
	MaxRetries int `json:"max_retries" yaml:"max_retries"`
}

// DatabaseConfig holds materialization configuration.
type DatabaseConfig struct {
	// Collection tags built artifacts; empty means the library default
	Collection string `json:"collection" yaml:"collection"`

	// Version is the default dataset version for builds
	Version int `json:"version" yaml:"version"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Subdir: "",
		HTTP: HTTPConfig{
			Timeout:   5 * time.Minute,
			UserAgent: "datastash",
		},
		S3: S3Config{
			MaxRetries: 3,
		},
		Database: DatabaseConfig{
			Version: stash.DefaultVersion,
		},
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.HTTP.Timeout < 0 {
		return fmt.Errorf("http.timeout must not be negative, got %s", c.HTTP.Timeout)
	}
	if c.S3.MaxRetries < 0 {
		return fmt.Errorf("s3.max_retries must not be negative, got %d", c.S3.MaxRetries)
	}
	if c.Database.Version < 0 {
		return fmt.Errorf("database.version must not be negative, got %d", c.Database.Version)
	}
	return nil
}

// Options translates the transfer settings into cache options.
func (c *Config) Options() []stash.Option {
	opts := []stash.Option{
		stash.WithHTTPTimeout(c.HTTP.Timeout),
		stash.WithUserAgent(c.HTTP.UserAgent),
		stash.WithMaxRetries(c.S3.MaxRetries),
	}
	if c.CacheDir != "" {
		opts = append(opts, stash.WithDir(c.CacheDir))
	}
	if c.S3.Region != "" {
		opts = append(opts, stash.WithS3Region(c.S3.Region))
	}
	if c.S3.Endpoint != "" {
		opts = append(opts, stash.WithS3Endpoint(c.S3.Endpoint, c.S3.UsePathStyle))
	}
	return opts
}

// LoadFromFile loads configuration from a YAML or JSON file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file format: %s", ext)
	}

	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables.
// Environment variables use the DATASTASH_ prefix.
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("DATASTASH_SUBDIR"); v != "" {
		cfg.Subdir = v
	}
	if v := os.Getenv("DATASTASH_CACHE_DIR"); v != "" {
		cfg.CacheDir = v
	}

	// HTTP configuration
	if v := os.Getenv("DATASTASH_HTTP_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.HTTP.Timeout = d
		}
	}
	if v := os.Getenv("DATASTASH_HTTP_USER_AGENT"); v != "" {
		cfg.HTTP.UserAgent = v
	}

	// S3 configuration
	if v := os.Getenv("DATASTASH_S3_REGION"); v != "" {
		cfg.S3.Region = v
	}
	if v := os.Getenv("DATASTASH_S3_ENDPOINT"); v != "" {
		cfg.S3.Endpoint = v
	}
	if v := os.Getenv("DATASTASH_S3_USE_PATH_STYLE"); v != "" {
		cfg.S3.UsePathStyle = v == "true" || v == "1"
	}
	if v := os.Getenv("DATASTASH_S3_MAX_RETRIES"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.S3.MaxRetries)
	}

	// Database configuration
	if v := os.Getenv("DATASTASH_COLLECTION"); v != "" {
		cfg.Database.Collection = v
	}
	if v := os.Getenv("DATASTASH_VERSION"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Database.Version)
	}
}
