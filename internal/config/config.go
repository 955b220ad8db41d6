// Package config provides unified configuration for the Waypoint daemon
// and tools.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the unified configuration for the Waypoint daemon.
type Config struct {
	// DataDir is the base directory for all data files
	DataDir string `json:"data_dir" yaml:"data_dir"`

	// Store configuration (the key/value primitive)
	Store StoreConfig `json:"store" yaml:"store"`

	// HTTP configuration
	HTTP HTTPConfig `json:"http" yaml:"http"`

	// Tracker configuration
	Tracker TrackerConfig `json:"tracker" yaml:"tracker"`

	// Retention configuration
	Retention RetentionConfig `json:"retention" yaml:"retention"`

	// Export configuration
	Export ExportConfig `json:"export" yaml:"export"`
}

// StoreConfig holds key/value primitive configuration.
type StoreConfig struct {
	// Backend is the store backend: sqlite, memory
	Backend string `json:"backend" yaml:"backend"`

	// Path is the SQLite database path (sqlite backend only)
	Path string `json:"path" yaml:"path"`
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	// Addr is the listen address for the local API
	Addr string `json:"addr" yaml:"addr"`

	// ReadTimeout is the HTTP read timeout
	ReadTimeout time.Duration `json:"read_timeout" yaml:"read_timeout"`

	// WriteTimeout is the HTTP write timeout
	WriteTimeout time.Duration `json:"write_timeout" yaml:"write_timeout"`

	// IdleTimeout is the HTTP idle timeout
	IdleTimeout time.Duration `json:"idle_timeout" yaml:"idle_timeout"`
}

// TrackerConfig holds location tracker configuration.
type TrackerConfig struct {
	// Enabled controls whether the tracker polls at all
	Enabled bool `json:"enabled" yaml:"enabled"`

	// Interval is the polling interval for the position source
	Interval time.Duration `json:"interval" yaml:"interval"`

	// MinDistanceMeters is the minimum movement before a point is logged
	MinDistanceMeters float64 `json:"min_distance_meters" yaml:"min_distance_meters"`
}

// RetentionConfig holds log retention configuration.
type RetentionConfig struct {
	// MaxAge is how long log entries are kept; zero disables pruning
	MaxAge time.Duration `json:"max_age" yaml:"max_age"`

	// CheckInterval is how often the pruner sweeps the log
	CheckInterval time.Duration `json:"check_interval" yaml:"check_interval"`
}

// ExportConfig holds snapshot export configuration.
type ExportConfig struct {
	// Type is the object storage type: local, s3
	Type string `json:"type" yaml:"type"`

	// Path is the local object storage path (for local type)
	Path string `json:"path" yaml:"path"`

	// Prefix is the object path prefix for snapshots
	Prefix string `json:"prefix" yaml:"prefix"`

	// S3 configuration (for s3 type)
	S3 S3Config `json:"s3" yaml:"s3"`
}

// S3Config holds S3 object storage configuration.
type S3Config struct {
	// Bucket is the S3 bucket name
	Bucket string `json:"bucket" yaml:"bucket"`

	// Region is the AWS region
	Region string `json:"region" yaml:"region"`

	// Endpoint is the S3 endpoint (for S3-compatible storage)
	Endpoint string `json:"endpoint" yaml:"endpoint"`

	// UsePathStyle enables path-style addressing (required for MinIO)
	UsePathStyle bool `json:"use_path_style" yaml:"use_path_style"`
}

// DefaultConfig returns the default configuration for local use.
func DefaultConfig() *Config {
	return &Config{
		DataDir: "data/waypoint",
		Store: StoreConfig{
			Backend: "sqlite",
		},
		HTTP: HTTPConfig{
			Addr:         "127.0.0.1:8077",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		Tracker: TrackerConfig{
			Enabled:           true,
			Interval:          2 * time.Minute,
			MinDistanceMeters: 20,
		},
		Retention: RetentionConfig{
			MaxAge:        28 * 24 * time.Hour,
			CheckInterval: time.Hour,
		},
		Export: ExportConfig{
			Type:   "local",
			Prefix: "snapshots",
		},
	}
}

// Resolve resolves relative paths and sets defaults based on DataDir.
func (c *Config) Resolve() {
	if c.DataDir == "" {
		c.DataDir = "data/waypoint"
	}
	if c.Store.Backend == "" {
		c.Store.Backend = "sqlite"
	}
	if c.Store.Path == "" {
		c.Store.Path = filepath.Join(c.DataDir, "waypoint.db")
	}
	if c.Export.Path == "" {
		c.Export.Path = filepath.Join(c.DataDir, "export")
	}
	if c.Export.Prefix == "" {
		c.Export.Prefix = "snapshots"
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}

	if c.Store.Backend != "sqlite" && c.Store.Backend != "memory" {
		return fmt.Errorf("invalid store backend: %s (must be sqlite or memory)", c.Store.Backend)
	}

	if c.Export.Type != "local" && c.Export.Type != "s3" {
		return fmt.Errorf("invalid export type: %s (must be local or s3)", c.Export.Type)
	}

	if c.Export.Type == "s3" && c.Export.S3.Bucket == "" {
		return fmt.Errorf("s3.bucket is required when export type is s3")
	}

	if c.Tracker.Enabled && c.Tracker.Interval <= 0 {
		return fmt.Errorf("tracker.interval must be positive, got %s", c.Tracker.Interval)
	}

	if c.Retention.MaxAge > 0 && c.Retention.CheckInterval <= 0 {
		return fmt.Errorf("retention.check_interval must be positive when max_age is set")
	}

	return nil
}

// EnsureDirectories creates the directories the configuration points at.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.DataDir}
	if c.Export.Type == "local" {
		dirs = append(dirs, c.Export.Path)
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return nil
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

// LoadFromEnv overrides configuration from environment variables.
// Environment variables use the WAYPOINT_ prefix.
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("WAYPOINT_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("WAYPOINT_STORE_BACKEND"); v != "" {
		cfg.Store.Backend = v
	}
	if v := os.Getenv("WAYPOINT_STORE_PATH"); v != "" {
		cfg.Store.Path = v
	}
	if v := os.Getenv("WAYPOINT_HTTP_ADDR"); v != "" {
		cfg.HTTP.Addr = v
	}
	if v := os.Getenv("WAYPOINT_TRACKER_ENABLED"); v != "" {
		cfg.Tracker.Enabled = v == "true" || v == "1"
	}
	if v := os.Getenv("WAYPOINT_TRACKER_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Tracker.Interval = d
		}
	}
	if v := os.Getenv("WAYPOINT_TRACKER_MIN_DISTANCE_METERS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Tracker.MinDistanceMeters = f
		}
	}
	if v := os.Getenv("WAYPOINT_RETENTION_MAX_AGE"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Retention.MaxAge = d
		}
	}
	if v := os.Getenv("WAYPOINT_EXPORT_TYPE"); v != "" {
		cfg.Export.Type = v
	}
	if v := os.Getenv("WAYPOINT_EXPORT_S3_BUCKET"); v != "" {
		cfg.Export.S3.Bucket = v
	}
	if v := os.Getenv("WAYPOINT_EXPORT_S3_REGION"); v != "" {
		cfg.Export.S3.Region = v
	}
	if v := os.Getenv("WAYPOINT_EXPORT_S3_ENDPOINT"); v != "" {
		cfg.Export.S3.Endpoint = v
	}
}
