package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig_IsValid(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Resolve()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config is invalid: %v", err)
	}
	if cfg.Store.Path == "" {
		t.Error("Resolve did not default the store path")
	}
	if filepath.Dir(cfg.Store.Path) != cfg.DataDir {
		t.Errorf("store path %q is not under data dir %q", cfg.Store.Path, cfg.DataDir)
	}
}

func TestValidate_Rejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty data dir", func(c *Config) { c.DataDir = "" }},
		{"unknown backend", func(c *Config) { c.Store.Backend = "rocksdb" }},
		{"unknown export type", func(c *Config) { c.Export.Type = "gcs" }},
		{"s3 without bucket", func(c *Config) { c.Export.Type = "s3"; c.Export.S3.Bucket = "" }},
		{"tracker without interval", func(c *Config) { c.Tracker.Enabled = true; c.Tracker.Interval = 0 }},
		{"retention without check interval", func(c *Config) {
			c.Retention.MaxAge = time.Hour
			c.Retention.CheckInterval = 0
		}},
	}

	for _, tc := range cases {
		cfg := DefaultConfig()
		cfg.Resolve()
		tc.mutate(cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: expected validation error", tc.name)
		}
	}
}

func TestLoadFromFile_YAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "waypoint.yaml")
	content := `
data_dir: /var/lib/waypoint
store:
  backend: memory
tracker:
  enabled: false
export:
  type: s3
  s3:
    bucket: waypoint-backups
    region: eu-west-1
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.DataDir != "/var/lib/waypoint" {
		t.Errorf("data_dir = %q", cfg.DataDir)
	}
	if cfg.Store.Backend != "memory" {
		t.Errorf("store backend = %q, want memory", cfg.Store.Backend)
	}
	if cfg.Tracker.Enabled {
		t.Error("tracker should be disabled")
	}
	if cfg.Export.S3.Bucket != "waypoint-backups" || cfg.Export.S3.Region != "eu-west-1" {
		t.Errorf("s3 config = %+v", cfg.Export.S3)
	}
	// Unspecified fields keep their defaults.
	if cfg.HTTP.Addr != "127.0.0.1:8077" {
		t.Errorf("http addr = %q, want default", cfg.HTTP.Addr)
	}
}

func TestLoadFromFile_UnsupportedExtension(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "waypoint.toml")
	if err := os.WriteFile(path, []byte("x = 1"), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	if _, err := LoadFromFile(path); err == nil {
		t.Error("expected error for unsupported config format")
	}
}

func TestLoadFromEnv_Overrides(t *testing.T) {
	t.Setenv("WAYPOINT_DATA_DIR", "/tmp/wp")
	t.Setenv("WAYPOINT_STORE_BACKEND", "memory")
	t.Setenv("WAYPOINT_HTTP_ADDR", "127.0.0.1:9000")
	t.Setenv("WAYPOINT_TRACKER_ENABLED", "0")
	t.Setenv("WAYPOINT_TRACKER_INTERVAL", "45s")
	t.Setenv("WAYPOINT_RETENTION_MAX_AGE", "72h")

	cfg := DefaultConfig()
	LoadFromEnv(cfg)

	if cfg.DataDir != "/tmp/wp" {
		t.Errorf("data_dir = %q", cfg.DataDir)
	}
	if cfg.Store.Backend != "memory" {
		t.Errorf("backend = %q", cfg.Store.Backend)
	}
	if cfg.HTTP.Addr != "127.0.0.1:9000" {
		t.Errorf("addr = %q", cfg.HTTP.Addr)
	}
	if cfg.Tracker.Enabled {
		t.Error("tracker enabled override failed")
	}
	if cfg.Tracker.Interval != 45*time.Second {
		t.Errorf("interval = %s", cfg.Tracker.Interval)
	}
	if cfg.Retention.MaxAge != 72*time.Hour {
		t.Errorf("max_age = %s", cfg.Retention.MaxAge)
	}
}
