package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

func TestApplyDefaults(t *testing.T) {
	var cfg Config
	ApplyDefaults(&cfg)

	if cfg.Server.ListenAddress != DefaultListenAddress {
		t.Errorf("ListenAddress = %q, want %q", cfg.Server.ListenAddress, DefaultListenAddress)
	}
	if cfg.Server.ReadTimeout != DefaultReadTimeout {
		t.Errorf("ReadTimeout = %v, want %v", cfg.Server.ReadTimeout, DefaultReadTimeout)
	}
	if cfg.Server.WriteTimeout != 0 {
		t.Errorf("WriteTimeout = %v, want 0 for streaming", cfg.Server.WriteTimeout)
	}
	if cfg.Upstream.BaseURL != DefaultUpstreamBaseURL {
		t.Errorf("BaseURL = %q, want %q", cfg.Upstream.BaseURL, DefaultUpstreamBaseURL)
	}
	if cfg.Upload.STSURL != DefaultSTSURL {
		t.Errorf("STSURL = %q, want %q", cfg.Upload.STSURL, DefaultSTSURL)
	}
	if cfg.Telemetry.Logging.Level != "info" {
		t.Errorf("Level = %q, want info", cfg.Telemetry.Logging.Level)
	}
	if cfg.Telemetry.Metrics.PoolRefreshSchedule != DefaultPoolRefreshSchedule {
		t.Errorf("PoolRefreshSchedule = %q, want %q",
			cfg.Telemetry.Metrics.PoolRefreshSchedule, DefaultPoolRefreshSchedule)
	}
}

func TestApplyDefaultsIdempotent(t *testing.T) {
	var cfg Config
	ApplyDefaults(&cfg)
	first := cfg
	ApplyDefaults(&cfg)
	if cfg != first {
		t.Error("ApplyDefaults is not idempotent")
	}
}

func TestApplyDefaultsEnablesWatchWithSeedFile(t *testing.T) {
	cfg := Config{Credentials: CredentialsConfig{SeedFile: "/tmp/seed.txt"}}
	ApplyDefaults(&cfg)
	if !cfg.Credentials.WatchSeed {
		t.Error("WatchSeed should default to true when a seed file is configured")
	}
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
server:
  listen_address: "0.0.0.0:9090"
  read_timeout: 10s
upstream:
  base_url: "https://chat.example.com"
credentials:
  storage_path: "/var/lib/proxy/state.db"
telemetry:
  logging:
    level: debug
    format: text
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Server.ListenAddress != "0.0.0.0:9090" {
		t.Errorf("ListenAddress = %q", cfg.Server.ListenAddress)
	}
	if cfg.Server.ReadTimeout != 10*time.Second {
		t.Errorf("ReadTimeout = %v", cfg.Server.ReadTimeout)
	}
	if cfg.Upstream.BaseURL != "https://chat.example.com" {
		t.Errorf("BaseURL = %q", cfg.Upstream.BaseURL)
	}
	if cfg.Credentials.StoragePath != "/var/lib/proxy/state.db" {
		t.Errorf("StoragePath = %q", cfg.Credentials.StoragePath)
	}
	if cfg.Telemetry.Logging.Level != "debug" || cfg.Telemetry.Logging.Format != "text" {
		t.Errorf("logging = %+v", cfg.Telemetry.Logging)
	}
	// Unset sections still get defaults.
	if cfg.Upload.STSURL != DefaultSTSURL {
		t.Errorf("STSURL = %q, want default", cfg.Upload.STSURL)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected an error for a missing file")
	}
}

func TestLoadConfigInvalidYAML(t *testing.T) {
	path := writeConfig(t, "server: [not a mapping")
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected an error for invalid YAML")
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{
			name:   "empty listen address",
			mutate: func(c *Config) { c.Server.ListenAddress = "" },
			field:  "server.listen_address",
		},
		{
			name:   "listen address without port",
			mutate: func(c *Config) { c.Server.ListenAddress = "localhost" },
			field:  "server.listen_address",
		},
		{
			name:   "upstream URL with trailing slash",
			mutate: func(c *Config) { c.Upstream.BaseURL = "https://chat.example.com/" },
			field:  "upstream.base_url",
		},
		{
			name:   "upstream URL with bad scheme",
			mutate: func(c *Config) { c.Upstream.BaseURL = "ftp://chat.example.com" },
			field:  "upstream.base_url",
		},
		{
			name:   "bad log level",
			mutate: func(c *Config) { c.Telemetry.Logging.Level = "verbose" },
			field:  "telemetry.logging.level",
		},
		{
			name:   "bad log format",
			mutate: func(c *Config) { c.Telemetry.Logging.Format = "xml" },
			field:  "telemetry.logging.format",
		},
		{
			name:   "negative upstream timeout",
			mutate: func(c *Config) { c.Upstream.Timeout = -time.Second },
			field:  "upstream.timeout",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cfg Config
			ApplyDefaults(&cfg)
			tt.mutate(&cfg)

			err := Validate(&cfg)
			if err == nil {
				t.Fatal("expected a validation error")
			}
			if !strings.Contains(err.Error(), tt.field) {
				t.Errorf("error %q does not name field %q", err.Error(), tt.field)
			}
		})
	}
}

func TestEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
server:
  listen_address: "127.0.0.1:8080"
`)

	t.Setenv("QWEN2API_SERVER_LISTEN_ADDRESS", "0.0.0.0:7070")
	t.Setenv("QWEN2API_UPSTREAM_TIMEOUT", "90s")
	t.Setenv("QWEN2API_METRICS_DISABLED", "true")

	cfg, err := LoadConfigWithEnvOverrides(path)
	if err != nil {
		t.Fatalf("LoadConfigWithEnvOverrides failed: %v", err)
	}

	if cfg.Server.ListenAddress != "0.0.0.0:7070" {
		t.Errorf("ListenAddress = %q, env override lost", cfg.Server.ListenAddress)
	}
	if cfg.Upstream.Timeout != 90*time.Second {
		t.Errorf("Timeout = %v, env override lost", cfg.Upstream.Timeout)
	}
	if !cfg.Telemetry.Metrics.Disabled {
		t.Error("Disabled = false, env override lost")
	}
}

func TestEnvOverrideInvalidAfterOverride(t *testing.T) {
	path := writeConfig(t, "")

	t.Setenv("QWEN2API_UPSTREAM_BASE_URL", "not a url")

	if _, err := LoadConfigWithEnvOverrides(path); err == nil {
		t.Fatal("expected validation to fail after a bad override")
	}
}
