package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// LoadConfig loads configuration from a YAML file, applies defaults,
// and validates the result.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and
// applies environment variable overrides. Variables follow the naming
// convention QWEN2API_SECTION_FIELD (e.g. QWEN2API_SERVER_LISTEN_ADDRESS)
// and always take precedence over file values.
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}
	return cfg, nil
}

// DefaultConfig returns the configuration used when no file is given:
// all defaults with environment overrides applied.
func DefaultConfig() (*Config, error) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	overrideString("QWEN2API_SERVER_LISTEN_ADDRESS", &cfg.Server.ListenAddress)
	overrideDuration("QWEN2API_SERVER_READ_TIMEOUT", &cfg.Server.ReadTimeout)
	overrideDuration("QWEN2API_SERVER_WRITE_TIMEOUT", &cfg.Server.WriteTimeout)
	overrideDuration("QWEN2API_SERVER_IDLE_TIMEOUT", &cfg.Server.IdleTimeout)
	overrideDuration("QWEN2API_SERVER_SHUTDOWN_TIMEOUT", &cfg.Server.ShutdownTimeout)

	overrideString("QWEN2API_UPSTREAM_BASE_URL", &cfg.Upstream.BaseURL)
	overrideDuration("QWEN2API_UPSTREAM_TIMEOUT", &cfg.Upstream.Timeout)
	overrideString("QWEN2API_UPSTREAM_USER_AGENT", &cfg.Upstream.UserAgent)

	overrideString("QWEN2API_UPLOAD_STS_URL", &cfg.Upload.STSURL)
	overrideDuration("QWEN2API_UPLOAD_TIMEOUT", &cfg.Upload.Timeout)

	overrideString("QWEN2API_CREDENTIALS_STORAGE_PATH", &cfg.Credentials.StoragePath)
	overrideString("QWEN2API_CREDENTIALS_SEED_FILE", &cfg.Credentials.SeedFile)
	overrideBool("QWEN2API_CREDENTIALS_WATCH_SEED", &cfg.Credentials.WatchSeed)

	overrideString("QWEN2API_ADMIN_API_KEY", &cfg.Admin.APIKey)

	overrideString("QWEN2API_LOG_LEVEL", &cfg.Telemetry.Logging.Level)
	overrideString("QWEN2API_LOG_FORMAT", &cfg.Telemetry.Logging.Format)
	overrideBool("QWEN2API_METRICS_DISABLED", &cfg.Telemetry.Metrics.Disabled)
	overrideString("QWEN2API_METRICS_POOL_REFRESH_SCHEDULE", &cfg.Telemetry.Metrics.PoolRefreshSchedule)
}

func overrideString(name string, dst *string) {
	if val := os.Getenv(name); val != "" {
		*dst = val
	}
}

func overrideDuration(name string, dst *time.Duration) {
	if val := os.Getenv(name); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			*dst = d
		}
	}
}

func overrideBool(name string, dst *bool) {
	if val := os.Getenv(name); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			*dst = b
		}
	}
}
