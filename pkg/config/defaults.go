package config

import "time"

// Default values applied to zero-valued fields.
const (
	DefaultListenAddress   = "127.0.0.1:8080"
	DefaultReadTimeout     = 30 * time.Second
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
	DefaultMaxHeaderBytes  = 1 << 20

	DefaultUpstreamBaseURL     = "https://chat.qwen.ai"
	DefaultUpstreamTimeout     = 60 * time.Second
	DefaultMaxIdleConns        = 100
	DefaultMaxIdleConnsPerHost = 10

	DefaultSTSURL        = "https://chat.qwen.ai/api/v1/files/getstsToken"
	DefaultUploadTimeout = 30 * time.Second

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"

	DefaultPoolRefreshSchedule = "@every 30s"
)

// ApplyDefaults applies default values to zero-valued fields. It is
// idempotent and safe to call multiple times.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.ListenAddress == "" {
		cfg.Server.ListenAddress = DefaultListenAddress
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = DefaultReadTimeout
	}
	// WriteTimeout stays zero: SSE responses run longer than any
	// reasonable fixed limit.
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.Server.MaxHeaderBytes == 0 {
		cfg.Server.MaxHeaderBytes = DefaultMaxHeaderBytes
	}

	if cfg.Upstream.BaseURL == "" {
		cfg.Upstream.BaseURL = DefaultUpstreamBaseURL
	}
	if cfg.Upstream.Timeout == 0 {
		cfg.Upstream.Timeout = DefaultUpstreamTimeout
	}
	if cfg.Upstream.MaxIdleConns == 0 {
		cfg.Upstream.MaxIdleConns = DefaultMaxIdleConns
	}
	if cfg.Upstream.MaxIdleConnsPerHost == 0 {
		cfg.Upstream.MaxIdleConnsPerHost = DefaultMaxIdleConnsPerHost
	}

	if cfg.Upload.STSURL == "" {
		cfg.Upload.STSURL = DefaultSTSURL
	}
	if cfg.Upload.Timeout == 0 {
		cfg.Upload.Timeout = DefaultUploadTimeout
	}

	if cfg.Credentials.SeedFile != "" {
		cfg.Credentials.WatchSeed = true
	}

	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = DefaultLogLevel
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = DefaultLogFormat
	}
	if cfg.Telemetry.Metrics.PoolRefreshSchedule == "" {
		cfg.Telemetry.Metrics.PoolRefreshSchedule = DefaultPoolRefreshSchedule
	}
}
