package config

import "time"

// Config is the root configuration structure for the proxy. It covers
// the HTTP server, the upstream connection, the asset upload pipeline,
// credential pool persistence, the admin surface, and telemetry.
type Config struct {
	// Server contains HTTP server configuration including listen
	// address and timeouts.
	Server ServerConfig `yaml:"server"`

	// Upstream contains the upstream chat service connection settings.
	Upstream UpstreamConfig `yaml:"upstream"`

	// Upload contains the asset upload pipeline settings.
	Upload UploadConfig `yaml:"upload"`

	// Credentials contains credential pool persistence and seeding
	// settings.
	Credentials CredentialsConfig `yaml:"credentials"`

	// Admin contains the admin endpoint settings.
	Admin AdminConfig `yaml:"admin"`

	// Telemetry contains logging and metrics configuration.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig contains configuration for the HTTP server.
type ServerConfig struct {
	// ListenAddress is the address and port to listen on.
	// Format: "host:port". Default: "127.0.0.1:8080"
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout is the maximum duration for reading the entire
	// request, including the body. Default: 30s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out response
	// writes. Zero disables it; streaming responses need that.
	// Default: 0
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the keep-alive idle limit. Default: 120s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout bounds graceful shutdown. Default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// MaxHeaderBytes limits request header size. Default: 1MB
	MaxHeaderBytes int `yaml:"max_header_bytes"`
}

// UpstreamConfig contains the upstream chat service settings.
type UpstreamConfig struct {
	// BaseURL is the upstream service root, no trailing slash.
	// Default: "https://chat.qwen.ai"
	BaseURL string `yaml:"base_url"`

	// Timeout is the request timeout for non-streaming upstream calls.
	// Streaming calls are bounded by the client connection instead.
	// Default: 60s
	Timeout time.Duration `yaml:"timeout"`

	// UserAgent overrides the User-Agent sent upstream. Empty uses a
	// browser string the upstream accepts.
	UserAgent string `yaml:"user_agent"`

	// MaxIdleConns bounds the connection pool. Default: 100
	MaxIdleConns int `yaml:"max_idle_conns"`

	// MaxIdleConnsPerHost bounds per-host idle connections. Default: 10
	MaxIdleConnsPerHost int `yaml:"max_idle_conns_per_host"`
}

// UploadConfig contains the asset upload pipeline settings.
type UploadConfig struct {
	// STSURL is the endpoint that exchanges a bearer token for
	// temporary object storage credentials.
	// Default: "https://chat.qwen.ai/api/v1/files/getstsToken"
	STSURL string `yaml:"sts_url"`

	// Timeout bounds one credential exchange attempt. Default: 30s
	Timeout time.Duration `yaml:"timeout"`
}

// CredentialsConfig contains credential pool settings.
type CredentialsConfig struct {
	// StoragePath is the SQLite database file holding the pools.
	// Empty keeps the pools in memory only.
	StoragePath string `yaml:"storage_path"`

	// SeedFile is an optional file of cookie-header lines imported at
	// startup and re-imported when the file changes.
	SeedFile string `yaml:"seed_file"`

	// WatchSeed enables re-importing SeedFile on change.
	// Default: true when SeedFile is set.
	WatchSeed bool `yaml:"watch_seed"`
}

// AdminConfig contains the admin endpoint settings.
type AdminConfig struct {
	// APIKey protects the /admin endpoints when set. Empty leaves them
	// open; bind to localhost in that case.
	APIKey string `yaml:"api_key"`
}

// TelemetryConfig contains observability configuration.
type TelemetryConfig struct {
	// Logging configures structured logging output.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics configures the Prometheus endpoint.
	Metrics MetricsConfig `yaml:"metrics"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is the minimum level: "debug", "info", "warn", "error".
	// Default: "info"
	Level string `yaml:"level"`

	// Format is the output format: "json" or "text". Default: "json"
	Format string `yaml:"format"`
}

// MetricsConfig contains metrics configuration.
type MetricsConfig struct {
	// Disabled turns the /metrics endpoint off. Default: false
	Disabled bool `yaml:"disabled"`

	// PoolRefreshSchedule is the cron schedule for refreshing the
	// credential pool gauges. Default: "@every 30s"
	PoolRefreshSchedule string `yaml:"pool_refresh_schedule"`
}
