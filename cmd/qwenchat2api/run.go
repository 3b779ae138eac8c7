package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/icheer/qwenchat2api/pkg/cli"
	"github.com/icheer/qwenchat2api/pkg/config"
	"github.com/icheer/qwenchat2api/pkg/credential"
	"github.com/icheer/qwenchat2api/pkg/server"
	"github.com/icheer/qwenchat2api/pkg/telemetry/logging"
	"github.com/icheer/qwenchat2api/pkg/telemetry/metrics"
	"github.com/icheer/qwenchat2api/pkg/transform"
	"github.com/icheer/qwenchat2api/pkg/upload"
	"github.com/icheer/qwenchat2api/pkg/upstream"
)

var runFlags struct {
	listenAddress string
	logLevel      string
	dryRun        bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the proxy server",
	Long: `Start the proxy server with the specified configuration.

Examples:
  # Start with defaults (listens on 127.0.0.1:8080)
  qwenchat2api run

  # Start with a config file
  qwenchat2api run --config /etc/qwenchat2api/config.yaml

  # Override the listen address
  qwenchat2api run --listen 0.0.0.0:8080

  # Validate config without starting
  qwenchat2api run --dry-run`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting the server")
}

func loadConfig() (*config.Config, error) {
	if cfgFile != "" {
		return config.LoadConfigWithEnvOverrides(cfgFile)
	}
	return config.DefaultConfig()
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if runFlags.listenAddress != "" {
		cfg.Server.ListenAddress = runFlags.listenAddress
	}
	if runFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = runFlags.logLevel
	}

	logger, err := logging.Setup(cfg.Telemetry.Logging)
	if err != nil {
		return err
	}

	if runFlags.dryRun {
		fmt.Println("configuration valid")
		return nil
	}

	ctx, cancel := context.WithCancel(cli.SetupSignalHandler())
	defer cancel()

	// Credential pools, durable when a storage path is configured.
	var store credential.Store
	if cfg.Credentials.StoragePath != "" {
		sqliteStore, err := credential.NewSQLiteStore(cfg.Credentials.StoragePath)
		if err != nil {
			return fmt.Errorf("failed to open credential storage: %w", err)
		}
		store = sqliteStore
		logger.Info("credential storage opened", "path", cfg.Credentials.StoragePath)
	} else {
		store = credential.NewMemoryStore()
		logger.Warn("no storage path configured, credential pools are in-memory only")
	}
	defer store.Close()

	manager := credential.NewManager(store)

	if cfg.Credentials.SeedFile != "" {
		if err := seedCredentials(ctx, manager, cfg, logger); err != nil {
			return err
		}
	}

	upstreamClient := upstream.NewClient(upstream.ClientConfig{
		BaseURL:             cfg.Upstream.BaseURL,
		Timeout:             cfg.Upstream.Timeout,
		UserAgent:           cfg.Upstream.UserAgent,
		MaxIdleConns:        cfg.Upstream.MaxIdleConns,
		MaxIdleConnsPerHost: cfg.Upstream.MaxIdleConnsPerHost,
	})

	var collector *metrics.Collector
	var uploadRecorder upload.Recorder
	if !cfg.Telemetry.Metrics.Disabled {
		collector = metrics.NewCollector(nil)
		uploadRecorder = collector
		refresher := metrics.NewPoolRefresher(collector, manager, cfg.Telemetry.Metrics.PoolRefreshSchedule)
		if err := refresher.Start(ctx); err != nil {
			return err
		}
		defer refresher.Stop()
	}

	uploader := upload.NewUploader(&http.Client{Timeout: cfg.Upload.Timeout}, cfg.Upload.STSURL, uploadRecorder)
	builder := transform.NewTransformer(uploader)

	srv := server.New(cfg, server.Dependencies{
		Credentials: manager,
		Upstream:    upstreamClient,
		Builder:     builder,
		Metrics:     collector,
	})

	return srv.Start(ctx)
}

// seedCredentials imports the seed file once and, when configured,
// keeps watching it for changes.
func seedCredentials(ctx context.Context, manager *credential.Manager, cfg *config.Config, logger *slog.Logger) error {
	if !cfg.Credentials.WatchSeed {
		result, err := manager.ImportSeedFile(ctx, cfg.Credentials.SeedFile)
		if err != nil {
			return fmt.Errorf("failed to import seed file: %w", err)
		}
		logger.Info("seed file imported",
			"tokens_added", result.TokensAdded,
			"cookies_added", result.CookiesAdded,
		)
		return nil
	}

	// The watcher performs the initial import itself.
	watcher, err := credential.NewSeedWatcher(manager, cfg.Credentials.SeedFile, time.Second)
	if err != nil {
		return fmt.Errorf("failed to watch seed file: %w", err)
	}
	go func() {
		if err := watcher.Watch(ctx); err != nil {
			logger.Warn("seed watcher stopped", "error", err)
		}
	}()
	return nil
}
