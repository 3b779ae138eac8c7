package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/icheer/qwenchat2api/pkg/config"
	"github.com/icheer/qwenchat2api/pkg/credential"
	"github.com/icheer/qwenchat2api/pkg/proxy/handlers"
	"github.com/icheer/qwenchat2api/pkg/proxy/middleware"
	"github.com/icheer/qwenchat2api/pkg/telemetry/metrics"
)

// Dependencies are the assembled subsystems the server routes to.
type Dependencies struct {
	// Credentials is the credential pool manager.
	Credentials *credential.Manager

	// Upstream is the upstream chat client.
	Upstream interface {
		handlers.ChatUpstream
		handlers.ModelCatalog
	}

	// Builder converts inbound requests to the upstream shape.
	Builder handlers.RequestBuilder

	// Metrics is the metrics collector, nil when metrics are disabled.
	Metrics *metrics.Collector
}

// Server is the HTTP server of the proxy.
type Server struct {
	config *config.Config
	deps   Dependencies
	logger *slog.Logger

	httpServer   *http.Server
	shutdownOnce sync.Once
	mu           sync.Mutex
	running      bool
}

// New creates a server from configuration and dependencies.
func New(cfg *config.Config, deps Dependencies) *Server {
	return &Server{
		config: cfg,
		deps:   deps,
		logger: slog.Default().With("component", "server"),
	}
}

// Start runs the server and blocks until ctx is cancelled, a shutdown
// signal arrives, or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("server is already running")
	}
	s.running = true

	s.httpServer = &http.Server{
		Addr:           s.config.Server.ListenAddress,
		Handler:        s.routes(),
		ReadTimeout:    s.config.Server.ReadTimeout,
		WriteTimeout:   s.config.Server.WriteTimeout,
		IdleTimeout:    s.config.Server.IdleTimeout,
		MaxHeaderBytes: s.config.Server.MaxHeaderBytes,
	}
	s.mu.Unlock()

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("starting server", "address", s.config.Server.ListenAddress)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case <-ctx.Done():
		s.logger.Info("context cancelled, initiating shutdown")
		return s.Shutdown(context.Background())
	case sig := <-sigChan:
		s.logger.Info("received shutdown signal", "signal", sig.String())
		return s.Shutdown(context.Background())
	case err := <-errChan:
		return err
	}
}

// Shutdown drains in-flight requests within the configured timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.mu.Lock()
		server := s.httpServer
		s.running = false
		s.mu.Unlock()

		if server == nil {
			return
		}

		s.logger.Info("initiating graceful shutdown",
			"timeout", s.config.Server.ShutdownTimeout.String())

		shutdownCtx, cancel := context.WithTimeout(ctx, s.config.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("error during shutdown", "error", err)
			shutdownErr = fmt.Errorf("server shutdown error: %w", err)
		}
		s.logger.Info("server stopped")
	})

	return shutdownErr
}

// Handler returns the assembled handler tree. Exposed so tests can
// serve the routes without binding a listener.
func (s *Server) Handler() http.Handler {
	return s.routes()
}

// routes builds the handler tree with the middleware chain applied.
func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	// A typed-nil *Collector must not reach the handler as a non-nil
	// interface.
	var chatMetrics handlers.ChatMetrics
	if s.deps.Metrics != nil {
		chatMetrics = s.deps.Metrics
	}
	chatHandler := handlers.NewChatHandler(s.deps.Credentials, s.deps.Upstream, s.deps.Builder, chatMetrics)
	modelsHandler := handlers.NewModelsHandler(s.deps.Credentials, s.deps.Upstream)
	adminHandler := handlers.NewAdminHandler(s.deps.Credentials)

	mux.Handle("POST /v1/chat/completions", chatHandler)
	mux.Handle("GET /v1/models", modelsHandler)

	adminAuth := middleware.AdminAuth(s.config.Admin.APIKey)
	mux.Handle("POST /admin/credentials/import", adminAuth(http.HandlerFunc(adminHandler.Import)))
	mux.Handle("GET /admin/credentials", adminAuth(http.HandlerFunc(adminHandler.Status)))
	mux.Handle("POST /admin/credentials/purge", adminAuth(http.HandlerFunc(adminHandler.Purge)))

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, `{"status":"ok"}`)
	})

	if s.deps.Metrics != nil {
		mux.Handle("GET /metrics", s.deps.Metrics.Handler())
	}

	var handler http.Handler = mux
	if s.deps.Metrics != nil {
		handler = middleware.Metrics(s.deps.Metrics)(handler)
	}
	handler = middleware.AccessLog(s.logger)(handler)
	handler = middleware.Recovery(handler)
	handler = middleware.RequestID(handler)
	return handler
}
