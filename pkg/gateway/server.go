package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"roxy-hq/roxy/pkg/config"
	"roxy-hq/roxy/pkg/gateway/middleware"
	"roxy-hq/roxy/pkg/selector"
	"roxy-hq/roxy/pkg/telemetry/health"
	"roxy-hq/roxy/pkg/telemetry/metrics"
)

// Server owns the gateway's HTTP listener lifecycle.
type Server struct {
	cfg        *config.Config
	selector   *selector.Selector
	metrics    *metrics.Collector
	health     *health.Checker
	httpServer *http.Server

	mu           sync.Mutex
	isRunning    bool
	shutdownOnce sync.Once
	shutdownChan chan struct{}
}

// NewServer creates a gateway server. The metrics collector and health
// checker may be nil; the matching endpoints are then not served.
func NewServer(cfg *config.Config, sel *selector.Selector, collector *metrics.Collector, checker *health.Checker) *Server {
	return &Server{
		cfg:          cfg,
		selector:     sel,
		metrics:      collector,
		health:       checker,
		shutdownChan: make(chan struct{}),
	}
}

// Start runs the server until the context is cancelled, a shutdown signal
// arrives, or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("server is already running")
	}
	s.isRunning = true
	s.mu.Unlock()

	handler := s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:           s.cfg.Gateway.ListenAddress,
		Handler:        handler,
		ReadTimeout:    s.cfg.Gateway.ReadTimeout,
		WriteTimeout:   s.cfg.Gateway.WriteTimeout,
		IdleTimeout:    s.cfg.Gateway.IdleTimeout,
		MaxHeaderBytes: s.cfg.Gateway.MaxHeaderBytes,
	}

	errChan := make(chan error, 1)
	go func() {
		slog.Info("starting gateway",
			"address", s.cfg.Gateway.ListenAddress,
			"metrics_enabled", s.cfg.Telemetry.Metrics.Enabled,
		)

		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-ctx.Done():
		slog.Info("context cancelled, initiating shutdown")
		return s.Shutdown(context.Background())
	case sig := <-sigChan:
		slog.Info("received shutdown signal", "signal", sig.String())
		return s.Shutdown(context.Background())
	case err := <-errChan:
		return err
	case <-s.shutdownChan:
		slog.Info("shutdown requested")
		return s.Shutdown(context.Background())
	}
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.mu.Lock()
		if !s.isRunning {
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()

		slog.Info("initiating graceful shutdown", "timeout", s.cfg.Gateway.ShutdownTimeout.String())

		shutdownCtx, cancel := context.WithTimeout(ctx, s.cfg.Gateway.ShutdownTimeout)
		defer cancel()

		if s.httpServer != nil {
			if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
				slog.Error("error during server shutdown", "error", err)
				shutdownErr = fmt.Errorf("server shutdown error: %w", err)
			}
		}

		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()

		slog.Info("gateway stopped")
	})

	return shutdownErr
}

// RequestShutdown asks a running Start to shut down without a signal.
func (s *Server) RequestShutdown() {
	select {
	case <-s.shutdownChan:
	default:
		close(s.shutdownChan)
	}
}

// setupRoutes builds the handler with the middleware chain. A forward proxy
// cannot route on a mux (absolute-form URIs and CONNECT bypass path
// matching), so the metrics endpoint is peeled off by hand before proxy
// dispatch.
func (s *Server) setupRoutes() http.Handler {
	proxyHandler := NewHandler(s.selector, &s.cfg.Gateway, s.metrics)

	local := make(map[string]http.Handler)
	if s.cfg.Telemetry.Metrics.Enabled && s.metrics != nil {
		local[s.cfg.Telemetry.Metrics.Path] = s.metrics.Handler()
	}
	if s.health != nil {
		local["/health"] = s.health.LivenessHandler()
		local["/ready"] = s.health.ReadinessHandler()
	}

	var handler http.Handler = proxyHandler
	if len(local) > 0 {
		inner := handler
		handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodConnect && !r.URL.IsAbs() {
				if h, ok := local[r.URL.Path]; ok {
					h.ServeHTTP(w, r)
					return
				}
			}
			inner.ServeHTTP(w, r)
		})
	}

	handler = middleware.LoggingMiddleware(handler)
	handler = middleware.RequestIDMiddleware(handler)
	handler = middleware.RecoveryMiddleware(handler)

	return handler
}
