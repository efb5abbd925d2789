package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	finderMiddleware "github.com/0xmhha/creation-finder/api/middleware"
	"github.com/0xmhha/creation-finder/internal/constants"
)

// Config holds metrics server configuration
type Config struct {
	Listen          string
	ShutdownTimeout time.Duration
}

// Server exposes search metrics and a health check over HTTP
type Server struct {
	config   *Config
	logger   *zap.Logger
	gatherer prometheus.Gatherer
	router   *chi.Mux
	server   *http.Server
	started  time.Time
}

// NewServer creates a new metrics server
func NewServer(config *Config, logger *zap.Logger, gatherer prometheus.Gatherer) (*Server, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if config.Listen == "" {
		return nil, fmt.Errorf("listen address cannot be empty")
	}
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = constants.DefaultShutdownTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	s := &Server{
		config:   config,
		logger:   logger,
		gatherer: gatherer,
		router:   chi.NewRouter(),
		started:  time.Now(),
	}

	s.router.Use(middleware.RequestID)
	s.router.Use(finderMiddleware.Logger(logger))
	s.router.Use(middleware.Recoverer)

	s.router.Get("/health", s.handleHealth)
	s.router.Handle(constants.DefaultMetricsPath, promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	s.server = &http.Server{
		Addr:              config.Listen,
		Handler:           s.router,
		ReadHeaderTimeout: constants.DefaultReadHeaderTimeout,
	}

	return s, nil
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status string `json:"status"`
	Uptime string `json:"uptime"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(HealthResponse{
		Status: "ok",
		Uptime: time.Since(s.started).Round(time.Second).String(),
	})
}

// Start binds the listen address and serves in the background.
// Bind errors are returned synchronously.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.config.Listen)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Listen, err)
	}

	s.logger.Info("starting metrics server", zap.String("address", ln.Addr().String()))

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("metrics server failed", zap.Error(err))
		}
	}()
	return nil
}

// Stop gracefully stops the server
func (s *Server) Stop(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()

	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.logger.Info("metrics server stopped")
	return nil
}

// Router returns the underlying chi router (for testing)
func (s *Server) Router() *chi.Mux {
	return s.router
}
