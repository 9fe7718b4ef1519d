package api

import (
	"context"
	stdErrors "errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/hashicorp/go-hclog"

	"mcpbox/internal/contracts"
	"mcpbox/internal/errors"
)

const (
	// DefaultShutdownTimeout is how long the server waits for in-flight
	// requests to drain on shutdown.
	DefaultShutdownTimeout = 5 * time.Second

	apiTitle   = "mcpbox status"
	apiVersion = "0.1.0"
)

// CORSConfig defines Cross-Origin Resource Sharing settings for the API server.
type CORSConfig struct {
	// Enabled determines whether CORS headers are added to responses.
	Enabled bool

	// AllowCredentials indicates whether the request can include credentials.
	// Must be false when AllowOrigins contains "*"
	AllowCredentials bool

	// AllowedHeaders specifies which headers the client can include in requests.
	AllowedHeaders []string

	// AllowMethods specifies which HTTP methods are permitted.
	// Using strings to match the go-chi/cors library API.
	AllowMethods []string

	// AllowOrigins specifies which origins can access the API.
	// Use ["*"] to allow all origins (not recommended for production).
	AllowOrigins []string

	// MaxAge indicates how long preflight responses can be cached.
	MaxAge time.Duration
}

// Server manages the read-only HTTP status API.
// NewServer should be used to create instances of Server.
type Server struct {
	logger          hclog.Logger
	healthTracker   contracts.MCPHealthMonitor
	metrics         MetricsSource
	addr            string
	cors            CORSConfig
	shutdownTimeout time.Duration
}

// Option configures optional Server behavior.
type Option func(*Server)

// WithCORS enables CORS handling with the supplied configuration.
func WithCORS(cfg CORSConfig) Option {
	return func(s *Server) {
		s.cors = cfg
	}
}

// WithShutdownTimeout overrides the graceful shutdown timeout.
func WithShutdownTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.shutdownTimeout = d
		}
	}
}

// NewServer creates a new status API server bound to addr.
func NewServer(
	logger hclog.Logger,
	monitor contracts.MCPHealthMonitor,
	metrics MetricsSource,
	addr string,
	opt ...Option,
) (*Server, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if monitor == nil {
		return nil, fmt.Errorf("health monitor is required")
	}
	if metrics == nil {
		return nil, fmt.Errorf("metrics source is required")
	}
	if strings.TrimSpace(addr) == "" {
		return nil, fmt.Errorf("listen address is required")
	}

	s := &Server{
		logger:          logger.Named("api"),
		healthTracker:   monitor,
		metrics:         metrics,
		addr:            addr,
		shutdownTimeout: DefaultShutdownTimeout,
	}
	for _, o := range opt {
		o(s)
	}

	return s, nil
}

// Start starts the API server and blocks until the context is canceled or an error occurs.
func (s *Server) Start(ctx context.Context) error {
	mux := chi.NewMux()
	mux.Use(middleware.StripSlashes)

	if s.cors.Enabled {
		s.applyCORS(mux)
	}

	config := huma.DefaultConfig(apiTitle, apiVersion)
	router := humachi.New(mux, config)

	// Configure the error handling wrapping.
	huma.NewErrorWithContext = errorHandler(s.logger)

	// Safe way to ensure /api/v1.
	apiPathPrefix, err := url.JoinPath("/api", "v1")
	if err != nil {
		return err
	}

	// Group all routes under the /api/v1 prefix.
	v1 := huma.NewGroup(router, apiPathPrefix)
	RegisterHealthRoutes(v1, s.healthTracker, "/health")
	RegisterMetricsRoutes(v1, s.metrics, s.healthTracker, "/metrics")

	srv := &http.Server{
		Addr:    s.addr,
		Handler: mux,
	}
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("Starting status API", "address", s.addr, "prefix", apiPathPrefix)
		if s.cors.Enabled {
			s.logger.Info("CORS enabled", "origins", s.cors.AllowOrigins)
		}
		if err := srv.ListenAndServe(); err != nil && !stdErrors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		s.logger.Info("Shutting down status API...")
		_ = srv.Shutdown(shutdownCtx)
		s.logger.Info("Shutdown complete")
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// applyCORS applies CORS middleware to the router based on the configured options.
func (s *Server) applyCORS(mux *chi.Mux) {
	corsOptions := cors.Options{
		AllowedOrigins:   s.cors.AllowOrigins,
		AllowedMethods:   s.cors.AllowMethods,
		AllowedHeaders:   s.cors.AllowedHeaders,
		AllowCredentials: s.cors.AllowCredentials,
		MaxAge:           int(s.cors.MaxAge.Seconds()),
	}

	// Handle wildcard origins properly.
	for i, origin := range corsOptions.AllowedOrigins {
		if origin == "*" {
			corsOptions.AllowedOrigins = []string{"*"}
			corsOptions.AllowCredentials = false
			break
		}
		corsOptions.AllowedOrigins[i] = strings.TrimSpace(origin)
	}

	mux.Use(cors.Handler(corsOptions))
}

// mapError maps application domain errors to appropriate HTTP status codes.
//
// Every sentinel from internal/errors that can reach a handler should have an
// explicit case here, otherwise it falls through to 500.
func mapError(logger hclog.Logger, err error) huma.StatusError {
	switch {
	case stdErrors.Is(err, errors.ErrServerNotFound):
		return huma.Error404NotFound(err.Error())
	case stdErrors.Is(err, errors.ErrHealthNotTracked):
		return huma.Error404NotFound(err.Error())
	case stdErrors.Is(err, errors.ErrInvalidToolArgs):
		return huma.Error400BadRequest(err.Error())
	case stdErrors.Is(err, errors.ErrToolUnavailable):
		return huma.Error404NotFound(err.Error())
	case stdErrors.Is(err, errors.ErrToolCallFailed):
		logger.Error("Tool call failed", "error", err)
		return huma.Error502BadGateway("MCP server error calling tool", err)
	default:
		logger.Error("Unexpected error serving status request", "error", err)
		return huma.Error500InternalServerError("Internal server error", err)
	}
}

// errorHandler wraps error handling for the application when converting to API friendly errors.
// It allows the logger to be supplied to functions that resolve huma.StatusError,
// and it supports different behaviors based on the variadic errors parameter.
func errorHandler(logger hclog.Logger) func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
	return func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		switch len(errs) {
		case 0:
			// No errors provided; return a generic error.
			return huma.NewError(status, msg)
		case 1:
			// Single error; map it directly.
			return mapError(logger, errs[0])
		default:
			// Multiple errors; join them and map.
			combinedErr := stdErrors.Join(errs...)
			return mapError(logger, combinedErr)
		}
	}
}
