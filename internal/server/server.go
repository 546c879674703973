package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/zycxfyh/nexus-verse/internal/ailink"
	"github.com/zycxfyh/nexus-verse/internal/config"
	apperrors "github.com/zycxfyh/nexus-verse/internal/errors"
	"github.com/zycxfyh/nexus-verse/internal/observability"
	"github.com/zycxfyh/nexus-verse/internal/server/handlers"
	servermw "github.com/zycxfyh/nexus-verse/internal/server/middleware"
)

// Options wires the server to the scheduler and its collaborators.
type Options struct {
	Config config.ServerConfig
	// Resolver answers the provider endpoints.
	Resolver ailink.Resolver
	// Health aggregates dependency checks; nil gets an empty manager.
	Health *handlers.HealthManager
	// Providers lists the vendor tags reported by /version.
	Providers []string
	// CompletionTimeout bounds each completion served over HTTP.
	CompletionTimeout time.Duration
	// MetricsPort is where the Prometheus exporter listens when it has not reported a port.
	MetricsPort int
}

// Server represents the HTTP server
type Server struct {
	router *chi.Mux
	server *http.Server
	opts   Options
	health *handlers.HealthManager
}

// New creates a new HTTP server instance
func New(opts Options) *Server {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)

	// RequestID → Metrics → Recovery
	r.Use(servermw.RequestID)
	r.Use(servermw.RequestMetrics)
	r.Use(servermw.Recovery)

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		HandleError(w, req, apperrors.NewNotFoundError("The requested resource was not found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		HandleError(w, req, apperrors.NewMethodNotAllowedError("The requested method is not allowed for this resource"))
	})

	health := opts.Health
	if health == nil {
		health = handlers.NewHealthManager(handlers.AppVersion)
	}

	s := &Server{
		router: r,
		opts:   opts,
		health: health,
	}

	handlers.SetHTTPErrorResponder(HandleError)

	s.registerRoutes()

	return s
}

// Start starts the HTTP server
func (s *Server) Start() error {
	cfg := s.opts.Config
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  durationOr(cfg.ReadTimeout, 30*time.Second),
		WriteTimeout: durationOr(cfg.WriteTimeout, 60*time.Second),
		IdleTimeout:  durationOr(cfg.IdleTimeout, 120*time.Second),
	}

	s.health.MarkStarted()

	if observability.ServerLogger != nil {
		observability.ServerLogger.Info("Starting HTTP server",
			zap.String("host", cfg.Host),
			zap.Int("port", cfg.Port),
			zap.String("addr", addr))
	}

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	if observability.ServerLogger != nil {
		observability.ServerLogger.Info("Shutting down HTTP server")
	}
	return s.server.Shutdown(ctx)
}

// Handler exposes the underlying router for testing and instrumentation
func (s *Server) Handler() http.Handler {
	return s.router
}

// Port returns the configured server port
func (s *Server) Port() int {
	return s.opts.Config.Port
}

func durationOr(value, fallback time.Duration) time.Duration {
	if value > 0 {
		return value
	}
	return fallback
}
