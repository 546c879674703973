package server

import (
	"os"

	"github.com/fulmenhq/gofulmen/signals"
	"go.uber.org/zap"

	"github.com/zycxfyh/nexus-verse/internal/appid"
	"github.com/zycxfyh/nexus-verse/internal/observability"
	"github.com/zycxfyh/nexus-verse/internal/server/handlers"
)

// registerRoutes registers all HTTP routes
func (s *Server) registerRoutes() {
	s.router.Get("/health", s.health.HealthHandler)
	s.router.Get("/health/live", s.health.LivenessHandler)
	s.router.Get("/health/ready", s.health.ReadinessHandler)
	s.router.Get("/health/startup", s.health.StartupHandler)

	s.router.Get("/version", handlers.VersionHandler(s.opts.Providers))

	s.router.Get("/metrics", s.metricsHandler)

	if s.opts.Resolver != nil {
		providers := &handlers.ProviderHandlers{
			Resolver:          s.opts.Resolver,
			CompletionTimeout: s.opts.CompletionTimeout,
		}
		s.router.Get("/v1/users/{userID}/providers/{role}", providers.Resolve)
		s.router.Post("/v1/users/{userID}/providers/{role}/complete", providers.Complete)
	}

	s.registerAdminEndpoint()
}

// registerAdminEndpoint optionally registers the admin signal endpoint
func (s *Server) registerAdminEndpoint() {
	tokenVar := appid.Get().Env("ADMIN_TOKEN")
	adminToken := os.Getenv(tokenVar)
	logger := observability.ServerLogger

	if adminToken == "" {
		if logger != nil {
			logger.Debug("Admin signal endpoint disabled (no " + tokenVar + " set)")
		}
		return
	}

	handler := signals.NewHTTPHandler(signals.HTTPConfig{
		TokenAuth: adminToken,
		RateLimit: 10,  // 10 requests per minute
		RateBurst: 5,   // burst size
		Manager:   nil, // use default global manager
	})

	s.router.Post("/admin/signal", handler.ServeHTTP)

	if logger != nil {
		logger.Info("Admin signal endpoint enabled",
			zap.String("path", "/admin/signal"),
			zap.String("auth", "bearer token"),
			zap.String("rate_limit", "10/min, burst 5"))
		logger.Warn("Admin endpoint enabled - ensure this server is not exposed to public internet")
	}
}
