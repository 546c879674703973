package cmd

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/fulmenhq/gofulmen/signals"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/zycxfyh/nexus-verse/internal/appid"
	"github.com/zycxfyh/nexus-verse/internal/config"
	errwrap "github.com/zycxfyh/nexus-verse/internal/errors"
	"github.com/zycxfyh/nexus-verse/internal/metrics"
	"github.com/zycxfyh/nexus-verse/internal/observability"
	"github.com/zycxfyh/nexus-verse/internal/server"
	"github.com/zycxfyh/nexus-verse/internal/server/handlers"
)

var (
	serverPort int
	serverHost string
)

// telemetryHealthChecker ensures telemetry system and exporter are available
type telemetryHealthChecker struct{}

func (telemetryHealthChecker) CheckHealth(ctx context.Context) error {
	if observability.TelemetrySystem == nil || observability.PrometheusExporter == nil {
		return errwrap.NewInternalError("telemetry system not initialized")
	}
	return nil
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Start the provider resolution API with graceful shutdown support.

Endpoints:
  GET  /v1/users/{userID}/providers/{role}           resolve a provider
  POST /v1/users/{userID}/providers/{role}/complete  run one completion

Signal Handling:
  • Ctrl+C (SIGINT) or SIGTERM: Graceful shutdown
  • Ctrl+C twice within 2s: Force quit
  • SIGHUP: reload dotenv files so rotated FALLBACK_* values apply`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		identity := appid.Get()
		namespace := identity.TelemetryNamespace()

		cfg, err := loadConfig(ctx, serveOverrides(cmd))
		if err != nil {
			return errwrap.Wrap(ctx, errwrap.CodeConfigInvalid, err, "configuration load failed")
		}

		observability.InitServerLogger(identity.BinaryName, cfg.Logging.Level, cfg.Logging.Profile, namespace)

		if cfg.Metrics.Enabled {
			if err := observability.InitMetrics(identity.BinaryName, cfg.Metrics.Port, namespace); err != nil {
				observability.ServerLogger.Error("Failed to initialize metrics", zap.Error(err))
				return errwrap.Wrap(ctx, errwrap.CodeInternal, err, "metrics initialization failed")
			}
		}

		stopTracing := enableTracing(cfg)

		repo, err := openRepository(ctx, cfg)
		if err != nil {
			stopTracing()
			observability.ServerLogger.Error("Failed to open configuration store",
				zap.String("driver", cfg.Store.Driver),
				zap.Error(err))
			return errwrap.Wrap(ctx, errwrap.CodeDatabase, err, "configuration store unavailable")
		}

		scheduler, factory := newScheduler(cfg, repo, observability.ServerLogger)

		observability.ServerLogger.Info("Initializing server",
			zap.String("service", identity.BinaryName),
			zap.String("namespace", namespace),
			zap.String("version", versionInfo.Version),
			zap.String("store_driver", cfg.Store.Driver),
			zap.Strings("providers", factory.Supported()),
			zap.String("host", cfg.Server.Host),
			zap.Int("port", cfg.Server.Port),
			zap.Int("metrics_port", cfg.Metrics.Port))

		health := handlers.NewHealthManager(versionInfo.Version)
		if cfg.Health.Enabled {
			health.RegisterChecker("store", handlers.CheckerFunc(repo.Ping))
			if cfg.Metrics.Enabled {
				health.RegisterChecker("telemetry", telemetryHealthChecker{})
			}
		}

		srv := server.New(server.Options{
			Config:            cfg.Server,
			Resolver:          scheduler,
			Health:            health,
			Providers:         factory.Supported(),
			CompletionTimeout: cfg.AILink.DefaultTimeout,
			MetricsPort:       cfg.Metrics.Port,
		})

		shutdownTimeout := cfg.Server.ShutdownTimeout
		if shutdownTimeout == 0 {
			shutdownTimeout = 10 * time.Second
		}

		// Register graceful shutdown handlers (LIFO order - last registered, first executed)
		signals.OnShutdown(func(ctx context.Context) error {
			observability.ServerLogger.Info("Flushing logger...")
			if err := observability.ServerLogger.Sync(); err != nil {
				// Sync errors are often benign (stdout/stderr already closed)
				observability.ServerLogger.Warn("Logger sync returned error (may be benign)",
					zap.Error(err))
			}
			return nil
		})

		signals.OnShutdown(func(ctx context.Context) error {
			observability.ShutdownMetrics()
			stopTracing()
			if err := repo.Close(); err != nil {
				observability.ServerLogger.Warn("Configuration store close failed", zap.Error(err))
			}
			return nil
		})

		signals.OnShutdown(func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
			defer cancel()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				return errwrap.Wrap(ctx, errwrap.CodeInternal, err, "server shutdown failed")
			}

			observability.ServerLogger.Info("HTTP server stopped gracefully")
			return nil
		})

		signals.OnReload(func(ctx context.Context) error {
			observability.ServerLogger.Info("Received SIGHUP: reloading dotenv files")
			loaded, err := config.OverloadDotEnv(envFiles...)
			if err != nil {
				observability.ServerLogger.Error("Dotenv reload failed", zap.Error(err))
				return errwrap.Wrap(ctx, errwrap.CodeConfigInvalid, err, "dotenv reload failed")
			}
			observability.ServerLogger.Info("Dotenv reloaded; fallback credentials apply to the next resolution",
				zap.Strings("files", loaded))
			return nil
		})

		if err := signals.EnableDoubleTap(signals.DoubleTapConfig{
			Window:  2 * time.Second,
			Message: "Press Ctrl+C again within 2 seconds to force quit",
		}); err != nil {
			observability.ServerLogger.Warn("Failed to enable double-tap force quit",
				zap.Error(err))
		}

		metrics.SetServerStartTime(time.Now().Unix())

		errChan := make(chan error, 2)
		go func() {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errChan <- err
			}
		}()

		go func() {
			if err := signals.Listen(ctx); err != nil {
				observability.ServerLogger.Error("Signal handler error", zap.Error(err))
				errChan <- err
			}
		}()

		if err := <-errChan; err != nil {
			return errwrap.Wrap(ctx, errwrap.CodeInternal, err, "server error")
		}

		return nil
	},
}

// serveOverrides turns explicitly set flags into a runtime config layer.
func serveOverrides(cmd *cobra.Command) map[string]any {
	serverSection := map[string]any{}
	if cmd.Flags().Changed("host") {
		serverSection["host"] = serverHost
	}
	if cmd.Flags().Changed("port") {
		serverSection["port"] = serverPort
	}
	if len(serverSection) == 0 {
		return nil
	}
	return map[string]any{"server": serverSection}
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serverHost, "host", "localhost", "server host")
	serveCmd.Flags().IntVarP(&serverPort, "port", "p", 8080, "server port")
}
