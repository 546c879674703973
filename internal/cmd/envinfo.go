package cmd

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/fulmenhq/gofulmen/crucible"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/zycxfyh/nexus-verse/internal/ailink"
	"github.com/zycxfyh/nexus-verse/internal/appid"
	"github.com/zycxfyh/nexus-verse/internal/config"
	"github.com/zycxfyh/nexus-verse/internal/observability"
)

var envInfoCmd = &cobra.Command{
	Use:   "envinfo",
	Short: "Display environment information",
	Long:  "Display environment, configuration, and version information. Credentials are reported as set or not set.",
	Run: func(cmd *cobra.Command, args []string) {
		log := observability.CLILogger
		version := crucible.GetVersion()
		identity := appid.Get()

		log.Info("=== " + identity.BinaryName + " Environment Information ===")
		log.Info("")

		log.Info("Application:")
		log.Info("  Name:       " + identity.BinaryName)
		log.Info("  Version:    " + versionInfo.Version)
		log.Info("  Commit:     " + versionInfo.Commit)
		log.Info("  Built:      " + versionInfo.BuildDate)
		log.Info("")

		log.Info("SSOT:")
		log.Info("  Gofulmen:   "+version.Gofulmen, zap.String("gofulmen_version", version.Gofulmen))
		log.Info("  Crucible:   "+version.Crucible, zap.String("crucible_version", version.Crucible))
		log.Info("")

		log.Info("Runtime:")
		log.Info("  Go Version: "+runtime.Version(), zap.String("go_version", runtime.Version()))
		log.Info("  GOOS:       "+runtime.GOOS, zap.String("goos", runtime.GOOS))
		log.Info("  GOARCH:     "+runtime.GOARCH, zap.String("goarch", runtime.GOARCH))
		log.Info(fmt.Sprintf("  NumCPU:     %d", runtime.NumCPU()), zap.Int("num_cpu", runtime.NumCPU()))
		log.Info("")

		cfg, err := loadConfig(cmd.Context())
		if err != nil {
			log.Warn("Config load failed", zap.Error(err))
			return
		}

		log.Info("Configuration:")
		log.Info("  Server Host:    "+cfg.Server.Host, zap.String("host", cfg.Server.Host))
		log.Info(fmt.Sprintf("  Server Port:    %d", cfg.Server.Port), zap.Int("port", cfg.Server.Port))
		log.Info("  Log Level:      "+cfg.Logging.Level, zap.String("log_level", cfg.Logging.Level))
		log.Info("  Log Profile:    "+cfg.Logging.Profile, zap.String("log_profile", cfg.Logging.Profile))
		log.Info("  Store:          "+storeLabel(cfg.Store), zap.String("db_driver", cfg.Store.Driver))
		log.Info(fmt.Sprintf("  Metrics:        %t (port %d)", cfg.Metrics.Enabled, cfg.Metrics.Port))
		configFile := config.ConfigFileUsed()
		if configFile == "" {
			configFile = "(none, expected " + config.DefaultConfigPath() + ")"
		}
		log.Info("  Config File:    " + configFile)
		log.Info("")

		log.Info("AILink:")
		log.Info("  Providers:        " + strings.Join(ailink.NewFactory().Supported(), ", "))
		log.Info("  Default Timeout:  " + cfg.AILink.DefaultTimeout.String())
		if cfg.AILink.TraceFile != "" {
			log.Info("  Trace File:       " + cfg.AILink.TraceFile)
		}
		log.Info("")

		lookup := config.FallbackLookup(cfg.Fallback)
		model := lookup(ailink.EnvFallbackModelID)
		if model == "" {
			model = ailink.DefaultFallbackModel + " (default)"
		}
		baseURL := lookup(ailink.EnvFallbackBaseURL)
		if baseURL == "" {
			baseURL = "(provider default)"
		}
		keyStatus := "(not set)"
		if lookup(ailink.EnvFallbackAPIKey) != "" {
			keyStatus = "(set)"
		}
		log.Info("System Fallback:")
		log.Info("  Provider:   " + ailink.ProviderDeepSeek)
		log.Info("  API Key:    " + keyStatus)
		log.Info("  Model:      " + model)
		log.Info("  Base URL:   " + baseURL)
		log.Info("")

		log.Info("=== End Environment Information ===")
	},
}

func init() {
	rootCmd.AddCommand(envInfoCmd)
}
