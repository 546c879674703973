package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/fulmenhq/gofulmen/crucible"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/zycxfyh/nexus-verse/internal/ailink"
	"github.com/zycxfyh/nexus-verse/internal/appid"
	"github.com/zycxfyh/nexus-verse/internal/config"
	"github.com/zycxfyh/nexus-verse/internal/observability"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run diagnostic checks",
	Long:  "Run diagnostic checks on the runtime, configuration store and fallback provider.",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		identity := appid.Get()
		log := observability.CLILogger

		log.Info("=== " + identity.BinaryName + " doctor ===")
		log.Info("")
		log.Info("Running diagnostic checks...")
		log.Info("")

		allChecks := true
		totalChecks := 7

		// Check 1: Go version
		goVersion := runtime.Version()
		if goVersion >= "go1.23" {
			log.Info(fmt.Sprintf("[1/%d] Checking Go version... ✅ %s", totalChecks, goVersion), zap.String("go_version", goVersion))
		} else {
			log.Warn(fmt.Sprintf("[1/%d] Checking Go version... ⚠️  %s (recommended: go1.23+)", totalChecks, goVersion), zap.String("go_version", goVersion))
			allChecks = false
		}

		// Check 2: Gofulmen / Crucible
		version := crucible.GetVersion()
		if version.Gofulmen != "" && version.Crucible != "" {
			log.Info(fmt.Sprintf("[2/%d] Checking Gofulmen/Crucible... ✅ v%s / v%s", totalChecks, version.Gofulmen, version.Crucible),
				zap.String("gofulmen_version", version.Gofulmen),
				zap.String("crucible_version", version.Crucible))
		} else {
			log.Error(fmt.Sprintf("[2/%d] Checking Gofulmen/Crucible... ❌ version metadata unavailable", totalChecks))
			allChecks = false
		}

		// Check 3: Config file
		cfg, cfgErr := loadConfig(ctx)
		switch {
		case cfgErr != nil:
			log.Error(fmt.Sprintf("[3/%d] Checking configuration... ❌ %v", totalChecks, cfgErr))
			allChecks = false
		case config.ConfigFileUsed() != "":
			log.Info(fmt.Sprintf("[3/%d] Checking configuration... ✅ %s", totalChecks, config.ConfigFileUsed()))
		default:
			log.Info(fmt.Sprintf("[3/%d] Checking configuration... ✅ defaults (no config file)", totalChecks))
		}

		// Check 4: Environment
		log.Info(fmt.Sprintf("[4/%d] Checking environment... ✅ %s/%s", totalChecks, runtime.GOOS, runtime.GOARCH),
			zap.String("os", runtime.GOOS),
			zap.String("arch", runtime.GOARCH))

		if cfgErr != nil {
			for i := 5; i <= totalChecks; i++ {
				log.Warn(fmt.Sprintf("[%d/%d] skipped (config not loaded)", i, totalChecks))
			}
			finishDoctor(identity.BinaryName, false)
			return
		}

		// Check 5: Configuration store
		if ok := checkStore(ctx, cfg, 5, totalChecks); !ok {
			allChecks = false
		}

		// Check 6: System fallback
		lookup := config.FallbackLookup(cfg.Fallback)
		fallback, fallbackErr := (&ailink.FallbackBuilder{Lookup: lookup}).Build()
		if fallbackErr != nil {
			log.Warn(fmt.Sprintf("[6/%d] Checking system fallback... ⚠️  %s not set", totalChecks, ailink.EnvFallbackAPIKey))
			log.Info("       Users without a configuration will receive: " + ailink.UnavailableMessage)
		} else if _, err := ailink.NewFactory().Create(*fallback); err != nil {
			log.Error(fmt.Sprintf("[6/%d] Checking system fallback... ❌ %v", totalChecks, err))
			allChecks = false
		} else {
			log.Info(fmt.Sprintf("[6/%d] Checking system fallback... ✅ %s (%s)", totalChecks, fallback.Label(), baseURLOrDefault(fallback.BaseURLValue())))
		}

		// Check 7: Provider strategies
		supported := ailink.NewFactory().Supported()
		log.Info(fmt.Sprintf("[7/%d] Checking provider strategies... ✅ %s", totalChecks, strings.Join(supported, ", ")))

		finishDoctor(identity.BinaryName, allChecks)
	},
}

func checkStore(ctx context.Context, cfg *config.Config, n, total int) bool {
	log := observability.CLILogger
	label := storeLabel(cfg.Store)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	repo, err := openRepository(pingCtx, cfg)
	if err != nil {
		log.Error(fmt.Sprintf("[%d/%d] Checking configuration store... ❌ %s", n, total, label), zap.Error(err))
		return false
	}
	defer repo.Close() // nolint:errcheck

	if err := repo.Ping(pingCtx); err != nil {
		log.Error(fmt.Sprintf("[%d/%d] Checking configuration store... ❌ %s", n, total, label), zap.Error(err))
		return false
	}
	configs, err := repo.ListConfigurations(pingCtx, "")
	if err != nil {
		log.Warn(fmt.Sprintf("[%d/%d] Checking configuration store... ⚠️  %s (list failed)", n, total, label), zap.Error(err))
		return false
	}
	log.Info(fmt.Sprintf("[%d/%d] Checking configuration store... ✅ %s (%d configurations)", n, total, label, len(configs)))
	return true
}

func finishDoctor(binary string, healthy bool) {
	log := observability.CLILogger
	log.Info("")
	if healthy {
		log.Info(fmt.Sprintf("✅ All checks passed! Your %s installation is healthy.", binary))
	} else {
		log.Warn("⚠️  Some checks failed. Review the output above for details.")
	}
	log.Info("")
	log.Info("=== End Diagnostics ===")
}

var (
	doctorInitForce   bool
	doctorResetConfig bool
	doctorResetData   bool
	doctorResetAll    bool
)

var doctorInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a default config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath := config.DefaultConfigPath()
		if configPath == "" {
			return fmt.Errorf("config path not resolved")
		}

		if _, err := os.Stat(configPath); err == nil && !doctorInitForce {
			return fmt.Errorf("config file already exists: %s (use --force to overwrite)", configPath)
		}

		if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
		if err := os.WriteFile(configPath, []byte(buildInitConfig()), 0644); err != nil {
			return fmt.Errorf("write config file: %w", err)
		}

		observability.CLILogger.Info("Config initialized", zap.String("path", configPath))
		return nil
	},
}

var doctorConfigCmd = &cobra.Command{
	Use:   "config",
	Short: "Show configuration status and paths",
	RunE: func(cmd *cobra.Command, args []string) error {
		log := observability.CLILogger
		configPath := config.DefaultConfigPath()
		dataDir := config.DefaultDataDir()

		log.Info("Configuration:")
		log.Info(fmt.Sprintf("  Config file:    %s (%s)", configPath, existenceStatus(fileExists(configPath))))
		if dataDir != "" {
			log.Info(fmt.Sprintf("  Data directory: %s (%s)", dataDir, existenceStatus(fileExists(dataDir))))
		} else {
			log.Info("  Data directory: (not resolved)")
		}

		cfg, err := loadConfig(cmd.Context())
		if err != nil {
			log.Warn("Config load failed", zap.Error(err))
			return nil
		}
		log.Info("  Store:          " + storeLabel(cfg.Store))

		prefix := appid.Get().Prefix()
		log.Info("")
		log.Info("Environment:")
		for _, name := range []string{
			ailink.EnvFallbackAPIKey,
			ailink.EnvFallbackModelID,
			ailink.EnvFallbackBaseURL,
			prefix + "DB_DRIVER",
			prefix + "MONGO_URI",
		} {
			log.Info(fmt.Sprintf("  %s: %s", name, envStatus(name)))
		}
		return nil
	},
}

var doctorResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset user configuration and/or data",
	RunE: func(cmd *cobra.Command, args []string) error {
		if doctorResetAll {
			doctorResetConfig = true
			doctorResetData = true
		}

		if !doctorResetConfig && !doctorResetData {
			return fmt.Errorf("specify --config, --data, or --all")
		}

		if doctorResetConfig {
			configPath := config.DefaultConfigPath()
			if configPath == "" {
				observability.CLILogger.Warn("Config path not resolved; skipping config reset")
			} else if err := os.Remove(configPath); err == nil {
				observability.CLILogger.Info("Config removed", zap.String("path", configPath))
			} else if os.IsNotExist(err) {
				observability.CLILogger.Info("Config already removed", zap.String("path", configPath))
			} else {
				return fmt.Errorf("remove config file: %w", err)
			}
		}

		if doctorResetData {
			cfg, err := loadConfig(cmd.Context())
			if err != nil {
				return err
			}
			if strings.EqualFold(cfg.Store.Driver, "mongodb") || cfg.Store.URL != "" {
				return fmt.Errorf("remote store configured; database reset is not supported")
			}
			absPath, _ := filepath.Abs(cfg.Store.Path)
			if err := os.Remove(absPath); err == nil {
				observability.CLILogger.Info("Database removed", zap.String("path", absPath))
			} else if os.IsNotExist(err) {
				observability.CLILogger.Info("Database already removed", zap.String("path", absPath))
			} else {
				return fmt.Errorf("remove database: %w", err)
			}
		}

		return nil
	},
}

var doctorValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the current config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := loadConfig(cmd.Context()); err != nil {
			return err
		}
		used := config.ConfigFileUsed()
		if used == "" {
			return fmt.Errorf("no config file found (expected %s)", config.DefaultConfigPath())
		}
		observability.CLILogger.Info("Config is valid", zap.String("path", used))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(doctorCmd)
	doctorCmd.AddCommand(doctorInitCmd)
	doctorCmd.AddCommand(doctorConfigCmd)
	doctorCmd.AddCommand(doctorResetCmd)
	doctorCmd.AddCommand(doctorValidateCmd)

	doctorInitCmd.Flags().BoolVar(&doctorInitForce, "force", false, "overwrite existing config file")

	doctorResetCmd.Flags().BoolVar(&doctorResetConfig, "config", false, "remove user config file")
	doctorResetCmd.Flags().BoolVar(&doctorResetData, "data", false, "remove local database")
	doctorResetCmd.Flags().BoolVar(&doctorResetAll, "all", false, "remove config and data")
}

func storeLabel(cfg config.StoreConfig) string {
	switch {
	case strings.EqualFold(cfg.Driver, "mongodb"):
		database := cfg.MongoDatabase
		if database == "" {
			database = "nexus"
		}
		return "mongodb (" + database + ")"
	case cfg.URL != "":
		return cfg.URL + " (remote)"
	default:
		absPath, _ := filepath.Abs(cfg.Path)
		if info, err := os.Stat(absPath); err == nil {
			return fmt.Sprintf("%s (%s)", absPath, formatFileSize(info.Size()))
		}
		return absPath + " (not created yet)"
	}
}

func baseURLOrDefault(value string) string {
	if value == "" {
		return "default endpoint"
	}
	return value
}

// formatFileSize returns a human-readable file size
func formatFileSize(bytes int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
	)
	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.1f GB", float64(bytes)/float64(GB))
	case bytes >= MB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(MB))
	case bytes >= KB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(KB))
	default:
		return fmt.Sprintf("%d bytes", bytes)
	}
}

func buildInitConfig() string {
	identity := appid.Get()
	lines := []string{
		fmt.Sprintf("# %s config - created by '%s doctor init'", identity.BinaryName, identity.BinaryName),
		"server:",
		"  host: localhost",
		"  port: 8080",
		"store:",
		"  driver: libsql",
		"  # driver: mongodb",
		"  # mongo_uri: mongodb://localhost:27017",
		"ailink:",
		"  default_timeout: 60s",
		"# The system fallback reads FALLBACK_API_KEY, FALLBACK_MODEL_ID and",
		"# FALLBACK_BASE_URL from the environment (or a .env file) on every request.",
		"# Values below are used only when the variables are unset.",
		"fallback:",
		"  model_id: " + ailink.DefaultFallbackModel,
		"logging:",
		"  level: info",
		"  profile: structured",
	}
	return strings.Join(lines, "\n") + "\n"
}

func promptForValue(prompt string) (string, error) {
	if _, err := fmt.Fprint(os.Stdout, prompt); err != nil {
		return "", err
	}
	reader := bufio.NewReader(os.Stdin)
	value, err := reader.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimSpace(value), nil
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}

func existenceStatus(exists bool) string {
	if exists {
		return "exists"
	}
	return "missing"
}

func envStatus(name string) string {
	if strings.TrimSpace(os.Getenv(name)) != "" {
		return "(set)"
	}
	return "(not set)"
}
