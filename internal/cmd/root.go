package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/fulmenhq/gofulmen/telemetry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/zycxfyh/nexus-verse/internal/ailink"
	"github.com/zycxfyh/nexus-verse/internal/ailink/driver"
	"github.com/zycxfyh/nexus-verse/internal/appid"
	"github.com/zycxfyh/nexus-verse/internal/config"
	"github.com/zycxfyh/nexus-verse/internal/observability"
)

var (
	cfgFile   string
	verbose   bool
	traceFile string
	envFiles  []string

	// Version info set by main package
	versionInfo struct {
		Version   string
		Commit    string
		BuildDate string
	}
)

// SetVersionInfo is called by main package to set version information
func SetVersionInfo(version, commit, buildDate string) {
	versionInfo.Version = version
	versionInfo.Commit = commit
	versionInfo.BuildDate = buildDate
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   appid.Get().BinaryName,
	Short: appid.Get().Description,
	Long: fmt.Sprintf(`%s - %s

Resolution order for a (user, role) request:
  1. dedicated   the user's configuration assigned to the role
  2. requisition the user's earliest configuration
  3. fallback    the system configuration built from FALLBACK_* variables`,
		appid.Get().BinaryName, appid.Get().Description),
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Disable global telemetry early to prevent config loading from emitting
	// metrics to stdout. Server mode will initialize proper telemetry later.
	disabledConfig := &telemetry.Config{Enabled: false}
	if sys, err := telemetry.NewSystem(disabledConfig); err == nil {
		telemetry.SetGlobalSystem(sys)
	}

	cobra.OnInitialize(initConfig)

	identity := appid.Get()
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", fmt.Sprintf("config file (default is $XDG_CONFIG_HOME/%s/config.yaml)", identity.ConfigName))
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (sets log level to debug)")
	rootCmd.PersistentFlags().StringVar(&traceFile, "trace", "", "trace provider requests/responses to NDJSON file")
	rootCmd.PersistentFlags().StringSliceVar(&envFiles, "env-file", nil, "dotenv files to load before reading configuration (default .env)")
}

// initConfig prepares the CLI logger, the dotenv layer and the config file pin.
func initConfig() {
	identity := appid.Get()
	observability.InitCLILogger(identity.BinaryName, verbose)

	loaded, err := config.LoadDotEnv(envFiles...)
	if err != nil {
		observability.CLILogger.Warn("Failed to load dotenv file", zap.Error(err))
	}
	for _, path := range loaded {
		observability.CLILogger.Debug("Loaded dotenv file", zap.String("path", path))
	}

	config.SetConfigFile(cfgFile)
}

// loadConfig loads the layered configuration for a command.
func loadConfig(ctx context.Context, overrides ...map[string]any) (*config.Config, error) {
	cfg, err := config.Load(ctx, overrides...)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if used := config.ConfigFileUsed(); used != "" {
		observability.Active().Debug("Using config file", zap.String("path", used))
	}
	return cfg, nil
}

// enableTracing starts NDJSON tracing when --trace or ailink.trace_file is set.
// Request headers are never traced; the fallback key is scrubbed from bodies too.
func enableTracing(cfg *config.Config) func() {
	path := strings.TrimSpace(traceFile)
	if path == "" && cfg != nil {
		path = strings.TrimSpace(cfg.AILink.TraceFile)
	}
	if path == "" {
		return func() {}
	}

	var secrets []string
	if cfg != nil {
		secrets = append(secrets, config.FallbackLookup(cfg.Fallback)(ailink.EnvFallbackAPIKey))
	}

	cleanup, err := driver.EnableTracing(path, secrets...)
	if err != nil {
		observability.Active().Warn("Failed to enable tracing", zap.Error(err))
		return func() {}
	}
	observability.Active().Debug("Provider tracing enabled", zap.String("file", path))
	return cleanup
}
