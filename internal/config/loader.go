// Package config provides centralized configuration management for nexus-engine.
// It layers configuration in three steps:
// Layer 1: embedded defaults (defaults.yaml)
// Layer 2: user overrides (explicit --config file or XDG config paths)
// Layer 3: environment variables and runtime overrides
package config

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	gfconfig "github.com/fulmenhq/gofulmen/config"
	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/zycxfyh/nexus-verse/internal/ailink"
	"github.com/zycxfyh/nexus-verse/internal/appid"
)

//go:embed defaults.yaml
var defaultsYAML []byte

var (
	// appConfig holds the current application configuration
	appConfig *Config
	configMu  sync.RWMutex

	// configFile, when set, replaces XDG discovery for the user layer.
	configFile string
	// usedConfigFile records the user config file merged by the last Load.
	usedConfigFile string
)

// EnvVarSpec defines environment variable mappings for config fields
// following the pattern: {PREFIX}{NAME} maps to config path
type EnvVarSpec = gfconfig.EnvVarSpec

// Environment variable types
const (
	EnvString = gfconfig.EnvString
	EnvInt    = gfconfig.EnvInt
	EnvBool   = gfconfig.EnvBool
)

// SetConfigFile pins the user config file. An empty path restores XDG discovery.
func SetConfigFile(path string) {
	configMu.Lock()
	defer configMu.Unlock()
	configFile = strings.TrimSpace(path)
}

// ConfigFileUsed returns the user config file merged by the last Load, if any.
func ConfigFileUsed() string {
	configMu.RLock()
	defer configMu.RUnlock()
	return usedConfigFile
}

// LoadDotEnv loads KEY=VALUE files into the process environment without overriding
// variables that are already set. Missing files are skipped. With no paths, ".env"
// in the working directory is tried.
func LoadDotEnv(paths ...string) ([]string, error) {
	return loadDotEnv(godotenv.Load, paths)
}

// OverloadDotEnv is LoadDotEnv but file values replace existing variables. It backs
// SIGHUP reloads so a rotated FALLBACK_API_KEY is picked up without a restart.
func OverloadDotEnv(paths ...string) ([]string, error) {
	return loadDotEnv(godotenv.Overload, paths)
}

func loadDotEnv(load func(...string) error, paths []string) ([]string, error) {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	var loaded []string
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return loaded, fmt.Errorf("stat %s: %w", path, err)
		}
		if err := load(path); err != nil {
			return loaded, fmt.Errorf("load %s: %w", path, err)
		}
		loaded = append(loaded, path)
	}
	return loaded, nil
}

// Load loads configuration using the three-layer pattern.
//
// This function is safe to call multiple times (e.g., for config reload)
func Load(ctx context.Context, runtimeOverrides ...map[string]any) (*Config, error) {
	if ctx != nil {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}

	v := viper.New()
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(defaultsYAML)); err != nil {
		return nil, fmt.Errorf("failed to read embedded defaults: %w", err)
	}

	userPath, err := resolveUserConfigFile()
	if err != nil {
		return nil, err
	}
	if userPath != "" {
		v.SetConfigFile(userPath)
		if err := v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", userPath, err)
		}
	}

	envOverrides, err := gfconfig.LoadEnvOverrides(getEnvSpecs())
	if err != nil {
		return nil, fmt.Errorf("failed to load environment overrides: %w", err)
	}

	allOverrides := []map[string]any{envOverrides}
	allOverrides = append(allOverrides, runtimeOverrides...)
	for _, overrides := range allOverrides {
		if len(overrides) == 0 {
			continue
		}
		if err := v.MergeConfigMap(overrides); err != nil {
			return nil, fmt.Errorf("failed to merge overrides: %w", err)
		}
	}

	cfg := &Config{}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
			mapstructure.StringToFloat64HookFunc(),
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}

	if err := decoder.Decode(v.AllSettings()); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.Store.Driver == "" {
		cfg.Store.Driver = "libsql"
	}
	if strings.TrimSpace(cfg.Store.URL) == "" && strings.TrimSpace(cfg.Store.Path) == "" {
		cfg.Store.Path = DefaultStorePath()
	}

	configMu.Lock()
	appConfig = cfg
	usedConfigFile = userPath
	configMu.Unlock()

	return cfg, nil
}

// GetConfig returns the current application configuration (thread-safe)
func GetConfig() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return appConfig
}

// FallbackLookup returns the key lookup used by the system fallback builder. The
// FALLBACK_* variables are bound through viper so each call observes the live
// environment; values from the fallback section of the config file act as defaults.
func FallbackLookup(cfg FallbackConfig) func(string) string {
	v := viper.New()
	bindings := map[string]string{
		ailink.EnvFallbackAPIKey:  cfg.APIKey,
		ailink.EnvFallbackModelID: cfg.ModelID,
		ailink.EnvFallbackBaseURL: cfg.BaseURL,
	}
	for key, fileValue := range bindings {
		_ = v.BindEnv(key, key)
		if strings.TrimSpace(fileValue) != "" {
			v.SetDefault(key, fileValue)
		}
	}
	return func(key string) string {
		return v.GetString(key)
	}
}

func resolveUserConfigFile() (string, error) {
	configMu.RLock()
	explicit := configFile
	configMu.RUnlock()

	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file %s: %w", explicit, err)
		}
		return explicit, nil
	}

	candidates := append([]string{DefaultConfigPath()}, getUserConfigPaths()...)
	for _, candidate := range candidates {
		if candidate == "" {
			continue
		}
		if st, err := os.Stat(candidate); err == nil && !st.IsDir() {
			return candidate, nil
		}
	}
	return "", nil
}

// getUserConfigPaths returns the list of user config file paths to check
// Uses gofulmen/config for XDG-compliant path discovery
func getUserConfigPaths() []string {
	identity := appid.Get()
	legacyNames := []string{}
	if identity.BinaryName != "" && identity.BinaryName != identity.ConfigName {
		legacyNames = append(legacyNames, identity.BinaryName)
	}
	return gfconfig.GetAppConfigPaths(identity.ConfigName, legacyNames...)
}

// getEnvSpecs returns environment variable specifications for config mapping
// Maps {PREFIX}{NAME} environment variables to config paths
func getEnvSpecs() []EnvVarSpec {
	prefix := appid.Get().Prefix()

	return []EnvVarSpec{
		// Server config
		{Name: prefix + "HOST", Path: []string{"server", "host"}, Type: EnvString},
		{Name: prefix + "PORT", Path: []string{"server", "port"}, Type: EnvInt},
		// Duration fields are parsed as strings and converted by mapstructure decode hook
		{Name: prefix + "READ_TIMEOUT", Path: []string{"server", "read_timeout"}, Type: EnvString},
		{Name: prefix + "WRITE_TIMEOUT", Path: []string{"server", "write_timeout"}, Type: EnvString},
		{Name: prefix + "IDLE_TIMEOUT", Path: []string{"server", "idle_timeout"}, Type: EnvString},
		{Name: prefix + "SHUTDOWN_TIMEOUT", Path: []string{"server", "shutdown_timeout"}, Type: EnvString},

		// Logging config
		{Name: prefix + "LOG_LEVEL", Path: []string{"logging", "level"}, Type: EnvString},
		{Name: prefix + "LOG_PROFILE", Path: []string{"logging", "profile"}, Type: EnvString},

		// Store config
		{Name: prefix + "DB_DRIVER", Path: []string{"store", "driver"}, Type: EnvString},
		{Name: prefix + "DB_PATH", Path: []string{"store", "path"}, Type: EnvString},
		{Name: prefix + "DB_URL", Path: []string{"store", "url"}, Type: EnvString},
		{Name: prefix + "DB_AUTH_TOKEN", Path: []string{"store", "auth_token"}, Type: EnvString},
		{Name: prefix + "MONGO_URI", Path: []string{"store", "mongo_uri"}, Type: EnvString},
		{Name: prefix + "MONGO_DATABASE", Path: []string{"store", "mongo_database"}, Type: EnvString},
		{Name: prefix + "DB_QUERY_TIMEOUT", Path: []string{"store", "query_timeout"}, Type: EnvString},

		// AILink config
		{Name: prefix + "AILINK_DEFAULT_TIMEOUT", Path: []string{"ailink", "default_timeout"}, Type: EnvString},
		{Name: prefix + "AILINK_TRACE_FILE", Path: []string{"ailink", "trace_file"}, Type: EnvString},

		// Metrics config
		{Name: prefix + "METRICS_ENABLED", Path: []string{"metrics", "enabled"}, Type: EnvBool},
		{Name: prefix + "METRICS_PORT", Path: []string{"metrics", "port"}, Type: EnvInt},

		// Health config
		{Name: prefix + "HEALTH_ENABLED", Path: []string{"health", "enabled"}, Type: EnvBool},

		// Debug config
		{Name: prefix + "DEBUG_ENABLED", Path: []string{"debug", "enabled"}, Type: EnvBool},
		{Name: prefix + "DEBUG_PPROF_ENABLED", Path: []string{"debug", "pprof_enabled"}, Type: EnvBool},
	}
}

// DefaultConfigPath returns the XDG-compliant path to the user config file.
func DefaultConfigPath() string {
	configDir := gfconfig.GetAppConfigDir(appid.Get().ConfigName)
	if strings.TrimSpace(configDir) == "" {
		return ""
	}
	return filepath.Join(configDir, "config.yaml")
}

// DefaultDataDir returns the XDG-compliant data directory for the app.
func DefaultDataDir() string {
	return gfconfig.GetAppDataDir(appid.Get().ConfigName)
}

// DefaultStorePath returns the XDG-compliant path to the database file.
func DefaultStorePath() string {
	identity := appid.Get()
	dataDir := gfconfig.GetAppDataDir(identity.ConfigName)
	if strings.TrimSpace(dataDir) == "" {
		return "./" + identity.BinaryName + ".db"
	}
	return filepath.Join(dataDir, identity.BinaryName+".db")
}
