package observability

import (
	"fmt"
	"os"
	"strings"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/fulmenhq/gofulmen/logging"
)

var (
	// CLILogger writes console lines for one-shot commands.
	CLILogger *logging.Logger

	// ServerLogger writes the serve command's logs, JSON by default.
	ServerLogger *logging.Logger
)

const profileSimple = "SIMPLE"

var logLevels = map[string]string{
	"trace":   "TRACE",
	"debug":   "DEBUG",
	"info":    "INFO",
	"warn":    "WARN",
	"warning": "WARN",
	"error":   "ERROR",
}

// InitCLILogger installs CLILogger; verbose lowers the level to DEBUG so tier
// decisions become visible.
func InitCLILogger(serviceName string, verbose bool) {
	logger, err := logging.NewCLI(serviceName)
	if err != nil {
		fatal(foundry.ExitConfigInvalid, "Failed to initialize CLI logger", err)
	}
	if verbose {
		logger.SetLevel(logging.DEBUG)
	}
	CLILogger = logger
}

// InitServerLogger installs ServerLogger from the logging config section. The
// optional namespace is attached to every line.
func InitServerLogger(serviceName string, logLevel string, profile string, namespace ...string) {
	ns := ""
	if len(namespace) > 0 {
		ns = namespace[0]
	}

	logger, err := logging.New(serverLoggerConfig(serviceName, logLevel, profile, ns))
	if err != nil {
		fatal(foundry.ExitConfigInvalid, "Failed to initialize server logger", err)
	}
	ServerLogger = logger
}

// serverLoggerConfig builds the serve logger. STRUCTURED, the default, writes JSON
// to stderr through the correlation middleware; SIMPLE writes console lines
// without caller information.
func serverLoggerConfig(serviceName, logLevel, profile, namespace string) *logging.LoggerConfig {
	static := map[string]any{}
	if ns := strings.TrimSpace(namespace); ns != "" {
		static["namespace"] = ns
	}

	cfg := &logging.LoggerConfig{
		Profile:      logging.ProfileStructured,
		DefaultLevel: parseLogLevel(logLevel),
		Service:      serviceName,
		Environment:  "production",
		StaticFields: static,
		Middleware: []logging.MiddlewareConfig{
			{Name: "correlation", Enabled: true, Order: 100, Config: map[string]any{}},
		},
		Sinks:            []logging.SinkConfig{stderrSink("json")},
		EnableCaller:     true,
		EnableStacktrace: true,
	}

	if strings.EqualFold(strings.TrimSpace(profile), profileSimple) {
		cfg.Profile = logging.ProfileSimple
		cfg.Middleware = nil
		cfg.Sinks = []logging.SinkConfig{stderrSink("console")}
		cfg.EnableCaller = false
	}
	return cfg
}

func stderrSink(format string) logging.SinkConfig {
	return logging.SinkConfig{
		Type:    "console",
		Format:  format,
		Console: &logging.ConsoleSinkConfig{Stream: "stderr", Colorize: false},
	}
}

// Active returns the server logger once serving has started, otherwise the CLI logger.
// It may return nil before either is initialized.
func Active() *logging.Logger {
	if ServerLogger != nil {
		return ServerLogger
	}
	return CLILogger
}

// parseLogLevel maps a config level to a gofulmen severity; unknown values mean INFO.
func parseLogLevel(levelStr string) string {
	if level, ok := logLevels[strings.ToLower(strings.TrimSpace(levelStr))]; ok {
		return level
	}
	return "INFO"
}

// fatal reports a logger that could not be built. No logger exists yet, so it
// writes to stderr directly.
func fatal(exitCode foundry.ExitCode, msg string, err error) {
	fmt.Fprintf(os.Stderr, "FATAL: %s: %v\n", msg, err)
	if info, ok := foundry.GetExitCodeInfo(exitCode); ok {
		fmt.Fprintf(os.Stderr, "Exit Code: %d (%s) - %s\n", info.Code, info.Name, info.Description)
	}
	os.Exit(int(exitCode))
}
