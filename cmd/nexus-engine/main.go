package main

import (
	"github.com/zycxfyh/nexus-verse/internal/cmd"
	"github.com/zycxfyh/nexus-verse/internal/server/handlers"
)

// Version information set via ldflags during build
// Example: go build -ldflags="-X main.version=1.0.0 -X main.commit=abc123 -X main.buildDate=2026-10-17"
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	cmd.SetVersionInfo(version, commit, buildDate)
	handlers.SetVersionInfo(version, commit, buildDate)

	if err := cmd.Execute(); err != nil {
		// Commands return typed errors; the exit code follows the failure class.
		cmd.Exit(err)
	}
}
