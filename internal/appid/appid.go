// Package appid holds the application identity used for CLI help, config paths
// and environment variable prefixes.
package appid

import "strings"

// Identity describes how the application names itself on disk and in the environment.
type Identity struct {
	BinaryName  string
	ConfigName  string
	EnvPrefix   string
	Description string
}

var identity = Identity{
	BinaryName:  "nexus-engine",
	ConfigName:  "nexus-engine",
	EnvPrefix:   "NEXUS",
	Description: "AI provider scheduler: dedicated, requisitioned and system fallback backends per user role",
}

// Get returns the application identity.
func Get() Identity {
	return identity
}

// Prefix returns the environment prefix with a trailing underscore.
func (i Identity) Prefix() string {
	prefix := strings.ToUpper(strings.TrimSpace(i.EnvPrefix))
	if prefix == "" {
		return ""
	}
	if !strings.HasSuffix(prefix, "_") {
		prefix += "_"
	}
	return prefix
}

// Env returns the prefixed environment variable name for key.
func (i Identity) Env(key string) string {
	return i.Prefix() + strings.ToUpper(key)
}

// TelemetryNamespace returns the metric namespace derived from the binary name.
func (i Identity) TelemetryNamespace() string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(i.BinaryName)), "-", "_")
}
