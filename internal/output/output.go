package output

import (
	"fmt"
	"strings"

	"github.com/zycxfyh/nexus-verse/internal/ailink"
)

// Format represents an output format.
type Format string

const (
	FormatTable    Format = "table"
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
)

// Formatter renders stored configurations and resolved providers.
type Formatter interface {
	FormatConfigurations(configs []ailink.Configuration) (string, error)
	FormatProvider(provider *ailink.Provider) (string, error)
}

// ParseFormat validates and normalizes a format string.
func ParseFormat(value string) (Format, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	switch normalized {
	case "", string(FormatTable):
		return FormatTable, nil
	case string(FormatJSON):
		return FormatJSON, nil
	case string(FormatMarkdown), "md":
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("unsupported output format: %s", value)
	}
}

// NewFormatter returns a formatter for the requested format.
func NewFormatter(format Format) Formatter {
	switch format {
	case FormatJSON:
		return &JSONFormatter{Indent: true}
	case FormatMarkdown:
		return &MarkdownFormatter{}
	default:
		return &TableFormatter{}
	}
}

func rolesLabel(cfg ailink.Configuration) string {
	if len(cfg.AssignedRoles) == 0 {
		return "-"
	}
	return strings.Join(cfg.AssignedRoles.Strings(), ", ")
}

func baseURLLabel(value string) string {
	if value == "" {
		return "(default)"
	}
	return value
}

func timestampLabel(cfg ailink.Configuration) string {
	if cfg.CreatedAt.IsZero() {
		return ""
	}
	return cfg.CreatedAt.UTC().Format("2006-01-02 15:04:05")
}
