package output

import (
	"fmt"
	"strings"

	"github.com/zycxfyh/nexus-verse/internal/ailink"
)

// MarkdownFormatter renders results as a markdown table.
type MarkdownFormatter struct{}

// FormatConfigurations renders configurations as Markdown.
func (f *MarkdownFormatter) FormatConfigurations(configs []ailink.Configuration) (string, error) {
	var sb strings.Builder
	sb.WriteString("## AI configurations\n\n")
	if len(configs) == 0 {
		sb.WriteString("_none_\n")
		return sb.String(), nil
	}

	sb.WriteString("| ID | Owner | Provider | Model | Roles | Base URL |\n")
	sb.WriteString("|----|-------|----------|-------|-------|----------|\n")
	for _, cfg := range configs {
		sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %s | %s |\n",
			escapeMarkdownCell(cfg.ID),
			escapeMarkdownCell(cfg.OwnerID),
			escapeMarkdownCell(cfg.Provider),
			escapeMarkdownCell(cfg.ModelID),
			escapeMarkdownCell(rolesLabel(cfg)),
			escapeMarkdownCell(baseURLLabel(cfg.BaseURLValue())),
		))
	}
	return sb.String(), nil
}

// FormatProvider renders a resolved provider as Markdown.
func (f *MarkdownFormatter) FormatProvider(provider *ailink.Provider) (string, error) {
	if provider == nil {
		return "", nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## Provider (%s)\n\n", escapeMarkdownCell(string(provider.Tier))))
	sb.WriteString("| Field | Value |\n")
	sb.WriteString("|-------|-------|\n")
	for _, row := range [][2]string{
		{"Configuration", provider.ConfigID},
		{"Owner", provider.OwnerID},
		{"Provider", provider.Vendor},
		{"Model", provider.Model},
		{"Base URL", baseURLLabel(provider.BaseURL)},
	} {
		sb.WriteString(fmt.Sprintf("| %s | %s |\n", row[0], escapeMarkdownCell(row[1])))
	}
	return sb.String(), nil
}

func escapeMarkdownCell(value string) string {
	return strings.ReplaceAll(value, "|", "\\|")
}
