package output

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/zycxfyh/nexus-verse/internal/ailink"
)

// TableFormatter renders results as an ASCII table.
type TableFormatter struct{}

// FormatConfigurations renders configurations in creation order, one per row.
func (f *TableFormatter) FormatConfigurations(configs []ailink.Configuration) (string, error) {
	if len(configs) == 0 {
		return "No configurations found.", nil
	}

	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"ID", "Owner", "Provider", "Model", "Roles", "Base URL", "Created"})

	for _, cfg := range configs {
		t.AppendRow(table.Row{
			cfg.ID,
			cfg.OwnerID,
			cfg.Provider,
			cfg.ModelID,
			rolesLabel(cfg),
			baseURLLabel(cfg.BaseURLValue()),
			timestampLabel(cfg),
		})
	}

	t.AppendFooter(table.Row{"", "", "", "", "", "", fmt.Sprintf("%d total", len(configs))})
	return t.Render(), nil
}

// FormatProvider renders a resolved provider as a two-column table.
func (f *TableFormatter) FormatProvider(provider *ailink.Provider) (string, error) {
	if provider == nil {
		return "", nil
	}

	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendRows([]table.Row{
		{"Tier", string(provider.Tier)},
		{"Configuration", provider.ConfigID},
		{"Owner", provider.OwnerID},
		{"Provider", provider.Vendor},
		{"Model", provider.Model},
		{"Base URL", baseURLLabel(provider.BaseURL)},
	})
	return t.Render(), nil
}
