package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/zycxfyh/nexus-verse/internal/ailink"
	"github.com/zycxfyh/nexus-verse/internal/observability"
	"github.com/zycxfyh/nexus-verse/internal/output"
)

var (
	configsOwner    string
	configsProvider string
	configsAPIKey   string
	configsModel    string
	configsBaseURL  string
	configsRoles    []string
	configsOutput   string
	configsUpsert   bool
)

// configurationFile is the YAML document accepted by 'configs import'.
type configurationFile struct {
	Configurations []ailink.Configuration `yaml:"configurations"`
}

var configsCmd = &cobra.Command{
	Use:   "configs",
	Short: "Manage users' AI configurations",
}

var configsAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add an AI configuration for a user",
	Example: `  nexus-engine configs add --owner u1 --provider DeepSeek --model deepseek-chat --api-key prompt --roles chat,story-writer
  nexus-engine configs add --owner u1 --provider OpenAI --model gpt-4o-mini --api-key "$OPENAI_API_KEY"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		apiKey, err := resolveAPIKeyFlag(configsAPIKey)
		if err != nil {
			return err
		}

		cfg := &ailink.Configuration{
			OwnerID:       configsOwner,
			Provider:      configsProvider,
			APIKey:        apiKey,
			ModelID:       configsModel,
			BaseURL:       ailink.StringPtr(configsBaseURL),
			AssignedRoles: ailink.NewRoleSet(configsRoles...),
		}

		return withRepository(cmd.Context(), func(ctx context.Context, repo ailink.Repository) error {
			if err := repo.CreateConfiguration(ctx, cfg); err != nil {
				return err
			}
			observability.CLILogger.Info("Configuration added",
				zap.String("id", cfg.ID),
				zap.String("owner", cfg.OwnerID),
				zap.String("provider", cfg.Label()),
				zap.Strings("roles", cfg.AssignedRoles.Strings()))
			fmt.Fprintln(cmd.OutOrStdout(), cfg.ID)
			return nil
		})
	},
}

var configsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configurations in creation order",
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := output.ParseFormat(configsOutput)
		if err != nil {
			return err
		}

		return withRepository(cmd.Context(), func(ctx context.Context, repo ailink.Repository) error {
			configs, err := repo.ListConfigurations(ctx, strings.TrimSpace(configsOwner))
			if err != nil {
				return err
			}
			rendered, err := output.NewFormatter(format).FormatConfigurations(configs)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), rendered)
			return nil
		})
	},
}

var configsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one configuration",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := output.ParseFormat(configsOutput)
		if err != nil {
			return err
		}

		return withRepository(cmd.Context(), func(ctx context.Context, repo ailink.Repository) error {
			cfg, err := repo.GetConfiguration(ctx, strings.TrimSpace(args[0]))
			if err != nil {
				return err
			}
			if cfg == nil {
				return fmt.Errorf("%w: %s", ailink.ErrConfigurationNotFound, args[0])
			}
			rendered, err := output.NewFormatter(format).FormatConfigurations([]ailink.Configuration{*cfg})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), rendered)
			return nil
		})
	},
}

var configsUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Change fields of a configuration",
	Long: `Change fields of a configuration. Only flags given on the command line are
applied; --base-url "" restores the provider default. Owner and creation time
never change, so requisition order is preserved.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRepository(cmd.Context(), func(ctx context.Context, repo ailink.Repository) error {
			cfg, err := repo.GetConfiguration(ctx, strings.TrimSpace(args[0]))
			if err != nil {
				return err
			}
			if cfg == nil {
				return fmt.Errorf("%w: %s", ailink.ErrConfigurationNotFound, args[0])
			}

			if err := applyConfigurationFlags(cmd, cfg); err != nil {
				return err
			}
			if err := repo.UpdateConfiguration(ctx, cfg); err != nil {
				return err
			}
			observability.CLILogger.Info("Configuration updated",
				zap.String("id", cfg.ID),
				zap.String("provider", cfg.Label()),
				zap.Strings("roles", cfg.AssignedRoles.Strings()))
			return nil
		})
	},
}

var configsRemoveCmd = &cobra.Command{
	Use:     "rm <id>...",
	Aliases: []string{"remove", "delete"},
	Short:   "Delete configurations",
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRepository(cmd.Context(), func(ctx context.Context, repo ailink.Repository) error {
			for _, id := range args {
				if err := repo.DeleteConfiguration(ctx, strings.TrimSpace(id)); err != nil {
					return err
				}
				observability.CLILogger.Info("Configuration deleted", zap.String("id", id))
			}
			return nil
		})
	},
}

var configsImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import configurations from a YAML file",
	Long: `Import configurations from a YAML file ("-" reads stdin):

  configurations:
    - owner_id: u1
      provider: DeepSeek
      api_key: sk-...
      model_id: deepseek-chat
      assigned_roles: [chat, story-writer]

Entries are created in file order, which fixes their requisition order. With
--upsert, entries whose id already exists are updated instead.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		file, err := readConfigurationFile(cmd.InOrStdin(), args[0])
		if err != nil {
			return err
		}
		if len(file.Configurations) == 0 {
			return fmt.Errorf("%w: %s contains no configurations", ailink.ErrInvalidRequest, args[0])
		}

		return withRepository(cmd.Context(), func(ctx context.Context, repo ailink.Repository) error {
			created, updated := 0, 0
			base := time.Now().UTC()
			for i := range file.Configurations {
				cfg := &file.Configurations[i]
				// Distinct creation times keep file order under the requisition sort.
				cfg.CreatedAt = base.Add(time.Duration(i) * time.Millisecond)
				applied, err := importConfiguration(ctx, repo, cfg, configsUpsert)
				if err != nil {
					return fmt.Errorf("configurations[%d]: %w", i, err)
				}
				if applied == "update" {
					updated++
				} else {
					created++
				}
			}
			observability.CLILogger.Info(fmt.Sprintf("Imported %d configurations (%d created, %d updated)",
				created+updated, created, updated))
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(configsCmd)
	configsCmd.AddCommand(configsAddCmd)
	configsCmd.AddCommand(configsListCmd)
	configsCmd.AddCommand(configsShowCmd)
	configsCmd.AddCommand(configsUpdateCmd)
	configsCmd.AddCommand(configsRemoveCmd)
	configsCmd.AddCommand(configsImportCmd)

	for _, c := range []*cobra.Command{configsAddCmd, configsUpdateCmd} {
		c.Flags().StringVar(&configsProvider, "provider", "", "provider tag: OpenAI, DeepSeek, xAI, Anthropic")
		c.Flags().StringVar(&configsAPIKey, "api-key", "", "API key, or 'prompt' to read it from stdin")
		c.Flags().StringVar(&configsModel, "model", "", "model id")
		c.Flags().StringVar(&configsBaseURL, "base-url", "", "custom base URL (empty uses the provider default)")
		c.Flags().StringSliceVar(&configsRoles, "roles", nil, "roles this configuration is dedicated to")
	}
	configsAddCmd.Flags().StringVar(&configsOwner, "owner", "", "owning user id")
	_ = configsAddCmd.MarkFlagRequired("owner")
	_ = configsAddCmd.MarkFlagRequired("provider")
	_ = configsAddCmd.MarkFlagRequired("model")
	_ = configsAddCmd.MarkFlagRequired("api-key")

	configsListCmd.Flags().StringVar(&configsOwner, "owner", "", "only list this user's configurations")
	for _, c := range []*cobra.Command{configsListCmd, configsShowCmd} {
		c.Flags().StringVarP(&configsOutput, "output", "o", "table", "output format: table, json, markdown")
	}

	configsImportCmd.Flags().BoolVar(&configsUpsert, "upsert", false, "update entries whose id already exists")
}

func withRepository(ctx context.Context, fn func(ctx context.Context, repo ailink.Repository) error) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	repo, err := openRepository(ctx, cfg)
	if err != nil {
		return err
	}
	defer repo.Close() // nolint:errcheck // best-effort cleanup
	return fn(ctx, repo)
}

func applyConfigurationFlags(cmd *cobra.Command, cfg *ailink.Configuration) error {
	flags := cmd.Flags()
	if flags.Changed("provider") {
		cfg.Provider = configsProvider
	}
	if flags.Changed("model") {
		cfg.ModelID = configsModel
	}
	if flags.Changed("base-url") {
		cfg.BaseURL = ailink.StringPtr(configsBaseURL)
	}
	if flags.Changed("roles") {
		cfg.AssignedRoles = ailink.NewRoleSet(configsRoles...)
	}
	if flags.Changed("api-key") {
		key, err := resolveAPIKeyFlag(configsAPIKey)
		if err != nil {
			return err
		}
		cfg.APIKey = key
	}
	return nil
}

func resolveAPIKeyFlag(value string) (string, error) {
	if !strings.EqualFold(strings.TrimSpace(value), "prompt") {
		return value, nil
	}
	return promptForValue("Enter API key: ")
}

func readConfigurationFile(stdin io.Reader, path string) (*configurationFile, error) {
	var r io.Reader
	if path == "-" {
		r = stdin
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", path, err)
		}
		defer f.Close() // nolint:errcheck // read-only
		r = f
	}

	var file configurationFile
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&file); err != nil {
		if errors.Is(err, io.EOF) {
			return &file, nil
		}
		return nil, fmt.Errorf("%w: parse %s: %v", ailink.ErrInvalidRequest, path, err)
	}
	return &file, nil
}

// importConfiguration creates cfg, or updates it when upsert is set and its id exists.
// It reports which of the two happened.
func importConfiguration(ctx context.Context, repo ailink.Repository, cfg *ailink.Configuration, upsert bool) (string, error) {
	if upsert && strings.TrimSpace(cfg.ID) != "" {
		existing, err := repo.GetConfiguration(ctx, strings.TrimSpace(cfg.ID))
		if err != nil {
			return "", err
		}
		if existing != nil {
			cfg.OwnerID = existing.OwnerID
			return "update", repo.UpdateConfiguration(ctx, cfg)
		}
	}
	return "create", repo.CreateConfiguration(ctx, cfg)
}
