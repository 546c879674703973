package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/zycxfyh/nexus-verse/internal/ailink"
	"github.com/zycxfyh/nexus-verse/internal/ailink/content"
	"github.com/zycxfyh/nexus-verse/internal/ailink/driver"
	"github.com/zycxfyh/nexus-verse/internal/observability"
	"github.com/zycxfyh/nexus-verse/internal/output"
)

var (
	resolveOutput string

	completeSystem    string
	completeTimeout   time.Duration
	completeMaxTokens int
	completeJSON      bool
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <user-id> <role>",
	Short: "Show which provider serves a user's role",
	Long: `Run the resolution chain for (user, role) and print the chosen provider.

The credential is never printed. Exit status is non-zero when no provider is
available, including when FALLBACK_API_KEY is unset and the user owns no
configuration.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := output.ParseFormat(resolveOutput)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		provider, cleanup, err := resolveFromArgs(ctx, args)
		if err != nil {
			return err
		}
		defer cleanup()

		rendered, err := output.NewFormatter(format).FormatProvider(provider)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), rendered)
		return nil
	},
}

var completeCmd = &cobra.Command{
	Use:   "complete <user-id> <role> <prompt>",
	Short: "Resolve a provider and run one completion",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		prompt := strings.TrimSpace(args[2])
		if prompt == "" {
			return fmt.Errorf("%w: prompt is required", ailink.ErrInvalidRequest)
		}

		ctx := cmd.Context()
		provider, cleanup, err := resolveFromArgs(ctx, args[:2])
		if err != nil {
			return err
		}
		defer cleanup()

		req := &driver.Request{
			Messages: promptMessages(completeSystem, prompt),
		}
		if completeMaxTokens > 0 {
			req.MaxTokens = &completeMaxTokens
		}
		if completeJSON {
			req.ResponseFormat = &driver.ResponseFormat{Type: "json_object"}
		}

		callCtx, cancel := driver.WithTimeout(ctx, completeTimeout)
		if cancel != nil {
			defer cancel()
		}

		started := time.Now()
		resp, err := provider.Complete(callCtx, req)
		if err != nil {
			mapped := ailink.MapCompletionError(err)
			observability.CLILogger.Error("Completion failed",
				zap.String("tier", string(provider.Tier)),
				zap.String("provider", provider.Vendor),
				zap.String("code", mapped.Code),
				zap.Error(err))
			return mapped
		}

		observability.CLILogger.Debug("Completion finished",
			zap.String("tier", string(provider.Tier)),
			zap.String("model", resp.Model),
			zap.Duration("elapsed", time.Since(started)))

		fmt.Fprintln(cmd.OutOrStdout(), resp.Text())
		if resp.Usage != nil {
			observability.CLILogger.Info(fmt.Sprintf("[%s %s/%s] %d prompt + %d completion tokens",
				provider.Tier, provider.Vendor, provider.Model,
				resp.Usage.PromptTokens, resp.Usage.CompletionTokens))
		}
		return nil
	},
}

// resolveFromArgs runs the scheduler for args[0] (user) and args[1] (role). The
// returned cleanup closes the store and stops tracing.
func resolveFromArgs(ctx context.Context, args []string) (*ailink.Provider, func(), error) {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return nil, nil, err
	}

	stopTracing := enableTracing(cfg)
	repo, err := openRepository(ctx, cfg)
	if err != nil {
		stopTracing()
		return nil, nil, err
	}
	cleanup := func() {
		_ = repo.Close()
		stopTracing()
	}

	scheduler, _ := newScheduler(cfg, repo, observability.CLILogger)
	provider, err := scheduler.Resolve(ctx, ailink.User{ID: strings.TrimSpace(args[0])}, ailink.Role(args[1]))
	if err != nil {
		cleanup()
		if errors.Is(err, ailink.ErrServiceUnavailable) {
			observability.CLILogger.Warn("Set " + ailink.EnvFallbackAPIKey + " (and optionally " +
				ailink.EnvFallbackModelID + ", " + ailink.EnvFallbackBaseURL + ") or add a configuration with '" +
				rootCmd.Name() + " configs add'")
		}
		return nil, nil, err
	}
	return provider, cleanup, nil
}

func init() {
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(completeCmd)

	resolveCmd.Flags().StringVarP(&resolveOutput, "output", "o", "table", "output format: table, json, markdown")

	completeCmd.Flags().StringVar(&completeSystem, "system", "", "system prompt")
	completeCmd.Flags().DurationVar(&completeTimeout, "timeout", 0, "completion timeout (0 keeps ailink.default_timeout)")
	completeCmd.Flags().IntVar(&completeMaxTokens, "max-tokens", 0, "maximum completion tokens")
	completeCmd.Flags().BoolVar(&completeJSON, "json", false, "request a JSON object response")
}

func promptMessages(system, prompt string) []content.Message {
	messages := make([]content.Message, 0, 2)
	if strings.TrimSpace(system) != "" {
		messages = append(messages, content.TextMessage(content.RoleSystem, system))
	}
	return append(messages, content.TextMessage(content.RoleUser, prompt))
}
