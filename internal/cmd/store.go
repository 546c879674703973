package cmd

import (
	"context"

	"github.com/fulmenhq/gofulmen/logging"

	"github.com/zycxfyh/nexus-verse/internal/ailink"
	"github.com/zycxfyh/nexus-verse/internal/config"
	"github.com/zycxfyh/nexus-verse/internal/core/store"
)

func openRepository(ctx context.Context, cfg *config.Config) (ailink.Repository, error) {
	return store.OpenRepository(ctx, cfg.Store)
}

// newScheduler builds the resolution chain used by serve, resolve and complete.
func newScheduler(cfg *config.Config, repo ailink.ConfigurationStore, logger *logging.Logger) (*ailink.Scheduler, *ailink.Factory) {
	factory := ailink.NewFactory(cfg.AILink.FactoryOptions()...)
	fallback := &ailink.FallbackBuilder{Lookup: config.FallbackLookup(cfg.Fallback)}
	return ailink.NewScheduler(repo, factory, fallback, logger), factory
}
