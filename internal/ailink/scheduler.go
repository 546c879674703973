package ailink

import (
	"context"
	"fmt"
	"strings"

	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"

	"github.com/zycxfyh/nexus-verse/internal/metrics"
)

// Resolver resolves the provider that serves a user's request for a role.
type Resolver interface {
	Resolve(ctx context.Context, user User, role Role) (*Provider, error)
}

// FallbackSource produces the system configuration used when a user has none.
type FallbackSource interface {
	Build() (*Configuration, error)
}

// Scheduler walks the dedicated, requisition and system fallback tiers in order.
// It keeps no state between calls.
type Scheduler struct {
	store    ConfigurationStore
	factory  ProviderFactory
	fallback FallbackSource
	logger   *logging.Logger
}

// NewScheduler wires a scheduler. A nil logger disables logging.
func NewScheduler(store ConfigurationStore, factory ProviderFactory, fallback FallbackSource, logger *logging.Logger) *Scheduler {
	if factory == nil {
		factory = NewFactory()
	}
	if fallback == nil {
		fallback = NewEnvFallback()
	}
	return &Scheduler{store: store, factory: factory, fallback: fallback, logger: logger}
}

type step struct {
	tier Tier
	find func(ctx context.Context, user User, role Role) (*Configuration, error)
}

func (s *Scheduler) steps() []step {
	return []step{
		{tier: TierDedicated, find: s.findDedicated},
		{tier: TierRequisition, find: s.findRequisition},
	}
}

// Resolve returns a provider handle for (user, role).
//
// Store failures surface as *StoreError and factory failures on user configurations as
// *ConfigError. When the user owns no configuration and the system fallback cannot be
// built, the result is *UnavailableError.
func (s *Scheduler) Resolve(ctx context.Context, user User, role Role) (*Provider, error) {
	role = NormalizeRole(role)
	if strings.TrimSpace(user.ID) == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidRequest)
	}
	if role == "" {
		return nil, fmt.Errorf("%w: role is required", ErrInvalidRequest)
	}
	if !ValidRole(role) {
		return nil, fmt.Errorf("%w: role %q must not contain %q", ErrInvalidRequest, role, roleDelimiter)
	}

	s.debug("New resolution request", zap.String("user_id", user.ID), zap.String("role", string(role)))

	for _, st := range s.steps() {
		cfg, err := st.find(ctx, user, role)
		if err != nil {
			metrics.RecordResolution(string(st.tier), "error")
			return nil, err
		}
		if cfg == nil {
			continue
		}

		provider, err := s.factory.Create(*cfg)
		if err != nil {
			s.logError("Configuration could not be turned into a provider",
				zap.String("tier", string(st.tier)),
				zap.String("config_id", cfg.ID),
				zap.String("provider", cfg.Provider),
				zap.Error(err))
			metrics.RecordResolution(string(st.tier), "error")
			return nil, err
		}
		provider.Tier = st.tier
		metrics.RecordResolution(string(st.tier), "success")
		return provider, nil
	}

	return s.resolveFallback(role)
}

func (s *Scheduler) findDedicated(ctx context.Context, user User, role Role) (*Configuration, error) {
	cfg, err := s.store.FindDedicated(ctx, user.ID, role)
	if err != nil {
		return nil, &StoreError{Op: "find dedicated", Err: err}
	}
	if cfg == nil {
		s.debug("No dedicated AI found for role", zap.String("role", string(role)))
		return nil, nil
	}
	s.info("Found dedicated configuration",
		zap.String("tier", string(TierDedicated)),
		zap.String("model", cfg.Label()),
		zap.String("role", string(role)))
	return cfg, nil
}

func (s *Scheduler) findRequisition(ctx context.Context, user User, role Role) (*Configuration, error) {
	cfg, err := s.store.FindEarliest(ctx, user.ID)
	if err != nil {
		return nil, &StoreError{Op: "find earliest", Err: err}
	}
	if cfg == nil {
		s.debug("User has no AI configurations at all", zap.String("user_id", user.ID))
		return nil, nil
	}
	s.info("Requisitioning general-purpose configuration",
		zap.String("tier", string(TierRequisition)),
		zap.String("model", cfg.Label()),
		zap.String("role", string(role)))
	return cfg, nil
}

func (s *Scheduler) resolveFallback(role Role) (*Provider, error) {
	s.warn("Falling back to system default AI",
		zap.String("tier", string(TierSystemFallback)),
		zap.String("role", string(role)))

	provider, err := s.buildFallback()
	if err != nil {
		s.logError("System fallback AI failed to initialize; check the FALLBACK_* variables",
			zap.String("role", string(role)),
			zap.Error(err))
		metrics.RecordResolution(string(TierSystemFallback), "unavailable")
		return nil, &UnavailableError{Role: role, cause: err}
	}

	provider.Tier = TierSystemFallback
	metrics.RecordResolution(string(TierSystemFallback), "success")
	return provider, nil
}

func (s *Scheduler) buildFallback() (*Provider, error) {
	cfg, err := s.fallback.Build()
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, &ConfigError{ConfigID: SystemFallbackID, Reason: "fallback produced no configuration"}
	}
	return s.factory.Create(*cfg)
}

func (s *Scheduler) debug(msg string, fields ...zap.Field) {
	if s.logger != nil {
		s.logger.Debug(msg, fields...)
	}
}

func (s *Scheduler) info(msg string, fields ...zap.Field) {
	if s.logger != nil {
		s.logger.Info(msg, fields...)
	}
}

func (s *Scheduler) warn(msg string, fields ...zap.Field) {
	if s.logger != nil {
		s.logger.Warn(msg, fields...)
	}
}

func (s *Scheduler) logError(msg string, fields ...zap.Field) {
	if s.logger != nil {
		s.logger.Error(msg, fields...)
	}
}
