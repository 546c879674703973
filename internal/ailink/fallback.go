package ailink

import (
	"os"
	"strings"
	"time"
)

// Environment keys read by the fallback builder.
const (
	EnvFallbackAPIKey  = "FALLBACK_API_KEY"
	EnvFallbackModelID = "FALLBACK_MODEL_ID"
	EnvFallbackBaseURL = "FALLBACK_BASE_URL"

	DefaultFallbackModel = "deepseek-chat"
)

// FallbackBuilder synthesizes the system configuration from the environment. It
// reads on every call so rotated credentials take effect without a restart.
type FallbackBuilder struct {
	// Lookup resolves an environment key; nil means os.Getenv.
	Lookup func(key string) string
	// Now stamps the configuration; nil means time.Now.
	Now func() time.Time
}

// NewEnvFallback returns a builder backed by the process environment.
func NewEnvFallback() *FallbackBuilder {
	return &FallbackBuilder{Lookup: os.Getenv, Now: time.Now}
}

// Build returns the system fallback configuration or a *ConfigError when no key is set.
func (b *FallbackBuilder) Build() (*Configuration, error) {
	apiKey := b.get(EnvFallbackAPIKey)
	if apiKey == "" {
		return nil, &ConfigError{
			ConfigID: SystemFallbackID,
			Provider: ProviderDeepSeek,
			Reason:   EnvFallbackAPIKey + " is not set",
		}
	}

	model := b.get(EnvFallbackModelID)
	if model == "" {
		model = DefaultFallbackModel
	}

	now := time.Now()
	if b != nil && b.Now != nil {
		now = b.Now()
	}

	return &Configuration{
		ID:            SystemFallbackID,
		Provider:      ProviderDeepSeek,
		APIKey:        apiKey,
		BaseURL:       StringPtr(b.get(EnvFallbackBaseURL)),
		ModelID:       model,
		AssignedRoles: RoleSet{SystemDefaultRole},
		OwnerID:       SystemOwner,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

func (b *FallbackBuilder) get(key string) string {
	lookup := os.Getenv
	if b != nil && b.Lookup != nil {
		lookup = b.Lookup
	}
	return strings.TrimSpace(lookup(key))
}
