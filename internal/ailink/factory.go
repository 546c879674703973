package ailink

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/zycxfyh/nexus-verse/internal/ailink/driver"
	"github.com/zycxfyh/nexus-verse/internal/ailink/driver/anthropic"
	"github.com/zycxfyh/nexus-verse/internal/ailink/driver/deepseek"
	"github.com/zycxfyh/nexus-verse/internal/ailink/driver/openai"
	"github.com/zycxfyh/nexus-verse/internal/ailink/driver/xai"
)

// DriverOptions are applied to every driver a Factory constructs.
type DriverOptions struct {
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Constructor builds a driver for a configuration that has already passed the
// factory's key and model checks. It must not perform network I/O.
type Constructor func(cfg Configuration, opts DriverOptions) (driver.Driver, error)

// ProviderFactory turns a configuration into a provider handle.
type ProviderFactory interface {
	Create(cfg Configuration) (*Provider, error)
}

// Option configures a Factory.
type Option func(*Factory)

// WithTimeout bounds every completion made by constructed drivers.
func WithTimeout(timeout time.Duration) Option {
	return func(f *Factory) { f.opts.Timeout = timeout }
}

// WithHTTPClient routes constructed drivers through client.
func WithHTTPClient(client *http.Client) Option {
	return func(f *Factory) { f.opts.HTTPClient = client }
}

// Factory maps vendor tags to construction strategies.
type Factory struct {
	mu         sync.RWMutex
	strategies map[string]Constructor
	opts       DriverOptions
}

// NewFactory returns a factory with the built-in strategies registered.
func NewFactory(options ...Option) *Factory {
	f := &Factory{strategies: make(map[string]Constructor)}
	for _, opt := range options {
		opt(f)
	}

	f.Register(ProviderOpenAI, newOpenAIDriver)
	f.Register(ProviderDeepSeek, newDeepSeekDriver)
	f.Register(ProviderXAI, newXAIDriver)
	f.Register(ProviderAnthropic, newAnthropicDriver)
	return f
}

// Register adds or replaces the strategy for tag.
func (f *Factory) Register(tag string, ctor Constructor) {
	key := normalizeTag(tag)
	if key == "" || ctor == nil {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.strategies[key] = ctor
}

// Supported lists the registered tags in sorted order.
func (f *Factory) Supported() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	tags := make([]string, 0, len(f.strategies))
	for tag := range f.strategies {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

// Create builds a provider handle from cfg. It never touches the network.
func (f *Factory) Create(cfg Configuration) (*Provider, error) {
	f.mu.RLock()
	ctor, ok := f.strategies[normalizeTag(cfg.Provider)]
	f.mu.RUnlock()

	if !ok {
		return nil, &ConfigError{
			ConfigID: cfg.ID,
			Provider: cfg.Provider,
			Reason:   fmt.Sprintf("no construction strategy for provider tag %q", cfg.Provider),
		}
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, &ConfigError{ConfigID: cfg.ID, Provider: cfg.Provider, Reason: "api key is empty"}
	}
	if strings.TrimSpace(cfg.ModelID) == "" {
		return nil, &ConfigError{ConfigID: cfg.ID, Provider: cfg.Provider, Reason: "model id is empty"}
	}

	drv, err := ctor(cfg, f.opts)
	if err != nil {
		return nil, &ConfigError{ConfigID: cfg.ID, Provider: cfg.Provider, Reason: "construct driver", Err: err}
	}

	return &Provider{
		ConfigID: cfg.ID,
		Vendor:   cfg.Provider,
		Model:    strings.TrimSpace(cfg.ModelID),
		BaseURL:  cfg.BaseURLValue(),
		OwnerID:  cfg.OwnerID,
		driver:   drv,
	}, nil
}

func normalizeTag(tag string) string {
	return strings.ToLower(strings.TrimSpace(tag))
}

func newOpenAIDriver(cfg Configuration, opts DriverOptions) (driver.Driver, error) {
	client := openai.NewClient(cfg.BaseURLValue(), cfg.APIKey)
	client.Timeout = opts.Timeout
	client.HTTPClient = opts.HTTPClient
	return client, nil
}

func newXAIDriver(cfg Configuration, opts DriverOptions) (driver.Driver, error) {
	client := xai.NewClient(cfg.BaseURLValue(), cfg.APIKey)
	client.Timeout = opts.Timeout
	client.HTTPClient = opts.HTTPClient
	return client, nil
}

func newDeepSeekDriver(cfg Configuration, opts DriverOptions) (driver.Driver, error) {
	client := deepseek.NewClient(cfg.BaseURLValue(), cfg.APIKey)
	client.Timeout = opts.Timeout
	client.HTTPClient = opts.HTTPClient
	return client, nil
}

func newAnthropicDriver(cfg Configuration, opts DriverOptions) (driver.Driver, error) {
	client := anthropic.NewClient(cfg.BaseURLValue(), cfg.APIKey)
	client.Timeout = opts.Timeout
	client.HTTPClient = opts.HTTPClient
	return client, nil
}
