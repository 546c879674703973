package ailink

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/fulmenhq/gofulmen/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryStore struct {
	mu      sync.Mutex
	configs []Configuration
	err     error
	calls   []string
}

func (m *memoryStore) FindDedicated(_ context.Context, ownerID string, role Role) (*Configuration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "dedicated")
	if m.err != nil {
		return nil, m.err
	}
	for _, cfg := range m.ordered() {
		if cfg.OwnerID == ownerID && cfg.AssignedRoles.Contains(role) {
			return &cfg, nil
		}
	}
	return nil, nil
}

func (m *memoryStore) FindEarliest(_ context.Context, ownerID string) (*Configuration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "earliest")
	if m.err != nil {
		return nil, m.err
	}
	for _, cfg := range m.ordered() {
		if cfg.OwnerID == ownerID {
			return &cfg, nil
		}
	}
	return nil, nil
}

func (m *memoryStore) ordered() []Configuration {
	out := append([]Configuration(nil), m.configs...)
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (m *memoryStore) remove(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.configs[:0]
	for _, cfg := range m.configs {
		if cfg.ID != id {
			kept = append(kept, cfg)
		}
	}
	m.configs = kept
}

var (
	t1 = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	t2 = t1.Add(time.Hour)
)

func userConfigs() []Configuration {
	return []Configuration{
		{ID: "A", OwnerID: "u1", Provider: ProviderOpenAI, APIKey: "ka", ModelID: "gpt-4o", AssignedRoles: RoleSet{"chat"}, CreatedAt: t1},
		{ID: "B", OwnerID: "u1", Provider: ProviderDeepSeek, APIKey: "kb", ModelID: "deepseek-chat", CreatedAt: t2},
	}
}

func fallbackEnv(key string) *FallbackBuilder {
	return &FallbackBuilder{Lookup: envLookup(map[string]string{EnvFallbackAPIKey: key})}
}

func newTestScheduler(t *testing.T, store *memoryStore, fallback *FallbackBuilder) *Scheduler {
	t.Helper()
	logger, err := logging.NewCLI("ailink-test")
	require.NoError(t, err)
	return NewScheduler(store, NewFactory(), fallback, logger)
}

func TestResolveDedicatedConfiguration(t *testing.T) {
	store := &memoryStore{configs: userConfigs()}
	scheduler := newTestScheduler(t, store, fallbackEnv(""))

	provider, err := scheduler.Resolve(context.Background(), User{ID: "u1"}, "chat")
	require.NoError(t, err)
	assert.Equal(t, "A", provider.ConfigID)
	assert.Equal(t, TierDedicated, provider.Tier)
	assert.Equal(t, []string{"dedicated"}, store.calls)
}

func TestResolveRequisitionsEarliestConfiguration(t *testing.T) {
	store := &memoryStore{configs: userConfigs()}
	scheduler := newTestScheduler(t, store, fallbackEnv(""))

	provider, err := scheduler.Resolve(context.Background(), User{ID: "u1"}, "summarize")
	require.NoError(t, err)
	assert.Equal(t, "A", provider.ConfigID)
	assert.Equal(t, TierRequisition, provider.Tier)
	assert.Equal(t, []string{"dedicated", "earliest"}, store.calls)
}

func TestResolveAfterDeletingEarliest(t *testing.T) {
	store := &memoryStore{configs: userConfigs()}
	scheduler := newTestScheduler(t, store, fallbackEnv(""))
	store.remove("A")

	provider, err := scheduler.Resolve(context.Background(), User{ID: "u1"}, "chat")
	require.NoError(t, err)
	assert.Equal(t, "B", provider.ConfigID)
	assert.Equal(t, TierRequisition, provider.Tier)
}

func TestResolveRoleMembershipIsNotSubstring(t *testing.T) {
	store := &memoryStore{configs: []Configuration{
		{ID: "bot", OwnerID: "u1", Provider: ProviderOpenAI, APIKey: "k", ModelID: "m1", AssignedRoles: RoleSet{"chatbot"}, CreatedAt: t1},
		{ID: "chat", OwnerID: "u1", Provider: ProviderOpenAI, APIKey: "k", ModelID: "m2", AssignedRoles: RoleSet{"chat"}, CreatedAt: t2},
	}}
	scheduler := newTestScheduler(t, store, fallbackEnv(""))

	provider, err := scheduler.Resolve(context.Background(), User{ID: "u1"}, "chat")
	require.NoError(t, err)
	assert.Equal(t, "chat", provider.ConfigID)
	assert.Equal(t, TierDedicated, provider.Tier)
}

func TestResolveEarliestTieBrokenByID(t *testing.T) {
	store := &memoryStore{configs: []Configuration{
		{ID: "z", OwnerID: "u1", Provider: ProviderOpenAI, APIKey: "k", ModelID: "m", CreatedAt: t1},
		{ID: "a", OwnerID: "u1", Provider: ProviderOpenAI, APIKey: "k", ModelID: "m", CreatedAt: t1},
	}}
	scheduler := newTestScheduler(t, store, fallbackEnv(""))

	provider, err := scheduler.Resolve(context.Background(), User{ID: "u1"}, "chat")
	require.NoError(t, err)
	assert.Equal(t, "a", provider.ConfigID)
}

func TestResolveIgnoresOtherUsersConfigurations(t *testing.T) {
	store := &memoryStore{configs: userConfigs()}
	scheduler := newTestScheduler(t, store, fallbackEnv("sk-system"))

	provider, err := scheduler.Resolve(context.Background(), User{ID: "u2"}, "chat")
	require.NoError(t, err)
	assert.Equal(t, SystemFallbackID, provider.ConfigID)
	assert.Equal(t, TierSystemFallback, provider.Tier)
	assert.Equal(t, SystemOwner, provider.OwnerID)
	assert.Equal(t, DefaultFallbackModel, provider.Model)
	assert.Equal(t, "deepseek", provider.Driver().Name())
}

func TestResolveUnavailableWithoutFallbackKey(t *testing.T) {
	store := &memoryStore{}
	scheduler := newTestScheduler(t, store, fallbackEnv(""))

	provider, err := scheduler.Resolve(context.Background(), User{ID: "u1"}, "chat")
	require.Nil(t, provider)
	require.Error(t, err)
	assert.Equal(t, UnavailableMessage, err.Error())
	assert.True(t, errors.Is(err, ErrServiceUnavailable))
	assert.False(t, errors.Is(err, ErrConfiguration))

	var uerr *UnavailableError
	require.ErrorAs(t, err, &uerr)
	assert.Equal(t, Role("chat"), uerr.Role)
	assert.ErrorIs(t, uerr.Cause(), ErrConfiguration)
}

func TestResolveUnavailableWhenFallbackCannotBeConstructed(t *testing.T) {
	factory := &Factory{strategies: map[string]Constructor{}}
	scheduler := NewScheduler(&memoryStore{}, factory, fallbackEnv("sk-system"), nil)

	_, err := scheduler.Resolve(context.Background(), User{ID: "u1"}, "chat")
	assert.ErrorIs(t, err, ErrServiceUnavailable)
}

func TestResolvePropagatesUnknownProviderTag(t *testing.T) {
	store := &memoryStore{configs: []Configuration{
		{ID: "bad", OwnerID: "u1", Provider: "Gemini", APIKey: "k", ModelID: "m", AssignedRoles: RoleSet{"chat"}, CreatedAt: t1},
	}}
	scheduler := newTestScheduler(t, store, fallbackEnv("sk-system"))

	_, err := scheduler.Resolve(context.Background(), User{ID: "u1"}, "chat")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConfiguration))
	assert.False(t, errors.Is(err, ErrServiceUnavailable))

	_, err = scheduler.Resolve(context.Background(), User{ID: "u1"}, "summarize")
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestResolvePropagatesStoreFailure(t *testing.T) {
	driverErr := errors.New("connection reset")
	store := &memoryStore{configs: userConfigs(), err: driverErr}
	scheduler := newTestScheduler(t, store, fallbackEnv("sk-system"))

	_, err := scheduler.Resolve(context.Background(), User{ID: "u1"}, "chat")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStoreFailure)
	assert.ErrorIs(t, err, driverErr)
	assert.False(t, errors.Is(err, ErrServiceUnavailable))
	assert.Equal(t, []string{"dedicated"}, store.calls)
}

func TestResolveRejectsInvalidRequests(t *testing.T) {
	scheduler := newTestScheduler(t, &memoryStore{}, fallbackEnv("sk-system"))

	_, err := scheduler.Resolve(context.Background(), User{}, "chat")
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = scheduler.Resolve(context.Background(), User{ID: "u1"}, "  ")
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestResolveRejectsDelimitedRole(t *testing.T) {
	store := &memoryStore{configs: []Configuration{
		{ID: "a", Provider: ProviderOpenAI, APIKey: "sk-a", ModelID: "gpt-4o-mini",
			AssignedRoles: NewRoleSet("chat", "summarize"), OwnerID: "u1", CreatedAt: time.Unix(100, 0)},
	}}
	scheduler := newTestScheduler(t, store, fallbackEnv("sk-system"))

	provider, err := scheduler.Resolve(context.Background(), User{ID: "u1"}, "chat,summarize")
	require.ErrorIs(t, err, ErrInvalidRequest)
	assert.Nil(t, provider)
	assert.Empty(t, store.calls, "no tier is consulted for a malformed role")
}

func TestResolveIsRepeatable(t *testing.T) {
	store := &memoryStore{configs: userConfigs()}
	scheduler := newTestScheduler(t, store, fallbackEnv(""))

	var wg sync.WaitGroup
	results := make([]string, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			provider, err := scheduler.Resolve(context.Background(), User{ID: "u1"}, "chat")
			if err == nil {
				results[i] = provider.ConfigID
			}
		}(i)
	}
	wg.Wait()

	for _, id := range results {
		assert.Equal(t, "A", id)
	}
}

func TestResolveBuildsFreshHandles(t *testing.T) {
	store := &memoryStore{configs: userConfigs()}
	scheduler := newTestScheduler(t, store, fallbackEnv(""))

	first, err := scheduler.Resolve(context.Background(), User{ID: "u1"}, "chat")
	require.NoError(t, err)
	second, err := scheduler.Resolve(context.Background(), User{ID: "u1"}, "chat")
	require.NoError(t, err)
	assert.NotSame(t, first, second)
}
