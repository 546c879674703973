//go:build cgo

package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zycxfyh/nexus-verse/internal/ailink"
	"github.com/zycxfyh/nexus-verse/internal/config"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()
	s, err := Open(ctx, config.StoreConfig{
		Driver: "libsql",
		Path:   "file:" + t.TempDir() + "/configs.db",
	})
	require.NoError(t, err)
	require.NoError(t, s.Migrate(ctx))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seedConfiguration(t *testing.T, s *Store, id, owner string, created time.Time, roles ...string) *ailink.Configuration {
	t.Helper()
	cfg := &ailink.Configuration{
		ID:            id,
		Provider:      ailink.ProviderOpenAI,
		APIKey:        "sk-" + id,
		ModelID:       "gpt-4o-mini",
		AssignedRoles: ailink.NewRoleSet(roles...),
		OwnerID:       owner,
		CreatedAt:     created,
	}
	require.NoError(t, s.CreateConfiguration(context.Background(), cfg))
	return cfg
}

func TestConfigurationQueries(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("DedicatedMatchesWholeRoleOnly", func(t *testing.T) {
		s := openTestStore(t)
		seedConfiguration(t, s, "a", "u1", base, "chatbot")
		seedConfiguration(t, s, "b", "u1", base.Add(time.Minute), "summarize", "chat")

		got, err := s.FindDedicated(ctx, "u1", "chat")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "b", got.ID)
		assert.Equal(t, ailink.RoleSet{"summarize", "chat"}, got.AssignedRoles)

		got, err = s.FindDedicated(ctx, "u1", "chatb")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("DedicatedNeverMatchesDelimitedRole", func(t *testing.T) {
		s := openTestStore(t)
		seedConfiguration(t, s, "a", "u1", base, "chat", "summarize")

		got, err := s.FindDedicated(ctx, "u1", "chat,summarize")
		require.NoError(t, err)
		assert.Nil(t, got)

		got, err = s.FindDedicated(ctx, "u1", "summarize")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "a", got.ID)
	})

	t.Run("DedicatedMatchesRowsWrittenByOtherTools", func(t *testing.T) {
		s := openTestStore(t)
		_, err := s.DB.ExecContext(ctx, `
			INSERT INTO ai_configurations (`+configurationColumns+`)
			VALUES (?, ?, ?, NULL, ?, ?, ?, ?, ?)
		`, "ext", ailink.ProviderDeepSeek, "sk-ext", "deepseek-chat", "Chat, Summarize ", "u1",
			base.UnixNano(), base.UnixNano())
		require.NoError(t, err)

		got, err := s.FindDedicated(ctx, "u1", "summarize")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "ext", got.ID)
		assert.True(t, got.AssignedRoles.Contains("chat"))

		got, err = s.FindDedicated(ctx, "u1", "summ")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("DedicatedIsScopedToOwner", func(t *testing.T) {
		s := openTestStore(t)
		seedConfiguration(t, s, "a", "u1", base, "chat")

		got, err := s.FindDedicated(ctx, "u2", "chat")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("EarliestOrdersByCreatedThenID", func(t *testing.T) {
		s := openTestStore(t)
		seedConfiguration(t, s, "late", "u1", base.Add(time.Hour))
		seedConfiguration(t, s, "zeta", "u1", base)
		seedConfiguration(t, s, "alpha", "u1", base)

		got, err := s.FindEarliest(ctx, "u1")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "alpha", got.ID)
		assert.True(t, base.Equal(got.CreatedAt))
	})

	t.Run("EarliestEmpty", func(t *testing.T) {
		s := openTestStore(t)

		got, err := s.FindEarliest(ctx, "nobody")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("DeleteRevealsNextEarliest", func(t *testing.T) {
		s := openTestStore(t)
		seedConfiguration(t, s, "a", "u1", base)
		seedConfiguration(t, s, "b", "u1", base.Add(time.Second))

		require.NoError(t, s.DeleteConfiguration(ctx, "a"))
		got, err := s.FindEarliest(ctx, "u1")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "b", got.ID)
	})
}

func TestConfigurationCRUD(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	cfg := &ailink.Configuration{
		Provider:      " deepseek ",
		APIKey:        "sk-test",
		ModelID:       "deepseek-chat",
		BaseURL:       ailink.StringPtr("https://proxy.example.com"),
		AssignedRoles: ailink.NewRoleSet("Chat"),
		OwnerID:       "u1",
	}
	require.NoError(t, s.CreateConfiguration(ctx, cfg))
	require.NotEmpty(t, cfg.ID)
	require.False(t, cfg.CreatedAt.IsZero())

	got, err := s.GetConfiguration(ctx, cfg.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "https://proxy.example.com", got.BaseURLValue())
	assert.Equal(t, ailink.RoleSet{"chat"}, got.AssignedRoles)
	assert.Equal(t, "sk-test", got.APIKey)

	got.ModelID = "deepseek-reasoner"
	got.BaseURL = nil
	require.NoError(t, s.UpdateConfiguration(ctx, got))

	updated, err := s.GetConfiguration(ctx, cfg.ID)
	require.NoError(t, err)
	assert.Equal(t, "deepseek-reasoner", updated.ModelID)
	assert.Nil(t, updated.BaseURL)
	assert.True(t, cfg.CreatedAt.Equal(updated.CreatedAt))

	list, err := s.ListConfigurations(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, s.DeleteConfiguration(ctx, cfg.ID))
	require.ErrorIs(t, s.DeleteConfiguration(ctx, cfg.ID), ailink.ErrConfigurationNotFound)

	missing, err := s.GetConfiguration(ctx, cfg.ID)
	require.NoError(t, err)
	assert.Nil(t, missing)

	ghost := *cfg
	ghost.ID = "ghost"
	require.ErrorIs(t, s.UpdateConfiguration(ctx, &ghost), ailink.ErrConfigurationNotFound)
}

func TestCreateConfigurationRejectsInvalid(t *testing.T) {
	s := openTestStore(t)

	err := s.CreateConfiguration(context.Background(), &ailink.Configuration{
		Provider: ailink.ProviderOpenAI,
		ModelID:  "gpt-4o",
		OwnerID:  "u1",
	})
	require.ErrorIs(t, err, ailink.ErrInvalidRequest)
}

func TestConcurrentReadsDuringWrites(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	seedConfiguration(t, s, "seed", "u1", time.Now().Add(-time.Hour), "chat")

	var wg sync.WaitGroup
	errs := make(chan error, 40)
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := s.FindDedicated(ctx, "u1", "chat")
			errs <- err
		}()
		go func() {
			defer wg.Done()
			errs <- s.CreateConfiguration(ctx, &ailink.Configuration{
				Provider: ailink.ProviderOpenAI,
				APIKey:   "sk",
				ModelID:  "gpt-4o",
				OwnerID:  "u2",
			})
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
}
