//go:build cgo

package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zycxfyh/nexus-verse/internal/ailink"
	"github.com/zycxfyh/nexus-verse/internal/config"
)

func TestOpenMemoryStore(t *testing.T) {
	ctx := context.Background()

	store, err := Open(ctx, config.StoreConfig{Driver: "libsql", Path: ":memory:"})
	require.NoError(t, err)
	require.Equal(t, "libsql", store.Driver())
	require.NoError(t, store.Ping(ctx))
	require.NoError(t, store.Close())
}

func TestOpenLocalStoreUsesSingleWriterWAL(t *testing.T) {
	ctx := context.Background()

	store, err := Open(ctx, config.StoreConfig{
		Driver: "libsql",
		Path:   "file:" + filepath.Join(t.TempDir(), "nexus-engine.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	require.Equal(t, 1, store.DB.Stats().MaxOpenConnections)

	var journalMode string
	require.NoError(t, store.DB.QueryRowContext(ctx, "PRAGMA journal_mode").Scan(&journalMode))
	require.Contains(t, journalMode, "wal")

	var busyTimeout int
	require.NoError(t, store.DB.QueryRowContext(ctx, "PRAGMA busy_timeout").Scan(&busyTimeout))
	require.GreaterOrEqual(t, busyTimeout, 1000)
}

func TestOpenRepositoryPersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	cfg := config.StoreConfig{
		Driver: "libsql",
		Path:   "file:" + filepath.Join(t.TempDir(), "nexus-engine.db"),
	}

	repo, err := OpenRepository(ctx, cfg)
	require.NoError(t, err)
	created := &ailink.Configuration{
		OwnerID:       "u1",
		Provider:      ailink.ProviderDeepSeek,
		APIKey:        "sk-user",
		ModelID:       "deepseek-chat",
		AssignedRoles: ailink.NewRoleSet("chat"),
	}
	require.NoError(t, repo.CreateConfiguration(ctx, created))
	require.NoError(t, repo.Close())

	// Migrations run again on reopen and must leave existing rows alone.
	repo, err = OpenRepository(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	found, err := repo.FindDedicated(ctx, "u1", "chat")
	require.NoError(t, err)
	require.NotNil(t, found)
	require.Equal(t, created.ID, found.ID)
	require.Equal(t, "sk-user", found.APIKey)
}
