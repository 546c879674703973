package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zycxfyh/nexus-verse/internal/config"
)

func TestBuildLibsqlDSN(t *testing.T) {
	t.Run("URLUsesRawValue", func(t *testing.T) {
		cfg := config.StoreConfig{
			URL:       "libsql://example.turso.io",
			AuthToken: "token123",
		}

		dsn, err := buildLibsqlDSN(cfg)
		require.NoError(t, err)
		require.Equal(t, "libsql://example.turso.io?authToken=token123", dsn)
	})

	t.Run("URLWithExistingQuery", func(t *testing.T) {
		cfg := config.StoreConfig{
			URL:       "libsql://example.turso.io?foo=bar",
			AuthToken: "token123",
		}

		dsn, err := buildLibsqlDSN(cfg)
		require.NoError(t, err)
		require.Equal(t, "libsql://example.turso.io?authToken=token123&foo=bar", dsn)
	})

	t.Run("PathWithFilePrefix", func(t *testing.T) {
		cfg := config.StoreConfig{Path: "file:./nexus-engine.db"}

		dsn, err := buildLibsqlDSN(cfg)
		require.NoError(t, err)
		require.Equal(t, "file:./nexus-engine.db", dsn)
		require.True(t, isLocalDSN(dsn))
	})

	t.Run("PlainPathGetsFilePrefix", func(t *testing.T) {
		dir := t.TempDir()
		dsn, err := buildLibsqlDSN(config.StoreConfig{Path: dir + "/nested/nexus.db"})
		require.NoError(t, err)
		require.Equal(t, "file:"+dir+"/nested/nexus.db", dsn)
		require.DirExists(t, dir+"/nested")
	})

	t.Run("PathMissing", func(t *testing.T) {
		cfg := config.StoreConfig{}

		_, err := buildLibsqlDSN(cfg)
		require.Error(t, err)
	})

	t.Run("MemoryPath", func(t *testing.T) {
		cfg := config.StoreConfig{Path: ":memory:"}

		dsn, err := buildLibsqlDSN(cfg)
		require.NoError(t, err)
		require.Equal(t, ":memory:", dsn)
		require.False(t, isLocalDSN(dsn))
	})
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := OpenRepository(context.Background(), config.StoreConfig{Driver: "postgres"})
	require.ErrorContains(t, err, "unsupported store driver")

	_, err = Open(context.Background(), config.StoreConfig{Driver: "mongodb"})
	require.Error(t, err)
}
