package store_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	auth "github.com/goliatone/go-auth-client"
	"github.com/goliatone/go-auth-client/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exerciseTokenStore(t *testing.T, s auth.TokenStore) {
	t.Helper()
	ctx := context.Background()

	_, ok, err := s.Get(ctx, "session_token")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set(ctx, "session_token", "sess-1"))
	v, ok, err := s.Get(ctx, "session_token")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "sess-1", v)

	require.NoError(t, s.Set(ctx, "session_token", "sess-2"))
	v, _, err = s.Get(ctx, "session_token")
	require.NoError(t, err)
	assert.Equal(t, "sess-2", v)

	require.NoError(t, s.Set(ctx, "access_token", "acc"))
	require.NoError(t, s.Delete(ctx, "session_token"))

	_, ok, err = s.Get(ctx, "session_token")
	require.NoError(t, err)
	assert.False(t, ok)

	v, ok, err = s.Get(ctx, "access_token")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "acc", v)

	// deleting a missing key is not an error
	require.NoError(t, s.Delete(ctx, "missing"))
}

func TestMemoryStore(t *testing.T) {
	exerciseTokenStore(t, store.NewMemory(nil))
}

func TestMemoryStore_SeedAndSnapshot(t *testing.T) {
	seed := map[string]string{"session_token": "seeded"}
	m := store.NewMemory(seed)
	seed["session_token"] = "mutated"

	v, ok, err := m.Get(context.Background(), "session_token")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "seeded", v)

	snap := m.Snapshot()
	snap["session_token"] = "changed"
	assert.Equal(t, "seeded", m.Snapshot()["session_token"])
}

func TestMemoryStore_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	m := store.NewMemory(nil)
	assert.ErrorIs(t, m.Set(ctx, "k", "v"), context.Canceled)
	_, _, err := m.Get(ctx, "k")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "tokens.json")
	exerciseTokenStore(t, store.NewFile(path))
}

func TestFileStore_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens.json")
	ctx := context.Background()

	require.NoError(t, store.NewFile(path).Set(ctx, "session_token", "persisted"))

	reopened := store.NewFile(path)
	assert.Equal(t, path, reopened.Path())
	v, ok, err := reopened.Get(ctx, "session_token")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "persisted", v)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestFileStore_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, _, err := store.NewFile(path).Get(context.Background(), "session_token")
	assert.Error(t, err)
}

func TestSQLStore(t *testing.T) {
	ctx := context.Background()
	s, err := store.OpenSQLite(ctx, "file::memory:?cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	exerciseTokenStore(t, s)
}

func TestSQLStore_InitIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s, err := store.OpenSQLite(ctx, filepath.Join(t.TempDir(), "client.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	require.NoError(t, s.Set(ctx, "sidebar_collapsed", "true"))
	require.NoError(t, s.Init(ctx))

	v, ok, err := s.Get(ctx, "sidebar_collapsed")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "true", v)

	var count int
	count, err = s.DB().NewSelect().Model((*store.Entry)(nil)).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}

	ctx := context.Background()
	s, err := store.OpenRedis(ctx, store.RedisConfig{
		Addr:   addr,
		Prefix: "auth-client-test:" + time.Now().Format("150405.000000") + ":",
		TTL:    time.Minute,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	exerciseTokenStore(t, s)
}

func TestOpenRedis_RequiresAddr(t *testing.T) {
	_, err := store.OpenRedis(context.Background(), store.RedisConfig{})
	assert.Error(t, err)
}
