package settings

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisStore(t *testing.T) *RedisStore {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisStore(client)
}

func TestRedisStore(t *testing.T) {
	store := newTestRedisStore(t)
	ctx := context.Background()

	_, ok, err := store.Get(ctx, "auto-remove--authorized", "newsletter")
	require.NoError(t, err)
	assert.False(t, ok, "unsaved key reports ok=false")

	require.NoError(t, store.Save(ctx, "auto-remove--authorized", "99 years", "newsletter"))

	value, ok, err := store.Get(ctx, "auto-remove--authorized", "newsletter")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "99 years", value)
}

func TestRedisStoreNamespaceIsolation(t *testing.T) {
	store := newTestRedisStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "theme", "dark", "newsletter"))
	require.NoError(t, store.Save(ctx, "theme", "light", "cms"))

	value, ok, err := store.Get(ctx, "theme", "newsletter")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "dark", value)

	value, _, err = store.Get(ctx, "theme", "cms")
	require.NoError(t, err)
	assert.Equal(t, "light", value)
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	_, ok, err := store.Get(ctx, "missing", "newsletter")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Save(ctx, "should-remove-records", "true", "newsletter"))

	value, ok, err := store.Get(ctx, "should-remove-records", "newsletter")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "true", value)
}
