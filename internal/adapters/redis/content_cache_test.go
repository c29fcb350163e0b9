package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContentCache_GetSetInvalidate(t *testing.T) {
	client := setupTestRedis(t)
	defer client.Close()

	cache := NewContentCache(client, testPrefix())
	ctx := context.Background()

	_, ok, err := cache.Get(ctx, "warta", "page=1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, cache.Set(ctx, "warta", "page=1", []byte(`[1]`), time.Minute))
	require.NoError(t, cache.Set(ctx, "jadwal", "page=1", []byte(`[2]`), time.Minute))

	v, ok, err := cache.Get(ctx, "warta", "page=1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, `[1]`, string(v))

	require.NoError(t, cache.Invalidate(ctx, "warta"))

	_, ok, err = cache.Get(ctx, "warta", "page=1")
	require.NoError(t, err)
	assert.False(t, ok)

	// Other resources are untouched.
	v, ok, err = cache.Get(ctx, "jadwal", "page=1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, `[2]`, string(v))

	require.NoError(t, cache.Set(ctx, "warta", "page=1", []byte(`[3]`), time.Minute))
	v, ok, err = cache.Get(ctx, "warta", "page=1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, `[3]`, string(v))
}

func TestContentCache_EmptyArguments(t *testing.T) {
	cache := NewContentCache(nil, "")
	ctx := context.Background()

	_, _, err := cache.Get(ctx, "", "k")
	require.Error(t, err)
	require.Error(t, cache.Set(ctx, "r", "", nil, 0))
	require.Error(t, cache.Invalidate(ctx, ""))
}
