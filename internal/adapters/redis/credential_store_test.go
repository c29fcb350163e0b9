package redis

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jemaat/portal/internal/data/cryptoutil"
	"github.com/jemaat/portal/internal/ports"
	"github.com/jemaat/portal/internal/testutil"
)

// setupTestRedis creates a Redis client for testing.
// Tests will be skipped if Redis is not available.
func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	return testutil.SetupTestRedis(t)
}

func testPrefix() string {
	return "test:" + uuid.NewString() + ":"
}

func TestCredentialStore_SetGetDelete(t *testing.T) {
	client := setupTestRedis(t)
	defer client.Close()

	prefix := testPrefix()
	store := NewCredentialStore(client, prefix)
	ctx := context.Background()

	_, err := store.Get(ctx, "c1")
	assert.ErrorIs(t, err, ports.ErrNoCredential)

	require.NoError(t, store.Set(ctx, "c1", "tok-1", time.Minute))
	got, err := store.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "tok-1", got)

	raw, err := client.Get(ctx, prefix+"c1:auth_token").Result()
	require.NoError(t, err)
	assert.Equal(t, "tok-1", raw)

	// A second login replaces the single slot.
	require.NoError(t, store.Set(ctx, "c1", "tok-2", time.Minute))
	got, err = store.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "tok-2", got)

	require.NoError(t, store.Delete(ctx, "c1"))
	_, err = store.Get(ctx, "c1")
	assert.ErrorIs(t, err, ports.ErrNoCredential)

	require.NoError(t, store.Delete(ctx, "c1"))
}

func TestCredentialStore_TTL(t *testing.T) {
	client := setupTestRedis(t)
	defer client.Close()

	prefix := testPrefix()
	store := NewCredentialStore(client, prefix)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "ttl", "tok", 30*time.Second))
	ttl, err := client.TTL(ctx, prefix+"ttl:auth_token").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
	assert.LessOrEqual(t, ttl, 30*time.Second)

	require.NoError(t, store.Set(ctx, "forever", "tok", 0))
	ttl, err = client.TTL(ctx, prefix+"forever:auth_token").Result()
	require.NoError(t, err)
	assert.Equal(t, time.Duration(-1), ttl)
}

func TestCredentialStore_Validation(t *testing.T) {
	store := NewCredentialStore(nil, "")
	ctx := context.Background()

	_, err := store.Get(ctx, "")
	assert.ErrorIs(t, err, ports.ErrNoCredential)
	require.Error(t, store.Set(ctx, "", "tok", 0))
	require.Error(t, store.Set(ctx, "c", "", 0))
	require.NoError(t, store.Delete(ctx, ""))
	assert.Equal(t, DefaultCredentialPrefix+"abc:auth_token", store.key("abc"))
}

func TestCredentialStore_Encrypted(t *testing.T) {
	client := setupTestRedis(t)
	defer client.Close()

	kr, err := cryptoutil.NewKeyring(cryptoutil.DeriveKey("test key"))
	require.NoError(t, err)

	prefix := testPrefix()
	store := NewCredentialStore(client, prefix).WithSealer(kr)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "c1", "tok-secret", time.Minute))

	raw, err := client.Get(ctx, prefix+"c1:auth_token").Result()
	require.NoError(t, err)
	assert.NotContains(t, raw, "tok-secret")

	got, err := store.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "tok-secret", got)

	// A token copied under another client does not open.
	require.NoError(t, client.Set(ctx, prefix+"c2:auth_token", raw, time.Minute).Err())
	_, err = store.Get(ctx, "c2")
	assert.ErrorIs(t, err, ports.ErrNoCredential)
}
