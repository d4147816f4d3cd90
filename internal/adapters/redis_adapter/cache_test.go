package redis_a_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	redis_a "github.com/Colin-nwk/ubuxa-agent-sub000/internal/adapters/redis_adapter"
	"github.com/Colin-nwk/ubuxa-agent-sub000/internal/core/domain"
	"github.com/Colin-nwk/ubuxa-agent-sub000/internal/core/ports"
	"github.com/Colin-nwk/ubuxa-agent-sub000/test/helpers"
)

func setupCache(t *testing.T) (*redis_a.Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return redis_a.NewCache(client, 5*time.Minute, helpers.TestLogger()), mr
}

func TestCache_SetWithTTLAndGet(t *testing.T) {
	ctx := context.Background()
	cache, _ := setupCache(t)

	t.Run("stores_and_retrieves_records", func(t *testing.T) {
		packages := domain.DefaultSeedData().Packages
		require.NoError(t, cache.SetWithTTL(ctx, "ref:packages", packages, 0))

		var result []*domain.Package
		require.NoError(t, cache.Get(ctx, "ref:packages", &result))
		assert.Equal(t, packages, result)
	})

	t.Run("stores_and_retrieves_string", func(t *testing.T) {
		require.NoError(t, cache.SetWithTTL(ctx, "test:string", "test value", 0))

		var result string
		require.NoError(t, cache.Get(ctx, "test:string", &result))
		assert.Equal(t, "test value", result)
	})

	t.Run("missing_key_is_a_miss", func(t *testing.T) {
		var result string
		err := cache.Get(ctx, "ref:devices", &result)
		assert.ErrorIs(t, err, redis_a.ErrCacheMiss)
		assert.ErrorIs(t, err, ports.ErrCacheMiss)
	})

	t.Run("unmarshalable_value_fails", func(t *testing.T) {
		err := cache.SetWithTTL(ctx, "test:chan", make(chan int), 0)
		assert.Error(t, err)
	})
}

func TestCache_SetWithTTL(t *testing.T) {
	ctx := context.Background()
	cache, mr := setupCache(t)

	require.NoError(t, cache.SetWithTTL(ctx, "ttl:test", "value", 100*time.Millisecond))

	var result string
	require.NoError(t, cache.Get(ctx, "ttl:test", &result))
	assert.Equal(t, "value", result)

	mr.FastForward(200 * time.Millisecond)

	err := cache.Get(ctx, "ttl:test", &result)
	assert.ErrorIs(t, err, redis_a.ErrCacheMiss)
}

func TestCache_DefaultTTL(t *testing.T) {
	cache, mr := setupCache(t)

	require.NoError(t, cache.SetWithTTL(context.Background(), "ref:customers", []string{"1"}, 0))
	assert.Equal(t, 5*time.Minute, mr.TTL("ref:customers"))
}

func TestCache_Delete(t *testing.T) {
	ctx := context.Background()
	cache, _ := setupCache(t)

	keys := []string{"ref:customers", "ref:inventory", "ref:devices"}
	for _, key := range keys {
		require.NoError(t, cache.SetWithTTL(ctx, key, "value", 0))
	}

	require.NoError(t, cache.Delete(ctx, keys...))
	require.NoError(t, cache.Delete(ctx))

	for _, key := range keys {
		var result string
		assert.ErrorIs(t, cache.Get(ctx, key, &result), redis_a.ErrCacheMiss)
	}
}

func TestCache_DeletePattern(t *testing.T) {
	ctx := context.Background()
	cache, _ := setupCache(t)

	keysToDelete := []string{"ref:customers", "ref:inventory", "ref:packages", "ref:devices"}
	keysToKeep := []string{"session:1", "other:2"}

	for _, key := range append(keysToDelete, keysToKeep...) {
		require.NoError(t, cache.SetWithTTL(ctx, key, "value", 0))
	}

	require.NoError(t, cache.DeletePattern(ctx, "ref:*"))

	for _, key := range keysToDelete {
		var result string
		assert.ErrorIs(t, cache.Get(ctx, key, &result), redis_a.ErrCacheMiss, "key should be invalidated: %s", key)
	}

	for _, key := range keysToKeep {
		var result string
		require.NoError(t, cache.Get(ctx, key, &result))
		assert.Equal(t, "value", result)
	}

	// nothing left to match
	assert.NoError(t, cache.DeletePattern(ctx, "ref:*"))
}

func TestCache_Ping(t *testing.T) {
	cache, mr := setupCache(t)

	assert.NoError(t, cache.Ping(context.Background()))

	mr.Close()
	assert.Error(t, cache.Ping(context.Background()))
}

func TestNoopCache(t *testing.T) {
	ctx := context.Background()
	var cache ports.CacheRepository = redis_a.NoopCache{}

	require.NoError(t, cache.SetWithTTL(ctx, "ref:packages", "value", 0))

	var result string
	assert.ErrorIs(t, cache.Get(ctx, "ref:packages", &result), ports.ErrCacheMiss)

	assert.NoError(t, cache.DeletePattern(ctx, "ref:*"))
	assert.NoError(t, cache.Ping(ctx))
}
