//go:build integration

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func newRedisContainer(t *testing.T) *redis.Client {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err, "Failed to start Redis container")
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Warning: Failed to terminate container: %v", err)
		}
	})

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: endpoint})
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.Ping(ctx).Err())
	return client
}

func TestRedisStores(t *testing.T) {
	client := newRedisContainer(t)
	ctx := context.Background()

	t.Run("call budget counts within a window", func(t *testing.T) {
		store := NewRedisCallBudgetStore(client)
		for i := int64(1); i <= 3; i++ {
			n, resetIn, err := store.Increment(ctx, "shopify:ratelimit:acme", 20*time.Second)
			require.NoError(t, err)
			assert.Equal(t, i, n)
			assert.Greater(t, resetIn, 18*time.Second)
			assert.LessOrEqual(t, resetIn, 20*time.Second)
		}
	})

	t.Run("call budget resets after the window", func(t *testing.T) {
		store := NewRedisCallBudgetStore(client)
		_, _, err := store.Increment(ctx, "shopify:ratelimit:short", 100*time.Millisecond)
		require.NoError(t, err)

		time.Sleep(200 * time.Millisecond)
		n, _, err := store.Increment(ctx, "shopify:ratelimit:short", 100*time.Millisecond)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
	})

	t.Run("counter without ttl is re-armed", func(t *testing.T) {
		require.NoError(t, client.Set(ctx, "shopify:ratelimit:stuck", 99, 0).Err())
		store := NewRedisCallBudgetStore(client)

		n, resetIn, err := store.Increment(ctx, "shopify:ratelimit:stuck", 20*time.Second)
		require.NoError(t, err)
		assert.Equal(t, int64(100), n)
		assert.Greater(t, resetIn, time.Duration(0))

		ttl, err := client.PTTL(ctx, "shopify:ratelimit:stuck").Result()
		require.NoError(t, err)
		assert.Greater(t, ttl, time.Duration(0))
	})

	t.Run("delivery ids are recorded once", func(t *testing.T) {
		store := NewRedisIdempotencyStore(client, "")

		isNew, err := store.MarkProcessed(ctx, "delivery-1", time.Hour)
		require.NoError(t, err)
		assert.True(t, isNew)

		isNew, err = store.MarkProcessed(ctx, "delivery-1", time.Hour)
		require.NoError(t, err)
		assert.False(t, isNew)

		seen, err := store.IsProcessed(ctx, "delivery-1")
		require.NoError(t, err)
		assert.True(t, seen)

		exists, err := client.Exists(ctx, DefaultDeliveryKeyPrefix+"delivery-1").Result()
		require.NoError(t, err)
		assert.Equal(t, int64(1), exists)
	})
}
