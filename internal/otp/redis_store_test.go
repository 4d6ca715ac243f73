package otp

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

func setupRedis(t *testing.T) (*redis.Client, func()) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	ctx := context.Background()
	container, err := tcredis.Run(ctx, "redis:7-alpine")
	require.NoError(t, err)

	uri, err := container.ConnectionString(ctx)
	require.NoError(t, err)
	opts, err := redis.ParseURL(uri)
	require.NoError(t, err)

	rdb := redis.NewClient(opts)
	return rdb, func() {
		_ = rdb.Close()
		_ = container.Terminate(ctx)
	}
}

func TestRedisStore(t *testing.T) {
	rdb, cleanup := setupRedis(t)
	defer cleanup()

	ctx := context.Background()
	store := NewRedisStore(rdb)

	_, err := store.Get(ctx, phone)
	assert.ErrorIs(t, err, ErrNoChallenge)

	require.NoError(t, store.Set(ctx, phone, "482910", time.Minute))
	code, err := store.Get(ctx, phone)
	require.NoError(t, err)
	assert.Equal(t, Code("482910"), code)

	ttl, err := rdb.TTL(ctx, "otp:"+phone).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, 50*time.Second)

	n, err := store.IncrAttempts(ctx, phone, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	n, err = store.IncrAttempts(ctx, phone, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	require.NoError(t, store.Set(ctx, phone, "111111", time.Minute))
	n, err = store.IncrAttempts(ctx, phone, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n, "set resets the attempt counter")

	require.NoError(t, store.Delete(ctx, phone))
	_, err = store.Get(ctx, phone)
	assert.ErrorIs(t, err, ErrNoChallenge)
	exists, err := rdb.Exists(ctx, "otp:attempts:"+phone).Result()
	require.NoError(t, err)
	assert.Zero(t, exists)
}

func TestRedisStore_Expiry(t *testing.T) {
	rdb, cleanup := setupRedis(t)
	defer cleanup()

	ctx := context.Background()
	store := NewRedisStore(rdb)

	require.NoError(t, store.Set(ctx, phone, "222222", time.Second))
	time.Sleep(1500 * time.Millisecond)

	_, err := store.Get(ctx, phone)
	assert.ErrorIs(t, err, ErrNoChallenge)
}
