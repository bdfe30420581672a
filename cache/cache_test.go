package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLimiter(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLimiter(LimitRule{Name: "login", Max: 5, Window: 15 * time.Minute})

	for i := 0; i < 5; i++ {
		ok, err := l.Allow(ctx, "10.0.0.1")
		require.NoError(t, err)
		assert.True(t, ok, "request %d", i+1)
	}
	ok, _ := l.Allow(ctx, "10.0.0.1")
	assert.False(t, ok)

	ok, _ = l.Allow(ctx, "10.0.0.2")
	assert.True(t, ok, "keys are independent")
}

func TestMemoryLimiterCleanup(t *testing.T) {
	l := NewMemoryLimiter(LimitRule{Max: 1, Window: time.Millisecond})
	_, _ = l.Allow(context.Background(), "a")
	time.Sleep(5 * time.Millisecond)
	l.Cleanup()
	assert.Empty(t, l.clients)
}

func TestMemoryRevocations(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRevocations()
	now := time.Now()
	r.now = func() time.Time { return now }

	require.NoError(t, r.Revoke(ctx, "a", time.Hour))
	revoked, err := r.IsRevoked(ctx, "a")
	require.NoError(t, err)
	assert.True(t, revoked)

	revoked, _ = r.IsRevoked(ctx, "b")
	assert.False(t, revoked)

	now = now.Add(2 * time.Hour)
	revoked, _ = r.IsRevoked(ctx, "a")
	assert.False(t, revoked)
	require.NoError(t, r.Revoke(ctx, "c", time.Hour))
	assert.NotContains(t, r.ids, "a")
}

// TestRedisBackends runs against a live server when REDIS_TEST_ADDR is set.
func TestRedisBackends(t *testing.T) {
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}
	ctx := context.Background()
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()
	require.NoError(t, client.Ping(ctx).Err())

	l := NewRedisLimiter(client, LimitRule{Name: uuid.NewString(), Max: 2, Window: time.Minute})
	for i := 0; i < 2; i++ {
		ok, err := l.Allow(ctx, "ip")
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, err := l.Allow(ctx, "ip")
	require.NoError(t, err)
	assert.False(t, ok)

	rv := NewRedisRevocations(client)
	jti := uuid.NewString()
	require.NoError(t, rv.Revoke(ctx, jti, time.Minute))
	revoked, err := rv.IsRevoked(ctx, jti)
	require.NoError(t, err)
	assert.True(t, revoked)
}
