package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoopCacheAlwaysMisses(t *testing.T) {
	var c Cache = NoopCache{}
	require.NoError(t, c.Set(context.Background(), KeyFinanceRevenue, int64(5), time.Minute))

	var out int64
	hit, err := c.Get(context.Background(), KeyFinanceRevenue, &out)
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestRedisCacheRoundTrip(t *testing.T) {
	addr := os.Getenv("COUNTER_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("set COUNTER_TEST_REDIS_ADDR to run redis integration test")
	}

	ctx := context.Background()
	c := NewRedisCache(addr, os.Getenv("COUNTER_TEST_REDIS_PASSWORD"), 0)
	t.Cleanup(func() { _ = c.Close() })
	require.NoError(t, c.Ping(ctx))

	key := "counter:test:" + time.Now().Format(time.RFC3339Nano)
	t.Cleanup(func() { _ = c.Delete(ctx, key) })

	require.NoError(t, c.Set(ctx, key, map[string]int64{"revenue": 70000}, time.Minute))

	var out map[string]int64
	hit, err := c.Get(ctx, key, &out)
	require.NoError(t, err)
	require.True(t, hit)
	assert.Equal(t, int64(70000), out["revenue"])

	require.NoError(t, c.Delete(ctx, key))
	hit, err = c.Get(ctx, key, &out)
	require.NoError(t, err)
	assert.False(t, hit)
}
