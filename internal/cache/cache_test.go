package cache

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCache(t *testing.T) {
	ctx := context.Background()

	t.Run("set then get", func(t *testing.T) {
		c := NewMemoryCache(10, time.Minute)
		c.Set(ctx, "k", "v")

		got, ok := c.Get(ctx, "k")
		assert.True(t, ok)
		assert.Equal(t, "v", got)
	})

	t.Run("miss", func(t *testing.T) {
		c := NewMemoryCache(10, time.Minute)
		_, ok := c.Get(ctx, "absent")
		assert.False(t, ok)
	})

	t.Run("expired entries are misses", func(t *testing.T) {
		// ARRANGE
		c := NewMemoryCache(10, time.Minute)
		now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
		c.now = func() time.Time { return now }
		c.Set(ctx, "k", "v")

		// ACT
		now = now.Add(2 * time.Minute)
		_, ok := c.Get(ctx, "k")

		// ASSERT
		assert.False(t, ok)
	})

	t.Run("evicts the oldest entry when full", func(t *testing.T) {
		c := NewMemoryCache(2, time.Minute)
		now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
		c.now = func() time.Time { return now }

		c.Set(ctx, "first", "1")
		now = now.Add(time.Second)
		c.Set(ctx, "second", "2")
		now = now.Add(time.Second)
		c.Set(ctx, "third", "3")

		assert.Equal(t, 2, c.Len())
		_, ok := c.Get(ctx, "first")
		assert.False(t, ok)
		_, ok = c.Get(ctx, "third")
		assert.True(t, ok)
	})

	t.Run("overwriting does not evict", func(t *testing.T) {
		c := NewMemoryCache(1, time.Minute)
		c.Set(ctx, "k", "v1")
		c.Set(ctx, "k", "v2")

		got, ok := c.Get(ctx, "k")
		require.True(t, ok)
		assert.Equal(t, "v2", got)
	})
}

func TestKey(t *testing.T) {
	a := Key("page", "https://a.com")
	assert.Equal(t, a, Key("page", "https://a.com"))
	assert.NotEqual(t, a, Key("page", "https://b.com"))
	assert.NotEqual(t, a, Key("search", "https://a.com"))
	assert.True(t, strings.HasPrefix(a, "fireflies:page:"))
}

func TestNew_FallsBackToMemory(t *testing.T) {
	c, closeFn := New(context.Background(), "", time.Minute)
	defer func() { require.NoError(t, closeFn()) }()

	_, ok := c.(*MemoryCache)
	assert.True(t, ok)
}

// TestRedisCache runs against a live Redis only when FIREFLIES_TEST_REDIS_ADDR
// is set.
func TestRedisCache(t *testing.T) {
	addr := os.Getenv("FIREFLIES_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("FIREFLIES_TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	defer rdb.Close()

	c := NewRedisCache(rdb, time.Minute)
	key := Key("test", t.Name())
	defer rdb.Del(ctx, key)

	_, ok := c.Get(ctx, key)
	assert.False(t, ok)

	c.Set(ctx, key, "konten")
	got, ok := c.Get(ctx, key)
	assert.True(t, ok)
	assert.Equal(t, "konten", got)
}
