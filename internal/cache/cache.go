// Package cache stores extracted page content so repeated fetches of the same
// URL within the TTL skip the network.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache is a string key-value store with expiry. Misses and backend failures
// look the same to callers: the value is simply not there.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key, value string)
}

// Key derives a stable cache key from a namespace and a raw identifier such
// as a URL.
func Key(namespace, raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return "fireflies:" + namespace + ":" + hex.EncodeToString(sum[:16])
}

type entry struct {
	value     string
	createdAt time.Time
	expiresAt time.Time
}

// MemoryCache is an in-process cache bounded by entry count. When full, the
// oldest entry is evicted.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]*entry
	maxSize int
	ttl     time.Duration
	now     func() time.Time
}

func NewMemoryCache(maxSize int, ttl time.Duration) *MemoryCache {
	if maxSize <= 0 {
		maxSize = 1000
	}
	return &MemoryCache{
		entries: make(map[string]*entry),
		maxSize: maxSize,
		ttl:     ttl,
		now:     time.Now,
	}
}

func (c *MemoryCache) Get(_ context.Context, key string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key]
	if !ok || c.now().After(e.expiresAt) {
		return "", false
	}
	return e.value, true
}

func (c *MemoryCache) Set(_ context.Context, key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxSize {
		c.evictOldest()
	}

	now := c.now()
	c.entries[key] = &entry{value: value, createdAt: now, expiresAt: now.Add(c.ttl)}
}

// Len returns the number of stored entries, expired ones included.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *MemoryCache) evictOldest() {
	var oldestKey string
	var oldest time.Time
	for k, e := range c.entries {
		if oldestKey == "" || e.createdAt.Before(oldest) {
			oldestKey = k
			oldest = e.createdAt
		}
	}
	if oldestKey != "" {
		delete(c.entries, oldestKey)
	}
}

// RedisCache stores entries in Redis with a per-key TTL.
type RedisCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisCache(rdb *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{rdb: rdb, ttl: ttl}
}

func (c *RedisCache) Get(ctx context.Context, key string) (string, bool) {
	val, err := c.rdb.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false
	}
	if err != nil {
		slog.Warn("Redis cache read failed", "key", key, "error", err)
		return "", false
	}
	return val, true
}

func (c *RedisCache) Set(ctx context.Context, key, value string) {
	if err := c.rdb.Set(ctx, key, value, c.ttl).Err(); err != nil {
		slog.Warn("Redis cache write failed", "key", key, "error", err)
	}
}

// New returns a Redis-backed cache when addr is set and reachable, and an
// in-memory cache otherwise. The returned close function releases the Redis
// connection pool.
func New(ctx context.Context, addr string, ttl time.Duration) (Cache, func() error) {
	if addr == "" {
		slog.Info("Using in-memory page cache", "ttl", ttl)
		return NewMemoryCache(1000, ttl), func() error { return nil }
	}

	rdb := redis.NewClient(&redis.Options{Addr: addr})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		slog.Warn("Redis unreachable, falling back to in-memory page cache", "addr", addr, "error", err)
		_ = rdb.Close()
		return NewMemoryCache(1000, ttl), func() error { return nil }
	}

	slog.Info("Using Redis page cache", "addr", addr, "ttl", ttl)
	return NewRedisCache(rdb, ttl), rdb.Close
}
