package resolve

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonathan/apply-agent/internal/logger"
	"github.com/redis/go-redis/v9"
)

// DefaultCacheTTL is how long a resolution is reused.
const DefaultCacheTTL = 15 * time.Minute

// Cache stores resolutions by key.
type Cache interface {
	Get(ctx context.Context, key string) (Resolution, bool)
	Set(ctx context.Context, key string, value Resolution, ttl time.Duration)
}

// CacheKey builds the cache key for a source and target URL.
func CacheKey(source, target string) string {
	return source + "|" + target
}

type memoryEntry struct {
	value     Resolution
	expiresAt time.Time
}

// MemoryCache is a process-local Cache. Expired entries are evicted on lookup.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemoryCache creates an empty MemoryCache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

// WithClock replaces the cache clock.
func (c *MemoryCache) WithClock(now func() time.Time) *MemoryCache {
	c.now = now
	return c
}

// Get returns a live entry for key.
func (c *MemoryCache) Get(_ context.Context, key string) (Resolution, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return Resolution{}, false
	}
	if !c.now().Before(entry.expiresAt) {
		delete(c.entries, key)
		return Resolution{}, false
	}
	return entry.value.clone(), true
}

// Set stores value under key for ttl.
func (c *MemoryCache) Set(_ context.Context, key string, value Resolution, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = memoryEntry{value: value.clone(), expiresAt: c.now().Add(ttl)}
}

// Len returns the number of stored entries, including expired ones not yet evicted.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// RedisCache shares resolutions between instances through Redis.
type RedisCache struct {
	rdb    redis.Cmdable
	prefix string
}

// NewRedisCache wraps a Redis client. Keys are namespaced by prefix.
func NewRedisCache(rdb redis.Cmdable, prefix string) *RedisCache {
	if prefix == "" {
		prefix = "apply:resolve:"
	}
	return &RedisCache{rdb: rdb, prefix: prefix}
}

// ConnectRedis parses a redis:// URL and verifies the server is reachable.
func ConnectRedis(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	rdb := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis unreachable at %s: %w", opts.Addr, err)
	}
	return rdb, nil
}

// Get reads and decodes key. Redis failures are treated as misses.
func (c *RedisCache) Get(ctx context.Context, key string) (Resolution, bool) {
	data, err := c.rdb.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logger.FromContext(ctx).Warn("Resolution cache read failed", logger.Error(err))
		}
		return Resolution{}, false
	}
	var out Resolution
	if err := json.Unmarshal(data, &out); err != nil {
		logger.FromContext(ctx).Warn("Discarding corrupt resolution cache entry",
			logger.String("key", key), logger.Error(err))
		return Resolution{}, false
	}
	return out, true
}

// Set encodes value and stores it with a Redis TTL.
func (c *RedisCache) Set(ctx context.Context, key string, value Resolution, ttl time.Duration) {
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, c.prefix+key, data, ttl).Err(); err != nil {
		logger.FromContext(ctx).Warn("Resolution cache write failed", logger.Error(err))
	}
}
