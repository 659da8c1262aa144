package fingerprint

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Cache memoizes fingerprint hashes for a TTL window. Lookup of an expired
// entry behaves exactly like a miss.
type Cache interface {
	// Lookup reports whether hash was stored within the TTL window.
	Lookup(ctx context.Context, hash string) bool
	// Store records hash with the cache's TTL. Re-storing the same hash
	// is harmless.
	Store(ctx context.Context, hash string)
}

// MemoryCache is a mutex-guarded map with lazy expiry: expired entries are
// physically evicted on the next touch, there is no background sweep.
type MemoryCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]time.Time // hash -> creation time
	now     func() time.Time
}

func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{
		ttl:     ttl,
		entries: map[string]time.Time{},
		now:     time.Now,
	}
}

func (c *MemoryCache) Lookup(_ context.Context, hash string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	created, ok := c.entries[hash]
	if !ok {
		return false
	}
	if c.now().Sub(created) >= c.ttl {
		delete(c.entries, hash)
		return false
	}
	return true
}

func (c *MemoryCache) Store(_ context.Context, hash string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[hash] = c.now()
}

// RedisCache shares the memo across instances. Redis expires entries itself,
// so lookup is a plain EXISTS.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(addr string, ttl time.Duration) *RedisCache {
	return &RedisCache{
		client: redis.NewClient(&redis.Options{Addr: addr}),
		ttl:    ttl,
	}
}

func (c *RedisCache) Lookup(ctx context.Context, hash string) bool {
	n, err := c.client.Exists(ctx, key(hash)).Result()
	if err != nil {
		log.Warn().Err(err).Msg("fingerprint cache lookup failed; treating as miss")
		return false
	}
	return n > 0
}

func (c *RedisCache) Store(ctx context.Context, hash string) {
	if err := c.client.Set(ctx, key(hash), "", c.ttl).Err(); err != nil {
		log.Warn().Err(err).Msg("fingerprint cache store failed")
	}
}

func key(hash string) string { return "fp:" + hash }
