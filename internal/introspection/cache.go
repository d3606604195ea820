// Package introspection implements the RFC 7662 token introspection client
// and cache of spec.md §4.7.
package introspection

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/zeromicro/go-zero/core/stores/redis"

	"github.com/aci-systems/security-core/internal/types"
)

// digest computes the non-reversible cache key for a token value (spec.md
// §4.7 "keyed by a non-reversible digest of the token value").
func digest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// Cache stores introspection results keyed by token digest.
type Cache interface {
	Get(ctx context.Context, tokenDigest string) (types.IntrospectionResult, int64, bool, error)
	Put(ctx context.Context, tokenDigest string, result types.IntrospectionResult, cachedAtUnix int64) error
	Delete(ctx context.Context, tokenDigest string) error
	Clear(ctx context.Context) error
	Close() error
}

type memoryCacheEntry struct {
	result   types.IntrospectionResult
	cachedAt int64
}

// MemoryCache is the default in-process Cache. A background sweep, run every
// sweepInterval, evicts entries older than 2x maxAgeMS (spec.md §4.7
// "cleanup by periodic sweep at 2x the default TTL").
type MemoryCache struct {
	mu       sync.RWMutex
	entries  map[string]memoryCacheEntry
	maxAgeMS int64
	stop     chan struct{}
	stopOnce sync.Once
}

func NewMemoryCache(sweepInterval time.Duration, maxAgeMS int64) *MemoryCache {
	if sweepInterval <= 0 {
		sweepInterval = time.Minute
	}
	c := &MemoryCache{
		entries:  make(map[string]memoryCacheEntry),
		maxAgeMS: maxAgeMS,
		stop:     make(chan struct{}),
	}
	go c.sweepLoop(sweepInterval)
	return c
}

func (c *MemoryCache) Get(_ context.Context, tokenDigest string) (types.IntrospectionResult, int64, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[tokenDigest]
	if !ok {
		return types.IntrospectionResult{}, 0, false, nil
	}
	return entry.result, entry.cachedAt, true, nil
}

func (c *MemoryCache) Put(_ context.Context, tokenDigest string, result types.IntrospectionResult, cachedAtUnix int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[tokenDigest] = memoryCacheEntry{result: result, cachedAt: cachedAtUnix}
	return nil
}

func (c *MemoryCache) Delete(_ context.Context, tokenDigest string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, tokenDigest)
	return nil
}

func (c *MemoryCache) Clear(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]memoryCacheEntry)
	return nil
}

func (c *MemoryCache) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.sweepExpired()
		case <-c.stop:
			return
		}
	}
}

func (c *MemoryCache) sweepExpired() {
	nowMS := time.Now().UnixMilli()
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, entry := range c.entries {
		if nowMS-entry.cachedAt*1000 > 2*c.maxAgeMS {
			delete(c.entries, k)
		}
	}
}

func (c *MemoryCache) Close() error {
	c.stopOnce.Do(func() { close(c.stop) })
	return nil
}

// RedisCache implements Cache on go-zero's redis.Redis wrapper for
// deployments that need the introspection cache to be shared across
// process instances.
type RedisCache struct {
	client    *redis.Redis
	keyPrefix string
}

func NewRedisCache(client *redis.Redis) *RedisCache {
	return &RedisCache{client: client, keyPrefix: "introspection:"}
}

type redisPayload struct {
	Result   types.IntrospectionResult `json:"result"`
	CachedAt int64                     `json:"cached_at"`
}

func (c *RedisCache) key(tokenDigest string) string { return c.keyPrefix + tokenDigest }

func (c *RedisCache) Get(ctx context.Context, tokenDigest string) (types.IntrospectionResult, int64, bool, error) {
	raw, err := c.client.GetCtx(ctx, c.key(tokenDigest))
	if err != nil {
		return types.IntrospectionResult{}, 0, false, err
	}
	if raw == "" {
		return types.IntrospectionResult{}, 0, false, nil
	}
	payload, err := decodeRedisPayload(raw)
	if err != nil {
		return types.IntrospectionResult{}, 0, false, err
	}
	return payload.Result, payload.CachedAt, true, nil
}

func (c *RedisCache) Put(ctx context.Context, tokenDigest string, result types.IntrospectionResult, cachedAtUnix int64) error {
	raw, err := encodeRedisPayload(redisPayload{Result: result, CachedAt: cachedAtUnix})
	if err != nil {
		return err
	}
	return c.client.SetCtx(ctx, c.key(tokenDigest), raw)
}

func (c *RedisCache) Delete(ctx context.Context, tokenDigest string) error {
	_, err := c.client.DelCtx(ctx, c.key(tokenDigest))
	return err
}

func (c *RedisCache) Clear(_ context.Context) error {
	// Deliberately a no-op: the introspection cache is a shared keyspace and
	// a global clear would require a key scan this service does not own.
	// clear_cache(token) for a specific token is the supported path.
	return nil
}

func (c *RedisCache) Close() error { return nil }
