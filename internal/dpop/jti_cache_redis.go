package dpop

import (
	"context"
	"fmt"
	"time"

	"github.com/zeromicro/go-zero/core/stores/redis"
)

const jtiKeyPrefix = "dpop:jti:"

// RedisJTICache is the distributed counterpart to MemoryJTICache, backed by
// go-zero's redis.Redis client -- the same client type the teacher's
// shared/middleware/auth.go cache layer uses for its valid-token set,
// generalized here to a keyed TTL store rather than a set membership check.
type RedisJTICache struct {
	client *redis.Redis
}

// NewRedisJTICache wraps an already-configured go-zero redis client.
func NewRedisJTICache(client *redis.Redis) *RedisJTICache {
	return &RedisJTICache{client: client}
}

func (c *RedisJTICache) Store(ctx context.Context, jti string, expiresAtUnix int64) error {
	ttl := expiresAtUnix - time.Now().Unix()
	if ttl <= 0 {
		ttl = 1
	}
	return c.client.SetexCtx(ctx, jtiKeyPrefix+jti, "1", int(ttl))
}

func (c *RedisJTICache) Exists(ctx context.Context, jti string) (bool, error) {
	val, err := c.client.GetCtx(ctx, jtiKeyPrefix+jti)
	if err != nil {
		return false, fmt.Errorf("dpop: redis jti lookup: %w", err)
	}
	return val != "", nil
}

// Close is a no-op: the redis client's lifecycle is owned by the caller
// that constructed it, not by this cache.
func (c *RedisJTICache) Close() error { return nil }
