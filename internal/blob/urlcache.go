package blob

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// cacheMargin keeps cached URLs from outliving their signature.
const cacheMargin = 5 * time.Minute

// URLCache keeps signed URLs in Redis for slightly less than their expiry.
// Every failure degrades to a cache miss, never to an error.
type URLCache struct {
	rdb *redis.Client
}

func NewURLCache(addr, password string, db int) *URLCache {
	return &URLCache{rdb: redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})}
}

func (c *URLCache) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func (c *URLCache) Get(ctx context.Context, path string, expiry time.Duration) (string, bool) {
	val, err := c.rdb.Get(ctx, cacheKey(path, expiry)).Result()
	if err != nil {
		return "", false
	}
	return val, true
}

func (c *URLCache) Set(ctx context.Context, path string, expiry time.Duration, signed string) {
	ttl := expiry - cacheMargin
	if ttl <= 0 {
		return
	}
	_ = c.rdb.Set(ctx, cacheKey(path, expiry), signed, ttl).Err()
}

func (c *URLCache) Close() error {
	return c.rdb.Close()
}

func cacheKey(path string, expiry time.Duration) string {
	return fmt.Sprintf("signedurl:%d:%s", int64(expiry.Seconds()), path)
}
