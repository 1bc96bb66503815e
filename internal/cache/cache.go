package cache

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache is the caching interface. All cache operations go through here.
// Implementations must be safe for concurrent use.
type Cache interface {
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
	IncrWithExpiry(ctx context.Context, key string, expiry time.Duration) (int64, error)
	MarkPresent(ctx context.Context, setKey, member string, at time.Time, window time.Duration) error
	PresentSince(ctx context.Context, setKey string, since time.Time) (map[string]time.Time, error)
	RemovePresent(ctx context.Context, setKey, member string) error
}

// RedisCache implements the Cache interface using go-redis/v9.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache creates a new RedisCache from a Redis URL.
func NewRedisCache(redisURL string) (*RedisCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	return &RedisCache{client: redis.NewClient(opts)}, nil
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.client.Set(ctx, key, value, ttl).Err()
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

func (c *RedisCache) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, key).Err()
}

func (c *RedisCache) IncrWithExpiry(ctx context.Context, key string, expiry time.Duration) (int64, error) {
	pipe := c.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, expiry)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

// MarkPresent scores member in the sorted set at setKey with at, in unix
// milliseconds, and drops members older than window.
func (c *RedisCache) MarkPresent(ctx context.Context, setKey, member string, at time.Time, window time.Duration) error {
	cutoff := at.Add(-window).UnixMilli()
	pipe := c.client.TxPipeline()
	pipe.ZAdd(ctx, setKey, redis.Z{Score: float64(at.UnixMilli()), Member: member})
	pipe.ZRemRangeByScore(ctx, setKey, "-inf", "("+strconv.FormatInt(cutoff, 10))
	pipe.Expire(ctx, setKey, window)
	_, err := pipe.Exec(ctx)
	return err
}

// PresentSince returns the members of setKey last marked at or after since.
func (c *RedisCache) PresentSince(ctx context.Context, setKey string, since time.Time) (map[string]time.Time, error) {
	zs, err := c.client.ZRangeByScoreWithScores(ctx, setKey, &redis.ZRangeBy{
		Min: strconv.FormatInt(since.UnixMilli(), 10),
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, err
	}
	out := make(map[string]time.Time, len(zs))
	for _, z := range zs {
		member, ok := z.Member.(string)
		if !ok {
			continue
		}
		out[member] = time.UnixMilli(int64(z.Score)).UTC()
	}
	return out, nil
}

func (c *RedisCache) RemovePresent(ctx context.Context, setKey, member string) error {
	return c.client.ZRem(ctx, setKey, member).Err()
}
