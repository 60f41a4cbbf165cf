// Package kv wraps the Redis client shared by the Live Status Cache and
// the Resource Ledger (distinct keyspaces, same backing store).
package kv

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/crawlctl/crawlctl/internal/logging"
)

// Client is the minimal Redis surface the LSC and RL need. Both
// internal/livestatus and internal/ledger depend on this interface
// rather than *redis.Client directly, so tests can substitute a fake.
type Client interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl int64) error
	Del(ctx context.Context, keys ...string) error
	Incr(ctx context.Context, key string) (int64, error)
	IncrBy(ctx context.Context, key string, delta int64) (int64, error)
	DecrByClamped(ctx context.Context, key string, delta int64) (int64, error)
	Expire(ctx context.Context, key string, ttlSeconds int64) error
	SAdd(ctx context.Context, key string, member string, ttlSeconds int64) error
	SRem(ctx context.Context, key string, member string) error
	SCard(ctx context.Context, key string) (int64, error)

	// PushSample prepends value to the capped list at key, trimming it to
	// limit entries (internal/estimator's rolling-window samples).
	PushSample(ctx context.Context, key string, value float64, limit int64) error
	// Samples returns up to limit of the most recent values pushed to key.
	Samples(ctx context.Context, key string, limit int64) ([]float64, error)
}

// redisClient is the production Client backed by go-redis/v9.
type redisClient struct {
	rdb *redis.Client
}

func New(addr string) Client {
	return &redisClient{rdb: redis.NewClient(&redis.Options{Addr: addr})}
}

func (c *redisClient) Get(ctx context.Context, key string) (string, error) {
	v, err := c.rdb.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", nil
	}
	return v, err
}

func (c *redisClient) Set(ctx context.Context, key, value string, ttlSeconds int64) error {
	return c.rdb.Set(ctx, key, value, time.Duration(ttlSeconds)*time.Second).Err()
}

func (c *redisClient) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return c.rdb.Del(ctx, keys...).Err()
}

func (c *redisClient) Incr(ctx context.Context, key string) (int64, error) {
	return c.rdb.Incr(ctx, key).Result()
}

func (c *redisClient) IncrBy(ctx context.Context, key string, delta int64) (int64, error) {
	return c.rdb.IncrBy(ctx, key, delta).Result()
}

// DecrByClamped decrements key by delta but never lets the stored value go
// below zero. Redis DECRBY happily stores a negative integer, so the clamp
// has to be applied by the caller. This is the one ledger operation that
// isn't a single atomic primitive: the clamp is a separate SET, so an
// increment that lands between the DECRBY and the SET is overwritten by
// the zero. Each caller that observes a negative result resets the key to
// zero, so the key does not stay negative.
func (c *redisClient) DecrByClamped(ctx context.Context, key string, delta int64) (int64, error) {
	v, err := c.rdb.DecrBy(ctx, key, delta).Result()
	if err != nil {
		return 0, err
	}
	if v < 0 {
		logging.Get().Anomaly("counter decremented below zero, clamping", "key", key, "value", v)
		if err := c.rdb.Set(ctx, key, 0, redis.KeepTTL).Err(); err != nil {
			return 0, err
		}
		return 0, nil
	}
	return v, nil
}

func (c *redisClient) Expire(ctx context.Context, key string, ttlSeconds int64) error {
	return c.rdb.Expire(ctx, key, time.Duration(ttlSeconds)*time.Second).Err()
}

func (c *redisClient) SAdd(ctx context.Context, key string, member string, ttlSeconds int64) error {
	pipe := c.rdb.TxPipeline()
	pipe.SAdd(ctx, key, member)
	pipe.Expire(ctx, key, time.Duration(ttlSeconds)*time.Second)
	_, err := pipe.Exec(ctx)
	return err
}

func (c *redisClient) SRem(ctx context.Context, key string, member string) error {
	return c.rdb.SRem(ctx, key, member).Err()
}

func (c *redisClient) SCard(ctx context.Context, key string) (int64, error) {
	return c.rdb.SCard(ctx, key).Result()
}

func (c *redisClient) PushSample(ctx context.Context, key string, value float64, limit int64) error {
	pipe := c.rdb.TxPipeline()
	pipe.LPush(ctx, key, value)
	pipe.LTrim(ctx, key, 0, limit-1)
	_, err := pipe.Exec(ctx)
	return err
}

func (c *redisClient) Samples(ctx context.Context, key string, limit int64) ([]float64, error) {
	raw, err := c.rdb.LRange(ctx, key, 0, limit-1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]float64, 0, len(raw))
	for _, s := range raw {
		var v float64
		if _, err := fmt.Sscanf(s, "%g", &v); err == nil {
			out = append(out, v)
		}
	}
	return out, nil
}
