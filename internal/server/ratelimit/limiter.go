// Package ratelimit throttles credential-bearing requests (login and
// registration) per client with fixed one-minute windows kept in Redis.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dmitrijs2005/conduit/internal/logging"
)

const window = time.Minute

// Limiter decides whether one more attempt for key is allowed.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// Noop allows everything. Used when no Redis address is configured.
type Noop struct{}

func (Noop) Allow(context.Context, string) (bool, error) { return true, nil }

type counter interface {
	IncrWithExpire(ctx context.Context, key string, expiration time.Duration) (int64, error)
}

// RedisCounter wraps a Redis client.
type RedisCounter struct {
	client *redis.Client
}

// NewRedisCounter connects to addr and verifies the connection.
func NewRedisCounter(ctx context.Context, addr string) (*RedisCounter, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return &RedisCounter{client: client}, nil
}

// IncrWithExpire increments key and (re)arms its expiration in one round trip.
func (r *RedisCounter) IncrWithExpire(ctx context.Context, key string, expiration time.Duration) (int64, error) {
	pipe := r.client.Pipeline()
	incr := pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, expiration)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

// Close closes the Redis connection.
func (r *RedisCounter) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// RedisLimiter allows up to limit attempts per key per minute. Redis
// failures are logged and the attempt is allowed.
type RedisLimiter struct {
	counter counter
	limit   int
	logger  logging.Logger
}

func NewRedisLimiter(c *RedisCounter, limit int, l logging.Logger) *RedisLimiter {
	return &RedisLimiter{counter: c, limit: limit, logger: l.With("module", "ratelimit")}
}

func (rl *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	count, err := rl.counter.IncrWithExpire(ctx, "ratelimit:"+key, window)
	if err != nil {
		rl.logger.Warn(ctx, "rate limit store unavailable", "error", err)
		return true, nil
	}
	return count <= int64(rl.limit), nil
}
