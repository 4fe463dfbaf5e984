package ratelimit

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisLimiter is a fixed-window send limiter shared by every server instance that
// points at the same Redis. Each window lives in its own sorted set keyed by the
// window number, so old windows simply expire.
type RedisLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
	prefix string
	logger zerolog.Logger

	now func() time.Time
	seq atomic.Uint64 // keeps set members unique within one nanosecond
}

// NewRedisLimiter connects to redisURL and verifies the connection.
func NewRedisLimiter(ctx context.Context, redisURL string, limit int, window time.Duration, logger zerolog.Logger) (*RedisLimiter, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &RedisLimiter{
		client: client,
		limit:  limit,
		window: window,
		prefix: "gatherly:ratelimit:send",
		logger: logger,
		now:    time.Now,
	}, nil
}

// Allow implements Limiter. Redis failures fail open: a send is never rejected
// because the limiter's backend is unavailable.
func (rl *RedisLimiter) Allow(ctx context.Context, key string) bool {
	now := rl.now()
	windowStart := now.Add(-rl.window)
	windowKey := fmt.Sprintf("%s:%s:%d", rl.prefix, key, now.UnixNano()/int64(rl.window))

	pipe := rl.client.Pipeline()
	pipe.ZRemRangeByScore(ctx, windowKey, "-inf", fmt.Sprintf("%d", windowStart.UnixMilli()))
	countCmd := pipe.ZCard(ctx, windowKey)
	pipe.ZAdd(ctx, windowKey, redis.Z{
		Score:  float64(now.UnixMilli()),
		Member: fmt.Sprintf("%d-%d", now.UnixNano(), rl.seq.Add(1)),
	})
	pipe.Expire(ctx, windowKey, rl.window*2)

	if _, err := pipe.Exec(ctx); err != nil {
		rl.logger.Warn().Err(err).Str("key", key).Msg("redis rate limit check failed, allowing")
		return true
	}

	return countCmd.Val() < int64(rl.limit)
}

// Close implements Limiter.
func (rl *RedisLimiter) Close() error {
	return rl.client.Close()
}
