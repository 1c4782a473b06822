package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "streamgate:grants:"

// RedisLimiter is a sliding window log kept in one sorted set per key, shared by every
// replica pointed at the same Redis.
type RedisLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
	now    func() time.Time
}

func NewRedisLimiter(client *redis.Client, limit int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{
		client: client,
		limit:  limit,
		window: window,
		now:    time.Now,
	}
}

// Allow records the attempt, trims the window and counts in one MULTI so concurrent
// callers never all observe a free slot. A rejected attempt removes its own entry.
func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	redisKey := keyPrefix + key
	now := l.now()
	windowStart := now.Add(-l.window)
	member := uuid.NewString()

	var (
		card   *redis.IntCmd
		oldest *redis.ZSliceCmd
	)
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRemRangeByScore(ctx, redisKey, "-inf", strconv.FormatInt(windowStart.UnixNano(), 10))
		pipe.ZAdd(ctx, redisKey, redis.Z{Score: float64(now.UnixNano()), Member: member})
		card = pipe.ZCard(ctx, redisKey)
		oldest = pipe.ZRangeWithScores(ctx, redisKey, 0, 0)
		pipe.Expire(ctx, redisKey, l.window+time.Second)
		return nil
	})
	if err != nil {
		return false, 0, fmt.Errorf("grant limiter: %w", err)
	}

	if card.Val() <= int64(l.limit) {
		return true, 0, nil
	}

	if err := l.client.ZRem(ctx, redisKey, member).Err(); err != nil {
		return false, 0, fmt.Errorf("grant limiter: %w", err)
	}

	retryAfter := l.window
	if entries := oldest.Val(); len(entries) > 0 {
		expiresAt := time.Unix(0, int64(entries[0].Score)).Add(l.window)
		retryAfter = expiresAt.Sub(now)
	}
	if retryAfter < time.Second {
		retryAfter = time.Second
	}
	return false, retryAfter, nil
}
