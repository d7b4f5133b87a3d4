package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const ratePrefix = "rate-limit:"

// RedisRateStore maintains fixed-window counters. INCR is atomic per key, so
// concurrent requests from the same client are each counted exactly once.
type RedisRateStore struct {
	client *redis.Client
}

func NewRedisRateStore(client *redis.Client) *RedisRateStore {
	return &RedisRateStore{client: client}
}

func (s *RedisRateStore) Increment(ctx context.Context, key string, window time.Duration) (int64, error) {
	redisKey := ratePrefix + key
	count, err := s.client.Incr(ctx, redisKey).Result()
	if err != nil {
		return 0, err
	}
	// Only the request that opened the window sets the TTL; everyone else
	// leaves it alone so the reset time stays fixed for the whole bucket.
	if count == 1 {
		_ = s.client.Expire(ctx, redisKey, window).Err()
	}
	return count, nil
}
