package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const denylistPrefix = "denylist:"

// RedisDenylistStore records revoked access-token ids with token-aligned TTL.
// Entries self-expire; there is no explicit deletion path.
type RedisDenylistStore struct {
	client *redis.Client
}

func NewRedisDenylistStore(client *redis.Client) *RedisDenylistStore {
	return &RedisDenylistStore{client: client}
}

func (s *RedisDenylistStore) Deny(ctx context.Context, jti string, ttl time.Duration) error {
	if ttl <= 0 {
		// Already-expired tokens fail signature-side expiry checks anyway;
		// a short marker still covers clock skew between services.
		ttl = time.Minute
	}
	key := denylistPrefix + jti
	if err := s.client.SetNX(ctx, key, "revoked", ttl).Err(); err != nil {
		return err
	}
	// When the entry already existed, only ever extend its deadline. EXPIRE GT
	// leaves a longer-lived denial untouched.
	return s.client.ExpireGT(ctx, key, ttl).Err()
}

func (s *RedisDenylistStore) IsDenied(ctx context.Context, jti string) (bool, error) {
	n, err := s.client.Exists(ctx, denylistPrefix+jti).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
