package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "idempotency:"

// RedisStore keeps cached responses in Redis, letting key TTLs handle
// retention so Purge has nothing to do.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore constructs a Store backed by the given client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Get fetches and decodes the cached response for key.
func (s *RedisStore) Get(ctx context.Context, key string) (*CachedResponse, bool, error) {
	raw, err := s.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("idempotency get: %w", err)
	}

	var response CachedResponse
	if err := json.Unmarshal(raw, &response); err != nil {
		return nil, false, fmt.Errorf("idempotency decode: %w", err)
	}
	return &response, true, nil
}

// Set encodes and stores the response with the retention TTL.
func (s *RedisStore) Set(ctx context.Context, key string, response *CachedResponse, ttl time.Duration) error {
	raw, err := json.Marshal(response)
	if err != nil {
		return fmt.Errorf("idempotency encode: %w", err)
	}
	if err := s.client.Set(ctx, redisKeyPrefix+key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("idempotency set: %w", err)
	}
	return nil
}

// Purge is a no-op; Redis expires keys itself.
func (s *RedisStore) Purge(context.Context, time.Time) (int, error) {
	return 0, nil
}
