package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore backs the Store contract with a shared Redis instance. This is
// the production implementation: counters and cached payloads survive
// process restarts and are visible to every gateway instance.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore wraps an existing client. The client lifecycle is managed
// by the caller.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, prefix: "cg:"}
}

func (s *RedisStore) key(k string) string {
	return s.prefix + k
}

// Get returns the value for key, reporting a miss for absent or expired
// entries.
func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := s.client.Get(ctx, s.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

// Put stores value under key with the given TTL. Redis owns expiry; a
// non-positive ttl is rejected upstream by callers, but is clamped here to
// one second as a safety net so entries never persist forever.
func (s *RedisStore) Put(ctx context.Context, key, value string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = time.Second
	}
	return s.client.Set(ctx, s.key(key), value, ttl).Err()
}

// Invalidate removes key immediately.
func (s *RedisStore) Invalidate(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.key(key)).Err()
}
