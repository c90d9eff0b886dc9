package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/thirtythreehz/crates/internal/shared"
)

// RedisStore keeps entries in Redis, leaning on the server's native expiry
// and SETNX for the lease.
type RedisStore struct {
	rdb *redis.Client
}

// NewRedisStore connects to the Redis at addr and verifies it answers.
func NewRedisStore(ctx context.Context, addr string, db int) (*RedisStore, error) {
	if addr == "" {
		addr = "localhost:6379"
	}

	rdb := redis.NewClient(&redis.Options{Addr: addr, DB: db})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("%w: %v", shared.ErrStoreUnavailable, err)
	}
	return &RedisStore{rdb: rdb}, nil
}

func (s *RedisStore) Get(ctx context.Context, key string, v any) (bool, error) {
	payload, err := s.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: %v", shared.ErrStoreUnavailable, err)
	}

	if err := json.Unmarshal(payload, v); err != nil {
		return false, fmt.Errorf("failed to decode stored value: %w", err)
	}
	return true, nil
}

func (s *RedisStore) Put(ctx context.Context, key string, v any, ttl time.Duration) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode value: %w", err)
	}

	if err := s.rdb.Set(ctx, key, payload, normalizeTTL(ttl)).Err(); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrStoreUnavailable, err)
	}
	return nil
}

func (s *RedisStore) PutIfAbsent(ctx context.Context, key string, v any, ttl time.Duration) (bool, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return false, fmt.Errorf("failed to encode value: %w", err)
	}

	won, err := s.rdb.SetNX(ctx, key, payload, normalizeTTL(ttl)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", shared.ErrStoreUnavailable, err)
	}
	return won, nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.rdb.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrStoreUnavailable, err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.rdb.Close()
}

// normalizeTTL maps "no expiry" onto Redis's zero expiration.
func normalizeTTL(ttl time.Duration) time.Duration {
	if ttl < 0 {
		return 0
	}
	return ttl
}
