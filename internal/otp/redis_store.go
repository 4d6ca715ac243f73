package otp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps codes under otp:{phone} and failed attempts under
// otp:attempts:{phone}, both expiring with the challenge.
type RedisStore struct {
	rdb *redis.Client
}

// NewRedisStore creates a Store backed by Redis.
func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func codeKey(phone string) string     { return "otp:" + phone }
func attemptsKey(phone string) string { return "otp:attempts:" + phone }

func (s *RedisStore) Set(ctx context.Context, phone string, code Code, ttl time.Duration) error {
	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, codeKey(phone), string(code), ttl)
	pipe.Del(ctx, attemptsKey(phone))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("otp/redis: set: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, phone string) (Code, error) {
	val, err := s.rdb.Get(ctx, codeKey(phone)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrNoChallenge
		}
		return "", fmt.Errorf("otp/redis: get: %w", err)
	}
	return Code(val), nil
}

func (s *RedisStore) Delete(ctx context.Context, phone string) error {
	if err := s.rdb.Del(ctx, codeKey(phone), attemptsKey(phone)).Err(); err != nil {
		return fmt.Errorf("otp/redis: delete: %w", err)
	}
	return nil
}

func (s *RedisStore) IncrAttempts(ctx context.Context, phone string, ttl time.Duration) (int64, error) {
	n, err := s.rdb.Incr(ctx, attemptsKey(phone)).Result()
	if err != nil {
		return 0, fmt.Errorf("otp/redis: incr attempts: %w", err)
	}
	if n == 1 {
		if err := s.rdb.Expire(ctx, attemptsKey(phone), ttl).Err(); err != nil {
			return n, fmt.Errorf("otp/redis: expire attempts: %w", err)
		}
	}
	return n, nil
}
