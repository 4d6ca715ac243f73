package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// MemoryDriver is an in-process, channel-backed driver. Jobs are lost on restart.
type MemoryDriver struct {
	ch chan []byte
}

// NewMemoryDriver creates an in-memory queue holding up to size jobs.
func NewMemoryDriver(size int) *MemoryDriver {
	if size <= 0 {
		size = 1000
	}
	return &MemoryDriver{ch: make(chan []byte, size)}
}

// Push never blocks; it returns ErrQueueFull at capacity.
func (d *MemoryDriver) Push(_ context.Context, payload []byte) error {
	select {
	case d.ch <- payload:
		return nil
	default:
		return ErrQueueFull
	}
}

func (d *MemoryDriver) Pop(ctx context.Context) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case payload := <-d.ch:
		return payload, nil
	}
}

const (
	redisQueueKey  = "storefront:jobs"
	redisFailedKey = "storefront:jobs:failed"
)

// RedisDriver keeps jobs in a Redis list so API and worker processes can be
// separated.
type RedisDriver struct {
	rdb       *redis.Client
	key       string
	failedKey string
	timeout   time.Duration
}

// NewRedisDriver creates a Redis-backed driver.
func NewRedisDriver(rdb *redis.Client) *RedisDriver {
	return &RedisDriver{rdb: rdb, key: redisQueueKey, failedKey: redisFailedKey, timeout: 5 * time.Second}
}

// Push adds a job with LPUSH.
func (d *RedisDriver) Push(ctx context.Context, payload []byte) error {
	if err := d.rdb.LPush(ctx, d.key, payload).Err(); err != nil {
		return fmt.Errorf("jobs/redis: push: %w", err)
	}
	return nil
}

// Pop waits up to five seconds with BRPOP.
func (d *RedisDriver) Pop(ctx context.Context) ([]byte, error) {
	result, err := d.rdb.BRPop(ctx, d.timeout, d.key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("jobs/redis: pop: %w", err)
	}
	if len(result) < 2 {
		return nil, nil
	}
	return []byte(result[1]), nil
}

// RecordFailure keeps the newest DefaultFailedLimit exhausted jobs in a
// Redis list, newest first.
func (d *RedisDriver) RecordFailure(ctx context.Context, record []byte) error {
	_, err := d.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, d.failedKey, record)
		pipe.LTrim(ctx, d.failedKey, 0, DefaultFailedLimit-1)
		return nil
	})
	if err != nil {
		return fmt.Errorf("jobs/redis: record failure: %w", err)
	}
	return nil
}
