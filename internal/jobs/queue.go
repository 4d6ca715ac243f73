// Package jobs runs best-effort background work such as order notifications
// and push fan-out. Each job is retried independently and never blocks the
// request that enqueued it.
package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"storefront/internal/metrics"

	"github.com/rs/zerolog"
)

// ErrQueueFull is returned by Dispatch when the driver cannot accept more jobs.
var ErrQueueFull = errors.New("jobs: queue is full")

// Handler processes one job payload.
type Handler func(ctx context.Context, payload json.RawMessage) error

// Driver is the queue storage backend.
type Driver interface {
	Push(ctx context.Context, payload []byte) error
	// Pop blocks until a job is available. A nil payload with a nil error
	// means the wait timed out.
	Pop(ctx context.Context) ([]byte, error)
}

// FailedJob is a job that exhausted its retries.
type FailedJob struct {
	Type     string
	Payload  json.RawMessage
	Err      error
	FailedAt time.Time
	Attempts int
}

type envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// DefaultFailedLimit is how many failed jobs a Queue keeps in memory.
const DefaultFailedLimit = 100

// FailureRecorder is implemented by drivers that persist exhausted jobs.
type FailureRecorder interface {
	RecordFailure(ctx context.Context, record []byte) error
}

type failureRecord struct {
	Type     string          `json:"type"`
	Payload  json.RawMessage `json:"payload"`
	Error    string          `json:"error"`
	Attempts int             `json:"attempts"`
	FailedAt time.Time       `json:"failedAt"`
}

// Queue dispatches typed jobs to registered handlers.
type Queue struct {
	mu          sync.RWMutex
	driver      Driver
	handlers    map[string]Handler
	failed      []FailedJob
	failedLimit int
	maxRetry    int
	backoff  time.Duration
	timeout  time.Duration
	logger   zerolog.Logger
}

// New creates a Queue. Retries back off linearly by attempt × one second.
func New(driver Driver, maxRetry int, logger zerolog.Logger) *Queue {
	if maxRetry < 1 {
		maxRetry = 1
	}
	return &Queue{
		driver:      driver,
		handlers:    map[string]Handler{},
		failedLimit: DefaultFailedLimit,
		maxRetry:    maxRetry,
		backoff:     time.Second,
		timeout:     30 * time.Second,
		logger:      logger.With().Str("component", "jobs").Logger(),
	}
}

// SetFailedLimit changes how many failed jobs are kept in memory. Older
// entries are dropped first.
func (q *Queue) SetFailedLimit(n int) {
	if n < 1 {
		n = 1
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.failedLimit = n
	q.trimFailed()
}

// SetBackoff changes the per-attempt retry delay.
func (q *Queue) SetBackoff(d time.Duration) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.backoff = d
}

// Register binds a handler to a job type. Call before starting workers.
func (q *Queue) Register(jobType string, h Handler) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers[jobType] = h
}

// Dispatch enqueues a job. payload is JSON encoded.
func (q *Queue) Dispatch(ctx context.Context, jobType string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("jobs: marshal %s: %w", jobType, err)
	}

	env, err := json.Marshal(envelope{Type: jobType, Payload: raw})
	if err != nil {
		return fmt.Errorf("jobs: marshal envelope: %w", err)
	}

	if err := q.driver.Push(ctx, env); err != nil {
		return fmt.Errorf("jobs: dispatch %s: %w", jobType, err)
	}

	q.logger.Debug().Str("job_type", jobType).Msg("job dispatched")
	return nil
}

// Run starts n workers and blocks until ctx is cancelled and they exit.
func (q *Queue) Run(ctx context.Context, n int) {
	if n < 1 {
		n = 1
	}

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			q.work(ctx)
		}()
	}

	q.logger.Info().Int("workers", n).Msg("job workers started")
	wg.Wait()
	q.logger.Info().Msg("job workers stopped")
}

func (q *Queue) work(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		raw, err := q.driver.Pop(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			q.logger.Error().Err(err).Msg("failed to pop job")
			sleep(ctx, 500*time.Millisecond)
			continue
		}
		if raw == nil {
			continue
		}

		q.process(ctx, raw)
	}
}

func (q *Queue) process(ctx context.Context, raw []byte) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		q.logger.Error().Err(err).Msg("bad job envelope")
		return
	}

	q.mu.RLock()
	h, ok := q.handlers[env.Type]
	q.mu.RUnlock()

	if !ok {
		q.logger.Warn().Str("job_type", env.Type).Msg("unregistered job type")
		return
	}

	q.runWithRetry(ctx, env, h)
}

func (q *Queue) runWithRetry(ctx context.Context, env envelope, h Handler) {
	q.mu.RLock()
	backoff, timeout := q.backoff, q.timeout
	q.mu.RUnlock()

	start := time.Now()
	var lastErr error
	for attempt := 1; attempt <= q.maxRetry; attempt++ {
		lastErr = q.safeHandle(ctx, h, env.Payload, timeout)
		if lastErr == nil {
			metrics.RecordJob(env.Type, "success", start)
			q.logger.Debug().Str("job_type", env.Type).Int("attempt", attempt).Msg("job processed")
			return
		}

		q.logger.Warn().
			Err(lastErr).
			Str("job_type", env.Type).
			Int("attempt", attempt).
			Msg("job failed")

		if attempt < q.maxRetry && !sleep(ctx, time.Duration(attempt)*backoff) {
			break
		}
	}

	metrics.RecordJob(env.Type, "failed", start)
	q.recordFailure(ctx, FailedJob{
		Type:     env.Type,
		Payload:  env.Payload,
		Err:      lastErr,
		FailedAt: time.Now(),
		Attempts: q.maxRetry,
	})

	q.logger.Error().Err(lastErr).Str("job_type", env.Type).Msg("job exhausted retries")
}

// recordFailure keeps the newest failures in memory and hands the job to the
// driver when it can persist it.
func (q *Queue) recordFailure(ctx context.Context, f FailedJob) {
	q.mu.Lock()
	q.failed = append(q.failed, f)
	q.trimFailed()
	q.mu.Unlock()

	recorder, ok := q.driver.(FailureRecorder)
	if !ok {
		return
	}

	rec := failureRecord{Type: f.Type, Payload: f.Payload, Attempts: f.Attempts, FailedAt: f.FailedAt}
	if f.Err != nil {
		rec.Error = f.Err.Error()
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		q.logger.Error().Err(err).Str("job_type", f.Type).Msg("failed to encode failed job")
		return
	}
	if err := recorder.RecordFailure(context.WithoutCancel(ctx), raw); err != nil {
		q.logger.Error().Err(err).Str("job_type", f.Type).Msg("failed to persist failed job")
	}
}

// trimFailed drops the oldest entries beyond failedLimit. Callers hold q.mu.
func (q *Queue) trimFailed() {
	if over := len(q.failed) - q.failedLimit; over > 0 {
		q.failed = append(q.failed[:0:0], q.failed[over:]...)
	}
}

func (q *Queue) safeHandle(ctx context.Context, h Handler, payload json.RawMessage, timeout time.Duration) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("jobs: handler panic: %v", r)
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return h(ctx, payload)
}

// FailedJobs returns a snapshot of the most recent jobs that exhausted their
// retries, oldest first.
func (q *Queue) FailedJobs() []FailedJob {
	q.mu.RLock()
	defer q.mu.RUnlock()
	out := make([]FailedJob, len(q.failed))
	copy(out, q.failed)
	return out
}

// sleep waits for d or until ctx ends. It reports whether the full wait elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
