package otp

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrNoChallenge is returned by Store.Get when no live code exists.
var ErrNoChallenge = errors.New("otp: no challenge")

// Store keeps at most one live code per phone number with an expiry.
type Store interface {
	// Set stores code for phone, replacing any prior code and resetting attempts.
	Set(ctx context.Context, phone string, code Code, ttl time.Duration) error
	Get(ctx context.Context, phone string) (Code, error)
	// Delete removes the code and its attempt counter.
	Delete(ctx context.Context, phone string) error
	// IncrAttempts counts a failed verification and returns the running total.
	IncrAttempts(ctx context.Context, phone string, ttl time.Duration) (int64, error)
}

type memoryEntry struct {
	code      Code
	attempts  int64
	expiresAt time.Time
}

// MemoryStore is an in-process Store for tests and single-node development.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
	now     func() time.Time
}

// NewMemoryStore creates a MemoryStore. A nil clock uses time.Now.
func NewMemoryStore(clock func() time.Time) *MemoryStore {
	if clock == nil {
		clock = time.Now
	}
	return &MemoryStore{entries: make(map[string]*memoryEntry), now: clock}
}

func (s *MemoryStore) Set(_ context.Context, phone string, code Code, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[phone] = &memoryEntry{code: code, expiresAt: s.now().Add(ttl)}
	return nil
}

func (s *MemoryStore) Get(_ context.Context, phone string) (Code, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.live(phone)
	if !ok {
		return "", ErrNoChallenge
	}
	return e.code, nil
}

func (s *MemoryStore) Delete(_ context.Context, phone string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, phone)
	return nil
}

func (s *MemoryStore) IncrAttempts(_ context.Context, phone string, _ time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.live(phone)
	if !ok {
		return 0, ErrNoChallenge
	}
	e.attempts++
	return e.attempts, nil
}

// live must be called with mu held.
func (s *MemoryStore) live(phone string) (*memoryEntry, bool) {
	e, ok := s.entries[phone]
	if !ok {
		return nil, false
	}
	if !s.now().Before(e.expiresAt) {
		delete(s.entries, phone)
		return nil, false
	}
	return e, true
}
