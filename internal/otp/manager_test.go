package otp

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"storefront/internal/model"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingSender captures delivered codes.
type recordingSender struct {
	mu   sync.Mutex
	sent map[string]Code
	err  error
}

func (s *recordingSender) SendOTP(_ context.Context, phone string, code Code) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	if s.sent == nil {
		s.sent = map[string]Code{}
	}
	s.sent[phone] = code
	return nil
}

func (s *recordingSender) last(phone string) Code {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sent[phone]
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

const phone = "+201000000010"

func newTestManager() (*Manager, *recordingSender, *fakeClock) {
	clock := &fakeClock{now: time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)}
	sender := &recordingSender{}
	m := NewManager(NewMemoryStore(clock.Now), sender, DefaultTTL, DefaultMaxAttempts, zerolog.Nop())
	return m, sender, clock
}

func wrongCode(c Code) string {
	if c == "123456" {
		return "654321"
	}
	return "123456"
}

func TestManager_IssueAndVerify(t *testing.T) {
	ctx := context.Background()
	m, sender, _ := newTestManager()

	require.NoError(t, m.Issue(ctx, phone))
	code := sender.last(phone)
	require.Len(t, string(code), 6)

	require.NoError(t, m.Verify(ctx, phone, string(code)))
	require.NoError(t, m.Verify(ctx, phone, string(code)), "success does not consume the code")

	require.NoError(t, m.Invalidate(ctx, phone))
	assert.ErrorIs(t, m.Verify(ctx, phone, string(code)), model.ErrChallengeMissing)
}

func TestManager_ReissueReplacesCode(t *testing.T) {
	ctx := context.Background()
	m, sender, _ := newTestManager()

	var first Code
	for i := 0; i < 10; i++ {
		require.NoError(t, m.Issue(ctx, phone))
		if first == "" {
			first = sender.last(phone)
			continue
		}
		if sender.last(phone) != first {
			break
		}
	}
	second := sender.last(phone)
	require.NotEqual(t, first, second)

	assert.ErrorIs(t, m.Verify(ctx, phone, string(first)), model.ErrChallengeInvalid)
	assert.NoError(t, m.Verify(ctx, phone, string(second)))
}

func TestManager_Verify_Expired(t *testing.T) {
	ctx := context.Background()
	m, sender, clock := newTestManager()

	require.NoError(t, m.Issue(ctx, phone))
	code := sender.last(phone)

	clock.Advance(DefaultTTL + time.Second)

	assert.ErrorIs(t, m.Verify(ctx, phone, string(code)), model.ErrChallengeMissing)
}

func TestManager_Verify_MissingAndMalformed(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newTestManager()

	assert.ErrorIs(t, m.Verify(ctx, phone, "123456"), model.ErrChallengeMissing)

	for _, bad := range []string{"", "12345", "1234567", "12a456", "012345", " 12345"} {
		assert.ErrorIs(t, m.Verify(ctx, phone, bad), model.ErrMalformedCode, "input %q", bad)
	}
}

func TestManager_Verify_AttemptLimit(t *testing.T) {
	ctx := context.Background()
	m, sender, _ := newTestManager()

	require.NoError(t, m.Issue(ctx, phone))
	code := sender.last(phone)
	bad := wrongCode(code)

	for i := 1; i < DefaultMaxAttempts; i++ {
		assert.ErrorIs(t, m.Verify(ctx, phone, bad), model.ErrChallengeInvalid, "attempt %d", i)
	}
	assert.ErrorIs(t, m.Verify(ctx, phone, bad), model.ErrTooManyAttempts)

	assert.ErrorIs(t, m.Verify(ctx, phone, string(code)), model.ErrChallengeMissing,
		"the correct code is unusable once the challenge is locked")

	require.NoError(t, m.Issue(ctx, phone))
	assert.NoError(t, m.Verify(ctx, phone, string(sender.last(phone))), "reissue resets attempts")
}

func TestManager_Issue_DeliveryFailure(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(nil)
	sender := &recordingSender{err: errors.New("gateway unavailable")}
	m := NewManager(store, sender, DefaultTTL, DefaultMaxAttempts, zerolog.Nop())

	err := m.Issue(ctx, phone)

	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrDeliveryFailed)
	var de *model.DomainError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, model.KindExternalDependency, de.Kind)

	_, getErr := store.Get(ctx, phone)
	assert.ErrorIs(t, getErr, ErrNoChallenge, "undelivered code must not stay issued")
}

func TestGenerate_Range(t *testing.T) {
	for i := 0; i < 2000; i++ {
		c, err := Generate()
		require.NoError(t, err)
		parsed, err := ParseCode(string(c))
		require.NoError(t, err)
		assert.True(t, parsed.Equal(c))
	}
}
