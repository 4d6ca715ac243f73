// Package otp issues and verifies phone-bound one-time codes.
package otp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storefront/internal/metrics"
	"storefront/internal/model"

	"github.com/rs/zerolog"
)

const (
	DefaultTTL         = 600 * time.Second
	DefaultMaxAttempts = 5
)

// Sender delivers a code to a phone number.
type Sender interface {
	SendOTP(ctx context.Context, phone string, code Code) error
}

// Manager issues, verifies and invalidates challenges. A successful Verify
// leaves the code in place; callers Invalidate once their work is durable.
type Manager struct {
	store       Store
	sender      Sender
	ttl         time.Duration
	maxAttempts int64
	logger      zerolog.Logger
}

// NewManager creates a Manager. Zero ttl or maxAttempts select the defaults.
func NewManager(store Store, sender Sender, ttl time.Duration, maxAttempts int, logger zerolog.Logger) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &Manager{
		store:       store,
		sender:      sender,
		ttl:         ttl,
		maxAttempts: int64(maxAttempts),
		logger:      logger.With().Str("component", "otp").Logger(),
	}
}

// Issue generates a fresh code for phone, replacing any live one, and sends
// it. If delivery fails the stored code is removed and ErrDeliveryFailed is
// returned.
func (m *Manager) Issue(ctx context.Context, phone string) error {
	code, err := Generate()
	if err != nil {
		return err
	}

	if err := m.store.Set(ctx, phone, code, m.ttl); err != nil {
		m.logger.Error().Err(err).Msg("failed to store challenge")
		return fmt.Errorf("failed to store challenge: %w", err)
	}

	if err := m.sender.SendOTP(ctx, phone, code); err != nil {
		if delErr := m.store.Delete(ctx, phone); delErr != nil {
			m.logger.Error().Err(delErr).Msg("failed to discard undelivered challenge")
		}
		metrics.OTPEvents.WithLabelValues("issue", "delivery_failed").Inc()
		m.logger.Error().Err(err).Msg("failed to deliver challenge")
		return fmt.Errorf("%w: %w", model.ErrDeliveryFailed, err)
	}

	metrics.OTPEvents.WithLabelValues("issue", "sent").Inc()
	m.logger.Debug().Dur("ttl", m.ttl).Msg("challenge issued")
	return nil
}

// Verify checks supplied against the live code for phone. Each mismatch
// counts against the attempt budget; exhausting it discards the challenge.
func (m *Manager) Verify(ctx context.Context, phone, supplied string) error {
	code, err := ParseCode(supplied)
	if err != nil {
		metrics.OTPEvents.WithLabelValues("verify", "malformed").Inc()
		return err
	}

	stored, err := m.store.Get(ctx, phone)
	if err != nil {
		if errors.Is(err, ErrNoChallenge) {
			metrics.OTPEvents.WithLabelValues("verify", "missing").Inc()
			return model.ErrChallengeMissing
		}
		m.logger.Error().Err(err).Msg("failed to read challenge")
		return fmt.Errorf("failed to read challenge: %w", err)
	}

	if stored.Equal(code) {
		metrics.OTPEvents.WithLabelValues("verify", "ok").Inc()
		return nil
	}

	attempts, err := m.store.IncrAttempts(ctx, phone, m.ttl)
	if err != nil {
		if errors.Is(err, ErrNoChallenge) {
			return model.ErrChallengeMissing
		}
		m.logger.Error().Err(err).Msg("failed to count attempt")
		return fmt.Errorf("failed to count attempt: %w", err)
	}

	if attempts >= m.maxAttempts {
		if err := m.store.Delete(ctx, phone); err != nil {
			m.logger.Error().Err(err).Msg("failed to discard locked challenge")
		}
		metrics.OTPEvents.WithLabelValues("verify", "locked").Inc()
		m.logger.Warn().Int64("attempts", attempts).Msg("challenge locked after repeated failures")
		return model.ErrTooManyAttempts
	}

	metrics.OTPEvents.WithLabelValues("verify", "invalid").Inc()
	m.logger.Debug().Int64("attempts", attempts).Msg("challenge mismatch")
	return model.ErrChallengeInvalid
}

// Invalidate removes the challenge for phone.
func (m *Manager) Invalidate(ctx context.Context, phone string) error {
	if err := m.store.Delete(ctx, phone); err != nil {
		m.logger.Error().Err(err).Msg("failed to invalidate challenge")
		return fmt.Errorf("failed to invalidate challenge: %w", err)
	}
	return nil
}
