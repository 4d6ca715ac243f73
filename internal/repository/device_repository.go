package repository

import (
	"context"
	"fmt"

	"storefront/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

type deviceRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewDeviceRepository creates a new PostgreSQL-backed device repository.
func NewDeviceRepository(pool *pgxpool.Pool, logger zerolog.Logger) DeviceRepository {
	return &deviceRepository{
		pool:   pool,
		logger: logger.With().Str("repository", "device").Logger(),
	}
}

// Upsert registers a token or refreshes its platform and owner.
func (r *deviceRepository) Upsert(ctx context.Context, d *model.DeviceToken) error {
	query := `
		INSERT INTO devices (token, platform, phone_number)
		VALUES ($1, $2, $3)
		ON CONFLICT (token) DO UPDATE SET
			platform = EXCLUDED.platform,
			phone_number = COALESCE(EXCLUDED.phone_number, devices.phone_number)
		RETURNING id, phone_number, created_at`

	err := r.pool.QueryRow(ctx, query, d.Token, string(d.Platform), d.PhoneNumber).
		Scan(&d.ID, &d.PhoneNumber, &d.CreatedAt)
	if err != nil {
		r.logger.Error().Err(err).Str("platform", string(d.Platform)).Msg("failed to upsert device")
		return fmt.Errorf("failed to upsert device: %w", err)
	}
	return nil
}

// ListByPhone returns devices registered for a customer's phone number.
func (r *deviceRepository) ListByPhone(ctx context.Context, phone string) ([]model.DeviceToken, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, token, platform, phone_number, created_at FROM devices WHERE phone_number = $1 ORDER BY id`, phone)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to query devices by phone")
		return nil, fmt.Errorf("failed to query devices: %w", err)
	}
	return r.collect(rows)
}

// ListAll returns every registered device.
func (r *deviceRepository) ListAll(ctx context.Context) ([]model.DeviceToken, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, token, platform, phone_number, created_at FROM devices ORDER BY id`)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to query devices")
		return nil, fmt.Errorf("failed to query devices: %w", err)
	}
	return r.collect(rows)
}

func (r *deviceRepository) collect(rows pgx.Rows) ([]model.DeviceToken, error) {
	defer rows.Close()

	devices := []model.DeviceToken{}
	for rows.Next() {
		var (
			d        model.DeviceToken
			platform string
		)
		if err := rows.Scan(&d.ID, &d.Token, &platform, &d.PhoneNumber, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan device: %w", err)
		}
		d.Platform = model.Platform(platform)
		devices = append(devices, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating devices: %w", err)
	}
	return devices, nil
}
