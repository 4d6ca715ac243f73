package repository

import (
	"context"
	"fmt"

	"storefront/internal/model"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

type alertRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewAlertRepository creates a new PostgreSQL-backed alert repository.
func NewAlertRepository(pool *pgxpool.Pool, logger zerolog.Logger) AlertRepository {
	return &alertRepository{
		pool:   pool,
		logger: logger.With().Str("repository", "alert").Logger(),
	}
}

// Create stores a new unsent alert.
func (r *alertRepository) Create(ctx context.Context, a *model.Alert) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO alerts (title, message) VALUES ($1, $2) RETURNING id, is_sent, created_at`,
		a.Title, a.Message).Scan(&a.ID, &a.IsSent, &a.CreatedAt)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to create alert")
		return fmt.Errorf("failed to create alert: %w", err)
	}
	return nil
}

// MarkSent flags an alert as dispatched.
func (r *alertRepository) MarkSent(ctx context.Context, id int64) error {
	if _, err := r.pool.Exec(ctx, `UPDATE alerts SET is_sent = TRUE WHERE id = $1`, id); err != nil {
		r.logger.Error().Err(err).Int64("alert_id", id).Msg("failed to mark alert sent")
		return fmt.Errorf("failed to mark alert sent: %w", err)
	}
	return nil
}
