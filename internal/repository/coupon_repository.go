package repository

import (
	"context"
	"errors"
	"fmt"

	"storefront/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

const couponColumns = `id, code, discount_kind, discount_value, starts_at, ends_at, active, created_at`

type couponRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewCouponRepository creates a new PostgreSQL-backed coupon repository.
func NewCouponRepository(pool *pgxpool.Pool, logger zerolog.Logger) CouponRepository {
	return &couponRepository{
		pool:   pool,
		logger: logger.With().Str("repository", "coupon").Logger(),
	}
}

func scanCoupon(row scanner, c *model.Coupon) error {
	var kind string
	if err := row.Scan(&c.ID, &c.Code, &kind, &c.Discount.Value, &c.StartsAt, &c.EndsAt, &c.Active, &c.CreatedAt); err != nil {
		return err
	}
	c.Discount.Kind = model.DiscountKind(kind)
	return nil
}

// GetByCode looks a coupon up by its code. Returns nil when absent.
func (r *couponRepository) GetByCode(ctx context.Context, code string) (*model.Coupon, error) {
	var c model.Coupon
	err := scanCoupon(r.pool.QueryRow(ctx, `SELECT `+couponColumns+` FROM coupons WHERE code = $1`, code), &c)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Debug().Str("coupon_code", code).Msg("coupon not found")
			return nil, nil
		}
		r.logger.Error().Err(err).Str("coupon_code", code).Msg("failed to query coupon")
		return nil, fmt.Errorf("failed to query coupon: %w", err)
	}
	return &c, nil
}

// GetByID retrieves a coupon by ID outside a transaction.
func (r *couponRepository) GetByID(ctx context.Context, id int64) (*model.Coupon, error) {
	return r.getByID(ctx, r.pool, id)
}

// GetByIDTx retrieves a coupon by ID inside tx.
func (r *couponRepository) GetByIDTx(ctx context.Context, tx pgx.Tx, id int64) (*model.Coupon, error) {
	return r.getByID(ctx, tx, id)
}

func (r *couponRepository) getByID(ctx context.Context, q querier, id int64) (*model.Coupon, error) {
	var c model.Coupon
	err := scanCoupon(q.QueryRow(ctx, `SELECT `+couponColumns+` FROM coupons WHERE id = $1`, id), &c)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error().Err(err).Int64("coupon_id", id).Msg("failed to query coupon")
		return nil, fmt.Errorf("failed to query coupon: %w", err)
	}
	return &c, nil
}

// UpsertMany inserts or refreshes coupons in a single batch.
func (r *couponRepository) UpsertMany(ctx context.Context, coupons []model.Coupon) (int, error) {
	if len(coupons) == 0 {
		return 0, nil
	}

	query := `
		INSERT INTO coupons (code, discount_kind, discount_value, starts_at, ends_at, active)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (code) DO UPDATE SET
			discount_kind = EXCLUDED.discount_kind,
			discount_value = EXCLUDED.discount_value,
			starts_at = EXCLUDED.starts_at,
			ends_at = EXCLUDED.ends_at,
			active = EXCLUDED.active`

	batch := &pgx.Batch{}
	for _, c := range coupons {
		batch.Queue(query, c.Code, string(c.Discount.Kind), c.Discount.Value, c.StartsAt, c.EndsAt, c.Active)
	}

	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()

	for i := range coupons {
		if _, err := results.Exec(); err != nil {
			r.logger.Error().
				Err(err).
				Str("coupon_code", coupons[i].Code).
				Msg("failed to upsert coupon")
			return i, fmt.Errorf("failed to upsert coupon %s: %w", coupons[i].Code, err)
		}
	}

	r.logger.Debug().Int("count", len(coupons)).Msg("coupons upserted")
	return len(coupons), nil
}
