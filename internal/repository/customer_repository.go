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

const customerColumns = `id, phone_number, username, government, address, is_verified, created_at`

type customerRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewCustomerRepository creates a new PostgreSQL-backed customer repository.
func NewCustomerRepository(pool *pgxpool.Pool, logger zerolog.Logger) CustomerRepository {
	return &customerRepository{
		pool:   pool,
		logger: logger.With().Str("repository", "customer").Logger(),
	}
}

func scanCustomer(row scanner, c *model.Customer) error {
	return row.Scan(&c.ID, &c.PhoneNumber, &c.Username, &c.Government, &c.Address, &c.IsVerified, &c.CreatedAt)
}

// GetOrCreate inserts the customer if missing and returns the row locked.
// The bool reports whether this call created it.
func (r *customerRepository) GetOrCreate(ctx context.Context, tx pgx.Tx, phone string) (*model.Customer, bool, error) {
	tag, err := tx.Exec(ctx,
		`INSERT INTO customers (phone_number) VALUES ($1) ON CONFLICT (phone_number) DO NOTHING`, phone)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to insert customer")
		return nil, false, fmt.Errorf("failed to insert customer: %w", err)
	}
	created := tag.RowsAffected() > 0

	var c model.Customer
	err = scanCustomer(tx.QueryRow(ctx,
		`SELECT `+customerColumns+` FROM customers WHERE phone_number = $1 FOR UPDATE`, phone), &c)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to lock customer")
		return nil, false, fmt.Errorf("failed to lock customer: %w", err)
	}

	return &c, created, nil
}

// UpdateProfile persists profile fields and the verified flag.
func (r *customerRepository) UpdateProfile(ctx context.Context, tx pgx.Tx, c *model.Customer) error {
	query := `
		UPDATE customers
		SET username = $2, government = $3, address = $4, is_verified = $5
		WHERE id = $1`

	if _, err := tx.Exec(ctx, query, c.ID, c.Username, c.Government, c.Address, c.IsVerified); err != nil {
		r.logger.Error().Err(err).Int64("customer_id", c.ID).Msg("failed to update customer")
		return fmt.Errorf("failed to update customer: %w", err)
	}
	return nil
}

// GetByID retrieves a customer. Returns nil when absent.
func (r *customerRepository) GetByID(ctx context.Context, id int64) (*model.Customer, error) {
	var c model.Customer
	err := scanCustomer(r.pool.QueryRow(ctx, `SELECT `+customerColumns+` FROM customers WHERE id = $1`, id), &c)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error().Err(err).Int64("customer_id", id).Msg("failed to query customer")
		return nil, fmt.Errorf("failed to query customer: %w", err)
	}
	return &c, nil
}
