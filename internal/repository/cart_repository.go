package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storefront/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const cartColumns = `id, applied_coupon_id, checkout_phone, quoted_total, state, created_at, updated_at`

// cartRepository implements CartRepository using PostgreSQL.
type cartRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewCartRepository creates a new PostgreSQL-backed cart repository.
func NewCartRepository(pool *pgxpool.Pool, logger zerolog.Logger) CartRepository {
	return &cartRepository{
		pool:   pool,
		logger: logger.With().Str("repository", "cart").Logger(),
	}
}

func scanCart(row scanner, c *model.Cart) error {
	var (
		state  string
		quoted decimal.NullDecimal
	)
	if err := row.Scan(&c.ID, &c.AppliedCouponID, &c.CheckoutPhone, &quoted, &state, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return err
	}
	c.State = model.CartState(state)
	c.QuotedTotal = nil
	if quoted.Valid {
		c.QuotedTotal = &quoted.Decimal
	}
	return nil
}

// Create inserts a new, empty cart.
func (r *cartRepository) Create(ctx context.Context, tx pgx.Tx, cart *model.Cart) error {
	if cart.State == "" {
		cart.State = model.CartOpen
	}

	query := `
		INSERT INTO carts (id, state, created_at, updated_at)
		VALUES ($1, $2, $3, $4)`

	_, err := tx.Exec(ctx, query, cart.ID, string(cart.State), cart.CreatedAt, cart.UpdatedAt)
	if err != nil {
		r.logger.Error().Err(err).Str("cart_id", cart.ID.String()).Msg("failed to create cart")
		return fmt.Errorf("failed to create cart: %w", err)
	}

	r.logger.Debug().Str("cart_id", cart.ID.String()).Msg("cart created")
	return nil
}

// GetByID retrieves a cart. Returns nil when absent.
func (r *cartRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Cart, error) {
	return r.get(ctx, r.pool, `SELECT `+cartColumns+` FROM carts WHERE id = $1`, id)
}

// GetForUpdate retrieves and locks a cart. Returns nil when absent.
func (r *cartRepository) GetForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*model.Cart, error) {
	return r.get(ctx, tx, `SELECT `+cartColumns+` FROM carts WHERE id = $1 FOR UPDATE`, id)
}

func (r *cartRepository) get(ctx context.Context, q querier, query string, id uuid.UUID) (*model.Cart, error) {
	var c model.Cart
	if err := scanCart(q.QueryRow(ctx, query, id), &c); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Debug().Str("cart_id", id.String()).Msg("cart not found")
			return nil, nil
		}
		r.logger.Error().Err(err).Str("cart_id", id.String()).Msg("failed to query cart")
		return nil, fmt.Errorf("failed to query cart: %w", err)
	}
	return &c, nil
}

// Items returns the cart's lines joined with their products, ordered by product ID.
func (r *cartRepository) Items(ctx context.Context, cartID uuid.UUID) ([]model.CartItem, error) {
	return r.items(ctx, r.pool, cartID)
}

// ItemsTx is Items inside tx.
func (r *cartRepository) ItemsTx(ctx context.Context, tx pgx.Tx, cartID uuid.UUID) ([]model.CartItem, error) {
	return r.items(ctx, tx, cartID)
}

func (r *cartRepository) items(ctx context.Context, q querier, cartID uuid.UUID) ([]model.CartItem, error) {
	query := `
		SELECT ci.quantity, p.id, p.name, p.description, p.price, p.quantity,
		       p.discount_kind, p.discount_value, p.created_at, p.updated_at
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		WHERE ci.cart_id = $1
		ORDER BY p.id`

	rows, err := q.Query(ctx, query, cartID)
	if err != nil {
		r.logger.Error().Err(err).Str("cart_id", cartID.String()).Msg("failed to query cart items")
		return nil, fmt.Errorf("failed to query cart items: %w", err)
	}
	defer rows.Close()

	items := []model.CartItem{}
	for rows.Next() {
		item := model.CartItem{CartID: cartID}
		var (
			kind  *string
			value decimal.NullDecimal
			p     = &item.Product
		)
		err := rows.Scan(&item.Quantity, &p.ID, &p.Name, &p.Description, &p.Price, &p.Quantity,
			&kind, &value, &p.CreatedAt, &p.UpdatedAt)
		if err != nil {
			r.logger.Error().Err(err).Msg("failed to scan cart item row")
			return nil, fmt.Errorf("failed to scan cart item: %w", err)
		}
		if kind != nil && value.Valid {
			p.Discount = &model.Discount{Kind: model.DiscountKind(*kind), Value: value.Decimal}
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error().Err(err).Msg("error iterating cart item rows")
		return nil, fmt.Errorf("error iterating cart items: %w", err)
	}

	return items, nil
}

// UpsertItem sets the line quantity and touches the cart.
func (r *cartRepository) UpsertItem(ctx context.Context, tx pgx.Tx, cartID uuid.UUID, productID string, quantity int) error {
	query := `
		INSERT INTO cart_items (cart_id, product_id, quantity)
		VALUES ($1, $2, $3)
		ON CONFLICT (cart_id, product_id) DO UPDATE SET quantity = EXCLUDED.quantity`

	if _, err := tx.Exec(ctx, query, cartID, productID, quantity); err != nil {
		r.logger.Error().Err(err).
			Str("cart_id", cartID.String()).
			Str("product_id", productID).
			Msg("failed to upsert cart item")
		return fmt.Errorf("failed to upsert cart item: %w", err)
	}

	if _, err := tx.Exec(ctx, `UPDATE carts SET updated_at = NOW() WHERE id = $1`, cartID); err != nil {
		return fmt.Errorf("failed to touch cart: %w", err)
	}

	return nil
}

// RemoveItem deletes a product line and touches the cart.
func (r *cartRepository) RemoveItem(ctx context.Context, cartID uuid.UUID, productID string) (bool, error) {
	query := `
		WITH removed AS (
			DELETE FROM cart_items WHERE cart_id = $1 AND product_id = $2
			RETURNING cart_id
		)
		UPDATE carts SET updated_at = NOW()
		WHERE id IN (SELECT cart_id FROM removed)`

	tag, err := r.pool.Exec(ctx, query, cartID, productID)
	if err != nil {
		r.logger.Error().Err(err).
			Str("cart_id", cartID.String()).
			Str("product_id", productID).
			Msg("failed to remove cart item")
		return false, fmt.Errorf("failed to remove cart item: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

// SetCheckout records coupon, phone, state and advisory total on the cart.
func (r *cartRepository) SetCheckout(ctx context.Context, tx pgx.Tx, cartID uuid.UUID, u CheckoutUpdate) error {
	quoted := decimal.NullDecimal{}
	if u.QuotedTotal != nil {
		quoted = decimal.NullDecimal{Decimal: *u.QuotedTotal, Valid: true}
	}

	query := `
		UPDATE carts
		SET applied_coupon_id = $2, checkout_phone = $3, state = $4, quoted_total = $5, updated_at = NOW()
		WHERE id = $1`

	tag, err := tx.Exec(ctx, query, cartID, u.CouponID, u.Phone, string(u.State), quoted)
	if err != nil {
		r.logger.Error().Err(err).Str("cart_id", cartID.String()).Msg("failed to update cart checkout state")
		return fmt.Errorf("failed to update cart checkout state: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrCartNotFound
	}

	return nil
}

// Delete removes the cart and its items.
func (r *cartRepository) Delete(ctx context.Context, tx pgx.Tx, cartID uuid.UUID) error {
	if _, err := tx.Exec(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, cartID); err != nil {
		r.logger.Error().Err(err).Str("cart_id", cartID.String()).Msg("failed to delete cart items")
		return fmt.Errorf("failed to delete cart items: %w", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM carts WHERE id = $1`, cartID); err != nil {
		r.logger.Error().Err(err).Str("cart_id", cartID.String()).Msg("failed to delete cart")
		return fmt.Errorf("failed to delete cart: %w", err)
	}

	r.logger.Debug().Str("cart_id", cartID.String()).Msg("cart deleted")
	return nil
}

// DeleteAbandoned removes carts not updated since cutoff. Items cascade.
// Carts locked by an in-flight checkout are skipped.
func (r *cartRepository) DeleteAbandoned(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `
		DELETE FROM carts
		WHERE id IN (
			SELECT id FROM carts
			WHERE updated_at < $1
			FOR UPDATE SKIP LOCKED
		)`

	tag, err := r.pool.Exec(ctx, query, cutoff)
	if err != nil {
		r.logger.Error().Err(err).Time("cutoff", cutoff).Msg("failed to delete abandoned carts")
		return 0, fmt.Errorf("failed to delete abandoned carts: %w", err)
	}

	return tag.RowsAffected(), nil
}
