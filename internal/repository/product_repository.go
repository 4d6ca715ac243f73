package repository

import (
	"context"
	"errors"
	"fmt"

	"storefront/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const productColumns = `id, name, description, price, quantity, discount_kind, discount_value, created_at, updated_at`

// productRepository implements the ProductRepository interface using PostgreSQL.
type productRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewProductRepository creates a new PostgreSQL-backed product repository.
func NewProductRepository(pool *pgxpool.Pool, logger zerolog.Logger) ProductRepository {
	return &productRepository{
		pool:   pool,
		logger: logger.With().Str("repository", "product").Logger(),
	}
}

func scanProduct(row scanner, p *model.Product) error {
	var (
		kind  *string
		value decimal.NullDecimal
	)
	if err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.Quantity, &kind, &value, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return err
	}
	p.Discount = nil
	if kind != nil && value.Valid {
		p.Discount = &model.Discount{Kind: model.DiscountKind(*kind), Value: value.Decimal}
	}
	return nil
}

func discountColumns(d *model.Discount) (*string, decimal.NullDecimal) {
	if d == nil {
		return nil, decimal.NullDecimal{}
	}
	kind := string(d.Kind)
	return &kind, decimal.NullDecimal{Decimal: d.Value, Valid: true}
}

// GetAll retrieves all products with pagination support.
func (r *productRepository) GetAll(ctx context.Context, limit, offset int) ([]model.Product, error) {
	query := `SELECT ` + productColumns + `
		FROM products
		ORDER BY name
		LIMIT $1 OFFSET $2`

	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		r.logger.Error().Err(err).
			Int("limit", limit).
			Int("offset", offset).
			Msg("failed to query products")
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	return r.collect(rows)
}

// GetByID retrieves a single product by its ID.
func (r *productRepository) GetByID(ctx context.Context, id string) (*model.Product, error) {
	return r.getOne(ctx, r.pool, `SELECT `+productColumns+` FROM products WHERE id = $1`, id)
}

// LockByID reads a product with SELECT ... FOR UPDATE inside tx.
func (r *productRepository) LockByID(ctx context.Context, tx pgx.Tx, id string) (*model.Product, error) {
	return r.getOne(ctx, tx, `SELECT `+productColumns+` FROM products WHERE id = $1 FOR UPDATE`, id)
}

func (r *productRepository) getOne(ctx context.Context, q querier, query, id string) (*model.Product, error) {
	var p model.Product
	err := scanProduct(q.QueryRow(ctx, query, id), &p)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Debug().Str("product_id", id).Msg("product not found")
			return nil, nil
		}
		r.logger.Error().Err(err).Str("product_id", id).Msg("failed to query product")
		return nil, fmt.Errorf("failed to query product: %w", err)
	}
	return &p, nil
}

// GetByIDs retrieves multiple products by their IDs.
func (r *productRepository) GetByIDs(ctx context.Context, ids []string) ([]model.Product, error) {
	if len(ids) == 0 {
		return []model.Product{}, nil
	}

	query := `SELECT ` + productColumns + `
		FROM products
		WHERE id = ANY($1)
		ORDER BY id`

	rows, err := r.pool.Query(ctx, query, ids)
	if err != nil {
		r.logger.Error().Err(err).Int("count", len(ids)).Msg("failed to query products by IDs")
		return nil, fmt.Errorf("failed to query products by IDs: %w", err)
	}
	defer rows.Close()

	return r.collect(rows)
}

func (r *productRepository) collect(rows pgx.Rows) ([]model.Product, error) {
	products := []model.Product{}
	for rows.Next() {
		var p model.Product
		if err := scanProduct(rows, &p); err != nil {
			r.logger.Error().Err(err).Msg("failed to scan product row")
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, p)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error().Err(err).Msg("error iterating product rows")
		return nil, fmt.Errorf("error iterating products: %w", err)
	}

	return products, nil
}

// AdjustQuantity applies delta to the product's quantity. The CHECK constraint
// on products.quantity rejects any update that would go negative.
func (r *productRepository) AdjustQuantity(ctx context.Context, tx pgx.Tx, id string, delta int) (int, error) {
	query := `
		UPDATE products
		SET quantity = quantity + $2, updated_at = NOW()
		WHERE id = $1
		RETURNING quantity`

	var quantity int
	err := tx.QueryRow(ctx, query, id, delta).Scan(&quantity)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, model.ErrProductNotFound
		}
		r.logger.Error().Err(err).
			Str("product_id", id).
			Int("delta", delta).
			Msg("failed to adjust product quantity")
		return 0, fmt.Errorf("failed to adjust product quantity: %w", err)
	}

	r.logger.Debug().
		Str("product_id", id).
		Int("delta", delta).
		Int("quantity", quantity).
		Msg("product quantity adjusted")

	return quantity, nil
}

// Upsert creates or replaces a catalogue product.
func (r *productRepository) Upsert(ctx context.Context, p *model.Product) error {
	if p.Discount != nil {
		if err := p.Discount.Validate(p.Price); err != nil {
			return fmt.Errorf("invalid discount for product %s: %w", p.ID, err)
		}
	}

	kind, value := discountColumns(p.Discount)
	query := `
		INSERT INTO products (id, name, description, price, quantity, discount_kind, discount_value)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			price = EXCLUDED.price,
			quantity = EXCLUDED.quantity,
			discount_kind = EXCLUDED.discount_kind,
			discount_value = EXCLUDED.discount_value,
			updated_at = NOW()
		RETURNING created_at, updated_at`

	err := r.pool.QueryRow(ctx, query, p.ID, p.Name, p.Description, p.Price, p.Quantity, kind, value).
		Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		r.logger.Error().Err(err).Str("product_id", p.ID).Msg("failed to upsert product")
		return fmt.Errorf("failed to upsert product: %w", err)
	}

	return nil
}
