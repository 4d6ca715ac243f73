// Package stock owns every mutation of product on-hand quantity.
package stock

import (
	"context"
	"fmt"

	"storefront/internal/metrics"
	"storefront/internal/model"
	"storefront/internal/repository"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// DefaultLowStockThreshold is used when no threshold is configured.
const DefaultLowStockThreshold = 5

// Ledger reserves and releases stock under product row locks. Callers own
// the transaction; locks are held until it ends.
type Ledger struct {
	products  repository.ProductRepository
	threshold int
	logger    zerolog.Logger
}

// NewLedger creates a stock ledger.
func NewLedger(products repository.ProductRepository, threshold int, logger zerolog.Logger) *Ledger {
	return &Ledger{
		products:  products,
		threshold: threshold,
		logger:    logger.With().Str("component", "stock").Logger(),
	}
}

// Reserve locks the product row and decrements its quantity by qty. It
// returns the product as read under the lock with the decremented quantity.
func (l *Ledger) Reserve(ctx context.Context, tx pgx.Tx, productID string, qty int) (*model.Product, error) {
	if qty <= 0 {
		return nil, model.ErrInvalidQuantity
	}

	p, err := l.products.LockByID(ctx, tx, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock product: %w", err)
	}
	if p == nil {
		return nil, model.ErrProductNotFound
	}

	if p.Quantity-qty < 0 {
		l.logger.Warn().
			Str("product_id", productID).
			Int("requested", qty).
			Int("available", p.Quantity).
			Msg("insufficient stock")
		return nil, model.InsufficientStock(p.Name, p.Quantity)
	}

	remaining, err := l.products.AdjustQuantity(ctx, tx, productID, -qty)
	if err != nil {
		return nil, err
	}
	p.Quantity = remaining

	if IsLowStock(p, l.threshold) {
		metrics.LowStockEvents.WithLabelValues(productID).Inc()
		l.logger.Warn().
			Str("product_id", productID).
			Str("product_name", p.Name).
			Int("quantity", remaining).
			Int("threshold", l.threshold).
			Msg("product is low on stock")
	}

	return p, nil
}

// Release returns qty units to the product under the same row lock.
func (l *Ledger) Release(ctx context.Context, tx pgx.Tx, productID string, qty int) error {
	if qty <= 0 {
		return model.ErrInvalidQuantity
	}

	p, err := l.products.LockByID(ctx, tx, productID)
	if err != nil {
		return fmt.Errorf("failed to lock product: %w", err)
	}
	if p == nil {
		return model.ErrProductNotFound
	}

	remaining, err := l.products.AdjustQuantity(ctx, tx, productID, qty)
	if err != nil {
		return err
	}

	l.logger.Debug().
		Str("product_id", productID).
		Int("released", qty).
		Int("quantity", remaining).
		Msg("stock released")

	return nil
}

// IsLowStock reports whether the product's quantity is at or below threshold.
func IsLowStock(p *model.Product, threshold int) bool {
	return p.Quantity <= threshold
}
