package service

import (
	"context"
	"fmt"
	"time"

	"storefront/internal/metrics"
	"storefront/internal/model"
	"storefront/internal/pricing"
	"storefront/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// cartService implements CartService.
type cartService struct {
	tx          repository.Transactor
	cartRepo    repository.CartRepository
	productRepo repository.ProductRepository
	couponRepo  repository.CouponRepository
	now         func() time.Time
	logger      zerolog.Logger
}

// NewCartService creates a new cart service.
func NewCartService(
	tx repository.Transactor,
	cartRepo repository.CartRepository,
	productRepo repository.ProductRepository,
	couponRepo repository.CouponRepository,
	logger zerolog.Logger,
) CartService {
	return &cartService{
		tx:          tx,
		cartRepo:    cartRepo,
		productRepo: productRepo,
		couponRepo:  couponRepo,
		now:         time.Now,
		logger:      logger.With().Str("service", "cart").Logger(),
	}
}

// AddItems validates every line before touching the cart so a rejected line
// leaves no cart created and no quantity changed.
func (s *cartService) AddItems(ctx context.Context, cartID *uuid.UUID, items []model.CartItemRequest) (view *model.CartView, err error) {
	if len(items) == 0 {
		return nil, model.MissingField("products")
	}
	if err := s.validateItems(ctx, items); err != nil {
		return nil, err
	}

	tx, err := s.tx.BeginTx(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to begin transaction")
		return nil, fmt.Errorf("failed to add to cart: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				s.logger.Error().Err(rbErr).Msg("failed to rollback transaction")
			}
		}
	}()

	var id uuid.UUID
	if cartID == nil {
		now := s.now()
		cart := &model.Cart{ID: uuid.New(), State: model.CartOpen, CreatedAt: now, UpdatedAt: now}
		if err = s.cartRepo.Create(ctx, tx, cart); err != nil {
			return nil, err
		}
		id = cart.ID
		s.logger.Debug().Str("cart_id", id.String()).Msg("cart created")
	} else {
		cart, lockErr := s.cartRepo.GetForUpdate(ctx, tx, *cartID)
		if lockErr != nil {
			return nil, lockErr
		}
		if cart == nil {
			return nil, model.ErrCartNotFound
		}
		id = cart.ID
	}

	for _, item := range items {
		if err = s.cartRepo.UpsertItem(ctx, tx, id, item.ProductID, item.Quantity); err != nil {
			return nil, err
		}
	}

	if err = tx.Commit(ctx); err != nil {
		s.logger.Error().Err(err).Str("cart_id", id.String()).Msg("failed to commit transaction")
		return nil, fmt.Errorf("failed to add to cart: %w", err)
	}

	s.logger.Info().
		Str("cart_id", id.String()).
		Int("item_count", len(items)).
		Msg("cart updated")

	return s.GetCart(ctx, id)
}

// validateItems checks product existence, then quantity, then stock for each line.
func (s *cartService) validateItems(ctx context.Context, items []model.CartItemRequest) error {
	ids := make([]string, 0, len(items))
	for i, item := range items {
		if item.ProductID == "" {
			s.logger.Warn().Int("item_index", i).Msg("product ID is empty")
			return model.MissingField("productId")
		}
		ids = append(ids, item.ProductID)
	}

	products, err := s.productRepo.GetByIDs(ctx, ids)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to load products")
		return fmt.Errorf("failed to load products: %w", err)
	}
	byID := make(map[string]*model.Product, len(products))
	for i := range products {
		byID[products[i].ID] = &products[i]
	}

	for _, item := range items {
		p, ok := byID[item.ProductID]
		if !ok {
			s.logger.Warn().Str("product_id", item.ProductID).Msg("product not found")
			return model.ErrProductNotFound
		}
		if item.Quantity <= 0 {
			s.logger.Warn().
				Str("product_id", item.ProductID).
				Int("quantity", item.Quantity).
				Msg("invalid quantity")
			return model.ErrInvalidQuantity
		}
		if item.Quantity > p.Quantity {
			s.logger.Warn().
				Str("product_id", item.ProductID).
				Int("requested", item.Quantity).
				Int("available", p.Quantity).
				Msg("requested quantity exceeds stock")
			return model.OutOfStock(p.Name, p.Quantity)
		}
	}

	return nil
}

// AddOrUpdateItem sets one product's quantity in an existing cart.
func (s *cartService) AddOrUpdateItem(ctx context.Context, cartID uuid.UUID, productID string, quantity int) (*model.CartView, error) {
	return s.AddItems(ctx, &cartID, []model.CartItemRequest{{ProductID: productID, Quantity: quantity}})
}

// RemoveItem deletes a product line. Removing an absent line is not an error.
func (s *cartService) RemoveItem(ctx context.Context, cartID uuid.UUID, productID string) (*model.CartView, error) {
	cart, err := s.cartRepo.GetByID(ctx, cartID)
	if err != nil {
		return nil, err
	}
	if cart == nil {
		return nil, model.ErrCartNotFound
	}

	removed, err := s.cartRepo.RemoveItem(ctx, cartID, productID)
	if err != nil {
		return nil, err
	}

	s.logger.Debug().
		Str("cart_id", cartID.String()).
		Str("product_id", productID).
		Bool("removed", removed).
		Msg("cart item removed")

	return s.GetCart(ctx, cartID)
}

// GetCart returns the priced cart.
func (s *cartService) GetCart(ctx context.Context, cartID uuid.UUID) (*model.CartView, error) {
	cart, err := s.cartRepo.GetByID(ctx, cartID)
	if err != nil {
		return nil, err
	}
	if cart == nil {
		return nil, model.ErrCartNotFound
	}

	items, err := s.cartRepo.Items(ctx, cartID)
	if err != nil {
		return nil, err
	}

	var coupon *model.Coupon
	if cart.AppliedCouponID != nil {
		coupon, err = s.couponRepo.GetByID(ctx, *cart.AppliedCouponID)
		if err != nil {
			return nil, err
		}
	}

	return buildCartView(cart, items, coupon), nil
}

// ReapAbandoned deletes carts untouched for longer than olderThan.
func (s *cartService) ReapAbandoned(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := s.now().Add(-olderThan)

	n, err := s.cartRepo.DeleteAbandoned(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	metrics.CartsReaped.Add(float64(n))
	if n > 0 {
		s.logger.Info().Int64("carts", n).Time("cutoff", cutoff).Msg("abandoned carts reaped")
	}
	return n, nil
}

// cartLines converts cart items to pricing lines.
func cartLines(items []model.CartItem) []pricing.Line {
	lines := make([]pricing.Line, len(items))
	for i, it := range items {
		lines[i] = pricing.Line{Product: it.Product, Quantity: it.Quantity}
	}
	return lines
}

func couponView(c *model.Coupon, discount *pricing.Summary) *model.CouponView {
	if c == nil {
		return nil
	}
	v := &model.CouponView{
		Code:   c.Code,
		Kind:   c.Discount.Kind,
		Value:  c.Discount.Value,
		EndsAt: c.EndsAt,
	}
	if discount != nil {
		v.Discount = discount.Discount
	}
	return v
}

func buildCartView(cart *model.Cart, items []model.CartItem, coupon *model.Coupon) *model.CartView {
	summary := pricing.Summarize(cartLines(items), coupon)

	lines := make([]model.CartLineView, len(items))
	for i, it := range items {
		lines[i] = model.CartLineView{
			ProductID: it.Product.ID,
			Name:      it.Product.Name,
			Quantity:  it.Quantity,
			UnitPrice: pricing.DiscountedPrice(it.Product),
			LineTotal: pricing.LineTotal(it.Product, it.Quantity),
		}
	}

	return &model.CartView{
		ID:       cart.ID,
		State:    cart.State,
		Items:    lines,
		Coupon:   couponView(coupon, &summary),
		Subtotal: summary.Subtotal,
		Discount: summary.Discount,
		Total:    summary.Total,
		IsEmpty:  len(items) == 0,
	}
}
