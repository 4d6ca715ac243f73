package service

import (
	"context"
	"time"

	"storefront/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ProductService defines read operations on the catalogue.
type ProductService interface {
	// GetAll retrieves products with pagination.
	GetAll(ctx context.Context, limit, offset int) ([]model.ProductView, error)

	// GetByID retrieves a single product by ID.
	GetByID(ctx context.Context, id string) (*model.ProductView, error)
}

// CartService manages anonymous carts.
type CartService interface {
	// AddItems validates every line, then creates the cart when cartID is nil
	// and sets each line's quantity in one transaction.
	AddItems(ctx context.Context, cartID *uuid.UUID, items []model.CartItemRequest) (*model.CartView, error)

	// AddOrUpdateItem is the single-line form of AddItems.
	AddOrUpdateItem(ctx context.Context, cartID uuid.UUID, productID string, quantity int) (*model.CartView, error)

	RemoveItem(ctx context.Context, cartID uuid.UUID, productID string) (*model.CartView, error)
	GetCart(ctx context.Context, cartID uuid.UUID) (*model.CartView, error)

	// ReapAbandoned deletes carts untouched for longer than olderThan.
	ReapAbandoned(ctx context.Context, olderThan time.Duration) (int64, error)
}

// CheckoutService converts a cart into an order behind a phone challenge.
type CheckoutService interface {
	// Begin attaches the coupon, records the phone and sends a code.
	Begin(ctx context.Context, req *model.BeginRequest) (*model.BeginResponse, error)

	// Verify checks the code and commits the order.
	Verify(ctx context.Context, req *model.VerifyRequest) (*model.OrderResponse, error)
}

// OrderService defines read operations on committed orders.
type OrderService interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.OrderResponse, error)
}

// CouponService previews coupons.
type CouponService interface {
	Check(ctx context.Context, code string) (*model.CouponView, error)
}

// DeviceService registers push targets.
type DeviceService interface {
	Register(ctx context.Context, req *model.DeviceRequest) (*model.DeviceToken, error)
}

// NotificationService sends admin broadcasts.
type NotificationService interface {
	Broadcast(ctx context.Context, req *model.BroadcastRequest) (*model.BroadcastResponse, error)
}

// Challenger issues and checks phone challenges.
type Challenger interface {
	Issue(ctx context.Context, phone string) error
	Verify(ctx context.Context, phone, code string) error
	Invalidate(ctx context.Context, phone string) error
}

// StockReserver decrements stock under a row lock held by tx.
type StockReserver interface {
	Reserve(ctx context.Context, tx pgx.Tx, productID string, qty int) (*model.Product, error)
}

// Dispatcher enqueues background jobs.
type Dispatcher interface {
	Dispatch(ctx context.Context, jobType string, payload any) error
}
