package repository

import (
	"context"
	"time"

	"storefront/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// Transactor starts database transactions for multi-repository units of work.
type Transactor interface {
	BeginTx(ctx context.Context) (pgx.Tx, error)
}

// ProductRepository defines the interface for product data access operations.
type ProductRepository interface {
	// GetAll retrieves all products with pagination support.
	GetAll(ctx context.Context, limit, offset int) ([]model.Product, error)

	// GetByID retrieves a single product by its ID. Returns nil when absent.
	GetByID(ctx context.Context, id string) (*model.Product, error)

	// GetByIDs retrieves multiple products by their IDs.
	GetByIDs(ctx context.Context, ids []string) ([]model.Product, error)

	// LockByID reads a product under a row lock held until tx ends.
	LockByID(ctx context.Context, tx pgx.Tx, id string) (*model.Product, error)

	// AdjustQuantity adds delta to the on-hand quantity and returns the new value.
	AdjustQuantity(ctx context.Context, tx pgx.Tx, id string, delta int) (int, error)

	// Upsert creates or replaces a catalogue product.
	Upsert(ctx context.Context, p *model.Product) error
}

// CouponRepository defines coupon lookups and bulk import.
type CouponRepository interface {
	GetByCode(ctx context.Context, code string) (*model.Coupon, error)
	GetByID(ctx context.Context, id int64) (*model.Coupon, error)
	GetByIDTx(ctx context.Context, tx pgx.Tx, id int64) (*model.Coupon, error)

	// UpsertMany inserts or refreshes coupons keyed by code.
	UpsertMany(ctx context.Context, coupons []model.Coupon) (int, error)
}

// CheckoutUpdate is the checkout state recorded on a cart by Begin.
type CheckoutUpdate struct {
	CouponID    *int64
	Phone       *string
	State       model.CartState
	QuotedTotal *decimal.Decimal
}

// CartRepository defines cart and cart item persistence.
type CartRepository interface {
	Create(ctx context.Context, tx pgx.Tx, cart *model.Cart) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Cart, error)

	// GetForUpdate reads the cart under a row lock. Returns nil when absent.
	GetForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*model.Cart, error)

	Items(ctx context.Context, cartID uuid.UUID) ([]model.CartItem, error)
	ItemsTx(ctx context.Context, tx pgx.Tx, cartID uuid.UUID) ([]model.CartItem, error)

	// UpsertItem sets the quantity for a product, replacing any previous quantity.
	UpsertItem(ctx context.Context, tx pgx.Tx, cartID uuid.UUID, productID string, quantity int) error

	// RemoveItem deletes a product line. Reports whether a line existed.
	RemoveItem(ctx context.Context, cartID uuid.UUID, productID string) (bool, error)

	SetCheckout(ctx context.Context, tx pgx.Tx, cartID uuid.UUID, update CheckoutUpdate) error
	Delete(ctx context.Context, tx pgx.Tx, cartID uuid.UUID) error

	// DeleteAbandoned removes carts untouched since before cutoff.
	DeleteAbandoned(ctx context.Context, cutoff time.Time) (int64, error)
}

// CustomerRepository defines customer persistence keyed by phone number.
type CustomerRepository interface {
	// GetOrCreate returns the locked customer row for phone, creating it if needed.
	GetOrCreate(ctx context.Context, tx pgx.Tx, phone string) (*model.Customer, bool, error)
	UpdateProfile(ctx context.Context, tx pgx.Tx, c *model.Customer) error
	GetByID(ctx context.Context, id int64) (*model.Customer, error)
}

// OrderRepository defines the interface for order data access operations.
type OrderRepository interface {
	// CreateOrder inserts a new order within the provided transaction.
	CreateOrder(ctx context.Context, tx pgx.Tx, order *model.Order) error

	// CreateOrderItems inserts multiple order items within the provided transaction.
	CreateOrderItems(ctx context.Context, tx pgx.Tx, items []model.OrderItem) error

	// UpdateTotals persists the computed totals of an order.
	UpdateTotals(ctx context.Context, tx pgx.Tx, order *model.Order) error

	// GetByID retrieves an order by its ID along with its items.
	GetByID(ctx context.Context, id uuid.UUID) (*model.Order, []model.OrderItem, error)
}

// DeviceRepository stores push notification targets.
type DeviceRepository interface {
	Upsert(ctx context.Context, d *model.DeviceToken) error
	ListByPhone(ctx context.Context, phone string) ([]model.DeviceToken, error)
	ListAll(ctx context.Context) ([]model.DeviceToken, error)
}

// AlertRepository records admin broadcasts.
type AlertRepository interface {
	Create(ctx context.Context, a *model.Alert) error
	MarkSent(ctx context.Context, id int64) error
}
