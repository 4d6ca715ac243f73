// Package mocks provides testify mocks for the repository interfaces.
package mocks

import (
	"context"
	"time"

	"storefront/internal/model"
	"storefront/internal/repository"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/mock"
)

// Tx is a minimal mock implementation of pgx.Tx. Only Commit and Rollback
// carry expectations; repositories are mocked so nothing else is reached.
type Tx struct {
	mock.Mock
	Committed  bool
	RolledBack bool
}

func (m *Tx) Commit(ctx context.Context) error {
	args := m.Called(ctx)
	m.Committed = true
	return args.Error(0)
}

func (m *Tx) Rollback(ctx context.Context) error {
	args := m.Called(ctx)
	m.RolledBack = true
	return args.Error(0)
}

func (m *Tx) Begin(ctx context.Context) (pgx.Tx, error) { return nil, nil }
func (m *Tx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (m *Tx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults { return nil }
func (m *Tx) LargeObjects() pgx.LargeObjects                               { return pgx.LargeObjects{} }
func (m *Tx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (m *Tx) Exec(ctx context.Context, sql string, arguments ...any) (commandTag pgconn.CommandTag, err error) {
	return
}
func (m *Tx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}
func (m *Tx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row { return nil }
func (m *Tx) Conn() *pgx.Conn                                               { return nil }

// NewTx returns a Tx that accepts any number of Commit and Rollback calls.
func NewTx() *Tx {
	tx := new(Tx)
	tx.On("Commit", mock.Anything).Return(nil).Maybe()
	tx.On("Rollback", mock.Anything).Return(nil).Maybe()
	return tx
}

// Transactor is a mock implementation of repository.Transactor.
type Transactor struct {
	mock.Mock
}

func (m *Transactor) BeginTx(ctx context.Context) (pgx.Tx, error) {
	args := m.Called(ctx)
	if tx, ok := args.Get(0).(pgx.Tx); ok {
		return tx, args.Error(1)
	}
	return nil, args.Error(1)
}

// ProductRepository is a mock implementation of repository.ProductRepository.
type ProductRepository struct {
	mock.Mock
}

func (m *ProductRepository) GetAll(ctx context.Context, limit, offset int) ([]model.Product, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Product), args.Error(1)
}

func (m *ProductRepository) GetByID(ctx context.Context, id string) (*model.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Product), args.Error(1)
}

func (m *ProductRepository) GetByIDs(ctx context.Context, ids []string) ([]model.Product, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Product), args.Error(1)
}

func (m *ProductRepository) LockByID(ctx context.Context, tx pgx.Tx, id string) (*model.Product, error) {
	args := m.Called(ctx, tx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Product), args.Error(1)
}

func (m *ProductRepository) AdjustQuantity(ctx context.Context, tx pgx.Tx, id string, delta int) (int, error) {
	args := m.Called(ctx, tx, id, delta)
	return args.Int(0), args.Error(1)
}

func (m *ProductRepository) Upsert(ctx context.Context, p *model.Product) error {
	return m.Called(ctx, p).Error(0)
}

// CouponRepository is a mock implementation of repository.CouponRepository.
type CouponRepository struct {
	mock.Mock
}

func (m *CouponRepository) GetByCode(ctx context.Context, code string) (*model.Coupon, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Coupon), args.Error(1)
}

func (m *CouponRepository) GetByID(ctx context.Context, id int64) (*model.Coupon, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Coupon), args.Error(1)
}

func (m *CouponRepository) GetByIDTx(ctx context.Context, tx pgx.Tx, id int64) (*model.Coupon, error) {
	args := m.Called(ctx, tx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Coupon), args.Error(1)
}

func (m *CouponRepository) UpsertMany(ctx context.Context, coupons []model.Coupon) (int, error) {
	args := m.Called(ctx, coupons)
	return args.Int(0), args.Error(1)
}

// CartRepository is a mock implementation of repository.CartRepository.
type CartRepository struct {
	mock.Mock
}

func (m *CartRepository) Create(ctx context.Context, tx pgx.Tx, cart *model.Cart) error {
	return m.Called(ctx, tx, cart).Error(0)
}

func (m *CartRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Cart, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Cart), args.Error(1)
}

func (m *CartRepository) GetForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*model.Cart, error) {
	args := m.Called(ctx, tx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Cart), args.Error(1)
}

func (m *CartRepository) Items(ctx context.Context, cartID uuid.UUID) ([]model.CartItem, error) {
	args := m.Called(ctx, cartID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.CartItem), args.Error(1)
}

func (m *CartRepository) ItemsTx(ctx context.Context, tx pgx.Tx, cartID uuid.UUID) ([]model.CartItem, error) {
	args := m.Called(ctx, tx, cartID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.CartItem), args.Error(1)
}

func (m *CartRepository) UpsertItem(ctx context.Context, tx pgx.Tx, cartID uuid.UUID, productID string, quantity int) error {
	return m.Called(ctx, tx, cartID, productID, quantity).Error(0)
}

func (m *CartRepository) RemoveItem(ctx context.Context, cartID uuid.UUID, productID string) (bool, error) {
	args := m.Called(ctx, cartID, productID)
	return args.Bool(0), args.Error(1)
}

func (m *CartRepository) SetCheckout(ctx context.Context, tx pgx.Tx, cartID uuid.UUID, update repository.CheckoutUpdate) error {
	return m.Called(ctx, tx, cartID, update).Error(0)
}

func (m *CartRepository) Delete(ctx context.Context, tx pgx.Tx, cartID uuid.UUID) error {
	return m.Called(ctx, tx, cartID).Error(0)
}

func (m *CartRepository) DeleteAbandoned(ctx context.Context, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).(int64), args.Error(1)
}

// CustomerRepository is a mock implementation of repository.CustomerRepository.
type CustomerRepository struct {
	mock.Mock
}

func (m *CustomerRepository) GetOrCreate(ctx context.Context, tx pgx.Tx, phone string) (*model.Customer, bool, error) {
	args := m.Called(ctx, tx, phone)
	if args.Get(0) == nil {
		return nil, false, args.Error(2)
	}
	return args.Get(0).(*model.Customer), args.Bool(1), args.Error(2)
}

func (m *CustomerRepository) UpdateProfile(ctx context.Context, tx pgx.Tx, c *model.Customer) error {
	return m.Called(ctx, tx, c).Error(0)
}

func (m *CustomerRepository) GetByID(ctx context.Context, id int64) (*model.Customer, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Customer), args.Error(1)
}

// OrderRepository is a mock implementation of repository.OrderRepository.
type OrderRepository struct {
	mock.Mock
}

func (m *OrderRepository) CreateOrder(ctx context.Context, tx pgx.Tx, order *model.Order) error {
	return m.Called(ctx, tx, order).Error(0)
}

func (m *OrderRepository) CreateOrderItems(ctx context.Context, tx pgx.Tx, items []model.OrderItem) error {
	return m.Called(ctx, tx, items).Error(0)
}

func (m *OrderRepository) UpdateTotals(ctx context.Context, tx pgx.Tx, order *model.Order) error {
	return m.Called(ctx, tx, order).Error(0)
}

func (m *OrderRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Order, []model.OrderItem, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).(*model.Order), args.Get(1).([]model.OrderItem), args.Error(2)
}

// DeviceRepository is a mock implementation of repository.DeviceRepository.
type DeviceRepository struct {
	mock.Mock
}

func (m *DeviceRepository) Upsert(ctx context.Context, d *model.DeviceToken) error {
	return m.Called(ctx, d).Error(0)
}

func (m *DeviceRepository) ListByPhone(ctx context.Context, phone string) ([]model.DeviceToken, error) {
	args := m.Called(ctx, phone)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.DeviceToken), args.Error(1)
}

func (m *DeviceRepository) ListAll(ctx context.Context) ([]model.DeviceToken, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.DeviceToken), args.Error(1)
}

// AlertRepository is a mock implementation of repository.AlertRepository.
type AlertRepository struct {
	mock.Mock
}

func (m *AlertRepository) Create(ctx context.Context, a *model.Alert) error {
	return m.Called(ctx, a).Error(0)
}

func (m *AlertRepository) MarkSent(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

var (
	_ repository.Transactor         = (*Transactor)(nil)
	_ repository.ProductRepository  = (*ProductRepository)(nil)
	_ repository.CouponRepository   = (*CouponRepository)(nil)
	_ repository.CartRepository     = (*CartRepository)(nil)
	_ repository.CustomerRepository = (*CustomerRepository)(nil)
	_ repository.OrderRepository    = (*OrderRepository)(nil)
	_ repository.DeviceRepository   = (*DeviceRepository)(nil)
	_ repository.AlertRepository    = (*AlertRepository)(nil)
	_ pgx.Tx                        = (*Tx)(nil)
)
