package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"storefront/internal/chatops"
	"storefront/internal/metrics"
	"storefront/internal/model"
	"storefront/internal/otp"
	"storefront/internal/push"
	"storefront/internal/repository"
	"storefront/internal/repository/mocks"
	"storefront/internal/stock"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockChallenger is a mock implementation of Challenger.
type MockChallenger struct {
	mock.Mock
}

func (m *MockChallenger) Issue(ctx context.Context, phone string) error {
	return m.Called(ctx, phone).Error(0)
}

func (m *MockChallenger) Verify(ctx context.Context, phone, code string) error {
	return m.Called(ctx, phone, code).Error(0)
}

func (m *MockChallenger) Invalidate(ctx context.Context, phone string) error {
	return m.Called(ctx, phone).Error(0)
}

// MockStock is a mock implementation of StockReserver.
type MockStock struct {
	mock.Mock
}

func (m *MockStock) Reserve(ctx context.Context, tx pgx.Tx, productID string, qty int) (*model.Product, error) {
	args := m.Called(ctx, tx, productID, qty)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Product), args.Error(1)
}

// MockDispatcher is a mock implementation of Dispatcher.
type MockDispatcher struct {
	mock.Mock
}

func (m *MockDispatcher) Dispatch(ctx context.Context, jobType string, payload any) error {
	return m.Called(ctx, jobType, payload).Error(0)
}

// recordingSender keeps the last code sent per phone.
type recordingSender struct {
	codes map[string]otp.Code
	err   error
}

func (s *recordingSender) SendOTP(_ context.Context, phone string, code otp.Code) error {
	if s.err != nil {
		return s.err
	}
	s.codes[phone] = code
	return nil
}

const testPhone = "+201000000001"

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func testProduct(id string, price string, qty int) model.Product {
	return model.Product{ID: id, Name: "Product " + id, Price: dec(price), Quantity: qty}
}

type checkoutFixture struct {
	svc       *checkoutService
	txr       *mocks.Transactor
	tx        *mocks.Tx
	carts     *mocks.CartRepository
	coupons   *mocks.CouponRepository
	customers *mocks.CustomerRepository
	orders    *mocks.OrderRepository
	devices   *mocks.DeviceRepository
	otp       *MockChallenger
	stock     *MockStock
	jobs      *MockDispatcher
}

func newCheckoutFixture() *checkoutFixture {
	f := &checkoutFixture{
		txr:       new(mocks.Transactor),
		tx:        mocks.NewTx(),
		carts:     new(mocks.CartRepository),
		coupons:   new(mocks.CouponRepository),
		customers: new(mocks.CustomerRepository),
		orders:    new(mocks.OrderRepository),
		devices:   new(mocks.DeviceRepository),
		otp:       new(MockChallenger),
		stock:     new(MockStock),
		jobs:      new(MockDispatcher),
	}
	f.txr.On("BeginTx", mock.Anything).Return(f.tx, nil)

	svc := NewCheckoutService(CheckoutDeps{
		Tx:        f.txr,
		Carts:     f.carts,
		Coupons:   f.coupons,
		Customers: f.customers,
		Orders:    f.orders,
		Devices:   f.devices,
		OTP:       f.otp,
		Stock:     f.stock,
		Jobs:      f.jobs,
	}, zerolog.Nop()).(*checkoutService)
	svc.now = func() time.Time { return fixedNow }
	f.svc = svc
	return f
}

func beginRequest(cartID uuid.UUID, coupon *string) *model.BeginRequest {
	return &model.BeginRequest{
		CartID:      cartID,
		Username:    "Mona",
		Government:  "Cairo",
		Address:     "12 Nile St",
		PhoneNumber: testPhone,
		CouponCode:  coupon,
	}
}

func verifyRequest(cartID uuid.UUID, code string) *model.VerifyRequest {
	return &model.VerifyRequest{
		CartID:      cartID,
		Username:    "Mona",
		Government:  "Cairo",
		Address:     "12 Nile St",
		PhoneNumber: testPhone,
		Code:        code,
	}
}

func strPtr(s string) *string { return &s }

func activeCoupon(id int64, code string, kind model.DiscountKind, value string) *model.Coupon {
	return &model.Coupon{
		ID:       id,
		Code:     code,
		Discount: model.Discount{Kind: kind, Value: dec(value)},
		StartsAt: fixedNow.Add(-24 * time.Hour),
		EndsAt:   fixedNow.Add(24 * time.Hour),
		Active:   true,
	}
}

func TestCheckoutService_Begin_WithCoupon(t *testing.T) {
	f := newCheckoutFixture()
	cartID := uuid.New()
	cart := &model.Cart{ID: cartID, State: model.CartOpen}
	items := []model.CartItem{{CartID: cartID, Product: testProduct("P1", "100", 10), Quantity: 2}}
	coupon := activeCoupon(7, "SAVE10", model.DiscountPercentage, "10")

	f.carts.On("GetForUpdate", mock.Anything, f.tx, cartID).Return(cart, nil)
	f.carts.On("ItemsTx", mock.Anything, f.tx, cartID).Return(items, nil)
	f.coupons.On("GetByCode", mock.Anything, "SAVE10").Return(coupon, nil)
	f.carts.On("SetCheckout", mock.Anything, f.tx, cartID, mock.MatchedBy(func(u repository.CheckoutUpdate) bool {
		return u.State == model.CartOTPRequested &&
			*u.Phone == testPhone &&
			u.CouponID != nil && *u.CouponID == 7 &&
			u.QuotedTotal.Equal(dec("180"))
	})).Return(nil)
	f.otp.On("Issue", mock.Anything, testPhone).Return(nil)

	resp, err := f.svc.Begin(context.Background(), beginRequest(cartID, strPtr(" save10 ")))

	require.NoError(t, err)
	assert.Equal(t, cartID, resp.CartID)
	assert.True(t, resp.Subtotal.Equal(dec("200")))
	assert.True(t, resp.Discount.Equal(dec("20")))
	assert.True(t, resp.CheckoutTotal.Equal(dec("180")))
	require.NotNil(t, resp.Coupon)
	assert.Equal(t, "SAVE10", resp.Coupon.Code)
	assert.True(t, f.tx.Committed)
	assert.False(t, f.tx.RolledBack)
	f.carts.AssertExpectations(t)
	f.otp.AssertExpectations(t)
}

func TestCheckoutService_Begin_WithoutCouponDetaches(t *testing.T) {
	f := newCheckoutFixture()
	cartID := uuid.New()
	applied := int64(3)
	cart := &model.Cart{ID: cartID, State: model.CartOTPRequested, AppliedCouponID: &applied}
	items := []model.CartItem{{CartID: cartID, Product: testProduct("P1", "50", 10), Quantity: 1}}

	f.carts.On("GetForUpdate", mock.Anything, f.tx, cartID).Return(cart, nil)
	f.carts.On("ItemsTx", mock.Anything, f.tx, cartID).Return(items, nil)
	f.carts.On("SetCheckout", mock.Anything, f.tx, cartID, mock.MatchedBy(func(u repository.CheckoutUpdate) bool {
		return u.CouponID == nil && u.QuotedTotal.Equal(dec("50"))
	})).Return(nil)
	f.otp.On("Issue", mock.Anything, testPhone).Return(nil)

	resp, err := f.svc.Begin(context.Background(), beginRequest(cartID, nil))

	require.NoError(t, err)
	assert.Nil(t, resp.Coupon)
	assert.True(t, resp.CheckoutTotal.Equal(dec("50")))
	f.coupons.AssertNotCalled(t, "GetByCode", mock.Anything, mock.Anything)
}

func TestCheckoutService_Begin_IsRepeatable(t *testing.T) {
	f := newCheckoutFixture()
	cartID := uuid.New()
	cart := &model.Cart{ID: cartID, State: model.CartOpen}
	items := []model.CartItem{{CartID: cartID, Product: testProduct("P1", "10", 5), Quantity: 3}}

	f.carts.On("GetForUpdate", mock.Anything, f.tx, cartID).Return(cart, nil)
	f.carts.On("ItemsTx", mock.Anything, f.tx, cartID).Return(items, nil)
	f.carts.On("SetCheckout", mock.Anything, f.tx, cartID, mock.Anything).Return(nil)
	f.otp.On("Issue", mock.Anything, testPhone).Return(nil)

	first, err := f.svc.Begin(context.Background(), beginRequest(cartID, nil))
	require.NoError(t, err)
	second, err := f.svc.Begin(context.Background(), beginRequest(cartID, nil))
	require.NoError(t, err)

	assert.True(t, first.CheckoutTotal.Equal(second.CheckoutTotal))
	f.otp.AssertNumberOfCalls(t, "Issue", 2)
}

func TestCheckoutService_Begin_Errors(t *testing.T) {
	cartID := uuid.New()
	items := []model.CartItem{{CartID: cartID, Product: testProduct("P1", "10", 5), Quantity: 1}}
	expired := activeCoupon(9, "OLD", model.DiscountFixed, "5")
	expired.EndsAt = fixedNow.Add(-time.Hour)

	tests := []struct {
		name    string
		req     *model.BeginRequest
		setup   func(f *checkoutFixture)
		wantErr error
	}{
		{
			name:    "missing phone",
			req:     &model.BeginRequest{CartID: cartID, Username: "a", Government: "b", Address: "c"},
			setup:   func(f *checkoutFixture) {},
			wantErr: model.MissingField("phoneNumber"),
		},
		{
			name: "cart not found",
			req:  beginRequest(cartID, nil),
			setup: func(f *checkoutFixture) {
				f.carts.On("GetForUpdate", mock.Anything, f.tx, cartID).Return(nil, nil)
			},
			wantErr: model.ErrCartNotFound,
		},
		{
			name: "cart empty",
			req:  beginRequest(cartID, nil),
			setup: func(f *checkoutFixture) {
				f.carts.On("GetForUpdate", mock.Anything, f.tx, cartID).Return(&model.Cart{ID: cartID}, nil)
				f.carts.On("ItemsTx", mock.Anything, f.tx, cartID).Return([]model.CartItem{}, nil)
			},
			wantErr: model.ErrCartEmpty,
		},
		{
			name: "unknown coupon",
			req:  beginRequest(cartID, strPtr("NOPE")),
			setup: func(f *checkoutFixture) {
				f.carts.On("GetForUpdate", mock.Anything, f.tx, cartID).Return(&model.Cart{ID: cartID}, nil)
				f.carts.On("ItemsTx", mock.Anything, f.tx, cartID).Return(items, nil)
				f.coupons.On("GetByCode", mock.Anything, "NOPE").Return(nil, nil)
			},
			wantErr: model.ErrCouponNotFound,
		},
		{
			name: "expired coupon",
			req:  beginRequest(cartID, strPtr("OLD")),
			setup: func(f *checkoutFixture) {
				f.carts.On("GetForUpdate", mock.Anything, f.tx, cartID).Return(&model.Cart{ID: cartID}, nil)
				f.carts.On("ItemsTx", mock.Anything, f.tx, cartID).Return(items, nil)
				f.coupons.On("GetByCode", mock.Anything, "OLD").Return(expired, nil)
			},
			wantErr: model.ErrCouponExpired,
		},
		{
			name: "delivery failure",
			req:  beginRequest(cartID, nil),
			setup: func(f *checkoutFixture) {
				f.carts.On("GetForUpdate", mock.Anything, f.tx, cartID).Return(&model.Cart{ID: cartID}, nil)
				f.carts.On("ItemsTx", mock.Anything, f.tx, cartID).Return(items, nil)
				f.carts.On("SetCheckout", mock.Anything, f.tx, cartID, mock.Anything).Return(nil)
				f.otp.On("Issue", mock.Anything, testPhone).Return(model.ErrDeliveryFailed)
			},
			wantErr: model.ErrDeliveryFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newCheckoutFixture()
			tt.setup(f)

			resp, err := f.svc.Begin(context.Background(), tt.req)

			require.Error(t, err)
			assert.Nil(t, resp)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.False(t, f.tx.Committed)
		})
	}
}

func TestCheckoutService_Begin_DeliveryFailureRollsBack(t *testing.T) {
	f := newCheckoutFixture()
	cartID := uuid.New()
	items := []model.CartItem{{CartID: cartID, Product: testProduct("P1", "10", 5), Quantity: 1}}

	f.carts.On("GetForUpdate", mock.Anything, f.tx, cartID).Return(&model.Cart{ID: cartID}, nil)
	f.carts.On("ItemsTx", mock.Anything, f.tx, cartID).Return(items, nil)
	f.carts.On("SetCheckout", mock.Anything, f.tx, cartID, mock.Anything).Return(nil)
	f.otp.On("Issue", mock.Anything, testPhone).Return(errors.New("gateway down"))

	_, err := f.svc.Begin(context.Background(), beginRequest(cartID, nil))

	require.Error(t, err)
	assert.True(t, f.tx.RolledBack)
	assert.False(t, f.tx.Committed)
}

// expectCommit wires a successful verify commit for one cart line.
func (f *checkoutFixture) expectCommit(cart *model.Cart, items []model.CartItem, customer *model.Customer, created bool) {
	f.otp.On("Verify", mock.Anything, testPhone, "123456").Return(nil)
	f.otp.On("Invalidate", mock.Anything, testPhone).Return(nil)
	f.carts.On("GetForUpdate", mock.Anything, f.tx, cart.ID).Return(cart, nil)
	f.carts.On("ItemsTx", mock.Anything, f.tx, cart.ID).Return(items, nil)
	f.customers.On("GetOrCreate", mock.Anything, f.tx, testPhone).Return(customer, created, nil)
	f.customers.On("UpdateProfile", mock.Anything, f.tx, customer).Return(nil)
	f.orders.On("CreateOrder", mock.Anything, f.tx, mock.AnythingOfType("*model.Order")).Return(nil)
	f.orders.On("CreateOrderItems", mock.Anything, f.tx, mock.AnythingOfType("[]model.OrderItem")).Return(nil)
	f.orders.On("UpdateTotals", mock.Anything, f.tx, mock.AnythingOfType("*model.Order")).Return(nil)
	f.carts.On("Delete", mock.Anything, f.tx, cart.ID).Return(nil)
	for _, it := range items {
		reserved := it.Product
		reserved.Quantity -= it.Quantity
		f.stock.On("Reserve", mock.Anything, f.tx, it.Product.ID, it.Quantity).Return(&reserved, nil)
	}
}

func TestCheckoutService_Verify_Success(t *testing.T) {
	f := newCheckoutFixture()
	cartID := uuid.New()
	phone := testPhone
	couponID := int64(7)
	quoted := dec("180")
	cart := &model.Cart{
		ID:              cartID,
		State:           model.CartOTPRequested,
		CheckoutPhone:   &phone,
		AppliedCouponID: &couponID,
		QuotedTotal:     &quoted,
	}
	items := []model.CartItem{
		{CartID: cartID, Product: testProduct("P2", "50", 10), Quantity: 2},
		{CartID: cartID, Product: testProduct("P1", "50", 10), Quantity: 2},
	}
	customer := &model.Customer{ID: 42, PhoneNumber: testPhone}
	coupon := activeCoupon(couponID, "SAVE10", model.DiscountPercentage, "10")

	f.expectCommit(cart, items, customer, true)
	f.coupons.On("GetByIDTx", mock.Anything, f.tx, couponID).Return(coupon, nil)
	f.jobs.On("Dispatch", mock.Anything, chatops.JobType, mock.Anything).Return(nil)
	f.jobs.On("Dispatch", mock.Anything, push.JobType, mock.Anything).Return(nil)
	f.devices.On("ListByPhone", mock.Anything, testPhone).Return([]model.DeviceToken{
		{Token: "tok-1", Platform: model.PlatformIOS},
	}, nil)

	resp, err := f.svc.Verify(context.Background(), verifyRequest(cartID, "123456"))

	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, resp.ID)
	assert.Equal(t, int64(42), resp.CustomerID)
	assert.True(t, resp.Subtotal.Equal(dec("200")))
	assert.True(t, resp.Discount.Equal(dec("20")))
	assert.True(t, resp.Total.Equal(dec("180")))
	require.NotNil(t, resp.CouponCode)
	assert.Equal(t, "SAVE10", *resp.CouponCode)
	require.Len(t, resp.Items, 2)
	assert.Equal(t, "P1", resp.Items[0].ProductID)
	assert.Equal(t, "P2", resp.Items[1].ProductID)
	assert.Equal(t, "Mona", customer.Username)
	assert.True(t, customer.IsVerified)
	assert.True(t, f.tx.Committed)

	f.stock.AssertExpectations(t)
	f.otp.AssertCalled(t, "Invalidate", mock.Anything, testPhone)
	f.jobs.AssertCalled(t, "Dispatch", mock.Anything, chatops.JobType, mock.Anything)
	f.jobs.AssertCalled(t, "Dispatch", mock.Anything, push.JobType, mock.Anything)
}

func TestCheckoutService_Verify_KeepsExistingProfile(t *testing.T) {
	f := newCheckoutFixture()
	f.svc.Jobs = nil
	cartID := uuid.New()
	phone := testPhone
	cart := &model.Cart{ID: cartID, State: model.CartOTPRequested, CheckoutPhone: &phone}
	items := []model.CartItem{{CartID: cartID, Product: testProduct("P1", "30", 3), Quantity: 1}}
	customer := &model.Customer{ID: 5, PhoneNumber: testPhone, Username: "Existing", Government: "Giza", Address: "Old"}

	f.expectCommit(cart, items, customer, false)

	resp, err := f.svc.Verify(context.Background(), verifyRequest(cartID, "123456"))

	require.NoError(t, err)
	assert.Equal(t, "Existing", resp.Customer.Username)
	assert.Equal(t, "Giza", resp.Customer.Government)
	assert.True(t, resp.Customer.IsVerified)
	assert.Nil(t, resp.CouponCode)
}

func TestCheckoutService_Verify_ChallengeErrors(t *testing.T) {
	for _, wantErr := range []error{model.ErrChallengeInvalid, model.ErrChallengeMissing, model.ErrTooManyAttempts, model.ErrMalformedCode} {
		t.Run(wantErr.Error(), func(t *testing.T) {
			f := newCheckoutFixture()
			f.otp.On("Verify", mock.Anything, testPhone, "123456").Return(wantErr)

			_, err := f.svc.Verify(context.Background(), verifyRequest(uuid.New(), "123456"))

			assert.ErrorIs(t, err, wantErr)
			f.txr.AssertNotCalled(t, "BeginTx", mock.Anything)
		})
	}
}

func TestCheckoutService_Verify_CheckoutNotStarted(t *testing.T) {
	other := "+201999999999"
	cases := map[string]*model.Cart{
		"open cart":      {State: model.CartOpen},
		"phone mismatch": {State: model.CartOTPRequested, CheckoutPhone: &other},
	}

	for name, cart := range cases {
		t.Run(name, func(t *testing.T) {
			f := newCheckoutFixture()
			cart.ID = uuid.New()
			f.otp.On("Verify", mock.Anything, testPhone, "123456").Return(nil)
			f.carts.On("GetForUpdate", mock.Anything, f.tx, cart.ID).Return(cart, nil)

			_, err := f.svc.Verify(context.Background(), verifyRequest(cart.ID, "123456"))

			assert.ErrorIs(t, err, model.ErrCheckoutNotStarted)
			assert.True(t, f.tx.RolledBack)
			f.otp.AssertNotCalled(t, "Invalidate", mock.Anything, mock.Anything)
		})
	}
}

func TestCheckoutService_Verify_InsufficientStockRollsBack(t *testing.T) {
	f := newCheckoutFixture()
	cartID := uuid.New()
	phone := testPhone
	cart := &model.Cart{ID: cartID, State: model.CartOTPRequested, CheckoutPhone: &phone}
	items := []model.CartItem{
		{CartID: cartID, Product: testProduct("P1", "10", 5), Quantity: 1},
		{CartID: cartID, Product: testProduct("P2", "10", 1), Quantity: 3},
	}
	customer := &model.Customer{ID: 1, PhoneNumber: testPhone}
	p1 := testProduct("P1", "10", 4)

	f.otp.On("Verify", mock.Anything, testPhone, "123456").Return(nil)
	f.carts.On("GetForUpdate", mock.Anything, f.tx, cartID).Return(cart, nil)
	f.carts.On("ItemsTx", mock.Anything, f.tx, cartID).Return(items, nil)
	f.customers.On("GetOrCreate", mock.Anything, f.tx, testPhone).Return(customer, true, nil)
	f.customers.On("UpdateProfile", mock.Anything, f.tx, customer).Return(nil)
	f.orders.On("CreateOrder", mock.Anything, f.tx, mock.Anything).Return(nil)
	f.stock.On("Reserve", mock.Anything, f.tx, "P1", 1).Return(&p1, nil)
	f.stock.On("Reserve", mock.Anything, f.tx, "P2", 3).Return(nil, model.InsufficientStock("Product P2", 1))

	_, err := f.svc.Verify(context.Background(), verifyRequest(cartID, "123456"))

	assert.ErrorIs(t, err, model.ErrInsufficientStock)
	assert.True(t, f.tx.RolledBack)
	assert.False(t, f.tx.Committed)
	f.carts.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything, mock.Anything)
	f.otp.AssertNotCalled(t, "Invalidate", mock.Anything, mock.Anything)
}

func TestCheckoutService_Verify_CommitsWhenCallerCancels(t *testing.T) {
	f := newCheckoutFixture()
	f.svc.Jobs = nil
	cartID := uuid.New()
	phone := testPhone
	cart := &model.Cart{ID: cartID, State: model.CartOTPRequested, CheckoutPhone: &phone}
	items := []model.CartItem{{CartID: cartID, Product: testProduct("P1", "10", 5), Quantity: 1}}
	customer := &model.Customer{ID: 1, PhoneNumber: testPhone}

	ctx, cancel := context.WithCancel(context.Background())
	f.expectCommit(cart, items, customer, true)
	f.otp.ExpectedCalls = nil
	f.otp.On("Verify", mock.Anything, testPhone, "123456").Run(func(mock.Arguments) { cancel() }).Return(nil)
	f.otp.On("Invalidate", mock.Anything, testPhone).Return(nil)

	resp, err := f.svc.Verify(ctx, verifyRequest(cartID, "123456"))

	require.NoError(t, err)
	assert.NotNil(t, resp)
	assert.True(t, f.tx.Committed)
}

func TestCheckoutService_Verify_PriceDriftUsesLiveTotal(t *testing.T) {
	f := newCheckoutFixture()
	f.svc.Jobs = nil
	cartID := uuid.New()
	phone := testPhone
	quoted := dec("100")
	cart := &model.Cart{ID: cartID, State: model.CartOTPRequested, CheckoutPhone: &phone, QuotedTotal: &quoted}
	items := []model.CartItem{{CartID: cartID, Product: testProduct("P1", "120", 5), Quantity: 1}}
	customer := &model.Customer{ID: 1, PhoneNumber: testPhone}

	f.expectCommit(cart, items, customer, true)
	before := testutil.ToFloat64(metrics.PriceDrift)

	resp, err := f.svc.Verify(context.Background(), verifyRequest(cartID, "123456"))

	require.NoError(t, err)
	assert.True(t, resp.Total.Equal(dec("120")))
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.PriceDrift))
}

func TestCheckoutService_Verify_InvalidateFailureStillSucceeds(t *testing.T) {
	f := newCheckoutFixture()
	f.svc.Jobs = nil
	cartID := uuid.New()
	phone := testPhone
	cart := &model.Cart{ID: cartID, State: model.CartOTPRequested, CheckoutPhone: &phone}
	items := []model.CartItem{{CartID: cartID, Product: testProduct("P1", "10", 5), Quantity: 1}}
	customer := &model.Customer{ID: 1, PhoneNumber: testPhone}

	f.expectCommit(cart, items, customer, true)
	f.otp.ExpectedCalls = nil
	f.otp.On("Verify", mock.Anything, testPhone, "123456").Return(nil)
	f.otp.On("Invalidate", mock.Anything, testPhone).Return(errors.New("redis down"))

	resp, err := f.svc.Verify(context.Background(), verifyRequest(cartID, "123456"))

	require.NoError(t, err)
	assert.NotNil(t, resp)
}

// TestCheckoutService_RealChallengeAndLedger runs begin and verify against an
// in-memory challenge store and the stock ledger.
func TestCheckoutService_RealChallengeAndLedger(t *testing.T) {
	f := newCheckoutFixture()
	f.svc.Jobs = nil
	sender := &recordingSender{codes: map[string]otp.Code{}}
	manager := otp.NewManager(otp.NewMemoryStore(func() time.Time { return fixedNow }), sender, time.Minute, 3, zerolog.Nop())
	products := new(mocks.ProductRepository)
	f.svc.OTP = manager
	f.svc.Stock = stock.NewLedger(products, stock.DefaultLowStockThreshold, zerolog.Nop())

	cartID := uuid.New()
	product := testProduct("P1", "25", 10)
	items := []model.CartItem{{CartID: cartID, Product: product, Quantity: 4}}

	f.carts.On("GetForUpdate", mock.Anything, f.tx, cartID).Return(&model.Cart{ID: cartID, State: model.CartOpen}, nil).Once()
	f.carts.On("ItemsTx", mock.Anything, f.tx, cartID).Return(items, nil)
	f.carts.On("SetCheckout", mock.Anything, f.tx, cartID, mock.Anything).Return(nil)

	_, err := f.svc.Begin(context.Background(), beginRequest(cartID, nil))
	require.NoError(t, err)
	code, ok := sender.codes[testPhone]
	require.True(t, ok)

	phone := testPhone
	locked := product
	customer := &model.Customer{ID: 3, PhoneNumber: testPhone}
	f.carts.On("GetForUpdate", mock.Anything, f.tx, cartID).
		Return(&model.Cart{ID: cartID, State: model.CartOTPRequested, CheckoutPhone: &phone}, nil)
	f.customers.On("GetOrCreate", mock.Anything, f.tx, testPhone).Return(customer, true, nil)
	f.customers.On("UpdateProfile", mock.Anything, f.tx, customer).Return(nil)
	f.orders.On("CreateOrder", mock.Anything, f.tx, mock.Anything).Return(nil)
	f.orders.On("CreateOrderItems", mock.Anything, f.tx, mock.Anything).Return(nil)
	f.orders.On("UpdateTotals", mock.Anything, f.tx, mock.Anything).Return(nil)
	f.carts.On("Delete", mock.Anything, f.tx, cartID).Return(nil)
	products.On("LockByID", mock.Anything, f.tx, "P1").Return(&locked, nil)
	products.On("AdjustQuantity", mock.Anything, f.tx, "P1", -4).Return(6, nil)

	resp, err := f.svc.Verify(context.Background(), verifyRequest(cartID, code.String()))
	require.NoError(t, err)
	assert.True(t, resp.Total.Equal(dec("100")))

	// the code is single use
	_, err = f.svc.Verify(context.Background(), verifyRequest(cartID, code.String()))
	assert.ErrorIs(t, err, model.ErrChallengeMissing)
	products.AssertExpectations(t)
}
