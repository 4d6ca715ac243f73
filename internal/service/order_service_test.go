package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"storefront/internal/model"
	"storefront/internal/repository/mocks"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestOrderService_GetByID(t *testing.T) {
	ctx := context.Background()
	orders := new(mocks.OrderRepository)
	customers := new(mocks.CustomerRepository)
	svc := NewOrderService(orders, customers, zerolog.Nop())

	id := uuid.New()
	order := &model.Order{ID: id, CustomerID: 9, Subtotal: dec("30"), Total: dec("30"), CreatedAt: time.Now()}
	items := []model.OrderItem{{OrderID: id, ProductID: "P1", ProductName: "Product P1", Quantity: 3, UnitPrice: dec("10"), TotalPrice: dec("30")}}
	customer := &model.Customer{ID: 9, PhoneNumber: testPhone, Username: "Mona"}

	orders.On("GetByID", ctx, id).Return(order, items, nil)
	customers.On("GetByID", ctx, int64(9)).Return(customer, nil)

	resp, err := svc.GetByID(ctx, id)

	require.NoError(t, err)
	assert.Equal(t, id, resp.ID)
	assert.Len(t, resp.Items, 1)
	assert.Equal(t, "Mona", resp.Customer.Username)
	orders.AssertExpectations(t)
	customers.AssertExpectations(t)
}

func TestOrderService_GetByID_NotFound(t *testing.T) {
	ctx := context.Background()
	orders := new(mocks.OrderRepository)
	customers := new(mocks.CustomerRepository)
	svc := NewOrderService(orders, customers, zerolog.Nop())
	id := uuid.New()

	orders.On("GetByID", ctx, id).Return(nil, nil, nil)

	resp, err := svc.GetByID(ctx, id)

	assert.Nil(t, resp)
	assert.ErrorIs(t, err, model.ErrOrderNotFound)
	customers.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
}

func TestOrderService_GetByID_RepositoryError(t *testing.T) {
	ctx := context.Background()
	orders := new(mocks.OrderRepository)
	svc := NewOrderService(orders, new(mocks.CustomerRepository), zerolog.Nop())
	id := uuid.New()
	dbErr := errors.New("database error")

	orders.On("GetByID", ctx, id).Return(nil, nil, dbErr)

	_, err := svc.GetByID(ctx, id)

	assert.ErrorIs(t, err, dbErr)
}

func TestCouponService_Check(t *testing.T) {
	ctx := context.Background()
	inactive := activeCoupon(2, "PAUSED", model.DiscountFixed, "5")
	inactive.Active = false
	future := activeCoupon(3, "SOON", model.DiscountFixed, "5")
	future.StartsAt = fixedNow.Add(time.Hour)

	repo := new(mocks.CouponRepository)
	repo.On("GetByCode", ctx, "SAVE10").Return(activeCoupon(1, "SAVE10", model.DiscountPercentage, "10"), nil)
	repo.On("GetByCode", ctx, "PAUSED").Return(inactive, nil)
	repo.On("GetByCode", ctx, "SOON").Return(future, nil)
	repo.On("GetByCode", ctx, "NOPE").Return(nil, nil)

	svc := NewCouponService(repo, zerolog.Nop()).(*couponService)
	svc.now = func() time.Time { return fixedNow }

	view, err := svc.Check(ctx, "save10")
	require.NoError(t, err)
	assert.Equal(t, "SAVE10", view.Code)
	assert.Equal(t, model.DiscountPercentage, view.Kind)
	assert.True(t, view.Value.Equal(dec("10")))

	_, err = svc.Check(ctx, "PAUSED")
	assert.ErrorIs(t, err, model.ErrCouponExpired)

	_, err = svc.Check(ctx, "SOON")
	assert.ErrorIs(t, err, model.ErrCouponExpired)

	_, err = svc.Check(ctx, "NOPE")
	assert.ErrorIs(t, err, model.ErrCouponNotFound)

	_, err = svc.Check(ctx, "  ")
	assert.ErrorIs(t, err, model.MissingField("couponCode"))
}
