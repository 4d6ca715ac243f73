package repository

import (
	"context"
	"testing"
	"time"

	"storefront/internal/model"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCartRepository_Lifecycle(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	logger := zerolog.Nop()
	products := NewProductRepository(pool, logger)
	carts := NewCartRepository(pool, logger)
	coupons := NewCouponRepository(pool, logger)
	tr := NewTransactor(pool, logger)

	seedProducts(t, products,
		model.Product{ID: "P001", Name: "Dates", Price: money("12"), Quantity: 10},
		model.Product{ID: "P002", Name: "Honey", Price: money("30"), Quantity: 4},
	)
	now := time.Now()
	_, err := coupons.UpsertMany(context.Background(), []model.Coupon{{
		Code: "WELCOME10", Discount: model.Discount{Kind: model.DiscountPercentage, Value: money("10")},
		StartsAt: now.Add(-time.Hour), EndsAt: now.Add(time.Hour), Active: true,
	}})
	require.NoError(t, err)
	coupon, err := coupons.GetByCode(context.Background(), "WELCOME10")
	require.NoError(t, err)
	require.NotNil(t, coupon)

	ctx := context.Background()
	cart := &model.Cart{ID: uuid.New(), CreatedAt: now, UpdatedAt: now}

	tx, err := tr.BeginTx(ctx)
	require.NoError(t, err)
	require.NoError(t, carts.Create(ctx, tx, cart))
	require.NoError(t, carts.UpsertItem(ctx, tx, cart.ID, "P002", 1))
	require.NoError(t, carts.UpsertItem(ctx, tx, cart.ID, "P001", 2))
	require.NoError(t, carts.UpsertItem(ctx, tx, cart.ID, "P001", 5))
	require.NoError(t, tx.Commit(ctx))

	items, err := carts.Items(ctx, cart.ID)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "P001", items[0].Product.ID)
	assert.Equal(t, 5, items[0].Quantity, "re-adding replaces quantity")

	phone := "+201000000001"
	quoted := money("126")
	tx, err = tr.BeginTx(ctx)
	require.NoError(t, err)
	locked, err := carts.GetForUpdate(ctx, tx, cart.ID)
	require.NoError(t, err)
	require.NotNil(t, locked)
	assert.Equal(t, model.CartOpen, locked.State)
	require.NoError(t, carts.SetCheckout(ctx, tx, cart.ID, CheckoutUpdate{
		CouponID: &coupon.ID, Phone: &phone, State: model.CartOTPRequested, QuotedTotal: &quoted,
	}))
	require.NoError(t, tx.Commit(ctx))

	got, err := carts.GetByID(ctx, cart.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, model.CartOTPRequested, got.State)
	require.NotNil(t, got.AppliedCouponID)
	assert.Equal(t, coupon.ID, *got.AppliedCouponID)
	require.NotNil(t, got.QuotedTotal)
	assert.True(t, got.QuotedTotal.Equal(quoted))

	removed, err := carts.RemoveItem(ctx, cart.ID, "P002")
	require.NoError(t, err)
	assert.True(t, removed)
	removed, err = carts.RemoveItem(ctx, cart.ID, "P002")
	require.NoError(t, err)
	assert.False(t, removed)

	tx, err = tr.BeginTx(ctx)
	require.NoError(t, err)
	require.NoError(t, carts.Delete(ctx, tx, cart.ID))
	require.NoError(t, tx.Commit(ctx))

	got, err = carts.GetByID(ctx, cart.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestCartRepository_DeleteAbandoned(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	logger := zerolog.Nop()
	carts := NewCartRepository(pool, logger)
	tr := NewTransactor(pool, logger)
	ctx := context.Background()

	old := time.Now().Add(-10 * 24 * time.Hour)
	fresh := time.Now()

	tx, err := tr.BeginTx(ctx)
	require.NoError(t, err)
	require.NoError(t, carts.Create(ctx, tx, &model.Cart{ID: uuid.New(), CreatedAt: old, UpdatedAt: old}))
	require.NoError(t, carts.Create(ctx, tx, &model.Cart{ID: uuid.New(), CreatedAt: fresh, UpdatedAt: fresh}))
	require.NoError(t, tx.Commit(ctx))

	n, err := carts.DeleteAbandoned(ctx, time.Now().Add(-7*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
