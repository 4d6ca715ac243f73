package integration

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"storefront/internal/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func call(t *testing.T, env *TestEnv, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", testAPIKey)

	w := httptest.NewRecorder()
	env.Server.ServeHTTP(w, req)
	return w
}

func TestAPI_Integration(t *testing.T) {
	env := SetupEnv(t, 0)
	const phone = "+201000000010"

	t.Run("checkout over HTTP", func(t *testing.T) {
		env.Reset(t)
		env.SeedProduct(t, "P1", "50", 5)
		env.SeedProduct(t, "P2", "30", 5)
		env.SeedCoupon(t, "TENOFF", model.DiscountPercentage, "10")

		w := call(t, env, http.MethodPost, "/api/cart/items", model.AddToCartRequest{
			Products: []model.CartItemRequest{{ProductID: "P1", Quantity: 2}, {ProductID: "P2", Quantity: 1}},
		})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		var cart model.CartView
		require.NoError(t, json.NewDecoder(w.Body).Decode(&cart))
		assert.True(t, decimal.NewFromInt(130).Equal(cart.Total))

		w = call(t, env, http.MethodGet, "/api/cart/"+cart.ID.String(), nil)
		require.Equal(t, http.StatusOK, w.Code)

		code := "tenoff"
		w = call(t, env, http.MethodPost, "/api/checkout/begin", model.BeginRequest{
			CartID:      cart.ID,
			Username:    "Mona",
			Government:  "Cairo",
			Address:     "12 Nile St",
			PhoneNumber: phone,
			CouponCode:  &code,
		})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var begun model.BeginResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&begun))
		assert.True(t, decimal.NewFromInt(117).Equal(begun.CheckoutTotal))

		w = call(t, env, http.MethodPost, "/api/checkout/verify", verifyReq(cart.ID, phone, env.Codes.Last(t, phone)))
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		var order model.OrderResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&order))
		assert.Len(t, order.Items, 2)
		assert.True(t, decimal.NewFromInt(117).Equal(order.Total))

		w = call(t, env, http.MethodGet, "/api/orders/"+order.ID.String(), nil)
		require.Equal(t, http.StatusOK, w.Code)

		w = call(t, env, http.MethodGet, "/api/products/P1", nil)
		require.Equal(t, http.StatusOK, w.Code)
		var product model.ProductView
		require.NoError(t, json.NewDecoder(w.Body).Decode(&product))
		assert.Equal(t, 3, product.Quantity)

		w = call(t, env, http.MethodGet, "/api/cart/"+cart.ID.String(), nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("error envelope", func(t *testing.T) {
		env.Reset(t)
		env.SeedProduct(t, "P1", "50", 1)

		w := call(t, env, http.MethodPost, "/api/cart/items", model.AddToCartRequest{
			Products: []model.CartItemRequest{{ProductID: "P1", Quantity: 2}},
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)

		var resp model.ErrorResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
		assert.Equal(t, model.ErrCodeOutOfStock, resp.Error)
		assert.NotEmpty(t, resp.CorrelationID)
	})

	t.Run("coupon check", func(t *testing.T) {
		env.Reset(t)
		env.SeedCoupon(t, "FLAT5", model.DiscountFixed, "5")

		w := call(t, env, http.MethodPost, "/api/coupons/check", model.CouponCheckRequest{CouponCode: "FLAT5"})
		assert.Equal(t, http.StatusOK, w.Code)

		w = call(t, env, http.MethodPost, "/api/coupons/check", model.CouponCheckRequest{CouponCode: "NOPE"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("requires api key", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/products", nil)
		w := httptest.NewRecorder()
		env.Server.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}
