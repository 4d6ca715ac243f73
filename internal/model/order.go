package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Order is an immutable snapshot created when a checkout commits.
type Order struct {
	ID          uuid.UUID        `json:"id" db:"id"`
	CustomerID  int64            `json:"customerId" db:"customer_id"`
	CouponID    *int64           `json:"-" db:"coupon_id"`
	CouponCode  *string          `json:"couponCode,omitempty" db:"coupon_code"`
	CouponKind  *DiscountKind    `json:"couponKind,omitempty" db:"coupon_kind"`
	CouponValue *decimal.Decimal `json:"couponValue,omitempty" db:"coupon_value"`
	Subtotal    decimal.Decimal  `json:"subtotal" db:"subtotal"`
	Discount    decimal.Decimal  `json:"discount" db:"discount"`
	Total       decimal.Decimal  `json:"total" db:"total"`
	CreatedAt   time.Time        `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time        `json:"updatedAt" db:"updated_at"`
}

// Coupon rebuilds the coupon effect captured on the order, or nil.
func (o *Order) Coupon() *Coupon {
	if o.CouponKind == nil || o.CouponValue == nil {
		return nil
	}
	c := &Coupon{Discount: Discount{Kind: *o.CouponKind, Value: *o.CouponValue}, Active: true}
	if o.CouponID != nil {
		c.ID = *o.CouponID
	}
	if o.CouponCode != nil {
		c.Code = *o.CouponCode
	}
	return c
}

// OrderItem is a line item with price captured at commit time.
type OrderItem struct {
	ID          uuid.UUID       `json:"-" db:"id"`
	OrderID     uuid.UUID       `json:"-" db:"order_id"`
	ProductID   string          `json:"productId" db:"product_id"`
	ProductName string          `json:"productName" db:"product_name"`
	Quantity    int             `json:"quantity" db:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice" db:"unit_price"`
	TotalPrice  decimal.Decimal `json:"totalPrice" db:"total_price"`
}

// OrderResponse represents the response payload for an order.
type OrderResponse struct {
	Order
	Items    []OrderItem `json:"items"`
	Customer *Customer   `json:"customer,omitempty"`
}
