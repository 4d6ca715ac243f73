package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CartState is the persisted checkout stage of a cart.
type CartState string

const (
	CartOpen         CartState = "open"
	CartOTPRequested CartState = "otp_requested"
)

// Cart is an anonymous basket keyed by an unguessable ID.
type Cart struct {
	ID              uuid.UUID        `json:"id" db:"id"`
	AppliedCouponID *int64           `json:"-" db:"applied_coupon_id"`
	CheckoutPhone   *string          `json:"-" db:"checkout_phone"`
	QuotedTotal     *decimal.Decimal `json:"-" db:"quoted_total"`
	State           CartState        `json:"state" db:"state"`
	CreatedAt       time.Time        `json:"createdAt" db:"created_at"`
	UpdatedAt       time.Time        `json:"updatedAt" db:"updated_at"`
}

// CartItem is one product line in a cart, joined with its product.
type CartItem struct {
	CartID   uuid.UUID `json:"-" db:"cart_id"`
	Product  Product   `json:"product"`
	Quantity int       `json:"quantity" db:"quantity"`
}

// CartItemRequest is a single product line in an add-to-cart request.
type CartItemRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

// AddToCartRequest adds one or more products, creating the cart when CartID is nil.
type AddToCartRequest struct {
	CartID   *uuid.UUID        `json:"cartId,omitempty"`
	Products []CartItemRequest `json:"products"`
}

// CartLineView is a priced cart line.
type CartLineView struct {
	ProductID string          `json:"productId"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	LineTotal decimal.Decimal `json:"lineTotal"`
}

// CartView is the priced representation of a cart.
type CartView struct {
	ID       uuid.UUID       `json:"id"`
	State    CartState       `json:"state"`
	Items    []CartLineView  `json:"items"`
	Coupon   *CouponView     `json:"coupon,omitempty"`
	Subtotal decimal.Decimal `json:"subtotal"`
	Discount decimal.Decimal `json:"discount"`
	Total    decimal.Decimal `json:"total"`
	IsEmpty  bool            `json:"isEmpty"`
}
