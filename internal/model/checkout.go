package model

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BeginRequest starts a checkout by requesting a verification code.
type BeginRequest struct {
	CartID      uuid.UUID `json:"cartId"`
	Username    string    `json:"username"`
	Government  string    `json:"government"`
	Address     string    `json:"address"`
	PhoneNumber string    `json:"phoneNumber"`
	CouponCode  *string   `json:"couponCode,omitempty"`
}

// BeginResponse carries the advisory total shown while the code is pending.
type BeginResponse struct {
	CartID        uuid.UUID       `json:"cartId"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	Discount      decimal.Decimal `json:"discount"`
	CheckoutTotal decimal.Decimal `json:"checkoutTotal"`
	Coupon        *CouponView     `json:"coupon,omitempty"`
}

// VerifyRequest completes a checkout with the code sent to the phone.
type VerifyRequest struct {
	CartID      uuid.UUID `json:"cartId"`
	Username    string    `json:"username"`
	Government  string    `json:"government"`
	Address     string    `json:"address"`
	PhoneNumber string    `json:"phoneNumber"`
	Code        string    `json:"code"`
}
