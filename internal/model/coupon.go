package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Coupon is a time-bounded discount on a cart or order total.
type Coupon struct {
	ID        int64     `json:"id" db:"id"`
	Code      string    `json:"code" db:"code"`
	Discount  Discount  `json:"discount"`
	StartsAt  time.Time `json:"startsAt" db:"starts_at"`
	EndsAt    time.Time `json:"endsAt" db:"ends_at"`
	Active    bool      `json:"active" db:"active"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

// IsValid reports whether the coupon is active and now falls inside its window.
func (c *Coupon) IsValid(now time.Time) bool {
	return c.Active && !now.Before(c.StartsAt) && !now.After(c.EndsAt)
}

// CouponCheckRequest is the payload for previewing a coupon.
type CouponCheckRequest struct {
	CouponCode string `json:"couponCode"`
}

// CouponView describes a coupon's effect for clients.
type CouponView struct {
	Code     string          `json:"code"`
	Kind     DiscountKind    `json:"kind"`
	Value    decimal.Decimal `json:"value"`
	EndsAt   time.Time       `json:"endsAt"`
	Discount decimal.Decimal `json:"discount,omitempty"`
}
