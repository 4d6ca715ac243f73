package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// DiscountKind selects how a discount value is interpreted.
type DiscountKind string

const (
	DiscountFixed      DiscountKind = "FIXED"
	DiscountPercentage DiscountKind = "PERCENTAGE"
)

// Discount is shared by products and coupons.
type Discount struct {
	Kind  DiscountKind    `json:"kind"`
	Value decimal.Decimal `json:"value"`
}

var hundred = decimal.NewFromInt(100)

// Validate checks the value against the range its kind allows. Fixed
// discounts are bounded by price; pass a zero price to skip that bound.
func (d Discount) Validate(price decimal.Decimal) error {
	if d.Value.IsNegative() {
		return fmt.Errorf("discount value cannot be negative: %s", d.Value)
	}
	switch d.Kind {
	case DiscountFixed:
		if price.IsPositive() && d.Value.GreaterThan(price) {
			return fmt.Errorf("fixed discount %s exceeds price %s", d.Value, price)
		}
	case DiscountPercentage:
		if d.Value.GreaterThan(hundred) {
			return fmt.Errorf("percentage discount %s exceeds 100", d.Value)
		}
	default:
		return fmt.Errorf("unknown discount kind: %q", d.Kind)
	}
	return nil
}

// Product represents an item in the catalogue.
type Product struct {
	ID          string          `json:"id" db:"id"`
	Name        string          `json:"name" db:"name"`
	Description string          `json:"description,omitempty" db:"description"`
	Price       decimal.Decimal `json:"price" db:"price"`
	Quantity    int             `json:"quantity" db:"quantity"`
	Discount    *Discount       `json:"discount,omitempty"`
	CreatedAt   time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time       `json:"updatedAt" db:"updated_at"`
}

// ProductView is a product with its discounted price resolved for display.
type ProductView struct {
	Product
	DiscountedPrice decimal.Decimal `json:"discountedPrice"`
	LowStock        bool            `json:"lowStock"`
}
