// Package pricing computes discounted unit prices and coupon effects.
// Every function is pure and returns amounts rounded to cents.
package pricing

import (
	"github.com/shopspring/decimal"

	"storefront/internal/model"
)

var hundred = decimal.NewFromInt(100)

// Line is a priced quantity of one product.
type Line struct {
	Product  model.Product
	Quantity int
}

// Summary is the breakdown of a cart or order total.
type Summary struct {
	Subtotal decimal.Decimal
	Discount decimal.Decimal
	Total    decimal.Decimal
}

// DiscountedPrice returns the product's unit price after its own discount.
// The result is always within [0, price].
func DiscountedPrice(p model.Product) decimal.Decimal {
	price := nonNegative(p.Price)
	if p.Discount == nil {
		return round(price)
	}
	return round(reduce(price, *p.Discount))
}

// ApplyCoupon returns total after the coupon's effect. A nil coupon or an
// unknown kind leaves total unchanged. The result is within [0, total].
func ApplyCoupon(c *model.Coupon, total decimal.Decimal) decimal.Decimal {
	total = nonNegative(total)
	if c == nil {
		return round(total)
	}
	return round(reduce(total, c.Discount))
}

// LineTotal is the discounted unit price times quantity.
func LineTotal(p model.Product, quantity int) decimal.Decimal {
	if quantity <= 0 {
		return decimal.Zero
	}
	return DiscountedPrice(p).Mul(decimal.NewFromInt(int64(quantity)))
}

// Summarize sums line totals and applies the coupon to the discounted subtotal.
func Summarize(lines []Line, c *model.Coupon) Summary {
	subtotal := decimal.Zero
	for _, l := range lines {
		subtotal = subtotal.Add(LineTotal(l.Product, l.Quantity))
	}
	total := ApplyCoupon(c, subtotal)
	return Summary{
		Subtotal: subtotal,
		Discount: subtotal.Sub(total),
		Total:    total,
	}
}

func reduce(amount decimal.Decimal, d model.Discount) decimal.Decimal {
	var off decimal.Decimal
	switch d.Kind {
	case model.DiscountFixed:
		off = clamp(d.Value, decimal.Zero, amount)
	case model.DiscountPercentage:
		off = amount.Mul(clamp(d.Value, decimal.Zero, hundred)).Div(hundred)
	default:
		return amount
	}
	return nonNegative(amount.Sub(off))
}

func clamp(v, lo, hi decimal.Decimal) decimal.Decimal {
	return decimal.Min(decimal.Max(v, lo), hi)
}

func nonNegative(v decimal.Decimal) decimal.Decimal {
	return decimal.Max(v, decimal.Zero)
}

func round(v decimal.Decimal) decimal.Decimal {
	return v.Round(2)
}
