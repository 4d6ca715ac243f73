package coupon

import (
	"fmt"
	"regexp"

	"storefront/internal/model"

	"github.com/shopspring/decimal"
)

var codePattern = regexp.MustCompile(`^[A-Z0-9][A-Z0-9_-]*$`)

// RuleValidator enforces code shape, discount range and validity window.
type RuleValidator struct {
	MinLength int
	MaxLength int
}

// NewValidator returns the default rules: codes of 3 to 32 characters.
func NewValidator() *RuleValidator {
	return &RuleValidator{MinLength: 3, MaxLength: 32}
}

// Validate implements Validator.
func (v *RuleValidator) Validate(c model.Coupon) error {
	if len(c.Code) < v.MinLength || len(c.Code) > v.MaxLength {
		return fmt.Errorf("code %q must be %d-%d characters", c.Code, v.MinLength, v.MaxLength)
	}
	if !codePattern.MatchString(c.Code) {
		return fmt.Errorf("code %q may only contain A-Z, 0-9, '-' and '_'", c.Code)
	}
	if err := c.Discount.Validate(decimal.Zero); err != nil {
		return fmt.Errorf("code %q: %w", c.Code, err)
	}
	if c.Discount.Value.IsZero() {
		return fmt.Errorf("code %q: discount value must be positive", c.Code)
	}
	if !c.EndsAt.After(c.StartsAt) {
		return fmt.Errorf("code %q: ends_at must be after starts_at", c.Code)
	}
	return nil
}
