package coupon

import (
	"sort"

	"storefront/internal/model"
)

// Set holds parsed coupons keyed by code. Later rows replace earlier ones
// with the same code.
type Set struct {
	coupons map[string]model.Coupon
	// Skipped counts rows that could not be parsed.
	Skipped int
}

// NewSet creates an empty Set.
func NewSet(capacity int) *Set {
	return &Set{coupons: make(map[string]model.Coupon, capacity)}
}

// Add stores c and reports whether it replaced an existing code.
func (s *Set) Add(c model.Coupon) bool {
	_, exists := s.coupons[c.Code]
	s.coupons[c.Code] = c
	return exists
}

// Contains checks if a coupon code exists in the set.
func (s *Set) Contains(code string) bool {
	_, exists := s.coupons[code]
	return exists
}

// Get returns the coupon for code.
func (s *Set) Get(code string) (model.Coupon, bool) {
	c, ok := s.coupons[code]
	return c, ok
}

// Size returns the number of distinct codes.
func (s *Set) Size() int {
	return len(s.coupons)
}

// Coupons returns the coupons ordered by code.
func (s *Set) Coupons() []model.Coupon {
	out := make([]model.Coupon, 0, len(s.coupons))
	for _, c := range s.coupons {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}
