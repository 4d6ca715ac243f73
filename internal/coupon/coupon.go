// Package coupon imports coupon definitions from gzipped CSV files stored
// locally or in S3.
//
// Each row is `code,kind,value,starts_at,ends_at[,active]` where kind is
// FIXED or PERCENTAGE and the timestamps are RFC 3339 or YYYY-MM-DD. A
// leading header row starting with "code" is skipped.
package coupon

import (
	"context"

	"storefront/internal/model"
)

// Loader reads a coupon file into a Set.
type Loader interface {
	Load(ctx context.Context, path string) (*Set, error)
}

// Validator checks a parsed coupon before it is stored.
type Validator interface {
	Validate(c model.Coupon) error
}

// ImportResult summarises one import run.
type ImportResult struct {
	Source   string `json:"source"`
	Parsed   int    `json:"parsed"`
	Skipped  int    `json:"skipped"`
	Rejected int    `json:"rejected"`
	Upserted int    `json:"upserted"`
}
