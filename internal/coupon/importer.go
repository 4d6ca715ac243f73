package coupon

import (
	"context"
	"fmt"

	"storefront/internal/model"
	"storefront/internal/repository"

	"github.com/rs/zerolog"
)

const defaultBatchSize = 500

// Importer loads a coupon file, validates each coupon and upserts the
// valid ones by code.
type Importer struct {
	loader    Loader
	validator Validator
	coupons   repository.CouponRepository
	batchSize int
	logger    zerolog.Logger
}

// NewImporter creates an Importer.
func NewImporter(loader Loader, validator Validator, coupons repository.CouponRepository, logger zerolog.Logger) *Importer {
	return &Importer{
		loader:    loader,
		validator: validator,
		coupons:   coupons,
		batchSize: defaultBatchSize,
		logger:    logger.With().Str("component", "coupon-importer").Logger(),
	}
}

// Import reads path and stores its coupons. Invalid coupons are skipped and
// counted in the result; storage errors abort the run.
func (i *Importer) Import(ctx context.Context, path string) (*ImportResult, error) {
	set, err := i.loader.Load(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to load coupons: %w", err)
	}

	result := &ImportResult{Source: path, Parsed: set.Size(), Skipped: set.Skipped}

	valid := make([]model.Coupon, 0, set.Size())
	for _, c := range set.Coupons() {
		if err := i.validator.Validate(c); err != nil {
			i.logger.Warn().Err(err).Str("coupon_code", c.Code).Msg("rejecting coupon")
			result.Rejected++
			continue
		}
		valid = append(valid, c)
	}

	for start := 0; start < len(valid); start += i.batchSize {
		end := min(start+i.batchSize, len(valid))
		n, err := i.coupons.UpsertMany(ctx, valid[start:end])
		result.Upserted += n
		if err != nil {
			return result, fmt.Errorf("failed to store coupons: %w", err)
		}
	}

	i.logger.Info().
		Str("source", path).
		Int("parsed", result.Parsed).
		Int("skipped", result.Skipped).
		Int("rejected", result.Rejected).
		Int("upserted", result.Upserted).
		Msg("coupon import finished")

	return result, nil
}
