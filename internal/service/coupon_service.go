package service

import (
	"context"
	"strings"
	"time"

	"storefront/internal/model"
	"storefront/internal/repository"

	"github.com/rs/zerolog"
)

// couponService implements CouponService.
type couponService struct {
	couponRepo repository.CouponRepository
	now        func() time.Time
	logger     zerolog.Logger
}

// NewCouponService creates a new coupon service.
func NewCouponService(couponRepo repository.CouponRepository, logger zerolog.Logger) CouponService {
	return &couponService{
		couponRepo: couponRepo,
		now:        time.Now,
		logger:     logger.With().Str("service", "coupon").Logger(),
	}
}

// Check returns the coupon's terms if it can currently be applied.
func (s *couponService) Check(ctx context.Context, code string) (*model.CouponView, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, model.MissingField("couponCode")
	}

	c, err := s.couponRepo.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, model.ErrCouponNotFound
	}
	if !c.IsValid(s.now()) {
		s.logger.Debug().Str("coupon_code", code).Msg("coupon not currently valid")
		return nil, model.ErrCouponExpired
	}

	return couponView(c, nil), nil
}
