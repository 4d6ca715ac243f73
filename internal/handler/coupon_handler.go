package handler

import (
	"net/http"

	"storefront/internal/model"
	"storefront/internal/service"

	"github.com/rs/zerolog"
)

// CouponHandler previews coupons.
type CouponHandler struct {
	service service.CouponService
	logger  zerolog.Logger
}

// NewCouponHandler creates a new coupon handler.
func NewCouponHandler(service service.CouponService, logger zerolog.Logger) *CouponHandler {
	return &CouponHandler{
		service: service,
		logger:  logger.With().Str("handler", "coupon").Logger(),
	}
}

// Check handles POST /api/coupons/check.
func (h *CouponHandler) Check(w http.ResponseWriter, r *http.Request) {
	var req model.CouponCheckRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}

	view, err := h.service.Check(r.Context(), req.CouponCode)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, view)
}
