package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"storefront/internal/chatops"
	"storefront/internal/metrics"
	"storefront/internal/model"
	"storefront/internal/pricing"
	"storefront/internal/push"
	"storefront/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DefaultCommitTimeout bounds the verify transaction once it has started.
const DefaultCommitTimeout = 30 * time.Second

// CheckoutDeps wires the collaborators of the checkout service.
type CheckoutDeps struct {
	Tx        repository.Transactor
	Carts     repository.CartRepository
	Coupons   repository.CouponRepository
	Customers repository.CustomerRepository
	Orders    repository.OrderRepository
	Devices   repository.DeviceRepository
	OTP       Challenger
	Stock     StockReserver
	Jobs      Dispatcher
}

// checkoutService implements CheckoutService.
type checkoutService struct {
	CheckoutDeps
	commitTimeout time.Duration
	now           func() time.Time
	logger        zerolog.Logger
}

// NewCheckoutService creates a new checkout service.
func NewCheckoutService(deps CheckoutDeps, logger zerolog.Logger) CheckoutService {
	return &checkoutService{
		CheckoutDeps:  deps,
		commitTimeout: DefaultCommitTimeout,
		now:           time.Now,
		logger:        logger.With().Str("service", "checkout").Logger(),
	}
}

func requireCustomerFields(cartID uuid.UUID, username, government, address, phone string) error {
	switch {
	case cartID == uuid.Nil:
		return model.MissingField("cartId")
	case strings.TrimSpace(username) == "":
		return model.MissingField("username")
	case strings.TrimSpace(government) == "":
		return model.MissingField("government")
	case strings.TrimSpace(address) == "":
		return model.MissingField("address")
	case strings.TrimSpace(phone) == "":
		return model.MissingField("phoneNumber")
	}
	return nil
}

// recordOutcome counts a checkout phase result by error code.
func recordOutcome(phase string, err error) {
	result := "ok"
	if err != nil {
		var de *model.DomainError
		if errors.As(err, &de) {
			result = strings.ToLower(de.Code)
		} else {
			result = "internal_error"
		}
	}
	metrics.CheckoutOutcomes.WithLabelValues(phase, result).Inc()
}

// Begin attaches or detaches the coupon, records the phone and sends a code,
// all in one transaction. A failed send leaves the cart as it was.
func (s *checkoutService) Begin(ctx context.Context, req *model.BeginRequest) (resp *model.BeginResponse, err error) {
	defer func() { recordOutcome("begin", err) }()

	if err = requireCustomerFields(req.CartID, req.Username, req.Government, req.Address, req.PhoneNumber); err != nil {
		return nil, err
	}
	phone := strings.TrimSpace(req.PhoneNumber)
	log := s.logger.With().Str("cart_id", req.CartID.String()).Logger()

	tx, err := s.Tx.BeginTx(ctx)
	if err != nil {
		log.Error().Err(err).Msg("failed to begin transaction")
		return nil, fmt.Errorf("failed to begin checkout: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				log.Error().Err(rbErr).Msg("failed to rollback transaction")
			}
		}
	}()

	cart, err := s.Carts.GetForUpdate(ctx, tx, req.CartID)
	if err != nil {
		return nil, err
	}
	if cart == nil {
		return nil, model.ErrCartNotFound
	}

	items, err := s.Carts.ItemsTx(ctx, tx, cart.ID)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, model.ErrCartEmpty
	}

	var coupon *model.Coupon
	if req.CouponCode != nil && strings.TrimSpace(*req.CouponCode) != "" {
		code := strings.ToUpper(strings.TrimSpace(*req.CouponCode))
		coupon, err = s.Coupons.GetByCode(ctx, code)
		if err != nil {
			return nil, err
		}
		if coupon == nil {
			log.Warn().Str("coupon_code", code).Msg("coupon not found")
			return nil, model.ErrCouponNotFound
		}
		if !coupon.IsValid(s.now()) {
			log.Warn().Str("coupon_code", code).Msg("coupon expired or inactive")
			return nil, model.ErrCouponExpired
		}
	}

	summary := pricing.Summarize(cartLines(items), coupon)

	update := repository.CheckoutUpdate{
		Phone:       &phone,
		State:       model.CartOTPRequested,
		QuotedTotal: &summary.Total,
	}
	if coupon != nil {
		update.CouponID = &coupon.ID
	}
	if err = s.Carts.SetCheckout(ctx, tx, cart.ID, update); err != nil {
		return nil, err
	}

	if err = s.OTP.Issue(ctx, phone); err != nil {
		log.Error().Err(err).Msg("failed to issue verification code")
		return nil, err
	}

	if err = tx.Commit(ctx); err != nil {
		log.Error().Err(err).Msg("failed to commit transaction")
		return nil, fmt.Errorf("failed to begin checkout: %w", err)
	}

	log.Info().
		Str("total", summary.Total.StringFixed(2)).
		Bool("coupon", coupon != nil).
		Msg("checkout started, code sent")

	return &model.BeginResponse{
		CartID:        cart.ID,
		Subtotal:      summary.Subtotal,
		Discount:      summary.Discount,
		CheckoutTotal: summary.Total,
		Coupon:        couponView(coupon, &summary),
	}, nil
}

// Verify checks the code, then commits the order on a context detached from
// the caller so a disconnecting client cannot abort it half way.
func (s *checkoutService) Verify(ctx context.Context, req *model.VerifyRequest) (resp *model.OrderResponse, err error) {
	defer func() { recordOutcome("verify", err) }()

	if err = requireCustomerFields(req.CartID, req.Username, req.Government, req.Address, req.PhoneNumber); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Code) == "" {
		return nil, model.MissingField("code")
	}
	phone := strings.TrimSpace(req.PhoneNumber)

	if err = s.OTP.Verify(ctx, phone, strings.TrimSpace(req.Code)); err != nil {
		s.logger.Warn().Err(err).Str("cart_id", req.CartID.String()).Msg("verification failed")
		return nil, err
	}

	commitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.commitTimeout)
	defer cancel()

	resp, err = s.commit(commitCtx, req, phone)
	if err != nil {
		return nil, err
	}

	if invErr := s.OTP.Invalidate(commitCtx, phone); invErr != nil {
		s.logger.Error().Err(invErr).Str("order_id", resp.ID.String()).Msg("order committed but code was not invalidated")
	}

	s.notify(commitCtx, resp, phone)
	return resp, nil
}

func (s *checkoutService) commit(ctx context.Context, req *model.VerifyRequest, phone string) (resp *model.OrderResponse, err error) {
	log := s.logger.With().Str("cart_id", req.CartID.String()).Logger()

	tx, err := s.Tx.BeginTx(ctx)
	if err != nil {
		log.Error().Err(err).Msg("failed to begin transaction")
		return nil, fmt.Errorf("failed to create order: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				log.Error().Err(rbErr).Msg("failed to rollback transaction")
			}
		}
	}()

	cart, err := s.Carts.GetForUpdate(ctx, tx, req.CartID)
	if err != nil {
		return nil, err
	}
	if cart == nil {
		log.Warn().Msg("cart vanished before commit")
		return nil, model.ErrCartNotFound
	}
	if cart.State != model.CartOTPRequested || cart.CheckoutPhone == nil || *cart.CheckoutPhone != phone {
		return nil, model.ErrCheckoutNotStarted
	}

	items, err := s.Carts.ItemsTx(ctx, tx, cart.ID)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, model.ErrCartEmpty
	}

	customer, created, err := s.Customers.GetOrCreate(ctx, tx, phone)
	if err != nil {
		return nil, err
	}
	if created || customer.Username == "" {
		customer.Username = strings.TrimSpace(req.Username)
		customer.Government = strings.TrimSpace(req.Government)
		customer.Address = strings.TrimSpace(req.Address)
	}
	customer.IsVerified = true
	if err = s.Customers.UpdateProfile(ctx, tx, customer); err != nil {
		return nil, err
	}

	var coupon *model.Coupon
	if cart.AppliedCouponID != nil {
		coupon, err = s.Coupons.GetByIDTx(ctx, tx, *cart.AppliedCouponID)
		if err != nil {
			return nil, err
		}
		if coupon == nil {
			log.Warn().Int64("coupon_id", *cart.AppliedCouponID).Msg("applied coupon no longer exists")
		}
	}

	now := s.now()
	order := &model.Order{
		ID:         uuid.New(),
		CustomerID: customer.ID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if coupon != nil {
		order.CouponID = &coupon.ID
		order.CouponCode = &coupon.Code
		order.CouponKind = &coupon.Discount.Kind
		order.CouponValue = &coupon.Discount.Value
	}
	if err = s.Orders.CreateOrder(ctx, tx, order); err != nil {
		return nil, err
	}

	sort.SliceStable(items, func(i, j int) bool { return items[i].Product.ID < items[j].Product.ID })

	orderItems := make([]model.OrderItem, 0, len(items))
	lines := make([]pricing.Line, 0, len(items))
	for _, it := range items {
		p, reserveErr := s.Stock.Reserve(ctx, tx, it.Product.ID, it.Quantity)
		if reserveErr != nil {
			log.Warn().Err(reserveErr).Str("product_id", it.Product.ID).Msg("stock reservation failed")
			return nil, reserveErr
		}

		orderItems = append(orderItems, model.OrderItem{
			ID:          uuid.New(),
			OrderID:     order.ID,
			ProductID:   p.ID,
			ProductName: p.Name,
			Quantity:    it.Quantity,
			UnitPrice:   pricing.DiscountedPrice(*p),
			TotalPrice:  pricing.LineTotal(*p, it.Quantity),
		})
		lines = append(lines, pricing.Line{Product: *p, Quantity: it.Quantity})
	}

	if err = s.Orders.CreateOrderItems(ctx, tx, orderItems); err != nil {
		return nil, err
	}

	summary := pricing.Summarize(lines, coupon)
	order.Subtotal = summary.Subtotal
	order.Discount = summary.Discount
	order.Total = summary.Total
	if err = s.Orders.UpdateTotals(ctx, tx, order); err != nil {
		return nil, err
	}

	if err = s.Carts.Delete(ctx, tx, cart.ID); err != nil {
		return nil, err
	}

	if err = tx.Commit(ctx); err != nil {
		log.Error().Err(err).Str("order_id", order.ID.String()).Msg("failed to commit transaction")
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	if cart.QuotedTotal != nil && !cart.QuotedTotal.Equal(order.Total) {
		metrics.PriceDrift.Inc()
		log.Warn().
			Str("order_id", order.ID.String()).
			Str("quoted", cart.QuotedTotal.StringFixed(2)).
			Str("committed", order.Total.StringFixed(2)).
			Msg("committed total differs from quote")
	}

	log.Info().
		Str("order_id", order.ID.String()).
		Int64("customer_id", customer.ID).
		Int("item_count", len(orderItems)).
		Str("total", order.Total.StringFixed(2)).
		Msg("order created successfully")

	return &model.OrderResponse{Order: *order, Items: orderItems, Customer: customer}, nil
}

// notify enqueues the chat-ops summary and the customer's push
// notifications. Failures are logged only.
func (s *checkoutService) notify(ctx context.Context, order *model.OrderResponse, phone string) {
	if s.Jobs == nil {
		return
	}

	if err := s.Jobs.Dispatch(ctx, chatops.JobType, order); err != nil {
		s.logger.Warn().Err(err).Str("order_id", order.ID.String()).Msg("failed to enqueue order summary")
	}

	devices, err := s.Devices.ListByPhone(ctx, phone)
	if err != nil {
		s.logger.Warn().Err(err).Str("order_id", order.ID.String()).Msg("failed to load devices")
		return
	}
	if len(devices) == 0 {
		return
	}

	body := fmt.Sprintf("Your order %s totalling %s has been placed.", order.ID.String()[:8], order.Total.StringFixed(2))
	push.FanOut(ctx, s.Jobs, devices, "Order confirmed", body, s.logger)
}
