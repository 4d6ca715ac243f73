package model

import (
	"errors"
	"fmt"
)

// ErrorResponse represents a standardised error response.
type ErrorResponse struct {
	Error         string `json:"error"`
	Message       string `json:"message"`
	CorrelationID string `json:"correlationId,omitempty"`
}

// ErrorKind classifies a domain error so callers can decide whether to retry.
type ErrorKind int

const (
	KindValidation ErrorKind = iota
	KindNotFound
	KindConflict
	KindExternalDependency
	KindRateLimited
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindExternalDependency:
		return "external_dependency"
	case KindRateLimited:
		return "rate_limited"
	default:
		return "unknown"
	}
}

// Standard error codes for API responses
const (
	ErrCodeInvalidJSON       = "INVALID_JSON"
	ErrCodeInvalidParameter  = "INVALID_PARAMETER"
	ErrCodeMissingField      = "MISSING_FIELD"
	ErrCodeProductNotFound   = "PRODUCT_NOT_FOUND"
	ErrCodeInvalidQuantity   = "INVALID_QUANTITY"
	ErrCodeOutOfStock        = "OUT_OF_STOCK"
	ErrCodeCartNotFound      = "CART_NOT_FOUND"
	ErrCodeCartEmpty         = "CART_EMPTY"
	ErrCodeCouponNotFound    = "COUPON_NOT_FOUND"
	ErrCodeCouponExpired     = "COUPON_EXPIRED"
	ErrCodeCheckoutNotBegun  = "CHECKOUT_NOT_STARTED"
	ErrCodeInsufficientStock = "INSUFFICIENT_STOCK"
	ErrCodeOrderNotFound     = "ORDER_NOT_FOUND"
	ErrCodeMalformedCode     = "MALFORMED_CODE"
	ErrCodeChallengeMissing  = "CHALLENGE_EXPIRED_OR_MISSING"
	ErrCodeChallengeInvalid  = "CHALLENGE_INVALID"
	ErrCodeTooManyAttempts   = "TOO_MANY_ATTEMPTS"
	ErrCodeDeliveryFailed    = "DELIVERY_FAILED"
	ErrCodeInvalidPlatform   = "INVALID_PLATFORM"
	ErrCodeUnauthorised      = "UNAUTHORIZED"
	ErrCodeMethodNotAllowed  = "METHOD_NOT_ALLOWED"
	ErrCodeInternalError     = "INTERNAL_ERROR"
)

// DomainError is a business rule failure with a stable code.
type DomainError struct {
	Kind    ErrorKind
	Code    string
	Message string
}

func (e *DomainError) Error() string {
	return e.Message
}

// Is matches on Code so parameterised errors compare equal to their sentinel.
func (e *DomainError) Is(target error) bool {
	var t *DomainError
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

// NewDomainError creates a new domain error
func NewDomainError(kind ErrorKind, code, message string) *DomainError {
	return &DomainError{
		Kind:    kind,
		Code:    code,
		Message: message,
	}
}

// Common domain errors
var (
	ErrProductNotFound    = NewDomainError(KindNotFound, ErrCodeProductNotFound, "One or more products not found")
	ErrInvalidQuantity    = NewDomainError(KindValidation, ErrCodeInvalidQuantity, "Quantity must be greater than zero")
	ErrOutOfStock         = NewDomainError(KindValidation, ErrCodeOutOfStock, "Requested quantity exceeds available stock")
	ErrCartNotFound       = NewDomainError(KindNotFound, ErrCodeCartNotFound, "Cart not found")
	ErrCartEmpty          = NewDomainError(KindValidation, ErrCodeCartEmpty, "Cart is empty")
	ErrCouponNotFound     = NewDomainError(KindNotFound, ErrCodeCouponNotFound, "Coupon not found")
	ErrCouponExpired      = NewDomainError(KindConflict, ErrCodeCouponExpired, "Coupon is expired or inactive")
	ErrCheckoutNotStarted = NewDomainError(KindValidation, ErrCodeCheckoutNotBegun, "Checkout has not been started for this cart and phone number")
	ErrInsufficientStock  = NewDomainError(KindConflict, ErrCodeInsufficientStock, "Insufficient stock")
	ErrOrderNotFound      = NewDomainError(KindNotFound, ErrCodeOrderNotFound, "Order not found")
	ErrMalformedCode      = NewDomainError(KindValidation, ErrCodeMalformedCode, "Verification code must be 6 digits")
	ErrChallengeMissing   = NewDomainError(KindValidation, ErrCodeChallengeMissing, "Verification code expired or was never requested")
	ErrChallengeInvalid   = NewDomainError(KindValidation, ErrCodeChallengeInvalid, "Verification code is incorrect")
	ErrTooManyAttempts    = NewDomainError(KindRateLimited, ErrCodeTooManyAttempts, "Too many verification attempts, request a new code")
	ErrDeliveryFailed     = NewDomainError(KindExternalDependency, ErrCodeDeliveryFailed, "Failed to deliver verification code")
	ErrInvalidPlatform    = NewDomainError(KindValidation, ErrCodeInvalidPlatform, "Platform must be ios or android")
)

// MissingField reports a required request field that was left empty.
func MissingField(field string) *DomainError {
	return NewDomainError(KindValidation, ErrCodeMissingField, fmt.Sprintf("%s is required", field))
}

// InsufficientStock names the product that could not be reserved.
func InsufficientStock(productName string, available int) *DomainError {
	return NewDomainError(KindConflict, ErrCodeInsufficientStock,
		fmt.Sprintf("Insufficient stock for %s (available: %d)", productName, available))
}

// OutOfStock names the product whose stock cannot cover a cart line.
func OutOfStock(productName string, available int) *DomainError {
	return NewDomainError(KindValidation, ErrCodeOutOfStock,
		fmt.Sprintf("Only %d of %s in stock", available, productName))
}
