package order

import (
	"errors"
)

var (
	ErrMalformedAddress = errors.New("malformed_address")
	ErrInvalidAmount    = errors.New("invalid_amount")

	ErrNoProxyRegistered     = errors.New("no_proxy_registered")
	ErrNotApproved           = errors.New("not_approved")
	ErrNotOwner              = errors.New("not_owner")
	ErrInsufficientAllowance = errors.New("insufficient_allowance")
	ErrInsufficientBalance   = errors.New("insufficient_balance")

	ErrInvalidSignature        = errors.New("invalid_signature")
	ErrOnChainValidationFailed = errors.New("on_chain_validation_failed")

	ErrOrderNotFound       = errors.New("order_not_found")
	ErrOrderNotVerified    = errors.New("order_not_verified")
	ErrOrderNotPending     = errors.New("order_not_pending")
	ErrOrderExpired        = errors.New("order_expired")
	ErrUnsupportedSaleKind = errors.New("unsupported_sale_kind")
	ErrUnsupportedSaleSide = errors.New("unsupported_sale_side")

	ErrChainReadTransient = errors.New("chain_read_transient_failure") // retryable
	ErrChainReadFatal     = errors.New("chain_read_fatal_failure")
)

// kinds is ordered so that a retryable cause wins over the rejection it is wrapped in.
var kinds = []error{
	ErrChainReadTransient,
	ErrMalformedAddress,
	ErrInvalidAmount,
	ErrNoProxyRegistered,
	ErrNotApproved,
	ErrNotOwner,
	ErrInsufficientAllowance,
	ErrInsufficientBalance,
	ErrInvalidSignature,
	ErrOnChainValidationFailed,
	ErrOrderNotFound,
	ErrOrderNotVerified,
	ErrOrderNotPending,
	ErrOrderExpired,
	ErrUnsupportedSaleKind,
	ErrUnsupportedSaleSide,
	ErrChainReadFatal,
}

// Kind returns the error kind of err, or "internal_error" if err is not one of
// the engine's rejections.
func Kind(err error) string {
	if err == nil {
		return "ok"
	}
	for _, kind := range kinds {
		if errors.Is(err, kind) {
			return kind.Error()
		}
	}
	return "internal_error"
}

// IsRetryable reports whether the request may succeed if repeated unchanged.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrChainReadTransient)
}
