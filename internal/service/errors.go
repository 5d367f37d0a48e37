package service

import "errors"

// Checkout error kinds. Validation errors are caller-facing and recoverable
// by changing input; consistency errors signal a double-submit or a race and
// are safe to retry once; anything else is infrastructure.
var (
	ErrProductNotFound        = errors.New("product not found")
	ErrProductUnavailable     = errors.New("product unavailable")
	ErrInsufficientInventory  = errors.New("insufficient inventory")
	ErrLoyaltyAccountNotFound = errors.New("loyalty account not found")
	ErrDiscountNotFound       = errors.New("discount code not found")
	ErrDiscountNotActive      = errors.New("discount code not active")
	ErrDiscountExpired        = errors.New("discount code expired")
	ErrInsufficientPoints     = errors.New("insufficient points")
	ErrAlreadyUsed            = errors.New("redemption already used")
	ErrConflict               = errors.New("conflict, retry checkout")
	ErrInvalidCart            = errors.New("invalid cart")
)

// IsValidationError reports whether err is a caller-correctable precondition
// failure rather than a race or an infrastructure fault.
func IsValidationError(err error) bool {
	for _, kind := range []error{
		ErrProductNotFound, ErrProductUnavailable, ErrInsufficientInventory,
		ErrLoyaltyAccountNotFound, ErrDiscountNotFound, ErrDiscountNotActive,
		ErrDiscountExpired, ErrInsufficientPoints, ErrInvalidCart,
	} {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}

// IsRetryable reports whether err is worth one retry of the whole checkout.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConflict)
}
