package domain

import "errors"

// Domain errors
var (
	// Booking errors
	ErrBookingNotFound = errors.New("booking not found")
	ErrStaleState      = errors.New("booking status changed concurrently")
	ErrNotCancellable  = errors.New("booking cannot be cancelled")

	// Inventory errors
	ErrCapacityExceeded = errors.New("not enough spots left")
	ErrEventNotFound    = errors.New("event not found")

	// Checkout errors
	ErrCheckoutInitiationFailed = errors.New("checkout session could not be created")

	// Validation errors
	ErrInvalidBookingID    = errors.New("invalid booking id")
	ErrInvalidEventID      = errors.New("invalid event id")
	ErrInvalidQuantity     = errors.New("ticket quantity must be at least one")
	ErrMissingGuestContact = errors.New("guest name and email are required")
)

// IsNotFoundError checks if the error is a not found error
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrBookingNotFound) ||
		errors.Is(err, ErrEventNotFound)
}

// IsValidationError checks if the error is a validation error
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidBookingID) ||
		errors.Is(err, ErrInvalidEventID) ||
		errors.Is(err, ErrInvalidQuantity) ||
		errors.Is(err, ErrMissingGuestContact)
}

// IsConflictError checks if the error is a conflict error
func IsConflictError(err error) bool {
	return errors.Is(err, ErrCapacityExceeded) ||
		errors.Is(err, ErrStaleState) ||
		errors.Is(err, ErrNotCancellable)
}
