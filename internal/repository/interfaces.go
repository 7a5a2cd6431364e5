package repository

import (
	"context"

	"github.com/eventspark/backend-booking/internal/domain"
)

// BookingRepository defines the interface for booking persistence
type BookingRepository interface {
	// Create inserts a new pending booking record
	Create(ctx context.Context, booking *domain.Booking) error

	// GetByID retrieves a booking by its ID
	GetByID(ctx context.Context, id string) (*domain.Booking, error)

	// GetByReference retrieves a booking by its human-facing reference
	GetByReference(ctx context.Context, reference string) (*domain.Booking, error)

	// Transition applies a conditional status update: the change is applied
	// only if the stored status still equals expected. Returns the updated
	// booking, domain.ErrStaleState if the guard failed, or
	// domain.ErrBookingNotFound if no such booking exists.
	Transition(ctx context.Context, id string, expected domain.BookingStatus, change *domain.StatusChange) (*domain.Booking, error)

	// SetCheckoutSession records the payment processor session for a booking
	SetCheckoutSession(ctx context.Context, id, sessionID string) error
}

// InventoryRepository defines the interface for the event inventory ledger
type InventoryRepository interface {
	// AdjustSpots atomically applies delta to the event's spots_left and
	// returns the new value. Fails with domain.ErrCapacityExceeded if the
	// adjustment would drive spots_left below zero or above capacity.
	// The adjustment is unconditional; de-duplication is the caller's
	// responsibility via the booking's spots_decremented flag.
	AdjustSpots(ctx context.Context, eventID string, delta int) (int, error)

	// GetEvent retrieves an event with its current inventory
	GetEvent(ctx context.Context, eventID string) (*domain.Event, error)
}
