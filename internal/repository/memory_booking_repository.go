package repository

import (
	"context"
	"sync"
	"time"

	"github.com/eventspark/backend-booking/internal/domain"
)

// MemoryBookingRepository implements BookingRepository in memory.
// Used in tests and local development; transitions take the same
// check-and-set path as the PostgreSQL implementation, guarded by a
// mutex instead of a guarded UPDATE.
type MemoryBookingRepository struct {
	mu       sync.Mutex
	bookings map[string]*domain.Booking
}

// NewMemoryBookingRepository creates a new in-memory booking repository
func NewMemoryBookingRepository() *MemoryBookingRepository {
	return &MemoryBookingRepository{
		bookings: make(map[string]*domain.Booking),
	}
}

// Create inserts a new booking record
func (r *MemoryBookingRepository) Create(ctx context.Context, booking *domain.Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cp := *booking
	r.bookings[booking.ID] = &cp
	return nil
}

// GetByID retrieves a booking by its ID
func (r *MemoryBookingRepository) GetByID(ctx context.Context, id string) (*domain.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	booking, ok := r.bookings[id]
	if !ok {
		return nil, domain.ErrBookingNotFound
	}
	cp := *booking
	return &cp, nil
}

// GetByReference retrieves a booking by its human-facing reference
func (r *MemoryBookingRepository) GetByReference(ctx context.Context, reference string) (*domain.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, booking := range r.bookings {
		if booking.BookingReference == reference {
			cp := *booking
			return &cp, nil
		}
	}
	return nil, domain.ErrBookingNotFound
}

// Transition applies a conditional status update under the repository lock
func (r *MemoryBookingRepository) Transition(ctx context.Context, id string, expected domain.BookingStatus, change *domain.StatusChange) (*domain.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	booking, ok := r.bookings[id]
	if !ok {
		return nil, domain.ErrBookingNotFound
	}
	if booking.Status != expected {
		return nil, domain.ErrStaleState
	}

	booking.Status = change.Status
	booking.PaymentStatus = change.PaymentStatus
	if change.SpotsDecremented != nil {
		booking.SpotsDecremented = *change.SpotsDecremented
	}
	if change.PaymentReference != "" {
		booking.PaymentReference = change.PaymentReference
	}
	if change.ConfirmedAt != nil {
		booking.ConfirmedAt = change.ConfirmedAt
	}
	if change.CancelledAt != nil {
		booking.CancelledAt = change.CancelledAt
	}
	booking.UpdatedAt = time.Now()

	cp := *booking
	return &cp, nil
}

// SetCheckoutSession records the payment processor session for a booking
func (r *MemoryBookingRepository) SetCheckoutSession(ctx context.Context, id, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	booking, ok := r.bookings[id]
	if !ok {
		return domain.ErrBookingNotFound
	}
	booking.CheckoutSession = sessionID
	booking.UpdatedAt = time.Now()
	return nil
}

// All returns a snapshot of every stored booking (test helper)
func (r *MemoryBookingRepository) All() []*domain.Booking {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*domain.Booking, 0, len(r.bookings))
	for _, booking := range r.bookings {
		cp := *booking
		out = append(out, &cp)
	}
	return out
}

// Ensure MemoryBookingRepository implements BookingRepository
var _ BookingRepository = (*MemoryBookingRepository)(nil)
