package repository

import (
	"context"
	"sync"
	"time"

	"github.com/eventspark/backend-booking/internal/domain"
)

// MemoryInventoryRepository implements InventoryRepository in memory.
// The mutex plays the role of the database's row-level serialization:
// the read-check-write in AdjustSpots is atomic per call.
type MemoryInventoryRepository struct {
	mu     sync.Mutex
	events map[string]*domain.Event
}

// NewMemoryInventoryRepository creates a new in-memory inventory repository
func NewMemoryInventoryRepository() *MemoryInventoryRepository {
	return &MemoryInventoryRepository{
		events: make(map[string]*domain.Event),
	}
}

// PutEvent stores an event (test setup helper)
func (r *MemoryInventoryRepository) PutEvent(event *domain.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cp := *event
	r.events[event.ID] = &cp
}

// AdjustSpots atomically applies delta to the event's spots_left
func (r *MemoryInventoryRepository) AdjustSpots(ctx context.Context, eventID string, delta int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	event, ok := r.events[eventID]
	if !ok {
		return 0, domain.ErrEventNotFound
	}

	next := event.SpotsLeft + delta
	if next < 0 || next > event.Capacity {
		return 0, domain.ErrCapacityExceeded
	}

	event.SpotsLeft = next
	event.UpdatedAt = time.Now()
	return next, nil
}

// GetEvent retrieves an event with its current inventory
func (r *MemoryInventoryRepository) GetEvent(ctx context.Context, eventID string) (*domain.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	event, ok := r.events[eventID]
	if !ok {
		return nil, domain.ErrEventNotFound
	}
	cp := *event
	return &cp, nil
}

// Ensure MemoryInventoryRepository implements InventoryRepository
var _ InventoryRepository = (*MemoryInventoryRepository)(nil)
