package repository

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/eventspark/backend-booking/internal/domain"
)

func TestAdjustSpots_NoOversell(t *testing.T) {
	repo := NewMemoryInventoryRepository()
	repo.PutEvent(&domain.Event{
		ID:        "event-1",
		Capacity:  10,
		SpotsLeft: 10,
	})

	// Twice as many takers as spots
	const takers = 20
	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded, rejected := 0, 0

	for i := 0; i < takers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.AdjustSpots(context.Background(), "event-1", -1)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, domain.ErrCapacityExceeded):
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if succeeded != 10 || rejected != 10 {
		t.Errorf("expected 10 successes and 10 rejections, got %d/%d", succeeded, rejected)
	}

	event, err := repo.GetEvent(context.Background(), "event-1")
	if err != nil {
		t.Fatal(err)
	}
	if event.SpotsLeft != 0 {
		t.Errorf("expected 0 spots left, got %d", event.SpotsLeft)
	}
}

func TestAdjustSpots_Bounds(t *testing.T) {
	repo := NewMemoryInventoryRepository()
	repo.PutEvent(&domain.Event{
		ID:        "event-1",
		Capacity:  10,
		SpotsLeft: 9,
	})

	// Restoring past capacity is rejected
	if _, err := repo.AdjustSpots(context.Background(), "event-1", 2); !errors.Is(err, domain.ErrCapacityExceeded) {
		t.Errorf("expected ErrCapacityExceeded above capacity, got %v", err)
	}

	// Restoring up to capacity is fine
	left, err := repo.AdjustSpots(context.Background(), "event-1", 1)
	if err != nil {
		t.Fatalf("restore to capacity failed: %v", err)
	}
	if left != 10 {
		t.Errorf("expected 10 spots left, got %d", left)
	}

	// Unknown event
	if _, err := repo.AdjustSpots(context.Background(), "missing", -1); !errors.Is(err, domain.ErrEventNotFound) {
		t.Errorf("expected ErrEventNotFound, got %v", err)
	}
}

func TestTransition_Guard(t *testing.T) {
	repo := NewMemoryBookingRepository()
	booking := &domain.Booking{
		ID:            "booking-1",
		EventID:       "event-1",
		Quantity:      1,
		Status:        domain.BookingStatusPending,
		PaymentStatus: domain.PaymentStatusPending,
	}
	if err := repo.Create(context.Background(), booking); err != nil {
		t.Fatal(err)
	}

	now := time.Now()
	updated, err := repo.Transition(context.Background(), "booking-1", domain.BookingStatusPending, &domain.StatusChange{
		Status:           domain.BookingStatusConfirmed,
		PaymentStatus:    domain.PaymentStatusPaid,
		SpotsDecremented: domain.Bool(true),
		PaymentReference: "pi_123",
		ConfirmedAt:      &now,
	})
	if err != nil {
		t.Fatalf("Transition failed: %v", err)
	}
	if !updated.IsConfirmed() || !updated.SpotsDecremented {
		t.Errorf("transition not applied: %+v", updated)
	}

	// Guard no longer matches
	_, err = repo.Transition(context.Background(), "booking-1", domain.BookingStatusPending, &domain.StatusChange{
		Status:        domain.BookingStatusCancelled,
		PaymentStatus: domain.PaymentStatusFailed,
	})
	if !errors.Is(err, domain.ErrStaleState) {
		t.Errorf("expected ErrStaleState, got %v", err)
	}

	// Unknown booking
	_, err = repo.Transition(context.Background(), "missing", domain.BookingStatusPending, &domain.StatusChange{
		Status: domain.BookingStatusCancelled,
	})
	if !errors.Is(err, domain.ErrBookingNotFound) {
		t.Errorf("expected ErrBookingNotFound, got %v", err)
	}
}

func TestTransition_SingleWinner(t *testing.T) {
	repo := NewMemoryBookingRepository()
	if err := repo.Create(context.Background(), &domain.Booking{
		ID:     "booking-1",
		Status: domain.BookingStatusPending,
	}); err != nil {
		t.Fatal(err)
	}

	const contenders = 8
	var wg sync.WaitGroup
	var mu sync.Mutex
	winners := 0

	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.Transition(context.Background(), "booking-1", domain.BookingStatusPending, &domain.StatusChange{
				Status:        domain.BookingStatusConfirmed,
				PaymentStatus: domain.PaymentStatusPaid,
			})
			if err == nil {
				mu.Lock()
				winners++
				mu.Unlock()
			} else if !errors.Is(err, domain.ErrStaleState) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if winners != 1 {
		t.Errorf("expected exactly one winning transition, got %d", winners)
	}
}

func TestGetByReference(t *testing.T) {
	repo := NewMemoryBookingRepository()
	if err := repo.Create(context.Background(), &domain.Booking{
		ID:               "booking-1",
		BookingReference: "BK-abc123",
		Status:           domain.BookingStatusPending,
	}); err != nil {
		t.Fatal(err)
	}

	booking, err := repo.GetByReference(context.Background(), "BK-abc123")
	if err != nil {
		t.Fatalf("GetByReference failed: %v", err)
	}
	if booking.ID != "booking-1" {
		t.Errorf("wrong booking: %s", booking.ID)
	}

	if _, err := repo.GetByReference(context.Background(), "BK-missing"); !errors.Is(err, domain.ErrBookingNotFound) {
		t.Errorf("expected ErrBookingNotFound, got %v", err)
	}
}
