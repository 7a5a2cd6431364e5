package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/eventspark/backend-booking/internal/domain"
	"github.com/eventspark/backend-booking/internal/gateway"
	"github.com/eventspark/backend-booking/internal/repository"
)

func seedConfirmedBooking(t *testing.T, repo *repository.MemoryBookingRepository, id string, quantity int) *domain.Booking {
	t.Helper()
	booking := &domain.Booking{
		ID:               id,
		EventID:          "event-1",
		UserID:           "user-1",
		Quantity:         quantity,
		UnitPrice:        25.00,
		TotalAmount:      25.00 * float64(quantity),
		Currency:         "USD",
		Status:           domain.BookingStatusConfirmed,
		PaymentStatus:    domain.PaymentStatusPaid,
		SpotsDecremented: true,
		PaymentReference: "pi_" + id,
		BookingReference: "BK-" + id,
	}
	if err := repo.Create(context.Background(), booking); err != nil {
		t.Fatal(err)
	}
	return booking
}

func cancellationFixture(t *testing.T, hoursUntilStart float64, spotsLeft int) (*repository.MemoryBookingRepository, *repository.MemoryInventoryRepository, *gateway.MockGateway) {
	t.Helper()
	bookingRepo := repository.NewMemoryBookingRepository()
	inventoryRepo := repository.NewMemoryInventoryRepository()
	event := testEvent()
	event.SpotsLeft = spotsLeft
	event.StartsAt = time.Now().Add(time.Duration(hoursUntilStart * float64(time.Hour)))
	inventoryRepo.PutEvent(event)
	return bookingRepo, inventoryRepo, gateway.NewMockGateway()
}

func TestCancel_ConfirmedWithRefundAndRestore(t *testing.T) {
	bookingRepo, inventoryRepo, gw := cancellationFixture(t, 100, 8)
	seedConfirmedBooking(t, bookingRepo, "booking-1", 2)
	notifier := &recordingNotifier{}

	svc := NewCancellationService(bookingRepo, inventoryRepo, gw, notifier, nil)

	result, err := svc.Cancel(context.Background(), "booking-1", domain.InitiatorUser, "changed plans")
	if err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}

	if result.Refund != RefundIssued {
		t.Errorf("expected refund issued, got %s", result.Refund)
	}
	if !result.Booking.IsCancelled() {
		t.Errorf("expected cancelled, got %s", result.Booking.Status)
	}
	if result.Booking.PaymentStatus != domain.PaymentStatusRefunded {
		t.Errorf("expected refunded, got %s", result.Booking.PaymentStatus)
	}
	if result.Booking.SpotsDecremented {
		t.Error("expected spots_decremented cleared")
	}
	if gw.RefundCalls() != 1 {
		t.Errorf("expected 1 refund call, got %d", gw.RefundCalls())
	}

	// Spots returned to the ledger
	event, _ := inventoryRepo.GetEvent(context.Background(), "event-1")
	if event.SpotsLeft != 10 {
		t.Errorf("expected 10 spots left after restore, got %d", event.SpotsLeft)
	}
	if notifier.cancelled != 1 {
		t.Errorf("expected 1 cancelled notification, got %d", notifier.cancelled)
	}
}

func TestCancel_RefundFailureDegrades(t *testing.T) {
	bookingRepo, inventoryRepo, gw := cancellationFixture(t, 100, 8)
	seedConfirmedBooking(t, bookingRepo, "booking-1", 2)
	gw.RefundsPermanentlyDown = true
	notifier := &recordingNotifier{}

	svc := NewCancellationService(bookingRepo, inventoryRepo, gw, notifier, nil)

	result, err := svc.Cancel(context.Background(), "booking-1", domain.InitiatorUser, "changed plans")
	if err != nil {
		t.Fatalf("refund failure must not fail the cancellation: %v", err)
	}

	if result.Refund != RefundPending {
		t.Errorf("expected refund_pending, got %s", result.Refund)
	}
	if result.Booking.PaymentStatus != domain.PaymentStatusRefundPending {
		t.Errorf("expected refund_pending payment status, got %s", result.Booking.PaymentStatus)
	}
	if !result.Booking.IsCancelled() {
		t.Errorf("expected cancelled, got %s", result.Booking.Status)
	}

	// Inventory is still restored
	event, _ := inventoryRepo.GetEvent(context.Background(), "event-1")
	if event.SpotsLeft != 10 {
		t.Errorf("expected 10 spots left, got %d", event.SpotsLeft)
	}
	if notifier.refundPending != 1 {
		t.Errorf("expected refund-pending notification, got %d", notifier.refundPending)
	}
}

func TestCancel_PendingBookingNoRefund(t *testing.T) {
	bookingRepo, inventoryRepo, gw := cancellationFixture(t, 100, 10)
	seedPendingBooking(t, bookingRepo, "booking-1", 2)

	svc := NewCancellationService(bookingRepo, inventoryRepo, gw, nil, nil)

	result, err := svc.Cancel(context.Background(), "booking-1", domain.InitiatorUser, "")
	if err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	if result.Refund != RefundNone {
		t.Errorf("expected no refund for unpaid booking, got %s", result.Refund)
	}
	if gw.RefundCalls() != 0 {
		t.Errorf("expected no refund calls, got %d", gw.RefundCalls())
	}

	// Nothing was decremented, nothing restored
	event, _ := inventoryRepo.GetEvent(context.Background(), "event-1")
	if event.SpotsLeft != 10 {
		t.Errorf("expected inventory untouched, got %d", event.SpotsLeft)
	}
}

func TestCancel_DeadlineBoundary(t *testing.T) {
	tests := []struct {
		name            string
		hoursUntilStart float64
		initiator       domain.CancelInitiator
		wantErr         error
	}{
		{"user well before deadline", 49, domain.InitiatorUser, nil},
		{"user inside deadline", 47, domain.InitiatorUser, domain.ErrNotCancellable},
		{"user long after deadline passed", 1, domain.InitiatorUser, domain.ErrNotCancellable},
		{"host inside deadline", 1, domain.InitiatorHost, nil},
		{"admin inside deadline", 0.5, domain.InitiatorAdmin, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bookingRepo, inventoryRepo, gw := cancellationFixture(t, tt.hoursUntilStart, 8)
			seedConfirmedBooking(t, bookingRepo, "booking-1", 2)

			svc := NewCancellationService(bookingRepo, inventoryRepo, gw, nil, nil)

			_, err := svc.Cancel(context.Background(), "booking-1", tt.initiator, "")
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("expected cancellation to succeed, got %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestCancel_AlreadyCancelled(t *testing.T) {
	bookingRepo, inventoryRepo, gw := cancellationFixture(t, 100, 8)
	seedConfirmedBooking(t, bookingRepo, "booking-1", 2)

	svc := NewCancellationService(bookingRepo, inventoryRepo, gw, nil, nil)

	if _, err := svc.Cancel(context.Background(), "booking-1", domain.InitiatorUser, ""); err != nil {
		t.Fatalf("first Cancel failed: %v", err)
	}
	_, err := svc.Cancel(context.Background(), "booking-1", domain.InitiatorUser, "")
	if !errors.Is(err, domain.ErrNotCancellable) {
		t.Errorf("expected ErrNotCancellable on double cancel, got %v", err)
	}

	// Restore happened exactly once
	event, _ := inventoryRepo.GetEvent(context.Background(), "event-1")
	if event.SpotsLeft != 10 {
		t.Errorf("expected exactly one restore, got %d spots left", event.SpotsLeft)
	}
	if gw.RefundCalls() != 1 {
		t.Errorf("expected exactly one refund, got %d", gw.RefundCalls())
	}
}

func TestCancel_LostRaceIsConflict(t *testing.T) {
	bookingRepo := &MockBookingRepository{
		GetByIDFunc: func(ctx context.Context, id string) (*domain.Booking, error) {
			return &domain.Booking{
				ID:            id,
				EventID:       "event-1",
				Quantity:      1,
				Status:        domain.BookingStatusPending,
				PaymentStatus: domain.PaymentStatusPending,
			}, nil
		},
		TransitionFunc: func(ctx context.Context, id string, expected domain.BookingStatus, change *domain.StatusChange) (*domain.Booking, error) {
			// A concurrent settlement changed the status between read and write
			return nil, domain.ErrStaleState
		},
	}
	inventoryRepo := repository.NewMemoryInventoryRepository()
	event := testEvent()
	event.StartsAt = time.Now().Add(100 * time.Hour)
	inventoryRepo.PutEvent(event)

	svc := NewCancellationService(bookingRepo, inventoryRepo, gateway.NewMockGateway(), nil, nil)

	_, err := svc.Cancel(context.Background(), "booking-1", domain.InitiatorUser, "")
	if !errors.Is(err, domain.ErrStaleState) {
		t.Errorf("expected ErrStaleState, got %v", err)
	}
}

func TestCancel_UnknownBooking(t *testing.T) {
	svc := NewCancellationService(repository.NewMemoryBookingRepository(), repository.NewMemoryInventoryRepository(), gateway.NewMockGateway(), nil, nil)

	_, err := svc.Cancel(context.Background(), "missing", domain.InitiatorUser, "")
	if !errors.Is(err, domain.ErrBookingNotFound) {
		t.Errorf("expected ErrBookingNotFound, got %v", err)
	}
}
