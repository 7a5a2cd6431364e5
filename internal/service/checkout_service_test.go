package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/eventspark/backend-booking/internal/domain"
	"github.com/eventspark/backend-booking/internal/dto"
	"github.com/eventspark/backend-booking/internal/gateway"
	"github.com/eventspark/backend-booking/internal/repository"
)

func testEvent() *domain.Event {
	return &domain.Event{
		ID:        "event-1",
		Name:      "Test Event",
		HostID:    "host-1",
		Capacity:  10,
		SpotsLeft: 10,
		UnitPrice: 25.00,
		Currency:  "USD",
		StartsAt:  time.Now().Add(30 * 24 * time.Hour),
	}
}

func fastCheckoutConfig() *CheckoutServiceConfig {
	return &CheckoutServiceConfig{
		MaxAttempts: 3,
		Backoff:     time.Millisecond,
		SuccessURL:  "https://example.test/success",
		CancelURL:   "https://example.test/cancel",
	}
}

func TestStartCheckout_Success(t *testing.T) {
	bookingRepo := repository.NewMemoryBookingRepository()
	inventoryRepo := repository.NewMemoryInventoryRepository()
	inventoryRepo.PutEvent(testEvent())
	gw := gateway.NewMockGateway()
	notifier := &recordingNotifier{}

	svc := NewCheckoutService(bookingRepo, inventoryRepo, gw, notifier, fastCheckoutConfig())

	resp, err := svc.StartCheckout(context.Background(), &dto.CheckoutRequest{
		EventID:  "event-1",
		Quantity: 2,
		UserID:   "user-1",
	})
	if err != nil {
		t.Fatalf("StartCheckout failed: %v", err)
	}

	if resp.CheckoutURL == "" {
		t.Error("expected a checkout URL")
	}
	if resp.TotalAmount != 50.00 {
		t.Errorf("expected total 50.00, got %.2f", resp.TotalAmount)
	}
	if resp.BookingReference == "" {
		t.Error("expected a booking reference")
	}

	booking, err := bookingRepo.GetByID(context.Background(), resp.BookingID)
	if err != nil {
		t.Fatalf("booking not persisted: %v", err)
	}
	if !booking.IsPending() {
		t.Errorf("expected pending booking, got %s", booking.Status)
	}
	if booking.PaymentStatus != domain.PaymentStatusPending {
		t.Errorf("expected pending payment, got %s", booking.PaymentStatus)
	}
	if booking.SpotsDecremented {
		t.Error("checkout must not touch inventory")
	}
	if booking.CheckoutSession == "" {
		t.Error("expected checkout session persisted on booking")
	}

	// Inventory untouched at checkout
	event, _ := inventoryRepo.GetEvent(context.Background(), "event-1")
	if event.SpotsLeft != 10 {
		t.Errorf("expected 10 spots left, got %d", event.SpotsLeft)
	}

	if notifier.checkoutStarted != 1 {
		t.Errorf("expected 1 checkout notification, got %d", notifier.checkoutStarted)
	}
}

func TestStartCheckout_Validation(t *testing.T) {
	tests := []struct {
		name    string
		req     *dto.CheckoutRequest
		wantErr error
	}{
		{
			name:    "nil request",
			req:     nil,
			wantErr: domain.ErrInvalidEventID,
		},
		{
			name:    "missing event id",
			req:     &dto.CheckoutRequest{Quantity: 1, UserID: "u"},
			wantErr: domain.ErrInvalidEventID,
		},
		{
			name:    "zero quantity",
			req:     &dto.CheckoutRequest{EventID: "event-1", Quantity: 0, UserID: "u"},
			wantErr: domain.ErrInvalidQuantity,
		},
		{
			name:    "negative quantity",
			req:     &dto.CheckoutRequest{EventID: "event-1", Quantity: -2, UserID: "u"},
			wantErr: domain.ErrInvalidQuantity,
		},
		{
			name:    "guest without contact",
			req:     &dto.CheckoutRequest{EventID: "event-1", Quantity: 1},
			wantErr: domain.ErrMissingGuestContact,
		},
		{
			name:    "guest with name only",
			req:     &dto.CheckoutRequest{EventID: "event-1", Quantity: 1, GuestName: "Ann"},
			wantErr: domain.ErrMissingGuestContact,
		},
	}

	inventoryRepo := repository.NewMemoryInventoryRepository()
	inventoryRepo.PutEvent(testEvent())
	svc := NewCheckoutService(repository.NewMemoryBookingRepository(), inventoryRepo, gateway.NewMockGateway(), nil, fastCheckoutConfig())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.StartCheckout(context.Background(), tt.req)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestStartCheckout_GuestBooking(t *testing.T) {
	bookingRepo := repository.NewMemoryBookingRepository()
	inventoryRepo := repository.NewMemoryInventoryRepository()
	inventoryRepo.PutEvent(testEvent())
	svc := NewCheckoutService(bookingRepo, inventoryRepo, gateway.NewMockGateway(), nil, fastCheckoutConfig())

	resp, err := svc.StartCheckout(context.Background(), &dto.CheckoutRequest{
		EventID:    "event-1",
		Quantity:   1,
		GuestName:  "Ann Example",
		GuestEmail: "ann@example.com",
	})
	if err != nil {
		t.Fatalf("guest checkout failed: %v", err)
	}

	booking, _ := bookingRepo.GetByID(context.Background(), resp.BookingID)
	if !booking.IsGuest() {
		t.Error("expected a guest booking")
	}
}

func TestStartCheckout_InsufficientSpots(t *testing.T) {
	inventoryRepo := repository.NewMemoryInventoryRepository()
	event := testEvent()
	event.SpotsLeft = 1
	inventoryRepo.PutEvent(event)

	svc := NewCheckoutService(repository.NewMemoryBookingRepository(), inventoryRepo, gateway.NewMockGateway(), nil, fastCheckoutConfig())

	_, err := svc.StartCheckout(context.Background(), &dto.CheckoutRequest{
		EventID:  "event-1",
		Quantity: 2,
		UserID:   "user-1",
	})
	if !errors.Is(err, domain.ErrCapacityExceeded) {
		t.Errorf("expected ErrCapacityExceeded, got %v", err)
	}
}

func TestStartCheckout_TransientFailureRetries(t *testing.T) {
	bookingRepo := repository.NewMemoryBookingRepository()
	inventoryRepo := repository.NewMemoryInventoryRepository()
	inventoryRepo.PutEvent(testEvent())
	gw := gateway.NewMockGateway()
	gw.FailSessionsBefore = 2 // first two attempts fail, third succeeds

	svc := NewCheckoutService(bookingRepo, inventoryRepo, gw, nil, fastCheckoutConfig())

	resp, err := svc.StartCheckout(context.Background(), &dto.CheckoutRequest{
		EventID:  "event-1",
		Quantity: 1,
		UserID:   "user-1",
	})
	if err != nil {
		t.Fatalf("expected retry to recover, got: %v", err)
	}
	if gw.SessionCalls() != 3 {
		t.Errorf("expected 3 gateway calls, got %d", gw.SessionCalls())
	}
	if resp.CheckoutURL == "" {
		t.Error("expected a checkout URL after retries")
	}
}

func TestStartCheckout_RetriesExhausted(t *testing.T) {
	bookingRepo := repository.NewMemoryBookingRepository()
	inventoryRepo := repository.NewMemoryInventoryRepository()
	inventoryRepo.PutEvent(testEvent())
	gw := gateway.NewMockGateway()
	gw.FailSessionsBefore = 100

	svc := NewCheckoutService(bookingRepo, inventoryRepo, gw, nil, fastCheckoutConfig())

	_, err := svc.StartCheckout(context.Background(), &dto.CheckoutRequest{
		EventID:  "event-1",
		Quantity: 1,
		UserID:   "user-1",
	})
	if !errors.Is(err, domain.ErrCheckoutInitiationFailed) {
		t.Fatalf("expected ErrCheckoutInitiationFailed, got %v", err)
	}
	if gw.SessionCalls() != 3 {
		t.Errorf("expected exactly 3 attempts, got %d", gw.SessionCalls())
	}

	// The pending booking survives for a manual retry
	ref, err := bookingRepo.GetByReference(context.Background(), findOnlyBookingReference(t, bookingRepo))
	if err != nil {
		t.Fatalf("pending booking should survive: %v", err)
	}
	if !ref.IsPending() {
		t.Errorf("expected pending booking after exhaustion, got %s", ref.Status)
	}
}

func TestStartCheckout_PermanentFailureNoRetry(t *testing.T) {
	bookingRepo := repository.NewMemoryBookingRepository()
	inventoryRepo := repository.NewMemoryInventoryRepository()
	inventoryRepo.PutEvent(testEvent())

	calls := 0
	gw := &MockPaymentGateway{
		CreateCheckoutSessionFunc: func(ctx context.Context, req *gateway.CheckoutSessionRequest) (*gateway.CheckoutSessionResponse, error) {
			calls++
			return nil, fmt.Errorf("card declined") // not transient
		},
	}

	svc := NewCheckoutService(bookingRepo, inventoryRepo, gw, nil, fastCheckoutConfig())

	_, err := svc.StartCheckout(context.Background(), &dto.CheckoutRequest{
		EventID:  "event-1",
		Quantity: 1,
		UserID:   "user-1",
	})
	if !errors.Is(err, domain.ErrCheckoutInitiationFailed) {
		t.Fatalf("expected ErrCheckoutInitiationFailed, got %v", err)
	}
	if calls != 1 {
		t.Errorf("permanent failure must not retry, got %d calls", calls)
	}
}

func TestRetryCheckout(t *testing.T) {
	bookingRepo := repository.NewMemoryBookingRepository()
	inventoryRepo := repository.NewMemoryInventoryRepository()
	inventoryRepo.PutEvent(testEvent())
	gw := gateway.NewMockGateway()
	gw.FailSessionsBefore = 100 // initial session creation fails

	svc := NewCheckoutService(bookingRepo, inventoryRepo, gw, nil, fastCheckoutConfig())

	_, err := svc.StartCheckout(context.Background(), &dto.CheckoutRequest{
		EventID:  "event-1",
		Quantity: 1,
		UserID:   "user-1",
	})
	if !errors.Is(err, domain.ErrCheckoutInitiationFailed) {
		t.Fatalf("expected initiation failure, got %v", err)
	}

	booking, err := bookingRepo.GetByReference(context.Background(), findOnlyBookingReference(t, bookingRepo))
	if err != nil {
		t.Fatalf("pending booking missing: %v", err)
	}

	// Processor recovered
	gw.FailSessionsBefore = 0

	resp, err := svc.RetryCheckout(context.Background(), booking.ID)
	if err != nil {
		t.Fatalf("RetryCheckout failed: %v", err)
	}
	if resp.CheckoutURL == "" {
		t.Error("expected a checkout URL from retry")
	}
	if resp.BookingID != booking.ID {
		t.Error("retry must reuse the same booking")
	}
}

func TestRetryCheckout_NotPending(t *testing.T) {
	bookingRepo := repository.NewMemoryBookingRepository()
	inventoryRepo := repository.NewMemoryInventoryRepository()
	inventoryRepo.PutEvent(testEvent())

	booking := &domain.Booking{
		ID:               "booking-1",
		EventID:          "event-1",
		Quantity:         1,
		Status:           domain.BookingStatusConfirmed,
		PaymentStatus:    domain.PaymentStatusPaid,
		BookingReference: "BK-confirmed",
	}
	if err := bookingRepo.Create(context.Background(), booking); err != nil {
		t.Fatal(err)
	}

	svc := NewCheckoutService(bookingRepo, inventoryRepo, gateway.NewMockGateway(), nil, fastCheckoutConfig())

	_, err := svc.RetryCheckout(context.Background(), "booking-1")
	if !errors.Is(err, domain.ErrStaleState) {
		t.Errorf("expected ErrStaleState for non-pending booking, got %v", err)
	}
}

// findOnlyBookingReference returns the reference of the single booking in
// the repository
func findOnlyBookingReference(t *testing.T, repo *repository.MemoryBookingRepository) string {
	t.Helper()
	all := repo.All()
	if len(all) != 1 {
		t.Fatalf("expected exactly one booking in repository, got %d", len(all))
	}
	return all[0].BookingReference
}
