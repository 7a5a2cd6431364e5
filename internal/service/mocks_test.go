package service

import (
	"context"
	"sync"

	"github.com/eventspark/backend-booking/internal/domain"
	"github.com/eventspark/backend-booking/internal/gateway"
)

// MockBookingRepository is a mock implementation of BookingRepository
type MockBookingRepository struct {
	CreateFunc             func(ctx context.Context, booking *domain.Booking) error
	GetByIDFunc            func(ctx context.Context, id string) (*domain.Booking, error)
	GetByReferenceFunc     func(ctx context.Context, reference string) (*domain.Booking, error)
	TransitionFunc         func(ctx context.Context, id string, expected domain.BookingStatus, change *domain.StatusChange) (*domain.Booking, error)
	SetCheckoutSessionFunc func(ctx context.Context, id, sessionID string) error
}

func (m *MockBookingRepository) Create(ctx context.Context, booking *domain.Booking) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, booking)
	}
	return nil
}

func (m *MockBookingRepository) GetByID(ctx context.Context, id string) (*domain.Booking, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, domain.ErrBookingNotFound
}

func (m *MockBookingRepository) GetByReference(ctx context.Context, reference string) (*domain.Booking, error) {
	if m.GetByReferenceFunc != nil {
		return m.GetByReferenceFunc(ctx, reference)
	}
	return nil, domain.ErrBookingNotFound
}

func (m *MockBookingRepository) Transition(ctx context.Context, id string, expected domain.BookingStatus, change *domain.StatusChange) (*domain.Booking, error) {
	if m.TransitionFunc != nil {
		return m.TransitionFunc(ctx, id, expected, change)
	}
	return nil, domain.ErrBookingNotFound
}

func (m *MockBookingRepository) SetCheckoutSession(ctx context.Context, id, sessionID string) error {
	if m.SetCheckoutSessionFunc != nil {
		return m.SetCheckoutSessionFunc(ctx, id, sessionID)
	}
	return nil
}

// MockInventoryRepository is a mock implementation of InventoryRepository
type MockInventoryRepository struct {
	AdjustSpotsFunc func(ctx context.Context, eventID string, delta int) (int, error)
	GetEventFunc    func(ctx context.Context, eventID string) (*domain.Event, error)
}

func (m *MockInventoryRepository) AdjustSpots(ctx context.Context, eventID string, delta int) (int, error) {
	if m.AdjustSpotsFunc != nil {
		return m.AdjustSpotsFunc(ctx, eventID, delta)
	}
	return 0, nil
}

func (m *MockInventoryRepository) GetEvent(ctx context.Context, eventID string) (*domain.Event, error) {
	if m.GetEventFunc != nil {
		return m.GetEventFunc(ctx, eventID)
	}
	return nil, domain.ErrEventNotFound
}

// MockPaymentGateway is a function-field mock of PaymentGateway, for
// scripting outcomes the scriptable mock gateway cannot express
type MockPaymentGateway struct {
	CreateCheckoutSessionFunc func(ctx context.Context, req *gateway.CheckoutSessionRequest) (*gateway.CheckoutSessionResponse, error)
	RefundFunc                func(ctx context.Context, req *gateway.RefundRequest) (*gateway.RefundResponse, error)
}

func (m *MockPaymentGateway) CreateCheckoutSession(ctx context.Context, req *gateway.CheckoutSessionRequest) (*gateway.CheckoutSessionResponse, error) {
	if m.CreateCheckoutSessionFunc != nil {
		return m.CreateCheckoutSessionFunc(ctx, req)
	}
	return &gateway.CheckoutSessionResponse{SessionID: "cs_test", URL: "https://example.test/cs_test"}, nil
}

func (m *MockPaymentGateway) Refund(ctx context.Context, req *gateway.RefundRequest) (*gateway.RefundResponse, error) {
	if m.RefundFunc != nil {
		return m.RefundFunc(ctx, req)
	}
	return &gateway.RefundResponse{RefundID: "re_test", Status: "succeeded"}, nil
}

func (m *MockPaymentGateway) Name() string {
	return "mock-func"
}

// recordingNotifier counts notifications per type
type recordingNotifier struct {
	mu              sync.Mutex
	checkoutStarted int
	confirmed       int
	aborted         int
	cancelled       int
	refundPending   int
}

func (n *recordingNotifier) NotifyCheckoutStarted(ctx context.Context, booking *domain.Booking) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.checkoutStarted++
}

func (n *recordingNotifier) NotifyConfirmed(ctx context.Context, booking *domain.Booking) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.confirmed++
}

func (n *recordingNotifier) NotifyAborted(ctx context.Context, booking *domain.Booking) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.aborted++
}

func (n *recordingNotifier) NotifyCancelled(ctx context.Context, booking *domain.Booking) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.cancelled++
}

func (n *recordingNotifier) NotifyRefundPending(ctx context.Context, booking *domain.Booking) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.refundPending++
}

func (n *recordingNotifier) Close() error { return nil }
