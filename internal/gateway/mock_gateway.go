package gateway

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MockGateway implements PaymentGateway for tests and load testing.
// Failures can be scripted per call: FailSessionsBefore / FailRefundsBefore
// make the first N calls fail with a transient error, which is how the
// retry paths are exercised without a network.
type MockGateway struct {
	mu sync.Mutex

	// FailSessionsBefore makes CreateCheckoutSession fail transiently
	// until this many calls have been made
	FailSessionsBefore int

	// FailRefundsBefore makes Refund fail transiently until this many
	// calls have been made
	FailRefundsBefore int

	// RefundsPermanentlyDown makes every Refund call fail
	RefundsPermanentlyDown bool

	// DelayMs is a simulated processing delay in milliseconds
	DelayMs int

	sessionCalls int
	refundCalls  int
	sessions     map[string]*CheckoutSessionRequest
	refunds      map[string]*RefundRequest
}

// NewMockGateway creates a new mock gateway
func NewMockGateway() *MockGateway {
	return &MockGateway{
		sessions: make(map[string]*CheckoutSessionRequest),
		refunds:  make(map[string]*RefundRequest),
	}
}

func (g *MockGateway) delay(ctx context.Context) error {
	if g.DelayMs <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(time.Duration(g.DelayMs) * time.Millisecond):
		return nil
	}
}

// CreateCheckoutSession creates a mock hosted checkout session
func (g *MockGateway) CreateCheckoutSession(ctx context.Context, req *CheckoutSessionRequest) (*CheckoutSessionResponse, error) {
	if req == nil {
		return nil, fmt.Errorf("checkout session request is required")
	}
	if err := g.delay(ctx); err != nil {
		return nil, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	g.sessionCalls++
	if g.sessionCalls <= g.FailSessionsBefore {
		return nil, fmt.Errorf("create session: %w: connection reset", ErrTransient)
	}

	sessionID := fmt.Sprintf("cs_mock_%s", uuid.New().String()[:16])
	g.sessions[sessionID] = req

	return &CheckoutSessionResponse{
		SessionID: sessionID,
		URL:       fmt.Sprintf("https://checkout.stripe.com/c/pay/%s", sessionID),
	}, nil
}

// Refund processes a mock refund
func (g *MockGateway) Refund(ctx context.Context, req *RefundRequest) (*RefundResponse, error) {
	if req == nil {
		return nil, fmt.Errorf("refund request is required")
	}
	if req.PaymentReference == "" {
		return nil, fmt.Errorf("payment reference is required")
	}
	if err := g.delay(ctx); err != nil {
		return nil, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	g.refundCalls++
	if g.RefundsPermanentlyDown || g.refundCalls <= g.FailRefundsBefore {
		return nil, fmt.Errorf("refund: %w: processor unavailable", ErrTransient)
	}

	refundID := fmt.Sprintf("re_mock_%s", uuid.New().String()[:16])
	g.refunds[refundID] = req

	return &RefundResponse{
		RefundID: refundID,
		Status:   "succeeded",
	}, nil
}

// Name returns the gateway name
func (g *MockGateway) Name() string {
	return "mock"
}

// SessionCalls returns how many checkout session calls were made
func (g *MockGateway) SessionCalls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.sessionCalls
}

// RefundCalls returns how many refund calls were made
func (g *MockGateway) RefundCalls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.refundCalls
}

// Ensure MockGateway implements PaymentGateway
var _ PaymentGateway = (*MockGateway)(nil)
