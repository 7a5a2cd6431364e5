package gateway

import (
	"context"
	"errors"
)

// ErrTransient wraps gateway failures that are worth retrying
// (network errors, processor 5xx). Everything else is permanent.
var ErrTransient = errors.New("transient gateway error")

// IsTransient reports whether a gateway error is retryable
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}

// CheckoutSessionRequest describes a hosted checkout session to create
type CheckoutSessionRequest struct {
	BookingID   string
	Reference   string
	Description string
	Amount      float64
	Currency    string
	Quantity    int
	SuccessURL  string
	CancelURL   string
	Metadata    map[string]string
}

// CheckoutSessionResponse is the created hosted checkout session
type CheckoutSessionResponse struct {
	SessionID string
	URL       string
}

// RefundRequest describes a refund against a captured payment
type RefundRequest struct {
	PaymentReference string
	Amount           float64
	Currency         string
	Reason           string
}

// RefundResponse is the processor-side refund record
type RefundResponse struct {
	RefundID string
	Status   string
}

// PaymentGateway defines the payment processor integration.
// CreateCheckoutSession builds a hosted payment page for a booking;
// Refund reverses a captured payment. Neither call touches booking or
// inventory state; that is the reconciler's and compensator's job.
type PaymentGateway interface {
	CreateCheckoutSession(ctx context.Context, req *CheckoutSessionRequest) (*CheckoutSessionResponse, error)
	Refund(ctx context.Context, req *RefundRequest) (*RefundResponse, error)

	// Name returns the gateway name
	Name() string
}
