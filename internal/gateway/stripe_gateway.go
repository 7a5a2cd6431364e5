package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/refund"
)

// StripeGateway implements PaymentGateway using Stripe Checkout
type StripeGateway struct {
	config *StripeGatewayConfig
}

// StripeGatewayConfig holds configuration for the Stripe gateway
type StripeGatewayConfig struct {
	SecretKey     string
	WebhookSecret string
	SuccessURL    string
	CancelURL     string
}

// NewStripeGateway creates a new Stripe gateway
func NewStripeGateway(config *StripeGatewayConfig) (*StripeGateway, error) {
	if config == nil {
		return nil, fmt.Errorf("stripe config is required")
	}
	if config.SecretKey == "" {
		return nil, fmt.Errorf("stripe secret key is required")
	}

	// Set Stripe API key globally
	stripe.Key = config.SecretKey

	return &StripeGateway{
		config: config,
	}, nil
}

// CreateCheckoutSession creates a hosted Stripe Checkout session for a booking
func (g *StripeGateway) CreateCheckoutSession(ctx context.Context, req *CheckoutSessionRequest) (*CheckoutSessionResponse, error) {
	if req == nil {
		return nil, fmt.Errorf("checkout session request is required")
	}

	// Stripe expects the smallest currency unit
	unitAmount := int64(req.Amount * 100 / float64(req.Quantity))

	successURL := req.SuccessURL
	if successURL == "" {
		successURL = g.config.SuccessURL
	}
	cancelURL := req.CancelURL
	if cancelURL == "" {
		cancelURL = g.config.CancelURL
	}

	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(successURL),
		CancelURL:  stripe.String(cancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(req.Currency),
					UnitAmount: stripe.Int64(unitAmount),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(req.Description),
					},
				},
				Quantity: stripe.Int64(int64(req.Quantity)),
			},
		},
		Metadata: map[string]string{
			"booking_id":        req.BookingID,
			"booking_reference": req.Reference,
		},
	}
	for k, v := range req.Metadata {
		params.Metadata[k] = v
	}
	params.Context = ctx

	sess, err := session.New(params)
	if err != nil {
		return nil, classifyStripeError(err, "failed to create checkout session")
	}

	return &CheckoutSessionResponse{
		SessionID: sess.ID,
		URL:       sess.URL,
	}, nil
}

// Refund reverses a captured payment through Stripe
func (g *StripeGateway) Refund(ctx context.Context, req *RefundRequest) (*RefundResponse, error) {
	if req == nil {
		return nil, fmt.Errorf("refund request is required")
	}
	if req.PaymentReference == "" {
		return nil, fmt.Errorf("payment reference is required")
	}

	params := refundParams(req)
	params.Context = ctx

	ref, err := refund.New(params)
	if err != nil {
		return nil, classifyStripeError(err, "failed to create refund")
	}

	return &RefundResponse{
		RefundID: ref.ID,
		Status:   string(ref.Status),
	}, nil
}

// refundParams builds the Stripe refund parameters. Stripe only accepts
// its own reason enum (duplicate, fraudulent, requested_by_customer), so
// the caller's free-text reason travels as metadata instead.
func refundParams(req *RefundRequest) *stripe.RefundParams {
	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(req.PaymentReference),
		Amount:        stripe.Int64(int64(req.Amount * 100)),
	}
	if req.Reason != "" {
		params.AddMetadata("reason", req.Reason)
	}
	return params
}

// Name returns the gateway name
func (g *StripeGateway) Name() string {
	return "stripe"
}

// classifyStripeError tags processor 5xx and connection failures as
// transient so the caller's retry policy can distinguish them from hard
// rejections (invalid request, declined refund).
func classifyStripeError(err error, msg string) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		if stripeErr.HTTPStatusCode >= 500 {
			return fmt.Errorf("%s: %w: %s", msg, ErrTransient, stripeErr.Msg)
		}
		return fmt.Errorf("%s: %s", msg, stripeErr.Msg)
	}
	// Non-API errors are connection-level problems
	return fmt.Errorf("%s: %w: %v", msg, ErrTransient, err)
}

// Ensure StripeGateway implements PaymentGateway
var _ PaymentGateway = (*StripeGateway)(nil)
