package handler

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/eventspark/backend-booking/internal/service"
	"github.com/eventspark/backend-booking/pkg/logger"
	"github.com/eventspark/backend-booking/pkg/telemetry"
)

// WebhookHandler receives payment processor webhooks and routes their
// outcomes into the reconciler. Handlers always acknowledge with 200 once
// the signature checks out; reconciliation failures are logged and left to
// the processor's redelivery.
type WebhookHandler struct {
	reconciler    service.ReconcilerService
	webhookSecret string
}

// NewWebhookHandler creates a new webhook handler
func NewWebhookHandler(reconciler service.ReconcilerService, webhookSecret string) *WebhookHandler {
	return &WebhookHandler{
		reconciler:    reconciler,
		webhookSecret: webhookSecret,
	}
}

// HandleStripeWebhook handles POST /webhooks/stripe
func (h *WebhookHandler) HandleStripeWebhook(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.webhook.stripe")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	log := logger.Get()

	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		log.Error("failed to read webhook body", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
		return
	}

	sigHeader := c.GetHeader("Stripe-Signature")
	if sigHeader == "" {
		log.Warn("missing Stripe-Signature header")
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing Stripe-Signature header"})
		return
	}

	event, err := webhook.ConstructEvent(payload, sigHeader, h.webhookSecret)
	if err != nil {
		log.Error("failed to verify webhook signature", zap.Error(err))
		span.SetStatus(codes.Error, "invalid signature")
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid signature"})
		return
	}

	span.SetAttributes(attribute.String("stripe_event_type", string(event.Type)))
	log.Info("received stripe webhook event",
		zap.String("type", string(event.Type)),
		zap.String("id", event.ID),
	)

	switch event.Type {
	case "checkout.session.completed":
		h.handleSessionCompleted(c, event)
	case "checkout.session.expired":
		h.handleSessionExpired(c, event)
	case "payment_intent.payment_failed":
		h.handlePaymentFailed(c, event)
	default:
		c.JSON(http.StatusOK, gin.H{"received": true, "message": "event type not handled"})
	}
}

// handleSessionCompleted settles a successful hosted checkout
func (h *WebhookHandler) handleSessionCompleted(c *gin.Context, event stripe.Event) {
	log := logger.Get()

	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		log.Error("failed to parse checkout.session.completed", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to parse event data"})
		return
	}

	bookingID := session.Metadata["booking_id"]
	if bookingID == "" {
		log.Warn("checkout session without booking_id metadata", zap.String("session_id", session.ID))
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}

	paymentReference := session.ID
	if session.PaymentIntent != nil && session.PaymentIntent.ID != "" {
		paymentReference = session.PaymentIntent.ID
	}

	if _, err := h.reconciler.Confirm(c.Request.Context(), bookingID, paymentReference); err != nil {
		// Acknowledge anyway; Stripe redelivers on non-2xx and the
		// reconciler is replay-safe, but a hard domain failure (capacity
		// gone) is already settled and must not be redelivered
		log.Error("failed to confirm booking from webhook",
			zap.String("booking_id", bookingID),
			zap.Error(err),
		)
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}

// handleSessionExpired settles an abandoned hosted checkout
func (h *WebhookHandler) handleSessionExpired(c *gin.Context, event stripe.Event) {
	log := logger.Get()

	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		log.Error("failed to parse checkout.session.expired", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to parse event data"})
		return
	}

	bookingID := session.Metadata["booking_id"]
	if bookingID == "" {
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}

	if _, err := h.reconciler.Abort(c.Request.Context(), bookingID, "session_expired"); err != nil {
		log.Error("failed to abort booking from expired session",
			zap.String("booking_id", bookingID),
			zap.Error(err),
		)
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}

// handlePaymentFailed settles a failed payment attempt
func (h *WebhookHandler) handlePaymentFailed(c *gin.Context, event stripe.Event) {
	log := logger.Get()

	var paymentIntent stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &paymentIntent); err != nil {
		log.Error("failed to parse payment_intent.payment_failed", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to parse event data"})
		return
	}

	bookingID := paymentIntent.Metadata["booking_id"]
	if bookingID == "" {
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}

	reason := "payment_failed"
	if paymentIntent.LastPaymentError != nil && paymentIntent.LastPaymentError.Code != "" {
		reason = string(paymentIntent.LastPaymentError.Code)
	}

	if _, err := h.reconciler.Abort(c.Request.Context(), bookingID, reason); err != nil {
		log.Error("failed to abort booking from failed payment",
			zap.String("booking_id", bookingID),
			zap.Error(err),
		)
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}
