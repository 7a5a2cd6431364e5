package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lithammer/shortuuid/v3"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/eventspark/backend-booking/internal/domain"
	"github.com/eventspark/backend-booking/internal/dto"
	"github.com/eventspark/backend-booking/internal/gateway"
	"github.com/eventspark/backend-booking/internal/metrics"
	"github.com/eventspark/backend-booking/internal/repository"
	"github.com/eventspark/backend-booking/pkg/logger"
	"github.com/eventspark/backend-booking/pkg/retry"
	"github.com/eventspark/backend-booking/pkg/telemetry"
)

// CheckoutService defines the checkout initiation business logic
type CheckoutService interface {
	// StartCheckout records a pending booking and opens a hosted payment
	// session for it
	StartCheckout(ctx context.Context, req *dto.CheckoutRequest) (*dto.CheckoutResponse, error)

	// RetryCheckout opens a fresh payment session for a pending booking
	// whose previous session could not be created or was abandoned
	RetryCheckout(ctx context.Context, bookingID string) (*dto.CheckoutResponse, error)
}

// checkoutService implements CheckoutService
type checkoutService struct {
	bookingRepo     repository.BookingRepository
	inventoryRepo   repository.InventoryRepository
	gateway         gateway.PaymentGateway
	notifier        Notifier
	retrier         *retry.Retrier
	successURL      string
	cancelURL       string
	defaultCurrency string
}

// CheckoutServiceConfig contains configuration for the checkout service
type CheckoutServiceConfig struct {
	// MaxAttempts is the total number of session creation attempts
	MaxAttempts int
	// Backoff is the wait before the first retry; doubles per retry
	Backoff         time.Duration
	SuccessURL      string
	CancelURL       string
	DefaultCurrency string
}

// NewCheckoutService creates a new checkout service
func NewCheckoutService(
	bookingRepo repository.BookingRepository,
	inventoryRepo repository.InventoryRepository,
	paymentGateway gateway.PaymentGateway,
	notifier Notifier,
	cfg *CheckoutServiceConfig,
) CheckoutService {
	maxAttempts := 3
	backoff := time.Second
	currency := "USD"
	var successURL, cancelURL string
	if cfg != nil {
		if cfg.MaxAttempts > 0 {
			maxAttempts = cfg.MaxAttempts
		}
		if cfg.Backoff > 0 {
			backoff = cfg.Backoff
		}
		if cfg.DefaultCurrency != "" {
			currency = cfg.DefaultCurrency
		}
		successURL = cfg.SuccessURL
		cancelURL = cfg.CancelURL
	}
	if notifier == nil {
		notifier = NewNoOpNotifier()
	}
	return &checkoutService{
		bookingRepo:   bookingRepo,
		inventoryRepo: inventoryRepo,
		gateway:       paymentGateway,
		notifier:      notifier,
		retrier: retry.New(&retry.Config{
			MaxRetries:      maxAttempts - 1,
			InitialInterval: backoff,
			Multiplier:      2.0,
			JitterFactor:    0,
		}),
		successURL:      successURL,
		cancelURL:       cancelURL,
		defaultCurrency: currency,
	}
}

// StartCheckout records a pending booking and opens a payment session
func (s *checkoutService) StartCheckout(ctx context.Context, req *dto.CheckoutRequest) (*dto.CheckoutResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.checkout.start")
	defer span.End()

	if err := validateCheckoutRequest(req); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(
		attribute.String("event_id", req.EventID),
		attribute.Int("quantity", req.Quantity),
	)

	event, err := s.inventoryRepo.GetEvent(ctx, req.EventID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "event lookup failed")
		return nil, err
	}

	// Availability check is advisory only. The ledger is not touched until
	// payment is confirmed, so two concurrent checkouts may both pass here;
	// the loser fails at confirmation time.
	if event.SpotsLeft < req.Quantity {
		span.SetStatus(codes.Error, "not enough spots left")
		return nil, domain.ErrCapacityExceeded
	}

	currency := event.Currency
	if currency == "" {
		currency = s.defaultCurrency
	}

	now := time.Now().UTC()
	booking := &domain.Booking{
		ID:               uuid.New().String(),
		EventID:          event.ID,
		UserID:           req.UserID,
		GuestName:        req.GuestName,
		GuestEmail:       req.GuestEmail,
		GuestPhone:       req.GuestPhone,
		Quantity:         req.Quantity,
		UnitPrice:        event.UnitPrice,
		TotalAmount:      event.UnitPrice * float64(req.Quantity),
		Currency:         currency,
		Status:           domain.BookingStatusPending,
		PaymentStatus:    domain.PaymentStatusPending,
		BookingReference: newBookingReference(),
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := s.bookingRepo.Create(ctx, booking); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "booking create failed")
		return nil, fmt.Errorf("failed to create booking: %w", err)
	}

	session, err := s.openSession(ctx, booking, event)
	if err != nil {
		metrics.RecordCheckoutFailed(ctx, event.ID, "session_creation")
		span.RecordError(err)
		span.SetStatus(codes.Error, "checkout session failed")
		// The pending booking is kept; the caller can retry the session
		return nil, err
	}

	metrics.RecordCheckoutStarted(ctx, event.ID, booking.Quantity, time.Since(now).Seconds())
	s.notifier.NotifyCheckoutStarted(ctx, booking)

	return &dto.CheckoutResponse{
		BookingID:        booking.ID,
		BookingReference: booking.BookingReference,
		CheckoutURL:      session.URL,
		TotalAmount:      booking.TotalAmount,
		Currency:         booking.Currency,
	}, nil
}

// RetryCheckout opens a superseding payment session for a pending booking
func (s *checkoutService) RetryCheckout(ctx context.Context, bookingID string) (*dto.CheckoutResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.checkout.retry")
	defer span.End()

	if bookingID == "" {
		return nil, domain.ErrInvalidBookingID
	}
	span.SetAttributes(attribute.String("booking_id", bookingID))

	booking, err := s.bookingRepo.GetByID(ctx, bookingID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "booking lookup failed")
		return nil, err
	}

	// Only pending bookings can take a new session
	if !booking.IsPending() {
		span.SetStatus(codes.Error, "booking not pending")
		return nil, domain.ErrStaleState
	}

	event, err := s.inventoryRepo.GetEvent(ctx, booking.EventID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	session, err := s.openSession(ctx, booking, event)
	if err != nil {
		metrics.RecordCheckoutFailed(ctx, booking.EventID, "session_retry")
		span.RecordError(err)
		span.SetStatus(codes.Error, "checkout session failed")
		return nil, err
	}

	return &dto.CheckoutResponse{
		BookingID:        booking.ID,
		BookingReference: booking.BookingReference,
		CheckoutURL:      session.URL,
		TotalAmount:      booking.TotalAmount,
		Currency:         booking.Currency,
	}, nil
}

// openSession creates a processor checkout session under the retry policy
// and persists its id on the booking
func (s *checkoutService) openSession(ctx context.Context, booking *domain.Booking, event *domain.Event) (*gateway.CheckoutSessionResponse, error) {
	var session *gateway.CheckoutSessionResponse

	result := s.retrier.DoWithCallback(ctx, func(ctx context.Context) error {
		start := time.Now()
		resp, err := s.gateway.CreateCheckoutSession(ctx, &gateway.CheckoutSessionRequest{
			BookingID:   booking.ID,
			Reference:   booking.BookingReference,
			Description: fmt.Sprintf("%s x%d", event.Name, booking.Quantity),
			Amount:      booking.TotalAmount,
			Currency:    booking.Currency,
			Quantity:    booking.Quantity,
			SuccessURL:  s.successURL,
			CancelURL:   s.cancelURL,
			Metadata: map[string]string{
				"booking_id":        booking.ID,
				"booking_reference": booking.BookingReference,
			},
		})
		metrics.RecordGatewayCall(ctx, "create_checkout_session", time.Since(start).Seconds())
		if err != nil {
			if !gateway.IsTransient(err) {
				return retry.Permanent(err)
			}
			return err
		}
		session = resp
		return nil
	}, func(attempt int, err error, wait time.Duration) {
		logger.Get().Warn("checkout session attempt failed, retrying",
			zap.String("booking_id", booking.ID),
			zap.Int("retry", attempt),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
	})

	if result.Err != nil {
		logger.Get().Error("checkout session creation exhausted",
			zap.String("booking_id", booking.ID),
			zap.Int("attempts", result.Attempts),
			zap.Error(result.LastError),
		)
		return nil, fmt.Errorf("%w: %v", domain.ErrCheckoutInitiationFailed, result.LastError)
	}

	if err := s.bookingRepo.SetCheckoutSession(ctx, booking.ID, session.SessionID); err != nil {
		return nil, fmt.Errorf("failed to persist checkout session: %w", err)
	}
	booking.CheckoutSession = session.SessionID

	return session, nil
}

func validateCheckoutRequest(req *dto.CheckoutRequest) error {
	if req == nil || req.EventID == "" {
		return domain.ErrInvalidEventID
	}
	if req.Quantity < 1 {
		return domain.ErrInvalidQuantity
	}
	// Guest bookings need a contact; account bookings carry it on the user
	if req.UserID == "" && (req.GuestName == "" || req.GuestEmail == "") {
		return domain.ErrMissingGuestContact
	}
	return nil
}

// newBookingReference generates a short human-facing booking reference
func newBookingReference() string {
	return "BK-" + shortuuid.New()
}

var _ CheckoutService = (*checkoutService)(nil)
