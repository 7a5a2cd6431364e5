package service

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/eventspark/backend-booking/internal/domain"
	"github.com/eventspark/backend-booking/internal/gateway"
	"github.com/eventspark/backend-booking/internal/metrics"
	"github.com/eventspark/backend-booking/internal/repository"
	"github.com/eventspark/backend-booking/pkg/logger"
	"github.com/eventspark/backend-booking/pkg/telemetry"
)

// RefundDisposition reports what happened to the money on cancellation
type RefundDisposition string

const (
	RefundNone    RefundDisposition = "none"
	RefundIssued  RefundDisposition = "refunded"
	RefundPending RefundDisposition = "refund_pending"
)

// CancelResult is the outcome of a cancellation
type CancelResult struct {
	Booking *domain.Booking
	Refund  RefundDisposition
}

// CancellationService cancels bookings and compensates their side effects:
// refund of a captured payment and restoration of taken inventory.
type CancellationService interface {
	// Cancel cancels a booking. User-initiated cancellations are subject
	// to the cancellation deadline; host and admin ones are not.
	Cancel(ctx context.Context, bookingID string, initiator domain.CancelInitiator, reason string) (*CancelResult, error)
}

// cancellationService implements CancellationService
type cancellationService struct {
	bookingRepo   repository.BookingRepository
	inventoryRepo repository.InventoryRepository
	gateway       gateway.PaymentGateway
	notifier      Notifier
	deadline      time.Duration
	now           func() time.Time
}

// CancellationServiceConfig contains configuration for the cancellation service
type CancellationServiceConfig struct {
	// Deadline is how long before event start user cancellations close
	Deadline time.Duration
	// Now overrides the clock, for tests
	Now func() time.Time
}

// NewCancellationService creates a new cancellation service
func NewCancellationService(
	bookingRepo repository.BookingRepository,
	inventoryRepo repository.InventoryRepository,
	paymentGateway gateway.PaymentGateway,
	notifier Notifier,
	cfg *CancellationServiceConfig,
) CancellationService {
	deadline := 48 * time.Hour
	now := time.Now
	if cfg != nil {
		if cfg.Deadline > 0 {
			deadline = cfg.Deadline
		}
		if cfg.Now != nil {
			now = cfg.Now
		}
	}
	if notifier == nil {
		notifier = NewNoOpNotifier()
	}
	return &cancellationService{
		bookingRepo:   bookingRepo,
		inventoryRepo: inventoryRepo,
		gateway:       paymentGateway,
		notifier:      notifier,
		deadline:      deadline,
		now:           now,
	}
}

// Cancel cancels a booking and compensates refund and inventory
func (s *cancellationService) Cancel(ctx context.Context, bookingID string, initiator domain.CancelInitiator, reason string) (*CancelResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.cancellation.cancel")
	defer span.End()

	if bookingID == "" {
		return nil, domain.ErrInvalidBookingID
	}
	if initiator == "" {
		initiator = domain.InitiatorUser
	}
	span.SetAttributes(
		attribute.String("booking_id", bookingID),
		attribute.String("initiator", string(initiator)),
	)

	booking, err := s.bookingRepo.GetByID(ctx, bookingID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "booking lookup failed")
		return nil, err
	}

	if booking.IsCancelled() {
		span.SetStatus(codes.Error, "already cancelled")
		return nil, domain.ErrNotCancellable
	}

	// The deadline binds only user-initiated cancellations; a host pulling
	// an event or an operator intervening may always cancel
	if initiator == domain.InitiatorUser {
		event, err := s.inventoryRepo.GetEvent(ctx, booking.EventID)
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
		if event.HoursUntilStart(s.now()) < s.deadline.Hours() {
			span.SetStatus(codes.Error, "past cancellation deadline")
			return nil, domain.ErrNotCancellable
		}
	}

	// Refund leg runs before the transition and only for captured payments.
	// A refund call failure degrades to refund_pending; it never blocks
	// the cancellation itself.
	disposition := RefundNone
	paymentStatus := booking.PaymentStatus
	if booking.PaymentStatus == domain.PaymentStatusPaid {
		disposition = RefundIssued
		paymentStatus = domain.PaymentStatusRefunded

		start := time.Now()
		_, err := s.gateway.Refund(ctx, &gateway.RefundRequest{
			PaymentReference: booking.PaymentReference,
			Amount:           booking.TotalAmount,
			Currency:         booking.Currency,
			Reason:           reason,
		})
		metrics.RecordGatewayCall(ctx, "refund", time.Since(start).Seconds())
		if err != nil {
			disposition = RefundPending
			paymentStatus = domain.PaymentStatusRefundPending
			logger.Get().Error("refund failed, cancellation degrades to refund_pending",
				zap.String("booking_id", booking.ID),
				zap.String("payment_reference", booking.PaymentReference),
				zap.Error(err),
			)
		}
	}

	// Guarded on the status read above: a concurrent settlement or a
	// double cancel makes the guard fail, and this cancel loses
	wasDecremented := booking.SpotsDecremented
	now := s.now().UTC()
	updated, err := s.bookingRepo.Transition(ctx, booking.ID, booking.Status, &domain.StatusChange{
		Status:           domain.BookingStatusCancelled,
		PaymentStatus:    paymentStatus,
		SpotsDecremented: domain.Bool(false),
		CancelledAt:      &now,
	})
	if err != nil {
		if errors.Is(err, domain.ErrStaleState) {
			span.SetStatus(codes.Error, "lost cancellation race")
			return nil, domain.ErrStaleState
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "cancel transition failed")
		return nil, err
	}

	// Winning the transition above is what claims the restore: the flag
	// was cleared by this update and only this caller saw it set
	if wasDecremented {
		if _, err := s.inventoryRepo.AdjustSpots(ctx, booking.EventID, booking.Quantity); err != nil {
			logger.Get().Error("failed to restore spots on cancellation",
				zap.String("booking_id", booking.ID),
				zap.String("event_id", booking.EventID),
				zap.Int("quantity", booking.Quantity),
				zap.Error(err),
			)
			metrics.RecordError(ctx, "restore_failed", "cancellation.cancel")
		} else {
			metrics.RecordSpotsRestored(ctx, booking.EventID, booking.Quantity)
		}
	}

	metrics.RecordCancellation(ctx, updated.EventID, string(initiator))
	if disposition == RefundPending {
		metrics.RecordRefund(ctx, updated.EventID, true)
		s.notifier.NotifyRefundPending(ctx, updated)
	} else {
		if disposition == RefundIssued {
			metrics.RecordRefund(ctx, updated.EventID, false)
		}
		s.notifier.NotifyCancelled(ctx, updated)
	}

	logger.Get().Info("booking cancelled",
		zap.String("booking_id", updated.ID),
		zap.String("initiator", string(initiator)),
		zap.String("refund", string(disposition)),
	)

	return &CancelResult{Booking: updated, Refund: disposition}, nil
}

var _ CancellationService = (*cancellationService)(nil)
