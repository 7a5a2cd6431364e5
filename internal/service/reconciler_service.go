package service

import (
	"context"
	"errors"
	"fmt"
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

// ReconcilerService applies payment outcomes to bookings. Signals arrive
// from processor webhooks and from the manual confirmation page, possibly
// duplicated or out of order; every path here is safe to replay.
type ReconcilerService interface {
	// Confirm settles a successful payment: takes the spots from the
	// ledger exactly once and moves the booking to confirmed/paid.
	// Replays and races resolve to success with no extra side effects.
	Confirm(ctx context.Context, bookingID string, paymentReference string) (*domain.Booking, error)

	// Abort settles a failed or expired payment: moves a pending booking
	// to cancelled/failed. Already-cancelled bookings are a no-op.
	Abort(ctx context.Context, bookingID string, reason string) (*domain.Booking, error)
}

// reconcilerService implements ReconcilerService
type reconcilerService struct {
	bookingRepo   repository.BookingRepository
	inventoryRepo repository.InventoryRepository
	gateway       gateway.PaymentGateway
	notifier      Notifier
}

// NewReconcilerService creates a new payment outcome reconciler
func NewReconcilerService(
	bookingRepo repository.BookingRepository,
	inventoryRepo repository.InventoryRepository,
	paymentGateway gateway.PaymentGateway,
	notifier Notifier,
) ReconcilerService {
	if notifier == nil {
		notifier = NewNoOpNotifier()
	}
	return &reconcilerService{
		bookingRepo:   bookingRepo,
		inventoryRepo: inventoryRepo,
		gateway:       paymentGateway,
		notifier:      notifier,
	}
}

// Confirm settles a successful payment for a booking
func (s *reconcilerService) Confirm(ctx context.Context, bookingID string, paymentReference string) (*domain.Booking, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.reconciler.confirm")
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

	// Duplicate delivery: the booking already left pending. Whatever state
	// it is in now is the settled outcome; report success without touching
	// the ledger again.
	if !booking.IsPending() {
		span.SetAttributes(attribute.String("status", booking.Status.String()))
		return booking, nil
	}

	// Ledger first, transition second. The spots_decremented flag recorded
	// in the same transition is what makes the decrement exactly-once.
	decrementedHere := false
	if !booking.SpotsDecremented {
		if _, err := s.inventoryRepo.AdjustSpots(ctx, booking.EventID, -booking.Quantity); err != nil {
			if errors.Is(err, domain.ErrCapacityExceeded) {
				// Payment captured but the spots are gone. The booking
				// cannot be honored: cancel and refund.
				span.SetAttributes(attribute.Bool("capacity_exhausted", true))
				return s.cancelUnhonorable(ctx, booking, paymentReference)
			}
			span.RecordError(err)
			span.SetStatus(codes.Error, "inventory decrement failed")
			return nil, err
		}
		decrementedHere = true
		metrics.RecordSpotsDecremented(ctx, booking.EventID, booking.Quantity)
	}

	now := time.Now().UTC()
	updated, err := s.bookingRepo.Transition(ctx, booking.ID, domain.BookingStatusPending, &domain.StatusChange{
		Status:           domain.BookingStatusConfirmed,
		PaymentStatus:    domain.PaymentStatusPaid,
		SpotsDecremented: domain.Bool(true),
		PaymentReference: paymentReference,
		ConfirmedAt:      &now,
	})
	if err != nil {
		if errors.Is(err, domain.ErrStaleState) {
			// A concurrent confirmation won the transition and owns the
			// recorded decrement. Give back the one taken here so the net
			// effect stays exactly-once, then report success.
			if decrementedHere {
				s.restoreSpots(ctx, booking.EventID, booking.Quantity, booking.ID)
			}
			settled, getErr := s.bookingRepo.GetByID(ctx, booking.ID)
			if getErr != nil {
				return nil, getErr
			}
			span.SetAttributes(attribute.Bool("lost_confirm_race", true))
			return settled, nil
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "confirm transition failed")
		return nil, err
	}

	metrics.RecordConfirmation(ctx, updated.EventID)
	s.notifier.NotifyConfirmed(ctx, updated)

	logger.Get().Info("booking confirmed",
		zap.String("booking_id", updated.ID),
		zap.String("booking_reference", updated.BookingReference),
		zap.String("event_id", updated.EventID),
	)

	return updated, nil
}

// Abort settles a failed or expired payment for a booking
func (s *reconcilerService) Abort(ctx context.Context, bookingID string, reason string) (*domain.Booking, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.reconciler.abort")
	defer span.End()

	if bookingID == "" {
		return nil, domain.ErrInvalidBookingID
	}
	span.SetAttributes(
		attribute.String("booking_id", bookingID),
		attribute.String("reason", reason),
	)

	booking, err := s.bookingRepo.GetByID(ctx, bookingID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "booking lookup failed")
		return nil, err
	}

	// Duplicate failure signal after the booking already cancelled
	if booking.IsCancelled() {
		return booking, nil
	}

	// A failed-payment signal for a confirmed booking contradicts an
	// earlier success signal. Do not unwind the confirmation; flag it.
	if booking.IsConfirmed() {
		logger.Get().Warn("payment failure signal for confirmed booking",
			zap.String("booking_id", booking.ID),
			zap.String("reason", reason),
		)
		span.SetStatus(codes.Error, "failure signal for confirmed booking")
		return nil, domain.ErrStaleState
	}

	now := time.Now().UTC()
	updated, err := s.bookingRepo.Transition(ctx, booking.ID, domain.BookingStatusPending, &domain.StatusChange{
		Status:        domain.BookingStatusCancelled,
		PaymentStatus: domain.PaymentStatusFailed,
		CancelledAt:   &now,
	})
	if err != nil {
		if errors.Is(err, domain.ErrStaleState) {
			// Lost a race against a concurrent settlement; re-read and let
			// the settled state speak for itself
			settled, getErr := s.bookingRepo.GetByID(ctx, booking.ID)
			if getErr != nil {
				return nil, getErr
			}
			if settled.IsCancelled() {
				return settled, nil
			}
			return nil, domain.ErrStaleState
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "abort transition failed")
		return nil, err
	}

	metrics.RecordAbort(ctx, updated.EventID, reason)
	s.notifier.NotifyAborted(ctx, updated)

	logger.Get().Info("booking aborted",
		zap.String("booking_id", updated.ID),
		zap.String("reason", reason),
	)

	return updated, nil
}

// cancelUnhonorable cancels a paid booking whose spots were gone by the
// time its confirmation arrived, then refunds the captured payment. The
// guarded transition runs first and only its winner touches the money:
// a concurrent confirmation that settles the booking in the meantime
// must never end up both confirmed and refunded. The surfaced error
// stays ErrCapacityExceeded so callers see why the booking did not
// confirm.
func (s *reconcilerService) cancelUnhonorable(ctx context.Context, booking *domain.Booking, paymentReference string) (*domain.Booking, error) {
	now := time.Now().UTC()
	updated, err := s.bookingRepo.Transition(ctx, booking.ID, domain.BookingStatusPending, &domain.StatusChange{
		Status:           domain.BookingStatusCancelled,
		PaymentStatus:    domain.PaymentStatusRefundPending,
		PaymentReference: paymentReference,
		CancelledAt:      &now,
	})
	if err != nil {
		if errors.Is(err, domain.ErrStaleState) {
			settled, getErr := s.bookingRepo.GetByID(ctx, booking.ID)
			if getErr != nil {
				return nil, getErr
			}
			// A concurrent confirmation won the transition and holds the
			// spots this handler could not get. The booking is honored
			// after all; the money stays where it is.
			if settled.IsConfirmed() {
				logger.Get().Info("capacity loss superseded by concurrent confirmation",
					zap.String("booking_id", settled.ID),
				)
				return settled, nil
			}
			// Another handler already cancelled it and owns the refund
			return nil, domain.ErrCapacityExceeded
		}
		return nil, fmt.Errorf("failed to cancel unhonorable booking %s: %w", booking.ID, err)
	}

	paymentStatus := domain.PaymentStatusRefunded
	start := time.Now()
	_, err = s.gateway.Refund(ctx, &gateway.RefundRequest{
		PaymentReference: paymentReference,
		Amount:           booking.TotalAmount,
		Currency:         booking.Currency,
		Reason:           "capacity_exhausted",
	})
	metrics.RecordGatewayCall(ctx, "refund", time.Since(start).Seconds())
	if err != nil {
		// Refund failure must not unwind the cancellation; the booking
		// stays refund_pending for manual follow-up
		paymentStatus = domain.PaymentStatusRefundPending
		logger.Get().Error("refund failed for unhonorable booking, marked refund_pending",
			zap.String("booking_id", booking.ID),
			zap.Error(err),
		)
	} else {
		// Bookkeeping only; the refund has already gone through
		settled, terr := s.bookingRepo.Transition(ctx, updated.ID, domain.BookingStatusCancelled, &domain.StatusChange{
			Status:        domain.BookingStatusCancelled,
			PaymentStatus: domain.PaymentStatusRefunded,
		})
		if terr != nil {
			logger.Get().Error("failed to record refund on cancelled booking",
				zap.String("booking_id", updated.ID),
				zap.Error(terr),
			)
		} else {
			updated = settled
		}
	}

	metrics.RecordRefund(ctx, booking.EventID, paymentStatus == domain.PaymentStatusRefundPending)
	if paymentStatus == domain.PaymentStatusRefundPending {
		s.notifier.NotifyRefundPending(ctx, updated)
	} else {
		s.notifier.NotifyCancelled(ctx, updated)
	}

	return nil, domain.ErrCapacityExceeded
}

// restoreSpots returns a decrement to the ledger after losing a
// confirmation race
func (s *reconcilerService) restoreSpots(ctx context.Context, eventID string, quantity int, bookingID string) {
	if _, err := s.inventoryRepo.AdjustSpots(ctx, eventID, quantity); err != nil {
		// Restore failing leaves the ledger short; loud log for operators
		logger.Get().Error("failed to restore spots after lost confirm race",
			zap.String("event_id", eventID),
			zap.String("booking_id", bookingID),
			zap.Int("quantity", quantity),
			zap.Error(err),
		)
		metrics.RecordError(ctx, "restore_failed", "reconciler.confirm")
		return
	}
	metrics.RecordSpotsRestored(ctx, eventID, quantity)
}

var _ ReconcilerService = (*reconcilerService)(nil)
