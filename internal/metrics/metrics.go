package metrics

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"

	"github.com/eventspark/backend-booking/pkg/telemetry"
)

var (
	// Lifecycle counters
	CheckoutsStarted  *telemetry.Counter
	CheckoutsFailed   *telemetry.Counter
	BookingsConfirmed *telemetry.Counter
	BookingsAborted   *telemetry.Counter
	BookingsCancelled *telemetry.Counter
	RefundsIssued     *telemetry.Counter
	RefundsPending    *telemetry.Counter

	// Inventory counters
	SpotsDecremented *telemetry.Counter
	SpotsRestored    *telemetry.Counter

	// Error tracking
	ErrorsTotal *telemetry.Counter

	// Histograms
	CheckoutDuration *telemetry.Histogram
	GatewayDuration  *telemetry.Histogram

	// Gauges
	PendingBookings *telemetry.UpDownCounter

	initOnce sync.Once
	initErr  error
)

// Init initializes all booking lifecycle metrics
func Init() error {
	initOnce.Do(func() {
		initErr = initMetrics()
	})
	return initErr
}

func initMetrics() error {
	var err error

	CheckoutsStarted, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "booking_checkouts_started_total",
		Description: "Total number of checkout sessions initiated",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	CheckoutsFailed, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "booking_checkouts_failed_total",
		Description: "Total number of checkout initiations that failed after retries",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	BookingsConfirmed, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "booking_confirmations_total",
		Description: "Total number of bookings confirmed",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	BookingsAborted, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "booking_aborts_total",
		Description: "Total number of bookings aborted on failed or expired payment",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	BookingsCancelled, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "booking_cancellations_total",
		Description: "Total number of cancelled bookings",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	RefundsIssued, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "booking_refunds_issued_total",
		Description: "Total number of refunds issued",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	RefundsPending, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "booking_refunds_pending_total",
		Description: "Total number of cancellations left awaiting a refund",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	SpotsDecremented, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "inventory_spots_decremented_total",
		Description: "Total spots taken from event inventory",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	SpotsRestored, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "inventory_spots_restored_total",
		Description: "Total spots returned to event inventory",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	ErrorsTotal, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "booking_errors_total",
		Description: "Total number of errors by type and operation",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	CheckoutDuration, err = telemetry.NewHistogramWithBuckets(telemetry.MetricOpts{
		Name:        "booking_checkout_duration_seconds",
		Description: "Duration of checkout initiation including gateway retries",
		Unit:        "s",
	}, []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30})
	if err != nil {
		return err
	}

	GatewayDuration, err = telemetry.NewHistogramWithBuckets(telemetry.MetricOpts{
		Name:        "payment_gateway_duration_seconds",
		Description: "Duration of payment gateway calls",
		Unit:        "s",
	}, []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10})
	if err != nil {
		return err
	}

	PendingBookings, err = telemetry.NewUpDownCounter(telemetry.MetricOpts{
		Name:        "booking_pending_current",
		Description: "Current number of pending bookings",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	return nil
}

// RecordCheckoutStarted records a successful checkout initiation
func RecordCheckoutStarted(ctx context.Context, eventID string, quantity int, durationSeconds float64) {
	if CheckoutsStarted != nil {
		CheckoutsStarted.Inc(ctx,
			attribute.String("event_id", eventID),
			attribute.Int("quantity", quantity),
		)
	}
	if CheckoutDuration != nil {
		CheckoutDuration.Record(ctx, durationSeconds,
			attribute.String("event_id", eventID),
		)
	}
	if PendingBookings != nil {
		PendingBookings.Inc(ctx)
	}
}

// RecordCheckoutFailed records a checkout that failed after exhausting retries
func RecordCheckoutFailed(ctx context.Context, eventID, reason string) {
	if CheckoutsFailed != nil {
		CheckoutsFailed.Inc(ctx,
			attribute.String("event_id", eventID),
			attribute.String("reason", reason),
		)
	}
}

// RecordConfirmation records a booking confirmation
func RecordConfirmation(ctx context.Context, eventID string) {
	if BookingsConfirmed != nil {
		BookingsConfirmed.Inc(ctx,
			attribute.String("event_id", eventID),
		)
	}
	if PendingBookings != nil {
		PendingBookings.Dec(ctx)
	}
}

// RecordAbort records a booking aborted on failed or expired payment
func RecordAbort(ctx context.Context, eventID, reason string) {
	if BookingsAborted != nil {
		BookingsAborted.Inc(ctx,
			attribute.String("event_id", eventID),
			attribute.String("reason", reason),
		)
	}
	if PendingBookings != nil {
		PendingBookings.Dec(ctx)
	}
}

// RecordCancellation records a confirmed booking being cancelled
func RecordCancellation(ctx context.Context, eventID, initiator string) {
	if BookingsCancelled != nil {
		BookingsCancelled.Inc(ctx,
			attribute.String("event_id", eventID),
			attribute.String("initiator", initiator),
		)
	}
}

// RecordRefund records the refund outcome of a cancellation
func RecordRefund(ctx context.Context, eventID string, pending bool) {
	if pending {
		if RefundsPending != nil {
			RefundsPending.Inc(ctx, attribute.String("event_id", eventID))
		}
		return
	}
	if RefundsIssued != nil {
		RefundsIssued.Inc(ctx, attribute.String("event_id", eventID))
	}
}

// RecordSpotsDecremented records spots taken from inventory
func RecordSpotsDecremented(ctx context.Context, eventID string, quantity int) {
	if SpotsDecremented != nil {
		SpotsDecremented.Add(ctx, int64(quantity),
			attribute.String("event_id", eventID),
		)
	}
}

// RecordSpotsRestored records spots returned to inventory
func RecordSpotsRestored(ctx context.Context, eventID string, quantity int) {
	if SpotsRestored != nil {
		SpotsRestored.Add(ctx, int64(quantity),
			attribute.String("event_id", eventID),
		)
	}
}

// RecordGatewayCall records a payment gateway call duration
func RecordGatewayCall(ctx context.Context, operation string, durationSeconds float64) {
	if GatewayDuration != nil {
		GatewayDuration.Record(ctx, durationSeconds,
			attribute.String("operation", operation),
		)
	}
}

// RecordError records an error by type and operation
func RecordError(ctx context.Context, errorType, operation string) {
	if ErrorsTotal != nil {
		ErrorsTotal.Inc(ctx,
			attribute.String("error_type", errorType),
			attribute.String("operation", operation),
		)
	}
}
