package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/eventspark/backend-booking/internal/domain"
	"github.com/eventspark/backend-booking/pkg/telemetry"
)

// PostgresBookingRepository implements BookingRepository using PostgreSQL with pgxpool
type PostgresBookingRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresBookingRepository creates a new PostgresBookingRepository
func NewPostgresBookingRepository(pool *pgxpool.Pool) *PostgresBookingRepository {
	return &PostgresBookingRepository{pool: pool}
}

const bookingColumns = `
	id, event_id, user_id, guest_name, guest_email, guest_phone,
	quantity, unit_price, total_amount, currency,
	status, payment_status, spots_decremented,
	booking_reference, checkout_session_id, payment_reference,
	created_at, updated_at, confirmed_at, cancelled_at
`

// Create inserts a new booking record in the database
func (r *PostgresBookingRepository) Create(ctx context.Context, booking *domain.Booking) error {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.booking.create")
	defer span.End()

	span.SetAttributes(
		attribute.String("booking_id", booking.ID),
		attribute.String("event_id", booking.EventID),
		attribute.String("booking_reference", booking.BookingReference),
	)

	query := `
		INSERT INTO bookings (
			id, event_id, user_id, guest_name, guest_email, guest_phone,
			quantity, unit_price, total_amount, currency,
			status, payment_status, spots_decremented,
			booking_reference, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10,
			$11, $12, $13,
			$14, $15, $16
		)
	`

	_, err := r.pool.Exec(ctx, query,
		booking.ID,
		booking.EventID,
		nullString(booking.UserID),
		nullString(booking.GuestName),
		nullString(booking.GuestEmail),
		nullString(booking.GuestPhone),
		booking.Quantity,
		booking.UnitPrice,
		booking.TotalAmount,
		booking.Currency,
		booking.Status.String(),
		booking.PaymentStatus.String(),
		booking.SpotsDecremented,
		booking.BookingReference,
		booking.CreatedAt,
		booking.UpdatedAt,
	)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to create booking: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// GetByID retrieves a booking by its ID
func (r *PostgresBookingRepository) GetByID(ctx context.Context, id string) (*domain.Booking, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.booking.get_by_id")
	defer span.End()

	span.SetAttributes(attribute.String("booking_id", id))

	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`

	booking, err := scanBooking(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			span.SetStatus(codes.Error, "not found")
			return nil, domain.ErrBookingNotFound
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return booking, nil
}

// GetByReference retrieves a booking by its human-facing reference
func (r *PostgresBookingRepository) GetByReference(ctx context.Context, reference string) (*domain.Booking, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.booking.get_by_reference")
	defer span.End()

	span.SetAttributes(attribute.String("booking_reference", reference))

	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE booking_reference = $1`

	booking, err := scanBooking(r.pool.QueryRow(ctx, query, reference))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			span.SetStatus(codes.Error, "not found")
			return nil, domain.ErrBookingNotFound
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to get booking by reference: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return booking, nil
}

// Transition applies a conditional status update guarded by the expected
// current status. A single guarded UPDATE keeps the check-and-set atomic, so
// concurrent handlers for the same booking cannot both pass the guard.
func (r *PostgresBookingRepository) Transition(ctx context.Context, id string, expected domain.BookingStatus, change *domain.StatusChange) (*domain.Booking, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.booking.transition")
	defer span.End()

	span.SetAttributes(
		attribute.String("booking_id", id),
		attribute.String("expected_status", expected.String()),
		attribute.String("new_status", change.Status.String()),
	)

	query := `
		UPDATE bookings SET
			status = $3,
			payment_status = $4,
			spots_decremented = COALESCE($5, spots_decremented),
			payment_reference = COALESCE($6, payment_reference),
			confirmed_at = COALESCE($7, confirmed_at),
			cancelled_at = COALESCE($8, cancelled_at),
			updated_at = $9
		WHERE id = $1 AND status = $2
		RETURNING ` + bookingColumns

	booking, err := scanBooking(r.pool.QueryRow(ctx, query,
		id,
		expected.String(),
		change.Status.String(),
		change.PaymentStatus.String(),
		change.SpotsDecremented,
		nullString(change.PaymentReference),
		change.ConfirmedAt,
		change.CancelledAt,
		time.Now(),
	))

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Guard failed: distinguish a stale status from a missing row
			var exists bool
			checkErr := r.pool.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM bookings WHERE id = $1)", id).Scan(&exists)
			if checkErr != nil {
				span.RecordError(checkErr)
				span.SetStatus(codes.Error, checkErr.Error())
				return nil, fmt.Errorf("failed to check booking existence: %w", checkErr)
			}
			if !exists {
				span.SetStatus(codes.Error, "not found")
				return nil, domain.ErrBookingNotFound
			}
			span.SetStatus(codes.Error, "stale state")
			return nil, domain.ErrStaleState
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to transition booking: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return booking, nil
}

// SetCheckoutSession records the payment processor session for a booking
func (r *PostgresBookingRepository) SetCheckoutSession(ctx context.Context, id, sessionID string) error {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.booking.set_checkout_session")
	defer span.End()

	span.SetAttributes(
		attribute.String("booking_id", id),
		attribute.String("session_id", sessionID),
	)

	query := `
		UPDATE bookings SET
			checkout_session_id = $2,
			updated_at = $3
		WHERE id = $1
	`

	result, err := r.pool.Exec(ctx, query, id, sessionID, time.Now())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to set checkout session: %w", err)
	}

	if result.RowsAffected() == 0 {
		span.SetStatus(codes.Error, "not found")
		return domain.ErrBookingNotFound
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// scanBooking scans a row into a Booking struct
func scanBooking(row pgx.Row) (*domain.Booking, error) {
	booking := &domain.Booking{}
	var (
		status           string
		paymentStatus    string
		userID           *string
		guestName        *string
		guestEmail       *string
		guestPhone       *string
		checkoutSession  *string
		paymentReference *string
		confirmedAt      *time.Time
		cancelledAt      *time.Time
	)

	err := row.Scan(
		&booking.ID,
		&booking.EventID,
		&userID,
		&guestName,
		&guestEmail,
		&guestPhone,
		&booking.Quantity,
		&booking.UnitPrice,
		&booking.TotalAmount,
		&booking.Currency,
		&status,
		&paymentStatus,
		&booking.SpotsDecremented,
		&booking.BookingReference,
		&checkoutSession,
		&paymentReference,
		&booking.CreatedAt,
		&booking.UpdatedAt,
		&confirmedAt,
		&cancelledAt,
	)
	if err != nil {
		return nil, err
	}

	booking.Status = domain.BookingStatus(status)
	booking.PaymentStatus = domain.PaymentStatus(paymentStatus)
	if userID != nil {
		booking.UserID = *userID
	}
	if guestName != nil {
		booking.GuestName = *guestName
	}
	if guestEmail != nil {
		booking.GuestEmail = *guestEmail
	}
	if guestPhone != nil {
		booking.GuestPhone = *guestPhone
	}
	if checkoutSession != nil {
		booking.CheckoutSession = *checkoutSession
	}
	if paymentReference != nil {
		booking.PaymentReference = *paymentReference
	}
	booking.ConfirmedAt = confirmedAt
	booking.CancelledAt = cancelledAt

	return booking, nil
}

// Helper function to convert empty string to nil pointer
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Ensure PostgresBookingRepository implements BookingRepository
var _ BookingRepository = (*PostgresBookingRepository)(nil)
