package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/eventspark/backend-booking/internal/domain"
	"github.com/eventspark/backend-booking/pkg/telemetry"
)

// PostgresInventoryRepository implements InventoryRepository using PostgreSQL.
// spots_left lives on the events row and is only ever touched through the
// guarded UPDATE in AdjustSpots, which serializes concurrent adjustments per
// event at the storage layer.
type PostgresInventoryRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresInventoryRepository creates a new PostgresInventoryRepository
func NewPostgresInventoryRepository(pool *pgxpool.Pool) *PostgresInventoryRepository {
	return &PostgresInventoryRepository{pool: pool}
}

// AdjustSpots atomically applies delta to the event's spots_left.
// The WHERE clause rejects any adjustment that would leave spots_left
// outside [0, capacity], so two concurrent decrements can never both
// succeed past zero.
func (r *PostgresInventoryRepository) AdjustSpots(ctx context.Context, eventID string, delta int) (int, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.inventory.adjust_spots")
	defer span.End()

	span.SetAttributes(
		attribute.String("event_id", eventID),
		attribute.Int("delta", delta),
	)

	query := `
		UPDATE events SET
			spots_left = spots_left + $2,
			updated_at = NOW()
		WHERE id = $1
			AND spots_left + $2 >= 0
			AND spots_left + $2 <= capacity
		RETURNING spots_left
	`

	var spotsLeft int
	err := r.pool.QueryRow(ctx, query, eventID, delta).Scan(&spotsLeft)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Either the event is missing or the guard rejected the delta
			var exists bool
			checkErr := r.pool.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM events WHERE id = $1)", eventID).Scan(&exists)
			if checkErr != nil {
				span.RecordError(checkErr)
				span.SetStatus(codes.Error, checkErr.Error())
				return 0, fmt.Errorf("failed to check event existence: %w", checkErr)
			}
			if !exists {
				span.SetStatus(codes.Error, "event not found")
				return 0, domain.ErrEventNotFound
			}
			span.SetStatus(codes.Error, "capacity exceeded")
			return 0, domain.ErrCapacityExceeded
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, fmt.Errorf("failed to adjust spots: %w", err)
	}

	span.SetAttributes(attribute.Int("spots_left", spotsLeft))
	span.SetStatus(codes.Ok, "")
	return spotsLeft, nil
}

// GetEvent retrieves an event with its current inventory
func (r *PostgresInventoryRepository) GetEvent(ctx context.Context, eventID string) (*domain.Event, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.inventory.get_event")
	defer span.End()

	span.SetAttributes(attribute.String("event_id", eventID))

	query := `
		SELECT id, name, host_id, capacity, spots_left, unit_price, currency,
			starts_at, created_at, updated_at
		FROM events
		WHERE id = $1
	`

	event := &domain.Event{}
	err := r.pool.QueryRow(ctx, query, eventID).Scan(
		&event.ID,
		&event.Name,
		&event.HostID,
		&event.Capacity,
		&event.SpotsLeft,
		&event.UnitPrice,
		&event.Currency,
		&event.StartsAt,
		&event.CreatedAt,
		&event.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			span.SetStatus(codes.Error, "not found")
			return nil, domain.ErrEventNotFound
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to get event: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return event, nil
}

// Ensure PostgresInventoryRepository implements InventoryRepository
var _ InventoryRepository = (*PostgresInventoryRepository)(nil)
