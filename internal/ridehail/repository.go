package ridehail

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Repository handles database operations for rides and webhook events
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new ridehail repository
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const tripColumns = `
	id, trip_id, user_id, vendor_request_id, vendor_trip_id, product_id, status,
	estimated_fare, actual_fare, benefit_credit_applied,
	pickup_lat, pickup_lng, pickup_name, pickup_address,
	dropoff_lat, dropoff_lng, dropoff_name, dropoff_address,
	last_event_time, created_on, completed_on
`

func scanTrip(row pgx.Row) (*Trip, error) {
	t := &Trip{}
	err := row.Scan(
		&t.ID, &t.TripID, &t.UserID, &t.VendorRequestID, &t.VendorTripID, &t.ProductID, &t.Status,
		&t.EstimatedFare, &t.ActualFare, &t.BenefitCreditApplied,
		&t.Pickup.Latitude, &t.Pickup.Longitude, &t.Pickup.Name, &t.Pickup.Address,
		&t.Dropoff.Latitude, &t.Dropoff.Longitude, &t.Dropoff.Name, &t.Dropoff.Address,
		&t.LastEventTime, &t.CreatedOn, &t.CompletedOn,
	)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// InsertTripTx creates the ride row inside the order transaction.
func (r *Repository) InsertTripTx(ctx context.Context, tx pgx.Tx, t *Trip) (int64, error) {
	var id int64
	err := tx.QueryRow(ctx, `
		INSERT INTO ridehail_trip (
			user_id, product_id, status, estimated_fare, benefit_credit_applied,
			pickup_lat, pickup_lng, pickup_name, pickup_address,
			dropoff_lat, dropoff_lng, dropoff_name, dropoff_address,
			created_on
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, NOW())
		RETURNING id
	`, t.UserID, t.ProductID, t.Status, t.EstimatedFare, t.BenefitCreditApplied,
		t.Pickup.Latitude, t.Pickup.Longitude, t.Pickup.Name, t.Pickup.Address,
		t.Dropoff.Latitude, t.Dropoff.Longitude, t.Dropoff.Name, t.Dropoff.Address,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert ridehail trip: %w", err)
	}
	return id, nil
}

// SetVendorIDsTx stores the vendor identifiers after a successful booking.
func (r *Repository) SetVendorIDsTx(ctx context.Context, tx pgx.Tx, id int64, requestID string) error {
	_, err := tx.Exec(ctx, `
		UPDATE ridehail_trip SET vendor_request_id = $1 WHERE id = $2
	`, requestID, id)
	return err
}

// GetTrip loads one ride.
func (r *Repository) GetTrip(ctx context.Context, id int64) (*Trip, error) {
	return scanTrip(r.db.QueryRow(ctx, `SELECT `+tripColumns+` FROM ridehail_trip WHERE id = $1`, id))
}

// LockTripByVendorRequestIDTx locks the ride row for webhook processing.
// Events for the same ride serialize on this lock.
func (r *Repository) LockTripByVendorRequestIDTx(ctx context.Context, tx pgx.Tx, requestID string) (*Trip, error) {
	return scanTrip(tx.QueryRow(ctx, `
		SELECT `+tripColumns+` FROM ridehail_trip WHERE vendor_request_id = $1 FOR UPDATE
	`, requestID))
}

// UpdateStatusTx applies a status transition and remembers the event time so
// stale out-of-order events can be dropped.
func (r *Repository) UpdateStatusTx(ctx context.Context, tx pgx.Tx, id int64, status Status, eventTime time.Time) error {
	_, err := tx.Exec(ctx, `
		UPDATE ridehail_trip SET status = $1, last_event_time = $2 WHERE id = $3
	`, status, eventTime, id)
	return err
}

// CompleteTx finalizes the ride with its actual fare.
func (r *Repository) CompleteTx(ctx context.Context, tx pgx.Tx, id int64, actualFare decimal.Decimal, eventTime time.Time) error {
	_, err := tx.Exec(ctx, `
		UPDATE ridehail_trip
		SET status = $1, actual_fare = $2, last_event_time = $3, completed_on = NOW()
		WHERE id = $4
	`, StatusCompleted, actualFare, eventTime, id)
	return err
}

// CancelTx marks the ride cancelled.
func (r *Repository) CancelTx(ctx context.Context, tx pgx.Tx, id int64, eventTime time.Time) error {
	_, err := tx.Exec(ctx, `
		UPDATE ridehail_trip SET status = $1, last_event_time = $2 WHERE id = $3
	`, StatusCancelled, eventTime, id)
	return err
}

// InsertWebhookEventTx records the event for idempotency. Returns false when
// the event was already processed.
func (r *Repository) InsertWebhookEventTx(ctx context.Context, tx pgx.Tx, event *WebhookEvent, payload []byte) (bool, error) {
	tag, err := tx.Exec(ctx, `
		INSERT INTO webhook_event (event_id, event_type, event_time, payload, created_on)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (event_id) DO NOTHING
	`, event.EventID, event.EventType, time.Unix(event.EventTime, 0).UTC(), payload)
	if err != nil {
		return false, fmt.Errorf("insert webhook event: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// InsertBenefitRowTx appends one benefit ledger row inside the caller's
// transaction. The orchestrator owns benefit writes.
func (r *Repository) InsertBenefitRowTx(ctx context.Context, tx pgx.Tx, userID int64, benefitAmount, transactionAmount decimal.Decimal, rideID int64) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO uber_benefit_transaction (user_id, benefit_amount, transaction_amount, transaction_id, created_on)
		VALUES ($1, $2, $3, $4, NOW())
	`, userID, benefitAmount, transactionAmount, rideID)
	if err != nil {
		return fmt.Errorf("insert benefit row: %w", err)
	}
	return nil
}
