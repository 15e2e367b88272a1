package trips

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository handles database operations for trips
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new trips repository
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const tripColumns = `
	id, user_id, travel_mode, origin_lat, origin_lng, origin_name, origin_address,
	dest_lat, dest_lng, dest_name, dest_address,
	started_on, estimated_arrival_on, ended_on, trip_detail_uuid, navigation_app,
	distance, trajectory_distance, end_status, reservation_id, validation_complete, market
`

func scanTrip(row pgx.Row) (*Trip, error) {
	t := &Trip{}
	err := row.Scan(
		&t.ID, &t.UserID, &t.TravelMode,
		&t.Origin.Latitude, &t.Origin.Longitude, &t.Origin.Name, &t.Origin.Address,
		&t.Destination.Latitude, &t.Destination.Longitude, &t.Destination.Name, &t.Destination.Address,
		&t.StartedOn, &t.EstimatedArrivalOn, &t.EndedOn, &t.TripDetailUUID, &t.NavigationApp,
		&t.Distance, &t.TrajectoryDistance, &t.EndStatus, &t.ReservationID, &t.ValidationComplete, &t.Market,
	)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// Insert creates a trip row and returns its id.
func (r *Repository) Insert(ctx context.Context, t *Trip) (int64, error) {
	if t.TripDetailUUID == "" {
		t.TripDetailUUID = uuid.NewString()
	}

	var id int64
	err := r.db.QueryRow(ctx, `
		INSERT INTO trip (
			user_id, travel_mode, origin_lat, origin_lng, origin_name, origin_address,
			dest_lat, dest_lng, dest_name, dest_address,
			started_on, estimated_arrival_on, trip_detail_uuid, navigation_app,
			reservation_id, market
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING id
	`, t.UserID, t.TravelMode,
		t.Origin.Latitude, t.Origin.Longitude, t.Origin.Name, t.Origin.Address,
		t.Destination.Latitude, t.Destination.Longitude, t.Destination.Name, t.Destination.Address,
		t.StartedOn, t.EstimatedArrivalOn, t.TripDetailUUID, t.NavigationApp,
		t.ReservationID, t.Market,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert trip: %w", err)
	}
	return id, nil
}

// Get loads one trip.
func (r *Repository) Get(ctx context.Context, id int64) (*Trip, error) {
	return scanTrip(r.db.QueryRow(ctx, `SELECT `+tripColumns+` FROM trip WHERE id = $1`, id))
}

// End records the trip end. Returns pgx.ErrNoRows when the trip does not
// exist or already ended.
func (r *Repository) End(ctx context.Context, req *EndTripRequest, userID int64) (*Trip, error) {
	return scanTrip(r.db.QueryRow(ctx, `
		UPDATE trip
		SET ended_on = $1, distance = $2, end_status = $3
		WHERE id = $4 AND user_id = $5 AND ended_on IS NULL
		RETURNING `+tripColumns+`
	`, req.EndedOn, req.Distance, req.EndStatus, req.TripID, userID))
}

// SetTrajectoryDistance stores the path length measured from uploaded samples.
func (r *Repository) SetTrajectoryDistance(ctx context.Context, id int64, km float64) error {
	_, err := r.db.Exec(ctx, `UPDATE trip SET trajectory_distance = $1 WHERE id = $2`, km, id)
	return err
}

// SetValidationComplete marks the trip as done with validation.
func (r *Repository) SetValidationComplete(ctx context.Context, tx pgx.Tx, id int64) error {
	_, err := tx.Exec(ctx, `UPDATE trip SET validation_complete = TRUE WHERE id = $1`, id)
	return err
}

// EnqueueValidation inserts the first validation round for a trip.
func (r *Repository) EnqueueValidation(ctx context.Context, tripID int64, round int) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO trip_validation_queue (trip_id, round, created_on)
		VALUES ($1, $2, NOW())
	`, tripID, round)
	if err != nil {
		return fmt.Errorf("enqueue validation: %w", err)
	}
	return nil
}

// ListRecent returns the user's trips, newest first.
func (r *Repository) ListRecent(ctx context.Context, userID int64, limit int) ([]Trip, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+tripColumns+` FROM trip
		WHERE user_id = $1
		ORDER BY started_on DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Trip
	for rows.Next() {
		t, err := scanTrip(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}
