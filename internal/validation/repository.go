package validation

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// QueueRow is one leased validation attempt.
type QueueRow struct {
	ID     int64
	TripID int64
	Round  int
}

// Repository handles database operations for the validation queue and
// results.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new validation repository
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// LeaseDueTx locks the oldest due queue row. Rows become due once the trip
// started before the cutoff, leaving time for trajectory uploads. SKIP
// LOCKED keeps concurrent workers off each other's rows.
func (r *Repository) LeaseDueTx(ctx context.Context, tx pgx.Tx, cutoff time.Time) (*QueueRow, error) {
	row := &QueueRow{}
	err := tx.QueryRow(ctx, `
		SELECT q.id, q.trip_id, q.round
		FROM trip_validation_queue q
		JOIN trip t ON t.id = q.trip_id
		WHERE q.is_deleted = FALSE AND t.started_on <= $1
		ORDER BY q.created_on
		LIMIT 1
		FOR UPDATE OF q SKIP LOCKED
	`, cutoff).Scan(&row.ID, &row.TripID, &row.Round)
	if err != nil {
		return nil, err
	}
	return row, nil
}

// MarkDeletedTx retires a queue row.
func (r *Repository) MarkDeletedTx(ctx context.Context, tx pgx.Tx, id int64) error {
	_, err := tx.Exec(ctx, `UPDATE trip_validation_queue SET is_deleted = TRUE WHERE id = $1`, id)
	return err
}

// IncrementRoundTx schedules the next validation round for a failed attempt.
func (r *Repository) IncrementRoundTx(ctx context.Context, tx pgx.Tx, id int64) error {
	_, err := tx.Exec(ctx, `UPDATE trip_validation_queue SET round = round + 1 WHERE id = $1`, id)
	return err
}

// InsertResultTx records one round's outcome.
func (r *Repository) InsertResultTx(ctx context.Context, tx pgx.Tx, tripID int64, round int, outcome Outcome) error {
	details, err := json.Marshal(outcome)
	if err != nil {
		return fmt.Errorf("marshal validation outcome: %w", err)
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO trip_validation_result (trip_id, round, passed, score, dimensions_json, created_on)
		VALUES ($1, $2, $3, $4, $5, NOW())
	`, tripID, round, outcome.Passed, outcome.Score, details)
	if err != nil {
		return fmt.Errorf("insert validation result: %w", err)
	}
	return nil
}

// Results returns all recorded rounds for a trip, oldest first.
func (r *Repository) Results(ctx context.Context, tripID int64) ([]Outcome, error) {
	rows, err := r.db.Query(ctx, `
		SELECT dimensions_json FROM trip_validation_result
		WHERE trip_id = $1 ORDER BY round
	`, tripID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Outcome
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var o Outcome
		if err := json.Unmarshal(raw, &o); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}
