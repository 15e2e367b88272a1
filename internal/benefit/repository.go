package benefit

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Repository handles database operations for the benefit ledger
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new benefit repository
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Sum returns the signed benefit balance for a user.
func (r *Repository) Sum(ctx context.Context, userID int64) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := r.db.QueryRow(ctx, `
		SELECT COALESCE(SUM(benefit_amount), 0)
		FROM uber_benefit_transaction
		WHERE user_id = $1
	`, userID).Scan(&sum)
	if err != nil {
		return decimal.Zero, err
	}
	return sum, nil
}

// ForRide returns the benefit rows tied to one ride.
func (r *Repository) ForRide(ctx context.Context, rideID int64) ([]Transaction, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, user_id, benefit_amount, transaction_amount, transaction_id, created_on
		FROM uber_benefit_transaction
		WHERE transaction_id = $1
		ORDER BY id ASC
	`, rideID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Transaction
	for rows.Next() {
		var t Transaction
		if err := rows.Scan(&t.ID, &t.UserID, &t.BenefitAmount, &t.TransactionAmount, &t.TransactionID, &t.CreatedOn); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
