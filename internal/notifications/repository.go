package notifications

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository resolves notification recipients
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new notifications repository
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// UserEmail returns the account email for a user.
func (r *Repository) UserEmail(ctx context.Context, userID int64) (string, error) {
	var email string
	err := r.db.QueryRow(ctx, `
		SELECT email FROM user_account WHERE id = $1
	`, userID).Scan(&email)
	if err != nil {
		return "", fmt.Errorf("user email lookup: %w", err)
	}
	return email, nil
}
