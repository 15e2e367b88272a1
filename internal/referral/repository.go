package referral

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Repository handles database operations for referrals and promo codes
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new referral repository
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// UserCreatedOn returns the account creation time, pgx.ErrNoRows when the
// user does not exist.
func (r *Repository) UserCreatedOn(ctx context.Context, userID int64) (time.Time, error) {
	var createdOn time.Time
	err := r.db.QueryRow(ctx, `
		SELECT created_on FROM user_account WHERE id = $1
	`, userID).Scan(&createdOn)
	return createdOn, err
}

// UserExists reports whether the user account exists.
func (r *Repository) UserExists(ctx context.Context, userID int64) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM user_account WHERE id = $1)
	`, userID).Scan(&exists)
	return exists, err
}

// HasRedeemed reports whether the receiver already has a referral row.
func (r *Repository) HasRedeemed(ctx context.Context, receiverID int64) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM referral_history WHERE receiver_user_id = $1)
	`, receiverID).Scan(&exists)
	return exists, err
}

// InsertHistoryTx records a redeemed referral inside the reward transaction.
// The unique index on receiver_user_id makes double redemption a constraint
// violation that rolls the credits back.
func (r *Repository) InsertHistoryTx(ctx context.Context, tx pgx.Tx, h *History) (int64, error) {
	var id int64
	err := tx.QueryRow(ctx, `
		INSERT INTO referral_history (sender_user_id, receiver_user_id, referral_code, reward_amount, created_on)
		VALUES ($1, $2, $3, $4, NOW())
		RETURNING id
	`, h.SenderUserID, h.ReceiverID, h.ReferralCode, h.RewardAmount).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert referral history: %w", err)
	}
	return id, nil
}

// GetPromo loads an active promo code, nil when absent or inactive.
func (r *Repository) GetPromo(ctx context.Context, code string) (*PromoCode, error) {
	p := &PromoCode{}
	err := r.db.QueryRow(ctx, `
		SELECT id, code, type, amount, active, expires_on
		FROM promo_code
		WHERE code = $1 AND active = TRUE
	`, code).Scan(&p.ID, &p.Code, &p.Type, &p.Amount, &p.Active, &p.ExpiresOn)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// HasRedeemedPromo reports whether the user already used this promo code.
func (r *Repository) HasRedeemedPromo(ctx context.Context, userID, promoID int64) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM promo_redemption WHERE user_id = $1 AND promo_code_id = $2)
	`, userID, promoID).Scan(&exists)
	return exists, err
}

// RecordPromoRedemptionTx marks the promo code used inside the reward
// transaction.
func (r *Repository) RecordPromoRedemptionTx(ctx context.Context, tx pgx.Tx, userID, promoID int64, amount decimal.Decimal) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO promo_redemption (user_id, promo_code_id, amount, created_on)
		VALUES ($1, $2, $3, NOW())
	`, userID, promoID, amount)
	if err != nil {
		return fmt.Errorf("insert promo redemption: %w", err)
	}
	return nil
}
