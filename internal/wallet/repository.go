package wallet

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/transitlab/tsp-api/internal/ledger"
)

// Repository handles database operations for wallets
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new wallet repository
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// GetWallet loads a user's wallet, creating an empty one on first access.
func (r *Repository) GetWallet(ctx context.Context, userID int64) (*ledger.Wallet, error) {
	_, err := r.db.Exec(ctx, `
		INSERT INTO user_wallet (user_id, balance, auto_refill, below_balance, created_on, updated_on)
		VALUES ($1, 0, false, 0, NOW(), NOW())
		ON CONFLICT (user_id) DO NOTHING
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("ensure wallet %d: %w", userID, err)
	}

	w := &ledger.Wallet{}
	err = r.db.QueryRow(ctx, `
		SELECT user_id, balance, auto_refill, below_balance, refill_plan_id, payment_customer_id, created_on, updated_on
		FROM user_wallet
		WHERE user_id = $1
	`, userID).Scan(
		&w.UserID, &w.Balance, &w.AutoRefill, &w.BelowBalance,
		&w.RefillPlanID, &w.PaymentCustomerID, &w.CreatedOn, &w.UpdatedOn,
	)
	if err != nil {
		return nil, err
	}
	return w, nil
}

// UpdateSettings writes the auto-refill configuration.
func (r *Repository) UpdateSettings(ctx context.Context, userID int64, autoRefill bool, belowBalance decimal.Decimal, refillPlanID *int64) error {
	_, err := r.db.Exec(ctx, `
		UPDATE user_wallet
		SET auto_refill = $1, below_balance = $2, refill_plan_id = $3, updated_on = NOW()
		WHERE user_id = $4
	`, autoRefill, belowBalance, refillPlanID, userID)
	return err
}

// DisableAutoRefill flips auto_refill off after a failed refill attempt.
func (r *Repository) DisableAutoRefill(ctx context.Context, userID int64) error {
	_, err := r.db.Exec(ctx, `
		UPDATE user_wallet SET auto_refill = false, updated_on = NOW() WHERE user_id = $1
	`, userID)
	return err
}

// SetPaymentCustomerID stores the processor customer reference.
func (r *Repository) SetPaymentCustomerID(ctx context.Context, userID int64, customerID string) error {
	_, err := r.db.Exec(ctx, `
		UPDATE user_wallet SET payment_customer_id = $1, updated_on = NOW() WHERE user_id = $2
	`, customerID, userID)
	return err
}

// UserZone returns the account's IANA time zone, UTC for unknown accounts.
func (r *Repository) UserZone(ctx context.Context, userID int64) (string, error) {
	var zone string
	err := r.db.QueryRow(ctx, `SELECT zone FROM user_account WHERE id = $1`, userID).Scan(&zone)
	if errors.Is(err, pgx.ErrNoRows) {
		return "UTC", nil
	}
	if err != nil {
		return "", err
	}
	return zone, nil
}

// ========================================
// PRODUCT CATALOG
// ========================================

// GetProduct loads one active catalog row of the given kind.
func (r *Repository) GetProduct(ctx context.Context, id int64, kind ProductKind) (*PointProduct, error) {
	p := &PointProduct{}
	err := r.db.QueryRow(ctx, `
		SELECT id, kind, name, points, amount, currency, active, created_on
		FROM point_product
		WHERE id = $1 AND kind = $2 AND active = true
	`, id, kind).Scan(&p.ID, &p.Kind, &p.Name, &p.Points, &p.Amount, &p.Currency, &p.Active, &p.CreatedOn)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// ListProducts returns the active catalog for a kind.
func (r *Repository) ListProducts(ctx context.Context, kind ProductKind) ([]PointProduct, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, kind, name, points, amount, currency, active, created_on
		FROM point_product
		WHERE kind = $1 AND active = true
		ORDER BY amount ASC
	`, kind)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PointProduct
	for rows.Next() {
		var p PointProduct
		if err := rows.Scan(&p.ID, &p.Kind, &p.Name, &p.Points, &p.Amount, &p.Currency, &p.Active, &p.CreatedOn); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ========================================
// BLOCKED USERS
// ========================================

// IsBlocked reports whether an active suspension row exists.
func (r *Repository) IsBlocked(ctx context.Context, userID int64) (bool, error) {
	var id int64
	err := r.db.QueryRow(ctx, `
		SELECT id FROM blocked_user WHERE user_id = $1 AND is_deleted = false LIMIT 1
	`, userID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Block inserts an active suspension row. Idempotent: an existing active row
// is left in place.
func (r *Repository) Block(ctx context.Context, userID int64) error {
	blocked, err := r.IsBlocked(ctx, userID)
	if err != nil {
		return err
	}
	if blocked {
		return nil
	}
	_, err = r.db.Exec(ctx, `
		INSERT INTO blocked_user (user_id, is_deleted, created_on) VALUES ($1, false, NOW())
	`, userID)
	return err
}

// ========================================
// REDEMPTIONS
// ========================================

// RecordRedemption links a coin spend to the redeemed item.
func (r *Repository) RecordRedemption(ctx context.Context, t *RedemptionTransaction) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `
		INSERT INTO redemption_transaction (user_id, point_transaction_id, item_id, points, created_on)
		VALUES ($1, $2, $3, $4, NOW())
		RETURNING id
	`, t.UserID, t.PointTransactionID, t.ItemID, t.Points).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert redemption: %w", err)
	}
	return id, nil
}

// SumRedemptionsBetween sums redeemed coins in [from, to).
func (r *Repository) SumRedemptionsBetween(ctx context.Context, userID int64, from, to time.Time) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := r.db.QueryRow(ctx, `
		SELECT COALESCE(SUM(points), 0)
		FROM redemption_transaction
		WHERE user_id = $1 AND created_on >= $2 AND created_on < $3
	`, userID, from, to).Scan(&sum)
	if err != nil {
		return decimal.Zero, err
	}
	return sum, nil
}
