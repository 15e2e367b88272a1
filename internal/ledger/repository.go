package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// ErrInsufficientTokens is returned when a token spend exceeds the spendable
// (non-expired) token balance.
var ErrInsufficientTokens = errors.New("insufficient token balance")

// Repository owns all writes to the coin ledger, the token ledger, purchase
// records, and wallet rows. Every write runs inside a single database
// transaction; the wallet row doubles as the per-user lock object.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new ledger repository
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// ========================================
// COIN LEDGER
// ========================================

// Record writes one ledger entry, or an atomic pair when the input names both
// a payer and a payee. Wallet rows are locked in ascending user-id order so
// concurrent transfers cannot deadlock.
func (r *Repository) Record(ctx context.Context, input RecordInput) (*RecordResult, error) {
	var result *RecordResult
	err := r.WithinTransaction(ctx, func(ctx context.Context, txr Recorder) error {
		var err error
		result, err = txr.Record(ctx, input)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Recorder posts ledger entries inside one caller-scoped transaction. It lets
// orchestrators bundle ledger writes with their own rows so the whole
// operation commits or rolls back together.
type Recorder interface {
	Record(ctx context.Context, input RecordInput) (*RecordResult, error)
	Tx() pgx.Tx
}

// TxRecorder is the Recorder backed by a live pgx transaction.
type TxRecorder struct {
	tx pgx.Tx
}

// Tx exposes the underlying transaction for the caller's own inserts.
func (t *TxRecorder) Tx() pgx.Tx {
	return t.tx
}

// WithinTransaction runs fn inside one database transaction. The transaction
// rolls back when fn returns an error.
func (r *Repository) WithinTransaction(ctx context.Context, fn func(ctx context.Context, txr Recorder) error) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin ledger tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(ctx, &TxRecorder{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit ledger tx: %w", err)
	}
	return nil
}

// Record writes one entry or an atomic pair within the transaction.
func (t *TxRecorder) Record(ctx context.Context, input RecordInput) (*RecordResult, error) {
	tx := t.tx
	counterparty, counterpartySet := counterpartyOf(input)

	lockIDs := []int64{input.UserID}
	if counterpartySet {
		lockIDs = append(lockIDs, counterparty)
	}
	if err := lockWallets(ctx, tx, lockIDs); err != nil {
		return nil, err
	}

	var primaryID int64
	err := tx.QueryRow(ctx, `
		INSERT INTO points_transaction (user_id, activity_type, points, payer, payee, ref_transaction_id, note, created_on)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		RETURNING id
	`, input.UserID, input.ActivityType, input.Points, input.Payer, input.Payee, input.RefAccount, input.Note).Scan(&primaryID)
	if err != nil {
		return nil, fmt.Errorf("insert points transaction: %w", err)
	}

	balance, err := applyToWallet(ctx, tx, input.UserID, input.Points)
	if err != nil {
		return nil, err
	}

	if counterpartySet {
		_, err = tx.Exec(ctx, `
			INSERT INTO points_transaction (user_id, activity_type, points, payer, payee, ref_transaction_id, note, created_on)
			VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		`, counterparty, input.ActivityType, input.Points.Neg(), input.Payer, input.Payee, primaryID, input.Note)
		if err != nil {
			return nil, fmt.Errorf("insert counterparty transaction: %w", err)
		}
		if _, err := applyToWallet(ctx, tx, counterparty, input.Points.Neg()); err != nil {
			return nil, err
		}
	}

	return &RecordResult{TransactionID: primaryID, Balance: balance}, nil
}

// counterpartyOf returns the opposite side of a paired transfer. The primary
// row belongs to input.UserID; the counterparty is whichever of payer or
// payee is the other account.
func counterpartyOf(input RecordInput) (int64, bool) {
	if input.Payer == nil || input.Payee == nil {
		return 0, false
	}
	if *input.Payer != input.UserID {
		return *input.Payer, true
	}
	return *input.Payee, true
}

// lockWallets acquires row locks on the wallet rows for the given users,
// creating missing wallets first. IDs are locked in ascending order.
func lockWallets(ctx context.Context, tx pgx.Tx, userIDs []int64) error {
	ordered := make([]int64, len(userIDs))
	copy(ordered, userIDs)
	for i := 1; i < len(ordered); i++ {
		for j := i; j > 0 && ordered[j] < ordered[j-1]; j-- {
			ordered[j], ordered[j-1] = ordered[j-1], ordered[j]
		}
	}

	for _, id := range ordered {
		_, err := tx.Exec(ctx, `
			INSERT INTO user_wallet (user_id, balance, auto_refill, below_balance, created_on, updated_on)
			VALUES ($1, 0, false, 0, NOW(), NOW())
			ON CONFLICT (user_id) DO NOTHING
		`, id)
		if err != nil {
			return fmt.Errorf("ensure wallet %d: %w", id, err)
		}

		var locked int64
		err = tx.QueryRow(ctx, `SELECT user_id FROM user_wallet WHERE user_id = $1 FOR UPDATE`, id).Scan(&locked)
		if err != nil {
			return fmt.Errorf("lock wallet %d: %w", id, err)
		}
	}
	return nil
}

// applyToWallet moves the materialized balance in lockstep with the ledger
// row just written. The wallet row is already locked by the caller.
func applyToWallet(ctx context.Context, tx pgx.Tx, userID int64, points decimal.Decimal) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := tx.QueryRow(ctx, `
		UPDATE user_wallet
		SET balance = balance + $1, updated_on = NOW()
		WHERE user_id = $2
		RETURNING balance
	`, points, userID).Scan(&balance)
	if err != nil {
		return decimal.Zero, fmt.Errorf("update wallet balance %d: %w", userID, err)
	}
	return balance, nil
}

// Balance returns the materialized coin balance, zero for users without a
// wallet yet.
func (r *Repository) Balance(ctx context.Context, userID int64) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := r.db.QueryRow(ctx, `SELECT balance FROM user_wallet WHERE user_id = $1`, userID).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, err
	}
	return balance, nil
}

// HasActivity reports whether the user has any ledger entry with the given
// activity type. Used for first-time checks such as the welcome bonus.
func (r *Repository) HasActivity(ctx context.Context, userID int64, activity ActivityType) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM points_transaction WHERE user_id = $1 AND activity_type = $2
		)
	`, userID, activity).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

// TransactionSum derives the balance from the append-only ledger. It exists
// so callers can audit the materialized wallet balance against the source of
// truth.
func (r *Repository) TransactionSum(ctx context.Context, userID int64) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := r.db.QueryRow(ctx, `
		SELECT COALESCE(SUM(points), 0) FROM points_transaction WHERE user_id = $1
	`, userID).Scan(&sum)
	if err != nil {
		return decimal.Zero, err
	}
	return sum, nil
}

// ========================================
// PURCHASE RECORDS
// ========================================

// RecordPurchaseWithCredit posts the coin credit and the purchase record in
// one transaction. A charged card either shows up in both the ledger and the
// daily purchase sum, or in neither.
func (r *Repository) RecordPurchaseWithCredit(ctx context.Context, input RecordInput, p *PurchaseTransaction) (*RecordResult, error) {
	var result *RecordResult
	err := r.WithinTransaction(ctx, func(ctx context.Context, txr Recorder) error {
		var err error
		result, err = txr.Record(ctx, input)
		if err != nil {
			return err
		}
		p.PointTransactionID = result.TransactionID
		return insertPurchaseTx(ctx, txr.Tx(), p)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// insertPurchaseTx links an external card charge to the coin credit it funded.
func insertPurchaseTx(ctx context.Context, tx pgx.Tx, p *PurchaseTransaction) error {
	err := tx.QueryRow(ctx, `
		INSERT INTO purchase_transaction (user_id, point_transaction_id, points, amount, currency, external_transaction_id, created_on)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		RETURNING id
	`, p.UserID, p.PointTransactionID, p.Points, p.Amount, p.Currency, p.ExternalTransactionID).Scan(&p.ID)
	if err != nil {
		return fmt.Errorf("insert purchase transaction: %w", err)
	}
	return nil
}

// SumPurchasesBetween sums a user's card charges in the half-open window
// [from, to). Callers pass the user's local-midnight boundaries.
func (r *Repository) SumPurchasesBetween(ctx context.Context, userID int64, from, to time.Time) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := r.db.QueryRow(ctx, `
		SELECT COALESCE(SUM(amount), 0)
		FROM purchase_transaction
		WHERE user_id = $1 AND created_on >= $2 AND created_on < $3
	`, userID, from, to).Scan(&sum)
	if err != nil {
		return decimal.Zero, err
	}
	return sum, nil
}

// ========================================
// TOKEN LEDGER
// ========================================

// RecordTokenGrant issues campaign tokens. Each grant carries its own running
// balance and expiry.
func (r *Repository) RecordTokenGrant(ctx context.Context, t *TokenTransaction) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `
		INSERT INTO token_transaction (user_id, campaign_id, tokens, balance, note, issued_on, expired_on, created_on)
		VALUES ($1, $2, $3, $3, $4, $5, $6, NOW())
		RETURNING id
	`, t.UserID, t.CampaignID, t.Tokens, t.Note, t.IssuedOn, t.ExpiredOn).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert token grant: %w", err)
	}
	return id, nil
}

// SpendTokens consumes tokens from non-expired grants, oldest expiry first.
// Returns the remaining spendable balance.
func (r *Repository) SpendTokens(ctx context.Context, userID int64, amount decimal.Decimal) (decimal.Decimal, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return decimal.Zero, fmt.Errorf("begin token tx: %w", err)
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, `
		SELECT id, balance
		FROM token_transaction
		WHERE user_id = $1 AND balance > 0 AND expired_on > NOW()
		ORDER BY expired_on ASC, id ASC
		FOR UPDATE
	`, userID)
	if err != nil {
		return decimal.Zero, err
	}

	type grant struct {
		id      int64
		balance decimal.Decimal
	}
	var grants []grant
	var spendable decimal.Decimal
	for rows.Next() {
		var g grant
		if err := rows.Scan(&g.id, &g.balance); err != nil {
			rows.Close()
			return decimal.Zero, err
		}
		grants = append(grants, g)
		spendable = spendable.Add(g.balance)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return decimal.Zero, err
	}

	if spendable.LessThan(amount) {
		return decimal.Zero, ErrInsufficientTokens
	}

	remaining := amount
	for _, g := range grants {
		if remaining.IsZero() {
			break
		}
		take := decimal.Min(g.balance, remaining)
		_, err := tx.Exec(ctx, `UPDATE token_transaction SET balance = balance - $1 WHERE id = $2`, take, g.id)
		if err != nil {
			return decimal.Zero, fmt.Errorf("decrement token grant %d: %w", g.id, err)
		}
		remaining = remaining.Sub(take)
	}

	if err := tx.Commit(ctx); err != nil {
		return decimal.Zero, fmt.Errorf("commit token tx: %w", err)
	}
	return spendable.Sub(amount), nil
}

// TokenBalance returns the spendable (non-expired) token balance.
func (r *Repository) TokenBalance(ctx context.Context, userID int64) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := r.db.QueryRow(ctx, `
		SELECT COALESCE(SUM(balance), 0)
		FROM token_transaction
		WHERE user_id = $1 AND expired_on > NOW()
	`, userID).Scan(&sum)
	if err != nil {
		return decimal.Zero, err
	}
	return sum, nil
}
