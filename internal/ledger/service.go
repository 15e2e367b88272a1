package ledger

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/transitlab/tsp-api/pkg/common"
	"github.com/transitlab/tsp-api/pkg/logger"
)

// Store is the persistence surface the ledger service writes through.
type Store interface {
	Record(ctx context.Context, input RecordInput) (*RecordResult, error)
	Balance(ctx context.Context, userID int64) (decimal.Decimal, error)
	TransactionSum(ctx context.Context, userID int64) (decimal.Decimal, error)
	HasActivity(ctx context.Context, userID int64, activity ActivityType) (bool, error)
	RecordPurchaseWithCredit(ctx context.Context, input RecordInput, p *PurchaseTransaction) (*RecordResult, error)
	SumPurchasesBetween(ctx context.Context, userID int64, from, to time.Time) (decimal.Decimal, error)
	RecordTokenGrant(ctx context.Context, t *TokenTransaction) (int64, error)
	SpendTokens(ctx context.Context, userID int64, amount decimal.Decimal) (decimal.Decimal, error)
	TokenBalance(ctx context.Context, userID int64) (decimal.Decimal, error)
}

var validActivities = map[ActivityType]bool{
	ActivityPurchase:   true,
	ActivityDebit:      true,
	ActivityReward:     true,
	ActivityRefund:     true,
	ActivityIncentive:  true,
	ActivityServiceFee: true,
	ActivitySpend:      true,
	ActivityMultiParty: true,
}

// Service is the only component that writes coin balances. It validates the
// shape of each entry and delegates atomicity to the store. It never retries;
// callers decide.
type Service struct {
	store Store
}

// NewService creates a new ledger service
func NewService(store Store) *Service {
	return &Service{store: store}
}

// RecordTransaction posts one ledger entry, or an atomic pair when both payer
// and payee are given. The returned balance is the UserID side.
func (s *Service) RecordTransaction(ctx context.Context, input RecordInput) (*RecordResult, error) {
	if input.UserID <= 0 {
		return nil, common.NewBadRequestError("user id is required", nil)
	}
	if !validActivities[input.ActivityType] {
		return nil, common.NewBadRequestError("unknown activity type", nil)
	}
	if input.Points.IsZero() {
		return nil, common.NewBadRequestError("points must be non-zero", nil)
	}
	if (input.Payer == nil) != (input.Payee == nil) {
		return nil, common.NewBadRequestError("payer and payee must be provided together", nil)
	}
	if input.Payer != nil {
		if *input.Payer == *input.Payee {
			return nil, common.NewBadRequestError("payer and payee must differ", nil)
		}
		if *input.Payer != input.UserID && *input.Payee != input.UserID {
			return nil, common.NewBadRequestError("user must be payer or payee", nil)
		}
	}

	result, err := s.store.Record(ctx, input)
	if err != nil {
		logger.WithContext(ctx).Error("ledger write failed",
			zap.Int64("user_id", input.UserID),
			zap.Int("activity_type", int(input.ActivityType)),
			zap.Error(err),
		)
		return nil, common.NewInternalError("failed to record transaction", err)
	}

	return result, nil
}

// Credit posts a positive single-sided entry.
func (s *Service) Credit(ctx context.Context, userID int64, activity ActivityType, amount decimal.Decimal, note string) (*RecordResult, error) {
	return s.RecordTransaction(ctx, RecordInput{
		UserID:       userID,
		ActivityType: activity,
		Points:       amount.Abs(),
		Note:         note,
	})
}

// Debit posts a negative single-sided entry.
func (s *Service) Debit(ctx context.Context, userID int64, activity ActivityType, amount decimal.Decimal, note string) (*RecordResult, error) {
	return s.RecordTransaction(ctx, RecordInput{
		UserID:       userID,
		ActivityType: activity,
		Points:       amount.Abs().Neg(),
		Note:         note,
	})
}

// Transfer moves amount from payer to payee as an atomic pair. The returned
// balance is the payee side.
func (s *Service) Transfer(ctx context.Context, payer, payee int64, activity ActivityType, amount decimal.Decimal, note string) (*RecordResult, error) {
	return s.RecordTransaction(ctx, RecordInput{
		UserID:       payee,
		ActivityType: activity,
		Points:       amount.Abs(),
		Note:         note,
		Payer:        &payer,
		Payee:        &payee,
	})
}

// Balance returns the materialized coin balance.
func (s *Service) Balance(ctx context.Context, userID int64) (decimal.Decimal, error) {
	return s.store.Balance(ctx, userID)
}

// HasActivity reports whether the user has any entry of the given activity.
func (s *Service) HasActivity(ctx context.Context, userID int64, activity ActivityType) (bool, error) {
	return s.store.HasActivity(ctx, userID, activity)
}

// TokenBalance returns the spendable token balance.
func (s *Service) TokenBalance(ctx context.Context, userID int64) (decimal.Decimal, error) {
	return s.store.TokenBalance(ctx, userID)
}

// SpendTokens consumes non-expired tokens, oldest expiry first.
func (s *Service) SpendTokens(ctx context.Context, userID int64, amount decimal.Decimal) (decimal.Decimal, error) {
	if amount.Sign() <= 0 {
		return decimal.Zero, common.NewBadRequestError("amount must be positive", nil)
	}
	return s.store.SpendTokens(ctx, userID, amount)
}

// GrantTokens issues campaign tokens with an expiry.
func (s *Service) GrantTokens(ctx context.Context, t *TokenTransaction) (int64, error) {
	if t.UserID <= 0 || t.Tokens.Sign() <= 0 {
		return 0, common.NewBadRequestError("invalid token grant", nil)
	}
	if !t.ExpiredOn.After(t.IssuedOn) {
		return 0, common.NewBadRequestError("token expiry must follow issue time", nil)
	}
	return s.store.RecordTokenGrant(ctx, t)
}

// PurchaseCredit posts the coin credit for a card charge together with its
// purchase record. The two commit atomically so the daily purchase sum never
// under-counts a charged card.
func (s *Service) PurchaseCredit(ctx context.Context, userID int64, points decimal.Decimal, note string, p *PurchaseTransaction) (*RecordResult, error) {
	if userID <= 0 || points.Sign() <= 0 {
		return nil, common.NewBadRequestError("invalid purchase credit", nil)
	}

	result, err := s.store.RecordPurchaseWithCredit(ctx, RecordInput{
		UserID:       userID,
		ActivityType: ActivityPurchase,
		Points:       points,
		Note:         note,
	}, p)
	if err != nil {
		logger.WithContext(ctx).Error("purchase credit write failed",
			zap.Int64("user_id", userID),
			zap.String("external_transaction_id", p.ExternalTransactionID),
			zap.Error(err),
		)
		return nil, common.NewInternalError("failed to record purchase", err)
	}
	return result, nil
}

// SumPurchasesBetween sums card charges in [from, to).
func (s *Service) SumPurchasesBetween(ctx context.Context, userID int64, from, to time.Time) (decimal.Decimal, error) {
	return s.store.SumPurchasesBetween(ctx, userID, from, to)
}
