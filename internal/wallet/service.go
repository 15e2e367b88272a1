package wallet

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/transitlab/tsp-api/internal/ledger"
	"github.com/transitlab/tsp-api/internal/payment"
	"github.com/transitlab/tsp-api/pkg/common"
	"github.com/transitlab/tsp-api/pkg/logger"
)

// Store is the persistence surface for wallet state and the product catalog.
type Store interface {
	GetWallet(ctx context.Context, userID int64) (*ledger.Wallet, error)
	UpdateSettings(ctx context.Context, userID int64, autoRefill bool, belowBalance decimal.Decimal, refillPlanID *int64) error
	DisableAutoRefill(ctx context.Context, userID int64) error
	SetPaymentCustomerID(ctx context.Context, userID int64, customerID string) error
	GetProduct(ctx context.Context, id int64, kind ProductKind) (*PointProduct, error)
	ListProducts(ctx context.Context, kind ProductKind) ([]PointProduct, error)
	IsBlocked(ctx context.Context, userID int64) (bool, error)
	Block(ctx context.Context, userID int64) error
	RecordRedemption(ctx context.Context, t *RedemptionTransaction) (int64, error)
	SumRedemptionsBetween(ctx context.Context, userID int64, from, to time.Time) (decimal.Decimal, error)
	UserZone(ctx context.Context, userID int64) (string, error)
}

// Ledger is the slice of the ledger service the wallet needs.
type Ledger interface {
	Debit(ctx context.Context, userID int64, activity ledger.ActivityType, amount decimal.Decimal, note string) (*ledger.RecordResult, error)
	TokenBalance(ctx context.Context, userID int64) (decimal.Decimal, error)
	PurchaseCredit(ctx context.Context, userID int64, points decimal.Decimal, note string, p *ledger.PurchaseTransaction) (*ledger.RecordResult, error)
	SumPurchasesBetween(ctx context.Context, userID int64, from, to time.Time) (decimal.Decimal, error)
}

// Notifier delivers wallet lifecycle messages. Failures are logged, never
// surfaced to the caller.
type Notifier interface {
	SendPurchaseLimitWarning(ctx context.Context, userID int64)
	SendSuspensionNotice(ctx context.Context, userID int64)
	SendAutoRefillDisabled(ctx context.Context, userID int64)
}

// Config carries the wallet business limits.
type Config struct {
	DailyPurchaseLimit decimal.Decimal // USD charged per local calendar day
	DailyRedeemLimit   decimal.Decimal // coins redeemed per local calendar day
	Currency           string
}

// Service wraps the ledger with user-facing wallet rules: suspension, daily
// limits, and auto-refill.
type Service struct {
	store    Store
	ledger   Ledger
	charger  payment.Charger
	offenses OffenseTracker
	notifier Notifier
	cfg      Config
	now      func() time.Time
}

// NewService creates a new wallet service
func NewService(store Store, ledgerSvc Ledger, charger payment.Charger, offenses OffenseTracker, notifier Notifier, cfg Config) *Service {
	return &Service{
		store:    store,
		ledger:   ledgerSvc,
		charger:  charger,
		offenses: offenses,
		notifier: notifier,
		cfg:      cfg,
		now:      time.Now,
	}
}

// GetSummary returns both currency balances and the refill settings. Reads
// never mutate balances; the wallet row itself is created lazily.
func (s *Service) GetSummary(ctx context.Context, userID int64) (*Summary, error) {
	w, err := s.store.GetWallet(ctx, userID)
	if err != nil {
		return nil, common.NewInternalError("failed to load wallet", err)
	}

	tokens, err := s.ledger.TokenBalance(ctx, userID)
	if err != nil {
		return nil, common.NewInternalError("failed to load token balance", err)
	}

	return &Summary{
		Balance: BalanceSummary{Coins: w.Balance, Tokens: tokens},
		AutoRefill: AutoRefillSetting{
			Enabled:      w.AutoRefill,
			BelowBalance: w.BelowBalance,
			RefillPlanID: w.RefillPlanID,
		},
		PaymentCustomerID: w.PaymentCustomerID,
	}, nil
}

// UpdateSettings validates and stores the auto-refill configuration.
func (s *Service) UpdateSettings(ctx context.Context, userID int64, req UpdateSettingsRequest) (*Summary, error) {
	if req.AutoRefill && req.RefillPlanID == nil {
		return nil, common.NewBusinessError(common.CodeRefillPlanNotFound, "auto refill requires a refill plan")
	}
	if req.RefillPlanID != nil {
		if _, err := s.store.GetProduct(ctx, *req.RefillPlanID, KindPurchase); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, common.NewBusinessError(common.CodeRefillPlanNotFound, "refill plan not found")
			}
			return nil, common.NewInternalError("failed to load refill plan", err)
		}
	}
	if req.BelowBalance.Sign() < 0 {
		return nil, common.NewBadRequestError("below_balance must not be negative", nil)
	}

	if _, err := s.store.GetWallet(ctx, userID); err != nil {
		return nil, common.NewInternalError("failed to load wallet", err)
	}
	if err := s.store.UpdateSettings(ctx, userID, req.AutoRefill, req.BelowBalance, req.RefillPlanID); err != nil {
		return nil, common.NewInternalError("failed to update wallet settings", err)
	}

	return s.GetSummary(ctx, userID)
}

// ListProducts returns the active catalog for a kind.
func (s *Service) ListProducts(ctx context.Context, kind ProductKind) ([]PointProduct, error) {
	return s.store.ListProducts(ctx, kind)
}

// Debit removes coins with suspension and balance enforcement, then runs the
// auto-refill trigger. Zone is the caller's IANA time zone for the refill
// purchase window.
func (s *Service) Debit(ctx context.Context, userID int64, zone string, activity ledger.ActivityType, amount decimal.Decimal, note string) (*ledger.RecordResult, error) {
	if err := s.requireNotBlocked(ctx, userID); err != nil {
		return nil, err
	}

	w, err := s.store.GetWallet(ctx, userID)
	if err != nil {
		return nil, common.NewInternalError("failed to load wallet", err)
	}
	if w.Balance.LessThan(amount) && !ledger.IsServiceAccount(userID) {
		return nil, common.NewBusinessError(common.CodePointInsufficient, "insufficient coin balance")
	}

	result, err := s.ledger.Debit(ctx, userID, activity, amount, note)
	if err != nil {
		return nil, err
	}

	s.maybeAutoRefill(ctx, w, zone, result.Balance)
	return result, nil
}

// RefillIfLow runs the auto-refill trigger against the current balance. Ride
// settlement moves coins outside this service and calls it after commit, so
// a settled or booked ride can still top the wallet back up.
func (s *Service) RefillIfLow(ctx context.Context, userID int64) {
	w, err := s.store.GetWallet(ctx, userID)
	if err != nil {
		logger.WithContext(ctx).Warn("auto refill balance check failed",
			zap.Int64("user_id", userID), zap.Error(err))
		return
	}

	zone, err := s.store.UserZone(ctx, userID)
	if err != nil {
		zone = "UTC"
	}
	s.maybeAutoRefill(ctx, w, zone, w.Balance)
}

// BuyPointProduct charges the user's card for a coin bundle, enforcing the
// daily purchase limit with automatic suspension on repeat breaches.
func (s *Service) BuyPointProduct(ctx context.Context, userID int64, zone string, productID int64) (*ledger.RecordResult, error) {
	if err := s.requireNotBlocked(ctx, userID); err != nil {
		return nil, err
	}

	product, err := s.store.GetProduct(ctx, productID, KindPurchase)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, common.NewNotFoundError("point product not found", err)
		}
		return nil, common.NewInternalError("failed to load product", err)
	}

	w, err := s.store.GetWallet(ctx, userID)
	if err != nil {
		return nil, common.NewInternalError("failed to load wallet", err)
	}

	if err := s.enforceDailyPurchaseLimit(ctx, userID, zone, product.Amount); err != nil {
		return nil, err
	}

	if w.PaymentCustomerID == nil {
		return nil, common.NewBusinessError(common.CodeVendorPayment, "no payment method on file")
	}

	externalID, err := s.charger.Charge(ctx, *w.PaymentCustomerID, product.Amount, product.Currency,
		fmt.Sprintf("coin purchase: %s", product.Name),
		map[string]string{"user_id": fmt.Sprintf("%d", userID), "product_id": fmt.Sprintf("%d", productID)},
	)
	if err != nil {
		return nil, err
	}

	result, err := s.ledger.PurchaseCredit(ctx, userID, product.Points,
		fmt.Sprintf("purchase product %d", productID), &ledger.PurchaseTransaction{
			UserID:                userID,
			Points:                product.Points,
			Amount:                product.Amount,
			Currency:              product.Currency,
			ExternalTransactionID: externalID,
		})
	if err != nil {
		// The card was charged but nothing landed in the ledger. Reverse the
		// charge so the user is not billed for coins they never received.
		logger.WithContext(ctx).Error("coin credit failed after card charge, refunding",
			zap.Int64("user_id", userID),
			zap.String("external_transaction_id", externalID),
			zap.Error(err),
		)
		if _, refundErr := s.charger.Refund(ctx, externalID, nil, "coin credit failed"); refundErr != nil {
			logger.WithContext(ctx).Error("refund of failed purchase also failed",
				zap.Int64("user_id", userID),
				zap.String("external_transaction_id", externalID),
				zap.Error(refundErr),
			)
		}
		return nil, err
	}

	return result, nil
}

// Redeem spends coins on a catalog item, bounded by the daily redeem limit.
func (s *Service) Redeem(ctx context.Context, userID int64, zone string, itemID int64) (*ledger.RecordResult, error) {
	if err := s.requireNotBlocked(ctx, userID); err != nil {
		return nil, err
	}

	item, err := s.store.GetProduct(ctx, itemID, KindRedeem)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, common.NewNotFoundError("redeem item not found", err)
		}
		return nil, common.NewInternalError("failed to load redeem item", err)
	}

	from, to, _ := localDayWindow(zone, s.now())
	redeemed, err := s.store.SumRedemptionsBetween(ctx, userID, from, to)
	if err != nil {
		return nil, common.NewInternalError("failed to sum redemptions", err)
	}
	if redeemed.Add(item.Points).GreaterThan(s.cfg.DailyRedeemLimit) {
		return nil, common.NewBusinessError(common.CodeRedeemDailyLimit, "daily redeem limit reached")
	}

	// The debit path owns the balance check and the auto-refill trigger, so a
	// redemption that drops the balance below the threshold refills like any
	// other spend.
	result, err := s.Debit(ctx, userID, zone, ledger.ActivitySpend, item.Points,
		fmt.Sprintf("redeem item %d", itemID))
	if err != nil {
		return nil, err
	}

	if _, err := s.store.RecordRedemption(ctx, &RedemptionTransaction{
		UserID:             userID,
		PointTransactionID: result.TransactionID,
		ItemID:             itemID,
		Points:             item.Points,
	}); err != nil {
		logger.WithContext(ctx).Error("redemption record write failed",
			zap.Int64("user_id", userID),
			zap.Error(err),
		)
	}

	return result, nil
}

// IsBlocked reports whether the user's debit operations are suspended.
func (s *Service) IsBlocked(ctx context.Context, userID int64) (bool, error) {
	return s.store.IsBlocked(ctx, userID)
}

func (s *Service) requireNotBlocked(ctx context.Context, userID int64) error {
	blocked, err := s.store.IsBlocked(ctx, userID)
	if err != nil {
		return common.NewInternalError("failed to check suspension", err)
	}
	if blocked {
		return common.NewForbiddenError(common.CodeUserCoinSuspended, "your coin account is suspended, please contact support")
	}
	return nil
}

// enforceDailyPurchaseLimit applies the escalation rules: a breach warns and
// rejects; a second breach in the same local day suspends the user.
func (s *Service) enforceDailyPurchaseLimit(ctx context.Context, userID int64, zone string, amount decimal.Decimal) error {
	from, to, day := localDayWindow(zone, s.now())

	spent, err := s.ledger.SumPurchasesBetween(ctx, userID, from, to)
	if err != nil {
		return common.NewInternalError("failed to sum purchases", err)
	}

	if spent.Add(amount).LessThanOrEqual(s.cfg.DailyPurchaseLimit) {
		return nil
	}

	offenses, err := s.offenses.RecordOffense(ctx, userID, day)
	if err != nil {
		logger.WithContext(ctx).Warn("offense counter unavailable",
			zap.Int64("user_id", userID), zap.Error(err))
		offenses = 1
	}

	if offenses >= 2 || spent.GreaterThan(s.cfg.DailyPurchaseLimit) {
		if err := s.store.Block(ctx, userID); err != nil {
			logger.WithContext(ctx).Error("failed to suspend user",
				zap.Int64("user_id", userID), zap.Error(err))
		} else {
			s.notifier.SendSuspensionNotice(ctx, userID)
		}
	}

	s.notifier.SendPurchaseLimitWarning(ctx, userID)
	return common.NewBusinessError(common.CodePurchaseDailyLimit, "daily coin purchase limit reached")
}

// maybeAutoRefill runs after every debit. Failures never affect the debit:
// the refill is abandoned, auto_refill is switched off, and the user is
// notified.
func (s *Service) maybeAutoRefill(ctx context.Context, w *ledger.Wallet, zone string, newBalance decimal.Decimal) {
	if !w.AutoRefill || newBalance.GreaterThanOrEqual(w.BelowBalance) {
		return
	}
	if w.PaymentCustomerID == nil {
		// No saved card: skip without an error surface.
		return
	}
	if w.RefillPlanID == nil {
		return
	}

	if _, err := s.BuyPointProduct(ctx, w.UserID, zone, *w.RefillPlanID); err != nil {
		logger.WithContext(ctx).Warn("auto refill failed, disabling",
			zap.Int64("user_id", w.UserID),
			zap.Error(err),
		)
		if err := s.store.DisableAutoRefill(ctx, w.UserID); err != nil {
			logger.WithContext(ctx).Error("failed to disable auto refill",
				zap.Int64("user_id", w.UserID), zap.Error(err))
		}
		s.notifier.SendAutoRefillDisabled(ctx, w.UserID)
	}
}

// localDayWindow converts now into the caller's zone and returns the local
// calendar day as a half-open UTC window plus its date key. Unknown zones
// fall back to UTC.
func localDayWindow(zone string, now time.Time) (time.Time, time.Time, string) {
	loc, err := time.LoadLocation(zone)
	if err != nil || zone == "" {
		loc = time.UTC
	}

	local := now.In(loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	return start.UTC(), start.AddDate(0, 0, 1).UTC(), start.Format("2006-01-02")
}
