package referral

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	hashids "github.com/speps/go-hashids/v2"
	"go.uber.org/zap"

	"github.com/transitlab/tsp-api/internal/ledger"
	"github.com/transitlab/tsp-api/internal/tier"
	"github.com/transitlab/tsp-api/pkg/common"
	"github.com/transitlab/tsp-api/pkg/logger"
)

// Store is the referral persistence surface. History and redemption rows are
// written inside the ledger transaction that pays the reward.
type Store interface {
	UserCreatedOn(ctx context.Context, userID int64) (time.Time, error)
	UserExists(ctx context.Context, userID int64) (bool, error)
	HasRedeemed(ctx context.Context, receiverID int64) (bool, error)
	InsertHistoryTx(ctx context.Context, tx pgx.Tx, h *History) (int64, error)
	GetPromo(ctx context.Context, code string) (*PromoCode, error)
	HasRedeemedPromo(ctx context.Context, userID, promoID int64) (bool, error)
	RecordPromoRedemptionTx(ctx context.Context, tx pgx.Tx, userID, promoID int64, amount decimal.Decimal) error
}

// Ledger is the transactional coin surface rewards pay through. Credits and
// their audit rows commit or roll back together, so a retried request can
// never pay twice.
type Ledger interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context, txr ledger.Recorder) error) error
}

// Tiers resolves the receiver's tier for the reward multiplier.
type Tiers interface {
	GetUserTier(ctx context.Context, userID int64) (*tier.Tier, error)
}

// Config carries the referral economics.
type Config struct {
	Coin       decimal.Decimal
	WindowDays int
}

// Service redeems referral codes and promo codes.
type Service struct {
	store Store
	coins Ledger
	tiers Tiers
	codec *hashids.HashID
	cfg   Config
	now   func() time.Time
}

// NewService creates a new referral service. Referral codes are hashids of
// the sender's user id.
func NewService(store Store, coins Ledger, tiers Tiers, hashSalt string, cfg Config) (*Service, error) {
	data := hashids.NewData()
	data.Salt = hashSalt
	data.MinLength = 8
	codec, err := hashids.NewWithData(data)
	if err != nil {
		return nil, fmt.Errorf("init referral codec: %w", err)
	}
	return &Service{
		store: store,
		coins: coins,
		tiers: tiers,
		codec: codec,
		cfg:   cfg,
		now:   time.Now,
	}, nil
}

// EncodeCode renders a user id as a shareable referral code.
func (s *Service) EncodeCode(userID int64) (string, error) {
	return s.codec.EncodeInt64([]int64{userID})
}

// RedeemReferral applies a referral code for the calling user. The window is
// measured in local calendar days from account creation in the caller's
// zone.
func (s *Service) RedeemReferral(ctx context.Context, receiverID int64, zone, code string) (*RedeemReferralResponse, error) {
	senderID, err := s.decodeSender(code)
	if err != nil {
		return nil, common.NewBusinessError(common.CodeReferralInvalid, "invalid referral code")
	}
	if senderID == receiverID {
		return nil, common.NewBusinessError(common.CodeReferralSelf, "you cannot refer yourself")
	}

	redeemed, err := s.store.HasRedeemed(ctx, receiverID)
	if err != nil {
		return nil, common.NewInternalError("failed to check referral history", err)
	}
	if redeemed {
		return nil, common.NewBusinessError(common.CodeReferralRedeemed, "referral already redeemed")
	}

	exists, err := s.store.UserExists(ctx, senderID)
	if err != nil {
		return nil, common.NewInternalError("failed to look up sender", err)
	}
	if !exists {
		return nil, common.NewBusinessError(common.CodeReferralNotEligible, "referral code is not eligible")
	}

	createdOn, err := s.store.UserCreatedOn(ctx, receiverID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.NewBusinessError(common.CodeReferralNotEligible, "referral code is not eligible")
	}
	if err != nil {
		return nil, common.NewInternalError("failed to look up account", err)
	}
	if s.daysSince(createdOn, zone) > s.cfg.WindowDays {
		return nil, common.NewBusinessError(common.CodeReferralExpired, "referral window has expired")
	}

	userTier, err := s.tiers.GetUserTier(ctx, receiverID)
	if err != nil {
		return nil, common.NewInternalError("failed to resolve tier", err)
	}
	rules := tier.RulesForLevel(userTier.Level)
	reward := s.cfg.Coin.Mul(rules.ReferralMultiplier).Round(2)

	// Both credits and the history row commit together. The unique index on
	// receiver_user_id turns a concurrent double redemption into a rollback.
	var referralID int64
	err = s.coins.WithinTransaction(ctx, func(ctx context.Context, txr ledger.Recorder) error {
		if _, err := txr.Record(ctx, ledger.RecordInput{
			UserID:       receiverID,
			ActivityType: ledger.ActivityReward,
			Points:       reward,
			Note:         fmt.Sprintf("referral from user %d", senderID),
		}); err != nil {
			return err
		}

		if _, err := txr.Record(ctx, ledger.RecordInput{
			UserID:       senderID,
			ActivityType: ledger.ActivityReward,
			Points:       s.cfg.Coin,
			Note:         fmt.Sprintf("referral reward for inviting user %d", receiverID),
		}); err != nil {
			return err
		}

		id, err := s.store.InsertHistoryTx(ctx, txr.Tx(), &History{
			SenderUserID: senderID,
			ReceiverID:   receiverID,
			ReferralCode: code,
			RewardAmount: reward,
		})
		if err != nil {
			return err
		}
		referralID = id
		return nil
	})
	if err != nil {
		logger.WithContext(ctx).Error("referral redemption failed",
			zap.Int64("receiver", receiverID), zap.Error(err))
		return nil, common.NewInternalError("failed to record referral", err)
	}

	return &RedeemReferralResponse{
		ReferralID: referralID,
		Toast:      tier.RenderToast(rules.Toast, reward),
	}, nil
}

// RedeemPromo applies a promo code for the calling user.
func (s *Service) RedeemPromo(ctx context.Context, userID int64, code string) (*RedeemPromoResponse, error) {
	promo, err := s.store.GetPromo(ctx, code)
	if err != nil {
		return nil, common.NewInternalError("failed to look up promo code", err)
	}
	if promo == nil {
		return nil, common.NewBusinessError(common.CodePromoInvalid, "invalid promo code")
	}
	if promo.ExpiresOn != nil && promo.ExpiresOn.Before(s.now()) {
		return nil, common.NewBusinessError(common.CodePromoInvalid, "invalid promo code")
	}

	used, err := s.store.HasRedeemedPromo(ctx, userID, promo.ID)
	if err != nil {
		return nil, common.NewInternalError("failed to check promo history", err)
	}
	if used {
		return nil, common.NewBusinessError(common.CodePromoInvalid, "invalid promo code")
	}

	err = s.coins.WithinTransaction(ctx, func(ctx context.Context, txr ledger.Recorder) error {
		if _, err := txr.Record(ctx, ledger.RecordInput{
			UserID:       userID,
			ActivityType: ledger.ActivityReward,
			Points:       promo.Amount,
			Note:         fmt.Sprintf("promo code %s", promo.Code),
		}); err != nil {
			return err
		}
		return s.store.RecordPromoRedemptionTx(ctx, txr.Tx(), userID, promo.ID, promo.Amount)
	})
	if err != nil {
		return nil, common.NewInternalError("failed to record promo redemption", err)
	}

	return &RedeemPromoResponse{
		Type:  promo.Type,
		Toast: tier.RenderToast("We've added {1} Coin{2} to your Wallet!", promo.Amount),
	}, nil
}

func (s *Service) decodeSender(code string) (int64, error) {
	ids, err := s.codec.DecodeInt64WithError(code)
	if err != nil {
		return 0, err
	}
	if len(ids) != 1 || ids[0] <= 0 {
		return 0, errors.New("malformed referral code")
	}
	return ids[0], nil
}

// daysSince counts local calendar days between the account creation date
// and today in the user's zone. Unknown zones fall back to UTC.
func (s *Service) daysSince(createdOn time.Time, zone string) int {
	loc, err := time.LoadLocation(zone)
	if err != nil || zone == "" {
		loc = time.UTC
	}

	created := createdOn.In(loc)
	now := s.now().In(loc)
	createdDay := time.Date(created.Year(), created.Month(), created.Day(), 0, 0, 0, 0, loc)
	nowDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	return int(nowDay.Sub(createdDay).Hours() / 24)
}
