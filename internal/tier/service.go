package tier

import (
	"context"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/transitlab/tsp-api/pkg/cache"
	"github.com/transitlab/tsp-api/pkg/logger"
)

// BenefitUsage reports how much Uber credit a user has already consumed.
type BenefitUsage interface {
	Used(ctx context.Context, userID int64) (decimal.Decimal, error)
}

// cachedTier is the cache payload. The available benefit is derived fresh on
// every read because it changes with each ride.
type cachedTier struct {
	Level  Level `json:"level"`
	Points int   `json:"points"`
}

// Service resolves user tiers through the incentive-hook service. Lookups are
// cached briefly and fail open to green so tier outages never block rides.
type Service struct {
	hook    HookClient
	cache   *cache.Manager
	usage   BenefitUsage
}

// NewService creates a new tier service
func NewService(hook HookClient, cacheManager *cache.Manager, usage BenefitUsage) *Service {
	return &Service{hook: hook, cache: cacheManager, usage: usage}
}

// GetUserTier returns the user's level, points, and currently available Uber
// benefit credit.
func (s *Service) GetUserTier(ctx context.Context, userID int64) (*Tier, error) {
	snapshot := s.lookupLevel(ctx, userID)

	available, err := s.availableBenefit(ctx, userID, snapshot.Level)
	if err != nil {
		return nil, err
	}

	return &Tier{
		Level:       snapshot.Level,
		Points:      snapshot.Points,
		UberBenefit: available,
	}, nil
}

// GetUserTierBenefits returns the static rule table entry for a level.
func (s *Service) GetUserTierBenefits(level Level) BenefitRules {
	return RulesForLevel(level)
}

// lookupLevel resolves level and points with a short cache in front of the
// vendor call. Vendor failures degrade to green with a warning; degraded
// results are not cached so recovery is immediate.
func (s *Service) lookupLevel(ctx context.Context, userID int64) cachedTier {
	key := cache.Keys.UserTier(userID)

	var snapshot cachedTier
	if s.cache != nil {
		if err := s.cache.Get(ctx, key, &snapshot); err == nil {
			return snapshot
		}
	}

	points, err := s.hook.FetchPoints(ctx, userID)
	if err != nil {
		logger.WithContext(ctx).Warn("tier lookup failed, defaulting to green",
			zap.Int64("user_id", userID),
			zap.Error(err),
		)
		return cachedTier{Level: LevelGreen, Points: 0}
	}

	snapshot = cachedTier{Level: LevelForPoints(points), Points: points}
	if s.cache != nil {
		if err := s.cache.Set(ctx, key, snapshot, cache.TierTTL); err != nil {
			logger.WithContext(ctx).Warn("tier cache write failed", zap.Error(err))
		}
	}
	return snapshot
}

// availableBenefit is the level deposit minus what the user already used,
// clamped at zero.
func (s *Service) availableBenefit(ctx context.Context, userID int64, level Level) (decimal.Decimal, error) {
	deposit := DepositForLevel(level)
	if deposit.IsZero() {
		return decimal.Zero, nil
	}

	used, err := s.usage.Used(ctx, userID)
	if err != nil {
		return decimal.Zero, err
	}

	available := deposit.Sub(used)
	if available.Sign() < 0 {
		return decimal.Zero, nil
	}
	return available, nil
}
