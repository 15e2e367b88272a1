package incentive

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/transitlab/tsp-api/internal/ledger"
	"github.com/transitlab/tsp-api/internal/trips"
	"github.com/transitlab/tsp-api/pkg/common"
	"github.com/transitlab/tsp-api/pkg/geo"
	"github.com/transitlab/tsp-api/pkg/logger"
)

// RuleStore resolves and replaces per-market rules.
type RuleStore interface {
	Active(ctx context.Context, market string) (*Rule, error)
	Upsert(ctx context.Context, req *UpsertRuleRequest) (*Rule, error)
}

// Ledger is the coin surface the incentive engine pays through.
type Ledger interface {
	Credit(ctx context.Context, userID int64, activity ledger.ActivityType, amount decimal.Decimal, note string) (*ledger.RecordResult, error)
	HasActivity(ctx context.Context, userID int64, activity ledger.ActivityType) (bool, error)
}

// Geofence checks trajectory membership in a market's service area.
type Geofence interface {
	Contains(market string, points []geo.Point) bool
}

// Service converts validated trips into coin rewards.
type Service struct {
	rules    RuleStore
	ledger   Ledger
	geofence Geofence
	drawer   *Drawer
}

// NewService creates a new incentive service
func NewService(rules RuleStore, ledgerSvc Ledger, geofence Geofence, drawer *Drawer) *Service {
	return &Service{rules: rules, ledger: ledgerSvc, geofence: geofence, drawer: drawer}
}

// AwardForTrip computes and credits the reward for a validated trip.
// Returns zero without error when the trip earns nothing.
func (s *Service) AwardForTrip(ctx context.Context, trip *trips.Trip, trajectory []trips.TrajectoryPoint) (decimal.Decimal, error) {
	rule, err := s.rules.Active(ctx, trip.Market)
	if err != nil {
		return decimal.Zero, err
	}
	if rule == nil {
		return decimal.Zero, nil
	}

	if !s.geofence.Contains(trip.Market, toGeoPoints(trajectory)) {
		logger.WithContext(ctx).Info("trip outside service area",
			zap.Int64("trip_id", trip.ID), zap.String("market", trip.Market))
		return decimal.Zero, nil
	}

	amount, err := s.computeAmount(ctx, trip, rule)
	if err != nil {
		return decimal.Zero, err
	}
	if amount.Sign() <= 0 {
		return decimal.Zero, nil
	}

	if _, err := s.ledger.Credit(ctx, trip.UserID, ledger.ActivityIncentive, amount,
		fmt.Sprintf("trip %d incentive", trip.ID)); err != nil {
		return decimal.Zero, err
	}

	logger.WithContext(ctx).Info("trip incentive credited",
		zap.Int64("trip_id", trip.ID),
		zap.Int64("user_id", trip.UserID),
		zap.String("amount", amount.String()),
	)
	return amount, nil
}

func (s *Service) computeAmount(ctx context.Context, trip *trips.Trip, rule *Rule) (decimal.Decimal, error) {
	hasPrior, err := s.ledger.HasActivity(ctx, trip.UserID, ledger.ActivityIncentive)
	if err != nil {
		return decimal.Zero, err
	}
	if !hasPrior {
		return rule.W, nil
	}

	modeRule, ok := rule.Modes[trip.TravelMode]
	if !ok {
		return decimal.Zero, nil
	}
	return s.drawer.Draw(modeRule, rule.L), nil
}

// GetRule returns the active rule for a market.
func (s *Service) GetRule(ctx context.Context, market string) (*Rule, error) {
	rule, err := s.rules.Active(ctx, market)
	if err != nil {
		return nil, common.NewInternalError("failed to load incentive rule", err)
	}
	if rule == nil {
		return nil, common.NewNotFoundError("no incentive rule for market", nil)
	}
	return rule, nil
}

// UpsertRule replaces a market's active rule atomically.
func (s *Service) UpsertRule(ctx context.Context, req *UpsertRuleRequest) (*Rule, error) {
	if len(req.Modes) == 0 {
		return nil, common.NewBadRequestError("modes must not be empty", nil)
	}
	for mode, mr := range req.Modes {
		if mr.Min > mr.Max || mr.Mean < mr.Min || mr.Mean > mr.Max {
			return nil, common.NewBadRequestError(
				fmt.Sprintf("mode %d bounds must satisfy min <= mean <= max", mode), nil)
		}
		if mr.Beta < 0 || mr.Beta > 1 {
			return nil, common.NewBadRequestError(
				fmt.Sprintf("mode %d beta must be within [0,1]", mode), nil)
		}
	}

	rule, err := s.rules.Upsert(ctx, req)
	if err != nil {
		return nil, common.NewInternalError("failed to upsert incentive rule", err)
	}
	return rule, nil
}

func toGeoPoints(points []trips.TrajectoryPoint) []geo.Point {
	out := make([]geo.Point, len(points))
	for i, p := range points {
		out[i] = geo.Point{Lat: p.Latitude, Lon: p.Longitude}
	}
	return out
}
