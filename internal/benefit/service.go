package benefit

import (
	"context"

	"github.com/shopspring/decimal"
)

// Store is the persistence surface for the benefit ledger.
type Store interface {
	Sum(ctx context.Context, userID int64) (decimal.Decimal, error)
	ForRide(ctx context.Context, rideID int64) ([]Transaction, error)
}

// Service tracks Uber benefit credits separately from the coin wallet.
// Writes happen inside ride settlement transactions; this service is the
// read side used for tier benefit accounting.
type Service struct {
	store Store
}

// NewService creates a new benefit service
func NewService(store Store) *Service {
	return &Service{store: store}
}

// Used returns how much benefit a user has consumed: the negated ledger sum,
// clamped at zero.
func (s *Service) Used(ctx context.Context, userID int64) (decimal.Decimal, error) {
	sum, err := s.store.Sum(ctx, userID)
	if err != nil {
		return decimal.Zero, err
	}
	used := sum.Neg()
	if used.Sign() < 0 {
		return decimal.Zero, nil
	}
	return used, nil
}

// ForRide returns the benefit rows tied to one ride.
func (s *Service) ForRide(ctx context.Context, rideID int64) ([]Transaction, error) {
	return s.store.ForRide(ctx, rideID)
}
