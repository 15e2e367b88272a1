package benefit

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) Sum(ctx context.Context, userID int64) (decimal.Decimal, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *mockStore) ForRide(ctx context.Context, rideID int64) ([]Transaction, error) {
	args := m.Called(ctx, rideID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Transaction), args.Error(1)
}

func TestUsedNegatesLedgerSum(t *testing.T) {
	store := &mockStore{}
	svc := NewService(store)

	// Net ledger sum of -6 means 6 coins of benefit were consumed.
	store.On("Sum", mock.Anything, int64(1003)).Return(decimal.NewFromInt(-6), nil)

	used, err := svc.Used(context.Background(), 1003)
	require.NoError(t, err)
	assert.True(t, used.Equal(decimal.NewFromInt(6)), "used = %s", used)
}

func TestUsedClampsAtZero(t *testing.T) {
	store := &mockStore{}
	svc := NewService(store)

	store.On("Sum", mock.Anything, int64(1003)).Return(decimal.NewFromInt(4), nil)

	used, err := svc.Used(context.Background(), 1003)
	require.NoError(t, err)
	assert.True(t, used.IsZero())
}

func TestForRide(t *testing.T) {
	store := &mockStore{}
	svc := NewService(store)

	rows := []Transaction{
		{ID: 1, UserID: 1003, BenefitAmount: decimal.NewFromInt(5), TransactionID: 42},
		{ID: 2, UserID: 1003, BenefitAmount: decimal.NewFromInt(-5), TransactionID: 42},
	}
	store.On("ForRide", mock.Anything, int64(42)).Return(rows, nil)

	got, err := svc.ForRide(context.Background(), 42)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}
