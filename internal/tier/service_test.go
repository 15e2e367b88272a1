package tier

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/go-redis/redismock/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/transitlab/tsp-api/pkg/cache"
	redisclient "github.com/transitlab/tsp-api/pkg/redis"
)

type mockHook struct {
	mock.Mock
}

func (m *mockHook) FetchPoints(ctx context.Context, userID int64) (int, error) {
	args := m.Called(ctx, userID)
	return args.Int(0), args.Error(1)
}

type mockUsage struct {
	mock.Mock
}

func (m *mockUsage) Used(ctx context.Context, userID int64) (decimal.Decimal, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func TestLevelForPoints(t *testing.T) {
	assert.Equal(t, LevelGreen, LevelForPoints(0))
	assert.Equal(t, LevelGreen, LevelForPoints(500))
	assert.Equal(t, LevelBronze, LevelForPoints(501))
	assert.Equal(t, LevelBronze, LevelForPoints(1000))
	assert.Equal(t, LevelSilver, LevelForPoints(1001))
	assert.Equal(t, LevelSilver, LevelForPoints(1500))
	assert.Equal(t, LevelGold, LevelForPoints(1501))
}

func TestGetUserTierCacheMiss(t *testing.T) {
	db, redisMock := redismock.NewClientMock()
	manager := cache.NewManager(redisclient.Wrap(db))

	hook := new(mockHook)
	usage := new(mockUsage)
	svc := NewService(hook, manager, usage)
	ctx := context.Background()

	key := cache.Keys.UserTier(1006)
	redisMock.ExpectGet(key).RedisNil()

	hook.On("FetchPoints", ctx, int64(1006)).Return(1200, nil).Once()

	payload, _ := json.Marshal(cachedTier{Level: LevelSilver, Points: 1200})
	redisMock.ExpectSet(key, string(payload), cache.TierTTL).SetVal("OK")

	usage.On("Used", ctx, int64(1006)).Return(decimal.NewFromInt(2), nil).Once()

	tier, err := svc.GetUserTier(ctx, 1006)
	require.NoError(t, err)
	assert.Equal(t, LevelSilver, tier.Level)
	assert.Equal(t, 1200, tier.Points)
	assert.True(t, tier.UberBenefit.Equal(decimal.NewFromInt(4)), tier.UberBenefit.String())

	require.NoError(t, redisMock.ExpectationsWereMet())
	hook.AssertExpectations(t)
}

func TestGetUserTierCacheHitSkipsHook(t *testing.T) {
	db, redisMock := redismock.NewClientMock()
	manager := cache.NewManager(redisclient.Wrap(db))

	hook := new(mockHook)
	usage := new(mockUsage)
	svc := NewService(hook, manager, usage)
	ctx := context.Background()

	payload, _ := json.Marshal(cachedTier{Level: LevelGold, Points: 1600})
	redisMock.ExpectGet(cache.Keys.UserTier(1006)).SetVal(string(payload))

	usage.On("Used", ctx, int64(1006)).Return(decimal.Zero, nil).Once()

	tier, err := svc.GetUserTier(ctx, 1006)
	require.NoError(t, err)
	assert.Equal(t, LevelGold, tier.Level)
	assert.True(t, tier.UberBenefit.Equal(decimal.NewFromInt(8)))

	hook.AssertNotCalled(t, "FetchPoints")
}

func TestGetUserTierFailsOpenToGreen(t *testing.T) {
	db, redisMock := redismock.NewClientMock()
	manager := cache.NewManager(redisclient.Wrap(db))

	hook := new(mockHook)
	usage := new(mockUsage)
	svc := NewService(hook, manager, usage)
	ctx := context.Background()

	redisMock.ExpectGet(cache.Keys.UserTier(1006)).RedisNil()
	hook.On("FetchPoints", ctx, int64(1006)).Return(0, errors.New("hook down")).Once()

	tier, err := svc.GetUserTier(ctx, 1006)
	require.NoError(t, err)
	assert.Equal(t, LevelGreen, tier.Level)
	assert.Equal(t, 0, tier.Points)
	assert.True(t, tier.UberBenefit.IsZero())

	// Green has no deposit, so usage is never consulted.
	usage.AssertNotCalled(t, "Used")
}

func TestAvailableBenefitClampsAtZero(t *testing.T) {
	hook := new(mockHook)
	usage := new(mockUsage)
	svc := NewService(hook, nil, usage)
	ctx := context.Background()

	usage.On("Used", ctx, int64(1006)).Return(decimal.NewFromInt(10), nil).Once()

	available, err := svc.availableBenefit(ctx, 1006, LevelBronze)
	require.NoError(t, err)
	assert.True(t, available.IsZero())
}

func TestBenefitRuleTable(t *testing.T) {
	gold := RulesForLevel(LevelGold)
	assert.True(t, gold.RaffleMultiplier.Equal(decimal.NewFromInt(4)))
	assert.Equal(t, "1.5", gold.ReferralMultiplier.String())
	assert.True(t, gold.UberCredit.Equal(decimal.NewFromInt(8)))

	// Unknown levels fall back to green.
	fallback := RulesForLevel(Level("platinum"))
	assert.Equal(t, LevelGreen, fallback.Level)
}

func TestRenderToast(t *testing.T) {
	rules := RulesForLevel(LevelGreen)
	assert.Equal(t, "We've added 1 Coin to your Wallet!", RenderToast(rules.Toast, decimal.NewFromInt(1)))
	assert.Equal(t, "We've added 1.15 Coins to your Wallet!", RenderToast(rules.Toast, decimal.RequireFromString("1.15")))
}
