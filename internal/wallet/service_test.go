package wallet

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/transitlab/tsp-api/internal/ledger"
	"github.com/transitlab/tsp-api/pkg/common"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) GetWallet(ctx context.Context, userID int64) (*ledger.Wallet, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.Wallet), args.Error(1)
}

func (m *mockStore) UpdateSettings(ctx context.Context, userID int64, autoRefill bool, belowBalance decimal.Decimal, refillPlanID *int64) error {
	args := m.Called(ctx, userID, autoRefill, belowBalance, refillPlanID)
	return args.Error(0)
}

func (m *mockStore) DisableAutoRefill(ctx context.Context, userID int64) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func (m *mockStore) SetPaymentCustomerID(ctx context.Context, userID int64, customerID string) error {
	args := m.Called(ctx, userID, customerID)
	return args.Error(0)
}

func (m *mockStore) GetProduct(ctx context.Context, id int64, kind ProductKind) (*PointProduct, error) {
	args := m.Called(ctx, id, kind)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*PointProduct), args.Error(1)
}

func (m *mockStore) ListProducts(ctx context.Context, kind ProductKind) ([]PointProduct, error) {
	args := m.Called(ctx, kind)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]PointProduct), args.Error(1)
}

func (m *mockStore) IsBlocked(ctx context.Context, userID int64) (bool, error) {
	args := m.Called(ctx, userID)
	return args.Bool(0), args.Error(1)
}

func (m *mockStore) Block(ctx context.Context, userID int64) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func (m *mockStore) RecordRedemption(ctx context.Context, t *RedemptionTransaction) (int64, error) {
	args := m.Called(ctx, t)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockStore) SumRedemptionsBetween(ctx context.Context, userID int64, from, to time.Time) (decimal.Decimal, error) {
	args := m.Called(ctx, userID, from, to)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *mockStore) UserZone(ctx context.Context, userID int64) (string, error) {
	args := m.Called(ctx, userID)
	return args.String(0), args.Error(1)
}

type mockLedger struct {
	mock.Mock
}

func (m *mockLedger) Debit(ctx context.Context, userID int64, activity ledger.ActivityType, amount decimal.Decimal, note string) (*ledger.RecordResult, error) {
	args := m.Called(ctx, userID, activity, amount, note)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.RecordResult), args.Error(1)
}

func (m *mockLedger) TokenBalance(ctx context.Context, userID int64) (decimal.Decimal, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *mockLedger) PurchaseCredit(ctx context.Context, userID int64, points decimal.Decimal, note string, p *ledger.PurchaseTransaction) (*ledger.RecordResult, error) {
	args := m.Called(ctx, userID, points, note, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.RecordResult), args.Error(1)
}

func (m *mockLedger) SumPurchasesBetween(ctx context.Context, userID int64, from, to time.Time) (decimal.Decimal, error) {
	args := m.Called(ctx, userID, from, to)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

type mockCharger struct {
	mock.Mock
}

func (m *mockCharger) EnsureCustomer(ctx context.Context, email, name string, metadata map[string]string) (string, error) {
	args := m.Called(ctx, email, name, metadata)
	return args.String(0), args.Error(1)
}

func (m *mockCharger) Charge(ctx context.Context, customerID string, amount decimal.Decimal, currency, description string, metadata map[string]string) (string, error) {
	args := m.Called(ctx, customerID, amount, currency, description, metadata)
	return args.String(0), args.Error(1)
}

func (m *mockCharger) Refund(ctx context.Context, externalTransactionID string, amount *decimal.Decimal, reason string) (string, error) {
	args := m.Called(ctx, externalTransactionID, amount, reason)
	return args.String(0), args.Error(1)
}

type mockOffenses struct {
	mock.Mock
}

func (m *mockOffenses) RecordOffense(ctx context.Context, userID int64, day string) (int64, error) {
	args := m.Called(ctx, userID, day)
	return args.Get(0).(int64), args.Error(1)
}

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) SendPurchaseLimitWarning(ctx context.Context, userID int64) {
	m.Called(ctx, userID)
}

func (m *mockNotifier) SendSuspensionNotice(ctx context.Context, userID int64) {
	m.Called(ctx, userID)
}

func (m *mockNotifier) SendAutoRefillDisabled(ctx context.Context, userID int64) {
	m.Called(ctx, userID)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

type fixture struct {
	store    *mockStore
	ledger   *mockLedger
	charger  *mockCharger
	offenses *mockOffenses
	notifier *mockNotifier
	svc      *Service
}

func newFixture() *fixture {
	f := &fixture{
		store:    new(mockStore),
		ledger:   new(mockLedger),
		charger:  new(mockCharger),
		offenses: new(mockOffenses),
		notifier: new(mockNotifier),
	}
	f.svc = NewService(f.store, f.ledger, f.charger, f.offenses, f.notifier, Config{
		DailyPurchaseLimit: dec("100"),
		DailyRedeemLimit:   dec("50"),
		Currency:           "usd",
	})
	return f
}

func wallet(balance string) *ledger.Wallet {
	return &ledger.Wallet{UserID: 1006, Balance: dec(balance)}
}

func assertCode(t *testing.T, err error, code int) {
	t.Helper()
	require.Error(t, err)
	appErr, ok := common.AsAppError(err)
	require.True(t, ok, "expected AppError, got %v", err)
	assert.Equal(t, code, appErr.Code)
}

func TestGetSummary(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	planID := int64(1)
	custID := "cus_123"
	f.store.On("GetWallet", ctx, int64(1006)).Return(&ledger.Wallet{
		UserID: 1006, Balance: dec("4.99"), AutoRefill: true,
		BelowBalance: dec("2"), RefillPlanID: &planID, PaymentCustomerID: &custID,
	}, nil).Once()
	f.ledger.On("TokenBalance", ctx, int64(1006)).Return(dec("10"), nil).Once()

	summary, err := f.svc.GetSummary(ctx, 1006)
	require.NoError(t, err)
	assert.True(t, summary.Balance.Coins.Equal(dec("4.99")))
	assert.True(t, summary.Balance.Tokens.Equal(dec("10")))
	assert.True(t, summary.AutoRefill.Enabled)
	assert.Equal(t, &custID, summary.PaymentCustomerID)
}

func TestUpdateSettingsPlanNotFound(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	planID := int64(99)
	f.store.On("GetProduct", ctx, planID, KindPurchase).Return(nil, pgx.ErrNoRows).Once()

	_, err := f.svc.UpdateSettings(ctx, 1006, UpdateSettingsRequest{
		AutoRefill: true, BelowBalance: dec("5"), RefillPlanID: &planID,
	})
	assertCode(t, err, common.CodeRefillPlanNotFound)

	// Enabling auto refill without a plan is the same failure.
	_, err = f.svc.UpdateSettings(ctx, 1006, UpdateSettingsRequest{AutoRefill: true})
	assertCode(t, err, common.CodeRefillPlanNotFound)
}

func TestDebitBlockedUser(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.store.On("IsBlocked", ctx, int64(1006)).Return(true, nil).Once()

	_, err := f.svc.Debit(ctx, 1006, "UTC", ledger.ActivitySpend, dec("5"), "ride")
	assertCode(t, err, common.CodeUserCoinSuspended)
	f.ledger.AssertNotCalled(t, "Debit")
}

func TestDebitInsufficientBalance(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.store.On("IsBlocked", ctx, int64(1006)).Return(false, nil).Once()
	f.store.On("GetWallet", ctx, int64(1006)).Return(wallet("3"), nil).Once()

	_, err := f.svc.Debit(ctx, 1006, "UTC", ledger.ActivitySpend, dec("5"), "ride")
	assertCode(t, err, common.CodePointInsufficient)
}

func TestBuyPointProductSuccess(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	custID := "cus_123"
	f.store.On("IsBlocked", ctx, int64(1006)).Return(false, nil).Once()
	f.store.On("GetProduct", ctx, int64(1), KindPurchase).Return(&PointProduct{
		ID: 1, Kind: KindPurchase, Name: "starter", Points: dec("4.99"), Amount: dec("4.99"), Currency: "usd", Active: true,
	}, nil).Once()
	f.store.On("GetWallet", ctx, int64(1006)).Return(&ledger.Wallet{
		UserID: 1006, Balance: decimal.Zero, PaymentCustomerID: &custID,
	}, nil).Once()
	f.ledger.On("SumPurchasesBetween", ctx, int64(1006), mock.Anything, mock.Anything).Return(decimal.Zero, nil).Once()
	f.charger.On("Charge", ctx, custID, mock.Anything, "usd", mock.Anything, mock.Anything).Return("pi_1", nil).Once()
	f.ledger.On("PurchaseCredit", ctx, int64(1006), mock.Anything, mock.Anything,
		mock.MatchedBy(func(p *ledger.PurchaseTransaction) bool {
			return p.UserID == 1006 && p.ExternalTransactionID == "pi_1" && p.Amount.Equal(dec("4.99"))
		})).Return(&ledger.RecordResult{TransactionID: 11, Balance: dec("4.99")}, nil).Once()

	result, err := f.svc.BuyPointProduct(ctx, 1006, "America/Chicago", 1)
	require.NoError(t, err)
	assert.True(t, result.Balance.Equal(dec("4.99")))

	f.ledger.AssertExpectations(t)
	f.charger.AssertExpectations(t)
}

func TestBuyPointProductRefundsWhenCreditFails(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	custID := "cus_123"
	f.store.On("IsBlocked", ctx, int64(1006)).Return(false, nil).Once()
	f.store.On("GetProduct", ctx, int64(1), KindPurchase).Return(&PointProduct{
		ID: 1, Kind: KindPurchase, Name: "starter", Points: dec("4.99"), Amount: dec("4.99"), Currency: "usd", Active: true,
	}, nil).Once()
	f.store.On("GetWallet", ctx, int64(1006)).Return(&ledger.Wallet{
		UserID: 1006, Balance: decimal.Zero, PaymentCustomerID: &custID,
	}, nil).Once()
	f.ledger.On("SumPurchasesBetween", ctx, int64(1006), mock.Anything, mock.Anything).Return(decimal.Zero, nil).Once()
	f.charger.On("Charge", ctx, custID, mock.Anything, "usd", mock.Anything, mock.Anything).Return("pi_9", nil).Once()
	f.ledger.On("PurchaseCredit", ctx, int64(1006), mock.Anything, mock.Anything, mock.Anything).
		Return(nil, common.NewInternalError("failed to record purchase", nil)).Once()
	// The charge is reversed so the user is never billed without coins.
	f.charger.On("Refund", ctx, "pi_9", (*decimal.Decimal)(nil), "coin credit failed").Return("re_1", nil).Once()

	_, err := f.svc.BuyPointProduct(ctx, 1006, "America/Chicago", 1)
	assertCode(t, err, common.CodeInternalError)
	f.charger.AssertExpectations(t)
}

func TestBuyPointProductDailyLimit(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	custID := "cus_123"
	setup := func(spent string, offenses int64) {
		f.store.On("IsBlocked", ctx, int64(1006)).Return(false, nil).Once()
		f.store.On("GetProduct", ctx, int64(6), KindPurchase).Return(&PointProduct{
			ID: 6, Kind: KindPurchase, Name: "jumbo", Points: dec("99"), Amount: dec("99"), Currency: "usd", Active: true,
		}, nil).Once()
		f.store.On("GetWallet", ctx, int64(1006)).Return(&ledger.Wallet{
			UserID: 1006, Balance: dec("99"), PaymentCustomerID: &custID,
		}, nil).Once()
		f.ledger.On("SumPurchasesBetween", ctx, int64(1006), mock.Anything, mock.Anything).Return(dec(spent), nil).Once()
		f.offenses.On("RecordOffense", ctx, int64(1006), mock.Anything).Return(offenses, nil).Once()
	}

	// First breach: warning only.
	setup("99", 1)
	f.notifier.On("SendPurchaseLimitWarning", ctx, int64(1006)).Return().Times(2)

	_, err := f.svc.BuyPointProduct(ctx, 1006, "America/Chicago", 6)
	assertCode(t, err, common.CodePurchaseDailyLimit)
	f.store.AssertNotCalled(t, "Block")

	// Second breach the same day: suspension.
	setup("99", 2)
	f.store.On("Block", ctx, int64(1006)).Return(nil).Once()
	f.notifier.On("SendSuspensionNotice", ctx, int64(1006)).Return().Once()

	_, err = f.svc.BuyPointProduct(ctx, 1006, "America/Chicago", 6)
	assertCode(t, err, common.CodePurchaseDailyLimit)

	// Next attempt hits the suspension gate before anything else.
	f.store.On("IsBlocked", ctx, int64(1006)).Return(true, nil).Once()
	_, err = f.svc.BuyPointProduct(ctx, 1006, "America/Chicago", 6)
	assertCode(t, err, common.CodeUserCoinSuspended)

	f.charger.AssertNotCalled(t, "Charge")
	f.notifier.AssertExpectations(t)
}

func TestBuyPointProductExactlyAtLimit(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	custID := "cus_123"
	f.store.On("IsBlocked", ctx, int64(1006)).Return(false, nil).Once()
	f.store.On("GetProduct", ctx, int64(2), KindPurchase).Return(&PointProduct{
		ID: 2, Kind: KindPurchase, Name: "topup", Points: dec("40"), Amount: dec("40"), Currency: "usd", Active: true,
	}, nil).Once()
	f.store.On("GetWallet", ctx, int64(1006)).Return(&ledger.Wallet{
		UserID: 1006, PaymentCustomerID: &custID,
	}, nil).Once()
	// 60 spent + 40 now = exactly the 100 limit: allowed.
	f.ledger.On("SumPurchasesBetween", ctx, int64(1006), mock.Anything, mock.Anything).Return(dec("60"), nil).Once()
	f.charger.On("Charge", ctx, custID, mock.Anything, "usd", mock.Anything, mock.Anything).Return("pi_2", nil).Once()
	f.ledger.On("PurchaseCredit", ctx, int64(1006), mock.Anything, mock.Anything, mock.Anything).
		Return(&ledger.RecordResult{TransactionID: 12, Balance: dec("40")}, nil).Once()

	_, err := f.svc.BuyPointProduct(ctx, 1006, "UTC", 2)
	require.NoError(t, err)
	f.offenses.AssertNotCalled(t, "RecordOffense")
}

func TestAutoRefillTriggeredAfterDebit(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	custID := "cus_123"
	planID := int64(1)
	refillWallet := &ledger.Wallet{
		UserID: 1006, Balance: dec("10"), AutoRefill: true,
		BelowBalance: dec("20"), RefillPlanID: &planID, PaymentCustomerID: &custID,
	}

	f.store.On("IsBlocked", ctx, int64(1006)).Return(false, nil)
	f.store.On("GetWallet", ctx, int64(1006)).Return(refillWallet, nil)
	f.ledger.On("Debit", ctx, int64(1006), ledger.ActivitySpend, mock.Anything, "ride order").
		Return(&ledger.RecordResult{TransactionID: 31, Balance: dec("5")}, nil).Once()

	// The refill purchase runs through the normal buy path.
	f.store.On("GetProduct", ctx, planID, KindPurchase).Return(&PointProduct{
		ID: 1, Kind: KindPurchase, Name: "starter", Points: dec("20"), Amount: dec("20"), Currency: "usd", Active: true,
	}, nil).Once()
	f.ledger.On("SumPurchasesBetween", ctx, int64(1006), mock.Anything, mock.Anything).Return(decimal.Zero, nil).Once()
	f.charger.On("Charge", ctx, custID, mock.Anything, "usd", mock.Anything, mock.Anything).Return("pi_3", nil).Once()
	f.ledger.On("PurchaseCredit", ctx, int64(1006), mock.Anything, mock.Anything, mock.Anything).
		Return(&ledger.RecordResult{TransactionID: 32, Balance: dec("25")}, nil).Once()

	result, err := f.svc.Debit(ctx, 1006, "UTC", ledger.ActivitySpend, dec("5"), "ride order")
	require.NoError(t, err)
	// The debit reports its own balance; the refill lands afterwards.
	assert.True(t, result.Balance.Equal(dec("5")))
	f.charger.AssertExpectations(t)
}

func TestAutoRefillFailureDisablesAndKeepsDebit(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	custID := "cus_123"
	planID := int64(1)
	f.store.On("IsBlocked", ctx, int64(1006)).Return(false, nil)
	f.store.On("GetWallet", ctx, int64(1006)).Return(&ledger.Wallet{
		UserID: 1006, Balance: dec("10"), AutoRefill: true,
		BelowBalance: dec("20"), RefillPlanID: &planID, PaymentCustomerID: &custID,
	}, nil)
	f.ledger.On("Debit", ctx, int64(1006), ledger.ActivitySpend, mock.Anything, "ride order").
		Return(&ledger.RecordResult{TransactionID: 41, Balance: dec("5")}, nil).Once()

	f.store.On("GetProduct", ctx, planID, KindPurchase).Return(&PointProduct{
		ID: 1, Kind: KindPurchase, Points: dec("20"), Amount: dec("20"), Currency: "usd", Active: true,
	}, nil).Once()
	f.ledger.On("SumPurchasesBetween", ctx, int64(1006), mock.Anything, mock.Anything).Return(decimal.Zero, nil).Once()
	f.charger.On("Charge", ctx, custID, mock.Anything, "usd", mock.Anything, mock.Anything).
		Return("", common.NewVendorError(common.CodeVendorPayment, "stripe", "card was declined", nil)).Once()
	f.store.On("DisableAutoRefill", ctx, int64(1006)).Return(nil).Once()
	f.notifier.On("SendAutoRefillDisabled", ctx, int64(1006)).Return().Once()

	result, err := f.svc.Debit(ctx, 1006, "UTC", ledger.ActivitySpend, dec("5"), "ride order")
	require.NoError(t, err)
	assert.True(t, result.Balance.Equal(dec("5")))
	f.store.AssertExpectations(t)
	f.notifier.AssertExpectations(t)
}

func TestAutoRefillSkippedWithoutCustomerID(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	planID := int64(1)
	f.store.On("IsBlocked", ctx, int64(1006)).Return(false, nil).Once()
	f.store.On("GetWallet", ctx, int64(1006)).Return(&ledger.Wallet{
		UserID: 1006, Balance: dec("10"), AutoRefill: true,
		BelowBalance: dec("20"), RefillPlanID: &planID,
	}, nil).Once()
	f.ledger.On("Debit", ctx, int64(1006), ledger.ActivitySpend, mock.Anything, "ride").
		Return(&ledger.RecordResult{TransactionID: 51, Balance: dec("5")}, nil).Once()

	_, err := f.svc.Debit(ctx, 1006, "UTC", ledger.ActivitySpend, dec("5"), "ride")
	require.NoError(t, err)
	f.charger.AssertNotCalled(t, "Charge")
	f.store.AssertNotCalled(t, "DisableAutoRefill")
}

func TestRedeemDailyLimit(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.store.On("IsBlocked", ctx, int64(1006)).Return(false, nil).Once()
	f.store.On("GetProduct", ctx, int64(3), KindRedeem).Return(&PointProduct{
		ID: 3, Kind: KindRedeem, Points: dec("30"), Amount: dec("30"), Currency: "usd", Active: true,
	}, nil).Once()
	f.store.On("SumRedemptionsBetween", ctx, int64(1006), mock.Anything, mock.Anything).Return(dec("25"), nil).Once()

	_, err := f.svc.Redeem(ctx, 1006, "UTC", 3)
	assertCode(t, err, common.CodeRedeemDailyLimit)
}

func TestRedeemInsufficientBalance(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.store.On("IsBlocked", ctx, int64(1006)).Return(false, nil)
	f.store.On("GetProduct", ctx, int64(3), KindRedeem).Return(&PointProduct{
		ID: 3, Kind: KindRedeem, Points: dec("30"), Amount: dec("30"), Currency: "usd", Active: true,
	}, nil).Once()
	f.store.On("SumRedemptionsBetween", ctx, int64(1006), mock.Anything, mock.Anything).Return(decimal.Zero, nil).Once()
	f.store.On("GetWallet", ctx, int64(1006)).Return(wallet("10"), nil).Once()

	_, err := f.svc.Redeem(ctx, 1006, "UTC", 3)
	assertCode(t, err, common.CodePointInsufficient)
	f.ledger.AssertNotCalled(t, "Debit")
}

func TestRedeemCrossingThresholdTriggersAutoRefill(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	custID := "cus_123"
	planID := int64(1)
	refillWallet := &ledger.Wallet{
		UserID: 1006, Balance: dec("22"), AutoRefill: true,
		BelowBalance: dec("20"), RefillPlanID: &planID, PaymentCustomerID: &custID,
	}

	f.store.On("IsBlocked", ctx, int64(1006)).Return(false, nil)
	f.store.On("GetWallet", ctx, int64(1006)).Return(refillWallet, nil)
	f.store.On("GetProduct", ctx, int64(3), KindRedeem).Return(&PointProduct{
		ID: 3, Kind: KindRedeem, Points: dec("5"), Amount: dec("5"), Currency: "usd", Active: true,
	}, nil).Once()
	f.store.On("SumRedemptionsBetween", ctx, int64(1006), mock.Anything, mock.Anything).Return(decimal.Zero, nil).Once()
	f.ledger.On("Debit", ctx, int64(1006), ledger.ActivitySpend, mock.Anything, "redeem item 3").
		Return(&ledger.RecordResult{TransactionID: 61, Balance: dec("17")}, nil).Once()

	// Balance fell under below_balance, so the refill plan gets charged.
	f.store.On("GetProduct", ctx, planID, KindPurchase).Return(&PointProduct{
		ID: 1, Kind: KindPurchase, Name: "starter", Points: dec("20"), Amount: dec("20"), Currency: "usd", Active: true,
	}, nil).Once()
	f.ledger.On("SumPurchasesBetween", ctx, int64(1006), mock.Anything, mock.Anything).Return(decimal.Zero, nil).Once()
	f.charger.On("Charge", ctx, custID, mock.Anything, "usd", mock.Anything, mock.Anything).Return("pi_4", nil).Once()
	f.ledger.On("PurchaseCredit", ctx, int64(1006), mock.Anything, mock.Anything, mock.Anything).
		Return(&ledger.RecordResult{TransactionID: 62, Balance: dec("37")}, nil).Once()
	f.store.On("RecordRedemption", ctx, mock.Anything).Return(int64(71), nil).Once()

	result, err := f.svc.Redeem(ctx, 1006, "UTC", 3)
	require.NoError(t, err)
	assert.True(t, result.Balance.Equal(dec("17")))
	f.charger.AssertExpectations(t)
	f.ledger.AssertExpectations(t)
}

func TestRefillIfLowChargesPlan(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	custID := "cus_123"
	planID := int64(1)
	f.store.On("GetWallet", ctx, int64(1006)).Return(&ledger.Wallet{
		UserID: 1006, Balance: dec("3"), AutoRefill: true,
		BelowBalance: dec("20"), RefillPlanID: &planID, PaymentCustomerID: &custID,
	}, nil)
	f.store.On("UserZone", ctx, int64(1006)).Return("America/Chicago", nil).Once()
	f.store.On("IsBlocked", ctx, int64(1006)).Return(false, nil).Once()
	f.store.On("GetProduct", ctx, planID, KindPurchase).Return(&PointProduct{
		ID: 1, Kind: KindPurchase, Points: dec("20"), Amount: dec("20"), Currency: "usd", Active: true,
	}, nil).Once()
	f.ledger.On("SumPurchasesBetween", ctx, int64(1006), mock.Anything, mock.Anything).Return(decimal.Zero, nil).Once()
	f.charger.On("Charge", ctx, custID, mock.Anything, "usd", mock.Anything, mock.Anything).Return("pi_5", nil).Once()
	f.ledger.On("PurchaseCredit", ctx, int64(1006), mock.Anything, mock.Anything, mock.Anything).
		Return(&ledger.RecordResult{TransactionID: 63, Balance: dec("23")}, nil).Once()

	f.svc.RefillIfLow(ctx, 1006)
	f.charger.AssertExpectations(t)
}

func TestRefillIfLowSkipsHealthyBalance(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	planID := int64(1)
	custID := "cus_123"
	f.store.On("GetWallet", ctx, int64(1006)).Return(&ledger.Wallet{
		UserID: 1006, Balance: dec("50"), AutoRefill: true,
		BelowBalance: dec("20"), RefillPlanID: &planID, PaymentCustomerID: &custID,
	}, nil).Once()
	f.store.On("UserZone", ctx, int64(1006)).Return("UTC", nil).Once()

	f.svc.RefillIfLow(ctx, 1006)
	f.charger.AssertNotCalled(t, "Charge")
}

func TestLocalDayWindow(t *testing.T) {
	// 2026-03-10 03:30 UTC is still 2026-03-09 in Chicago.
	now := time.Date(2026, 3, 10, 3, 30, 0, 0, time.UTC)

	from, to, day := localDayWindow("America/Chicago", now)
	assert.Equal(t, "2026-03-09", day)
	assert.True(t, from.Before(now) && to.After(now))
	assert.Equal(t, 24*time.Hour, to.Sub(from))

	// Unknown zones fall back to UTC.
	_, _, day = localDayWindow("Mars/Olympus", now)
	assert.Equal(t, "2026-03-10", day)
}
