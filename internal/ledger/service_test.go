package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/transitlab/tsp-api/pkg/common"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) Record(ctx context.Context, input RecordInput) (*RecordResult, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*RecordResult), args.Error(1)
}

func (m *mockStore) Balance(ctx context.Context, userID int64) (decimal.Decimal, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *mockStore) TransactionSum(ctx context.Context, userID int64) (decimal.Decimal, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *mockStore) HasActivity(ctx context.Context, userID int64, activity ActivityType) (bool, error) {
	args := m.Called(ctx, userID, activity)
	return args.Bool(0), args.Error(1)
}

func (m *mockStore) RecordPurchaseWithCredit(ctx context.Context, input RecordInput, p *PurchaseTransaction) (*RecordResult, error) {
	args := m.Called(ctx, input, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*RecordResult), args.Error(1)
}

func (m *mockStore) SumPurchasesBetween(ctx context.Context, userID int64, from, to time.Time) (decimal.Decimal, error) {
	args := m.Called(ctx, userID, from, to)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *mockStore) RecordTokenGrant(ctx context.Context, t *TokenTransaction) (int64, error) {
	args := m.Called(ctx, t)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockStore) SpendTokens(ctx context.Context, userID int64, amount decimal.Decimal) (decimal.Decimal, error) {
	args := m.Called(ctx, userID, amount)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *mockStore) TokenBalance(ctx context.Context, userID int64) (decimal.Decimal, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestRecordTransactionValidation(t *testing.T) {
	store := new(mockStore)
	svc := NewService(store)
	ctx := context.Background()

	payer := int64(1006)
	payee := int64(2107)

	cases := []struct {
		name  string
		input RecordInput
	}{
		{"missing user", RecordInput{ActivityType: ActivityDebit, Points: dec("-1")}},
		{"unknown activity", RecordInput{UserID: 1006, ActivityType: 99, Points: dec("1")}},
		{"zero points", RecordInput{UserID: 1006, ActivityType: ActivityDebit, Points: decimal.Zero}},
		{"payer without payee", RecordInput{UserID: 1006, ActivityType: ActivityMultiParty, Points: dec("1"), Payer: &payer}},
		{"payer equals payee", RecordInput{UserID: 1006, ActivityType: ActivityMultiParty, Points: dec("1"), Payer: &payer, Payee: &payer}},
		{"user not a party", RecordInput{UserID: 42, ActivityType: ActivityMultiParty, Points: dec("1"), Payer: &payer, Payee: &payee}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.RecordTransaction(ctx, tc.input)
			require.Error(t, err)
			appErr, ok := common.AsAppError(err)
			require.True(t, ok)
			assert.Equal(t, common.CodeInvalidRequest, appErr.Code)
		})
	}

	store.AssertNotCalled(t, "Record")
}

func TestCreditDebitSignShaping(t *testing.T) {
	store := new(mockStore)
	svc := NewService(store)
	ctx := context.Background()

	store.On("Record", ctx, mock.MatchedBy(func(in RecordInput) bool {
		return in.Points.Equal(dec("4.99")) && in.ActivityType == ActivityPurchase
	})).Return(&RecordResult{TransactionID: 1, Balance: dec("4.99")}, nil).Once()

	res, err := svc.Credit(ctx, 1006, ActivityPurchase, dec("4.99"), "coin purchase")
	require.NoError(t, err)
	assert.Equal(t, dec("4.99"), res.Balance)

	store.On("Record", ctx, mock.MatchedBy(func(in RecordInput) bool {
		return in.Points.Equal(dec("-12")) && in.ActivityType == ActivitySpend
	})).Return(&RecordResult{TransactionID: 2, Balance: dec("38")}, nil).Once()

	// Debit normalizes the sign even when handed a positive amount.
	res, err = svc.Debit(ctx, 1006, ActivitySpend, dec("12"), "ride order")
	require.NoError(t, err)
	assert.Equal(t, dec("38"), res.Balance)

	store.AssertExpectations(t)
}

func TestTransferShapesPairedInput(t *testing.T) {
	store := new(mockStore)
	svc := NewService(store)
	ctx := context.Background()

	var captured RecordInput
	store.On("Record", ctx, mock.MatchedBy(func(in RecordInput) bool {
		captured = in
		return true
	})).Return(&RecordResult{TransactionID: 7, Balance: dec("12")}, nil).Once()

	_, err := svc.Transfer(ctx, AccountUber, 1006, ActivityMultiParty, dec("12"), "ride refund")
	require.NoError(t, err)

	assert.Equal(t, int64(1006), captured.UserID)
	require.NotNil(t, captured.Payer)
	require.NotNil(t, captured.Payee)
	assert.Equal(t, AccountUber, *captured.Payer)
	assert.Equal(t, int64(1006), *captured.Payee)
	assert.True(t, captured.Points.Equal(dec("12")))
}

func TestCounterpartyOf(t *testing.T) {
	payer := int64(2107)
	payee := int64(1006)

	// Primary row is the payee side: counterparty is the payer.
	cp, ok := counterpartyOf(RecordInput{UserID: 1006, Payer: &payer, Payee: &payee})
	require.True(t, ok)
	assert.Equal(t, int64(2107), cp)

	// Primary row is the payer side: counterparty is the payee.
	cp, ok = counterpartyOf(RecordInput{UserID: 2107, Payer: &payer, Payee: &payee})
	require.True(t, ok)
	assert.Equal(t, int64(1006), cp)

	_, ok = counterpartyOf(RecordInput{UserID: 1006})
	assert.False(t, ok)
}

func TestIsServiceAccount(t *testing.T) {
	assert.True(t, IsServiceAccount(AccountSystem))
	assert.True(t, IsServiceAccount(AccountUber))
	assert.True(t, IsServiceAccount(2000))
	assert.True(t, IsServiceAccount(2199))
	assert.False(t, IsServiceAccount(1006))
	assert.False(t, IsServiceAccount(2200))
}

func TestPurchaseCredit(t *testing.T) {
	store := new(mockStore)
	svc := NewService(store)
	ctx := context.Background()

	_, err := svc.PurchaseCredit(ctx, 0, dec("4.99"), "coin purchase", &PurchaseTransaction{})
	require.Error(t, err)
	_, err = svc.PurchaseCredit(ctx, 1006, decimal.Zero, "coin purchase", &PurchaseTransaction{})
	require.Error(t, err)
	store.AssertNotCalled(t, "RecordPurchaseWithCredit")

	p := &PurchaseTransaction{UserID: 1006, Points: dec("4.99"), Amount: dec("4.99"), Currency: "usd", ExternalTransactionID: "pi_1"}
	store.On("RecordPurchaseWithCredit", ctx, mock.MatchedBy(func(in RecordInput) bool {
		return in.UserID == 1006 && in.ActivityType == ActivityPurchase && in.Points.Equal(dec("4.99"))
	}), p).Return(&RecordResult{TransactionID: 11, Balance: dec("4.99")}, nil).Once()

	res, err := svc.PurchaseCredit(ctx, 1006, dec("4.99"), "coin purchase", p)
	require.NoError(t, err)
	assert.Equal(t, int64(11), res.TransactionID)
	store.AssertExpectations(t)
}

func TestGrantTokensValidation(t *testing.T) {
	store := new(mockStore)
	svc := NewService(store)
	ctx := context.Background()

	now := time.Now()
	_, err := svc.GrantTokens(ctx, &TokenTransaction{UserID: 1006, Tokens: dec("5"), IssuedOn: now, ExpiredOn: now})
	assert.Error(t, err)

	store.On("RecordTokenGrant", ctx, mock.Anything).Return(int64(3), nil).Once()
	id, err := svc.GrantTokens(ctx, &TokenTransaction{
		UserID: 1006, CampaignID: 1, Tokens: dec("5"),
		IssuedOn: now, ExpiredOn: now.Add(30 * 24 * time.Hour),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(3), id)
}
