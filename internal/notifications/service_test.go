package notifications

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockRecipients struct {
	mock.Mock
}

func (m *mockRecipients) UserEmail(ctx context.Context, userID int64) (string, error) {
	args := m.Called(ctx, userID)
	return args.String(0), args.Error(1)
}

type mockEmail struct {
	mock.Mock
}

func (m *mockEmail) SendVerificationEmail(to, link string) error {
	args := m.Called(to, link)
	return args.Error(0)
}

func (m *mockEmail) SendWalletNotice(to, subject, message string) error {
	args := m.Called(to, subject, message)
	return args.Error(0)
}

func (m *mockEmail) SendRideReceiptEmail(to string, receiptDetails map[string]interface{}) error {
	args := m.Called(to, receiptDetails)
	return args.Error(0)
}

func TestSendSuspensionNotice(t *testing.T) {
	recipients := &mockRecipients{}
	email := &mockEmail{}
	svc := NewService(recipients, email, nil)

	recipients.On("UserEmail", mock.Anything, int64(1006)).Return("jo@acme.com", nil)
	email.On("SendWalletNotice", "jo@acme.com", "Wallet suspended", mock.Anything).Return(nil)

	svc.SendSuspensionNotice(context.Background(), 1006)
	email.AssertExpectations(t)
}

func TestWalletNoticeSurvivesEmailFailure(t *testing.T) {
	recipients := &mockRecipients{}
	email := &mockEmail{}
	svc := NewService(recipients, email, nil)

	recipients.On("UserEmail", mock.Anything, int64(1006)).Return("jo@acme.com", nil)
	email.On("SendWalletNotice", "jo@acme.com", mock.Anything, mock.Anything).Return(errors.New("smtp down"))

	// Must not panic or propagate.
	svc.SendPurchaseLimitWarning(context.Background(), 1006)
	email.AssertExpectations(t)
}

func TestWalletNoticeUnknownRecipient(t *testing.T) {
	recipients := &mockRecipients{}
	email := &mockEmail{}
	svc := NewService(recipients, email, nil)

	recipients.On("UserEmail", mock.Anything, int64(42)).Return("", errors.New("no rows"))

	svc.SendAutoRefillDisabled(context.Background(), 42)
	email.AssertNotCalled(t, "SendWalletNotice", mock.Anything, mock.Anything, mock.Anything)
}

func TestSendVerificationEmailPropagatesError(t *testing.T) {
	email := &mockEmail{}
	svc := NewService(&mockRecipients{}, email, nil)

	email.On("SendVerificationEmail", "jo@acme.com", "https://x/verify").Return(errors.New("550 mailbox not found"))

	err := svc.SendVerificationEmail(context.Background(), "jo@acme.com", "https://x/verify")
	require.Error(t, err)
}

func TestSendRideReceipt(t *testing.T) {
	recipients := &mockRecipients{}
	email := &mockEmail{}
	svc := NewService(recipients, email, nil)

	recipients.On("UserEmail", mock.Anything, int64(1003)).Return("jo@acme.com", nil)
	email.On("SendRideReceiptEmail", "jo@acme.com", mock.MatchedBy(func(d map[string]interface{}) bool {
		return d["Total fare"] == "$15.75"
	})).Return(nil)

	err := svc.SendRideReceipt(context.Background(), 1003, map[string]interface{}{"Total fare": "$15.75"})
	require.NoError(t, err)
}

func TestIsEmailRetryable(t *testing.T) {
	assert.True(t, isEmailRetryable(errors.New("dial tcp: i/o timeout")))
	assert.True(t, isEmailRetryable(errors.New("421 service not available")))
	assert.False(t, isEmailRetryable(errors.New("550 mailbox not found")))
	assert.False(t, isEmailRetryable(errors.New("authentication failed")))
	assert.False(t, isEmailRetryable(nil))
}

func TestMaskEmail(t *testing.T) {
	assert.Equal(t, "j***@acme.com", maskEmail("jo@acme.com"))
	assert.Equal(t, "***", maskEmail("not-an-email"))
}
