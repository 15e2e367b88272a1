package enterprise

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/transitlab/tsp-api/pkg/common"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) ResolveEnterprises(ctx context.Context, email, domain string) ([]int64, error) {
	args := m.Called(ctx, email, domain)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]int64), args.Error(1)
}

func (m *mockStore) GroupEnterprise(ctx context.Context, groupID int64) (int64, error) {
	args := m.Called(ctx, groupID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockStore) VerifiedByOtherUser(ctx context.Context, email string, userID int64) (bool, error) {
	args := m.Called(ctx, email, userID)
	return args.Bool(0), args.Error(1)
}

func (m *mockStore) IsBlocked(ctx context.Context, email string, enterpriseIDs []int64) (bool, error) {
	args := m.Called(ctx, email, enterpriseIDs)
	return args.Bool(0), args.Error(1)
}

func (m *mockStore) IsVerified(ctx context.Context, email string, userID, enterpriseID int64) (bool, error) {
	args := m.Called(ctx, email, userID, enterpriseID)
	return args.Bool(0), args.Error(1)
}

func (m *mockStore) UpsertPending(ctx context.Context, v *Verification) error {
	args := m.Called(ctx, v)
	return args.Error(0)
}

func (m *mockStore) FindPendingByToken(ctx context.Context, token string) (*Verification, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Verification), args.Error(1)
}

func (m *mockStore) MarkVerified(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockStore) JoinGroup(ctx context.Context, groupID, userID int64) error {
	args := m.Called(ctx, groupID, userID)
	return args.Error(0)
}

type mockMailer struct {
	mock.Mock
}

func (m *mockMailer) SendVerificationEmail(ctx context.Context, email, link string) error {
	args := m.Called(ctx, email, link)
	return args.Error(0)
}

func assertCode(t *testing.T, err error, code int) {
	t.Helper()
	appErr, ok := common.AsAppError(err)
	require.True(t, ok, "expected AppError, got %v", err)
	assert.Equal(t, code, appErr.Code)
}

func carpoolReq() RequestVerificationRequest {
	return RequestVerificationRequest{
		Email:      "jo@acme.com",
		VerifyType: "carpool",
		GroupID:    7,
	}
}

func TestRequestVerificationSendsEmail(t *testing.T) {
	store := &mockStore{}
	mailer := &mockMailer{}
	svc := NewService(store, mailer, "https://app.transitlab.io/")

	store.On("ResolveEnterprises", mock.Anything, "jo@acme.com", "acme.com").Return([]int64{12}, nil)
	store.On("GroupEnterprise", mock.Anything, int64(7)).Return(int64(12), nil)
	store.On("VerifiedByOtherUser", mock.Anything, "jo@acme.com", int64(1003)).Return(false, nil)
	store.On("IsBlocked", mock.Anything, "jo@acme.com", []int64{12}).Return(false, nil)
	store.On("IsVerified", mock.Anything, "jo@acme.com", int64(1003), int64(12)).Return(false, nil)

	var savedToken string
	store.On("UpsertPending", mock.Anything, mock.MatchedBy(func(v *Verification) bool {
		if v.Email != "jo@acme.com" || v.UserID != 1003 || v.EnterpriseID != 12 || v.GroupID != 7 {
			return false
		}
		if v.Token == nil || len(*v.Token) != 64 || v.ExpiresOn == nil {
			return false
		}
		savedToken = *v.Token
		return true
	})).Return(nil)
	mailer.On("SendVerificationEmail", mock.Anything, "jo@acme.com", mock.MatchedBy(func(link string) bool {
		return link == "https://app.transitlab.io/verify_carpool_email.html?verify_token="+savedToken
	})).Return(nil)

	resp, err := svc.RequestVerification(context.Background(), 1003, carpoolReq())
	require.NoError(t, err)
	assert.False(t, resp.Joined)
	assert.True(t, resp.VerificationEmail)
	store.AssertExpectations(t)
	mailer.AssertExpectations(t)
}

func TestRequestVerificationAlreadyVerifiedJoinsDirectly(t *testing.T) {
	store := &mockStore{}
	mailer := &mockMailer{}
	svc := NewService(store, mailer, "https://app.transitlab.io")

	store.On("ResolveEnterprises", mock.Anything, "jo@acme.com", "acme.com").Return([]int64{12}, nil)
	store.On("GroupEnterprise", mock.Anything, int64(7)).Return(int64(12), nil)
	store.On("VerifiedByOtherUser", mock.Anything, "jo@acme.com", int64(1003)).Return(false, nil)
	store.On("IsBlocked", mock.Anything, "jo@acme.com", []int64{12}).Return(false, nil)
	store.On("IsVerified", mock.Anything, "jo@acme.com", int64(1003), int64(12)).Return(true, nil)
	store.On("JoinGroup", mock.Anything, int64(7), int64(1003)).Return(nil)

	resp, err := svc.RequestVerification(context.Background(), 1003, carpoolReq())
	require.NoError(t, err)
	assert.True(t, resp.Joined)
	assert.False(t, resp.VerificationEmail)
	mailer.AssertNotCalled(t, "SendVerificationEmail", mock.Anything, mock.Anything, mock.Anything)
}

func TestRequestVerificationNoMatchingEnterprise(t *testing.T) {
	store := &mockStore{}
	svc := NewService(store, &mockMailer{}, "https://app.transitlab.io")

	store.On("ResolveEnterprises", mock.Anything, "jo@gmail.com", "gmail.com").Return([]int64(nil), nil)

	req := carpoolReq()
	req.Email = "jo@gmail.com"
	_, err := svc.RequestVerification(context.Background(), 1003, req)
	assertCode(t, err, common.CodeNotGroupMember)
}

func TestRequestVerificationGroupNotFound(t *testing.T) {
	store := &mockStore{}
	svc := NewService(store, &mockMailer{}, "https://app.transitlab.io")

	store.On("ResolveEnterprises", mock.Anything, "jo@acme.com", "acme.com").Return([]int64{12}, nil)
	store.On("GroupEnterprise", mock.Anything, int64(7)).Return(int64(0), pgx.ErrNoRows)

	_, err := svc.RequestVerification(context.Background(), 1003, carpoolReq())
	assertCode(t, err, common.CodeGroupNotFound)
}

func TestRequestVerificationWrongEnterpriseForGroup(t *testing.T) {
	store := &mockStore{}
	svc := NewService(store, &mockMailer{}, "https://app.transitlab.io")

	store.On("ResolveEnterprises", mock.Anything, "jo@acme.com", "acme.com").Return([]int64{12}, nil)
	store.On("GroupEnterprise", mock.Anything, int64(7)).Return(int64(99), nil)

	_, err := svc.RequestVerification(context.Background(), 1003, carpoolReq())
	assertCode(t, err, common.CodeNotGroupMember)
}

func TestRequestVerificationEmailTakenByOtherUser(t *testing.T) {
	store := &mockStore{}
	svc := NewService(store, &mockMailer{}, "https://app.transitlab.io")

	store.On("ResolveEnterprises", mock.Anything, "jo@acme.com", "acme.com").Return([]int64{12}, nil)
	store.On("GroupEnterprise", mock.Anything, int64(7)).Return(int64(12), nil)
	store.On("VerifiedByOtherUser", mock.Anything, "jo@acme.com", int64(1003)).Return(true, nil)

	_, err := svc.RequestVerification(context.Background(), 1003, carpoolReq())
	assertCode(t, err, common.CodeDuplicateEmail)
}

func TestRequestVerificationBlockedEmail(t *testing.T) {
	store := &mockStore{}
	svc := NewService(store, &mockMailer{}, "https://app.transitlab.io")

	store.On("ResolveEnterprises", mock.Anything, "jo@acme.com", "acme.com").Return([]int64{12}, nil)
	store.On("GroupEnterprise", mock.Anything, int64(7)).Return(int64(12), nil)
	store.On("VerifiedByOtherUser", mock.Anything, "jo@acme.com", int64(1003)).Return(false, nil)
	store.On("IsBlocked", mock.Anything, "jo@acme.com", []int64{12}).Return(true, nil)

	_, err := svc.RequestVerification(context.Background(), 1003, carpoolReq())
	assertCode(t, err, common.CodeEmailBlocked)
}

func TestVerifyEmailSuccess(t *testing.T) {
	store := &mockStore{}
	svc := NewService(store, &mockMailer{}, "https://app.transitlab.io")

	store.On("FindPendingByToken", mock.Anything, "tok").Return(&Verification{
		ID: 4, Email: "jo@acme.com", UserID: 1003, EnterpriseID: 12, GroupID: 7,
	}, nil)
	store.On("MarkVerified", mock.Anything, int64(4)).Return(nil)
	store.On("JoinGroup", mock.Anything, int64(7), int64(1003)).Return(nil)

	v, err := svc.VerifyEmail(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, "jo@acme.com", v.Email)
	store.AssertExpectations(t)
}

func TestVerifyEmailExpiredToken(t *testing.T) {
	store := &mockStore{}
	svc := NewService(store, &mockMailer{}, "https://app.transitlab.io")

	store.On("FindPendingByToken", mock.Anything, "gone").Return(nil, nil)

	_, err := svc.VerifyEmail(context.Background(), "gone")
	assertCode(t, err, common.CodeNotFound)
}
