package enterprise

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/transitlab/tsp-api/pkg/common"
	"github.com/transitlab/tsp-api/pkg/logger"
)

// verificationTTL is how long an emailed verification link stays valid.
const verificationTTL = 24 * time.Hour

// Store is the enterprise persistence surface.
type Store interface {
	ResolveEnterprises(ctx context.Context, email, domain string) ([]int64, error)
	GroupEnterprise(ctx context.Context, groupID int64) (int64, error)
	VerifiedByOtherUser(ctx context.Context, email string, userID int64) (bool, error)
	IsBlocked(ctx context.Context, email string, enterpriseIDs []int64) (bool, error)
	IsVerified(ctx context.Context, email string, userID, enterpriseID int64) (bool, error)
	UpsertPending(ctx context.Context, v *Verification) error
	FindPendingByToken(ctx context.Context, token string) (*Verification, error)
	MarkVerified(ctx context.Context, id int64) error
	JoinGroup(ctx context.Context, groupID, userID int64) error
}

// Mailer sends the verification link.
type Mailer interface {
	SendVerificationEmail(ctx context.Context, email, link string) error
}

// Service runs the carpool email verification flow.
type Service struct {
	store     Store
	mailer    Mailer
	publicURL string
}

// NewService creates a new enterprise service. publicURL is the externally
// reachable base used in verification links.
func NewService(store Store, mailer Mailer, publicURL string) *Service {
	return &Service{store: store, mailer: mailer, publicURL: strings.TrimRight(publicURL, "/")}
}

// RequestVerification links a user to a corporate carpool group. Users with
// an already-verified email join immediately; everyone else gets a
// verification link by email.
func (s *Service) RequestVerification(ctx context.Context, userID int64, req RequestVerificationRequest) (*RequestVerificationResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	domain := emailDomain(email)
	if domain == "" {
		return nil, common.NewBadRequestError("invalid email address", nil)
	}

	enterpriseIDs, err := s.store.ResolveEnterprises(ctx, email, domain)
	if err != nil {
		return nil, common.NewInternalError("failed to resolve enterprises", err)
	}
	if len(enterpriseIDs) == 0 {
		return nil, common.NewForbiddenError(common.CodeNotGroupMember, "email is not associated with any enterprise")
	}

	groupEnterprise, err := s.store.GroupEnterprise(ctx, req.GroupID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.NewBusinessError(common.CodeGroupNotFound, "carpool group not found")
	}
	if err != nil {
		return nil, common.NewInternalError("failed to load carpool group", err)
	}
	if req.VerifyType == "carpool" && !containsID(enterpriseIDs, groupEnterprise) {
		return nil, common.NewForbiddenError(common.CodeNotGroupMember, "email is not eligible for this carpool group")
	}

	taken, err := s.store.VerifiedByOtherUser(ctx, email, userID)
	if err != nil {
		return nil, common.NewInternalError("failed to check email ownership", err)
	}
	if taken {
		return nil, common.NewConflictError(common.CodeDuplicateEmail, "email is already verified by another account")
	}

	blocked, err := s.store.IsBlocked(ctx, email, enterpriseIDs)
	if err != nil {
		return nil, common.NewInternalError("failed to check blocklist", err)
	}
	if blocked {
		return nil, common.NewForbiddenError(common.CodeEmailBlocked, "email is blocked for this enterprise")
	}

	verified, err := s.store.IsVerified(ctx, email, userID, groupEnterprise)
	if err != nil {
		return nil, common.NewInternalError("failed to check verification state", err)
	}
	if verified {
		if err := s.store.JoinGroup(ctx, req.GroupID, userID); err != nil {
			return nil, common.NewInternalError("failed to join carpool group", err)
		}
		return &RequestVerificationResponse{Joined: true}, nil
	}

	token, err := newToken()
	if err != nil {
		return nil, common.NewInternalError("failed to generate verification token", err)
	}
	expires := time.Now().Add(verificationTTL).UTC()
	if err := s.store.UpsertPending(ctx, &Verification{
		Email:        email,
		UserID:       userID,
		EnterpriseID: groupEnterprise,
		GroupID:      req.GroupID,
		Token:        &token,
		ExpiresOn:    &expires,
	}); err != nil {
		return nil, common.NewInternalError("failed to store verification", err)
	}

	link := fmt.Sprintf("%s/verify_carpool_email.html?verify_token=%s", s.publicURL, token)
	if err := s.mailer.SendVerificationEmail(ctx, email, link); err != nil {
		logger.WithContext(ctx).Error("verification email failed",
			zap.String("email", email), zap.Error(err))
		return nil, common.NewInternalError("failed to send verification email", err)
	}

	return &RequestVerificationResponse{VerificationEmail: true}, nil
}

// VerifyEmail consumes an emailed token: marks the row verified and joins
// the carpool group. Verification is idempotent at the group level.
func (s *Service) VerifyEmail(ctx context.Context, token string) (*Verification, error) {
	if token == "" {
		return nil, common.NewBadRequestError("missing verification token", nil)
	}

	v, err := s.store.FindPendingByToken(ctx, token)
	if err != nil {
		return nil, common.NewInternalError("failed to look up verification", err)
	}
	if v == nil {
		return nil, common.NewNotFoundError("verification link is invalid or expired", nil)
	}

	if err := s.store.MarkVerified(ctx, v.ID); err != nil {
		return nil, common.NewInternalError("failed to mark verification", err)
	}
	if err := s.store.JoinGroup(ctx, v.GroupID, v.UserID); err != nil {
		return nil, common.NewInternalError("failed to join carpool group", err)
	}

	logger.WithContext(ctx).Info("carpool email verified",
		zap.Int64("user_id", v.UserID),
		zap.Int64("group_id", v.GroupID),
	)
	return v, nil
}

// newToken returns a 64-character hex token.
func newToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func emailDomain(email string) string {
	at := strings.LastIndex(email, "@")
	if at <= 0 || at == len(email)-1 {
		return ""
	}
	return email[at+1:]
}

func containsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
