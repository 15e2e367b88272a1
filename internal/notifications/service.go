package notifications

import (
	"context"

	"go.uber.org/zap"

	"github.com/transitlab/tsp-api/pkg/eventbus"
	"github.com/transitlab/tsp-api/pkg/logger"
)

// Recipients resolves user ids to email addresses.
type Recipients interface {
	UserEmail(ctx context.Context, userID int64) (string, error)
}

// Bus is the subset of the event bus used for wallet lifecycle events.
type Bus interface {
	Publish(ctx context.Context, subject string, event *eventbus.Event) error
}

// Service sends user-facing notifications. Wallet notices are fire and
// forget: a failed email never fails the business operation that triggered
// it.
type Service struct {
	recipients Recipients
	email      EmailSender
	bus        Bus
}

// NewService creates a new notification service. bus may be nil when the
// event bus is disabled.
func NewService(recipients Recipients, email EmailSender, bus Bus) *Service {
	return &Service{recipients: recipients, email: email, bus: bus}
}

// SendPurchaseLimitWarning tells the user they are close to the daily
// purchase limit.
func (s *Service) SendPurchaseLimitWarning(ctx context.Context, userID int64) {
	s.sendWalletNotice(ctx, userID, "Purchase limit warning",
		"You're approaching your daily Coin purchase limit. Further purchases today may be declined.",
		eventbus.SubjectWalletLimitWarning)
}

// SendSuspensionNotice tells the user their wallet was suspended.
func (s *Service) SendSuspensionNotice(ctx context.Context, userID int64) {
	s.sendWalletNotice(ctx, userID, "Wallet suspended",
		"Your wallet has been suspended after repeated limit violations. Contact support to restore access.",
		eventbus.SubjectWalletSuspended)
}

// SendAutoRefillDisabled tells the user auto-refill was turned off after
// repeated payment failures.
func (s *Service) SendAutoRefillDisabled(ctx context.Context, userID int64) {
	s.sendWalletNotice(ctx, userID, "Auto-refill disabled",
		"We couldn't charge your card for auto-refill, so it has been turned off. Update your payment method to re-enable it.",
		eventbus.SubjectWalletRefillFailed)
}

// SendVerificationEmail sends the carpool email verification link. Unlike
// wallet notices this failure propagates, since the caller has nothing to
// show the user without it.
func (s *Service) SendVerificationEmail(ctx context.Context, email, link string) error {
	return s.email.SendVerificationEmail(email, link)
}

// SendRideReceipt emails the settled fare breakdown.
func (s *Service) SendRideReceipt(ctx context.Context, userID int64, details map[string]interface{}) error {
	email, err := s.recipients.UserEmail(ctx, userID)
	if err != nil {
		return err
	}
	return s.email.SendRideReceiptEmail(email, details)
}

// VendorFailure records an upstream vendor failure for the operations
// channel. Today this is a structured log line scraped by alerting.
func (s *Service) VendorFailure(ctx context.Context, vendor, detail string) {
	logger.WithContext(ctx).Error("vendor failure",
		zap.String("vendor", vendor),
		zap.String("detail", detail),
	)
}

func (s *Service) sendWalletNotice(ctx context.Context, userID int64, subject, message, eventSubject string) {
	email, err := s.recipients.UserEmail(ctx, userID)
	if err != nil {
		logger.WithContext(ctx).Warn("wallet notice recipient lookup failed",
			zap.Int64("user_id", userID), zap.Error(err))
		return
	}

	if err := s.email.SendWalletNotice(email, subject, message); err != nil {
		logger.WithContext(ctx).Warn("wallet notice email failed",
			zap.Int64("user_id", userID),
			zap.String("subject", subject),
			zap.Error(err),
		)
	}

	if s.bus == nil {
		return
	}
	event, err := eventbus.NewEvent(eventSubject, "tsp-api", map[string]interface{}{
		"user_id": userID,
	})
	if err != nil {
		return
	}
	if err := s.bus.Publish(ctx, eventSubject, event); err != nil {
		logger.WithContext(ctx).Warn("wallet event publish failed",
			zap.Int64("user_id", userID),
			zap.String("subject", eventSubject),
			zap.Error(err),
		)
	}
}
