package ridehail

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/transitlab/tsp-api/internal/ledger"
	"github.com/transitlab/tsp-api/internal/tier"
	"github.com/transitlab/tsp-api/pkg/common"
	"github.com/transitlab/tsp-api/pkg/eventbus"
	"github.com/transitlab/tsp-api/pkg/logger"
)

// ErrDuplicateEvent marks a webhook replay. Replays succeed with no effect.
var ErrDuplicateEvent = errors.New("webhook event already processed")

// TierReader resolves the user's tier and available benefit.
type TierReader interface {
	GetUserTier(ctx context.Context, userID int64) (*tier.Tier, error)
}

// WalletGuard exposes the wallet hooks the orchestrator needs: the
// suspension check before booking, and the auto-refill trigger after coins
// moved outside the wallet service.
type WalletGuard interface {
	IsBlocked(ctx context.Context, userID int64) (bool, error)
	RefillIfLow(ctx context.Context, userID int64)
}

// Ledger is the transactional ledger surface the orchestrator composes with
// its own rows.
type Ledger interface {
	Balance(ctx context.Context, userID int64) (decimal.Decimal, error)
	WithinTransaction(ctx context.Context, fn func(ctx context.Context, txr ledger.Recorder) error) error
}

// Store is the ride persistence surface.
type Store interface {
	InsertTripTx(ctx context.Context, tx pgx.Tx, t *Trip) (int64, error)
	SetVendorIDsTx(ctx context.Context, tx pgx.Tx, id int64, requestID string) error
	GetTrip(ctx context.Context, id int64) (*Trip, error)
	LockTripByVendorRequestIDTx(ctx context.Context, tx pgx.Tx, requestID string) (*Trip, error)
	UpdateStatusTx(ctx context.Context, tx pgx.Tx, id int64, status Status, eventTime time.Time) error
	CompleteTx(ctx context.Context, tx pgx.Tx, id int64, actualFare decimal.Decimal, eventTime time.Time) error
	CancelTx(ctx context.Context, tx pgx.Tx, id int64, eventTime time.Time) error
	InsertWebhookEventTx(ctx context.Context, tx pgx.Tx, event *WebhookEvent, payload []byte) (bool, error)
	InsertBenefitRowTx(ctx context.Context, tx pgx.Tx, userID int64, benefitAmount, transactionAmount decimal.Decimal, rideID int64) error
}

// Service orchestrates guest rides: estimates, booking, webhook intake, and
// financial settlement.
type Service struct {
	repo     Store
	ledger   Ledger
	vendor   VendorClient
	tiers    TierReader
	wallets  WalletGuard
	docs     *DocStore
	bus      *eventbus.Bus
	currency string
}

// NewService creates a new ridehail service
func NewService(repo Store, ledgerRepo Ledger, vendor VendorClient, tiers TierReader, wallets WalletGuard, docs *DocStore, bus *eventbus.Bus, currency string) *Service {
	return &Service{
		repo:     repo,
		ledger:   ledgerRepo,
		vendor:   vendor,
		tiers:    tiers,
		wallets:  wallets,
		docs:     docs,
		bus:      bus,
		currency: currency,
	}
}

// Estimate returns bookable products for a pickup and dropoff.
func (s *Service) Estimate(ctx context.Context, req EstimateRequest) ([]Product, error) {
	return s.vendor.Estimate(ctx, req.Pickup, req.Dropoff)
}

// GetTrip loads one ride owned by the caller.
func (s *Service) GetTrip(ctx context.Context, userID, tripID int64) (*Trip, error) {
	trip, err := s.repo.GetTrip(ctx, tripID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.NewNotFoundError("trip not found", err)
	}
	if err != nil {
		return nil, common.NewInternalError("failed to load trip", err)
	}
	if trip.UserID != userID {
		return nil, common.NewNotFoundError("trip not found", nil)
	}
	return trip, nil
}

// OrderGuestTrip books a ride for a guest. The wallet debit, the Uber
// account credit, the benefit deposit, and the trip row commit together
// with the vendor booking; a vendor failure leaves no trace.
func (s *Service) OrderGuestTrip(ctx context.Context, userID int64, req OrderRequest) (*OrderResult, error) {
	if req.EstimatedFare.Sign() <= 0 {
		return nil, common.NewBadRequestError("estimated_fare must be positive", nil)
	}

	blocked, err := s.wallets.IsBlocked(ctx, userID)
	if err != nil {
		return nil, common.NewInternalError("failed to check suspension", err)
	}
	if blocked {
		return nil, common.NewForbiddenError(common.CodeUserCoinSuspended, "your coin account is suspended, please contact support")
	}

	userTier, err := s.tiers.GetUserTier(ctx, userID)
	if err != nil {
		return nil, common.NewInternalError("failed to resolve tier", err)
	}
	benefit := userTier.UberBenefit

	required := RequiredUserFunds(req.EstimatedFare, benefit)
	balance, err := s.ledger.Balance(ctx, userID)
	if err != nil {
		return nil, common.NewInternalError("failed to load balance", err)
	}
	if balance.LessThan(required) {
		return nil, common.NewBusinessError(common.CodePointInsufficient, "insufficient coin balance for this ride")
	}

	result := &OrderResult{BenefitApplied: benefit}
	err = s.ledger.WithinTransaction(ctx, func(ctx context.Context, txr ledger.Recorder) error {
		tx := txr.Tx()

		rideID, err := s.repo.InsertTripTx(ctx, tx, &Trip{
			UserID:               userID,
			ProductID:            req.ProductID,
			Status:               StatusProcessing,
			EstimatedFare:        req.EstimatedFare,
			BenefitCreditApplied: benefit,
			Pickup:               req.Pickup,
			Dropoff:              req.Dropoff,
		})
		if err != nil {
			return err
		}
		result.TripID = rideID

		if required.Sign() > 0 {
			uber := ledger.AccountUber
			if _, err := txr.Record(ctx, ledger.RecordInput{
				UserID:       userID,
				ActivityType: ledger.ActivitySpend,
				Points:       required.Neg(),
				Note:         fmt.Sprintf("guest ride %d", rideID),
				Payer:        &userID,
				Payee:        &uber,
			}); err != nil {
				return err
			}
		}

		if benefit.Sign() > 0 {
			if err := s.repo.InsertBenefitRowTx(ctx, tx, userID, benefit, decimal.Zero, rideID); err != nil {
				return err
			}
		}

		booking, err := s.vendor.Book(ctx, BookingRequest{
			Guest:         req.Guest,
			Pickup:        req.Pickup,
			Dropoff:       req.Dropoff,
			ProductID:     req.ProductID,
			FareID:        req.FareID,
			NoteForDriver: req.NoteForDriver,
		})
		if err != nil {
			return err
		}
		result.UberRequestID = booking.RequestID

		return s.repo.SetVendorIDsTx(ctx, tx, rideID, booking.RequestID)
	})
	if err != nil {
		return nil, err
	}

	logger.WithContext(ctx).Info("guest ride booked",
		zap.Int64("user_id", userID),
		zap.Int64("ride_id", result.TripID),
		zap.String("vendor_request_id", result.UberRequestID),
	)

	// The order debit ran outside the wallet service, so fire its refill
	// trigger against the new balance.
	s.wallets.RefillIfLow(ctx, userID)
	return result, nil
}

// ProcessEvent applies one verified webhook event. Duplicates (same
// event_id) and stale events (older event_time than the last applied one)
// are dropped without effect.
func (s *Service) ProcessEvent(ctx context.Context, event *WebhookEvent, rawBody []byte) error {
	var notify *Trip

	err := s.ledger.WithinTransaction(ctx, func(ctx context.Context, txr ledger.Recorder) error {
		tx := txr.Tx()

		inserted, err := s.repo.InsertWebhookEventTx(ctx, tx, event, rawBody)
		if err != nil {
			return err
		}
		if !inserted {
			return ErrDuplicateEvent
		}

		trip, err := s.repo.LockTripByVendorRequestIDTx(ctx, tx, event.Meta.ResourceID)
		if errors.Is(err, pgx.ErrNoRows) {
			logger.WithContext(ctx).Warn("webhook for unknown ride",
				zap.String("event_id", event.EventID),
				zap.String("resource_id", event.Meta.ResourceID),
			)
			return nil
		}
		if err != nil {
			return err
		}

		eventTime := time.Unix(event.EventTime, 0).UTC()
		if trip.LastEventTime != nil && eventTime.Before(*trip.LastEventTime) {
			logger.WithContext(ctx).Warn("dropping stale webhook event",
				zap.String("event_id", event.EventID),
				zap.Time("event_time", eventTime),
			)
			return nil
		}

		switch event.EventType {
		case EventStatusChanged:
			if updated, err := s.applyStatusChange(ctx, txr, trip, Status(event.Meta.Status), eventTime); err != nil {
				return err
			} else if updated {
				notify = trip
			}
		case EventCompleted:
			if err := s.applyCompletion(ctx, txr, trip, eventTime); err != nil {
				return err
			}
			notify = trip
		case EventCancelled:
			if err := s.applyCancellation(ctx, txr, trip, eventTime); err != nil {
				return err
			}
			notify = trip
		default:
			logger.WithContext(ctx).Warn("unhandled webhook event type",
				zap.String("event_type", event.EventType))
		}
		return nil
	})
	if errors.Is(err, ErrDuplicateEvent) {
		logger.WithContext(ctx).Info("webhook replay ignored", zap.String("event_id", event.EventID))
		return nil
	}
	if err != nil {
		return err
	}

	if notify != nil {
		s.publishStatus(ctx, notify)
		if notify.Status == StatusCompleted && notify.ActualFare != nil {
			s.publishSettled(ctx, notify)
		}
		if notify.Status == StatusCompleted {
			// Settlement may have debited an overage; run the refill trigger.
			s.wallets.RefillIfLow(ctx, notify.UserID)
		}
	}
	return nil
}

// applyStatusChange moves the trip along the state machine. Illegal
// transitions are dropped with a warning.
func (s *Service) applyStatusChange(ctx context.Context, txr ledger.Recorder, trip *Trip, next Status, eventTime time.Time) (bool, error) {
	if !trip.Status.CanTransition(next) {
		logger.WithContext(ctx).Warn("dropping illegal status transition",
			zap.Int64("ride_id", trip.ID),
			zap.String("from", string(trip.Status)),
			zap.String("to", string(next)),
		)
		return false, nil
	}
	if err := s.repo.UpdateStatusTx(ctx, txr.Tx(), trip.ID, next, eventTime); err != nil {
		return false, err
	}
	trip.Status = next
	return true, nil
}

// applyCompletion fetches the receipt, persists the actual fare, and settles
// the ride. A failure rolls everything back and returns non-2xx so the
// vendor redelivers.
func (s *Service) applyCompletion(ctx context.Context, txr ledger.Recorder, trip *Trip, eventTime time.Time) error {
	if trip.ActualFare != nil {
		logger.WithContext(ctx).Info("ride already settled", zap.Int64("ride_id", trip.ID))
		return nil
	}
	if trip.Status == StatusCancelled {
		logger.WithContext(ctx).Warn("completion event for cancelled ride",
			zap.Int64("ride_id", trip.ID))
		return nil
	}

	receipt, err := s.vendor.Receipt(ctx, trip.VendorRequestID)
	if err != nil {
		return err
	}
	if receipt.CurrencyCode != "" && receipt.CurrencyCode != s.currency {
		return common.NewVendorError(common.CodeVendorService, "uber",
			fmt.Sprintf("receipt currency %s does not match wallet currency %s", receipt.CurrencyCode, s.currency), nil)
	}

	actual, err := ParseMoney(receipt.TotalCharged)
	if err != nil {
		return common.NewVendorError(common.CodeVendorService, "uber",
			fmt.Sprintf("unparseable receipt total %q", receipt.TotalCharged), err)
	}

	if err := s.repo.CompleteTx(ctx, txr.Tx(), trip.ID, actual, eventTime); err != nil {
		return err
	}
	if err := s.settle(ctx, txr, trip, actual); err != nil {
		return err
	}

	trip.Status = StatusCompleted
	trip.ActualFare = &actual

	if s.docs != nil {
		if err := s.docs.SaveReceipt(ctx, trip.ID, trip.VendorRequestID, receipt); err != nil {
			logger.WithContext(ctx).Warn("receipt archive failed",
				zap.Int64("ride_id", trip.ID), zap.Error(err))
		}
	}
	return nil
}

// settle posts the refund-with-benefit entries so the user ends up paying
// max(0, A-B), the tier credit covers min(A, B), and Uber holds exactly A.
func (s *Service) settle(ctx context.Context, txr ledger.Recorder, trip *Trip, actual decimal.Decimal) error {
	plan := ComputeSettlement(trip.EstimatedFare, actual, trip.BenefitCreditApplied)
	uber := ledger.AccountUber
	system := ledger.AccountSystem
	note := fmt.Sprintf("ride %d settlement", trip.ID)

	if plan.UserRefund.Sign() > 0 {
		userID := trip.UserID
		if _, err := txr.Record(ctx, ledger.RecordInput{
			UserID:       userID,
			ActivityType: ledger.ActivityMultiParty,
			Points:       plan.UserRefund,
			Note:         note,
			Payer:        &uber,
			Payee:        &userID,
		}); err != nil {
			return err
		}
	}

	if plan.UserExtraDebit.Sign() > 0 {
		// Actual fare exceeded the estimate. The debit posts even against an
		// insufficient balance; the negative balance is flagged for collection.
		userID := trip.UserID
		if _, err := txr.Record(ctx, ledger.RecordInput{
			UserID:       userID,
			ActivityType: ledger.ActivityMultiParty,
			Points:       plan.UserExtraDebit.Neg(),
			Note:         note,
			Payer:        &userID,
			Payee:        &uber,
		}); err != nil {
			return err
		}
		logger.WithContext(ctx).Warn("ride fare exceeded collected funds",
			zap.Int64("ride_id", trip.ID),
			zap.Int64("user_id", trip.UserID),
			zap.String("extra_debit", plan.UserExtraDebit.String()),
		)
	}

	if trip.BenefitCreditApplied.Sign() > 0 {
		if err := s.repo.InsertBenefitRowTx(ctx, txr.Tx(), trip.UserID,
			plan.BenefitUsed.Neg(), plan.UserRefund, trip.ID); err != nil {
			return err
		}
	}

	if plan.PlatformToUber.Sign() > 0 {
		if _, err := txr.Record(ctx, ledger.RecordInput{
			UserID:       uber,
			ActivityType: ledger.ActivityMultiParty,
			Points:       plan.PlatformToUber,
			Note:         note,
			Payer:        &system,
			Payee:        &uber,
		}); err != nil {
			return err
		}
	}

	return nil
}

// applyCancellation refunds the collected funds and zeroes out the benefit
// deposit so the net benefit consumed is zero.
func (s *Service) applyCancellation(ctx context.Context, txr ledger.Recorder, trip *Trip, eventTime time.Time) error {
	if trip.Status == StatusCancelled {
		return nil
	}
	if trip.Status == StatusCompleted {
		logger.WithContext(ctx).Warn("cancellation event for completed ride",
			zap.Int64("ride_id", trip.ID))
		return nil
	}

	if err := s.repo.CancelTx(ctx, txr.Tx(), trip.ID, eventTime); err != nil {
		return err
	}

	userPaid := RequiredUserFunds(trip.EstimatedFare, trip.BenefitCreditApplied)
	if userPaid.Sign() > 0 {
		uber := ledger.AccountUber
		userID := trip.UserID
		if _, err := txr.Record(ctx, ledger.RecordInput{
			UserID:       userID,
			ActivityType: ledger.ActivityRefund,
			Points:       userPaid,
			Note:         fmt.Sprintf("ride %d cancelled", trip.ID),
			Payer:        &uber,
			Payee:        &userID,
		}); err != nil {
			return err
		}
	}

	if trip.BenefitCreditApplied.Sign() > 0 {
		if err := s.repo.InsertBenefitRowTx(ctx, txr.Tx(), trip.UserID,
			trip.BenefitCreditApplied.Neg(), userPaid, trip.ID); err != nil {
			return err
		}
	}

	trip.Status = StatusCancelled
	return nil
}

// publishStatus emits the ride status event consumed by the notification
// worker. Publishing is best effort.
func (s *Service) publishStatus(ctx context.Context, trip *Trip) {
	if s.bus == nil {
		return
	}

	event, err := eventbus.NewEvent(eventbus.SubjectRidehailStatusChanged, "tsp-api", map[string]interface{}{
		"ride_id": trip.ID,
		"user_id": trip.UserID,
		"status":  string(trip.Status),
	})
	if err != nil {
		return
	}
	if err := s.bus.Publish(ctx, eventbus.SubjectRidehailStatusChanged, event); err != nil {
		logger.WithContext(ctx).Warn("ride status publish failed",
			zap.Int64("ride_id", trip.ID), zap.Error(err))
	}
}

// publishSettled emits the settlement event after a completed ride has been
// charged. Carries the final fare so consumers can build receipts.
func (s *Service) publishSettled(ctx context.Context, trip *Trip) {
	if s.bus == nil {
		return
	}

	plan := ComputeSettlement(trip.EstimatedFare, *trip.ActualFare, trip.BenefitCreditApplied)
	event, err := eventbus.NewEvent(eventbus.SubjectRidehailSettled, "tsp-api", map[string]interface{}{
		"ride_id":      trip.ID,
		"user_id":      trip.UserID,
		"actual_fare":  trip.ActualFare.String(),
		"benefit_used": plan.BenefitUsed.String(),
		"user_paid":    plan.UserOwes.String(),
	})
	if err != nil {
		return
	}
	if err := s.bus.Publish(ctx, eventbus.SubjectRidehailSettled, event); err != nil {
		logger.WithContext(ctx).Warn("ride settlement publish failed",
			zap.Int64("ride_id", trip.ID), zap.Error(err))
	}
}
