package notifications

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/transitlab/tsp-api/pkg/eventbus"
	"github.com/transitlab/tsp-api/pkg/logger"
)

// EventHandler consumes platform events from the bus and turns them into
// user-facing messages.
type EventHandler struct {
	service *Service
}

// NewEventHandler creates an event handler backed by the notification service.
func NewEventHandler(service *Service) *EventHandler {
	return &EventHandler{service: service}
}

// RegisterSubscriptions subscribes to ride and trip lifecycle events.
func (h *EventHandler) RegisterSubscriptions(ctx context.Context, bus *eventbus.Bus) error {
	if err := bus.Subscribe(ctx, "ridehail.>", "notifications-ridehail", h.handleRidehailEvent); err != nil {
		return fmt.Errorf("subscribe to ridehail events: %w", err)
	}
	if err := bus.Subscribe(ctx, eventbus.SubjectTripRewarded, "notifications-trips", h.handleTripRewarded); err != nil {
		return fmt.Errorf("subscribe to trip events: %w", err)
	}
	logger.Info("notifications: subscribed to platform events")
	return nil
}

func (h *EventHandler) handleRidehailEvent(ctx context.Context, event *eventbus.Event) error {
	switch event.Type {
	case eventbus.SubjectRidehailSettled:
		return h.onRideSettled(ctx, event)
	case eventbus.SubjectRidehailStatusChanged:
		// Status pushes go through the mobile channel, nothing to email.
		return nil
	default:
		logger.Debug("notifications: ignoring unknown event type", zap.String("type", event.Type))
		return nil
	}
}

func (h *EventHandler) onRideSettled(ctx context.Context, event *eventbus.Event) error {
	var data struct {
		RideID      int64  `json:"ride_id"`
		UserID      int64  `json:"user_id"`
		ActualFare  string `json:"actual_fare"`
		BenefitUsed string `json:"benefit_used"`
		UserPaid    string `json:"user_paid"`
	}
	if err := json.Unmarshal(event.Data, &data); err != nil {
		return fmt.Errorf("unmarshal ride settled: %w", err)
	}

	err := h.service.SendRideReceipt(ctx, data.UserID, map[string]interface{}{
		"Ride":        fmt.Sprintf("#%d", data.RideID),
		"Total fare":  "$" + data.ActualFare,
		"Tier credit": "$" + data.BenefitUsed,
		"You paid":    "$" + data.UserPaid,
	})
	if err != nil {
		// Receipt email is best effort, the ledger already holds the truth.
		logger.Warn("failed to send ride receipt email",
			zap.Int64("ride_id", data.RideID), zap.Error(err))
	}
	return nil
}

func (h *EventHandler) handleTripRewarded(ctx context.Context, event *eventbus.Event) error {
	var data struct {
		TripID int64  `json:"trip_id"`
		UserID int64  `json:"user_id"`
		Amount string `json:"amount"`
	}
	if err := json.Unmarshal(event.Data, &data); err != nil {
		return fmt.Errorf("unmarshal trip rewarded: %w", err)
	}

	logger.Info("trip incentive granted",
		zap.Int64("trip_id", data.TripID),
		zap.Int64("user_id", data.UserID),
		zap.String("amount", data.Amount),
	)
	return nil
}
