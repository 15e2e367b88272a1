package ridehail

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status is the ride lifecycle state.
type Status string

const (
	StatusProcessing Status = "processing"
	StatusAccepted   Status = "accepted"
	StatusArriving   Status = "arriving"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// statusRank orders the forward progression. Cancellation is reachable from
// any non-terminal state.
var statusRank = map[Status]int{
	StatusProcessing: 0,
	StatusAccepted:   1,
	StatusArriving:   2,
	StatusInProgress: 3,
	StatusCompleted:  4,
}

// IsTerminal reports whether a status accepts no further transitions.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// CanTransition reports whether moving from s to next is legal. Forward jumps
// are allowed because vendor events can arrive with gaps.
func (s Status) CanTransition(next Status) bool {
	if s.IsTerminal() {
		return false
	}
	if next == StatusCancelled {
		return true
	}
	from, ok := statusRank[s]
	if !ok {
		return false
	}
	to, ok := statusRank[next]
	if !ok {
		return false
	}
	return to > from
}

// Location is a named coordinate pair.
type Location struct {
	Latitude  float64 `json:"latitude" binding:"required"`
	Longitude float64 `json:"longitude" binding:"required"`
	Name      string  `json:"name"`
	Address   string  `json:"address"`
}

// Trip is a platform-side record of one vendor ride.
type Trip struct {
	ID                   int64           `json:"id"`
	TripID               *int64          `json:"trip_id,omitempty"`
	UserID               int64           `json:"user_id"`
	VendorRequestID      string          `json:"vendor_request_id"`
	VendorTripID         string          `json:"vendor_trip_id"`
	ProductID            string          `json:"product_id"`
	Status               Status          `json:"status"`
	EstimatedFare        decimal.Decimal `json:"estimated_fare"`
	ActualFare           *decimal.Decimal `json:"actual_fare,omitempty"`
	BenefitCreditApplied decimal.Decimal `json:"benefit_credit_applied"`
	Pickup               Location        `json:"pickup"`
	Dropoff              Location        `json:"dropoff"`
	LastEventTime        *time.Time      `json:"last_event_time,omitempty"`
	CreatedOn            time.Time       `json:"created_on"`
	CompletedOn          *time.Time      `json:"completed_on,omitempty"`
}

// Product is one row of the vendor's estimate response.
type Product struct {
	ProductID       string `json:"product_id"`
	Display         string `json:"display"`
	FareDisplay     string `json:"fare_display"`
	FareCurrency    string `json:"fare_currency"`
	FareID          string `json:"fare_id"`
	PickupETA       int    `json:"pickup_eta"`
	TripDuration    int    `json:"trip_duration"`
	NoCarsAvailable bool   `json:"no_cars_available"`
}

// EstimateRequest is the POST /ridehail/estimate body.
type EstimateRequest struct {
	Pickup  Location `json:"pickup" binding:"required"`
	Dropoff Location `json:"dropoff" binding:"required"`
}

// Guest identifies the rider on a guest trip.
type Guest struct {
	PhoneNumber string `json:"phone_number" binding:"required"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
}

// OrderRequest is the POST /ridehail/order body.
type OrderRequest struct {
	Guest         Guest    `json:"guest" binding:"required"`
	Pickup        Location `json:"pickup" binding:"required"`
	Dropoff       Location `json:"dropoff" binding:"required"`
	ProductID     string   `json:"product_id" binding:"required"`
	FareID        string   `json:"fare_id" binding:"required"`
	EstimatedFare decimal.Decimal `json:"estimated_fare" binding:"required"`
	NoteForDriver string   `json:"note_for_driver"`
}

// OrderResult is returned from a successful booking.
type OrderResult struct {
	TripID         int64           `json:"trip_id"`
	UberRequestID  string          `json:"uber_request_id"`
	BenefitApplied decimal.Decimal `json:"benefit_applied"`
}

// WebhookEvent is the inbound vendor callback payload.
type WebhookEvent struct {
	EventID      string    `json:"event_id"`
	EventTime    int64     `json:"event_time"`
	EventType    string    `json:"event_type"`
	ResourceHref string    `json:"resource_href"`
	Meta         EventMeta `json:"meta"`
}

// EventMeta carries the event subject.
type EventMeta struct {
	UserID     int64  `json:"user_id"`
	ResourceID string `json:"resource_id"`
	Status     string `json:"status"`
}

// Vendor event types.
const (
	EventStatusChanged = "guests.trips.status_changed"
	EventCompleted     = "guests.trips.completed"
	EventCancelled     = "guests.trips.cancelled"
)

// Receipt is the vendor's fare breakdown. Money fields arrive as currency
// strings like "$15.75".
type Receipt struct {
	RequestID         string             `json:"request_id"`
	Subtotal          string             `json:"subtotal"`
	TotalCharged      string             `json:"total_charged"`
	TotalOwed         *float64           `json:"total_owed"`
	CurrencyCode      string             `json:"currency_code"`
	ChargeAdjustments []ChargeAdjustment `json:"charge_adjustments"`
	Duration          string             `json:"duration"`
	Distance          string             `json:"distance"`
}

// ChargeAdjustment is one receipt line item.
type ChargeAdjustment struct {
	Name   string `json:"name"`
	Amount string `json:"amount"`
	Type   string `json:"type"`
}
