package trips

import (
	"time"

	"github.com/shopspring/decimal"
)

// TravelMode enumerates how the user claims to have travelled.
type TravelMode int

const (
	ModeDriving    TravelMode = 1
	ModeTransit    TravelMode = 2
	ModeWalking    TravelMode = 3
	ModeBiking     TravelMode = 4
	ModeIntermodal TravelMode = 5
)

// KnownMode reports whether the mode has validation logic defined.
func KnownMode(m TravelMode) bool {
	switch m {
	case ModeDriving, ModeTransit, ModeWalking, ModeBiking, ModeIntermodal:
		return true
	}
	return false
}

// Place is a named coordinate on a trip.
type Place struct {
	Latitude  float64 `json:"latitude" binding:"required"`
	Longitude float64 `json:"longitude" binding:"required"`
	Name      string  `json:"name"`
	Address   string  `json:"address"`
}

// Trip is one claimed journey. Trajectory points live in the document store.
type Trip struct {
	ID                 int64            `json:"id"`
	UserID             int64            `json:"user_id"`
	TravelMode         TravelMode       `json:"travel_mode"`
	Origin             Place            `json:"origin"`
	Destination        Place            `json:"destination"`
	StartedOn          time.Time        `json:"started_on"`
	EstimatedArrivalOn *time.Time       `json:"estimated_arrival_on,omitempty"`
	EndedOn            *time.Time       `json:"ended_on,omitempty"`
	TripDetailUUID     string           `json:"trip_detail_uuid"`
	NavigationApp      string           `json:"navigation_app,omitempty"`
	Distance           *decimal.Decimal `json:"distance,omitempty"`
	TrajectoryDistance *decimal.Decimal `json:"trajectory_distance,omitempty"`
	EndStatus          string           `json:"end_status,omitempty"`
	ReservationID      *int64           `json:"reservation_id,omitempty"`
	ValidationComplete bool             `json:"validation_complete"`
	Market             string           `json:"market"`
}

// TrajectoryPoint is one GPS sample. Speed is km/h as reported by the
// client; accuracy is meters.
type TrajectoryPoint struct {
	Latitude  float64   `json:"latitude" bson:"latitude"`
	Longitude float64   `json:"longitude" bson:"longitude"`
	Timestamp time.Time `json:"timestamp" bson:"timestamp"`
	Speed     float64   `json:"speed" bson:"speed"`
	Accuracy  float64   `json:"accuracy" bson:"accuracy"`
}

// StartTripRequest is the POST /trip/start body.
type StartTripRequest struct {
	TravelMode         TravelMode `json:"travel_mode" binding:"required"`
	Origin             Place      `json:"origin" binding:"required"`
	Destination        Place      `json:"destination" binding:"required"`
	EstimatedArrivalOn *time.Time `json:"estimated_arrival_on"`
	NavigationApp      string     `json:"navigation_app"`
	ReservationID      *int64     `json:"reservation_id"`
	Market             string     `json:"market"`
}

// EndTripRequest is the POST /trip/end body.
type EndTripRequest struct {
	TripID    int64            `json:"trip_id" binding:"required"`
	Distance  *decimal.Decimal `json:"distance"`
	EndedOn   time.Time        `json:"ended_on" binding:"required"`
	EndStatus string           `json:"end_status"`
}

// UploadTrajectoryRequest is the POST /trip/trajectory body. Clients batch
// samples and may upload after the trip has ended.
type UploadTrajectoryRequest struct {
	TripID int64             `json:"trip_id" binding:"required"`
	Points []TrajectoryPoint `json:"points" binding:"required"`
}
