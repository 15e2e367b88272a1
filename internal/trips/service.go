package trips

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/transitlab/tsp-api/pkg/common"
	"github.com/transitlab/tsp-api/pkg/geo"
	"github.com/transitlab/tsp-api/pkg/logger"
)

// Store is the trip persistence surface.
type Store interface {
	Insert(ctx context.Context, t *Trip) (int64, error)
	Get(ctx context.Context, id int64) (*Trip, error)
	End(ctx context.Context, req *EndTripRequest, userID int64) (*Trip, error)
	SetTrajectoryDistance(ctx context.Context, id int64, km float64) error
	EnqueueValidation(ctx context.Context, tripID int64, round int) error
	ListRecent(ctx context.Context, userID int64, limit int) ([]Trip, error)
}

// Trajectories is the GPS sample store.
type Trajectories interface {
	Append(ctx context.Context, tripID int64, points []TrajectoryPoint) error
	Load(ctx context.Context, tripID int64) ([]TrajectoryPoint, error)
}

// Service handles the trip lifecycle: start, end, trajectory upload. Ending
// a trip enqueues it for validation.
type Service struct {
	store      Store
	trajectory Trajectories
	now        func() time.Time
}

// NewService creates a new trips service
func NewService(store Store, trajectory Trajectories) *Service {
	return &Service{store: store, trajectory: trajectory, now: time.Now}
}

// StartTrip records a new claimed trip and returns its id.
func (s *Service) StartTrip(ctx context.Context, userID int64, req StartTripRequest) (int64, error) {
	if !KnownMode(req.TravelMode) {
		return 0, common.NewBadRequestError(fmt.Sprintf("unknown travel mode %d", req.TravelMode), nil)
	}
	if req.EstimatedArrivalOn != nil && !req.EstimatedArrivalOn.After(s.now()) {
		return 0, common.NewBadRequestError("estimated_arrival_on must be in the future", nil)
	}

	id, err := s.store.Insert(ctx, &Trip{
		UserID:             userID,
		TravelMode:         req.TravelMode,
		Origin:             req.Origin,
		Destination:        req.Destination,
		StartedOn:          s.now().UTC(),
		EstimatedArrivalOn: req.EstimatedArrivalOn,
		NavigationApp:      req.NavigationApp,
		ReservationID:      req.ReservationID,
		Market:             req.Market,
	})
	if err != nil {
		return 0, common.NewInternalError("failed to start trip", err)
	}
	return id, nil
}

// EndTrip closes the trip and enqueues round one of validation. Ending an
// already-ended trip is rejected.
func (s *Service) EndTrip(ctx context.Context, userID int64, req EndTripRequest) (*Trip, error) {
	if !req.EndedOn.After(time.Time{}) {
		return nil, common.NewBadRequestError("ended_on is required", nil)
	}

	trip, err := s.store.End(ctx, &req, userID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.NewNotFoundError("trip not found or already ended", err)
	}
	if err != nil {
		return nil, common.NewInternalError("failed to end trip", err)
	}

	if err := s.store.EnqueueValidation(ctx, trip.ID, 1); err != nil {
		// The trip end stands; a missed enqueue only delays the incentive.
		logger.WithContext(ctx).Error("validation enqueue failed",
			zap.Int64("trip_id", trip.ID), zap.Error(err))
	}

	return trip, nil
}

// UploadTrajectory appends a batch of GPS samples and refreshes the measured
// path length.
func (s *Service) UploadTrajectory(ctx context.Context, userID int64, req UploadTrajectoryRequest) error {
	trip, err := s.store.Get(ctx, req.TripID)
	if errors.Is(err, pgx.ErrNoRows) {
		return common.NewNotFoundError("trip not found", err)
	}
	if err != nil {
		return common.NewInternalError("failed to load trip", err)
	}
	if trip.UserID != userID {
		return common.NewNotFoundError("trip not found", nil)
	}
	if len(req.Points) == 0 {
		return common.NewBadRequestError("points must not be empty", nil)
	}

	if err := s.trajectory.Append(ctx, req.TripID, req.Points); err != nil {
		return common.NewInternalError("failed to store trajectory", err)
	}

	all, err := s.trajectory.Load(ctx, req.TripID)
	if err != nil {
		logger.WithContext(ctx).Warn("trajectory reload failed",
			zap.Int64("trip_id", req.TripID), zap.Error(err))
		return nil
	}
	km := geo.PathLength(toGeoPath(all))
	if err := s.store.SetTrajectoryDistance(ctx, req.TripID, km); err != nil {
		logger.WithContext(ctx).Warn("trajectory distance update failed",
			zap.Int64("trip_id", req.TripID), zap.Error(err))
	}
	return nil
}

// GetTrip loads one trip owned by the caller.
func (s *Service) GetTrip(ctx context.Context, userID, tripID int64) (*Trip, error) {
	trip, err := s.store.Get(ctx, tripID)
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

// ListTrips returns the caller's recent trips.
func (s *Service) ListTrips(ctx context.Context, userID int64, limit int) ([]Trip, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	out, err := s.store.ListRecent(ctx, userID, limit)
	if err != nil {
		return nil, common.NewInternalError("failed to list trips", err)
	}
	return out, nil
}

func toGeoPath(points []TrajectoryPoint) []geo.Point {
	path := make([]geo.Point, len(points))
	for i, p := range points {
		path[i] = geo.Point{Lat: p.Latitude, Lon: p.Longitude}
	}
	return path
}
