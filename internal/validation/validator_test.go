package validation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/transitlab/tsp-api/internal/trips"
)

var tripStart = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

// walkTrajectory builds n points moving north at roughly 4 km/h.
func walkTrajectory(n int) []trips.TrajectoryPoint {
	points := make([]trips.TrajectoryPoint, n)
	for i := 0; i < n; i++ {
		points[i] = trips.TrajectoryPoint{
			Latitude:  29.7600 + float64(i)*0.002,
			Longitude: -95.3600,
			Timestamp: tripStart.Add(time.Duration(i) * 200 * time.Second),
		}
	}
	return points
}

func walkingTrip() *trips.Trip {
	eta := tripStart.Add(30 * time.Minute)
	ended := tripStart.Add(25 * time.Minute)
	return &trips.Trip{
		ID:                 42,
		UserID:             1006,
		TravelMode:         trips.ModeWalking,
		Origin:             trips.Place{Latitude: 29.7600, Longitude: -95.3600},
		Destination:        trips.Place{Latitude: 29.7600 + 0.0116674, Longitude: -95.3600},
		StartedOn:          tripStart,
		EstimatedArrivalOn: &eta,
		EndedOn:            &ended,
	}
}

func TestValidateWalkingTripPasses(t *testing.T) {
	v := NewValidator(5)

	outcome := v.Validate(walkingTrip(), walkTrajectory(8))

	require.True(t, outcome.Passed, "dimensions: %+v", outcome.Dimensions)
	assert.GreaterOrEqual(t, outcome.Score, 0.7)
	assert.True(t, outcome.Dimensions[DimSpeed].Passed)
	assert.True(t, outcome.Dimensions[DimRoute].Passed)
	assert.True(t, outcome.Dimensions[DimTime].Passed)
}

func TestValidateRejectsShortTrajectory(t *testing.T) {
	v := NewValidator(5)

	outcome := v.Validate(walkingTrip(), walkTrajectory(4))

	assert.False(t, outcome.Passed)
	assert.Zero(t, outcome.Score)
	assert.Equal(t, "insufficient trajectory", outcome.Message)
}

func TestValidateRejectsOutOfOrderTimestamps(t *testing.T) {
	v := NewValidator(5)
	points := walkTrajectory(8)
	points[3].Timestamp = points[5].Timestamp

	outcome := v.Validate(walkingTrip(), points)

	assert.False(t, outcome.Passed)
	assert.Equal(t, "trajectory timestamps out of order", outcome.Message)
}

func TestValidateUnknownMode(t *testing.T) {
	v := NewValidator(5)
	trip := walkingTrip()
	trip.TravelMode = trips.TravelMode(77)

	outcome := v.Validate(trip, walkTrajectory(8))

	assert.False(t, outcome.Passed)
	assert.Equal(t, "No validation logic defined", outcome.Message)
}

func TestValidateIntermodalSingleModeFails(t *testing.T) {
	v := NewValidator(5)
	trip := walkingTrip()
	trip.TravelMode = trips.ModeIntermodal

	outcome := v.Validate(trip, walkTrajectory(8))

	assert.False(t, outcome.Passed)
	assert.Equal(t, "only one mode detected", outcome.Message)
}

func TestValidateIntermodalTwoModes(t *testing.T) {
	v := NewValidator(5)

	// Walk at ~4 km/h, then ride transit at ~36 km/h.
	points := walkTrajectory(5)
	last := points[len(points)-1]
	for i := 1; i <= 4; i++ {
		points = append(points, trips.TrajectoryPoint{
			Latitude:  last.Latitude + float64(i)*0.018,
			Longitude: last.Longitude,
			Timestamp: last.Timestamp.Add(time.Duration(i) * 200 * time.Second),
		})
	}

	eta := tripStart.Add(50 * time.Minute)
	ended := points[len(points)-1].Timestamp
	trip := &trips.Trip{
		TravelMode:         trips.ModeIntermodal,
		Origin:             trips.Place{Latitude: points[0].Latitude, Longitude: points[0].Longitude},
		Destination:        trips.Place{Latitude: points[len(points)-1].Latitude, Longitude: points[len(points)-1].Longitude},
		StartedOn:          tripStart,
		EstimatedArrivalOn: &eta,
		EndedOn:            &ended,
	}

	outcome := v.Validate(trip, points)

	assert.NotEqual(t, "only one mode detected", outcome.Message)
	assert.True(t, outcome.Dimensions[DimSpeed].Passed)
}

func TestScoreSpeedBands(t *testing.T) {
	tests := []struct {
		mode   trips.TravelMode
		avg    float64
		passed bool
	}{
		{trips.ModeWalking, 4, true},
		{trips.ModeWalking, 8, true},
		{trips.ModeWalking, 8.1, false},
		{trips.ModeBiking, 8, true},
		{trips.ModeBiking, 25, true},
		{trips.ModeBiking, 30, false},
		{trips.ModeTransit, 15, true},
		{trips.ModeTransit, 50, true},
		{trips.ModeDriving, 25, true},
		{trips.ModeDriving, 120, true},
		{trips.ModeDriving, 20, false},
	}

	for _, tt := range tests {
		result := scoreSpeed(tt.avg, tt.mode)
		assert.Equal(t, tt.passed, result.Passed, "mode %d avg %.1f", tt.mode, tt.avg)
	}

	// Score peaks at band center and decays toward the edges.
	center := scoreSpeed(4, trips.ModeWalking)
	edge := scoreSpeed(7, trips.ModeWalking)
	assert.InDelta(t, 1.0, center.Score, 0.001)
	assert.Greater(t, center.Score, edge.Score)
}

func TestScoreRoute(t *testing.T) {
	peak := scoreRoute(1.2, 1.0)
	assert.True(t, peak.Passed)
	assert.InDelta(t, 1.0, peak.Score, 0.001)

	tooShort := scoreRoute(0.9, 1.0)
	assert.False(t, tooShort.Passed)
	assert.Zero(t, tooShort.Score)

	wandering := scoreRoute(3.5, 1.0)
	assert.False(t, wandering.Passed)
	assert.Zero(t, wandering.Score)

	atUpperBound := scoreRoute(3.0, 1.0)
	assert.True(t, atUpperBound.Passed)
	assert.InDelta(t, 0.0, atUpperBound.Score, 0.001)
}

func TestScoreTime(t *testing.T) {
	within := scoreTime(30*time.Minute, 25*time.Minute, false)
	assert.True(t, within.Passed)
	assert.InDelta(t, 1-5.0/9.0, within.Score, 0.001)

	over := scoreTime(30*time.Minute, 45*time.Minute, false)
	assert.False(t, over.Passed)

	// Traffic doubles the tolerance for slow driving trips.
	traffic := scoreTime(30*time.Minute, 45*time.Minute, true)
	assert.True(t, traffic.Passed)
}

func TestValidTransitions(t *testing.T) {
	assert.True(t, validTransition(trips.ModeWalking, trips.ModeDriving))
	assert.True(t, validTransition(trips.ModeTransit, trips.ModeWalking))
	assert.True(t, validTransition(trips.ModeBiking, trips.ModeTransit))
	assert.False(t, validTransition(trips.ModeBiking, trips.ModeDriving))
	assert.False(t, validTransition(trips.ModeDriving, trips.ModeTransit))
}
