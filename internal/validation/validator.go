package validation

import (
	"time"

	"github.com/transitlab/tsp-api/internal/trips"
	"github.com/transitlab/tsp-api/pkg/geo"
)

// Validator decides whether a claimed trip is real enough to earn
// incentives.
type Validator struct {
	minPoints int
	modes     map[trips.TravelMode]func(*trips.Trip, []trips.TrajectoryPoint) Outcome
}

// NewValidator creates a validator. minPoints is the minimum trajectory
// sample count below which validation fails outright.
func NewValidator(minPoints int) *Validator {
	v := &Validator{minPoints: minPoints}
	v.modes = map[trips.TravelMode]func(*trips.Trip, []trips.TrajectoryPoint) Outcome{
		trips.ModeWalking:    v.validateSingleMode,
		trips.ModeBiking:     v.validateSingleMode,
		trips.ModeTransit:    v.validateSingleMode,
		trips.ModeDriving:    v.validateSingleMode,
		trips.ModeIntermodal: v.validateIntermodal,
	}
	return v
}

// Validate runs the mode-specific validation for a trip.
func (v *Validator) Validate(trip *trips.Trip, trajectory []trips.TrajectoryPoint) Outcome {
	validate, ok := v.modes[trip.TravelMode]
	if !ok {
		return failOutcome("No validation logic defined")
	}
	if reason, ok := v.checkDataQuality(trajectory); !ok {
		return failOutcome(reason)
	}
	return validate(trip, trajectory)
}

// checkDataQuality enforces the trajectory preconditions: enough samples
// and non-decreasing timestamps.
func (v *Validator) checkDataQuality(trajectory []trips.TrajectoryPoint) (string, bool) {
	if len(trajectory) < v.minPoints {
		return "insufficient trajectory", false
	}
	for i := 1; i < len(trajectory); i++ {
		if trajectory[i].Timestamp.Before(trajectory[i-1].Timestamp) {
			return "trajectory timestamps out of order", false
		}
	}
	return "", true
}

func (v *Validator) validateSingleMode(trip *trips.Trip, trajectory []trips.TrajectoryPoint) Outcome {
	avg, ok := averageSpeed(trajectory)
	if !ok {
		return failOutcome("insufficient trajectory")
	}

	speed := scoreSpeed(avg, trip.TravelMode)

	straightKm := geo.Distance(
		geo.Point{Lat: trip.Origin.Latitude, Lon: trip.Origin.Longitude},
		geo.Point{Lat: trip.Destination.Latitude, Lon: trip.Destination.Longitude},
	)
	route := scoreRoute(geo.PathLength(toPath(trajectory)), straightKm)

	planned, actual := tripDurations(trip)
	traffic := trip.TravelMode == trips.ModeDriving &&
		actual > planned &&
		avg < speedBands[trips.ModeDriving].min
	timing := scoreTime(planned, actual, traffic)

	return aggregate(speed, route, timing)
}

// validateIntermodal runs the standard dimensions and additionally requires
// at least two distinct detected modes with plausible transitions.
func (v *Validator) validateIntermodal(trip *trips.Trip, trajectory []trips.TrajectoryPoint) Outcome {
	segments := segmentModes(trajectory)
	if len(distinctModes(segments)) < 2 {
		return failOutcome("only one mode detected")
	}
	for i := 1; i < len(segments); i++ {
		if !validTransition(segments[i-1], segments[i]) {
			return failOutcome("implausible mode transition")
		}
	}

	avg, ok := averageSpeed(trajectory)
	if !ok {
		return failOutcome("insufficient trajectory")
	}

	// Intermodal has no single band; the mix spans walking through transit.
	speed := DimensionResult{Passed: avg > 0 && avg <= speedBands[trips.ModeTransit].max, Score: 1}

	straightKm := geo.Distance(
		geo.Point{Lat: trip.Origin.Latitude, Lon: trip.Origin.Longitude},
		geo.Point{Lat: trip.Destination.Latitude, Lon: trip.Destination.Longitude},
	)
	route := scoreRoute(geo.PathLength(toPath(trajectory)), straightKm)

	planned, actual := tripDurations(trip)
	timing := scoreTime(planned, actual, false)

	return aggregate(speed, route, timing)
}

func tripDurations(trip *trips.Trip) (planned, actual time.Duration) {
	if trip.EstimatedArrivalOn != nil {
		planned = trip.EstimatedArrivalOn.Sub(trip.StartedOn)
	}
	if trip.EndedOn != nil {
		actual = trip.EndedOn.Sub(trip.StartedOn)
	}
	return planned, actual
}

// segmentModes classifies each trajectory leg by speed and merges
// consecutive legs of the same mode.
func segmentModes(trajectory []trips.TrajectoryPoint) []trips.TravelMode {
	var segments []trips.TravelMode
	for i := 1; i < len(trajectory); i++ {
		dt := trajectory[i].Timestamp.Sub(trajectory[i-1].Timestamp)
		if dt <= 0 {
			continue
		}
		km := geo.Distance(
			geo.Point{Lat: trajectory[i-1].Latitude, Lon: trajectory[i-1].Longitude},
			geo.Point{Lat: trajectory[i].Latitude, Lon: trajectory[i].Longitude},
		)
		mode := classifySpeed(km / dt.Hours())
		if len(segments) == 0 || segments[len(segments)-1] != mode {
			segments = append(segments, mode)
		}
	}
	return segments
}

// classifySpeed assigns a leg to the slowest band that contains its speed.
func classifySpeed(kmh float64) trips.TravelMode {
	switch {
	case kmh < speedBands[trips.ModeWalking].max:
		return trips.ModeWalking
	case kmh < speedBands[trips.ModeBiking].max:
		return trips.ModeBiking
	case kmh < speedBands[trips.ModeTransit].max:
		return trips.ModeTransit
	default:
		return trips.ModeDriving
	}
}

func distinctModes(segments []trips.TravelMode) map[trips.TravelMode]struct{} {
	set := make(map[trips.TravelMode]struct{}, len(segments))
	for _, m := range segments {
		set[m] = struct{}{}
	}
	return set
}

// validTransition reports whether switching between two detected modes is
// plausible mid-trip. Walking connects to everything; biking also connects
// to transit.
func validTransition(from, to trips.TravelMode) bool {
	if from == trips.ModeWalking || to == trips.ModeWalking {
		return true
	}
	if (from == trips.ModeBiking && to == trips.ModeTransit) ||
		(from == trips.ModeTransit && to == trips.ModeBiking) {
		return true
	}
	return false
}
