package validation

import (
	"math"
	"time"

	"github.com/transitlab/tsp-api/internal/trips"
	"github.com/transitlab/tsp-api/pkg/geo"
)

// Dimension names used in the stored result details.
const (
	DimSpeed = "speed"
	DimRoute = "route"
	DimTime  = "time"
)

// Aggregate weights for speed/route/time.
const (
	weightSpeed = 0.4
	weightRoute = 0.4
	weightTime  = 0.2

	passThreshold = 0.5
)

// Route ratio bounds: trajectory distance over straight-line distance.
// Real trips meander; a ratio below 1 means the trajectory is shorter than
// the crow flies, above 3 means wandering far off route.
const (
	routeRatioMin  = 1.0
	routeRatioPeak = 1.2
	routeRatioMax  = 3.0
)

// timeTolerance is the accepted deviation from the planned duration, as a
// fraction of the plan.
const timeTolerance = 0.3

// speedBand is the plausible average speed range for a mode, km/h. Bands
// overlap; the claimed mode is authoritative and the band only scores
// consistency.
type speedBand struct {
	min, max float64
}

var speedBands = map[trips.TravelMode]speedBand{
	trips.ModeWalking: {0, 8},
	trips.ModeBiking:  {8, 25},
	trips.ModeTransit: {15, 50},
	trips.ModeDriving: {25, 120},
}

// DimensionResult is one scored validation dimension.
type DimensionResult struct {
	Passed bool    `json:"passed"`
	Score  float64 `json:"score"`
	Detail string  `json:"detail,omitempty"`
}

// Outcome is the full result of validating one trip.
type Outcome struct {
	Passed     bool                       `json:"passed"`
	Score      float64                    `json:"score"`
	Dimensions map[string]DimensionResult `json:"dimensions,omitempty"`
	Message    string                     `json:"message,omitempty"`
}

func failOutcome(message string) Outcome {
	return Outcome{Passed: false, Score: 0, Message: message}
}

// averageSpeed derives km/h from the trajectory path length and elapsed
// time, ignoring client-reported speeds.
func averageSpeed(points []trips.TrajectoryPoint) (float64, bool) {
	if len(points) < 2 {
		return 0, false
	}
	elapsed := points[len(points)-1].Timestamp.Sub(points[0].Timestamp)
	if elapsed <= 0 {
		return 0, false
	}
	km := geo.PathLength(toPath(points))
	return km / elapsed.Hours(), true
}

func toPath(points []trips.TrajectoryPoint) []geo.Point {
	path := make([]geo.Point, len(points))
	for i, p := range points {
		path[i] = geo.Point{Lat: p.Latitude, Lon: p.Longitude}
	}
	return path
}

// scoreSpeed scores how well the average speed fits the claimed mode's band.
func scoreSpeed(avg float64, mode trips.TravelMode) DimensionResult {
	band, ok := speedBands[mode]
	if !ok {
		return DimensionResult{Passed: false, Score: 0, Detail: "no speed band for mode"}
	}

	center := (band.min + band.max) / 2
	halfwidth := (band.max - band.min) / 2
	score := clamp01(1 - math.Abs(avg-center)/halfwidth)
	return DimensionResult{
		Passed: avg >= band.min && avg <= band.max,
		Score:  score,
	}
}

// scoreRoute scores the trajectory length against the straight-line
// distance. The score peaks at the typical meander ratio and decays
// linearly to the bounds.
func scoreRoute(trajectoryKm, straightKm float64) DimensionResult {
	if straightKm <= 0 {
		return DimensionResult{Passed: false, Score: 0, Detail: "zero planned distance"}
	}
	ratio := trajectoryKm / straightKm
	passed := ratio >= routeRatioMin && ratio <= routeRatioMax

	var score float64
	switch {
	case ratio < routeRatioMin || ratio > routeRatioMax:
		score = 0
	case ratio <= routeRatioPeak:
		score = (ratio - routeRatioMin) / (routeRatioPeak - routeRatioMin)
	default:
		score = (routeRatioMax - ratio) / (routeRatioMax - routeRatioPeak)
	}
	return DimensionResult{Passed: passed, Score: clamp01(score)}
}

// scoreTime scores the actual duration against the plan. Driving trips
// slower than their band get doubled tolerance: being stuck in traffic is
// not fraud.
func scoreTime(planned, actual time.Duration, trafficAdjusted bool) DimensionResult {
	if planned <= 0 {
		return DimensionResult{Passed: true, Score: 1, Detail: "no planned duration"}
	}

	tolerance := timeTolerance * float64(planned)
	if trafficAdjusted {
		tolerance *= 2
	}
	deviation := math.Abs(float64(actual - planned))
	return DimensionResult{
		Passed: deviation <= tolerance,
		Score:  clamp01(1 - deviation/tolerance),
	}
}

// aggregate combines the three dimensions into the final outcome.
func aggregate(speed, route, timing DimensionResult) Outcome {
	score := weightSpeed*speed.Score + weightRoute*route.Score + weightTime*timing.Score
	return Outcome{
		Passed: speed.Passed && route.Passed && timing.Passed && score >= passThreshold,
		Score:  score,
		Dimensions: map[string]DimensionResult{
			DimSpeed: speed,
			DimRoute: route,
			DimTime:  timing,
		},
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
