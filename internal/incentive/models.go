package incentive

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/transitlab/tsp-api/internal/trips"
)

// ModeRule parameterizes the reward draw for one travel mode.
type ModeRule struct {
	Distance float64 `json:"distance"` // minimum qualifying distance, km
	Mean     float64 `json:"mean"`     // target mean of the draw
	Min      float64 `json:"min"`      // draw lower bound
	Max      float64 `json:"max"`      // draw upper bound
	Beta     float64 `json:"beta"`     // probability of paying the max outright
}

// Rule is the active incentive configuration for one market. D, H, D1, D2,
// and MC are campaign tuning constants carried through from the rule author.
type Rule struct {
	ID        int64                         `json:"id"`
	Market    string                        `json:"market"`
	D         float64                       `json:"d"`
	H         float64                       `json:"h"`
	D1        float64                       `json:"d1"`
	D2        float64                       `json:"d2"`
	L         decimal.Decimal               `json:"l"` // per-transaction reward cap
	W         decimal.Decimal               `json:"w"` // first-trip welcome bonus
	MC        float64                       `json:"mc"`
	Modes     map[trips.TravelMode]ModeRule `json:"modes"`
	UpdatedOn time.Time                     `json:"updated_on"`
}

// UpsertRuleRequest replaces a market's active rule.
type UpsertRuleRequest struct {
	Market string                        `json:"market" binding:"required"`
	D      float64                       `json:"d"`
	H      float64                       `json:"h"`
	D1     float64                       `json:"d1"`
	D2     float64                       `json:"d2"`
	L      decimal.Decimal               `json:"l"`
	W      decimal.Decimal               `json:"w"`
	MC     float64                       `json:"mc"`
	Modes  map[trips.TravelMode]ModeRule `json:"modes" binding:"required"`
}
