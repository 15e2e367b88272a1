package incentive

import (
	"sync"

	"github.com/shopspring/decimal"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// betaConcentration fixes the spread of the reward distribution. The two
// shape parameters are derived from it and the rule's target mean.
const betaConcentration = 5.0

// Drawer produces reward amounts from a mode rule. The generator is
// seedable so draws are reproducible in tests.
type Drawer struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewDrawer creates a drawer seeded with the given value.
func NewDrawer(seed uint64) *Drawer {
	return &Drawer{rng: rand.New(rand.NewSource(seed))}
}

// Draw samples a reward for one validated trip. With probability rule.Beta
// the full max pays out; otherwise the amount comes from a Beta distribution
// shaped so its mean lands on rule.Mean within [rule.Min, rule.Max]. The
// result is rounded to cents and clamped to [0, rule.Max] and the limit.
func (d *Drawer) Draw(rule ModeRule, limit decimal.Decimal) decimal.Decimal {
	d.mu.Lock()
	defer d.mu.Unlock()

	maxAmount := decimal.NewFromFloat(rule.Max)

	var amount decimal.Decimal
	if d.rng.Float64() < rule.Beta {
		amount = maxAmount
	} else {
		amount = decimal.NewFromFloat(d.sampleBeta(rule)).Round(2)
	}

	if amount.Sign() < 0 {
		amount = decimal.Zero
	}
	if amount.GreaterThan(maxAmount) {
		amount = maxAmount
	}
	if limit.Sign() > 0 && amount.GreaterThan(limit) {
		amount = limit
	}
	return amount
}

func (d *Drawer) sampleBeta(rule ModeRule) float64 {
	span := rule.Max - rule.Min
	if span <= 0 {
		return rule.Min
	}

	// Normalize the target mean into (0,1) and derive the shape parameters
	// from the fixed concentration.
	m := (rule.Mean - rule.Min) / span
	if m <= 0 {
		return rule.Min
	}
	if m >= 1 {
		return rule.Max
	}

	dist := distuv.Beta{
		Alpha: m * betaConcentration,
		Beta:  (1 - m) * betaConcentration,
		Src:   d.rng,
	}
	return rule.Min + dist.Rand()*span
}
