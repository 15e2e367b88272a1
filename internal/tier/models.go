package tier

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Level classifies a user into the rewards tiers.
type Level string

const (
	LevelGreen  Level = "green"
	LevelBronze Level = "bronze"
	LevelSilver Level = "silver"
	LevelGold   Level = "gold"
)

// LevelForPoints maps tier points to a level.
func LevelForPoints(points int) Level {
	switch {
	case points >= 1501:
		return LevelGold
	case points >= 1001:
		return LevelSilver
	case points >= 501:
		return LevelBronze
	default:
		return LevelGreen
	}
}

// Tier is a user's classification snapshot.
type Tier struct {
	Level       Level           `json:"level"`
	Points      int             `json:"points"`
	UberBenefit decimal.Decimal `json:"uber_benefit"`
}

// BenefitRules are the static per-level entitlements.
type BenefitRules struct {
	Level              Level           `json:"level"`
	RaffleMultiplier   decimal.Decimal `json:"raffle_multiplier"`
	ReferralMultiplier decimal.Decimal `json:"referral_multiplier"`
	UberCredit         decimal.Decimal `json:"uber_credit"`
	Toast              string          `json:"toast"`
}

var ruleTable = map[Level]BenefitRules{
	LevelGreen: {
		Level:              LevelGreen,
		RaffleMultiplier:   decimal.NewFromInt(1),
		ReferralMultiplier: decimal.RequireFromString("1.00"),
		UberCredit:         decimal.NewFromInt(0),
		Toast:              "We've added {1} Coin{2} to your Wallet!",
	},
	LevelBronze: {
		Level:              LevelBronze,
		RaffleMultiplier:   decimal.NewFromInt(2),
		ReferralMultiplier: decimal.RequireFromString("1.15"),
		UberCredit:         decimal.NewFromInt(4),
		Toast:              "Bronze perk applied: {1} Coin{2} added to your Wallet!",
	},
	LevelSilver: {
		Level:              LevelSilver,
		RaffleMultiplier:   decimal.NewFromInt(3),
		ReferralMultiplier: decimal.RequireFromString("1.25"),
		UberCredit:         decimal.NewFromInt(6),
		Toast:              "Silver perk applied: {1} Coin{2} added to your Wallet!",
	},
	LevelGold: {
		Level:              LevelGold,
		RaffleMultiplier:   decimal.NewFromInt(4),
		ReferralMultiplier: decimal.RequireFromString("1.50"),
		UberCredit:         decimal.NewFromInt(8),
		Toast:              "Gold perk applied: {1} Coin{2} added to your Wallet!",
	},
}

// RulesForLevel returns the benefit rules for a level, green for unknown
// levels.
func RulesForLevel(level Level) BenefitRules {
	if rules, ok := ruleTable[level]; ok {
		return rules
	}
	return ruleTable[LevelGreen]
}

// DepositForLevel returns the monthly Uber credit for a level.
func DepositForLevel(level Level) decimal.Decimal {
	return RulesForLevel(level).UberCredit
}

// RenderToast fills a toast template: {1} is the coin amount, {2} the plural
// suffix.
func RenderToast(template string, amount decimal.Decimal) string {
	plural := "s"
	if amount.Equal(decimal.NewFromInt(1)) {
		plural = ""
	}
	out := strings.ReplaceAll(template, "{1}", amount.String())
	return strings.ReplaceAll(out, "{2}", plural)
}
