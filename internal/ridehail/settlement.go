package ridehail

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrBadReceiptAmount is returned when a vendor money string cannot be
// parsed. The receipt is rejected and settlement deferred to the next
// webhook delivery.
var ErrBadReceiptAmount = errors.New("unparseable receipt amount")

// Settlement is the money movement plan for one completed ride. All values
// are non-negative; direction is fixed per field.
type Settlement struct {
	// UserPaid was collected from the user at order time: max(0, E-B).
	UserPaid decimal.Decimal
	// UserOwes is what the user should end up paying: max(0, A-B).
	UserOwes decimal.Decimal
	// UserRefund flows Uber -> user when the estimate overshot.
	UserRefund decimal.Decimal
	// UserExtraDebit flows user -> Uber when the actual fare overshot the
	// collected funds. Posted even against insufficient balance.
	UserExtraDebit decimal.Decimal
	// BenefitUsed is the consumed tier credit: min(A, B).
	BenefitUsed decimal.Decimal
	// PlatformToUber is the subsidy the platform owes Uber so Uber ends up
	// holding exactly the actual fare. Equals BenefitUsed.
	PlatformToUber decimal.Decimal
}

// ComputeSettlement derives the settlement plan from the estimated fare,
// actual fare, and tier benefit that were fixed at order time.
func ComputeSettlement(estimated, actual, benefit decimal.Decimal) Settlement {
	userPaid := maxZero(estimated.Sub(benefit))
	userOwes := maxZero(actual.Sub(benefit))
	benefitUsed := decimal.Min(actual, benefit)

	s := Settlement{
		UserPaid:       userPaid,
		UserOwes:       userOwes,
		BenefitUsed:    benefitUsed,
		PlatformToUber: benefitUsed,
	}

	diff := userPaid.Sub(userOwes)
	if diff.Sign() >= 0 {
		s.UserRefund = diff
		s.UserExtraDebit = decimal.Zero
	} else {
		s.UserRefund = decimal.Zero
		s.UserExtraDebit = diff.Neg()
	}
	return s
}

// RequiredUserFunds is the amount collected from the wallet at order time.
func RequiredUserFunds(estimated, benefit decimal.Decimal) decimal.Decimal {
	return maxZero(estimated.Sub(benefit))
}

// ParseMoney converts a vendor currency string such as "$15.75" into a
// decimal. Any parse failure rejects the receipt.
func ParseMoney(s string) (decimal.Decimal, error) {
	trimmed := strings.TrimSpace(s)
	trimmed = strings.TrimPrefix(trimmed, "$")
	if trimmed == "" {
		return decimal.Zero, ErrBadReceiptAmount
	}
	d, err := decimal.NewFromString(trimmed)
	if err != nil {
		return decimal.Zero, ErrBadReceiptAmount
	}
	return d, nil
}

func maxZero(d decimal.Decimal) decimal.Decimal {
	if d.Sign() < 0 {
		return decimal.Zero
	}
	return d
}
