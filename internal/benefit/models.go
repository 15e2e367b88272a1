package benefit

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction is one row of the Uber benefit ledger, kept separate from the
// coin wallet. BenefitAmount moves the credit itself; TransactionAmount
// mirrors the associated user cash movement for audit.
type Transaction struct {
	ID                int64           `json:"id"`
	UserID            int64           `json:"user_id"`
	BenefitAmount     decimal.Decimal `json:"benefit_amount"`
	TransactionAmount decimal.Decimal `json:"transaction_amount"`
	TransactionID     int64           `json:"transaction_id"`
	CreatedOn         time.Time       `json:"created_on"`
}
