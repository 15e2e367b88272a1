package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// ActivityType enumerates the economic reason behind a points transaction.
// The type is persisted for auditing and has no effect on balance arithmetic.
type ActivityType int

const (
	ActivityPurchase   ActivityType = 2
	ActivityDebit      ActivityType = 3
	ActivityReward     ActivityType = 4
	ActivityRefund     ActivityType = 5
	ActivityIncentive  ActivityType = 6
	ActivityServiceFee ActivityType = 8
	ActivitySpend      ActivityType = 11
	ActivityMultiParty ActivityType = 18
)

// Service accounts live in the reserved 2000-2199 range. Their balances are
// allowed to go negative.
const (
	AccountSystem         int64 = 2002
	AccountTransactionFee int64 = 2104
	AccountParkingFee     int64 = 2105
	AccountUber           int64 = 2107

	serviceAccountMin int64 = 2000
	serviceAccountMax int64 = 2199
)

// IsServiceAccount reports whether the user ID belongs to a platform-owned
// service account.
func IsServiceAccount(userID int64) bool {
	return userID >= serviceAccountMin && userID <= serviceAccountMax
}

// Wallet is the per-user coin wallet. The balance column is a materialized
// cache of the transaction sum, updated under the same transaction boundary
// as every ledger write.
type Wallet struct {
	UserID            int64            `json:"user_id"`
	Balance           decimal.Decimal  `json:"balance"`
	AutoRefill        bool             `json:"auto_refill"`
	BelowBalance      decimal.Decimal  `json:"below_balance"`
	RefillPlanID      *int64           `json:"refill_plan_id,omitempty"`
	PaymentCustomerID *string          `json:"payment_customer_id,omitempty"`
	CreatedOn         time.Time        `json:"created_on"`
	UpdatedOn         time.Time        `json:"updated_on"`
}

// PointsTransaction is one immutable row of the coin ledger.
type PointsTransaction struct {
	ID               int64           `json:"id"`
	UserID           int64           `json:"user_id"`
	ActivityType     ActivityType    `json:"activity_type"`
	Points           decimal.Decimal `json:"points"`
	Payer            *int64          `json:"payer,omitempty"`
	Payee            *int64          `json:"payee,omitempty"`
	RefTransactionID *int64          `json:"ref_transaction_id,omitempty"`
	Note             string          `json:"note"`
	CreatedOn        time.Time       `json:"created_on"`
}

// TokenTransaction is one row of the campaign token ledger. Tokens expire;
// an expired balance is retained but unspendable.
type TokenTransaction struct {
	ID         int64           `json:"id"`
	UserID     int64           `json:"user_id"`
	CampaignID int64           `json:"campaign_id"`
	Tokens     decimal.Decimal `json:"tokens"`
	Balance    decimal.Decimal `json:"balance"`
	Note       string          `json:"note"`
	IssuedOn   time.Time       `json:"issued_on"`
	ExpiredOn  time.Time       `json:"expired_on"`
	CreatedOn  time.Time       `json:"created_on"`
}

// PurchaseTransaction records an external card charge feeding a coin credit.
// Rows are summed per local day to enforce the purchase limit.
type PurchaseTransaction struct {
	ID                    int64           `json:"id"`
	UserID                int64           `json:"user_id"`
	PointTransactionID    int64           `json:"point_transaction_id"`
	Points                decimal.Decimal `json:"points"`
	Amount                decimal.Decimal `json:"amount"`
	Currency              string          `json:"currency"`
	ExternalTransactionID string          `json:"external_transaction_id"`
	CreatedOn             time.Time       `json:"created_on"`
}

// RecordInput describes one ledger write. When both Payer and Payee are set
// the write is a paired transfer: a counterparty row with negated points is
// recorded atomically alongside the primary row.
type RecordInput struct {
	UserID       int64
	ActivityType ActivityType
	Points       decimal.Decimal
	Note         string
	Payer        *int64
	Payee        *int64
	RefAccount   *int64
}

// RecordResult is returned from a successful ledger write. Balance is the
// UserID side of the write.
type RecordResult struct {
	TransactionID int64           `json:"transaction_id"`
	Balance       decimal.Decimal `json:"balance"`
}
