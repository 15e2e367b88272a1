package wallet

import (
	"time"

	"github.com/shopspring/decimal"
)

// ProductKind separates purchasable coin bundles from redeemable items.
type ProductKind string

const (
	KindPurchase ProductKind = "purchase"
	KindRedeem   ProductKind = "redeem"
)

// PointProduct is a catalog row: a coin bundle the user can buy with a card,
// or an item redeemable with coins.
type PointProduct struct {
	ID        int64           `json:"id"`
	Kind      ProductKind     `json:"kind"`
	Name      string          `json:"name"`
	Points    decimal.Decimal `json:"points"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
	Active    bool            `json:"active"`
	CreatedOn time.Time       `json:"created_on"`
}

// BlockedUser marks a user whose debit-like operations are suspended.
type BlockedUser struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	IsDeleted bool      `json:"is_deleted"`
	CreatedOn time.Time `json:"created_on"`
}

// RedemptionTransaction records a coin redemption, mirrored after purchase
// records so the daily redeem limit can be summed per local day.
type RedemptionTransaction struct {
	ID                 int64           `json:"id"`
	UserID             int64           `json:"user_id"`
	PointTransactionID int64           `json:"point_transaction_id"`
	ItemID             int64           `json:"item_id"`
	Points             decimal.Decimal `json:"points"`
	CreatedOn          time.Time       `json:"created_on"`
}

// Summary is the wallet overview returned to clients.
type Summary struct {
	Balance           BalanceSummary    `json:"balance"`
	AutoRefill        AutoRefillSetting `json:"auto_refill"`
	PaymentCustomerID *string           `json:"payment_customer_id,omitempty"`
}

// BalanceSummary holds both currencies.
type BalanceSummary struct {
	Coins  decimal.Decimal `json:"coins"`
	Tokens decimal.Decimal `json:"tokens"`
}

// AutoRefillSetting is the user-configurable refill behaviour.
type AutoRefillSetting struct {
	Enabled      bool            `json:"enabled"`
	BelowBalance decimal.Decimal `json:"below_balance"`
	RefillPlanID *int64          `json:"refill_plan_id,omitempty"`
}

// UpdateSettingsRequest is the PUT /wallet/setting body.
type UpdateSettingsRequest struct {
	AutoRefill   bool            `json:"auto_refill"`
	BelowBalance decimal.Decimal `json:"below_balance"`
	RefillPlanID *int64          `json:"refill_plan_id"`
}

// BuyRequest is the POST /points/buy body.
type BuyRequest struct {
	ProductID int64 `json:"product_id" binding:"required"`
}

// RedeemRequest is the POST /redeem body.
type RedeemRequest struct {
	ID int64 `json:"id" binding:"required"`
}
