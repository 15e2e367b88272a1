package referral

import (
	"time"

	"github.com/shopspring/decimal"
)

// History is one redeemed referral. At most one row exists per receiver.
type History struct {
	ID           int64           `json:"id"`
	SenderUserID int64           `json:"sender_user_id"`
	ReceiverID   int64           `json:"receiver_user_id"`
	ReferralCode string          `json:"referral_code"`
	RewardAmount decimal.Decimal `json:"reward_amount"`
	CreatedOn    time.Time       `json:"created_on"`
}

// PromoCode is a redeemable campaign code.
type PromoCode struct {
	ID        int64           `json:"id"`
	Code      string          `json:"code"`
	Type      string          `json:"type"`
	Amount    decimal.Decimal `json:"amount"`
	Active    bool            `json:"active"`
	ExpiresOn *time.Time      `json:"expires_on,omitempty"`
}

// RedeemReferralRequest is the POST /referral body.
type RedeemReferralRequest struct {
	ReferralCode string `json:"referral_code" binding:"required"`
}

// RedeemReferralResponse is returned on a successful referral.
type RedeemReferralResponse struct {
	ReferralID int64  `json:"referral_id"`
	Toast      string `json:"toast"`
}

// RedeemPromoRequest is the POST /promocode body.
type RedeemPromoRequest struct {
	PromoCode string `json:"promo_code" binding:"required"`
}

// RedeemPromoResponse is returned on a successful promo redemption.
type RedeemPromoResponse struct {
	Type  string `json:"type"`
	Toast string `json:"toast"`
}
