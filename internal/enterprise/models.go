package enterprise

import "time"

// Verification statuses.
const (
	StatusPending = "pending"
	StatusSuccess = "success"
)

// Enterprise is one corporate customer, matched to users by email domain.
type Enterprise struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	EmailDomain string `json:"email_domain"`
}

// Verification is the email-verification state for one user and enterprise.
type Verification struct {
	ID           int64      `json:"id"`
	Email        string     `json:"email"`
	UserID       int64      `json:"user_id"`
	EnterpriseID int64      `json:"enterprise_id"`
	GroupID      int64      `json:"group_id"`
	Token        *string    `json:"-"`
	Status       string     `json:"status"`
	ExpiresOn    *time.Time `json:"expires_on,omitempty"`
}

// RequestVerificationRequest is the POST /setting_carpool_email body.
type RequestVerificationRequest struct {
	Email      string `json:"email" binding:"required,email"`
	VerifyType string `json:"verify_type" binding:"required"`
	GroupID    int64  `json:"group_id" binding:"required"`
}

// RequestVerificationResponse reports whether the user joined immediately or
// still has to click the email link.
type RequestVerificationResponse struct {
	Joined            bool `json:"joined"`
	VerificationEmail bool `json:"verification_email_sent"`
}
