package common

import (
	"errors"
	"net/http"
)

// Stable business error codes. Numeric namespaces follow the platform
// convention: 100xx transport/auth, 200xx resources, 210xx carpool groups,
// 230xx wallet, 402xx vendors, 460xx promo codes, 470xx referrals.
const (
	CodeInvalidRequest  = 10001
	CodeMissingHeader   = 10002
	CodeMissingField    = 10003
	CodeUnauthorized    = 10004
	CodeInternalError   = 10099
	CodeNotFound        = 20001
	CodeGroupNotFound   = 21003
	CodeDuplicateEmail  = 21005
	CodeEmailBlocked    = 21008
	CodeNotGroupMember  = 21016
	CodeRefillPlanNotFound = 23008
	CodePointInsufficient  = 23018
	CodeUserCoinSuspended  = 23032
	CodePurchaseDailyLimit = 23033
	CodeRedeemDailyLimit   = 23034
	CodeVendorAuth         = 40202
	CodeVendorService      = 40205
	CodeVendorDuplicate    = 40210
	CodeVendorPayment      = 40211
	CodePromoInvalid       = 46001
	CodeReferralInvalid    = 47001
	CodeReferralSelf       = 47002
	CodeReferralRedeemed   = 47003
	CodeReferralExpired    = 47004
	CodeReferralNotEligible = 47005
)

// Common sentinel errors
var (
	ErrNotFound     = errors.New("resource not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrBadRequest   = errors.New("bad request")
	ErrConflict     = errors.New("resource conflict")
)

// AppError represents an application error carrying a stable business code
// alongside the HTTP status used to render it.
type AppError struct {
	Code       int    `json:"code"`
	HTTPStatus int    `json:"-"`
	Message    string `json:"msg"`
	Err        error  `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

// Unwrap exposes the wrapped cause for errors.Is / errors.As.
func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError creates a new AppError
func NewAppError(code, httpStatus int, message string, err error) *AppError {
	return &AppError{
		Code:       code,
		HTTPStatus: httpStatus,
		Message:    message,
		Err:        err,
	}
}

func NewNotFoundError(message string, err error) *AppError {
	return &AppError{Code: CodeNotFound, HTTPStatus: http.StatusNotFound, Message: message, Err: err}
}

func NewUnauthorizedError(message string) *AppError {
	return &AppError{Code: CodeUnauthorized, HTTPStatus: http.StatusUnauthorized, Message: message, Err: ErrUnauthorized}
}

func NewForbiddenError(code int, message string) *AppError {
	return &AppError{Code: code, HTTPStatus: http.StatusForbidden, Message: message, Err: ErrForbidden}
}

func NewBadRequestError(message string, err error) *AppError {
	return &AppError{Code: CodeInvalidRequest, HTTPStatus: http.StatusBadRequest, Message: message, Err: err}
}

func NewBusinessError(code int, message string) *AppError {
	return &AppError{Code: code, HTTPStatus: http.StatusBadRequest, Message: message, Err: ErrBadRequest}
}

func NewInternalServerError(message string) *AppError {
	return &AppError{Code: CodeInternalError, HTTPStatus: http.StatusInternalServerError, Message: message}
}

func NewInternalError(message string, err error) *AppError {
	return &AppError{Code: CodeInternalError, HTTPStatus: http.StatusInternalServerError, Message: message, Err: err}
}

func NewConflictError(code int, message string) *AppError {
	return &AppError{Code: code, HTTPStatus: http.StatusConflict, Message: message, Err: ErrConflict}
}

// NewVendorError translates an upstream vendor failure, decorating the
// message with the vendor name so callers can tell upstreams apart.
func NewVendorError(code int, vendor, message string, err error) *AppError {
	return &AppError{
		Code:       code,
		HTTPStatus: http.StatusBadGateway,
		Message:    vendor + ": " + message,
		Err:        err,
	}
}

// NewServiceUnavailableError signals a temporarily unavailable dependency
// (open circuit breaker, upstream outage).
func NewServiceUnavailableError(message string) *AppError {
	return &AppError{Code: CodeVendorService, HTTPStatus: http.StatusServiceUnavailable, Message: message}
}

// AsAppError returns err as *AppError when possible.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}
