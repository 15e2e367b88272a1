package payment

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v83"

	"github.com/transitlab/tsp-api/pkg/common"
)

func assertVendorCode(t *testing.T, err error, code int) {
	t.Helper()
	appErr, ok := common.AsAppError(err)
	require.True(t, ok, "expected AppError, got %v", err)
	assert.Equal(t, code, appErr.Code)
}

func TestTranslateStripeErrorCardDeclined(t *testing.T) {
	err := translateStripeError(&stripe.Error{
		Type: stripe.ErrorTypeCard,
		Code: stripe.ErrorCodeCardDeclined,
	}, "charge")
	assertVendorCode(t, err, common.CodeVendorPayment)
	assert.Contains(t, err.Error(), "declined")
}

func TestTranslateStripeErrorBadCredentials(t *testing.T) {
	err := translateStripeError(&stripe.Error{
		Type:           stripe.ErrorTypeInvalidRequest,
		HTTPStatusCode: http.StatusUnauthorized,
	}, "charge")
	assertVendorCode(t, err, common.CodeVendorAuth)
}

func TestTranslateStripeErrorGenericFailure(t *testing.T) {
	err := translateStripeError(&stripe.Error{
		Type:           stripe.ErrorTypeAPI,
		HTTPStatusCode: http.StatusInternalServerError,
	}, "refund")
	assertVendorCode(t, err, common.CodeVendorPayment)
	assert.Contains(t, err.Error(), "refund")

	// Non-Stripe errors map to the generic payment failure too.
	err = translateStripeError(errors.New("connection reset"), "charge")
	assertVendorCode(t, err, common.CodeVendorPayment)
}

func TestTranslateStripeErrorPassesAppErrorsThrough(t *testing.T) {
	fallback := common.NewServiceUnavailableError("payments are temporarily unavailable, please try again")
	assert.Equal(t, fallback, translateStripeError(fallback, "charge"))
}
