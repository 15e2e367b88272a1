package payment

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v83"
	"go.uber.org/zap"

	"github.com/transitlab/tsp-api/pkg/common"
	"github.com/transitlab/tsp-api/pkg/logger"
	"github.com/transitlab/tsp-api/pkg/resilience"
)

// ResilientClient implements Charger over Stripe with a circuit breaker.
// Charges and refunds are writes and are never retried automatically; the
// breaker only sheds load when Stripe is down.
type ResilientClient struct {
	client  StripeClientInterface
	breaker *resilience.CircuitBreaker
}

// NewResilientClient creates the production Charger.
func NewResilientClient(apiKey string) *ResilientClient {
	return NewResilientClientWithClient(NewStripeClient(apiKey), nil)
}

// NewResilientClientWithClient wraps an existing client (for testing).
func NewResilientClientWithClient(client StripeClientInterface, breaker *resilience.CircuitBreaker) *ResilientClient {
	if breaker == nil {
		breaker = resilience.NewCircuitBreaker(resilience.Settings{
			Name:             "stripe-api",
			Interval:         60 * time.Second,
			Timeout:          30 * time.Second,
			FailureThreshold: 5,
			SuccessThreshold: 2,
		}, func(ctx context.Context, err error) (interface{}, error) {
			logger.Get().Error("Stripe circuit breaker open", zap.Error(err))
			return nil, common.NewServiceUnavailableError("payments are temporarily unavailable, please try again")
		})
	}

	return &ResilientClient{client: client, breaker: breaker}
}

// EnsureCustomer creates a Stripe customer and returns its ID.
func (r *ResilientClient) EnsureCustomer(ctx context.Context, email, name string, metadata map[string]string) (string, error) {
	result, err := r.breaker.Execute(ctx, func(ctx context.Context) (interface{}, error) {
		return r.client.CreateCustomer(email, name, metadata)
	})
	if err != nil {
		return "", translateStripeError(err, "create customer")
	}
	return result.(*stripe.Customer).ID, nil
}

// Charge bills the saved customer and returns the external transaction ID.
func (r *ResilientClient) Charge(ctx context.Context, customerID string, amount decimal.Decimal, currency, description string, metadata map[string]string) (string, error) {
	cents := toMinorUnits(amount)
	if cents <= 0 {
		return "", common.NewBadRequestError("charge amount must be positive", nil)
	}

	result, err := r.breaker.Execute(ctx, func(ctx context.Context) (interface{}, error) {
		return r.client.ChargeCustomer(cents, currency, customerID, description, metadata)
	})
	if err != nil {
		logger.WithContext(ctx).Error("Stripe charge failed",
			zap.String("customer_id", customerID),
			zap.String("amount", amount.String()),
			zap.Error(err),
		)
		return "", translateStripeError(err, "charge")
	}

	pi := result.(*stripe.PaymentIntent)
	logger.WithContext(ctx).Info("Stripe charge succeeded",
		zap.String("payment_intent_id", pi.ID),
		zap.Int64("amount_cents", cents),
	)
	return pi.ID, nil
}

// Refund reverses a charge, fully when amount is nil.
func (r *ResilientClient) Refund(ctx context.Context, externalTransactionID string, amount *decimal.Decimal, reason string) (string, error) {
	var cents *int64
	if amount != nil {
		c := toMinorUnits(*amount)
		cents = &c
	}

	result, err := r.breaker.Execute(ctx, func(ctx context.Context) (interface{}, error) {
		return r.client.CreateRefund(externalTransactionID, cents, reason)
	})
	if err != nil {
		return "", translateStripeError(err, "refund")
	}
	return result.(*stripe.Refund).ID, nil
}

func toMinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

// translateStripeError maps Stripe failures onto the vendor error namespace.
// AppErrors produced by the breaker fallback pass through unchanged.
func translateStripeError(err error, op string) error {
	if _, ok := common.AsAppError(err); ok {
		return err
	}

	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		if stripeErr.Type == stripe.ErrorTypeCard {
			return common.NewVendorError(common.CodeVendorPayment, "stripe", "card was declined", err)
		}
		// Bad API keys surface as ErrorTypeInvalidRequest with a 401 status.
		if stripeErr.HTTPStatusCode == http.StatusUnauthorized {
			return common.NewVendorError(common.CodeVendorAuth, "stripe", "payment processor rejected credentials", err)
		}
	}

	return common.NewVendorError(common.CodeVendorPayment, "stripe", "payment "+op+" failed", err)
}
