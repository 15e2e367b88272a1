package payment

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v83"
)

// Charger is the surface wallet purchases go through. Amounts are in the
// wallet currency; implementations convert to minor units.
type Charger interface {
	EnsureCustomer(ctx context.Context, email, name string, metadata map[string]string) (string, error)
	Charge(ctx context.Context, customerID string, amount decimal.Decimal, currency, description string, metadata map[string]string) (string, error)
	Refund(ctx context.Context, externalTransactionID string, amount *decimal.Decimal, reason string) (string, error)
}

// StripeClientInterface defines the raw Stripe operations used by the adapter
type StripeClientInterface interface {
	CreateCustomer(email, name string, metadata map[string]string) (*stripe.Customer, error)
	ChargeCustomer(amountCents int64, currency, customerID, description string, metadata map[string]string) (*stripe.PaymentIntent, error)
	CreateRefund(paymentIntentID string, amountCents *int64, reason string) (*stripe.Refund, error)
}
