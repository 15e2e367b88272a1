package ridehail

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/transitlab/tsp-api/pkg/common"
	"github.com/transitlab/tsp-api/pkg/httpclient"
	"github.com/transitlab/tsp-api/pkg/logger"
	"github.com/transitlab/tsp-api/pkg/resilience"
)

// VendorClient is the ride vendor surface the orchestrator depends on.
type VendorClient interface {
	Estimate(ctx context.Context, pickup, dropoff Location) ([]Product, error)
	Book(ctx context.Context, req BookingRequest) (*BookingResponse, error)
	Receipt(ctx context.Context, requestID string) (*Receipt, error)
}

// VendorAlerter notifies operators about vendor-side failures.
type VendorAlerter interface {
	VendorFailure(ctx context.Context, vendor, detail string)
}

// BookingRequest is the vendor booking call body.
type BookingRequest struct {
	Guest         Guest    `json:"guest"`
	Pickup        Location `json:"pickup"`
	Dropoff       Location `json:"dropoff"`
	ProductID     string   `json:"product_id"`
	FareID        string   `json:"fare_id"`
	NoteForDriver string   `json:"note_for_driver,omitempty"`
}

// BookingResponse is the vendor booking call result.
type BookingResponse struct {
	RequestID string `json:"request_id"`
	Status    string `json:"status"`
}

// UberClient calls the Uber guest-trips API. Estimates and receipts are
// idempotent reads and retry; bookings never retry.
type UberClient struct {
	reads   *httpclient.Client
	writes  *httpclient.Client
	breaker *resilience.CircuitBreaker
	token   string
	alerter VendorAlerter
}

// NewUberClient creates a new Uber client
func NewUberClient(baseURL, serverToken string, timeout time.Duration, alerter VendorAlerter) *UberClient {
	return &UberClient{
		reads: httpclient.NewClient(baseURL, timeout,
			httpclient.WithRetry(resilience.ReadOnlyRetryConfig()),
		),
		writes: httpclient.NewClient(baseURL, timeout),
		breaker: resilience.NewCircuitBreaker(resilience.Settings{
			Name:             "uber-api",
			Interval:         60 * time.Second,
			Timeout:          30 * time.Second,
			FailureThreshold: 5,
		}, resilience.NoopFallback),
		token:   serverToken,
		alerter: alerter,
	}
}

func (c *UberClient) headers() map[string]string {
	return map[string]string{
		"Authorization": "Token " + c.token,
		"Accept":        "application/json",
	}
}

type estimateRequest struct {
	Pickup  Location `json:"pickup"`
	Dropoff Location `json:"dropoff"`
}

type estimateResponse struct {
	Products []Product `json:"products"`
}

// Estimate returns the bookable products for a pickup and dropoff.
// Malformed rows are filtered; order is preserved.
func (c *UberClient) Estimate(ctx context.Context, pickup, dropoff Location) ([]Product, error) {
	body, err := c.execute(ctx, func(ctx context.Context) ([]byte, error) {
		return c.reads.Post(ctx, "/v1/guests/trips/estimates", estimateRequest{Pickup: pickup, Dropoff: dropoff}, c.headers())
	})
	if err != nil {
		return nil, err
	}

	var resp estimateResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, common.NewVendorError(common.CodeVendorService, "uber", "malformed estimate response", err)
	}

	products := make([]Product, 0, len(resp.Products))
	for _, p := range resp.Products {
		if p.ProductID == "" || p.FareCurrency == "" {
			logger.WithContext(ctx).Warn("dropping malformed estimate row",
				zap.String("display", p.Display))
			continue
		}
		products = append(products, p)
	}
	return products, nil
}

// Book requests a guest trip. Never retried: a duplicate booking charges the
// rider twice.
func (c *UberClient) Book(ctx context.Context, req BookingRequest) (*BookingResponse, error) {
	body, err := c.execute(ctx, func(ctx context.Context) ([]byte, error) {
		return c.writes.Post(ctx, "/v1/guests/trips", req, c.headers())
	})
	if err != nil {
		return nil, err
	}

	var resp BookingResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, common.NewVendorError(common.CodeVendorService, "uber", "malformed booking response", err)
	}
	if resp.RequestID == "" {
		return nil, common.NewVendorError(common.CodeVendorService, "uber", "booking response missing request id", nil)
	}
	return &resp, nil
}

// Receipt fetches the fare breakdown for a completed trip.
func (c *UberClient) Receipt(ctx context.Context, requestID string) (*Receipt, error) {
	body, err := c.execute(ctx, func(ctx context.Context) ([]byte, error) {
		return c.reads.Get(ctx, fmt.Sprintf("/v1/guests/trips/%s/receipt", requestID), c.headers())
	})
	if err != nil {
		return nil, err
	}

	var receipt Receipt
	if err := json.Unmarshal(body, &receipt); err != nil {
		return nil, common.NewVendorError(common.CodeVendorService, "uber", "malformed receipt response", err)
	}
	return &receipt, nil
}

func (c *UberClient) execute(ctx context.Context, call func(ctx context.Context) ([]byte, error)) ([]byte, error) {
	result, err := c.breaker.Execute(ctx, func(ctx context.Context) (interface{}, error) {
		return call(ctx)
	})
	if err != nil {
		return nil, c.translate(ctx, err)
	}
	return result.([]byte), nil
}

// translate maps vendor HTTP failures onto the stable vendor error codes and
// alerts operators on 5xx-class failures.
func (c *UberClient) translate(ctx context.Context, err error) error {
	if appErr, ok := common.AsAppError(err); ok {
		return appErr
	}

	var httpErr *httpclient.HTTPError
	if errors.As(err, &httpErr) {
		switch {
		case httpErr.StatusCode == http.StatusUnauthorized || httpErr.StatusCode == http.StatusForbidden:
			return common.NewVendorError(common.CodeVendorAuth, "uber", "vendor rejected credentials", err)
		case httpErr.StatusCode == http.StatusConflict:
			return common.NewVendorError(common.CodeVendorDuplicate, "uber", "duplicate trip session", err)
		case httpErr.StatusCode >= 500:
			if c.alerter != nil {
				c.alerter.VendorFailure(ctx, "uber", fmt.Sprintf("HTTP %d: %s", httpErr.StatusCode, httpErr.Body))
			}
			return common.NewVendorError(common.CodeVendorService, "uber", "vendor service error", err)
		}
		return common.NewVendorError(common.CodeVendorService, "uber", "vendor request failed", err)
	}

	if c.alerter != nil {
		c.alerter.VendorFailure(ctx, "uber", err.Error())
	}
	return common.NewVendorError(common.CodeVendorService, "uber", "vendor unreachable", err)
}
