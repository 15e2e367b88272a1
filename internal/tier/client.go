package tier

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/transitlab/tsp-api/pkg/httpclient"
	"github.com/transitlab/tsp-api/pkg/resilience"
)

// HookClient fetches tier points from the external incentive-hook service.
type HookClient interface {
	FetchPoints(ctx context.Context, userID int64) (int, error)
}

// IncentiveHookClient talks to the incentive-hook service over HTTP. Point
// lookups are idempotent reads, so they retry and run through a breaker.
type IncentiveHookClient struct {
	http    *httpclient.Client
	breaker *resilience.CircuitBreaker
}

// NewIncentiveHookClient creates a new incentive-hook client
func NewIncentiveHookClient(baseURL string, timeout time.Duration) *IncentiveHookClient {
	return &IncentiveHookClient{
		http: httpclient.NewClient(baseURL, timeout,
			httpclient.WithRetry(resilience.ReadOnlyRetryConfig()),
		),
		breaker: resilience.NewCircuitBreaker(resilience.Settings{
			Name:             "incentive-hook",
			Interval:         60 * time.Second,
			Timeout:          30 * time.Second,
			FailureThreshold: 5,
		}, resilience.NoopFallback),
	}
}

type pointsResponse struct {
	UserID int64 `json:"user_id"`
	Points int   `json:"points"`
}

// FetchPoints returns the user's current tier points.
func (c *IncentiveHookClient) FetchPoints(ctx context.Context, userID int64) (int, error) {
	result, err := c.breaker.Execute(ctx, func(ctx context.Context) (interface{}, error) {
		return c.http.Get(ctx, fmt.Sprintf("/v1/users/%d/points", userID), nil)
	})
	if err != nil {
		return 0, fmt.Errorf("incentive-hook points lookup: %w", err)
	}

	var resp pointsResponse
	if err := json.Unmarshal(result.([]byte), &resp); err != nil {
		return 0, fmt.Errorf("decode incentive-hook response: %w", err)
	}
	return resp.Points, nil
}
