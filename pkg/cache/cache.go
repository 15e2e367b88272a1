package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	redisclient "github.com/transitlab/tsp-api/pkg/redis"
)

// Manager handles caching operations with JSON serialization
type Manager struct {
	redis *redisclient.Client
}

// NewManager creates a new cache manager
func NewManager(redis *redisclient.Client) *Manager {
	return &Manager{redis: redis}
}

// Get retrieves a cached value and unmarshals it into result
func (m *Manager) Get(ctx context.Context, key string, result interface{}) error {
	data, err := m.redis.GetString(ctx, key)
	if err != nil {
		return err
	}

	return json.Unmarshal([]byte(data), result)
}

// Set marshals and caches a value with expiration
func (m *Manager) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal cache value: %w", err)
	}

	return m.redis.SetWithExpiration(ctx, key, string(data), ttl)
}

// Delete removes keys from cache
func (m *Manager) Delete(ctx context.Context, keys ...string) error {
	return m.redis.Delete(ctx, keys...)
}

// CacheKeys defines common cache key patterns
type CacheKeys struct{}

var Keys = CacheKeys{}

// UserTier returns the cache key for a user's tier snapshot
func (k CacheKeys) UserTier(userID int64) string {
	return fmt.Sprintf("tier:%d", userID)
}

// IncentiveRule returns the cache key for a market's active incentive rule
func (k CacheKeys) IncentiveRule(market string) string {
	return fmt.Sprintf("incentive_rule:%s", market)
}

// WebhookEvent returns the dedupe key for a vendor webhook event
func (k CacheKeys) WebhookEvent(eventID string) string {
	return fmt.Sprintf("webhook:event:%s", eventID)
}

// WalletSummary returns the cache key for a wallet summary
func (k CacheKeys) WalletSummary(userID int64) string {
	return fmt.Sprintf("wallet:summary:%d", userID)
}

// TTL definitions for the handful of cached objects.
const (
	TierTTL = 60 * time.Second
	RuleTTL = 5 * time.Minute
)
