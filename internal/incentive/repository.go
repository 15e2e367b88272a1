package incentive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/transitlab/tsp-api/internal/trips"
	"github.com/transitlab/tsp-api/pkg/cache"
)

// Repository handles database operations for incentive rules. The single
// active-rule table is keyed by market; every replacement is copied to the
// history table in the same transaction.
type Repository struct {
	db    *pgxpool.Pool
	cache *cache.Manager
}

// NewRepository creates a new incentive repository
func NewRepository(db *pgxpool.Pool, cacheManager *cache.Manager) *Repository {
	return &Repository{db: db, cache: cacheManager}
}

// Active returns the market's active rule, nil when the market has none.
func (r *Repository) Active(ctx context.Context, market string) (*Rule, error) {
	if r.cache != nil {
		var cached Rule
		if err := r.cache.Get(ctx, cache.Keys.IncentiveRule(market), &cached); err == nil {
			return &cached, nil
		}
	}

	rule, err := r.loadActive(ctx, market)
	if err != nil {
		return nil, err
	}
	if rule == nil {
		return nil, nil
	}

	if r.cache != nil {
		_ = r.cache.Set(ctx, cache.Keys.IncentiveRule(market), rule, cache.RuleTTL)
	}
	return rule, nil
}

func (r *Repository) loadActive(ctx context.Context, market string) (*Rule, error) {
	rule := &Rule{}
	var modesJSON []byte
	err := r.db.QueryRow(ctx, `
		SELECT id, market, d, h, d1, d2, l, w, mc, modes, updated_on
		FROM trip_incentive_rule
		WHERE market = $1
	`, market).Scan(
		&rule.ID, &rule.Market, &rule.D, &rule.H, &rule.D1, &rule.D2,
		&rule.L, &rule.W, &rule.MC, &modesJSON, &rule.UpdatedOn,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load incentive rule: %w", err)
	}

	rule.Modes = make(map[trips.TravelMode]ModeRule)
	if err := json.Unmarshal(modesJSON, &rule.Modes); err != nil {
		return nil, fmt.Errorf("decode incentive rule modes: %w", err)
	}
	return rule, nil
}

// Upsert replaces the market's active rule atomically and archives the
// previous version.
func (r *Repository) Upsert(ctx context.Context, req *UpsertRuleRequest) (*Rule, error) {
	modesJSON, err := json.Marshal(req.Modes)
	if err != nil {
		return nil, fmt.Errorf("encode incentive rule modes: %w", err)
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin rule tx: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO trip_incentive_rule_history (market, d, h, d1, d2, l, w, mc, modes, replaced_on)
		SELECT market, d, h, d1, d2, l, w, mc, modes, NOW()
		FROM trip_incentive_rule WHERE market = $1
	`, req.Market)
	if err != nil {
		return nil, fmt.Errorf("archive incentive rule: %w", err)
	}

	rule := &Rule{Market: req.Market, D: req.D, H: req.H, D1: req.D1, D2: req.D2,
		L: req.L, W: req.W, MC: req.MC, Modes: req.Modes}
	err = tx.QueryRow(ctx, `
		INSERT INTO trip_incentive_rule (market, d, h, d1, d2, l, w, mc, modes, updated_on)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
		ON CONFLICT (market) DO UPDATE SET
			d = EXCLUDED.d, h = EXCLUDED.h, d1 = EXCLUDED.d1, d2 = EXCLUDED.d2,
			l = EXCLUDED.l, w = EXCLUDED.w, mc = EXCLUDED.mc,
			modes = EXCLUDED.modes, updated_on = NOW()
		RETURNING id, updated_on
	`, req.Market, req.D, req.H, req.D1, req.D2, req.L, req.W, req.MC, modesJSON).
		Scan(&rule.ID, &rule.UpdatedOn)
	if err != nil {
		return nil, fmt.Errorf("upsert incentive rule: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit rule tx: %w", err)
	}

	if r.cache != nil {
		_ = r.cache.Delete(ctx, cache.Keys.IncentiveRule(req.Market))
	}
	return rule, nil
}
