package validation

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/transitlab/tsp-api/internal/trips"
	"github.com/transitlab/tsp-api/pkg/eventbus"
	"github.com/transitlab/tsp-api/pkg/logger"
)

// TripStore is the trip read/update surface the worker needs.
type TripStore interface {
	Get(ctx context.Context, id int64) (*trips.Trip, error)
	SetValidationComplete(ctx context.Context, tx pgx.Tx, id int64) error
}

// TrajectoryLoader loads GPS samples for a trip.
type TrajectoryLoader interface {
	Load(ctx context.Context, tripID int64) ([]trips.TrajectoryPoint, error)
}

// Awarder converts a passing trip into a coin reward.
type Awarder interface {
	AwardForTrip(ctx context.Context, trip *trips.Trip, trajectory []trips.TrajectoryPoint) (decimal.Decimal, error)
}

// Config tunes the worker loop.
type Config struct {
	RoundLimit   int
	BufferTime   time.Duration
	PollInterval time.Duration
	Batch        int
}

// Worker drains the validation queue. Each queue row is leased under a row
// lock, validated, and either retired or rescheduled for the next round.
type Worker struct {
	db         *pgxpool.Pool
	queue      *Repository
	tripStore  TripStore
	trajectory TrajectoryLoader
	validator  *Validator
	awarder    Awarder
	bus        *eventbus.Bus
	cfg        Config
	now        func() time.Time
}

// NewWorker creates a new validation worker
func NewWorker(db *pgxpool.Pool, queue *Repository, tripStore TripStore, trajectory TrajectoryLoader, validator *Validator, awarder Awarder, bus *eventbus.Bus, cfg Config) *Worker {
	if cfg.Batch <= 0 {
		cfg.Batch = 20
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Minute
	}
	return &Worker{
		db:         db,
		queue:      queue,
		tripStore:  tripStore,
		trajectory: trajectory,
		validator:  validator,
		awarder:    awarder,
		bus:        bus,
		cfg:        cfg,
		now:        time.Now,
	}
}

// Run polls the queue until the context is cancelled.
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	logger.Get().Info("validation worker started",
		zap.Duration("poll_interval", w.cfg.PollInterval),
		zap.Int("round_limit", w.cfg.RoundLimit),
	)

	for {
		select {
		case <-ctx.Done():
			logger.Get().Info("validation worker stopping")
			return
		case <-ticker.C:
			w.drain(ctx)
		}
	}
}

// drain processes up to one batch of due rows.
func (w *Worker) drain(ctx context.Context) {
	for i := 0; i < w.cfg.Batch; i++ {
		processed, err := w.processOne(ctx)
		if err != nil {
			logger.Get().Error("validation round failed", zap.Error(err))
			return
		}
		if !processed {
			return
		}
	}
}

// processOne leases and resolves a single queue row in its own transaction.
func (w *Worker) processOne(ctx context.Context) (bool, error) {
	tx, err := w.db.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	cutoff := w.now().Add(-w.cfg.BufferTime)
	row, err := w.queue.LeaseDueTx(ctx, tx, cutoff)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	trip, err := w.tripStore.Get(ctx, row.TripID)
	if errors.Is(err, pgx.ErrNoRows) {
		// Orphan queue row; retire it.
		if err := w.queue.MarkDeletedTx(ctx, tx, row.ID); err != nil {
			return false, err
		}
		return true, tx.Commit(ctx)
	}
	if err != nil {
		return false, err
	}

	if trip.ValidationComplete {
		if err := w.queue.MarkDeletedTx(ctx, tx, row.ID); err != nil {
			return false, err
		}
		return true, tx.Commit(ctx)
	}

	trajectory, err := w.trajectory.Load(ctx, trip.ID)
	if err != nil {
		return false, err
	}

	outcome := w.validator.Validate(trip, trajectory)
	if err := w.queue.InsertResultTx(ctx, tx, trip.ID, row.Round, outcome); err != nil {
		return false, err
	}

	done := outcome.Passed || row.Round >= w.cfg.RoundLimit
	if done {
		if err := w.queue.MarkDeletedTx(ctx, tx, row.ID); err != nil {
			return false, err
		}
		if err := w.tripStore.SetValidationComplete(ctx, tx, trip.ID); err != nil {
			return false, err
		}
	} else {
		if err := w.queue.IncrementRoundTx(ctx, tx, row.ID); err != nil {
			return false, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return false, err
	}

	logger.Get().Info("trip validated",
		zap.Int64("trip_id", trip.ID),
		zap.Int("round", row.Round),
		zap.Bool("passed", outcome.Passed),
		zap.Float64("score", outcome.Score),
	)

	if outcome.Passed {
		w.reward(ctx, trip, trajectory)
	}
	w.publish(ctx, trip, outcome)
	return true, nil
}

// reward invokes the incentive engine for a passing trip. Reward failures
// do not undo the validation result.
func (w *Worker) reward(ctx context.Context, trip *trips.Trip, trajectory []trips.TrajectoryPoint) {
	if w.awarder == nil {
		return
	}
	amount, err := w.awarder.AwardForTrip(ctx, trip, trajectory)
	if err != nil {
		logger.Get().Error("incentive award failed",
			zap.Int64("trip_id", trip.ID), zap.Error(err))
		return
	}
	if amount.Sign() > 0 && w.bus != nil {
		event, err := eventbus.NewEvent(eventbus.SubjectTripRewarded, "tsp-validator", map[string]interface{}{
			"trip_id": trip.ID,
			"user_id": trip.UserID,
			"amount":  amount.String(),
		})
		if err == nil {
			_ = w.bus.Publish(ctx, eventbus.SubjectTripRewarded, event)
		}
	}
}

func (w *Worker) publish(ctx context.Context, trip *trips.Trip, outcome Outcome) {
	if w.bus == nil {
		return
	}
	event, err := eventbus.NewEvent(eventbus.SubjectTripValidated, "tsp-validator", map[string]interface{}{
		"trip_id": trip.ID,
		"user_id": trip.UserID,
		"passed":  outcome.Passed,
		"score":   outcome.Score,
	})
	if err != nil {
		return
	}
	if err := w.bus.Publish(ctx, eventbus.SubjectTripValidated, event); err != nil {
		logger.Get().Warn("validation publish failed",
			zap.Int64("trip_id", trip.ID), zap.Error(err))
	}
}
