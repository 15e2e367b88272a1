package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"go.uber.org/zap"

	"github.com/transitlab/tsp-api/internal/incentive"
	"github.com/transitlab/tsp-api/internal/ledger"
	"github.com/transitlab/tsp-api/internal/trips"
	"github.com/transitlab/tsp-api/internal/validation"
	"github.com/transitlab/tsp-api/pkg/cache"
	"github.com/transitlab/tsp-api/pkg/config"
	"github.com/transitlab/tsp-api/pkg/database"
	"github.com/transitlab/tsp-api/pkg/eventbus"
	"github.com/transitlab/tsp-api/pkg/logger"
	redisclient "github.com/transitlab/tsp-api/pkg/redis"
)

const (
	serviceName = "tsp-validator"
	version     = "1.0.0"
)

func main() {
	cfg, err := config.Load(serviceName)
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	if err := logger.Init(cfg.Server.Environment); err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	logger.Info("Starting trip validator",
		zap.String("service", serviceName),
		zap.String("version", version),
		zap.String("environment", cfg.Server.Environment),
	)

	if cfg.Sentry.Enabled {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:         cfg.Sentry.DSN,
			Environment: cfg.Server.Environment,
			Release:     serviceName + "@" + version,
		})
		if err != nil {
			logger.Warn("Failed to initialize Sentry, continuing without error tracking", zap.Error(err))
		} else {
			defer sentry.Flush(2 * time.Second)
		}
	}

	db, err := database.NewPostgresPool(&cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer database.Close(db)

	mongoDB, err := database.NewMongoDatabase(&cfg.Mongo)
	if err != nil {
		logger.Fatal("Failed to connect to mongo", zap.Error(err))
	}
	defer database.CloseMongo(mongoDB)

	redisClient, err := redisclient.NewRedisClient(&cfg.Redis)
	if err != nil {
		logger.Fatal("Failed to connect to redis", zap.Error(err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("Failed to close redis client", zap.Error(err))
		}
	}()
	cacheManager := cache.NewManager(redisClient)

	var bus *eventbus.Bus
	if cfg.NATS.Enabled {
		bus, err = eventbus.New(eventbus.Config{URL: cfg.NATS.URL, Name: serviceName})
		if err != nil {
			logger.Fatal("Failed to connect to NATS", zap.Error(err))
		}
		defer bus.Close()
	}

	ledgerSvc := ledger.NewService(ledger.NewRepository(db))

	profiles, err := incentive.LoadProfiles(cfg.Vendors.ServiceProfilePath)
	if err != nil {
		logger.Fatal("Failed to load service profiles", zap.Error(err))
	}
	awarder := incentive.NewService(
		incentive.NewRepository(db, cacheManager), ledgerSvc, profiles,
		incentive.NewDrawer(uint64(time.Now().UnixNano())))

	worker := validation.NewWorker(
		db,
		validation.NewRepository(db),
		trips.NewRepository(db),
		trips.NewTrajectoryStore(mongoDB),
		validation.NewValidator(cfg.Validation.TrajectoryMin),
		awarder,
		bus,
		validation.Config{
			RoundLimit:   cfg.Validation.RoundLimit,
			BufferTime:   cfg.Validation.BufferTime,
			PollInterval: cfg.Validation.PollInterval,
			Batch:        cfg.Validation.WorkerBatch,
		},
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		worker.Run(ctx)
		close(done)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down validator...")
	cancel()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		logger.Warn("Validator did not drain in time")
	}

	logger.Info("Validator stopped")
}
