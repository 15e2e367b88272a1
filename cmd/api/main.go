package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/transitlab/tsp-api/internal/benefit"
	"github.com/transitlab/tsp-api/internal/enterprise"
	"github.com/transitlab/tsp-api/internal/incentive"
	"github.com/transitlab/tsp-api/internal/ledger"
	"github.com/transitlab/tsp-api/internal/notifications"
	"github.com/transitlab/tsp-api/internal/payment"
	"github.com/transitlab/tsp-api/internal/referral"
	"github.com/transitlab/tsp-api/internal/ridehail"
	"github.com/transitlab/tsp-api/internal/tier"
	"github.com/transitlab/tsp-api/internal/trips"
	"github.com/transitlab/tsp-api/internal/wallet"
	"github.com/transitlab/tsp-api/pkg/cache"
	"github.com/transitlab/tsp-api/pkg/common"
	"github.com/transitlab/tsp-api/pkg/config"
	"github.com/transitlab/tsp-api/pkg/database"
	"github.com/transitlab/tsp-api/pkg/eventbus"
	"github.com/transitlab/tsp-api/pkg/logger"
	"github.com/transitlab/tsp-api/pkg/middleware"
	redisclient "github.com/transitlab/tsp-api/pkg/redis"
)

const (
	serviceName = "tsp-api"
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

	logger.Info("Starting TSP API",
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
			logger.Info("Sentry error tracking initialized")
		}
	}

	db, err := database.NewPostgresPool(&cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer database.Close(db)
	logger.Info("Connected to database")

	if err := database.Migrate(&cfg.Database); err != nil {
		logger.Fatal("Failed to apply migrations", zap.Error(err))
	}

	mongoDB, err := database.NewMongoDatabase(&cfg.Mongo)
	if err != nil {
		logger.Fatal("Failed to connect to mongo", zap.Error(err))
	}
	defer database.CloseMongo(mongoDB)
	logger.Info("Connected to document store")

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

	// Ledger and tier core.
	ledgerRepo := ledger.NewRepository(db)
	ledgerSvc := ledger.NewService(ledgerRepo)

	benefitRepo := benefit.NewRepository(db)
	benefitSvc := benefit.NewService(benefitRepo)

	tierHook := tier.NewIncentiveHookClient(cfg.Vendors.IncentiveHookBaseURL, cfg.Vendors.Timeout)
	tierSvc := tier.NewService(tierHook, cacheManager, benefitSvc)

	// Notifications.
	emailClient := notifications.NewEmailClient(
		cfg.SMTP.Host, cfg.SMTP.Port,
		cfg.SMTP.Username, cfg.SMTP.Password,
		cfg.SMTP.FromEmail, cfg.SMTP.FromName,
	)
	var notifBus notifications.Bus
	if bus != nil {
		notifBus = bus
	}
	notifSvc := notifications.NewService(
		notifications.NewRepository(db),
		notifications.NewResilientEmailClient(emailClient, nil),
		notifBus,
	)

	// Wallet.
	charger := payment.NewResilientClient(cfg.Vendors.StripeAPIKey)
	offenses := wallet.NewRedisOffenseTracker(redisClient)
	walletSvc := wallet.NewService(wallet.NewRepository(db), ledgerSvc, charger, offenses, notifSvc, wallet.Config{
		DailyPurchaseLimit: cfg.Wallet.DailyPurchaseLimit,
		DailyRedeemLimit:   cfg.Wallet.DailyRedeemLimit,
		Currency:           cfg.Wallet.Currency,
	})
	walletHandler := wallet.NewHandler(walletSvc)

	// Ride hailing.
	uberClient := ridehail.NewUberClient(
		cfg.Vendors.UberBaseURL, cfg.Vendors.UberServerToken, cfg.Vendors.Timeout, notifSvc)
	ridehailSvc := ridehail.NewService(
		ridehail.NewRepository(db), ledgerRepo, uberClient, tierSvc, walletSvc,
		ridehail.NewDocStore(mongoDB), bus, cfg.Wallet.Currency)
	ridehailHandler := ridehail.NewHandler(ridehailSvc, cfg.Vendors.UberWebhookSecret)

	// Trips.
	tripsSvc := trips.NewService(trips.NewRepository(db), trips.NewTrajectoryStore(mongoDB))
	tripsHandler := trips.NewHandler(tripsSvc)

	// Incentives. The API only manages rules; awards run in the validator.
	profiles, err := incentive.LoadProfiles(cfg.Vendors.ServiceProfilePath)
	if err != nil {
		logger.Fatal("Failed to load service profiles", zap.Error(err))
	}
	incentiveSvc := incentive.NewService(
		incentive.NewRepository(db, cacheManager), ledgerSvc, profiles,
		incentive.NewDrawer(uint64(time.Now().UnixNano())))
	incentiveHandler := incentive.NewHandler(incentiveSvc)

	// Referrals and promo codes.
	referralSvc, err := referral.NewService(
		referral.NewRepository(db), ledgerRepo, tierSvc, cfg.Referral.HashSalt,
		referral.Config{Coin: cfg.Referral.Coin, WindowDays: cfg.Referral.WindowDays})
	if err != nil {
		logger.Fatal("Failed to initialize referral service", zap.Error(err))
	}
	referralHandler := referral.NewHandler(referralSvc)

	// Enterprise carpool verification.
	enterpriseSvc := enterprise.NewService(enterprise.NewRepository(db), notifSvc, cfg.SMTP.PublicURL)
	enterpriseHandler := enterprise.NewHandler(enterpriseSvc)

	if bus != nil {
		eventHandler := notifications.NewEventHandler(notifSvc)
		if err := eventHandler.RegisterSubscriptions(context.Background(), bus); err != nil {
			logger.Warn("Failed to register event subscriptions", zap.Error(err))
		}
	}

	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(middleware.Recovery())
	router.Use(middleware.CorrelationID())
	router.Use(middleware.RequestLogger(serviceName))
	router.Use(middleware.Metrics(serviceName))

	router.GET("/healthz", common.HealthCheck(serviceName, version))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Unauthenticated surfaces: the vendor webhook is verified by HMAC
	// signature, the verification page by its emailed token.
	ridehailHandler.RegisterWebhookRoutes(router)
	enterpriseHandler.RegisterPublicRoutes(router)
	incentiveHandler.RegisterInternalRoutes(router, middleware.InternalAPIKey(cfg.JWT.InternalAPIKey))

	authorized := router.Group("/", middleware.Auth(cfg.JWT.Secret))
	walletHandler.RegisterRoutesOnGroup(authorized)
	ridehailHandler.RegisterRoutesOnGroup(authorized)
	tripsHandler.RegisterRoutesOnGroup(authorized)
	incentiveHandler.RegisterRoutesOnGroup(authorized)
	referralHandler.RegisterRoutesOnGroup(authorized)
	enterpriseHandler.RegisterRoutesOnGroup(authorized)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("Server starting", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server stopped")
}
