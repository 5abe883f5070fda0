package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"

	"github.com/chopnow/chopnow-backend/internal/inventory"
	"github.com/chopnow/chopnow-backend/internal/orders"
	"github.com/chopnow/chopnow-backend/internal/payments"
	"github.com/chopnow/chopnow-backend/internal/payouts"
	"github.com/chopnow/chopnow-backend/internal/pickups"
	"github.com/chopnow/chopnow-backend/internal/promos"
	"github.com/chopnow/chopnow-backend/internal/restaurants"
	"github.com/chopnow/chopnow-backend/pkg/config"
	"github.com/chopnow/chopnow-backend/pkg/db"
	"github.com/chopnow/chopnow-backend/pkg/flutterwave"
	"github.com/chopnow/chopnow-backend/pkg/logger"
	"github.com/chopnow/chopnow-backend/pkg/metrics"
	"github.com/chopnow/chopnow-backend/pkg/outbox"
	"github.com/chopnow/chopnow-backend/pkg/outbox/idempotency"
	"github.com/chopnow/chopnow-backend/pkg/pubsub"
	"github.com/chopnow/chopnow-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(ctx, "error closing database", err)
		}
	}()

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(ctx, "error closing redis", err)
		}
	}()

	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap pubsub", err)
		os.Exit(1)
	}
	defer func() {
		if err := pubsubClient.Close(); err != nil {
			logg.Error(ctx, "error closing pubsub", err)
		}
	}()

	gateway, err := flutterwave.NewClient(ctx, cfg.Flutterwave, logg)
	if err != nil {
		logg.Error(ctx, "failed to create payment gateway client", err)
		os.Exit(1)
	}

	feeRate, err := decimal.NewFromString(cfg.Payments.PlatformFeeRate)
	if err != nil {
		logg.Error(ctx, "invalid platform fee rate", err)
		os.Exit(1)
	}

	manager, err := idempotency.NewManager(redisClient, cfg.Eventing.IdempotencyTTL)
	if err != nil {
		logg.Error(ctx, "failed to create idempotency manager", err)
		os.Exit(1)
	}

	outboxSvc := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	restaurantSvc, err := restaurants.NewService(restaurants.ServiceParams{
		Repo:    restaurants.NewRepository(dbClient.DB()),
		Gateway: gateway,
		Logger:  logg,
	})
	if err != nil {
		logg.Error(ctx, "failed to create restaurants service", err)
		os.Exit(1)
	}

	promoSvc, err := promos.NewService(promos.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(ctx, "failed to create promos service", err)
		os.Exit(1)
	}

	orderSvc, err := orders.NewService(orders.ServiceParams{
		Repo:    orders.NewRepository(dbClient.DB()),
		Tx:      dbClient,
		Outbox:  outboxSvc,
		Promos:  promoSvc,
		Owners:  restaurantSvc,
		Logger:  logg,
		FeeRate: feeRate,
	})
	if err != nil {
		logg.Error(ctx, "failed to create orders service", err)
		os.Exit(1)
	}

	inventorySvc, err := inventory.NewService(inventory.ServiceParams{
		Repo:   inventory.NewRepository(dbClient.DB()),
		Tx:     dbClient,
		Logger: logg,
	})
	if err != nil {
		logg.Error(ctx, "failed to create inventory service", err)
		os.Exit(1)
	}
	inventoryConsumer, err := inventory.NewConsumer(inventorySvc, manager, logg)
	if err != nil {
		logg.Error(ctx, "failed to create inventory consumer", err)
		os.Exit(1)
	}

	pickupSvc, err := pickups.NewService(pickups.ServiceParams{
		Repo:   pickups.NewRepository(dbClient.DB()),
		Tx:     dbClient,
		Outbox: outboxSvc,
		Logger: logg,
		Config: cfg.Pickup,
	})
	if err != nil {
		logg.Error(ctx, "failed to create pickups service", err)
		os.Exit(1)
	}
	pickupConsumer, err := pickups.NewConsumer(pickupSvc, manager, logg)
	if err != nil {
		logg.Error(ctx, "failed to create pickups consumer", err)
		os.Exit(1)
	}

	initiation, err := payments.NewInitiationService(payments.InitiationParams{
		Repo:        payments.NewRepository(dbClient.DB()),
		Tx:          dbClient,
		Gateway:     gateway,
		Orders:      orderSvc,
		Restaurants: restaurantSvc,
		Outbox:      outboxSvc,
		Logger:      logg,
		PaymentTTL:  cfg.Payments.PaymentTTL,
	})
	if err != nil {
		logg.Error(ctx, "failed to create payment initiation service", err)
		os.Exit(1)
	}
	paymentConsumer, err := payments.NewConsumer(initiation, manager, logg)
	if err != nil {
		logg.Error(ctx, "failed to create payments consumer", err)
		os.Exit(1)
	}

	payoutWorker, err := payouts.NewWorker(payouts.WorkerParams{
		Repo:        payouts.NewRepository(dbClient.DB()),
		Tx:          dbClient,
		Gateway:     gateway,
		Restaurants: restaurantSvc,
		Outbox:      outboxSvc,
		Logger:      logg,
		Metrics:     metrics.NewPayoutWorkerMetrics(prometheus.DefaultRegisterer),
		Config:      cfg.Payout,
	})
	if err != nil {
		logg.Error(ctx, "failed to create payout worker", err)
		os.Exit(1)
	}

	service, err := NewService(ServiceParams{
		Config:       cfg,
		Logger:       logg,
		DB:           dbClient,
		Redis:        redisClient,
		PubSub:       pubsubClient,
		Inventory:    inventoryConsumer,
		Pickups:      pickupConsumer,
		Payments:     paymentConsumer,
		PayoutWorker: payoutWorker,
	})
	if err != nil {
		logg.Error(ctx, "failed to build worker", err)
		os.Exit(1)
	}

	logg.Info(ctx, "starting worker")
	if err := service.Run(ctx); err != nil && ctx.Err() == nil {
		logg.Error(ctx, "worker exited with error", err)
		os.Exit(1)
	}
	logg.Info(context.Background(), "worker shut down gracefully")
}
