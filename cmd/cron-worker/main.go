package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"

	"github.com/chopnow/chopnow-backend/internal/cron"
	"github.com/chopnow/chopnow-backend/internal/inventory"
	"github.com/chopnow/chopnow-backend/internal/orders"
	"github.com/chopnow/chopnow-backend/internal/payouts"
	"github.com/chopnow/chopnow-backend/internal/promos"
	"github.com/chopnow/chopnow-backend/internal/restaurants"
	"github.com/chopnow/chopnow-backend/pkg/config"
	"github.com/chopnow/chopnow-backend/pkg/db"
	"github.com/chopnow/chopnow-backend/pkg/flutterwave"
	"github.com/chopnow/chopnow-backend/pkg/logger"
	"github.com/chopnow/chopnow-backend/pkg/metrics"
	"github.com/chopnow/chopnow-backend/pkg/migrate"
	"github.com/chopnow/chopnow-backend/pkg/outbox"
	"github.com/chopnow/chopnow-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
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

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		logg.Error(ctx, "failed to run dev migrations", err)
		os.Exit(1)
	}

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

	outboxRepo := outbox.NewRepository(dbClient.DB())
	outboxSvc := outbox.NewService(outboxRepo, logg)

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

	aggregator, err := payouts.NewAggregator(payouts.AggregatorParams{
		Repo:        payouts.NewRepository(dbClient.DB()),
		Tx:          dbClient,
		Restaurants: restaurantSvc,
		Outbox:      outboxSvc,
		Logger:      logg,
	})
	if err != nil {
		logg.Error(ctx, "failed to create payout aggregator", err)
		os.Exit(1)
	}

	unpaidCancelJob, err := cron.NewUnpaidOrderCancelJob(cron.UnpaidOrderCancelJobParams{
		Logger: logg,
		Orders: orderSvc,
	})
	if err != nil {
		logg.Error(ctx, "failed to create unpaid order cancel job", err)
		os.Exit(1)
	}
	reconcileJob, err := cron.NewInventoryReconcileJob(cron.InventoryReconcileJobParams{
		Logger:    logg,
		Inventory: inventorySvc,
	})
	if err != nil {
		logg.Error(ctx, "failed to create inventory reconcile job", err)
		os.Exit(1)
	}
	sweepJob, err := cron.NewPayoutSweepJob(cron.PayoutSweepJobParams{
		Logger:  logg,
		Payouts: aggregator,
		Config:  cfg.Payout,
	})
	if err != nil {
		logg.Error(ctx, "failed to create payout sweep job", err)
		os.Exit(1)
	}
	retentionJob, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:     logg,
		Repository: outboxRepo,
	})
	if err != nil {
		logg.Error(ctx, "failed to create outbox retention job", err)
		os.Exit(1)
	}

	lock, err := cron.NewRedisLock(redisClient, cfg.Cron.LockKey, cfg.Cron.LockTTL)
	if err != nil {
		logg.Error(ctx, "failed to create cron lock", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(unpaidCancelJob, reconcileJob, sweepJob, retentionJob),
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		logg.Error(ctx, "failed to create cron service", err)
		os.Exit(1)
	}

	runCtx := logg.WithFields(ctx, map[string]any{"env": cfg.App.Env})
	logg.Info(runCtx, "starting cron worker")

	if err := service.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(runCtx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(context.Background(), "cron worker shut down gracefully")
}
