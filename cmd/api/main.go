package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/chopnow/chopnow-backend/api/controllers"
	"github.com/chopnow/chopnow-backend/api/routes"
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
	"github.com/chopnow/chopnow-backend/pkg/migrate"
	"github.com/chopnow/chopnow-backend/pkg/outbox"
	"github.com/chopnow/chopnow-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx := context.Background()

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
	minBatchTotal, err := decimal.NewFromString(cfg.Payout.MinBatchTotal)
	if err != nil {
		logg.Error(ctx, "invalid payout min batch total", err)
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

	payoutsRepo := payouts.NewRepository(dbClient.DB())
	aggregator, err := payouts.NewAggregator(payouts.AggregatorParams{
		Repo:        payoutsRepo,
		Tx:          dbClient,
		Restaurants: restaurantSvc,
		Outbox:      outboxSvc,
		Logger:      logg,
	})
	if err != nil {
		logg.Error(ctx, "failed to create payout aggregator", err)
		os.Exit(1)
	}

	reconciler, err := payments.NewReconciler(payments.ReconcilerParams{
		Repo:    payments.NewRepository(dbClient.DB()),
		Tx:      dbClient,
		Gateway: gateway,
		Orders:  orderSvc,
		Outbox:  outboxSvc,
		Logger:  logg,
	})
	if err != nil {
		logg.Error(ctx, "failed to create payment reconciler", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	startCtx := logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(startCtx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.RouterParams{
			Config: cfg,
			Logger: logg,
			Redis:  redisClient,
			HealthDeps: map[string]controllers.Pingable{
				"database": dbClient,
				"redis":    redisClient,
			},
			Orders:      orderSvc,
			Inventory:   inventorySvc,
			Pickups:     pickupSvc,
			Restaurants: restaurantSvc,
			Payouts:     aggregator,
			PayoutsRepo: payoutsRepo,
			SweepDefaults: payouts.SweepFilters{
				MinItemAge: cfg.Payout.MinItemAge,
				MinTotal:   minBatchTotal,
			},
			Reconciler: reconciler,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(startCtx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
