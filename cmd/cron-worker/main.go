package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/skshopping/shop-backend/internal/catalog"
	"github.com/skshopping/shop-backend/internal/cron"
	"github.com/skshopping/shop-backend/internal/orders"
	"github.com/skshopping/shop-backend/internal/payments"
	"github.com/skshopping/shop-backend/internal/stock"
	"github.com/skshopping/shop-backend/pkg/config"
	"github.com/skshopping/shop-backend/pkg/db"
	"github.com/skshopping/shop-backend/pkg/instance"
	"github.com/skshopping/shop-backend/pkg/logger"
	"github.com/skshopping/shop-backend/pkg/metrics"
	"github.com/skshopping/shop-backend/pkg/migrate"
	"github.com/skshopping/shop-backend/pkg/outbox"
	"github.com/skshopping/shop-backend/pkg/redis"
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

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	outboxRepo := outbox.NewRepository(dbClient.DB())
	retention, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:        logg,
		DB:            dbClient,
		Repository:    outboxRepo,
		RetentionDays: cfg.Outbox.RetentionDays,
		MinAttempts:   cfg.Outbox.MaxAttempts,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create outbox retention job", err)
		os.Exit(1)
	}
	jobs := []cron.Job{retention}

	if cfg.Orders.AutoCancelLapsed {
		ordersSvc, err := newOrdersService(cfg, logg, dbClient, outboxRepo)
		if err != nil {
			logg.Error(context.Background(), "failed to create orders service", err)
			os.Exit(1)
		}
		sweep, err := cron.NewReservationSweepJob(cron.ReservationSweepJobParams{
			Logger:    logg,
			Orders:    ordersSvc,
			BatchSize: cfg.Cron.SweepBatchSize,
		})
		if err != nil {
			logg.Error(context.Background(), "failed to create reservation sweep job", err)
			os.Exit(1)
		}
		jobs = append(jobs, sweep)
	}

	lock, err := cron.NewRedisLock(redisClient, redis.LockKey("cron-worker", lockEnv(cfg.App.Env)), cfg.Cron.LockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(jobs...),
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":                 cfg.App.Env,
		"serviceKind":         cfg.Service.Kind,
		"instance":            instance.GetID(),
		"reservation_sweep":   cfg.Orders.AutoCancelLapsed,
		"reservation_hold_ms": cfg.Orders.ReservationHoldWindow.Milliseconds(),
	})
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

// newOrdersService wires the order service for the sweep. The sweep never
// calls a gateway, but the service still requires a payment registry.
func newOrdersService(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, outboxRepo *outbox.Repository) (orders.Service, error) {
	registry, err := payments.NewRegistry(cfg, &http.Client{Timeout: cfg.Orders.GatewayTimeout})
	if err != nil {
		return nil, err
	}
	return orders.NewService(orders.ServiceParams{
		TxRunner:       dbClient,
		Repo:           orders.NewRepository(dbClient.DB()),
		Catalog:        catalog.NewRepository(dbClient.DB()),
		Ledger:         stock.NewLedger(dbClient.DB(), cfg.Orders.ReservationHoldWindow),
		Pricing:        orders.NewPricing(cfg.Orders),
		Payments:       registry,
		Outbox:         outbox.NewService(outboxRepo, logg),
		Metrics:        metrics.NewOrderMetrics(prometheus.DefaultRegisterer),
		Logger:         logg,
		GatewayTimeout: cfg.Orders.GatewayTimeout,
	})
}

func lockEnv(env string) string {
	if env == "" {
		return "local"
	}
	return env
}
