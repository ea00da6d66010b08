package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/skshopping/shop-backend/api/controllers"
	"github.com/skshopping/shop-backend/api/routes"
	"github.com/skshopping/shop-backend/internal/catalog"
	"github.com/skshopping/shop-backend/internal/orders"
	"github.com/skshopping/shop-backend/internal/payments"
	"github.com/skshopping/shop-backend/internal/stock"
	"github.com/skshopping/shop-backend/internal/webhooks"
	"github.com/skshopping/shop-backend/pkg/config"
	"github.com/skshopping/shop-backend/pkg/db"
	"github.com/skshopping/shop-backend/pkg/instance"
	"github.com/skshopping/shop-backend/pkg/logger"
	"github.com/skshopping/shop-backend/pkg/metrics"
	"github.com/skshopping/shop-backend/pkg/migrate"
	"github.com/skshopping/shop-backend/pkg/outbox"
	"github.com/skshopping/shop-backend/pkg/redis"
)

const shutdownTimeout = 20 * time.Second

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

	paymentRegistry, err := payments.NewRegistry(cfg, &http.Client{Timeout: cfg.Orders.GatewayTimeout})
	if err != nil {
		logg.Error(context.Background(), "failed to configure payment gateways", err)
		os.Exit(1)
	}

	orderMetrics := metrics.NewOrderMetrics(prometheus.DefaultRegisterer)
	ordersRepo := orders.NewRepository(dbClient.DB())
	emitter := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)
	catalogRepo := catalog.NewRepository(dbClient.DB())
	ledger := stock.NewLedger(dbClient.DB(), cfg.Orders.ReservationHoldWindow)

	ordersSvc, err := orders.NewService(orders.ServiceParams{
		TxRunner:       dbClient,
		Repo:           ordersRepo,
		Catalog:        catalogRepo,
		Ledger:         ledger,
		Pricing:        orders.NewPricing(cfg.Orders),
		Payments:       paymentRegistry,
		Outbox:         emitter,
		Metrics:        orderMetrics,
		Logger:         logg,
		GatewayTimeout: cfg.Orders.GatewayTimeout,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create orders service", err)
		os.Exit(1)
	}

	guard, err := webhooks.NewIdempotencyGuard(redisClient, cfg.Eventing.WebhookIdempotencyTTL, "payments")
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook idempotency guard", err)
		os.Exit(1)
	}
	reconciler, err := webhooks.NewReconciler(webhooks.ReconcilerParams{
		TxRunner:     dbClient,
		Repo:         ordersRepo,
		Payments:     paymentRegistry,
		Outbox:       emitter,
		Reservations: orders.NewReservationChecker(catalogRepo, ledger),
		Guard:        guard,
		Metrics:      orderMetrics,
		Logger:       logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook reconciler", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":              cfg.App.Env,
		"addr":             addr,
		"instance":         instance.GetID(),
		"payment_provider": paymentRegistry.Primary().Provider(),
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			map[string]controllers.Pinger{"database": dbClient, "redis": redisClient},
			redisClient,
			metrics.NewHTTPMetrics(prometheus.DefaultRegisterer),
			promhttp.Handler(),
			ordersSvc,
			reconciler,
		),
		ReadHeaderTimeout: 10 * time.Second,
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-sigCtx.Done():
		logg.Info(ctx, "shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "api server shutdown failed", err)
		}
	}
}
