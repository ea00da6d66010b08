package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/skshopping/shop-backend/api/controllers"
	ordercontrollers "github.com/skshopping/shop-backend/api/controllers/orders"
	webhookcontrollers "github.com/skshopping/shop-backend/api/controllers/webhooks"
	"github.com/skshopping/shop-backend/api/middleware"
	"github.com/skshopping/shop-backend/pkg/config"
	"github.com/skshopping/shop-backend/pkg/enums"
	"github.com/skshopping/shop-backend/pkg/logger"
	"github.com/skshopping/shop-backend/pkg/metrics"
	"github.com/skshopping/shop-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	readiness map[string]controllers.Pinger,
	idempotencyStore redis.IdempotencyStore,
	httpMetrics *metrics.HTTPMetrics,
	metricsHandler http.Handler,
	ordersSvc ordercontrollers.Service,
	reconciler webhookcontrollers.Reconciler,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.Metrics(httpMetrics),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, readiness))
	})
	if metricsHandler != nil {
		r.Handle("/metrics", metricsHandler)
	}

	idempotent := middleware.Idempotency(idempotencyStore, cfg.Eventing.RequestIdempotencyTTL, logg)

	// Providers authenticate with a body signature, not a bearer token.
	r.Post("/orders/webhook", webhookcontrollers.PaymentWebhook(reconciler, enums.ProviderGBPrimePay, logg))
	r.Post("/orders/webhook/omise", webhookcontrollers.PaymentWebhook(reconciler, enums.ProviderOmise, logg))

	// Guests may check out; a buyer token only links the order to the account.
	r.Group(func(r chi.Router) {
		r.Use(middleware.OptionalAuth(cfg.JWT, logg))
		r.With(idempotent).Post("/orders", ordercontrollers.Create(ordersSvc, logg))
		r.Get("/orders/{orderId}", ordercontrollers.Get(ordersSvc, logg))
		r.Patch("/orders/{orderId}/slip", ordercontrollers.AttachSlip(ordersSvc, logg))
		r.With(idempotent).Post("/orders/{orderId}/payment-artifact", ordercontrollers.RegenerateArtifact(ordersSvc, logg))
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireStaff(logg))
		r.Patch("/orders/{orderId}/shipment", ordercontrollers.UpdateShipment(ordersSvc, logg))
		r.Patch("/orders/{orderId}/verify", ordercontrollers.Verify(ordersSvc, logg))
	})

	return r
}
