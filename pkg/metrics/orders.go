package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// OrderMetrics tracks checkout, gateway and webhook outcomes.
type OrderMetrics struct {
	ordersCreated *prometheus.CounterVec
	rejections    *prometheus.CounterVec
	gateway       *prometheus.HistogramVec
	webhooks      *prometheus.CounterVec
	integrity     *prometheus.CounterVec
}

// NewOrderMetrics registers the order metrics on reg. A nil registerer yields a no-op recorder.
func NewOrderMetrics(reg prometheus.Registerer) *OrderMetrics {
	if reg == nil {
		return &OrderMetrics{}
	}
	m := &OrderMetrics{
		ordersCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "orders_created_total",
			Help: "Orders committed by checkout.",
		}, []string{"payment_method"}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "order_rejections_total",
			Help: "Checkout attempts rejected before commit.",
		}, []string{"reason"}),
		gateway: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "payment_gateway_request_seconds",
			Help:    "Latency of payment gateway artifact requests.",
			Buckets: prometheus.DefBuckets,
		}, []string{"provider", "outcome"}),
		webhooks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "payment_webhooks_total",
			Help: "Payment webhook deliveries by outcome.",
		}, []string{"provider", "outcome"}),
		integrity: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "integrity_violations_total",
			Help: "Data integrity violations detected while reconciling payments or stock.",
		}, []string{"kind"}),
	}
	reg.MustRegister(m.ordersCreated, m.rejections, m.gateway, m.webhooks, m.integrity)
	return m
}

func (m *OrderMetrics) IncOrdersCreated(paymentMethod string, n int) {
	if m == nil || m.ordersCreated == nil {
		return
	}
	m.ordersCreated.WithLabelValues(normalizeLabel(paymentMethod)).Add(float64(n))
}

func (m *OrderMetrics) IncRejection(reason string) {
	if m == nil || m.rejections == nil {
		return
	}
	m.rejections.WithLabelValues(normalizeLabel(reason)).Inc()
}

func (m *OrderMetrics) ObserveGateway(provider, outcome string, d time.Duration) {
	if m == nil || m.gateway == nil {
		return
	}
	m.gateway.WithLabelValues(normalizeLabel(provider), normalizeLabel(outcome)).Observe(d.Seconds())
}

func (m *OrderMetrics) IncWebhook(provider, outcome string) {
	if m == nil || m.webhooks == nil {
		return
	}
	m.webhooks.WithLabelValues(normalizeLabel(provider), normalizeLabel(outcome)).Inc()
}

func (m *OrderMetrics) IncIntegrityViolation(kind string) {
	if m == nil || m.integrity == nil {
		return
	}
	m.integrity.WithLabelValues(normalizeLabel(kind)).Inc()
}
