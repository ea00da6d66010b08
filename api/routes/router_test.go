package routes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skshopping/shop-backend/api/controllers"
	internalorders "github.com/skshopping/shop-backend/internal/orders"
	internalwebhooks "github.com/skshopping/shop-backend/internal/webhooks"
	pkgAuth "github.com/skshopping/shop-backend/pkg/auth"
	"github.com/skshopping/shop-backend/pkg/config"
	"github.com/skshopping/shop-backend/pkg/db/models"
	"github.com/skshopping/shop-backend/pkg/enums"
	"github.com/skshopping/shop-backend/pkg/metrics"
)

type stubOrders struct {
	mu      sync.Mutex
	creates int
}

func (s *stubOrders) Create(_ context.Context, req internalorders.CreateRequest) (*internalorders.CreateResult, error) {
	s.mu.Lock()
	s.creates++
	s.mu.Unlock()
	return &internalorders.CreateResult{Orders: []models.Order{{ID: uuid.New()}}}, nil
}

func (s *stubOrders) Get(_ context.Context, id uuid.UUID) (*models.Order, error) {
	return &models.Order{ID: id}, nil
}

func (s *stubOrders) Render(_ context.Context, orders []models.Order, _, _ enums.FetchLevel) ([]any, error) {
	out := make([]any, 0, len(orders))
	for _, o := range orders {
		out = append(out, map[string]any{"id": o.ID})
	}
	return out, nil
}

func (s *stubOrders) AttachSlip(_ context.Context, id uuid.UUID, _ string) (*models.Order, error) {
	return &models.Order{ID: id}, nil
}

func (s *stubOrders) UpdateShipment(_ context.Context, _ internalorders.Actor, id uuid.UUID, _ enums.ShipmentStatus) (*models.Order, error) {
	return &models.Order{ID: id}, nil
}

func (s *stubOrders) Verify(_ context.Context, _ internalorders.Actor, id uuid.UUID) (*models.Order, error) {
	return &models.Order{ID: id}, nil
}

func (s *stubOrders) RegenerateArtifact(_ context.Context, id uuid.UUID) (*models.Order, error) {
	return &models.Order{ID: id}, nil
}

type stubReconciler struct {
	provider enums.PaymentProvider
}

func (s *stubReconciler) Reconcile(_ context.Context, provider enums.PaymentProvider, _ []byte, _ string) (*internalwebhooks.Outcome, error) {
	s.provider = provider
	return &internalwebhooks.Outcome{Provider: provider, Acknowledged: true}, nil
}

type memoryStore struct {
	mu   sync.Mutex
	data map[string]string
}

func (m *memoryStore) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return "", goredis.Nil
	}
	return v, nil
}

func (m *memoryStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[key]; ok {
		return false, nil
	}
	m.data[key] = value.(string)
	return true, nil
}

func (m *memoryStore) IdempotencyKey(scope, id string) string { return "idem:" + scope + ":" + id }

func (m *memoryStore) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

type fixture struct {
	handler    http.Handler
	orders     *stubOrders
	reconciler *stubReconciler
	registry   *prometheus.Registry
	jwt        config.JWTConfig
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := &config.Config{
		App:      config.AppConfig{Env: "test", CORSOrigins: []string{"http://localhost:3000"}},
		JWT:      config.JWTConfig{Secret: "router-secret", Issuer: "skshop", TTL: time.Hour},
		Eventing: config.EventingConfig{RequestIdempotencyTTL: time.Hour},
	}
	reg := prometheus.NewRegistry()
	f := &fixture{orders: &stubOrders{}, reconciler: &stubReconciler{}, registry: reg, jwt: cfg.JWT}
	f.handler = NewRouter(
		cfg,
		nil,
		map[string]controllers.Pinger{},
		&memoryStore{data: map[string]string{}},
		metrics.NewHTTPMetrics(reg),
		nil,
		f.orders,
		f.reconciler,
	)
	return f
}

func (f *fixture) token(t *testing.T, role enums.Role) string {
	t.Helper()
	tok, err := pkgAuth.MintAccessToken(f.jwt, time.Now(), pkgAuth.AccessTokenPayload{UserID: uuid.New(), Role: role, JTI: uuid.NewString()})
	require.NoError(t, err)
	return tok
}

func (f *fixture) do(method, path, body, bearer string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp := httptest.NewRecorder()
	f.handler.ServeHTTP(resp, req)
	return resp
}

const checkoutBody = `{"data":[{"items":[{"item_id":"6f1c1a5e-1111-4b7e-9c1a-000000000001","amount":1}],"delivery_type":"school_pickup","payment_method":"cod","receiver_name":"A","contact_email":"a@example.com"}]}`

func TestHealthLive(t *testing.T) {
	f := newFixture(t)
	resp := f.do(http.MethodGet, "/health/live", "", "", nil)
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.NotEmpty(t, resp.Header().Get("X-Request-Id"))
}

func TestGuestCheckoutAndIdempotentReplay(t *testing.T) {
	f := newFixture(t)
	headers := map[string]string{"Idempotency-Key": "checkout-1"}

	first := f.do(http.MethodPost, "/orders", checkoutBody, "", headers)
	require.Equal(t, http.StatusOK, first.Code, first.Body.String())

	second := f.do(http.MethodPost, "/orders", checkoutBody, "", headers)
	require.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, "true", second.Header().Get("Idempotent-Replayed"))
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, 1, f.orders.creates)
}

func TestCheckoutRejectsInvalidToken(t *testing.T) {
	f := newFixture(t)
	resp := f.do(http.MethodPost, "/orders", checkoutBody, "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
	assert.Equal(t, 0, f.orders.creates)
}

func TestStaffRoutes(t *testing.T) {
	f := newFixture(t)
	path := "/orders/" + uuid.NewString() + "/verify"

	assert.Equal(t, http.StatusUnauthorized, f.do(http.MethodPatch, path, "", "", nil).Code)
	assert.Equal(t, http.StatusForbidden, f.do(http.MethodPatch, path, "", f.token(t, enums.RoleBuyer), nil).Code)
	assert.Equal(t, http.StatusOK, f.do(http.MethodPatch, path, "", f.token(t, enums.RoleAdmin), nil).Code)
}

func TestWebhookRoutesSelectProvider(t *testing.T) {
	f := newFixture(t)

	resp := f.do(http.MethodPost, "/orders/webhook", `{}`, "", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, enums.ProviderGBPrimePay, f.reconciler.provider)

	resp = f.do(http.MethodPost, "/orders/webhook/omise", `{}`, "", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, enums.ProviderOmise, f.reconciler.provider)
}

func TestRequestMetricsUseRoutePattern(t *testing.T) {
	f := newFixture(t)
	f.do(http.MethodGet, "/orders/"+uuid.NewString(), "", "", nil)
	f.do(http.MethodGet, "/orders/"+uuid.NewString(), "", "", nil)

	assert.Equal(t, 1, testutil.CollectAndCount(f.registry, "http_requests_total"))
}
