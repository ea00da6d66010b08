package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/skshopping/shop-backend/api/responses"
	"github.com/skshopping/shop-backend/pkg/logger"
	"github.com/skshopping/shop-backend/pkg/metrics"
)

func TestRequestIDEchoesOrGenerates(t *testing.T) {
	handler := RequestID(logger.Nop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(responses.RequestIDHeader, "given")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Header().Get(responses.RequestIDHeader) != "given" {
		t.Fatalf("expected incoming request id to be echoed")
	}

	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/", nil))
	if resp.Header().Get(responses.RequestIDHeader) == "" {
		t.Fatalf("expected a generated request id")
	}
}

func TestRecovererReturns500(t *testing.T) {
	handler := Recoverer(nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/", nil))
	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 got %d", resp.Code)
	}
}

func TestMetricsObservesRoutePattern(t *testing.T) {
	reg := prometheus.NewRegistry()
	handler := Metrics(metrics.NewHTTPMetrics(reg))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))
	req := requestWithPattern(http.MethodGet, "/orders/123", "/orders/{orderId}", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if got := testutil.CollectAndCount(reg, "http_requests_total"); got != 1 {
		t.Fatalf("expected one request series, got %d", got)
	}
}
