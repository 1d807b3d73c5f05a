package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMiddlewareCountsByEndpointAndStatus(t *testing.T) {
	h := Middleware(func(*http.Request) string { return "/api/tests/{id}" },
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTeapot)
		}))

	before := testutil.ToFloat64(RequestCounter.WithLabelValues(http.MethodGet, "/api/tests/{id}", "418"))
	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/tests/abc", nil))
		if rec.Code != http.StatusTeapot {
			t.Fatalf("expected 418, got %d", rec.Code)
		}
	}
	after := testutil.ToFloat64(RequestCounter.WithLabelValues(http.MethodGet, "/api/tests/{id}", "418"))
	if after-before != 3 {
		t.Fatalf("expected 3 requests counted, got %v", after-before)
	}
}

func TestInitIsIdempotent(t *testing.T) {
	Init()
	Init()
}
