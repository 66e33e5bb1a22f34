package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsMiddlewareUsesRouteTemplate(t *testing.T) {
	InitMetrics()
	InitMetrics()

	r := mux.NewRouter()
	r.Use(MetricsMiddleware)
	r.HandleFunc("/v1/feedback/{editKey}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}).Methods("GET")
	r.Handle("/metrics", MetricsHandler())

	before := testutil.ToFloat64(RequestCounter.WithLabelValues("GET", "/v1/feedback/{editKey}", "404"))
	for _, key := range []string{"ABC234", "XYZ789"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest("GET", "/v1/feedback/"+key, nil))
		if rec.Code != http.StatusNotFound {
			t.Fatalf("status=%d", rec.Code)
		}
	}
	after := testutil.ToFloat64(RequestCounter.WithLabelValues("GET", "/v1/feedback/{editKey}", "404"))
	if after-before != 2 {
		t.Fatalf("counter delta=%v", after-before)
	}

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if !strings.Contains(rec.Body.String(), "http_requests_total") {
		t.Fatal("metrics output missing http_requests_total")
	}
}
