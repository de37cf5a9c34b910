package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/feed/rank", "/feed/rank"},
		{"/feed/cached", "/feed/cached"},
		{"/metrics", "/metrics"},
		{"/feed/rank/extra", otherPath},
		{"/wp-admin.php", otherPath},
		{"/", otherPath},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := normalizePath(tt.path); got != tt.want {
				t.Errorf("normalizePath(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

func TestHTTPMetrics_RecordsRequest(t *testing.T) {
	m := NewMetrics()

	handler := HTTPMetrics(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"error":{}}`))
	}))

	req := httptest.NewRequest(http.MethodPost, "/feed/rank", strings.NewReader(`{"items":[]}`))
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if got := counterValue(t, m.httpRequestsTotal, "POST", "/feed/rank", "422"); got != 1 {
		t.Errorf("expected 1 request recorded, got %v", got)
	}

	var metric dto.Metric
	observer := m.httpResponseSize.With(prometheus.Labels{"method": "POST", "path": "/feed/rank", "status": "422"})
	if err := observer.(prometheus.Histogram).Write(&metric); err != nil {
		t.Fatalf("failed to read histogram: %v", err)
	}
	if got := metric.GetHistogram().GetSampleSum(); got != float64(len(`{"error":{}}`)) {
		t.Errorf("expected response size sum %d, got %v", len(`{"error":{}}`), got)
	}
}

func TestHTTPMetrics_SkipsHealthChecks(t *testing.T) {
	m := NewMetrics()
	reg := prometheus.NewRegistry()
	if err := m.Register(reg); err != nil {
		t.Fatalf("Register() failed: %v", err)
	}

	handler := HTTPMetrics(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	for _, path := range []string{"/health", "/ready"} {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() failed: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() == MetricHTTPRequestsTotal && len(mf.GetMetric()) > 0 {
			t.Errorf("expected no request metrics for health checks, got %d series", len(mf.GetMetric()))
		}
	}
}

func TestMetricsResponseWriter_WriteHeaderOnce(t *testing.T) {
	mrw := newMetricsResponseWriter(httptest.NewRecorder())
	mrw.WriteHeader(http.StatusTooManyRequests)
	mrw.WriteHeader(http.StatusOK)

	if mrw.statusCode != http.StatusTooManyRequests {
		t.Errorf("expected status 429, got %d", mrw.statusCode)
	}
}

func TestMetricsResponseWriter_MultipleWrites(t *testing.T) {
	mrw := newMetricsResponseWriter(httptest.NewRecorder())
	_, _ = mrw.Write([]byte("abc"))
	_, _ = mrw.Write([]byte("de"))

	if mrw.size != 5 {
		t.Errorf("expected size 5, got %d", mrw.size)
	}
}
