// Package main contains integration tests for the API server.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/onnwee/feedrank/internal/api"
	"github.com/onnwee/feedrank/internal/config"
	"github.com/onnwee/feedrank/internal/feed"
)

func testConfig() *config.Config {
	return &config.Config{
		Port:                config.DefaultPort,
		Env:                 config.DefaultEnv,
		RankingScorer:       feed.ScorerEngagement,
		FeedMaxItems:        config.DefaultFeedMaxItems,
		FeedCacheTTLSeconds: config.DefaultFeedCacheTTLSeconds,
	}
}

func newTestApp(t *testing.T, cfg *config.Config) *app {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	a, err := newApp(cfg, logger, prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("newApp failed: %v", err)
	}
	t.Cleanup(func() { _ = a.close() })
	return a
}

func serve(a *app, method, target string, body string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	w := httptest.NewRecorder()
	a.handler.ServeHTTP(w, httptest.NewRequest(method, target, r))
	return w
}

func TestApp_HealthAndReady(t *testing.T) {
	a := newTestApp(t, testConfig())

	for _, path := range []string{"/health", "/ready"} {
		w := serve(a, http.MethodGet, path, "")
		if w.Code != http.StatusOK {
			t.Errorf("%s: expected status 200, got %d", path, w.Code)
		}
		if w.Header().Get("X-Request-ID") == "" {
			t.Errorf("%s: expected X-Request-ID header", path)
		}
	}

	var ready api.HealthResponse
	if err := json.NewDecoder(serve(a, http.MethodGet, "/ready", "").Body).Decode(&ready); err != nil {
		t.Fatalf("failed to decode ready response: %v", err)
	}
	if ready.Checks["scorer"] != feed.ScorerEngagement {
		t.Errorf("expected scorer %s, got %s", feed.ScorerEngagement, ready.Checks["scorer"])
	}
}

func TestApp_RankThenFetchCached(t *testing.T) {
	a := newTestApp(t, testConfig())

	body := `{
		"context": {"user_id": "alice"},
		"items": [
			{"kind": "post", "id": "quiet", "timestamp": "2024-06-01T10:00:00Z"},
			{"kind": "post", "id": "popular", "timestamp": "2024-06-01T10:00:00Z", "signals": {"likes": 50}}
		]
	}`
	w := serve(a, http.MethodPost, "/feed/rank", body)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var ranked api.FeedResponse
	if err := json.NewDecoder(w.Body).Decode(&ranked); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(ranked.Items) != 2 || ranked.Items[0].ID != "popular" {
		t.Fatalf("expected engagement to lift popular item, got %+v", ranked.Items)
	}

	w = serve(a, http.MethodGet, "/feed/cached?user_id=alice", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected cached feed, got %d: %s", w.Code, w.Body.String())
	}
	var cached api.FeedResponse
	if err := json.NewDecoder(w.Body).Decode(&cached); err != nil {
		t.Fatalf("failed to decode cached response: %v", err)
	}
	if !cached.Cached || cached.Items[0].ID != "popular" {
		t.Errorf("unexpected cached feed %+v", cached)
	}
}

func TestApp_RankFarFutureEvent(t *testing.T) {
	a := newTestApp(t, testConfig())

	body := `{
		"now": "2024-06-01T12:00:00Z",
		"items": [
			{"kind": "post", "id": "today", "timestamp": "2024-06-01T11:00:00Z", "signals": {"likes": 10}},
			{"kind": "event", "id": "reunion", "timestamp": "2026-09-01T18:00:00Z", "signals": {"rsvps": 200}}
		]
	}`
	w := serve(a, http.MethodPost, "/feed/rank", body)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var ranked api.FeedResponse
	if err := json.NewDecoder(w.Body).Decode(&ranked); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(ranked.Items) != 2 || ranked.Items[0].ID != "reunion" {
		t.Fatalf("expected far-future event first, got %+v", ranked.Items)
	}
	if r := ranked.Items[0].Rank; r == nil || *r != math.MaxFloat64 {
		t.Errorf("expected saturated rank, got %v", r)
	}
}

func TestApp_MetricsEndpoint(t *testing.T) {
	a := newTestApp(t, testConfig())

	serve(a, http.MethodPost, "/feed/rank", `{"items": [{"kind": "event", "id": "e1", "timestamp": "2024-06-01T10:00:00Z"}]}`)

	w := serve(a, http.MethodGet, "/metrics", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	out := w.Body.String()
	for _, name := range []string{feed.MetricRankTotal, "http_request_duration_seconds", "go_goroutines"} {
		if !strings.Contains(out, name) {
			t.Errorf("expected /metrics to expose %s", name)
		}
	}
}

func TestApp_UnknownRoute(t *testing.T) {
	a := newTestApp(t, testConfig())

	w := serve(a, http.MethodGet, "/feed/unknown", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", w.Code)
	}
	var resp api.ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode error: %v", err)
	}
	if resp.Error.Code != api.ErrCodeNotFound {
		t.Errorf("expected code %s, got %s", api.ErrCodeNotFound, resp.Error.Code)
	}
}

func TestApp_RateLimited(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimitRPS = 1
	cfg.RateLimitBurst = 1
	a := newTestApp(t, cfg)

	if w := serve(a, http.MethodGet, "/health", ""); w.Code != http.StatusOK {
		t.Fatalf("expected first request to pass, got %d", w.Code)
	}
	w := serve(a, http.MethodGet, "/health", "")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected status 429, got %d", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}
}

func TestApp_CORS(t *testing.T) {
	cfg := testConfig()
	cfg.CORSAllowedOrigins = []string{"https://app.example.com"}
	a := newTestApp(t, cfg)

	req := httptest.NewRequest(http.MethodOptions, "/feed/rank", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	a.handler.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("expected preflight status 204, got %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
		t.Errorf("unexpected Access-Control-Allow-Origin %q", got)
	}
}

func TestNewApp_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   error
	}{
		{
			name:   "unknown scorer",
			mutate: func(c *config.Config) { c.RankingScorer = "popularity" },
			want:   feed.ErrUnknownScorer,
		},
		{
			name:   "bad redis url",
			mutate: func(c *config.Config) { c.RedisURL = "http://localhost:6379" },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(cfg)
			logger := slog.New(slog.NewTextHandler(io.Discard, nil))

			_, err := newApp(cfg, logger, prometheus.NewRegistry())
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestNewApp_MissingCalibrationFallsBack(t *testing.T) {
	cfg := testConfig()
	cfg.RankingCalibrationPath = "/nonexistent/ranking.json"
	newTestApp(t, cfg)
}

// TestGracefulShutdown verifies in-flight requests complete and the
// start/stop log lines are written in order.
func TestGracefulShutdown(t *testing.T) {
	a := newTestApp(t, testConfig())

	var logBuf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logBuf, nil))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}

	server := &http.Server{Handler: a.handler, ReadTimeout: 15 * time.Second}
	serverStopped := make(chan struct{})
	logger.Info("starting server", "addr", ln.Addr().String())
	go func() {
		defer close(serverStopped)
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			t.Errorf("server error: %v", err)
		}
	}()

	resp, err := http.Get("http://" + ln.Addr().String() + "/health")
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected status 200, got %d", resp.StatusCode)
	}

	logger.Info("shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		t.Errorf("server shutdown error: %v", err)
	}
	logger.Info("server stopped")

	select {
	case <-serverStopped:
	case <-time.After(5 * time.Second):
		t.Fatal("server failed to stop in time")
	}

	logs := logBuf.String()
	startIdx := strings.Index(logs, "starting server")
	shutdownIdx := strings.Index(logs, "shutting down server")
	stoppedIdx := strings.Index(logs, "server stopped")
	if startIdx == -1 || shutdownIdx == -1 || stoppedIdx == -1 {
		t.Fatalf("missing lifecycle log lines: %s", logs)
	}
	if !(startIdx < shutdownIdx && shutdownIdx < stoppedIdx) {
		t.Error("expected log order: starting -> shutting down -> stopped")
	}
}

func TestRunCleanup_StopsOnCancel(t *testing.T) {
	a := newTestApp(t, testConfig())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		a.runCleanup(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("runCleanup did not return after cancel")
	}
}
