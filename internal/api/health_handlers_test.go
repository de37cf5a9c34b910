package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// mockHealthChecker is a mock implementation of HealthChecker for testing.
type mockHealthChecker struct {
	err   error
	delay time.Duration
}

func (m *mockHealthChecker) HealthCheck(ctx context.Context) error {
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return m.err
}

func decodeHealth(t *testing.T, w *httptest.ResponseRecorder) HealthResponse {
	t.Helper()
	var response HealthResponse
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return response
}

func TestHealth_Success(t *testing.T) {
	handlers := NewHealthHandlers(HealthHandlersConfig{})

	w := httptest.NewRecorder()
	handlers.Health(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}

	response := decodeHealth(t, w)
	if response.Status != "healthy" {
		t.Errorf("expected status 'healthy', got %s", response.Status)
	}
	if response.Checks["runtime"] != "ok" {
		t.Errorf("expected runtime check to be 'ok', got %s", response.Checks["runtime"])
	}
	if _, err := time.Parse(time.RFC3339, response.Timestamp); err != nil {
		t.Errorf("timestamp is not valid RFC3339: %v", err)
	}
}

func TestHealth_MethodNotAllowed(t *testing.T) {
	handlers := NewHealthHandlers(HealthHandlersConfig{})

	for _, path := range []string{"/health", "/ready"} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, path, nil)
		if path == "/health" {
			handlers.Health(w, req)
		} else {
			handlers.Ready(w, req)
		}
		if w.Code != http.StatusMethodNotAllowed {
			t.Errorf("%s: expected status 405, got %d", path, w.Code)
		}
	}
}

func TestReady(t *testing.T) {
	tests := []struct {
		name       string
		checker    HealthChecker
		timeout    time.Duration
		wantStatus int
		wantCache  string
	}{
		{
			name:       "in-memory cache",
			wantStatus: http.StatusOK,
			wantCache:  "ok",
		},
		{
			name:       "redis reachable",
			checker:    &mockHealthChecker{},
			wantStatus: http.StatusOK,
			wantCache:  "ok",
		},
		{
			name:       "redis down",
			checker:    &mockHealthChecker{err: errors.New("connection refused")},
			wantStatus: http.StatusServiceUnavailable,
			wantCache:  "error",
		},
		{
			name:       "redis slower than timeout",
			checker:    &mockHealthChecker{delay: time.Second},
			timeout:    10 * time.Millisecond,
			wantStatus: http.StatusServiceUnavailable,
			wantCache:  "error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handlers := NewHealthHandlers(HealthHandlersConfig{
				CacheChecker: tt.checker,
				Scorer:       "decay",
				Timeout:      tt.timeout,
			})

			w := httptest.NewRecorder()
			handlers.Ready(w, httptest.NewRequest(http.MethodGet, "/ready", nil))

			if w.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d", tt.wantStatus, w.Code)
			}

			response := decodeHealth(t, w)
			if response.Checks["feed_cache"] != tt.wantCache {
				t.Errorf("expected feed_cache %q, got %q", tt.wantCache, response.Checks["feed_cache"])
			}
			if response.Checks["ranker"] != "ok" || response.Checks["scorer"] != "decay" {
				t.Errorf("unexpected checks %v", response.Checks)
			}
			wantStatus := "healthy"
			if tt.wantStatus != http.StatusOK {
				wantStatus = "unhealthy"
			}
			if response.Status != wantStatus {
				t.Errorf("expected status %q, got %q", wantStatus, response.Status)
			}
		})
	}
}
