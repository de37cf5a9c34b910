package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestRequestID_GeneratesNewID(t *testing.T) {
	var captured string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = GetRequestID(r.Context())
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/feed/cached", nil))

	if captured == "" {
		t.Fatal("expected request ID in context")
	}
	if _, err := uuid.Parse(captured); err != nil {
		t.Errorf("expected generated ID to be a UUID, got %q", captured)
	}
	if got := rr.Header().Get(RequestIDHeader); got != captured {
		t.Errorf("expected response header %q, got %q", captured, got)
	}
}

func TestRequestID_UsesExistingHeader(t *testing.T) {
	existingID := "existing-request-id-123"
	var capturedID string

	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedID = GetRequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/feed/cached", nil)
	req.Header.Set(RequestIDHeader, existingID)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if capturedID != existingID {
		t.Errorf("expected request ID %q, got %q", existingID, capturedID)
	}
	if responseID := rr.Header().Get(RequestIDHeader); responseID != existingID {
		t.Errorf("expected response header %q, got %q", existingID, responseID)
	}
}

func TestRequestID_ReplacesMalformedIDs(t *testing.T) {
	tests := []struct {
		name       string
		incomingID string
		wantDiff   bool
	}{
		{"log injection attempt", "test\nmalicious-log-entry", true},
		{"special characters", "test@#$%^&*()", true},
		{"too long", strings.Repeat("a", 200), true},
		{"valid UUID", "550e8400-e29b-41d4-a716-446655440000", false},
		{"dotted trace style", "edge.7f3a_01", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

			req := httptest.NewRequest(http.MethodGet, "/feed/cached", nil)
			req.Header.Set(RequestIDHeader, tt.incomingID)
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			responseID := rr.Header().Get(RequestIDHeader)
			if responseID == "" {
				t.Fatal("expected X-Request-ID in response")
			}
			if tt.wantDiff && responseID == tt.incomingID {
				t.Errorf("expected invalid ID %q to be replaced", tt.incomingID)
			}
			if !tt.wantDiff && responseID != tt.incomingID {
				t.Errorf("expected valid ID %q to be preserved, got %q", tt.incomingID, responseID)
			}
		})
	}
}

func TestGetRequestID_EmptyContextReturnsEmptyString(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	if requestID := GetRequestID(req.Context()); requestID != "" {
		t.Errorf("expected empty string, got %q", requestID)
	}
}
