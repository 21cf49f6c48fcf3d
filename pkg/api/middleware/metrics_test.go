package middleware

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

type fakeRecorder struct {
	mu       sync.Mutex
	requests []string
	active   int
}

func (f *fakeRecorder) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, method+" "+path+" "+status)
}

func (f *fakeRecorder) IncHTTPConnections() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.active++
}

func (f *fakeRecorder) DecHTTPConnections() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.active--
}

func TestMetrics_RecordsRequest(t *testing.T) {
	rec := &fakeRecorder{}
	handler := Metrics(rec)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("POST", "/api/v1/content", nil))

	if len(rec.requests) != 1 {
		t.Fatalf("Expected 1 recorded request, got %d", len(rec.requests))
	}
	if rec.requests[0] != "POST /api/v1/content 201" {
		t.Errorf("Unexpected record: %s", rec.requests[0])
	}
	if rec.active != 0 {
		t.Errorf("Expected active connections back to 0, got %d", rec.active)
	}
}

func TestMetrics_SkipsMetricsEndpoint(t *testing.T) {
	rec := &fakeRecorder{}
	handler := Metrics(rec)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/metrics", nil))

	if len(rec.requests) != 0 {
		t.Errorf("Expected no records for /metrics, got %d", len(rec.requests))
	}
}

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"/api/v1/content", "/api/v1/content"},
		{"/api/v1/actions/42", "/api/v1/actions/:id"},
		{"/api/v1/actions/550e8400-e29b-41d4-a716-446655440000", "/api/v1/actions/:id"},
	}

	for _, tt := range tests {
		if got := normalizePath(tt.in); got != tt.want {
			t.Errorf("normalizePath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
