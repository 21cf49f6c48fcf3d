package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/personacore/personacore/config"
	"github.com/personacore/personacore/pkg/logger"
)

func TestBuildOverrides(t *testing.T) {
	origPersonality := *personalityPath
	origServerPort := *serverPort
	origLogLevel := *logLevel
	origDebugMode := *debugMode

	defer func() {
		*personalityPath = origPersonality
		*serverPort = origServerPort
		*logLevel = origLogLevel
		*debugMode = origDebugMode
	}()

	*personalityPath = ""
	*serverPort = 0
	*logLevel = ""
	*debugMode = false

	overrides := buildOverrides()
	if len(overrides) != 0 {
		t.Errorf("Expected empty overrides, got %d items", len(overrides))
	}

	*personalityPath = "aria.json"
	*serverPort = 9090
	*logLevel = "debug"
	*debugMode = true

	overrides = buildOverrides()
	if len(overrides) != 4 {
		t.Errorf("Expected 4 overrides, got %d", len(overrides))
	}
	if overrides["personality.path"] != "aria.json" {
		t.Errorf("Expected personality.path=aria.json, got %v", overrides["personality.path"])
	}
	if overrides["server.port"] != 9090 {
		t.Errorf("Expected server.port=9090, got %v", overrides["server.port"])
	}
	if overrides["log.level"] != "debug" {
		t.Errorf("Expected log.level=debug, got %v", overrides["log.level"])
	}
	if overrides["app.debug"] != true {
		t.Errorf("Expected app.debug=true, got %v", overrides["app.debug"])
	}
}

func TestOpenBackend_Fallbacks(t *testing.T) {
	log := logger.New(&logger.Config{Level: logger.ErrorLevel, Format: "text", Output: "stderr"})
	ctx := context.Background()

	cfg := config.DefaultConfig()
	cfg.Storage.Type = "memory"
	s := openBackend(ctx, cfg, log)
	if err := s.Ping(ctx); err != nil {
		t.Errorf("Memory store should always be reachable: %v", err)
	}

	// Unreachable Redis falls back to the memory store.
	cfg.Storage.Type = "redis"
	cfg.Storage.Redis.Address = "127.0.0.1:1"
	s = openBackend(ctx, cfg, log)
	if err := s.Ping(ctx); err != nil {
		t.Errorf("Expected memory fallback, got unreachable store: %v", err)
	}

	// Unknown type falls back too.
	cfg.Storage.Type = "cassandra"
	s = openBackend(ctx, cfg, log)
	if err := s.Ping(ctx); err != nil {
		t.Errorf("Expected memory fallback for unknown type: %v", err)
	}
}

func TestHTTPFetcher(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/post-1" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"positive_feedback": 12, "amplification": 3, "responses": 4, "impressions": 200}`))
	}))
	defer srv.Close()

	fetcher := newHTTPFetcher(srv.URL)

	metrics, err := fetcher.FetchMetrics(context.Background(), "post-1")
	if err != nil {
		t.Fatalf("FetchMetrics failed: %v", err)
	}
	if metrics.PositiveFeedback != 12 || metrics.Impressions != 200 {
		t.Errorf("Unexpected metrics: %+v", metrics)
	}

	if _, err := fetcher.FetchMetrics(context.Background(), "missing"); err == nil {
		t.Error("Expected error for 404 response")
	}
}

func TestPrintVersion(t *testing.T) {
	output := captureStdout(t, printVersion)

	for _, expected := range []string{"Personacore", "Version:", "Go Version:"} {
		if !strings.Contains(output, expected) {
			t.Errorf("Expected output to contain %q. Output: %s", expected, output)
		}
	}
}

func TestPrintHelp(t *testing.T) {
	output := captureStdout(t, printHelp)

	for _, expected := range []string{"Personacore", "Usage:", "Options:", "Examples:"} {
		if !strings.Contains(output, expected) {
			t.Errorf("Expected output to contain %q. Output: %s", expected, output)
		}
	}
}

func captureStdout(t *testing.T, fn func()) string {
	t.Helper()

	oldStdout := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("Failed to create pipe: %v", err)
	}
	os.Stdout = w

	fn()

	w.Close()
	os.Stdout = oldStdout

	buf := make([]byte, 4096)
	n, _ := r.Read(buf)
	return string(buf[:n])
}
