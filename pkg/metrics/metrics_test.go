package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestManager_Disabled(t *testing.T) {
	m := NoOpManager()

	if m.Enabled() {
		t.Error("Expected disabled manager")
	}

	// All recorders are no-ops, not panics.
	m.RecordEmotionTransition("excited", 0.8)
	m.RecordInteraction("observed")
	m.RecordEngagementScore(0.5)
	m.RecordToneAdaptation()
	m.RecordStorageFailure("insert")
	m.SetDegradedMode(true)
	m.RecordHTTPRequest("GET", "/api/v1/context", "200", time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != 404 {
		t.Errorf("Expected 404 from disabled handler, got %d", rec.Code)
	}
}

func TestManager_RecordsAndExposes(t *testing.T) {
	m := NewManager(Config{Enabled: true})

	m.RecordEmotionTransition("excited", 0.8)
	m.RecordInteraction("observed")
	m.RecordEngagementScore(0.42)
	m.SetDegradedMode(true)
	m.RecordHTTPRequest("POST", "/api/v1/content", "200", 5*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != 200 {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	body := rec.Body.String()
	for _, want := range []string{
		"personacore_emotion_transitions_total",
		"personacore_interactions_stored_total",
		"personacore_engagement_score",
		"personacore_degraded_mode 1",
		"personacore_http_requests_total",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("Expected metric %q in output", want)
		}
	}
}
