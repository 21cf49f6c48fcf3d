package store

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

// TestSuite defines a conformance suite that can be run against any Store
// implementation.
type TestSuite struct {
	NewStore func(t *testing.T) Store
}

// RunAllTests runs every conformance test against the provided store.
func (s *TestSuite) RunAllTests(t *testing.T) {
	t.Run("InteractionLog", s.TestInteractionLog)
	t.Run("RecentOrderAndLimit", s.TestRecentOrderAndLimit)
	t.Run("RelationshipUpsert", s.TestRelationshipUpsert)
	t.Run("TopicPreferencesRoundTrip", s.TestTopicPreferencesRoundTrip)
	t.Run("ExemplarsRoundTrip", s.TestExemplarsRoundTrip)
	t.Run("EmptyStoreDefaults", s.TestEmptyStoreDefaults)
	t.Run("ConcurrentAccess", s.TestConcurrentAccess)
}

// TestInteractionLog checks append and read-back of interactions.
func (s *TestSuite) TestInteractionLog(t *testing.T) {
	st := s.NewStore(t)
	defer st.Close()

	ctx := context.Background()

	rec := &InteractionRecord{
		ID:        "int-1",
		Type:      "message",
		User:      "alice",
		Content:   "hello there",
		Timestamp: time.Now().UTC().Truncate(time.Millisecond),
		Sentiment: 0.4,
	}
	if err := st.InsertInteraction(ctx, rec); err != nil {
		t.Fatalf("InsertInteraction failed: %v", err)
	}

	got, err := st.RecentInteractions(ctx, 10)
	if err != nil {
		t.Fatalf("RecentInteractions failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 interaction, got %d", len(got))
	}
	if got[0].ID != rec.ID || got[0].User != rec.User || got[0].Content != rec.Content {
		t.Errorf("round-trip mismatch: got %+v", got[0])
	}
	if got[0].Sentiment != rec.Sentiment {
		t.Errorf("expected sentiment %v, got %v", rec.Sentiment, got[0].Sentiment)
	}
}

// TestRecentOrderAndLimit checks newest-first ordering and the limit bound.
func (s *TestSuite) TestRecentOrderAndLimit(t *testing.T) {
	st := s.NewStore(t)
	defer st.Close()

	ctx := context.Background()
	base := time.Now().UTC().Add(-time.Hour)

	for i := 0; i < 5; i++ {
		rec := &InteractionRecord{
			ID:        fmt.Sprintf("int-%d", i),
			Type:      "observed",
			User:      "bob",
			Content:   fmt.Sprintf("post %d", i),
			Timestamp: base.Add(time.Duration(i) * time.Minute),
		}
		if err := st.InsertInteraction(ctx, rec); err != nil {
			t.Fatalf("InsertInteraction failed: %v", err)
		}
	}

	got, err := st.RecentInteractions(ctx, 3)
	if err != nil {
		t.Fatalf("RecentInteractions failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 interactions, got %d", len(got))
	}
	for i, want := range []string{"int-4", "int-3", "int-2"} {
		if got[i].ID != want {
			t.Errorf("position %d: expected %s, got %s", i, want, got[i].ID)
		}
	}
}

// TestRelationshipUpsert checks create-then-replace semantics.
func (s *TestSuite) TestRelationshipUpsert(t *testing.T) {
	st := s.NewStore(t)
	defer st.Close()

	ctx := context.Background()

	rel := &RelationshipRecord{
		User:             "carol",
		Familiarity:      0.1,
		Sentiment:        0.0,
		InteractionCount: 1,
		LastSeen:         time.Now().UTC().Truncate(time.Millisecond),
	}
	if err := st.UpsertRelationship(ctx, rel); err != nil {
		t.Fatalf("UpsertRelationship failed: %v", err)
	}

	rel.Familiarity = 0.35
	rel.InteractionCount = 4
	if err := st.UpsertRelationship(ctx, rel); err != nil {
		t.Fatalf("second UpsertRelationship failed: %v", err)
	}

	all, err := st.Relationships(ctx)
	if err != nil {
		t.Fatalf("Relationships failed: %v", err)
	}
	got, ok := all["carol"]
	if !ok {
		t.Fatal("expected relationship for carol")
	}
	if got.Familiarity != 0.35 || got.InteractionCount != 4 {
		t.Errorf("upsert did not replace: got %+v", got)
	}
}

// TestTopicPreferencesRoundTrip checks topic map persistence.
func (s *TestSuite) TestTopicPreferencesRoundTrip(t *testing.T) {
	st := s.NewStore(t)
	defer st.Close()

	ctx := context.Background()

	prefs := map[string]float64{"ai": 0.8, "art": 0.45}
	if err := st.SaveTopicPreferences(ctx, prefs); err != nil {
		t.Fatalf("SaveTopicPreferences failed: %v", err)
	}

	got, err := st.TopicPreferences(ctx)
	if err != nil {
		t.Fatalf("TopicPreferences failed: %v", err)
	}
	if len(got) != 2 || got["ai"] != 0.8 || got["art"] != 0.45 {
		t.Errorf("round-trip mismatch: got %v", got)
	}
}

// TestExemplarsRoundTrip checks exemplar log persistence and order.
func (s *TestSuite) TestExemplarsRoundTrip(t *testing.T) {
	st := s.NewStore(t)
	defer st.Close()

	ctx := context.Background()

	recs := []*InteractionRecord{
		{ID: "ex-1", Type: "post", Content: "first", Timestamp: time.Now().UTC().Truncate(time.Millisecond), EngagementScore: 0.8},
		{ID: "ex-2", Type: "post", Content: "second", Timestamp: time.Now().UTC().Truncate(time.Millisecond), EngagementScore: 0.9},
	}
	if err := st.SaveExemplars(ctx, recs); err != nil {
		t.Fatalf("SaveExemplars failed: %v", err)
	}

	got, err := st.Exemplars(ctx)
	if err != nil {
		t.Fatalf("Exemplars failed: %v", err)
	}
	if len(got) != 2 || got[0].ID != "ex-1" || got[1].ID != "ex-2" {
		t.Errorf("round-trip mismatch: got %v", got)
	}
}

// TestEmptyStoreDefaults checks that a fresh store yields empty results,
// not errors.
func (s *TestSuite) TestEmptyStoreDefaults(t *testing.T) {
	st := s.NewStore(t)
	defer st.Close()

	ctx := context.Background()

	if got, err := st.RecentInteractions(ctx, 5); err != nil || len(got) != 0 {
		t.Errorf("expected empty interactions, got %v (err %v)", got, err)
	}
	if got, err := st.Relationships(ctx); err != nil || len(got) != 0 {
		t.Errorf("expected empty relationships, got %v (err %v)", got, err)
	}
	if got, err := st.TopicPreferences(ctx); err != nil || len(got) != 0 {
		t.Errorf("expected empty topic preferences, got %v (err %v)", got, err)
	}
	if got, err := st.Exemplars(ctx); err != nil || len(got) != 0 {
		t.Errorf("expected empty exemplars, got %v (err %v)", got, err)
	}
}

// TestConcurrentAccess checks basic write/read safety under concurrency.
func (s *TestSuite) TestConcurrentAccess(t *testing.T) {
	st := s.NewStore(t)
	defer st.Close()

	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			rec := &InteractionRecord{
				ID:        fmt.Sprintf("conc-%d", n),
				Type:      "message",
				User:      fmt.Sprintf("user-%d", n%3),
				Content:   "concurrent write",
				Timestamp: time.Now().UTC(),
			}
			if err := st.InsertInteraction(ctx, rec); err != nil {
				t.Errorf("concurrent InsertInteraction failed: %v", err)
			}
		}(i)
	}
	wg.Wait()

	got, err := st.RecentInteractions(ctx, 20)
	if err != nil {
		t.Fatalf("RecentInteractions failed: %v", err)
	}
	if len(got) != 10 {
		t.Errorf("expected 10 interactions, got %d", len(got))
	}
}

// Unavailable is a Store stub whose every operation fails with an
// UnavailableError. Used to exercise degraded-mode behavior.
type Unavailable struct{}

func (Unavailable) err() error {
	return &UnavailableError{Cause: fmt.Errorf("backend offline")}
}

func (u Unavailable) InsertInteraction(ctx context.Context, rec *InteractionRecord) error {
	return u.err()
}

func (u Unavailable) RecentInteractions(ctx context.Context, limit int) ([]*InteractionRecord, error) {
	return nil, u.err()
}

func (u Unavailable) UpsertRelationship(ctx context.Context, rec *RelationshipRecord) error {
	return u.err()
}

func (u Unavailable) Relationships(ctx context.Context) (map[string]*RelationshipRecord, error) {
	return nil, u.err()
}

func (u Unavailable) SaveTopicPreferences(ctx context.Context, prefs map[string]float64) error {
	return u.err()
}

func (u Unavailable) TopicPreferences(ctx context.Context) (map[string]float64, error) {
	return nil, u.err()
}

func (u Unavailable) SaveExemplars(ctx context.Context, recs []*InteractionRecord) error {
	return u.err()
}

func (u Unavailable) Exemplars(ctx context.Context) ([]*InteractionRecord, error) {
	return nil, u.err()
}

func (u Unavailable) Ping(ctx context.Context) error { return u.err() }

func (u Unavailable) Close() error { return nil }
