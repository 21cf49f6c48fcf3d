package memory

import (
	"context"
	"fmt"
	"math"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/personacore/personacore/pkg/logger"
	"github.com/personacore/personacore/pkg/store"
	memstore "github.com/personacore/personacore/pkg/store/memory"
)

func newTestStore(t *testing.T) (*Store, *memstore.MemoryStore) {
	backend := memstore.NewMemoryStore()
	s := NewStore(Config{
		Capacity:     20,
		DecayRate:    0.2,
		WriteTimeout: time.Second,
	}, backend, logger.Global())
	return s, backend
}

func interaction(id, user, content string, ts time.Time) *store.InteractionRecord {
	return &store.InteractionRecord{
		ID:        id,
		Type:      "message",
		User:      user,
		Content:   content,
		Timestamp: ts,
	}
}

func TestStore_CapacityEviction(t *testing.T) {
	backend := memstore.NewMemoryStore()
	s := NewStore(Config{Capacity: 2, DecayRate: 0.2}, backend, logger.Global())

	ctx := context.Background()
	base := time.Now()

	for i, id := range []string{"A", "B", "C"} {
		if _, err := s.StoreInteraction(ctx, interaction(id, "alice", "hi", base.Add(time.Duration(i)*time.Second))); err != nil {
			t.Fatalf("StoreInteraction(%s) failed: %v", id, err)
		}
	}

	recent := s.RecentInteractions(10)
	if len(recent) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(recent))
	}
	if recent[0].ID != "C" || recent[1].ID != "B" {
		t.Errorf("Expected [C B], got [%s %s]", recent[0].ID, recent[1].ID)
	}
}

func TestStore_CapacityNeverExceeded(t *testing.T) {
	backend := memstore.NewMemoryStore()
	s := NewStore(Config{Capacity: 5, DecayRate: 0.2}, backend, logger.Global())

	ctx := context.Background()
	for i := 0; i < 23; i++ {
		rec := interaction(fmt.Sprintf("i-%d", i), "bob", "x", time.Now())
		if _, err := s.StoreInteraction(ctx, rec); err != nil {
			t.Fatalf("StoreInteraction failed: %v", err)
		}
		if got := len(s.RecentInteractions(0)); got > 5 {
			t.Fatalf("Short-term memory exceeded capacity: %d", got)
		}
	}

	// The surviving set is exactly the last 5 inserted.
	recent := s.RecentInteractions(0)
	for i, rec := range recent {
		want := fmt.Sprintf("i-%d", 22-i)
		if rec.ID != want {
			t.Errorf("Entry %d: expected %s, got %s", i, want, rec.ID)
		}
	}
}

func TestStore_RelationshipUpdates(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	rec := interaction("i-1", "alice", "hello", time.Now())
	rec.Sentiment = 0.5
	if _, err := s.StoreInteraction(ctx, rec); err != nil {
		t.Fatalf("StoreInteraction failed: %v", err)
	}

	rel := s.Relationship("alice")
	if rel == nil {
		t.Fatal("Expected relationship for alice")
	}
	// First interaction: familiarity 0.1 + 0.1/(1+0) = 0.2.
	if math.Abs(rel.Familiarity-0.2) > 1e-9 {
		t.Errorf("Expected familiarity 0.2, got %v", rel.Familiarity)
	}
	// Sentiment EMA from 0: 0*0.8 + 0.5*0.2 = 0.1.
	if math.Abs(rel.Sentiment-0.1) > 1e-9 {
		t.Errorf("Expected sentiment 0.1, got %v", rel.Sentiment)
	}
	if rel.InteractionCount != 1 {
		t.Errorf("Expected count 1, got %d", rel.InteractionCount)
	}
}

func TestStore_FamiliaritySaturates(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	prev := 0.0
	for i := 0; i < 200; i++ {
		rec := interaction(fmt.Sprintf("i-%d", i), "carol", "hello", time.Now())
		if _, err := s.StoreInteraction(ctx, rec); err != nil {
			t.Fatalf("StoreInteraction failed: %v", err)
		}
		fam := s.Relationship("carol").Familiarity
		if fam < prev {
			t.Fatalf("Familiarity decreased from %v to %v", prev, fam)
		}
		if fam > 1.0 {
			t.Fatalf("Familiarity exceeded 1: %v", fam)
		}
		prev = fam
	}
}

func TestStore_SelfInteractionSkipsRelationship(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	if _, err := s.StoreInteraction(ctx, interaction("i-1", "self", "note", time.Now())); err != nil {
		t.Fatalf("StoreInteraction failed: %v", err)
	}

	if rel := s.Relationship("self"); rel != nil {
		t.Errorf("Expected no relationship for self, got %+v", rel)
	}
	// The interaction itself is still remembered.
	if got := len(s.RecentInteractions(0)); got != 1 {
		t.Errorf("Expected 1 short-term entry, got %d", got)
	}
}

func TestStore_RoundTrip(t *testing.T) {
	backend := memstore.NewMemoryStore()
	ctx := context.Background()

	s1 := NewStore(Config{Capacity: 20, DecayRate: 0.2}, backend, logger.Global())
	for i := 0; i < 3; i++ {
		rec := interaction(fmt.Sprintf("i-%d", i), "dave", "hi there", time.Now().Add(time.Duration(i)*time.Second))
		rec.Sentiment = 0.3
		if _, err := s1.StoreInteraction(ctx, rec); err != nil {
			t.Fatalf("StoreInteraction failed: %v", err)
		}
	}
	if _, err := s1.Persist(ctx); err != nil {
		t.Fatalf("Persist failed: %v", err)
	}
	want := s1.Relationship("dave")

	s2 := NewStore(Config{Capacity: 20, DecayRate: 0.2}, backend, logger.Global())
	if err := s2.Load(ctx); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	got := s2.Relationship("dave")
	if got == nil {
		t.Fatal("Expected relationship after reload")
	}
	if got.Familiarity != want.Familiarity || got.Sentiment != want.Sentiment || got.InteractionCount != want.InteractionCount {
		t.Errorf("Relationship mismatch: got %+v, want %+v", got, want)
	}

	if got := len(s2.RecentInteractions(0)); got != 3 {
		t.Errorf("Expected 3 short-term entries after reload, got %d", got)
	}
}

func TestStore_LoadEmptyStoreYieldsDefaults(t *testing.T) {
	s, _ := newTestStore(t)

	if err := s.Load(context.Background()); err != nil {
		t.Fatalf("Load on empty store failed: %v", err)
	}
	if got := len(s.RecentInteractions(0)); got != 0 {
		t.Errorf("Expected empty short-term memory, got %d entries", got)
	}
	if s.Degraded() {
		t.Error("Expected non-degraded after load of empty store")
	}
}

func TestStore_DegradedMode(t *testing.T) {
	backend := &store.Unavailable{}
	s := NewStore(Config{Capacity: 5, DecayRate: 0.2, WriteTimeout: 100 * time.Millisecond}, backend, logger.Global())

	ctx := context.Background()
	res, err := s.StoreInteraction(ctx, interaction("i-1", "erin", "hello", time.Now()))
	if err != nil {
		t.Fatalf("StoreInteraction should degrade, not fail: %v", err)
	}
	if !res.Degraded {
		t.Error("Expected degraded result")
	}
	if !s.Degraded() {
		t.Error("Expected store in degraded mode")
	}

	// Memory still works.
	if got := len(s.RecentInteractions(0)); got != 1 {
		t.Errorf("Expected 1 entry in memory, got %d", got)
	}
	if s.Relationship("erin") == nil {
		t.Error("Expected in-memory relationship despite degraded store")
	}

	res, err = s.Persist(ctx)
	if err != nil {
		t.Fatalf("Persist should degrade, not fail: %v", err)
	}
	if !res.Degraded {
		t.Error("Expected degraded persist result")
	}
}

func TestStore_RecoveryFlushesPending(t *testing.T) {
	backend := memstore.NewMemoryStore()
	flaky := &flakyStore{inner: backend, unavailable: true}
	s := NewStore(Config{Capacity: 5, DecayRate: 0.2}, flaky, logger.Global())

	ctx := context.Background()
	if _, err := s.StoreInteraction(ctx, interaction("i-1", "frank", "hi", time.Now())); err != nil {
		t.Fatalf("StoreInteraction failed: %v", err)
	}
	if !s.Degraded() {
		t.Fatal("Expected degraded mode")
	}

	flaky.unavailable = false
	res, err := s.Persist(ctx)
	if err != nil {
		t.Fatalf("Persist failed: %v", err)
	}
	if res.Degraded {
		t.Error("Expected recovery")
	}
	if s.Degraded() {
		t.Error("Expected degraded mode cleared")
	}

	recs, err := backend.RecentInteractions(ctx, 10)
	if err != nil {
		t.Fatalf("RecentInteractions failed: %v", err)
	}
	if len(recs) != 1 || recs[0].ID != "i-1" {
		t.Errorf("Expected pending interaction flushed, got %v", recs)
	}
}

func TestStore_MemoryContext(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	base := time.Now()
	users := []string{"alice", "bob", "alice", "carol"}
	for i, user := range users {
		rec := interaction(fmt.Sprintf("i-%d", i), user, "talking about ai and design", base.Add(time.Duration(i)*time.Second))
		if _, err := s.StoreInteraction(ctx, rec); err != nil {
			t.Fatalf("StoreInteraction failed: %v", err)
		}
	}

	mc := s.MemoryContext(ContextQuery{
		User:   "bob",
		Topics: []string{"ai"},
		TopicScores: map[string]float64{
			"ai":     0.4,
			"art":    0.9,
			"design": 0.3,
		},
	})

	if len(mc.Recent) != 4 {
		t.Fatalf("Expected 4 recent entries, got %d", len(mc.Recent))
	}
	// Newest first with monotonically shrinking relevance.
	if mc.Recent[0].User != "carol" {
		t.Errorf("Expected newest entry first, got %s", mc.Recent[0].User)
	}
	for i := 1; i < len(mc.Recent); i++ {
		if mc.Recent[i].Relevance >= mc.Recent[i-1].Relevance {
			t.Errorf("Relevance not decreasing at %d: %v >= %v", i, mc.Recent[i].Relevance, mc.Recent[i-1].Relevance)
		}
	}

	if len(mc.Relationships) != 3 {
		t.Fatalf("Expected 3 relationships, got %d", len(mc.Relationships))
	}
	// Bob is the current counterparty: 0.2 familiarity + 0.25 boost puts
	// him above alice, whose two interactions give ~0.29. Carol trails.
	if mc.Relationships[0].User != "bob" {
		t.Errorf("Expected bob first (current-user boost), got %s", mc.Relationships[0].User)
	}
	if mc.Relationships[1].User != "alice" {
		t.Errorf("Expected alice second, got %s", mc.Relationships[1].User)
	}
	if mc.Relationships[2].User != "carol" {
		t.Errorf("Expected carol third, got %s", mc.Relationships[2].User)
	}

	// art has the top raw score, but ai gets the current-topic boost:
	// 0.4+0.25 < 0.9, so art still leads; ai beats design.
	if len(mc.Interests) != 3 {
		t.Fatalf("Expected 3 interests, got %d", len(mc.Interests))
	}
	if mc.Interests[0].Topic != "art" || mc.Interests[1].Topic != "ai" {
		t.Errorf("Unexpected interest order: %v", mc.Interests)
	}
}

func TestStore_ContentTruncatedInContext(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	long := make([]byte, 300)
	for i := range long {
		long[i] = 'x'
	}
	if _, err := s.StoreInteraction(ctx, interaction("i-1", "gail", string(long), time.Now())); err != nil {
		t.Fatalf("StoreInteraction failed: %v", err)
	}

	mc := s.MemoryContext(ContextQuery{})
	if len(mc.Recent) != 1 {
		t.Fatalf("Expected 1 recent entry, got %d", len(mc.Recent))
	}
	if got := len(mc.Recent[0].Content); got != contentPreviewLen+3 {
		t.Errorf("Expected truncated content of %d chars, got %d", contentPreviewLen+3, got)
	}
}

// relFailStore lets the interaction insert through and then fails the
// relationship upsert with a hard (non-unavailable) error.
type relFailStore struct {
	store.Store
}

func (f *relFailStore) UpsertRelationship(context.Context, *store.RelationshipRecord) error {
	return &store.SerializationError{Operation: "upsert_relationship", Cause: fmt.Errorf("bad record")}
}

func TestStore_HardRelationshipFailureLeavesMemoryUntouched(t *testing.T) {
	backend := &relFailStore{Store: memstore.NewMemoryStore()}
	s := NewStore(Config{
		Capacity:     20,
		DecayRate:    0.2,
		WriteTimeout: time.Second,
	}, backend, logger.Global())
	ctx := context.Background()

	_, err := s.StoreInteraction(ctx, interaction("i-1", "alice", "hello", time.Now()))
	if err == nil {
		t.Fatal("Expected a hard error from the relationship write")
	}
	if s.Degraded() {
		t.Error("Hard failures must not flip degraded mode")
	}

	// In-memory state is unchanged; the durable interaction row is a
	// tolerated orphan, so only memory-side emptiness is asserted.
	mc := s.MemoryContext(ContextQuery{})
	if len(mc.Recent) != 0 {
		t.Errorf("Expected empty short-term buffer, got %d entries", len(mc.Recent))
	}
	if len(mc.Relationships) != 0 {
		t.Errorf("Expected no relationships, got %d", len(mc.Relationships))
	}
}

func TestTruncate_RuneBoundary(t *testing.T) {
	// 3-byte runes: byte 100 lands mid-rune, so the cut backs off to 99.
	long := strings.Repeat("世", 50)
	got := truncate(long, contentPreviewLen)
	if !utf8.ValidString(got) {
		t.Fatalf("Truncated preview is not valid UTF-8: %q", got)
	}
	if want := strings.Repeat("世", 33) + "..."; got != want {
		t.Errorf("Expected %d-byte preview, got %d bytes", len(want), len(got))
	}

	if got := truncate("short", contentPreviewLen); got != "short" {
		t.Errorf("Short content must pass through, got %q", got)
	}
}

// flakyStore wraps a store and fails with UnavailableError while the
// unavailable flag is set.
type flakyStore struct {
	inner       store.Store
	unavailable bool
}

func (f *flakyStore) err() error {
	return &store.UnavailableError{Cause: fmt.Errorf("store offline")}
}

func (f *flakyStore) InsertInteraction(ctx context.Context, rec *store.InteractionRecord) error {
	if f.unavailable {
		return f.err()
	}
	return f.inner.InsertInteraction(ctx, rec)
}

func (f *flakyStore) RecentInteractions(ctx context.Context, limit int) ([]*store.InteractionRecord, error) {
	if f.unavailable {
		return nil, f.err()
	}
	return f.inner.RecentInteractions(ctx, limit)
}

func (f *flakyStore) UpsertRelationship(ctx context.Context, rec *store.RelationshipRecord) error {
	if f.unavailable {
		return f.err()
	}
	return f.inner.UpsertRelationship(ctx, rec)
}

func (f *flakyStore) Relationships(ctx context.Context) (map[string]*store.RelationshipRecord, error) {
	if f.unavailable {
		return nil, f.err()
	}
	return f.inner.Relationships(ctx)
}

func (f *flakyStore) SaveTopicPreferences(ctx context.Context, prefs map[string]float64) error {
	if f.unavailable {
		return f.err()
	}
	return f.inner.SaveTopicPreferences(ctx, prefs)
}

func (f *flakyStore) TopicPreferences(ctx context.Context) (map[string]float64, error) {
	if f.unavailable {
		return nil, f.err()
	}
	return f.inner.TopicPreferences(ctx)
}

func (f *flakyStore) SaveExemplars(ctx context.Context, recs []*store.InteractionRecord) error {
	if f.unavailable {
		return f.err()
	}
	return f.inner.SaveExemplars(ctx, recs)
}

func (f *flakyStore) Exemplars(ctx context.Context) ([]*store.InteractionRecord, error) {
	if f.unavailable {
		return nil, f.err()
	}
	return f.inner.Exemplars(ctx)
}

func (f *flakyStore) Ping(ctx context.Context) error {
	if f.unavailable {
		return f.err()
	}
	return f.inner.Ping(ctx)
}

func (f *flakyStore) Close() error {
	return f.inner.Close()
}
