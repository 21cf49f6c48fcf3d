package badger

import (
	"context"
	"testing"
	"time"

	"github.com/personacore/personacore/pkg/store"
)

// TestBadgerStoreSuite runs the full store test suite against BadgerStore.
func TestBadgerStoreSuite(t *testing.T) {
	suite := &store.TestSuite{
		NewStore: func(t *testing.T) store.Store {
			config := &Config{
				Path:             t.TempDir(),
				SyncWrites:       false,
				ValueLogFileSize: 1 << 20,
			}

			db, err := NewBadgerStore(config)
			if err != nil {
				t.Fatalf("Failed to create BadgerStore: %v", err)
			}

			return db
		},
	}

	suite.RunAllTests(t)
}

func setupTestDB(t *testing.T) (*BadgerStore, func()) {
	config := &Config{
		Path:             t.TempDir(),
		SyncWrites:       false,   // Faster for tests
		ValueLogFileSize: 1 << 20, // 1MB
	}

	db, err := NewBadgerStore(config)
	if err != nil {
		t.Fatalf("Failed to create BadgerStore: %v", err)
	}

	cleanup := func() {
		db.Close()
	}

	return db, cleanup
}

func TestBadgerStore_ReopenKeepsData(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	config := &Config{Path: dir, ValueLogFileSize: 1 << 20}
	db, err := NewBadgerStore(config)
	if err != nil {
		t.Fatalf("Failed to create BadgerStore: %v", err)
	}

	rec := &store.InteractionRecord{
		ID:        "i-1",
		Type:      "content",
		User:      "alice",
		Content:   "hello there",
		Timestamp: time.Now(),
		Sentiment: 0.4,
	}
	if err := db.InsertInteraction(ctx, rec); err != nil {
		t.Fatalf("InsertInteraction failed: %v", err)
	}
	if err := db.SaveTopicPreferences(ctx, map[string]float64{"music": 0.7}); err != nil {
		t.Fatalf("SaveTopicPreferences failed: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	db, err = NewBadgerStore(config)
	if err != nil {
		t.Fatalf("Failed to reopen BadgerStore: %v", err)
	}
	defer db.Close()

	recs, err := db.RecentInteractions(ctx, 10)
	if err != nil {
		t.Fatalf("RecentInteractions failed: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("Expected 1 interaction after reopen, got %d", len(recs))
	}
	if recs[0].ID != "i-1" || recs[0].User != "alice" {
		t.Errorf("Unexpected record after reopen: %+v", recs[0])
	}

	prefs, err := db.TopicPreferences(ctx)
	if err != nil {
		t.Fatalf("TopicPreferences failed: %v", err)
	}
	if prefs["music"] != 0.7 {
		t.Errorf("Expected music=0.7 after reopen, got %v", prefs["music"])
	}
}

func TestBadgerStore_RecentInteractionsOrder(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	base := time.Now().Add(-time.Minute)

	for i := 0; i < 5; i++ {
		rec := &store.InteractionRecord{
			ID:        string(rune('a' + i)),
			Type:      "content",
			User:      "bob",
			Timestamp: base.Add(time.Duration(i) * time.Second),
		}
		if err := db.InsertInteraction(ctx, rec); err != nil {
			t.Fatalf("InsertInteraction failed: %v", err)
		}
	}

	recs, err := db.RecentInteractions(ctx, 3)
	if err != nil {
		t.Fatalf("RecentInteractions failed: %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("Expected 3 records, got %d", len(recs))
	}
	// Newest first: e, d, c
	if recs[0].ID != "e" || recs[1].ID != "d" || recs[2].ID != "c" {
		t.Errorf("Unexpected order: %s %s %s", recs[0].ID, recs[1].ID, recs[2].ID)
	}
}

func TestBadgerStore_OpenFailureIsUnavailable(t *testing.T) {
	// A file at the store path makes badger.Open fail.
	config := &Config{Path: "/dev/null"}
	_, err := NewBadgerStore(config)
	if err == nil {
		t.Fatal("Expected error opening store at /dev/null")
	}
	if !store.IsUnavailable(err) {
		t.Errorf("Expected UnavailableError, got %T", err)
	}
}
