// Package memory provides an in-memory implementation of the store interface,
// used for tests and for running without durable persistence.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/personacore/personacore/pkg/store"
)

// MemoryStore implements store.Store with plain in-process maps.
type MemoryStore struct {
	mu            sync.RWMutex
	interactions  []*store.InteractionRecord
	relationships map[string]*store.RelationshipRecord
	topics        map[string]float64
	exemplars     []*store.InteractionRecord
	closed        bool
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		relationships: make(map[string]*store.RelationshipRecord),
		topics:        make(map[string]float64),
	}
}

// InsertInteraction appends an interaction to the log.
func (m *MemoryStore) InsertInteraction(ctx context.Context, rec *store.InteractionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *rec
	m.interactions = append(m.interactions, &cp)
	return nil
}

// RecentInteractions returns up to limit interactions, newest first.
func (m *MemoryStore) RecentInteractions(ctx context.Context, limit int) ([]*store.InteractionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sorted := make([]*store.InteractionRecord, len(m.interactions))
	copy(sorted, m.interactions)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.After(sorted[j].Timestamp)
	})

	if limit > 0 && limit < len(sorted) {
		sorted = sorted[:limit]
	}

	out := make([]*store.InteractionRecord, len(sorted))
	for i, rec := range sorted {
		cp := *rec
		out[i] = &cp
	}
	return out, nil
}

// UpsertRelationship creates or replaces the relationship record for a user.
func (m *MemoryStore) UpsertRelationship(ctx context.Context, rec *store.RelationshipRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *rec
	m.relationships[rec.User] = &cp
	return nil
}

// Relationships returns a copy of all relationship records.
func (m *MemoryStore) Relationships(ctx context.Context) (map[string]*store.RelationshipRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]*store.RelationshipRecord, len(m.relationships))
	for user, rec := range m.relationships {
		cp := *rec
		out[user] = &cp
	}
	return out, nil
}

// SaveTopicPreferences replaces the stored topic preference map.
func (m *MemoryStore) SaveTopicPreferences(ctx context.Context, prefs map[string]float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.topics = make(map[string]float64, len(prefs))
	for topic, score := range prefs {
		m.topics[topic] = score
	}
	return nil
}

// TopicPreferences returns a copy of the stored topic preference map.
func (m *MemoryStore) TopicPreferences(ctx context.Context) (map[string]float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]float64, len(m.topics))
	for topic, score := range m.topics {
		out[topic] = score
	}
	return out, nil
}

// SaveExemplars replaces the stored successful-interaction log.
func (m *MemoryStore) SaveExemplars(ctx context.Context, recs []*store.InteractionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.exemplars = make([]*store.InteractionRecord, len(recs))
	for i, rec := range recs {
		cp := *rec
		m.exemplars[i] = &cp
	}
	return nil
}

// Exemplars returns a copy of the stored successful-interaction log.
func (m *MemoryStore) Exemplars(ctx context.Context) ([]*store.InteractionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*store.InteractionRecord, len(m.exemplars))
	for i, rec := range m.exemplars {
		cp := *rec
		out[i] = &cp
	}
	return out, nil
}

// Ping always succeeds for the in-memory store.
func (m *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

// Close marks the store closed.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
