// Package memory implements the agent's memory: a bounded short-term buffer
// of recent interactions plus durable long-term relationship statistics,
// with write-through persistence and graceful degradation when the durable
// store is unavailable.
package memory

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/personacore/personacore/pkg/logger"
	"github.com/personacore/personacore/pkg/store"
)

const (
	// selfUser marks interactions originating from the agent itself;
	// they never produce a relationship entry.
	selfUser = "self"

	contentPreviewLen = 100
)

// Familiarity and sentiment update constants. Familiarity grows with
// diminishing returns; sentiment is an exponential moving average.
const (
	initialFamiliarity = 0.1
	familiarityStep    = 0.1
	sentimentSmoothing = 0.2
)

// Config holds memory configuration.
type Config struct {
	// Capacity bounds the short-term buffer; oldest entries evict first.
	Capacity int

	// DecayRate controls how fast short-term relevance shrinks with age.
	DecayRate float64

	// WriteTimeout bounds each durable-store write.
	WriteTimeout time.Duration

	Tuning Tuning
}

// Tuning bounds the memory context summary.
type Tuning struct {
	ContextRecent        int
	ContextRelationships int
	ContextTopics        int

	// CurrentBoost is added to the ranking score of relationships and
	// topics tied to the current exchange.
	CurrentBoost float64
}

// DefaultTuning returns the tuning used when none is configured.
func DefaultTuning() Tuning {
	return Tuning{
		ContextRecent:        5,
		ContextRelationships: 3,
		ContextTopics:        5,
		CurrentBoost:         0.25,
	}
}

// StoreResult reports the outcome of a mutating memory operation.
type StoreResult struct {
	// Degraded is true when the durable store was unreachable and the
	// write was held in memory only.
	Degraded bool
}

// ContextQuery describes the current exchange for memory-context ranking.
type ContextQuery struct {
	// User is the counterparty of the current exchange, if any.
	User string

	// Topics are the topics of the current exchange.
	Topics []string

	// TopicScores is the learned topic-preference snapshot used to rank
	// interests. It is read-only to the memory store.
	TopicScores map[string]float64
}

// RecentEntry is one short-term interaction in the memory context.
type RecentEntry struct {
	Type      string  `json:"type"`
	User      string  `json:"user"`
	Content   string  `json:"content"`
	Relevance float64 `json:"relevance"`
}

// RelationshipSummary is one ranked relationship in the memory context.
type RelationshipSummary struct {
	User             string  `json:"user"`
	Familiarity      float64 `json:"familiarity"`
	Sentiment        float64 `json:"sentiment"`
	InteractionCount int     `json:"interaction_count"`
}

// TopicInterest is one ranked topic in the memory context.
type TopicInterest struct {
	Topic string  `json:"topic"`
	Score float64 `json:"score"`
}

// Context is the bounded, ordered memory summary handed to the prompt layer.
type Context struct {
	Recent        []RecentEntry         `json:"recent"`
	Relationships []RelationshipSummary `json:"relationships"`
	Interests     []TopicInterest       `json:"interests"`
}

// Store is the memory system. Mutating methods serialize through an internal
// mutex; read-only queries may run concurrently.
type Store struct {
	mu sync.RWMutex

	capacity     int
	decayRate    float64
	writeTimeout time.Duration
	tuning       Tuning

	shortTerm     []*store.InteractionRecord
	relationships map[string]*store.RelationshipRecord

	// pending holds interactions accepted while the durable store was
	// unreachable, flushed on the next successful Persist.
	pending  []*store.InteractionRecord
	degraded bool

	backend store.Store
	log     logger.Logger
	now     func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source, used in tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// NewStore creates a memory store backed by the given durable store.
func NewStore(cfg Config, backend store.Store, log logger.Logger, opts ...Option) *Store {
	if log == nil {
		log = logger.Global()
	}

	capacity := cfg.Capacity
	if capacity <= 0 {
		capacity = 20
	}
	decayRate := cfg.DecayRate
	if decayRate <= 0 || decayRate >= 1 {
		decayRate = 0.2
	}
	writeTimeout := cfg.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = 2 * time.Second
	}
	tuning := cfg.Tuning
	if tuning.ContextRecent <= 0 {
		tuning = DefaultTuning()
	}

	s := &Store{
		capacity:      capacity,
		decayRate:     decayRate,
		writeTimeout:  writeTimeout,
		tuning:        tuning,
		relationships: make(map[string]*store.RelationshipRecord),
		backend:       backend,
		log:           log,
		now:           time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	s.log.Debug("Memory store initialized",
		"capacity", s.capacity,
		"decay_rate", s.decayRate)

	return s
}

// Degraded reports whether the store is operating without durable
// persistence.
func (s *Store) Degraded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.degraded
}

// StoreInteraction appends an interaction to short-term memory, updates the
// counterparty relationship, and writes through to the durable store.
//
// The durable write runs first so a hard failure leaves memory untouched.
// An unavailable store is not a hard failure: the interaction commits in
// memory, the result is marked degraded, and the write is retried by the
// next Persist.
func (s *Store) StoreInteraction(ctx context.Context, rec *store.InteractionRecord) (StoreResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.Timestamp.IsZero() {
		rec.Timestamp = s.now()
	}

	updatedRel := s.nextRelationship(rec)

	wctx, cancel := context.WithTimeout(ctx, s.writeTimeout)
	defer cancel()

	var unavailable bool
	if err := s.backend.InsertInteraction(wctx, rec); err != nil {
		if !store.IsUnavailable(err) {
			return StoreResult{}, err
		}
		unavailable = true
	}
	if !unavailable && updatedRel != nil {
		if err := s.backend.UpsertRelationship(wctx, updatedRel); err != nil {
			if !store.IsUnavailable(err) {
				// The interaction row is already durable and stays as an
				// orphan; a compensating delete could itself fail. Memory
				// is left untouched so in-memory state and relationship
				// stats stay mutually consistent, and the caller may
				// retry with the same ID.
				return StoreResult{}, err
			}
			unavailable = true
		}
	}

	// Commit to memory. On an unavailable store the interaction is kept
	// pending so Persist can replay it.
	s.shortTerm = append(s.shortTerm, rec)
	if len(s.shortTerm) > s.capacity {
		s.shortTerm = s.shortTerm[len(s.shortTerm)-s.capacity:]
	}
	if updatedRel != nil {
		s.relationships[updatedRel.User] = updatedRel
	}

	if unavailable {
		if !s.degraded {
			s.log.Warn("Durable store unavailable, continuing in memory only")
		}
		s.degraded = true
		s.pending = append(s.pending, rec)
		return StoreResult{Degraded: true}, nil
	}

	s.log.Debug("Stored interaction",
		"type", rec.Type,
		"user", rec.User)

	return StoreResult{}, nil
}

// nextRelationship computes the post-interaction relationship record without
// mutating current state. Returns nil for self-interactions. Caller holds
// the lock.
func (s *Store) nextRelationship(rec *store.InteractionRecord) *store.RelationshipRecord {
	if rec.User == "" || rec.User == selfUser {
		return nil
	}

	prev, ok := s.relationships[rec.User]
	next := &store.RelationshipRecord{
		User:        rec.User,
		Familiarity: initialFamiliarity,
		LastSeen:    rec.Timestamp,
	}
	if ok {
		*next = *prev
		next.LastSeen = rec.Timestamp
	}

	step := familiarityStep / (1 + float64(next.InteractionCount)*0.1)
	next.Familiarity = math.Min(1.0, next.Familiarity+step)

	if rec.Sentiment != 0 {
		next.Sentiment = next.Sentiment*(1-sentimentSmoothing) + rec.Sentiment*sentimentSmoothing
	}

	next.InteractionCount++
	return next
}

// RecentInteractions returns up to limit short-term entries, most recent
// first. It never touches the durable store.
func (s *Store) RecentInteractions(limit int) []*store.InteractionRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := len(s.shortTerm)
	if limit <= 0 || limit > n {
		limit = n
	}

	out := make([]*store.InteractionRecord, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		cp := *s.shortTerm[i]
		out = append(out, &cp)
	}
	return out
}

// Relationship returns the relationship record for a user, or nil.
func (s *Store) Relationship(user string) *store.RelationshipRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.relationships[user]
	if !ok {
		return nil
	}
	cp := *rec
	return &cp
}

// MemoryContext builds a bounded, ordered summary of memory relevant to the
// current exchange.
//
// Ranking is deterministic: short-term entries carry a recency weight
// (1-decay_rate)^distance-from-newest; relationships rank by familiarity
// and topics by learned score, each boosted by a fixed amount when tied to
// the current exchange. Ties resolve lexicographically.
func (s *Store) MemoryContext(q ContextQuery) Context {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ctx Context

	n := len(s.shortTerm)
	limit := s.tuning.ContextRecent
	if limit > n {
		limit = n
	}
	for i := n - 1; i >= n-limit; i-- {
		rec := s.shortTerm[i]
		distance := n - 1 - i
		ctx.Recent = append(ctx.Recent, RecentEntry{
			Type:      rec.Type,
			User:      rec.User,
			Content:   truncate(rec.Content, contentPreviewLen),
			Relevance: math.Pow(1-s.decayRate, float64(distance)),
		})
	}

	currentTopics := make(map[string]bool, len(q.Topics))
	for _, t := range q.Topics {
		currentTopics[t] = true
	}

	type rankedRel struct {
		rec  *store.RelationshipRecord
		rank float64
	}
	rels := make([]rankedRel, 0, len(s.relationships))
	for _, rec := range s.relationships {
		rank := rec.Familiarity
		if rec.User == q.User {
			rank += s.tuning.CurrentBoost
		}
		rels = append(rels, rankedRel{rec: rec, rank: rank})
	}
	sort.Slice(rels, func(i, j int) bool {
		if rels[i].rank != rels[j].rank {
			return rels[i].rank > rels[j].rank
		}
		return rels[i].rec.User < rels[j].rec.User
	})
	if len(rels) > s.tuning.ContextRelationships {
		rels = rels[:s.tuning.ContextRelationships]
	}
	for _, r := range rels {
		ctx.Relationships = append(ctx.Relationships, RelationshipSummary{
			User:             r.rec.User,
			Familiarity:      r.rec.Familiarity,
			Sentiment:        r.rec.Sentiment,
			InteractionCount: r.rec.InteractionCount,
		})
	}

	type rankedTopic struct {
		topic string
		score float64
		rank  float64
	}
	topics := make([]rankedTopic, 0, len(q.TopicScores))
	for topic, score := range q.TopicScores {
		rank := score
		if currentTopics[topic] {
			rank += s.tuning.CurrentBoost
		}
		topics = append(topics, rankedTopic{topic: topic, score: score, rank: rank})
	}
	sort.Slice(topics, func(i, j int) bool {
		if topics[i].rank != topics[j].rank {
			return topics[i].rank > topics[j].rank
		}
		return topics[i].topic < topics[j].topic
	})
	if len(topics) > s.tuning.ContextTopics {
		topics = topics[:s.tuning.ContextTopics]
	}
	for _, t := range topics {
		ctx.Interests = append(ctx.Interests, TopicInterest{
			Topic: t.topic,
			Score: t.score,
		})
	}

	return ctx
}

// Load reads long-term state from the durable store. An unreachable store
// yields empty defaults and degraded mode rather than an error.
func (s *Store) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rels, err := s.backend.Relationships(ctx)
	if err != nil {
		if store.IsUnavailable(err) {
			s.log.Warn("Durable store unavailable on load, starting empty", "error", err)
			s.degraded = true
			return nil
		}
		return err
	}

	s.relationships = rels
	if s.relationships == nil {
		s.relationships = make(map[string]*store.RelationshipRecord)
	}

	recent, err := s.backend.RecentInteractions(ctx, s.capacity)
	if err != nil {
		if store.IsUnavailable(err) {
			s.log.Warn("Durable store unavailable reading interactions", "error", err)
			s.degraded = true
			return nil
		}
		return err
	}

	// RecentInteractions is newest-first; short-term is oldest-first.
	s.shortTerm = s.shortTerm[:0]
	for i := len(recent) - 1; i >= 0; i-- {
		s.shortTerm = append(s.shortTerm, recent[i])
	}

	s.degraded = false
	s.log.Info("Memory loaded",
		"relationships", len(s.relationships),
		"short_term", len(s.shortTerm))

	return nil
}

// Persist writes all long-term state and any pending interactions to the
// durable store. A successful run clears degraded mode.
func (s *Store) Persist(ctx context.Context) (StoreResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	wctx, cancel := context.WithTimeout(ctx, s.writeTimeout)
	defer cancel()

	for i, rec := range s.pending {
		if err := s.backend.InsertInteraction(wctx, rec); err != nil {
			if store.IsUnavailable(err) {
				s.pending = s.pending[i:]
				s.degraded = true
				return StoreResult{Degraded: true}, nil
			}
			return StoreResult{}, err
		}
	}
	s.pending = nil

	for _, rec := range s.relationships {
		if err := s.backend.UpsertRelationship(wctx, rec); err != nil {
			if store.IsUnavailable(err) {
				s.degraded = true
				return StoreResult{Degraded: true}, nil
			}
			return StoreResult{}, err
		}
	}

	if s.degraded {
		s.log.Info("Durable store recovered")
	}
	s.degraded = false
	return StoreResult{}, nil
}

// truncate cuts s to at most n bytes without splitting a UTF-8 rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
