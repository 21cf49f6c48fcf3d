// Package personality composes the emotion engine, memory store, and
// learning system into a single owned aggregate. One System exists per
// agent; mutating operations serialize, read-only queries run concurrently.
package personality

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/personacore/personacore/config"
	"github.com/personacore/personacore/pkg/emotion"
	"github.com/personacore/personacore/pkg/learning"
	"github.com/personacore/personacore/pkg/logger"
	"github.com/personacore/personacore/pkg/memory"
	"github.com/personacore/personacore/pkg/store"
)

// ContentItem is one piece of incoming content.
type ContentItem struct {
	ID   string `json:"id"`
	User string `json:"user"`
	Text string `json:"text"`

	// Sentiment is an optional per-item sentiment signal in [-1,1],
	// supplied by the host when it has one.
	Sentiment float64 `json:"sentiment,omitempty"`
}

// ProcessResult reports the outcome of processing a batch of content.
type ProcessResult struct {
	Processed int  `json:"processed"`
	Degraded  bool `json:"degraded"`
}

// DecisionContext is the read-only snapshot handed to the prompt layer.
type DecisionContext struct {
	Emotion   emotion.Influence `json:"emotion"`
	Memory    memory.Context    `json:"memory"`
	Learning  learning.Insights `json:"learning"`
	Name      string            `json:"name"`
	Bio       string            `json:"bio"`
	Timestamp time.Time         `json:"timestamp"`
}

// SaveReport describes the outcome of SaveState. Memory persistence and
// personality-document save fail independently so the caller can retry just
// the failed half.
type SaveReport struct {
	MemoryDegraded bool  `json:"memory_degraded"`
	MemoryErr      error `json:"-"`
	PersonalityErr error `json:"-"`
}

// Success reports whether both halves fully succeeded.
func (r SaveReport) Success() bool {
	return r.MemoryErr == nil && r.PersonalityErr == nil && !r.MemoryDegraded
}

// System is the personality orchestrator.
type System struct {
	mu sync.RWMutex

	doc      *config.Document
	emotion  *emotion.Engine
	memory   *memory.Store
	learning *learning.System
	log      logger.Logger
	rec      Recorder
	now      func() time.Time
}

// Option configures a System.
type Option func(*System)

// WithClock overrides the time source, used in tests.
func WithClock(now func() time.Time) Option {
	return func(s *System) {
		s.now = now
	}
}

// NewSystem builds a personality system from a personality document and a
// durable backing store.
func NewSystem(doc *config.Document, backend store.Store, memCfg memory.Config, learnTuning learning.Tuning, log logger.Logger, opts ...Option) *System {
	if log == nil {
		log = logger.Global()
	}

	p := doc.Personality()

	triggers := make(map[string]emotion.Trigger, len(p.EmotionalState.Triggers))
	for pattern, effect := range p.EmotionalState.Triggers {
		triggers[pattern] = emotion.Trigger{
			State:          effect.State,
			IntensityDelta: effect.IntensityDelta,
		}
	}

	s := &System{
		doc: doc,
		log: log,
		rec: nopRecorder{},
		now: time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	s.emotion = emotion.NewEngine(emotion.Config{
		BaseState:    p.EmotionalState.BaseState,
		CurrentState: p.EmotionalState.CurrentState,
		Intensity:    p.EmotionalState.Intensity,
		DecayRate:    p.EmotionalState.DecayRate,
		Triggers:     triggers,
	}, log, emotion.WithClock(s.now))

	if memCfg.Capacity == 0 {
		memCfg.Capacity = p.Memory.ShortTerm.Capacity
	}
	if memCfg.DecayRate == 0 {
		memCfg.DecayRate = p.Memory.ShortTerm.DecayRate
	}
	s.memory = memory.NewStore(memCfg, backend, log, memory.WithClock(s.now))

	s.learning = learning.NewSystem(learning.Config{
		AdaptationRate:     p.Learning.AdaptationRate,
		InterestEvolution:  p.Learning.InterestEvolution,
		EngagementLearning: p.Learning.EngagementLearning,
		Weights:            p.Learning.Metrics,
		Interests:          p.Interests,
		Tone:               p.Tone,
		TopicPreferences:   p.Memory.LongTerm.TopicPreferences,
		Tuning:             learnTuning,
	}, backend, log, learning.WithClock(s.now))

	log.Info("Personality system initialized", "name", p.Name)
	return s
}

// ReloadPersonality applies an edited personality document without a
// restart. Triggers, base state, and decay come from the new document;
// the live emotional state carries over. Learned state stays with the
// learning system and is not reset.
func (s *System) ReloadPersonality(doc *config.Document) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.emotion.Snapshot()
	p := doc.Personality()

	triggers := make(map[string]emotion.Trigger, len(p.EmotionalState.Triggers))
	for pattern, effect := range p.EmotionalState.Triggers {
		triggers[pattern] = emotion.Trigger{
			State:          effect.State,
			IntensityDelta: effect.IntensityDelta,
		}
	}

	s.doc = doc
	s.emotion = emotion.NewEngine(emotion.Config{
		BaseState:    p.EmotionalState.BaseState,
		CurrentState: snap.State,
		Intensity:    snap.Intensity,
		DecayRate:    p.EmotionalState.DecayRate,
		Triggers:     triggers,
	}, s.log, emotion.WithClock(s.now))

	s.log.Info("Personality document reloaded", "name", p.Name)
}

// Load restores long-term memory and learned state from the durable store.
// A missing or unreachable store yields empty defaults.
func (s *System) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.memory.Load(ctx); err != nil {
		return err
	}
	return s.learning.Load(ctx)
}

// ProcessContent feeds content items, in arrival order, to the emotion
// engine and then to memory. The emotional reaction to an item is applied
// before the item is folded into relationship stats.
func (s *System) ProcessContent(ctx context.Context, items []ContentItem) (ProcessResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var res ProcessResult
	wasDegraded := s.memory.Degraded()
	for _, item := range items {
		before := s.emotion.Snapshot().State
		s.emotion.Update(item.Text)
		if after := s.emotion.Snapshot(); after.State != before {
			s.rec.RecordEmotionTransition(after.State, after.Intensity)
		}

		id := item.ID
		if id == "" {
			id = uuid.New().String()
		}

		sr, err := s.memory.StoreInteraction(ctx, &store.InteractionRecord{
			ID:        id,
			Type:      "observed",
			User:      item.User,
			Content:   item.Text,
			Timestamp: s.now(),
			Sentiment: item.Sentiment,
		})
		if err != nil {
			s.rec.RecordStorageFailure("interaction")
			return res, err
		}
		s.rec.RecordInteraction("observed")
		if sr.Degraded {
			res.Degraded = true
			if !wasDegraded {
				s.rec.RecordStorageFailure("interaction")
				wasDegraded = true
			}
		}
		res.Processed++
	}
	s.rec.SetDegradedMode(s.memory.Degraded())

	return res, nil
}

// RecordAction stores an executed action as an interaction and, when
// engagement metrics are supplied, feeds them to the learning system.
// Returns the engagement score, or 0 when no metrics were given.
func (s *System) RecordAction(ctx context.Context, action, content string, metrics *learning.EngagementMetrics) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.recordActionLocked(ctx, action, content, metrics)
}

// recordActionLocked is RecordAction without the lock, shared with the
// engagement tracker.
func (s *System) recordActionLocked(ctx context.Context, action, content string, metrics *learning.EngagementMetrics) (float64, error) {
	var score float64
	if metrics != nil {
		score = s.learning.RecordEngagement(learning.EngagementEvent{
			Content: content,
			Metrics: *metrics,
			Topics:  memory.ExtractTopics(content),
			Tone:    s.learning.Tone(),
		})
		s.rec.RecordEngagementScore(score)
	}

	_, err := s.memory.StoreInteraction(ctx, &store.InteractionRecord{
		ID:              uuid.New().String(),
		Type:            action,
		User:            "self",
		Content:         content,
		Timestamp:       s.now(),
		EngagementScore: score,
	})
	if err != nil {
		s.rec.RecordStorageFailure("interaction")
		return score, err
	}
	s.rec.RecordInteraction(action)
	s.rec.SetDegradedMode(s.memory.Degraded())

	return score, nil
}

// DecisionContext assembles the read-only snapshot for prompt construction:
// current emotion and its influence, relevant memory, and learning insights.
// No mutation beyond emotional decay.
func (s *System) DecisionContext(currentContent, currentUser string) DecisionContext {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p := s.doc.Personality()
	topics := memory.ExtractTopics(currentContent)

	return DecisionContext{
		Emotion: s.emotion.Influence(),
		Memory: s.memory.MemoryContext(memory.ContextQuery{
			User:        currentUser,
			Topics:      topics,
			TopicScores: s.learning.TopicPreferences(),
		}),
		Learning:  s.learning.Insights(),
		Name:      p.Name,
		Bio:       p.Bio,
		Timestamp: s.now(),
	}
}

// Emotion returns the current emotional state snapshot.
func (s *System) Emotion() emotion.State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.emotion.Snapshot()
}

// Degraded reports whether memory is operating without durable persistence.
func (s *System) Degraded() bool {
	return s.memory.Degraded()
}

// RecalibrateWeights runs an explicit weight recalibration step.
func (s *System) RecalibrateWeights() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.learning.RecalibrateWeights()
	if s.learning.AdaptTone() {
		s.rec.RecordToneAdaptation()
	}
}

// SaveState persists memory, then the personality document, in that order.
// Each half fails independently; the report says which, so the caller can
// retry just the failed one.
func (s *System) SaveState(ctx context.Context) SaveReport {
	s.mu.Lock()
	defer s.mu.Unlock()

	var report SaveReport

	res, err := s.memory.Persist(ctx)
	if err != nil {
		report.MemoryErr = err
	} else if res.Degraded {
		report.MemoryDegraded = true
	}
	if degraded, err := s.learning.Persist(ctx); err != nil {
		if report.MemoryErr == nil {
			report.MemoryErr = err
		}
	} else if degraded {
		report.MemoryDegraded = true
	}

	snap := s.emotion.Snapshot()
	s.doc.UpdateEmotionalState(snap.State, snap.Intensity)

	if err := s.learning.SavePersonality(s.doc); err != nil {
		report.PersonalityErr = err
	}

	if report.MemoryErr != nil || report.MemoryDegraded {
		s.rec.RecordStorageFailure("persist")
	}
	s.rec.SetDegradedMode(s.memory.Degraded())

	if report.Success() {
		s.log.Debug("State saved")
	} else {
		s.log.Warn("State save incomplete",
			"memory_degraded", report.MemoryDegraded,
			"memory_err", report.MemoryErr,
			"personality_err", report.PersonalityErr)
	}

	return report
}
