// Package learning adapts the agent's interests, tone, and metric weights
// based on observed engagement. Scores use a fixed saturating normalization
// so runaway counters cannot dominate, and weight adaptation always
// renormalizes so weights sum to 1.
package learning

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/personacore/personacore/pkg/logger"
	"github.com/personacore/personacore/pkg/store"
)

// Canonical engagement metric names.
const (
	MetricPositiveFeedback = "positive_feedback"
	MetricAmplification    = "amplification"
	MetricResponses        = "responses"
	MetricImpressions      = "impressions"
)

// metricNames lists all metrics in a fixed order for deterministic
// iteration.
var metricNames = []string{
	MetricPositiveFeedback,
	MetricAmplification,
	MetricResponses,
	MetricImpressions,
}

// EngagementMetrics holds raw engagement counters for one piece of content.
// Negative values are treated as zero.
type EngagementMetrics struct {
	PositiveFeedback int `json:"positive_feedback"`
	Amplification    int `json:"amplification"`
	Responses        int `json:"responses"`
	Impressions      int `json:"impressions"`
}

func (m EngagementMetrics) value(name string) int {
	var v int
	switch name {
	case MetricPositiveFeedback:
		v = m.PositiveFeedback
	case MetricAmplification:
		v = m.Amplification
	case MetricResponses:
		v = m.Responses
	case MetricImpressions:
		v = m.Impressions
	}
	if v < 0 {
		return 0
	}
	return v
}

// Tuning holds the deterministic scoring parameters.
type Tuning struct {
	// Half-saturation points: normalize(x) = x / (x + half), so a raw
	// count equal to the half point scores 0.5 and further counts add
	// diminishing value.
	PositiveFeedbackHalf float64
	AmplificationHalf    float64
	ResponsesHalf        float64
	ImpressionsHalf      float64

	// SuccessThreshold is the engagement score above which an interaction
	// is kept as an exemplar.
	SuccessThreshold float64

	// ExemplarCap bounds the exemplar log; oldest entries drop first.
	ExemplarCap int

	// TrendWindow is the number of recent scores used for the adaptation
	// trend in insights.
	TrendWindow int

	// TopTopics bounds the topic list in insights.
	TopTopics int
}

// DefaultTuning returns the tuning used when none is configured.
func DefaultTuning() Tuning {
	return Tuning{
		PositiveFeedbackHalf: 10,
		AmplificationHalf:    5,
		ResponsesHalf:        5,
		ImpressionsHalf:      500,
		SuccessThreshold:     0.7,
		ExemplarCap:          50,
		TrendWindow:          10,
		TopTopics:            5,
	}
}

func (t Tuning) half(name string) float64 {
	switch name {
	case MetricPositiveFeedback:
		return t.PositiveFeedbackHalf
	case MetricAmplification:
		return t.AmplificationHalf
	case MetricResponses:
		return t.ResponsesHalf
	case MetricImpressions:
		return t.ImpressionsHalf
	}
	return 1
}

// Config holds learning configuration.
type Config struct {
	AdaptationRate     float64
	InterestEvolution  bool
	EngagementLearning bool

	// Weights is keyed by document metric names ("positive_feedback_weight").
	Weights map[string]float64

	// Interests seeds the evolving interest list.
	Interests []string

	// Tone seeds the current tone.
	Tone string

	// TopicPreferences seeds learned topic scores.
	TopicPreferences map[string]float64

	Tuning Tuning
}

// EngagementEvent is one observed engagement outcome.
type EngagementEvent struct {
	Content string
	Metrics EngagementMetrics
	Topics  []string

	// Tone is the tone the content was written in, when known; it feeds
	// tone adaptation.
	Tone string
}

// Pattern tracks one recurring trait of successful content.
type Pattern struct {
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
	Count      int     `json:"count"`
}

// Insights is the read-only learning summary for the decision context.
type Insights struct {
	TopTopics []TopicScore `json:"top_topics"`
	Trend     string       `json:"trend"`
	Patterns  []Pattern    `json:"patterns"`
	Interests []string     `json:"interests"`
	Tone      string       `json:"tone"`
}

// TopicScore pairs a topic with its learned preference score.
type TopicScore struct {
	Topic string  `json:"topic"`
	Score float64 `json:"score"`
}

// sample records one engagement observation for trend reporting and weight
// recalibration.
type sample struct {
	score      float64
	normalized map[string]float64
	success    bool
}

// toneStat tracks per-tone engagement for tone adaptation.
type toneStat struct {
	score float64
	count int
}

// System is the learning system. Mutating methods serialize through an
// internal mutex; read-only queries may run concurrently.
type System struct {
	mu sync.RWMutex

	adaptationRate     float64
	interestEvolution  bool
	engagementLearning bool
	tuning             Tuning

	weights    map[string]float64
	topicPrefs map[string]float64
	interests  []string
	tone       string
	toneStats  map[string]*toneStat
	exemplars  []*store.InteractionRecord
	patterns   []*Pattern
	history    []sample

	backend store.Store
	log     logger.Logger
	now     func() time.Time
}

// Option configures a System.
type Option func(*System)

// WithClock overrides the time source, used in tests.
func WithClock(now func() time.Time) Option {
	return func(s *System) {
		s.now = now
	}
}

// NewSystem creates a learning system. The backend may be nil when durable
// persistence of learned state is not wanted.
func NewSystem(cfg Config, backend store.Store, log logger.Logger, opts ...Option) *System {
	if log == nil {
		log = logger.Global()
	}

	rate := cfg.AdaptationRate
	if rate <= 0 || rate > 1 {
		rate = 0.05
	}

	tuning := cfg.Tuning
	if tuning.SuccessThreshold <= 0 {
		tuning = DefaultTuning()
	}

	s := &System{
		adaptationRate:     rate,
		interestEvolution:  cfg.InterestEvolution,
		engagementLearning: cfg.EngagementLearning,
		tuning:             tuning,
		weights:            canonicalWeights(cfg.Weights),
		topicPrefs:         copyScores(cfg.TopicPreferences),
		interests:          append([]string(nil), cfg.Interests...),
		tone:               cfg.Tone,
		toneStats:          make(map[string]*toneStat),
		backend:            backend,
		log:                log,
		now:                time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	s.log.Debug("Learning system initialized",
		"adaptation_rate", s.adaptationRate,
		"interest_evolution", s.interestEvolution)

	return s
}

// canonicalWeights maps document weight names to canonical metric names and
// renormalizes so the weights sum to 1. Missing or empty input yields the
// defaults.
func canonicalWeights(raw map[string]float64) map[string]float64 {
	weights := make(map[string]float64, len(metricNames))
	for name, w := range raw {
		canonical := strings.TrimSuffix(name, "_weight")
		if w < 0 {
			w = 0
		}
		weights[canonical] = w
	}
	if len(weights) == 0 {
		weights = map[string]float64{
			MetricPositiveFeedback: 0.3,
			MetricAmplification:    0.5,
			MetricResponses:        0.2,
			MetricImpressions:      0.1,
		}
	}
	normalizeWeights(weights)
	return weights
}

// normalizeWeights scales weights in place so they sum to 1. An all-zero map
// becomes uniform.
func normalizeWeights(w map[string]float64) {
	var total float64
	for _, v := range w {
		total += v
	}
	if total == 0 {
		for k := range w {
			w[k] = 1 / float64(len(w))
		}
		return
	}
	for k := range w {
		w[k] /= total
	}
}

// normalize maps a raw counter to [0,1) with diminishing returns.
func normalize(raw int, half float64) float64 {
	x := float64(raw)
	return x / (x + half)
}

// Score computes the weighted engagement score for metrics without recording
// anything.
func (s *System) Score(m EngagementMetrics) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	score, _ := s.score(m)
	return score
}

// score returns the engagement score and the per-metric normalized values.
// Caller holds at least a read lock.
func (s *System) score(m EngagementMetrics) (float64, map[string]float64) {
	normalized := make(map[string]float64, len(metricNames))
	var total float64
	for _, name := range metricNames {
		n := normalize(m.value(name), s.tuning.half(name))
		normalized[name] = n
		total += s.weights[name] * n
	}
	return clamp01(total), normalized
}

// RecordEngagement scores an engagement event, nudges topic preferences
// toward the score, and keeps high scorers as exemplars. Returns the
// engagement score. Disabled engagement learning returns 0 and records
// nothing.
func (s *System) RecordEngagement(ev EngagementEvent) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.engagementLearning {
		return 0
	}

	score, normalized := s.score(ev.Metrics)
	success := score > s.tuning.SuccessThreshold

	for _, topic := range ev.Topics {
		old := s.topicPrefs[topic]
		s.topicPrefs[topic] = clamp01(old + s.adaptationRate*(score-old))
	}

	if success {
		s.appendExemplar(ev.Content, score)
		s.identifyPatterns(ev.Content)
	}

	if s.interestEvolution && len(ev.Topics) > 0 {
		s.evolveInterests(ev.Topics, score)
	}

	if ev.Tone != "" {
		stat, ok := s.toneStats[ev.Tone]
		if !ok {
			stat = &toneStat{}
			s.toneStats[ev.Tone] = stat
		}
		stat.score = (stat.score*float64(stat.count) + score) / float64(stat.count+1)
		stat.count++
	}

	s.history = append(s.history, sample{score: score, normalized: normalized, success: success})
	if len(s.history) > s.tuning.TrendWindow*4 {
		s.history = s.history[len(s.history)-s.tuning.TrendWindow*4:]
	}

	s.log.Debug("Recorded engagement", "score", score, "success", success)
	return score
}

// appendExemplar keeps a successful interaction, dropping the oldest beyond
// the cap. Caller holds the lock.
func (s *System) appendExemplar(content string, score float64) {
	s.exemplars = append(s.exemplars, &store.InteractionRecord{
		ID:              uuid.New().String(),
		Type:            "exemplar",
		User:            "self",
		Content:         content,
		Timestamp:       s.now(),
		EngagementScore: score,
	})
	if len(s.exemplars) > s.tuning.ExemplarCap {
		s.exemplars = s.exemplars[len(s.exemplars)-s.tuning.ExemplarCap:]
	}
}

// identifyPatterns notes recurring traits of high scorers. Caller holds the
// lock.
func (s *System) identifyPatterns(content string) {
	words := len(strings.Fields(content))

	if strings.Contains(content, "?") {
		s.bumpPattern("questions")
	}
	if strings.Contains(content, "!") {
		s.bumpPattern("exclamations")
	}
	switch {
	case words > 0 && words < 10:
		s.bumpPattern("short_content")
	case words > 30:
		s.bumpPattern("long_content")
	}
}

func (s *System) bumpPattern(name string) {
	for _, p := range s.patterns {
		if p.Name == name {
			p.Confidence = p.Confidence*0.8 + 0.1*0.2
			p.Count++
			return
		}
	}
	s.patterns = append(s.patterns, &Pattern{Name: name, Confidence: 0.1, Count: 1})
}

// evolveInterests promotes topics that earn engagement. High scorers move up
// the interest list; strong new topics join it. Caller holds the lock.
func (s *System) evolveInterests(topics []string, score float64) {
	adjustment := (score - 0.5) * s.adaptationRate
	if adjustment <= 0 {
		return
	}

	for _, topic := range topics {
		idx := indexOf(s.interests, topic)
		switch {
		case idx > 0:
			s.interests[idx-1], s.interests[idx] = s.interests[idx], s.interests[idx-1]
		case idx < 0 && adjustment > 0.005 && len(s.interests) < 10:
			s.interests = append(s.interests, topic)
			s.log.Debug("Added new interest", "topic", topic)
		}
	}
}

// RecalibrateWeights recomputes metric weights as an EMA toward each
// metric's share of the normalized signal across successful interactions,
// then renormalizes so weights sum to 1. A run with no successful history is
// a no-op.
func (s *System) RecalibrateWeights() {
	s.mu.Lock()
	defer s.mu.Unlock()

	sums := make(map[string]float64, len(metricNames))
	var successes int
	for _, h := range s.history {
		if !h.success {
			continue
		}
		successes++
		for _, name := range metricNames {
			sums[name] += h.normalized[name]
		}
	}
	if successes == 0 {
		return
	}

	var total float64
	for _, name := range metricNames {
		total += sums[name]
	}
	if total == 0 {
		return
	}

	for _, name := range metricNames {
		target := sums[name] / total
		s.weights[name] += s.adaptationRate * (target - s.weights[name])
	}
	normalizeWeights(s.weights)

	s.log.Debug("Recalibrated metric weights", "successes", successes)
}

// AdaptTone switches to the tone with the best observed engagement, once it
// has enough observations. Returns true when the tone changed.
func (s *System) AdaptTone() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	best := s.tone
	bestScore := 0.0
	for tone, stat := range s.toneStats {
		if stat.count < 2 {
			continue
		}
		if stat.score > bestScore || (stat.score == bestScore && tone < best) {
			bestScore = stat.score
			best = tone
		}
	}

	if best == s.tone || best == "" {
		return false
	}

	s.log.Info("Adapting tone", "from", s.tone, "to", best)
	s.tone = best
	return true
}

// Insights returns the top topics by learned score and a short description
// of the recent adaptation trend. Read-only and deterministic.
func (s *System) Insights() Insights {
	s.mu.RLock()
	defer s.mu.RUnlock()

	topics := make([]TopicScore, 0, len(s.topicPrefs))
	for topic, score := range s.topicPrefs {
		topics = append(topics, TopicScore{Topic: topic, Score: score})
	}
	sort.Slice(topics, func(i, j int) bool {
		if topics[i].Score != topics[j].Score {
			return topics[i].Score > topics[j].Score
		}
		return topics[i].Topic < topics[j].Topic
	})
	if len(topics) > s.tuning.TopTopics {
		topics = topics[:s.tuning.TopTopics]
	}

	patterns := make([]Pattern, 0, len(s.patterns))
	for _, p := range s.patterns {
		if p.Count > 2 {
			patterns = append(patterns, *p)
		}
	}
	sort.Slice(patterns, func(i, j int) bool {
		if patterns[i].Confidence != patterns[j].Confidence {
			return patterns[i].Confidence > patterns[j].Confidence
		}
		return patterns[i].Name < patterns[j].Name
	})

	return Insights{
		TopTopics: topics,
		Trend:     s.trend(),
		Patterns:  patterns,
		Interests: append([]string(nil), s.interests...),
		Tone:      s.tone,
	}
}

// trend compares the newer half of the recent score window against the older
// half. Caller holds at least a read lock.
func (s *System) trend() string {
	window := s.tuning.TrendWindow
	n := len(s.history)
	if n > window {
		n = window
	}
	if n < 2 {
		return "insufficient data"
	}

	recent := s.history[len(s.history)-n:]
	mid := n / 2
	older := mean(recent[:mid])
	newer := mean(recent[mid:])

	delta := newer - older
	switch {
	case delta > 0.05:
		return "improving"
	case delta < -0.05:
		return "declining"
	default:
		return "stable"
	}
}

func mean(samples []sample) float64 {
	if len(samples) == 0 {
		return 0
	}
	var total float64
	for _, h := range samples {
		total += h.score
	}
	return total / float64(len(samples))
}

// Weights returns a copy of the current metric weights, keyed by document
// names.
func (s *System) Weights() map[string]float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.documentWeights()
}

// documentWeights renders weights under their document names. Caller holds
// at least a read lock.
func (s *System) documentWeights() map[string]float64 {
	out := make(map[string]float64, len(s.weights))
	for name, w := range s.weights {
		out[name+"_weight"] = w
	}
	return out
}

// TopicPreferences returns a copy of the learned topic scores.
func (s *System) TopicPreferences() map[string]float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyScores(s.topicPrefs)
}

// Interests returns a copy of the current interest list.
func (s *System) Interests() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.interests...)
}

// Tone returns the current tone.
func (s *System) Tone() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tone
}

// Exemplars returns a copy of the successful-interaction log, oldest first.
func (s *System) Exemplars() []*store.InteractionRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*store.InteractionRecord, len(s.exemplars))
	for i, rec := range s.exemplars {
		cp := *rec
		out[i] = &cp
	}
	return out
}

// PersonalityWriter is the personality-document collaborator that receives
// learned state on save. *config.Document satisfies it.
type PersonalityWriter interface {
	UpdateLearning(weights, topicPrefs map[string]float64, interests []string, tone string)
	Save() error
}

// SavePersonality writes the learned weights, topic preferences, interests,
// and tone back into the personality document. Saving twice with no
// intervening engagement produces identical output; fields the learning
// system does not own are untouched.
func (s *System) SavePersonality(doc PersonalityWriter) error {
	s.mu.RLock()
	weights := s.documentWeights()
	prefs := copyScores(s.topicPrefs)
	interests := append([]string(nil), s.interests...)
	tone := s.tone
	s.mu.RUnlock()

	doc.UpdateLearning(weights, prefs, interests, tone)
	return doc.Save()
}

// Load reads learned topic preferences and exemplars from the durable store.
// An unreachable or nil backend yields the configured seeds.
func (s *System) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.backend == nil {
		return nil
	}

	prefs, err := s.backend.TopicPreferences(ctx)
	if err != nil {
		if store.IsUnavailable(err) {
			s.log.Warn("Durable store unavailable loading topic preferences", "error", err)
			return nil
		}
		return err
	}
	if len(prefs) > 0 {
		s.topicPrefs = prefs
	}

	exemplars, err := s.backend.Exemplars(ctx)
	if err != nil {
		if store.IsUnavailable(err) {
			s.log.Warn("Durable store unavailable loading exemplars", "error", err)
			return nil
		}
		return err
	}
	s.exemplars = exemplars

	return nil
}

// Persist writes learned topic preferences and exemplars to the durable
// store. Degradation mirrors the memory store: an unavailable backend is
// reported, not fatal.
func (s *System) Persist(ctx context.Context) (degraded bool, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.backend == nil {
		return false, nil
	}

	if err := s.backend.SaveTopicPreferences(ctx, s.topicPrefs); err != nil {
		if store.IsUnavailable(err) {
			return true, nil
		}
		return false, err
	}
	if err := s.backend.SaveExemplars(ctx, s.exemplars); err != nil {
		if store.IsUnavailable(err) {
			return true, nil
		}
		return false, err
	}
	return false, nil
}

func indexOf(ss []string, s string) int {
	for i, v := range ss {
		if v == s {
			return i
		}
	}
	return -1
}

func copyScores(m map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
