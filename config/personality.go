package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/personacore/personacore/pkg/logger"
)

// Personality is the typed view of the personality document fields owned by
// the core components. The full document may carry additional fields (host
// application settings, prompt templates); those are preserved verbatim in
// the Document's raw form and written back untouched on save.
type Personality struct {
	Name             string           `json:"name"`
	Bio              string           `json:"bio"`
	Interests        []string         `json:"interests"`
	Tone             string           `json:"tone"`
	InteractionStyle string           `json:"interaction_style"`
	EmotionalState   EmotionalState   `json:"emotional_state"`
	Memory           MemorySettings   `json:"memory"`
	Learning         LearningSettings `json:"learning"`
}

// EmotionalState is the emotion engine's configuration subtree.
type EmotionalState struct {
	BaseState    string                   `json:"base_state"`
	CurrentState string                   `json:"current_state"`
	Intensity    float64                  `json:"intensity"`
	DecayRate    float64                  `json:"decay_rate"`
	Triggers     map[string]TriggerEffect `json:"triggers"`
}

// TriggerEffect is the emotional effect of one lexical trigger pattern.
type TriggerEffect struct {
	State          string  `json:"state"`
	IntensityDelta float64 `json:"intensity_delta"`
}

// MemorySettings is the memory store's configuration subtree.
type MemorySettings struct {
	ShortTerm ShortTermSettings `json:"short_term"`
	LongTerm  LongTermSettings  `json:"long_term"`
}

// ShortTermSettings bounds the short-term interaction buffer.
type ShortTermSettings struct {
	Capacity  int     `json:"capacity"`
	DecayRate float64 `json:"decay_rate"`
}

// LongTermSettings seeds the long-term memory. Relationship and exemplar
// state live in the durable backing store; topic preferences are written
// back into the document by the learning system.
type LongTermSettings struct {
	TopicPreferences map[string]float64 `json:"topic_preferences"`
}

// LearningSettings is the learning system's configuration subtree. Metric
// weights are keyed by their document names (e.g. "positive_feedback_weight").
type LearningSettings struct {
	AdaptationRate     float64            `json:"adaptation_rate"`
	InterestEvolution  bool               `json:"interest_evolution"`
	EngagementLearning bool               `json:"engagement_learning"`
	Metrics            map[string]float64 `json:"metrics"`
}

// Document is the personality file collaborator. It owns the file handle
// semantics: loading with per-field default fallback, and idempotent saves
// that preserve every field the core does not own.
type Document struct {
	mu        sync.Mutex
	path      string
	raw       map[string]interface{}
	typed     Personality
	log       logger.Logger
	lastWrite time.Time
}

// Documented per-field defaults, applied with a logged warning when the
// corresponding document field is missing or out of range.
const (
	defaultName           = "agent"
	defaultTone           = "neutral"
	defaultBaseState      = "neutral"
	defaultIntensity      = 0.5
	defaultDecayRate      = 0.1
	defaultCapacity       = 20
	defaultShortTermDecay = 0.2
	defaultAdaptationRate = 0.05
)

// defaultMetricWeights are the documented default engagement metric weights.
func defaultMetricWeights() map[string]float64 {
	return map[string]float64{
		"positive_feedback_weight": 0.3,
		"amplification_weight":     0.5,
		"responses_weight":         0.2,
		"impressions_weight":       0.1,
	}
}

// LoadDocument reads the personality document at path. A missing file yields
// a fully defaulted document (logged, not fatal); a file that cannot be
// parsed at all is an error. Individual missing or out-of-range fields fall
// back to their documented defaults with a logged warning.
func LoadDocument(path string, log logger.Logger) (*Document, error) {
	if log == nil {
		log = logger.Global()
	}

	d := &Document{
		path: path,
		raw:  make(map[string]interface{}),
		log:  log,
	}

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		log.Warn("personality document not found, using defaults", "path", path)
	case err != nil:
		return nil, fmt.Errorf("config: read personality document: %w", err)
	default:
		if err := json.Unmarshal(data, &d.raw); err != nil {
			return nil, fmt.Errorf("config: parse personality document: %w", err)
		}
		if err := json.Unmarshal(data, &d.typed); err != nil {
			return nil, fmt.Errorf("config: decode personality document: %w", err)
		}
	}

	d.applyDefaults()
	return d, nil
}

// applyDefaults fills missing fields and clamps out-of-range values,
// logging each fallback.
func (d *Document) applyDefaults() {
	p := &d.typed

	if p.Name == "" {
		d.log.Warn("personality field missing, using default", "field", "name", "default", defaultName)
		p.Name = defaultName
	}
	if p.Tone == "" {
		d.log.Warn("personality field missing, using default", "field", "tone", "default", defaultTone)
		p.Tone = defaultTone
	}

	es := &p.EmotionalState
	if es.BaseState == "" {
		d.log.Warn("personality field missing, using default", "field", "emotional_state.base_state", "default", defaultBaseState)
		es.BaseState = defaultBaseState
	}
	if es.CurrentState == "" {
		es.CurrentState = es.BaseState
	}
	if es.Intensity < 0 || es.Intensity > 1 {
		d.log.Warn("personality field out of range, clamping", "field", "emotional_state.intensity", "value", es.Intensity)
		es.Intensity = clamp01(es.Intensity)
	} else if es.Intensity == 0 && !hasPath(d.raw, "emotional_state", "intensity") {
		es.Intensity = defaultIntensity
	}
	if es.DecayRate <= 0 || es.DecayRate > 1 {
		if hasPath(d.raw, "emotional_state", "decay_rate") {
			d.log.Warn("personality field out of range, using default", "field", "emotional_state.decay_rate", "value", es.DecayRate)
		}
		es.DecayRate = defaultDecayRate
	}
	if es.Triggers == nil {
		es.Triggers = make(map[string]TriggerEffect)
	}

	st := &p.Memory.ShortTerm
	if st.Capacity <= 0 {
		if hasPath(d.raw, "memory", "short_term") {
			d.log.Warn("personality field out of range, using default", "field", "memory.short_term.capacity", "value", st.Capacity)
		}
		st.Capacity = defaultCapacity
	}
	if st.DecayRate <= 0 || st.DecayRate >= 1 {
		st.DecayRate = defaultShortTermDecay
	}
	if p.Memory.LongTerm.TopicPreferences == nil {
		p.Memory.LongTerm.TopicPreferences = make(map[string]float64)
	}

	l := &p.Learning
	if l.AdaptationRate <= 0 || l.AdaptationRate > 1 {
		if hasPath(d.raw, "learning", "adaptation_rate") {
			d.log.Warn("personality field out of range, using default", "field", "learning.adaptation_rate", "value", l.AdaptationRate)
		}
		l.AdaptationRate = defaultAdaptationRate
	}
	if len(l.Metrics) == 0 {
		l.Metrics = defaultMetricWeights()
	}
	// Behavior flags default on individually, so a document that sets only
	// adaptation_rate does not silently disable the learning loop.
	if !hasPath(d.raw, "learning", "interest_evolution") {
		l.InterestEvolution = true
	}
	if !hasPath(d.raw, "learning", "engagement_learning") {
		l.EngagementLearning = true
	}
}

// Personality returns a copy of the typed view.
func (d *Document) Personality() Personality {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.typed
}

// Path returns the document path.
func (d *Document) Path() string {
	return d.path
}

// UpdateEmotionalState writes the current emotional state back into the
// owned subtree. Base state, decay rate, and triggers are configuration and
// are left untouched.
func (d *Document) UpdateEmotionalState(currentState string, intensity float64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.typed.EmotionalState.CurrentState = currentState
	d.typed.EmotionalState.Intensity = clamp01(intensity)
}

// UpdateLearning writes the learning system's adapted state back into the
// owned subtrees: metric weights, topic preferences, interests, and tone.
func (d *Document) UpdateLearning(weights map[string]float64, topicPrefs map[string]float64, interests []string, tone string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.typed.Learning.Metrics = copyFloatMap(weights)
	d.typed.Memory.LongTerm.TopicPreferences = copyFloatMap(topicPrefs)
	if interests != nil {
		d.typed.Interests = append([]string(nil), interests...)
	}
	if tone != "" {
		d.typed.Tone = tone
	}
}

// Save merges the owned subtrees into the raw document and writes it
// atomically. Saving twice with no intervening update produces byte-identical
// output: encoding/json sorts map keys, and the merge is deterministic.
func (d *Document) Save() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.path == "" {
		return fmt.Errorf("config: no personality document path configured")
	}

	// A concurrent writer indicates a locking defect upstream; last writer
	// wins, but say so.
	if info, err := os.Stat(d.path); err == nil && !d.lastWrite.IsZero() && info.ModTime().After(d.lastWrite) {
		d.log.Warn("personality document changed on disk since last write, overwriting",
			"path", d.path)
	}

	d.mergeOwned()

	data, err := json.MarshalIndent(d.raw, "", "  ")
	if err != nil {
		return fmt.Errorf("config: marshal personality document: %w", err)
	}
	data = append(data, '\n')

	tmp := d.path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(d.path), 0o755); err != nil {
		return fmt.Errorf("config: create personality directory: %w", err)
	}
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("config: write personality document: %w", err)
	}
	if err := os.Rename(tmp, d.path); err != nil {
		return fmt.Errorf("config: replace personality document: %w", err)
	}

	d.lastWrite = time.Now()
	return nil
}

// mergeOwned folds the typed view's owned subtrees into the raw document,
// leaving every other key untouched.
func (d *Document) mergeOwned() {
	d.raw["name"] = d.typed.Name
	d.raw["tone"] = d.typed.Tone
	d.raw["interests"] = toAnySlice(d.typed.Interests)

	es := subMap(d.raw, "emotional_state")
	es["base_state"] = d.typed.EmotionalState.BaseState
	es["current_state"] = d.typed.EmotionalState.CurrentState
	es["intensity"] = d.typed.EmotionalState.Intensity
	es["decay_rate"] = d.typed.EmotionalState.DecayRate
	if _, ok := es["triggers"]; !ok {
		triggers := make(map[string]interface{}, len(d.typed.EmotionalState.Triggers))
		for pattern, effect := range d.typed.EmotionalState.Triggers {
			triggers[pattern] = map[string]interface{}{
				"state":           effect.State,
				"intensity_delta": effect.IntensityDelta,
			}
		}
		es["triggers"] = triggers
	}

	mem := subMap(d.raw, "memory")
	st := subMap(mem, "short_term")
	st["capacity"] = d.typed.Memory.ShortTerm.Capacity
	st["decay_rate"] = d.typed.Memory.ShortTerm.DecayRate
	lt := subMap(mem, "long_term")
	lt["topic_preferences"] = toAnyFloatMap(d.typed.Memory.LongTerm.TopicPreferences)

	learn := subMap(d.raw, "learning")
	learn["adaptation_rate"] = d.typed.Learning.AdaptationRate
	learn["interest_evolution"] = d.typed.Learning.InterestEvolution
	learn["engagement_learning"] = d.typed.Learning.EngagementLearning
	learn["metrics"] = toAnyFloatMap(d.typed.Learning.Metrics)
}

// subMap returns the nested map at key, creating it if absent or of the
// wrong shape.
func subMap(m map[string]interface{}, key string) map[string]interface{} {
	if sub, ok := m[key].(map[string]interface{}); ok {
		return sub
	}
	sub := make(map[string]interface{})
	m[key] = sub
	return sub
}

func hasPath(m map[string]interface{}, keys ...string) bool {
	cur := m
	for i, key := range keys {
		v, ok := cur[key]
		if !ok {
			return false
		}
		if i == len(keys)-1 {
			return true
		}
		cur, ok = v.(map[string]interface{})
		if !ok {
			return false
		}
	}
	return true
}

func toAnySlice(ss []string) []interface{} {
	out := make([]interface{}, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

func toAnyFloatMap(m map[string]float64) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func copyFloatMap(m map[string]float64) map[string]float64 {
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
