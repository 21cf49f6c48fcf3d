// Package emotion models the agent's emotional state: lexical trigger
// matching, time-based decay toward a base state, and a deterministic
// mapping from the current state to decision-making influence factors.
package emotion

import (
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/personacore/personacore/pkg/logger"
)

const (
	// DefaultEpsilon is the intensity below which the state snaps back to base.
	DefaultEpsilon = 0.05

	// DefaultUnitInterval is the wall-clock span of one decay step.
	DefaultUnitInterval = time.Minute
)

// Trigger maps a lexical pattern match to an emotional effect.
type Trigger struct {
	State          string
	IntensityDelta float64
}

// Config holds the initial emotional configuration.
type Config struct {
	BaseState    string
	CurrentState string
	Intensity    float64
	DecayRate    float64
	Triggers     map[string]Trigger
	Epsilon      float64
	UnitInterval time.Duration
}

// State is a read-only snapshot of the current emotion.
type State struct {
	State     string  `json:"state"`
	Intensity float64 `json:"intensity"`
}

// Influence describes how the current emotion shifts decision making.
// Numeric factors are scaled by intensity; an unknown state yields the
// neutral influence.
type Influence struct {
	State               string  `json:"state"`
	Intensity           float64 `json:"intensity"`
	ActionProbability   float64 `json:"action_probability"`
	EngagementThreshold float64 `json:"engagement_threshold"`
	ContentStyle        string  `json:"content_style"`
}

// influenceEntry holds the unscaled influence factors for one state.
type influenceEntry struct {
	actionProbability   float64
	engagementThreshold float64
	contentStyle        string
}

var influences = map[string]influenceEntry{
	"excited":    {0.3, -0.2, "enthusiastic, uses exclamation points, emoji"},
	"curious":    {0.1, -0.1, "asks questions, explores ideas, thoughtful"},
	"inspired":   {0.2, -0.1, "creative, visionary, shares insights"},
	"thoughtful": {0.0, 0.0, "measured, analytical, nuanced"},
	"amused":     {0.2, -0.2, "witty, humorous, playful"},
	"concerned":  {-0.1, 0.1, "cautious, questioning, seeking clarity"},
	"neutral":    {0.0, 0.0, "balanced, objective, straightforward"},
}

// patternTrigger is a trigger bound to its pattern, held in evaluation order.
type patternTrigger struct {
	pattern string
	Trigger
}

// Engine holds and evolves the emotional state. All methods are safe for
// concurrent use.
type Engine struct {
	mu           sync.Mutex
	baseState    string
	currentState string
	intensity    float64
	decayRate    float64
	lastUpdate   time.Time
	triggers     []patternTrigger
	epsilon      float64
	unitInterval time.Duration
	now          func() time.Time
	log          logger.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the time source, used in tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// NewEngine creates an emotion engine from the given configuration.
func NewEngine(cfg Config, log logger.Logger, opts ...Option) *Engine {
	if log == nil {
		log = logger.Global()
	}

	base := cfg.BaseState
	if base == "" {
		base = "neutral"
	}
	current := cfg.CurrentState
	if current == "" {
		current = base
	}

	decayRate := cfg.DecayRate
	if decayRate <= 0 || decayRate > 1 {
		decayRate = 0.1
	}

	epsilon := cfg.Epsilon
	if epsilon <= 0 {
		epsilon = DefaultEpsilon
	}

	unit := cfg.UnitInterval
	if unit <= 0 {
		unit = DefaultUnitInterval
	}

	e := &Engine{
		baseState:    base,
		currentState: current,
		intensity:    clamp01(cfg.Intensity),
		decayRate:    decayRate,
		triggers:     sortedTriggers(cfg.Triggers),
		epsilon:      epsilon,
		unitInterval: unit,
		now:          time.Now,
		log:          log,
	}

	for _, opt := range opts {
		opt(e)
	}

	e.lastUpdate = e.now()

	e.log.Debug("Emotion engine initialized",
		"base_state", e.baseState,
		"decay_rate", e.decayRate,
		"triggers", len(e.triggers))

	return e
}

// sortedTriggers flattens the trigger map into a slice ordered
// lexicographically by pattern. Evaluation order must be deterministic so
// dominant-match ties always resolve the same way.
func sortedTriggers(m map[string]Trigger) []patternTrigger {
	out := make([]patternTrigger, 0, len(m))
	for pattern, t := range m {
		out = append(out, patternTrigger{pattern: strings.ToLower(pattern), Trigger: t})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].pattern < out[j].pattern
	})
	return out
}

// Update scans text for trigger patterns and applies decay. When one or more
// triggers match, the one with the largest absolute intensity delta wins;
// ties resolve to the lexicographically smallest pattern.
func (e *Engine) Update(text string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.applyDecay()

	lowered := strings.ToLower(text)

	var dominant *patternTrigger
	for i := range e.triggers {
		t := &e.triggers[i]
		if !strings.Contains(lowered, t.pattern) {
			continue
		}
		if dominant == nil || abs(t.IntensityDelta) > abs(dominant.IntensityDelta) {
			dominant = t
		}
	}

	if dominant == nil {
		return
	}

	e.currentState = dominant.State
	e.intensity = clamp01(e.intensity + dominant.IntensityDelta)

	e.log.Debug("Emotion trigger matched",
		"pattern", dominant.pattern,
		"state", e.currentState,
		"intensity", e.intensity)
}

// applyDecay relaxes intensity toward zero based on elapsed time, and snaps
// the state back to base once intensity drops below epsilon. Caller holds the
// lock.
func (e *Engine) applyDecay() {
	now := e.now()
	elapsed := now.Sub(e.lastUpdate)
	e.lastUpdate = now

	if elapsed <= 0 {
		return
	}

	steps := elapsed.Seconds() / e.unitInterval.Seconds()
	e.intensity *= math.Pow(e.decayRate, steps)

	if e.intensity < e.epsilon && e.currentState != e.baseState {
		e.log.Debug("Emotion decayed to base state", "base_state", e.baseState)
		e.currentState = e.baseState
	}
}

// Snapshot returns the current emotional state after applying decay.
func (e *Engine) Snapshot() State {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.applyDecay()
	return State{
		State:     e.currentState,
		Intensity: e.intensity,
	}
}

// Influence returns the decision-making influence of the current emotion.
// Numeric factors scale linearly with intensity. Unknown states map to the
// neutral entry so the function is total.
func (e *Engine) Influence() Influence {
	snap := e.Snapshot()

	entry, ok := influences[snap.State]
	if !ok {
		entry = influences["neutral"]
	}

	return Influence{
		State:               snap.State,
		Intensity:           snap.Intensity,
		ActionProbability:   entry.actionProbability * snap.Intensity,
		EngagementThreshold: entry.engagementThreshold * snap.Intensity,
		ContentStyle:        entry.contentStyle,
	}
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

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
