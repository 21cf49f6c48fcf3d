package personality

import (
	"context"
	"sync"
	"time"

	"github.com/personacore/personacore/pkg/learning"
	"github.com/personacore/personacore/pkg/logger"
)

// MetricsFetcher retrieves delayed platform engagement metrics for an
// action. The host implements it against whatever platform it talks to.
type MetricsFetcher interface {
	FetchMetrics(ctx context.Context, actionID string) (learning.EngagementMetrics, error)
}

// TrackResult is delivered on the tracker's result channel after an action's
// engagement has been recorded.
type TrackResult struct {
	ActionID string
	Score    float64
	Err      error
}

// trackedAction is an action awaiting mature engagement metrics.
type trackedAction struct {
	id         string
	content    string
	recordedAt time.Time
}

// Tracker periodically collects engagement metrics for recent actions and
// feeds them back into the personality system. It runs a background
// goroutine; mutations go through the same serialization discipline as the
// foreground decision loop.
type Tracker struct {
	mu      sync.Mutex
	pending []trackedAction

	system       *System
	fetcher      MetricsFetcher
	interval     time.Duration
	maturityWait time.Duration

	results chan TrackResult
	cancel  context.CancelFunc
	done    chan struct{}
	log     logger.Logger
}

// NewTracker creates an engagement tracker for the given system. Metrics for
// an action are fetched once the action is at least maturityWait old, so
// delayed platform counters have settled.
func NewTracker(system *System, fetcher MetricsFetcher, interval, maturityWait time.Duration, log logger.Logger) *Tracker {
	if log == nil {
		log = logger.Global()
	}
	if interval <= 0 {
		interval = time.Minute
	}
	if maturityWait <= 0 {
		maturityWait = 15 * time.Minute
	}

	return &Tracker{
		system:       system,
		fetcher:      fetcher,
		interval:     interval,
		maturityWait: maturityWait,
		results:      make(chan TrackResult, 16),
		done:         make(chan struct{}),
		log:          log,
	}
}

// Observe registers an action for delayed engagement tracking.
func (t *Tracker) Observe(actionID, content string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.pending = append(t.pending, trackedAction{
		id:         actionID,
		content:    content,
		recordedAt: t.system.now(),
	})
}

// Results returns the channel on which tracking outcomes are delivered.
// Results are dropped when the channel is full rather than blocking the
// tracker.
func (t *Tracker) Results() <-chan TrackResult {
	return t.results
}

// Start launches the background tracking goroutine.
func (t *Tracker) Start(parentCtx context.Context) {
	ctx, cancel := context.WithCancel(parentCtx)
	t.cancel = cancel

	go func() {
		defer close(t.done)
		ticker := time.NewTicker(t.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				t.collect(ctx)
			case <-ctx.Done():
				return
			}
		}
	}()

	t.log.Info("Engagement tracker started",
		"interval", t.interval,
		"maturity_wait", t.maturityWait)
}

// collect fetches metrics for every mature pending action and records the
// engagement.
func (t *Tracker) collect(ctx context.Context) {
	t.mu.Lock()
	cutoff := t.system.now().Add(-t.maturityWait)
	var mature, remaining []trackedAction
	for _, a := range t.pending {
		if a.recordedAt.Before(cutoff) || a.recordedAt.Equal(cutoff) {
			mature = append(mature, a)
		} else {
			remaining = append(remaining, a)
		}
	}
	t.pending = remaining
	t.mu.Unlock()

	for _, a := range mature {
		metrics, err := t.fetcher.FetchMetrics(ctx, a.id)
		if err != nil {
			t.log.Warn("Failed to fetch engagement metrics",
				"action_id", a.id,
				"error", err)
			t.deliver(TrackResult{ActionID: a.id, Err: err})
			continue
		}

		score, err := t.system.RecordAction(ctx, "engagement", a.content, &metrics)
		t.deliver(TrackResult{ActionID: a.id, Score: score, Err: err})
	}
}

func (t *Tracker) deliver(res TrackResult) {
	select {
	case t.results <- res:
	default:
		t.log.Warn("Tracker result channel full, dropping result",
			"action_id", res.ActionID)
	}
}

// Stop gracefully stops the tracker and waits for the goroutine to exit.
func (t *Tracker) Stop() {
	if t.cancel != nil {
		t.cancel()
		<-t.done
	}
}
