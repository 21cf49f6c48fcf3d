package personality

import (
	"context"
	"time"
)

// Autosaver periodically persists system state in the background.
type Autosaver struct {
	system   *System
	interval time.Duration
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewAutosaver creates an autosaver for the given system.
func NewAutosaver(system *System, interval time.Duration) *Autosaver {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Autosaver{
		system:   system,
		interval: interval,
		done:     make(chan struct{}),
	}
}

// Start launches the background save goroutine.
func (a *Autosaver) Start(parentCtx context.Context) {
	ctx, cancel := context.WithCancel(parentCtx)
	a.cancel = cancel

	go func() {
		defer close(a.done)
		ticker := time.NewTicker(a.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				report := a.system.SaveState(ctx)
				if !report.Success() {
					a.system.log.Warn("Autosave incomplete",
						"memory_degraded", report.MemoryDegraded,
						"memory_err", report.MemoryErr,
						"personality_err", report.PersonalityErr)
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop gracefully stops the autosaver and waits for the goroutine to exit.
func (a *Autosaver) Stop() {
	if a.cancel != nil {
		a.cancel()
		<-a.done
	}
}
