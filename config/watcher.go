package config

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/personacore/personacore/pkg/logger"
)

// Watcher monitors the personality document for external edits and triggers
// callbacks with the reloaded document. It lets an operator tune a live
// agent's personality by editing the file.
type Watcher struct {
	mu        sync.RWMutex
	watcher   *fsnotify.Watcher
	path      string
	log       logger.Logger
	callbacks []func(*Document)
	debounce  time.Duration
	stopCh    chan struct{}
	running   bool
}

// WatcherOption is a functional option for Watcher configuration.
type WatcherOption func(*Watcher)

// WithDebounce sets the debounce duration for file change events.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		w.debounce = d
	}
}

// NewWatcher creates a new personality document watcher.
func NewWatcher(path string, log logger.Logger, opts ...WatcherOption) (*Watcher, error) {
	if path == "" {
		return nil, fmt.Errorf("config: document path is required for watching")
	}
	if log == nil {
		log = logger.Global()
	}

	fswatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config: create fsnotify watcher: %w", err)
	}

	w := &Watcher{
		watcher:  fswatcher,
		path:     path,
		log:      log,
		debounce: 500 * time.Millisecond,
		stopCh:   make(chan struct{}),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w, nil
}

// Watch starts monitoring the document for changes. It blocks until the
// context is cancelled or Stop is called.
func (w *Watcher) Watch(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("config: watcher is already running")
	}
	w.running = true
	w.mu.Unlock()

	defer func() {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
	}()

	if err := w.watcher.Add(w.path); err != nil {
		return fmt.Errorf("config: watch %s: %w", w.path, err)
	}

	var debounceTimer *time.Timer
	var lastEvent time.Time

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-w.stopCh:
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}

			// Only writes and creates change document content; renames from
			// atomic saves arrive as creates.
			if event.Op&fsnotify.Write == fsnotify.Write ||
				event.Op&fsnotify.Create == fsnotify.Create {
				now := time.Now()

				if debounceTimer != nil {
					debounceTimer.Stop()
				}

				if now.Sub(lastEvent) < w.debounce {
					lastEvent = now
					debounceTimer = time.AfterFunc(w.debounce, w.reload)
					continue
				}

				lastEvent = now
				w.reload()
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("personality watcher error", "error", err)
		}
	}
}

// reload re-reads the document and notifies callbacks.
func (w *Watcher) reload() {
	doc, err := LoadDocument(w.path, w.log)
	if err != nil {
		w.log.Warn("failed to reload personality document", "path", w.path, "error", err)
		return
	}

	w.mu.RLock()
	callbacks := make([]func(*Document), len(w.callbacks))
	copy(callbacks, w.callbacks)
	w.mu.RUnlock()

	for _, cb := range callbacks {
		// Callbacks run in their own goroutines so a slow consumer cannot
		// stall the watch loop.
		go func(callback func(*Document)) {
			defer func() {
				if r := recover(); r != nil {
					w.log.Error("personality reload callback panic", "panic", r)
				}
			}()
			callback(doc)
		}(cb)
	}
}

// OnChange registers a callback invoked when the document changes.
func (w *Watcher) OnChange(callback func(*Document)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, callback)
}

// Stop stops the watcher and releases resources.
func (w *Watcher) Stop() error {
	close(w.stopCh)
	if w.watcher != nil {
		return w.watcher.Close()
	}
	return nil
}

// IsRunning returns whether the watcher is currently running.
func (w *Watcher) IsRunning() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.running
}
