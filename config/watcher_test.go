package config

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/personacore/personacore/pkg/logger"
)

func TestNewWatcher(t *testing.T) {
	t.Run("valid document path", func(t *testing.T) {
		path := writeDoc(t, `{"name": "aria"}`)

		watcher, err := NewWatcher(path, logger.Global())
		if err != nil {
			t.Fatalf("NewWatcher failed: %v", err)
		}
		defer watcher.Stop()

		if watcher.IsRunning() {
			t.Error("expected watcher not running before Watch")
		}
	})

	t.Run("empty path", func(t *testing.T) {
		if _, err := NewWatcher("", logger.Global()); err == nil {
			t.Fatal("expected error for empty path")
		}
	})

	t.Run("with debounce option", func(t *testing.T) {
		path := writeDoc(t, `{"name": "aria"}`)

		watcher, err := NewWatcher(path, logger.Global(), WithDebounce(100*time.Millisecond))
		if err != nil {
			t.Fatalf("NewWatcher failed: %v", err)
		}
		defer watcher.Stop()

		if watcher.debounce != 100*time.Millisecond {
			t.Errorf("expected debounce 100ms, got %v", watcher.debounce)
		}
	})
}

func TestWatcher_DetectsChanges(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "personality.json")
	if err := os.WriteFile(path, []byte(`{"name": "aria"}`), 0o644); err != nil {
		t.Fatalf("failed to write document: %v", err)
	}

	watcher, err := NewWatcher(path, logger.Global(), WithDebounce(10*time.Millisecond))
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}
	defer watcher.Stop()

	var mu sync.Mutex
	var reloaded []*Document
	notify := make(chan struct{}, 4)
	watcher.OnChange(func(doc *Document) {
		mu.Lock()
		reloaded = append(reloaded, doc)
		mu.Unlock()
		notify <- struct{}{}
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		_ = watcher.Watch(ctx)
	}()

	// Let the watch loop register before editing.
	time.Sleep(50 * time.Millisecond)

	if err := os.WriteFile(path, []byte(`{"name": "nova"}`), 0o644); err != nil {
		t.Fatalf("failed to edit document: %v", err)
	}

	select {
	case <-notify:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for change callback")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(reloaded) == 0 {
		t.Fatal("expected at least one reloaded document")
	}
	if got := reloaded[len(reloaded)-1].Personality().Name; got != "nova" {
		t.Errorf("expected reloaded name 'nova', got %s", got)
	}
}

func TestWatcher_StopUnblocksWatch(t *testing.T) {
	path := writeDoc(t, `{"name": "aria"}`)

	watcher, err := NewWatcher(path, logger.Global())
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		done <- watcher.Watch(context.Background())
	}()

	time.Sleep(50 * time.Millisecond)
	if !watcher.IsRunning() {
		t.Error("expected watcher running")
	}

	if err := watcher.Stop(); err != nil {
		t.Errorf("Stop failed: %v", err)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Watch returned error on stop: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Watch did not return after Stop")
	}
}
