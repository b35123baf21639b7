// Copyright 2026 © The Skillgraph Authors
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Watcher polls the engine's skill directory for changes and triggers a
// snapshot reload when a document appears, disappears, or is rewritten.
type Watcher struct {
	mu        sync.Mutex
	engine    *Engine
	interval  time.Duration
	lastState map[string]time.Time
	listeners []func(*Snapshot)
	stopCh    chan struct{}
	doneCh    chan struct{}
	logger    *slog.Logger
}

// WatcherOption configures the watcher.
type WatcherOption func(*Watcher)

// WithWatchInterval sets the polling interval for directory changes.
func WithWatchInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.interval = d
		}
	}
}

// WithWatchLogger sets the logger for the watcher.
func WithWatchLogger(logger *slog.Logger) WatcherOption {
	return func(w *Watcher) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// NewWatcher creates a watcher over the engine's skill directory.
func NewWatcher(engine *Engine, opts ...WatcherOption) *Watcher {
	w := &Watcher{
		engine:   engine,
		interval: time.Second,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.lastState = scanDir(engine.Dir())
	return w
}

// OnChange registers a callback invoked with each freshly published
// snapshot.
func (w *Watcher) OnChange(fn func(*Snapshot)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.listeners = append(w.listeners, fn)
}

// Start begins watching until the context is cancelled or Stop is
// called.
func (w *Watcher) Start(ctx context.Context) {
	go w.watch(ctx)
}

// Stop stops the watcher and waits for the poll loop to exit.
func (w *Watcher) Stop() {
	close(w.stopCh)
	<-w.doneCh
}

func (w *Watcher) watch(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			if w.checkForChanges() {
				w.reload(ctx)
			}
		}
	}
}

// checkForChanges compares the directory's current document set and
// modification times against the last sweep.
func (w *Watcher) checkForChanges() bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	state := scanDir(w.engine.Dir())
	if len(state) != len(w.lastState) {
		w.lastState = state
		return true
	}
	for path, mod := range state {
		last, ok := w.lastState[path]
		if !ok || mod.After(last) {
			w.lastState = state
			return true
		}
	}
	return false
}

func (w *Watcher) reload(ctx context.Context) {
	w.logger.Info("skill directory changed, reloading", "dir", w.engine.Dir())

	if err := w.engine.Reload(ctx); err != nil {
		// Keep serving the previous snapshot; the defect is already
		// logged and counted by the engine.
		w.logger.Error("snapshot reload failed, previous revision stays active", "error", err)
		return
	}

	w.mu.Lock()
	listeners := make([]func(*Snapshot), len(w.listeners))
	copy(listeners, w.listeners)
	w.mu.Unlock()

	snapshot := w.engine.Snapshot()
	for _, fn := range listeners {
		fn(snapshot)
	}
}

// scanDir maps each skill document in dir to its modification time.
func scanDir(dir string) map[string]time.Time {
	state := make(map[string]time.Time)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return state
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch filepath.Ext(entry.Name()) {
		case ".json", ".yaml", ".yml":
		default:
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		state[filepath.Join(dir, entry.Name())] = info.ModTime()
	}
	return state
}
