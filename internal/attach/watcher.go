// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package attach

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/jeranaias/glmchat/internal/i18n"
)

// DefaultDebounce is how long the watcher waits after the last write
// before re-reading the file.
const DefaultDebounce = 200 * time.Millisecond

// =============================================================================
// FSNOTIFY WATCHER
// =============================================================================

// Watcher keeps a summary of one tracked file up to date.
//
// It watches the file's parent directory so that editors which save by
// writing a temp file and renaming it over the original are followed.
type Watcher struct {
	loc      *i18n.Localizer
	watcher  *fsnotify.Watcher
	debounce time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	path    string
	dir     string
	current *FileContext
	pending time.Time
	updates chan FileContext

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewWatcher creates a watcher. Call Track to choose a file.
func NewWatcher(loc *i18n.Localizer, debounce time.Duration) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if loc == nil {
		loc = i18n.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := &Watcher{
		loc:      loc,
		watcher:  fsw,
		debounce: debounce,
		logger:   slog.Default(),
		updates:  make(chan FileContext, 1),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	go w.processEvents()
	return w, nil
}

// WithLogger sets the logger.
func (w *Watcher) WithLogger(logger *slog.Logger) *Watcher {
	if logger != nil {
		w.logger = logger
	}
	return w
}

// Track starts following path and reads it immediately.
func (w *Watcher) Track(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}
	dir := filepath.Dir(abs)

	w.mu.Lock()
	prevDir := w.dir
	w.mu.Unlock()

	if prevDir != dir {
		if err := w.watcher.Add(dir); err != nil {
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
		if prevDir != "" {
			_ = w.watcher.Remove(prevDir)
		}
	}

	fc := SummarizeFile(abs, w.loc)
	w.mu.Lock()
	w.path = abs
	w.dir = dir
	w.current = &fc
	w.pending = time.Time{}
	w.mu.Unlock()
	w.publish(fc)
	return nil
}

// Tracked returns the absolute path being followed, or "".
func (w *Watcher) Tracked() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.path
}

// CurrentFile returns the latest summary of the tracked file.
func (w *Watcher) CurrentFile() (FileContext, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.current == nil {
		return FileContext{}, false
	}
	return *w.current, true
}

// Updates delivers the newest summary after each change. Older undelivered
// summaries are replaced.
func (w *Watcher) Updates() <-chan FileContext {
	return w.updates
}

// Close stops watching and releases resources.
func (w *Watcher) Close() error {
	w.cancel()
	err := w.watcher.Close()
	<-w.done
	return err
}

// processEvents handles file system events and debounced re-reads.
func (w *Watcher) processEvents() {
	defer close(w.done)
	tick := w.debounce / 2
	if tick <= 0 {
		tick = w.debounce
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("file watcher error", "error", err)

		case <-ticker.C:
			w.flushPending()
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.path == "" || filepath.Clean(event.Name) != w.path {
		return
	}
	if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
		w.pending = time.Now()
	}
	// Remove and Rename keep the last summary; a recreate triggers a re-read.
}

func (w *Watcher) flushPending() {
	w.mu.Lock()
	if w.pending.IsZero() || time.Since(w.pending) < w.debounce {
		w.mu.Unlock()
		return
	}
	path := w.path
	w.pending = time.Time{}
	w.mu.Unlock()

	fc := SummarizeFile(path, w.loc)

	w.mu.Lock()
	if w.path != path {
		w.mu.Unlock()
		return
	}
	w.current = &fc
	w.mu.Unlock()

	w.logger.Debug("tracked file changed", "path", path)
	w.publish(fc)
}

func (w *Watcher) publish(fc FileContext) {
	for {
		select {
		case w.updates <- fc:
			return
		default:
		}
		select {
		case <-w.updates:
		default:
		}
	}
}
