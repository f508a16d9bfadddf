// Package watch re-runs an action when a dataset file changes on disk.
package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"autodash/internal/logger"
)

// DefaultDebounce is how long the file must be quiet before the action runs.
const DefaultDebounce = 500 * time.Millisecond

// Action is invoked with the watched path after it settles.
type Action func(ctx context.Context, path string) error

// Watcher watches one file. The parent directory is watched so that editors
// replacing the file through a rename are still seen.
type Watcher struct {
	path     string
	debounce time.Duration
	action   Action
	onError  func(error)

	watcher *fsnotify.Watcher
	mu      sync.Mutex
	timer   *time.Timer

	// running serialises actions; a change seen mid-run waits for it.
	running sync.Mutex
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets the quiet period.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithErrorHandler receives action and watcher errors. They are logged otherwise.
func WithErrorHandler(fn func(error)) Option {
	return func(w *Watcher) {
		w.onError = fn
	}
}

// New starts watching path.
func New(path string, action Action, opts ...Option) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", path, err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := fsw.Add(filepath.Dir(abs)); err != nil {
		_ = fsw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}

	w := &Watcher{
		path:     abs,
		debounce: DefaultDebounce,
		action:   action,
		watcher:  fsw,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Path returns the absolute path being watched.
func (w *Watcher) Path() string {
	return w.path
}

// Run processes events until ctx is cancelled, then releases the watcher.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			logger.Debug("Dataset file changed", "path", ev.Name, "op", ev.Op.String())
			w.schedule(ctx)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.report(fmt.Errorf("file watch error: %w", err))
		}
	}
}

func (w *Watcher) schedule(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		w.running.Lock()
		defer w.running.Unlock()
		if ctx.Err() != nil {
			return
		}
		if err := w.action(ctx, w.path); err != nil {
			w.report(err)
		}
	})
}

func (w *Watcher) report(err error) {
	if w.onError != nil {
		w.onError(err)
		return
	}
	logger.Warn("Watch action failed", "path", w.path, "error", err)
}

func (w *Watcher) stop() {
	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()
	_ = w.watcher.Close()
}
