// Package watch invalidates cached gallery indexes when their directories change.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce coalesces bursts of events, e.g. a batch of saved images.
const DefaultDebounce = 500 * time.Millisecond

// Invalidator drops the cached index of a root directory.
type Invalidator interface {
	Invalidate(dir string)
}

// Watcher watches scanned roots recursively.
type Watcher struct {
	fs       *fsnotify.Watcher
	inv      Invalidator
	debounce time.Duration
	logger   *zap.Logger

	mu     sync.Mutex
	dirs   map[string]string // watched dir -> root
	timers map[string]*time.Timer
}

// New creates a watcher. A non-positive debounce uses DefaultDebounce.
func New(inv Invalidator, debounce time.Duration, logger *zap.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{
		fs:       fw,
		inv:      inv,
		debounce: debounce,
		logger:   logger,
		dirs:     make(map[string]string),
		timers:   make(map[string]*time.Timer),
	}, nil
}

// Watch adds root and every directory below it. Watching a root twice is a no-op.
func (w *Watcher) Watch(root string) error {
	root = filepath.Clean(root)
	w.mu.Lock()
	_, known := w.dirs[root]
	w.mu.Unlock()
	if known {
		return nil
	}
	return w.addTree(root, root)
}

func (w *Watcher) addTree(root, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return fmt.Errorf("watch %s: %w", dir, err)
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if err := w.fs.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		w.mu.Lock()
		w.dirs[path] = root
		w.mu.Unlock()
		return nil
	})
}

// Run dispatches events until ctx is done or the watcher is closed.
func (w *Watcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			w.handle(ev)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("Directory watch error", zap.Error(err))
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
		return
	}

	w.mu.Lock()
	root, ok := w.dirs[filepath.Dir(ev.Name)]
	if !ok {
		root, ok = w.dirs[ev.Name]
	}
	w.mu.Unlock()
	if !ok {
		return
	}

	if ev.Has(fsnotify.Create) {
		// New subdirectories must be watched too.
		if err := w.addTree(root, ev.Name); err != nil && !errors.Is(err, fs.ErrNotExist) {
			w.logger.Debug("Watch new entry", zap.String("path", ev.Name), zap.Error(err))
		}
	}
	w.schedule(root)
}

func (w *Watcher) schedule(root string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.timers[root]; ok {
		t.Reset(w.debounce)
		return
	}
	w.timers[root] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.timers, root)
		w.mu.Unlock()
		w.logger.Debug("Directory changed, index invalidated", zap.String("dir", root))
		w.inv.Invalidate(root)
	})
}

// Close stops watching and cancels pending invalidations.
func (w *Watcher) Close() error {
	w.mu.Lock()
	for root, t := range w.timers {
		t.Stop()
		delete(w.timers, root)
	}
	w.mu.Unlock()
	if err := w.fs.Close(); err != nil {
		return fmt.Errorf("close fsnotify watcher: %w", err)
	}
	return nil
}
