// Package watcher reports changes to named files or directories with fsnotify and debouncing.
package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const defaultDebounce = 400 * time.Millisecond

// Watcher watches targets such as a published index location and calls onChange when a
// target is created, replaced, written or removed. Each target's parent directory is
// watched, so a symlink swapped in by rename is seen as well.
type Watcher struct {
	targets     []string
	onChange    func(target string)
	debounce    time.Duration
	watcher     *fsnotify.Watcher
	mu          sync.Mutex
	debounceMap map[string]*time.Timer
	dirRefs     map[string]int // watched parent dir -> number of targets in it
	done        chan struct{}
	started     bool
	stopOnce    sync.Once
	logger      *zap.Logger
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithLogger sets a logger for debug output.
func WithLogger(l *zap.Logger) WatcherOption {
	return func(w *Watcher) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithDebounce sets how long a target must stay quiet before onChange fires.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// NewWatcher creates a watcher for targets. onChange is called with the target path.
func NewWatcher(targets []string, onChange func(target string), opts ...WatcherOption) *Watcher {
	w := &Watcher{
		onChange:    onChange,
		debounce:    defaultDebounce,
		debounceMap: make(map[string]*time.Timer),
		dirRefs:     make(map[string]int),
		done:        make(chan struct{}),
		logger:      zap.NewNop(),
	}
	for _, t := range targets {
		if abs, err := filepath.Abs(t); err == nil {
			w.targets = append(w.targets, filepath.Clean(abs))
		}
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start starts the watcher. It runs until ctx is cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return nil
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		w.mu.Unlock()
		return err
	}
	w.watcher = fw
	w.started = true
	w.logger.Debug("watcher starting", zap.Strings("targets", w.targets))
	for _, target := range w.targets {
		if err := w.watchParentLocked(target); err != nil {
			_ = fw.Close()
			w.watcher = nil
			w.started = false
			w.mu.Unlock()
			return err
		}
	}
	w.mu.Unlock()
	go w.run(ctx, fw)
	return nil
}

func (w *Watcher) run(ctx context.Context, fw *fsnotify.Watcher) {
	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return
		case <-w.done:
			return
		case ev, ok := <-fw.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)
		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			if err != nil {
				w.logger.Debug("watcher error", zap.Error(err))
			}
		}
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
		return
	}
	target, ok := w.targetFor(ev.Name)
	if !ok {
		return
	}
	w.logger.Debug("watcher event", zap.String("op", ev.Op.String()), zap.String("path", ev.Name))
	w.debounceChange(target)
}

func (w *Watcher) targetFor(path string) (string, bool) {
	clean := filepath.Clean(path)
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, t := range w.targets {
		if t == clean {
			return t, true
		}
	}
	return "", false
}

func (w *Watcher) debounceChange(target string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.debounceMap[target]; ok {
		t.Stop()
	}
	t := time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.debounceMap, target)
		w.mu.Unlock()
		w.logger.Debug("watcher target changed (debounced)", zap.String("target", target))
		if w.onChange != nil {
			w.onChange(target)
		}
	})
	w.debounceMap[target] = t
}

// AddTarget starts watching another target.
func (w *Watcher) AddTarget(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	abs = filepath.Clean(abs)
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, t := range w.targets {
		if t == abs {
			return nil
		}
	}
	if w.watcher != nil {
		if err := w.watchParentLocked(abs); err != nil {
			return err
		}
	}
	w.targets = append(w.targets, abs)
	w.logger.Debug("watcher target added", zap.String("target", abs))
	return nil
}

// watchParentLocked watches the directory holding target, creating it if missing.
func (w *Watcher) watchParentLocked(target string) error {
	dir := filepath.Dir(target)
	if w.dirRefs[dir] > 0 {
		w.dirRefs[dir]++
		return nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	if err := w.watcher.Add(dir); err != nil {
		return err
	}
	w.dirRefs[dir] = 1
	return nil
}

// RemoveTarget stops watching target.
func (w *Watcher) RemoveTarget(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	abs = filepath.Clean(abs)
	w.mu.Lock()
	defer w.mu.Unlock()
	idx := -1
	for i, t := range w.targets {
		if t == abs {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil
	}
	w.targets = append(w.targets[:idx], w.targets[idx+1:]...)
	if t, ok := w.debounceMap[abs]; ok {
		t.Stop()
		delete(w.debounceMap, abs)
	}
	if w.watcher != nil {
		dir := filepath.Dir(abs)
		if w.dirRefs[dir]--; w.dirRefs[dir] <= 0 {
			delete(w.dirRefs, dir)
			_ = w.watcher.Remove(dir)
		}
	}
	w.logger.Debug("watcher target removed", zap.String("target", abs))
	return nil
}

// Targets returns a copy of the watched targets.
func (w *Watcher) Targets() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.targets...)
}

// Stop stops the watcher and releases resources.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.started || w.watcher == nil {
		w.mu.Unlock()
		return
	}
	for target, t := range w.debounceMap {
		t.Stop()
		delete(w.debounceMap, target)
	}
	_ = w.watcher.Close()
	w.watcher = nil
	w.started = false
	w.dirRefs = make(map[string]int)
	w.mu.Unlock()
	w.stopOnce.Do(func() { close(w.done) })
}
