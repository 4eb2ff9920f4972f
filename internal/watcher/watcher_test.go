package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

type recorder struct {
	mu      sync.Mutex
	changed []string
}

func (r *recorder) onChange(target string) {
	r.mu.Lock()
	r.changed = append(r.changed, target)
	r.mu.Unlock()
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.changed...)
}

func TestWatcher_AddRemoveTargets(t *testing.T) {
	dir := t.TempDir()
	rec := &recorder{}
	w := NewWatcher(nil, rec.onChange)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	target := filepath.Join(dir, "index")
	if err := w.AddTarget(target); err != nil {
		t.Fatal(err)
	}
	if err := w.AddTarget(target); err != nil {
		t.Fatal(err)
	}
	targets := w.Targets()
	if len(targets) != 1 || targets[0] != filepath.Clean(target) {
		t.Errorf("Targets() = %v", targets)
	}

	if err := w.RemoveTarget(target); err != nil {
		t.Fatal(err)
	}
	if len(w.Targets()) != 0 {
		t.Errorf("after remove: %v", w.Targets())
	}
}

func TestWatcher_SymlinkSwapIsDebounced(t *testing.T) {
	dir := t.TempDir()
	genA := filepath.Join(dir, "gen-a")
	genB := filepath.Join(dir, "gen-b")
	for _, g := range []string{genA, genB} {
		if err := os.Mkdir(g, 0755); err != nil {
			t.Fatal(err)
		}
	}
	target := filepath.Join(dir, "index")
	if err := os.Symlink(genA, target); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	rec := &recorder{}
	w := NewWatcher([]string{target}, rec.onChange, WithDebounce(100*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	// Swap the way a published index is swapped: new link renamed over the old one.
	tmp := filepath.Join(dir, ".index.tmp")
	if err := os.Symlink(genB, tmp); err != nil {
		t.Fatal(err)
	}
	if err := os.Rename(tmp, target); err != nil {
		t.Fatal(err)
	}
	// Unrelated files in the same directory are ignored.
	if err := os.WriteFile(filepath.Join(dir, "other.txt"), []byte("x"), 0600); err != nil {
		t.Fatal(err)
	}

	time.Sleep(500 * time.Millisecond)
	got := rec.snapshot()
	if len(got) != 1 || got[0] != filepath.Clean(target) {
		t.Errorf("expected one change for %s, got %v", target, got)
	}
}

func TestWatcher_Start_createsMissingParentDirectory(t *testing.T) {
	base := t.TempDir()
	target := filepath.Join(base, "data", "nested", "index")

	w := NewWatcher([]string{target}, nil)
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if _, err := os.Stat(filepath.Dir(target)); err != nil {
		t.Errorf("parent directory should exist after Start: %v", err)
	}
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	w := NewWatcher([]string{filepath.Join(t.TempDir(), "index")}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	w.Stop()
	w.Stop()
	cancel()
}
