package vector

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/hyperjump/faqrag/internal/models"
)

// Persisted indexes live in generation directories next to the location:
//
//	<parent>/.<base>.generations/<generation>/
//	<parent>/<base> -> .<base>.generations/<generation>
//
// A new generation is fully written and synced before the location symlink is
// replaced with a rename, so readers observe either the old or the new index.

// keepGenerations is how many generations survive a publish, including the new one.
const keepGenerations = 2

func generationsDir(location string) string {
	return filepath.Join(filepath.Dir(location), "."+filepath.Base(location)+".generations")
}

// publish writes a generation with write and repoints location at it. On any error
// the previous index at location is left untouched.
func publish(location, generation string, write func(dir string) error) error {
	location = filepath.Clean(location)
	root := generationsDir(location)
	if err := os.MkdirAll(root, 0755); err != nil {
		return fmt.Errorf("create generations dir: %w", err)
	}
	if generation == "" {
		generation = uuid.NewString()
	}

	tmp := filepath.Join(root, generation+".tmp")
	if err := os.MkdirAll(tmp, 0755); err != nil {
		return fmt.Errorf("create staging dir: %w", err)
	}
	if err := write(tmp); err != nil {
		_ = os.RemoveAll(tmp)
		return err
	}
	final := filepath.Join(root, generation)
	if err := os.Rename(tmp, final); err != nil {
		_ = os.RemoveAll(tmp)
		return fmt.Errorf("finalize generation: %w", err)
	}

	link := filepath.Join(filepath.Dir(location), "."+filepath.Base(location)+".link-"+generation)
	target := filepath.Join(filepath.Base(root), generation)
	if err := os.Symlink(target, link); err != nil {
		_ = os.RemoveAll(final)
		return fmt.Errorf("create link: %w", err)
	}

	// A plain directory at location predates generations; move it aside since a
	// symlink cannot be renamed over a directory.
	if fi, err := os.Lstat(location); err == nil && fi.IsDir() {
		if err := os.Rename(location, filepath.Join(root, "legacy-"+generation)); err != nil {
			_ = os.Remove(link)
			_ = os.RemoveAll(final)
			return fmt.Errorf("move legacy index aside: %w", err)
		}
	}
	if err := os.Rename(link, location); err != nil {
		_ = os.Remove(link)
		_ = os.RemoveAll(final)
		return fmt.Errorf("swap index location: %w", err)
	}
	syncDir(filepath.Dir(location))

	pruneGenerations(root, generation)
	return nil
}

// resolve returns the directory holding the index at location.
func resolve(location string) (string, error) {
	dir, err := filepath.EvalSymlinks(location)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: no index at %s", models.ErrLoad, location)
		}
		return "", fmt.Errorf("%w: resolve %s: %w", models.ErrLoad, location, err)
	}
	fi, err := os.Stat(dir)
	if err != nil {
		return "", fmt.Errorf("%w: stat %s: %w", models.ErrLoad, dir, err)
	}
	if !fi.IsDir() {
		return "", fmt.Errorf("%w: %s is not an index directory", models.ErrLoad, location)
	}
	return dir, nil
}

// pruneGenerations removes all but the newest keepGenerations generations, never
// touching current. Leftover staging directories are removed too.
func pruneGenerations(root, current string) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return
	}
	type gen struct {
		name string
		mod  int64
	}
	var gens []gen
	for _, e := range entries {
		if !e.IsDir() || e.Name() == current {
			continue
		}
		if strings.HasSuffix(e.Name(), ".tmp") {
			_ = os.RemoveAll(filepath.Join(root, e.Name()))
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		gens = append(gens, gen{name: e.Name(), mod: info.ModTime().UnixNano()})
	}
	sort.Slice(gens, func(i, j int) bool { return gens[i].mod > gens[j].mod })
	for i, g := range gens {
		if i < keepGenerations-1 {
			continue
		}
		_ = os.RemoveAll(filepath.Join(root, g.name))
	}
}

func syncDir(dir string) {
	if d, err := os.Open(dir); err == nil {
		_ = d.Sync()
		_ = d.Close()
	}
}
