package projectfile

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Applied pairs a project file with the project created for it.
type Applied struct {
	Definition *Definition
	ProjectID  string
}

type trackedFile struct {
	Applied
	modTime time.Time
}

// Watcher keeps a store in step with a directory of project files. New
// files create projects, modified files are synced onto their project and
// removed files delete it.
type Watcher struct {
	dir     string
	applier *Applier
	logger  *zap.Logger

	mu      sync.Mutex
	tracked map[string]*trackedFile
}

func NewWatcher(dir string, applier *Applier, logger *zap.Logger) *Watcher {
	return &Watcher{
		dir:     dir,
		applier: applier,
		logger:  logger,
		tracked: make(map[string]*trackedFile),
	}
}

// Sync performs one pass over the directory and reports how many projects
// were created, updated or removed. A broken file is skipped and reported
// in the returned error; the other files are still processed.
func (w *Watcher) Sync(ctx context.Context) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	paths, err := projectPaths(w.dir)
	if err != nil {
		return 0, err
	}

	var errs []error
	changed := 0
	seen := make(map[string]bool, len(paths))
	for _, path := range paths {
		seen[path] = true
		ok, err := w.syncFile(ctx, path)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if ok {
			changed++
		}
	}

	for path, tf := range w.tracked {
		if seen[path] {
			continue
		}
		if err := w.applier.Remove(ctx, tf.ProjectID); err != nil {
			errs = append(errs, fmt.Errorf("removing project for %s: %w", path, err))
			continue
		}
		w.logger.Info("Removed project for deleted file",
			zap.String("file", path),
			zap.String("project", tf.ProjectID))
		delete(w.tracked, path)
		changed++
	}

	return changed, errors.Join(errs...)
}

func (w *Watcher) syncFile(ctx context.Context, path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		return false, err
	}

	tf, known := w.tracked[path]
	if known && info.ModTime().Equal(tf.modTime) {
		return false, nil
	}

	def, err := Load(path)
	if err != nil {
		return false, err
	}

	if known && sameIdentity(tf.Definition, def) {
		if err := w.applier.Sync(ctx, tf.ProjectID, def); err != nil {
			return false, fmt.Errorf("syncing %s: %w", path, err)
		}
		tf.Definition = def
		tf.modTime = info.ModTime()
		w.logger.Info("Synced modified project file",
			zap.String("file", path),
			zap.String("project", tf.ProjectID))
		return true, nil
	}

	if known {
		if err := w.applier.Remove(ctx, tf.ProjectID); err != nil {
			return false, fmt.Errorf("replacing project for %s: %w", path, err)
		}
		delete(w.tracked, path)
	}

	p, err := w.applier.Apply(ctx, def)
	if err != nil {
		return false, fmt.Errorf("applying %s: %w", path, err)
	}
	w.tracked[path] = &trackedFile{
		Applied: Applied{Definition: def, ProjectID: p.ID},
		modTime: info.ModTime(),
	}
	return true, nil
}

// sameIdentity reports whether two definitions name the same project.
func sameIdentity(a, b *Definition) bool {
	return a.Datacenter.Name == b.Datacenter.Name && a.Project == b.Project
}

// Projects lists the tracked projects ordered by file path.
func (w *Watcher) Projects() []Applied {
	w.mu.Lock()
	defer w.mu.Unlock()

	out := make([]Applied, 0, len(w.tracked))
	for _, tf := range w.tracked {
		out = append(out, tf.Applied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Definition.Path < out[j].Definition.Path })
	return out
}

// Run syncs the directory every interval until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			n, err := w.Sync(ctx)
			if err != nil {
				w.logger.Warn("Project directory sync incomplete",
					zap.String("dir", w.dir),
					zap.Error(err))
			}
			if n > 0 {
				w.logger.Debug("Project directory synced",
					zap.String("dir", w.dir),
					zap.Int("changed", n))
			}
		}
	}
}
