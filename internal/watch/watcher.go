// Package watch triggers rebuilds when files under a project directory change.
package watch

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/jonboulle/clockwork"

	"github.com/compulim/remotebuild/internal/foundation/errors"
	"github.com/compulim/remotebuild/internal/logfields"
)

// Options configures a Watcher.
type Options struct {
	Debounce time.Duration
	// Excluded reports whether a slash-separated path relative to the root is ignored.
	Excluded func(rel string, isDir bool) bool
	Clock    clockwork.Clock
	Logger   *slog.Logger
}

// Watcher monitors a directory tree and coalesces bursts of changes into a
// single rebuild.
type Watcher struct {
	root    string
	opts    Options
	fsw     *fsnotify.Watcher
	logger  *slog.Logger
	changed string
}

// New creates a watcher on root and every non-excluded directory below it.
func New(root string, opts Options) (*Watcher, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryFileSystem, "failed to resolve watch root").
			WithContext("root", root).Build()
	}
	if opts.Debounce <= 0 {
		return nil, errors.ValidationError("debounce must be > 0").Build()
	}
	if opts.Excluded == nil {
		opts.Excluded = func(string, bool) bool { return false }
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.RuntimeError("failed to create file watcher").WithCause(err).Build()
	}
	w := &Watcher{root: abs, opts: opts, fsw: fsw, logger: opts.Logger}
	if err := w.addTree(abs); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	return w, nil
}

// Close releases the underlying watcher.
func (w *Watcher) Close() error { return w.fsw.Close() }

func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if rel, ok := w.rel(p); ok && rel != "" && w.opts.Excluded(rel, true) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(p); err != nil {
			return errors.WrapError(err, errors.CategoryFileSystem, "failed to watch directory").
				WithContext("path", p).Build()
		}
		return nil
	})
}

func (w *Watcher) rel(p string) (string, bool) {
	r, err := filepath.Rel(w.root, p)
	if err != nil || r == ".." || strings.HasPrefix(r, ".."+string(filepath.Separator)) {
		return "", false
	}
	if r == "." {
		return "", true
	}
	return filepath.ToSlash(r), true
}

// relevant filters events for paths outside the tree, excluded paths and chmod-only changes.
func (w *Watcher) relevant(ev fsnotify.Event) bool {
	if ev.Op == fsnotify.Chmod {
		return false
	}
	rel, ok := w.rel(ev.Name)
	if !ok || rel == "" {
		return false
	}
	return !w.opts.Excluded(rel, isDirectory(ev.Name))
}

// Run waits for changes and calls build once per quiet period. Changes made
// while build runs schedule one more build. A build error is logged and does
// not stop the watcher. Run returns when ctx is done.
func (w *Watcher) Run(ctx context.Context, build func(context.Context) error) error {
	w.logger.Info("Watching for changes", logfields.Path(w.root), logfields.Duration(w.opts.Debounce))
	d := newDebouncer(w.opts.Clock, w.opts.Debounce)
	for {
		select {
		case <-ctx.Done():
			d.stop()
			return nil
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if !w.relevant(ev) {
				continue
			}
			if ev.Has(fsnotify.Create) && isDirectory(ev.Name) {
				if err := w.addTree(ev.Name); err != nil {
					w.logger.Warn("Failed to watch new directory", logfields.Path(ev.Name), logfields.Error(err))
				}
			}
			w.changed = ev.Name
			w.logger.Debug("Change detected", logfields.File(ev.Name), slog.String("op", ev.Op.String()))
			d.trigger()
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("File watcher error", logfields.Error(err))
		case <-d.fired():
			d.reset()
			w.logger.Info("Rebuilding after change", logfields.File(w.changed))
			if err := build(ctx); err != nil && ctx.Err() == nil {
				w.logger.Error("Rebuild failed", logfields.Error(err))
			}
		}
	}
}

func isDirectory(p string) bool {
	st, err := os.Stat(p)
	return err == nil && st.IsDir()
}
