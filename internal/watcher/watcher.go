// Package watcher re-runs sync passes when files under a root change.
package watcher

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the quiet period after the last event before a sync
const DefaultDebounce = 2 * time.Second

// SyncFunc runs one sync pass. It returns busy=true when another pass holds
// the catalog, in which case the watcher retries after the next debounce.
type SyncFunc func(ctx context.Context) (busy bool, err error)

// Config configures a Watcher
type Config struct {
	Root           string
	IgnorePatterns []string
	Debounce       time.Duration
	Logger         *slog.Logger
}

// Watcher watches every non-ignored directory under Root
type Watcher struct {
	fsw      *fsnotify.Watcher
	root     string
	ignore   []string
	debounce time.Duration
	sync     SyncFunc
	logger   *slog.Logger

	mu     sync.Mutex
	dirs   map[string]bool
	passes int
}

// New creates a watcher. Nothing is watched until Run.
func New(cfg Config, fn SyncFunc) (*Watcher, error) {
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &Watcher{
		fsw:      fsw,
		root:     root,
		ignore:   cfg.IgnorePatterns,
		debounce: cfg.Debounce,
		sync:     fn,
		logger:   cfg.Logger,
		dirs:     make(map[string]bool),
	}, nil
}

// Passes returns the number of sync passes started so far
func (w *Watcher) Passes() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.passes
}

// Watched reports whether dir is in the watch set
func (w *Watcher) Watched(dir string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.dirs[dir]
}

func (w *Watcher) ignored(name string) bool {
	for _, p := range w.ignore {
		if ok, _ := filepath.Match(p, name); ok {
			return true
		}
	}
	return false
}

// addRecursive adds dir and its non-ignored subdirectories to the watch set
func (w *Watcher) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.root && w.ignored(d.Name()) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			w.logger.Debug("cannot watch directory",
				slog.String("path", path),
				slog.String("error", err.Error()))
			return nil
		}
		w.mu.Lock()
		w.dirs[path] = true
		w.mu.Unlock()
		return nil
	})
}

// relevant reports whether an event should schedule a sync
func (w *Watcher) relevant(event fsnotify.Event) bool {
	if event.Op == fsnotify.Chmod {
		return false
	}
	rel, err := filepath.Rel(w.root, event.Name)
	if err != nil {
		return false
	}
	for dir := rel; dir != "." && dir != string(filepath.Separator); dir = filepath.Dir(dir) {
		if w.ignored(filepath.Base(dir)) {
			return false
		}
	}
	return true
}

// Run watches until ctx is cancelled. An initial pass runs immediately.
func (w *Watcher) Run(ctx context.Context) error {
	defer func() { _ = w.fsw.Close() }()

	if err := w.addRecursive(w.root); err != nil {
		return err
	}
	w.logger.Info("watching", slog.String("root", w.root), slog.Duration("debounce", w.debounce))

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event) {
				continue
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := w.addRecursive(event.Name); err != nil {
						w.logger.Debug("cannot watch new directory",
							slog.String("path", event.Name),
							slog.String("error", err.Error()))
					}
				}
			}
			if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				w.mu.Lock()
				delete(w.dirs, event.Name)
				w.mu.Unlock()
			}
			resetTimer(timer, w.debounce)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", slog.String("error", err.Error()))

		case <-timer.C:
			w.mu.Lock()
			w.passes++
			w.mu.Unlock()

			busy, err := w.sync(ctx)
			switch {
			case ctx.Err() != nil:
				return nil
			case busy:
				w.logger.Debug("sync busy, retrying after debounce")
				resetTimer(timer, w.debounce)
			case err != nil:
				w.logger.Error("sync failed", slog.String("error", err.Error()))
			}
		}
	}
}

func resetTimer(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(d)
}
