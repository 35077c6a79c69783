// Package watch triggers rebuilds when the documented source tree changes.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"git.home.luguber.info/inful/docpublish/internal/logfields"
)

// Watcher monitors source paths and invokes the rebuild callback after a
// debounce window, so bursts of editor writes cause one rebuild.
type Watcher struct {
	watcher  *fsnotify.Watcher
	paths    []string
	ignore   []string // path prefixes never triggering rebuilds
	debounce time.Duration
	onChange func(ctx context.Context)
	trigger  chan struct{}
}

// New creates a watcher over the given paths. Directories are watched
// recursively. Paths under any ignore prefix (build and publish output) are
// filtered out to avoid rebuild loops.
func New(paths, ignore []string, debounce time.Duration, onChange func(ctx context.Context)) (*Watcher, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("no paths to watch")
	}
	if onChange == nil {
		return nil, fmt.Errorf("onChange callback is required")
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	absIgnore := make([]string, 0, len(ignore))
	for _, p := range ignore {
		if abs, err := filepath.Abs(p); err == nil {
			absIgnore = append(absIgnore, abs)
		}
	}

	w := &Watcher{
		watcher:  fsw,
		paths:    paths,
		ignore:   absIgnore,
		debounce: debounce,
		onChange: onChange,
		trigger:  make(chan struct{}, 1),
	}

	for _, p := range paths {
		if err := w.addRecursive(p); err != nil {
			_ = fsw.Close()
			return nil, err
		}
	}
	return w, nil
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if w.ignored(path) || strings.HasPrefix(d.Name(), ".") && path != root {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
		return nil
	})
}

func (w *Watcher) ignored(path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	for _, prefix := range w.ignore {
		if abs == prefix || strings.HasPrefix(abs, prefix+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

// Start begins monitoring. It blocks until ctx is canceled.
func (w *Watcher) Start(ctx context.Context) error {
	slog.Info("Watching for source changes",
		slog.Any("paths", w.paths),
		slog.Duration("debounce", w.debounce))

	go w.debounceLoop(ctx)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			slog.Error("Watcher error", logfields.Error(err))
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if w.ignored(event.Name) {
		return
	}
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}

	// New directories need watching too.
	if event.Op&fsnotify.Create != 0 {
		if err := w.addRecursive(event.Name); err != nil {
			slog.Debug("Could not extend watch", logfields.Path(event.Name), logfields.Error(err))
		}
	}

	slog.Debug("Source change detected", logfields.Path(event.Name), slog.String("op", event.Op.String()))
	select {
	case w.trigger <- struct{}{}:
	default: // rebuild already pending
	}
}

// debounceLoop coalesces triggers until the debounce window passes quietly.
func (w *Watcher) debounceLoop(ctx context.Context) {
	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return
		case <-w.trigger:
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}
		case <-timerC:
			timer = nil
			timerC = nil
			slog.Info("Source settled, rebuilding")
			w.onChange(ctx)
		}
	}
}

// Close stops the underlying filesystem watcher.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
