// Package watch triggers a callback when the instruction documents change.
package watch

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce coalesces bursts of editor writes into one callback.
const DefaultDebounce = 500 * time.Millisecond

// Watch watches the parent directories of paths (relative to root) and
// calls onChange once per burst of Create, Write, or Rename events on any
// of the named files, until ctx is cancelled. onChange receives the paths,
// as given, that changed during the burst. Events on other files in the
// same directories are ignored.
//
// Directories are watched rather than files because atomic writes replace
// the file, which would drop a file-level watch.
func Watch(ctx context.Context, root string, paths []string, debounce time.Duration, logger *slog.Logger, onChange func(changed []string)) error {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	targets := make(map[string]string, len(paths))
	dirs := make(map[string]bool)
	for _, p := range paths {
		abs := filepath.Clean(filepath.Join(root, p))
		targets[abs] = p
		dirs[filepath.Dir(abs)] = true
	}
	for dir := range dirs {
		if info, statErr := os.Stat(dir); statErr != nil || !info.IsDir() {
			logger.Warn("watcher: directory missing, not watched", slog.String("path", dir))
			continue
		}
		if err := w.Add(dir); err != nil {
			return err
		}
	}

	logger.Info("watcher: started", slog.String("root", root), slog.Int("files", len(targets)))

	var timer *time.Timer
	var fire <-chan time.Time
	pending := make(map[string]bool)

	schedule := func() {
		if timer == nil {
			timer = time.NewTimer(debounce)
			fire = timer.C
			return
		}
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(debounce)
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-fire:
			changed := make([]string, 0, len(pending))
			for p := range pending {
				changed = append(changed, p)
			}
			slices.Sort(changed)
			clear(pending)
			logger.Debug("watcher: change settled, running callback", slog.Any("paths", changed))
			onChange(changed)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			rel, ok := targets[filepath.Clean(ev.Name)]
			if !ok {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			pending[rel] = true
			logger.Debug("watcher: change", slog.String("path", ev.Name), slog.String("op", ev.Op.String()))
			schedule()

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}
