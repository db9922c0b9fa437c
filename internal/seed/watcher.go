package seed

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// watcherDebounceInterval is how often the watcher checks for a pending
// reload, batching rapid editor writes into a single apply.
const watcherDebounceInterval = 500 * time.Millisecond

// Watcher re-applies the seed file whenever it changes on disk. A bad
// edit logs a warning and keeps the last good registrations; the
// watcher stays up.
type Watcher struct {
	path      string
	registrar Registrar
	logger    *slog.Logger
}

// NewWatcher creates a watcher for the given seed file.
func NewWatcher(path string, r Registrar, logger *slog.Logger) *Watcher {
	return &Watcher{path: path, registrar: r, logger: logger}
}

// Watch blocks until the context is cancelled, reloading the seed file
// on change. The parent directory is watched rather than the file
// itself, so atomic saves (write temp, rename over) are still seen.
func (w *Watcher) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("watching seed dir: %w", err)
	}

	w.logger.Info("seed watcher started", slog.String("path", w.path))

	// Debounce: batch rapid writes into a single reload.
	var pendingSince time.Time

	ticker := time.NewTicker(watcherDebounceInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return fmt.Errorf("fsnotify events channel closed unexpectedly")
			}

			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}

			if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) || event.Has(fsnotify.Rename) {
				pendingSince = time.Now()
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return fmt.Errorf("fsnotify errors channel closed unexpectedly")
			}

			w.logger.Warn("watcher error", slog.String("error", err.Error()))

		case <-ticker.C:
			if pendingSince.IsZero() || time.Since(pendingSince) < 300*time.Millisecond {
				continue
			}

			pendingSince = time.Time{}
			w.reload(ctx)
		}
	}
}

func (w *Watcher) reload(ctx context.Context) {
	f, err := Load(w.path)
	if err != nil {
		w.logger.Warn("seed reload skipped", slog.String("error", err.Error()))
		return
	}

	if err := Apply(ctx, f, w.registrar, w.logger); err != nil {
		w.logger.Warn("seed reload failed", slog.String("error", err.Error()))
		return
	}

	w.logger.Info("seed reloaded", slog.String("path", w.path))
}
