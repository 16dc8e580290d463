// Package watcher re-imports action packages when files under their
// directories change. It is a development-mode convenience: production
// imports are operator- or pipeline-triggered.
package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// ReimportFunc is invoked with a package directory after its contents
// settled. Errors are logged, not fatal: a broken edit should not stop
// the watch loop.
type ReimportFunc func(ctx context.Context, packageDir string) error

// Watcher triggers re-imports on package-directory changes.
type Watcher struct {
	logger   zerolog.Logger
	watcher  *fsnotify.Watcher
	debounce time.Duration

	mu     sync.Mutex
	timers map[string]*time.Timer
}

// New creates a Watcher. A zero debounce defaults to 500ms.
func New(logger zerolog.Logger, debounce time.Duration) *Watcher {
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}
	return &Watcher{
		logger:   logger.With().Str("component", "watcher").Logger(),
		debounce: debounce,
		timers:   make(map[string]*time.Timer),
	}
}

// Watch starts watching the given package directories and blocks until
// ctx is cancelled. Each change debounces per package directory before
// reimport is called.
func (w *Watcher) Watch(ctx context.Context, packageDirs []string, reimport ReimportFunc) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()
	w.watcher = watcher

	roots := make([]string, 0, len(packageDirs))
	for _, dir := range packageDirs {
		abs, err := filepath.Abs(dir)
		if err != nil {
			w.logger.Warn().Err(err).Str("dir", dir).Msg("Failed to resolve package dir for watching")
			continue
		}
		if err := w.watchTree(abs); err != nil {
			w.logger.Warn().Err(err).Str("dir", abs).Msg("Failed to watch package dir")
			continue
		}
		roots = append(roots, abs)
	}

	w.logger.Info().Int("packages", len(roots)).Msg("Watching action packages for changes")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if isHidden(event.Name) {
				continue
			}

			// New subdirectories need to be picked up for further events.
			if event.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					_ = w.watchTree(event.Name)
				}
			}

			root := owningRoot(roots, event.Name)
			if root == "" {
				continue
			}

			w.logger.Debug().
				Str("file", event.Name).
				Str("op", event.Op.String()).
				Msg("Package file changed")

			w.schedule(ctx, root, reimport)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn().Err(err).Msg("Watch error")
		}
	}
}

// schedule debounces a re-import of the package at root.
func (w *Watcher) schedule(ctx context.Context, root string, reimport ReimportFunc) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if timer, ok := w.timers[root]; ok {
		timer.Stop()
	}
	w.timers[root] = time.AfterFunc(w.debounce, func() {
		if ctx.Err() != nil {
			return
		}
		w.logger.Info().Str("dir", root).Msg("Re-importing changed action package")
		if err := reimport(ctx, root); err != nil {
			w.logger.Error().Err(err).Str("dir", root).Msg("Re-import failed")
		}
	})
}

// watchTree adds dir and all its subdirectories to the watcher.
func (w *Watcher) watchTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if isHidden(path) {
			return filepath.SkipDir
		}
		return w.watcher.Add(path)
	})
}

// owningRoot returns the watched package root containing path, or "".
func owningRoot(roots []string, path string) string {
	for _, root := range roots {
		if path == root || strings.HasPrefix(path, root+string(filepath.Separator)) {
			return root
		}
	}
	return ""
}

func isHidden(path string) bool {
	base := filepath.Base(path)
	return strings.HasPrefix(base, ".") && base != "." && base != ".."
}
