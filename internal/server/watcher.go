package server

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const debounceDelay = 300 * time.Millisecond

type reloader interface {
	Reload(ctx context.Context) error
}

// watcher reloads the server when one of the dataset files changes. Bursts of
// events are coalesced into a single reload once debounceDelay has passed
// without a further event.
type watcher struct {
	fs     *fsnotify.Watcher
	target reloader
	names  map[string]bool
	delay  time.Duration
	log    *zap.Logger
}

func newWatcher(s *Server, dir string, names []string) (*watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	s.log.Info("Watching data directory", zap.String("dir", dir))
	return &watcher{fs: fsw, target: s, names: set, delay: debounceDelay, log: s.log}, nil
}

// relevant reports whether event touches a watched dataset.
func (w *watcher) relevant(event fsnotify.Event) bool {
	if !w.names[filepath.Base(event.Name)] {
		return false
	}
	return event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0
}

func (w *watcher) run(ctx context.Context) {
	defer w.fs.Close()

	timer := time.NewTimer(w.delay)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if !w.relevant(event) {
				continue
			}
			w.log.Debug("Dataset changed", zap.String("path", event.Name), zap.String("op", event.Op.String()))
			timer.Reset(w.delay)

		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.log.Warn("File watcher error", zap.Error(err))

		case <-timer.C:
			if err := w.target.Reload(ctx); err != nil {
				w.log.Warn("Reload after change failed", zap.Error(err))
			}
		}
	}
}
