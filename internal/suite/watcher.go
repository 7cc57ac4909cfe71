package suite

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"testpilot/internal/logging"

	"github.com/fsnotify/fsnotify"
)

// ChangeFunc receives the reloaded suite, or the error that prevented loading it.
type ChangeFunc func(ctx context.Context, s *Suite, err error)

// Watcher reloads a suite file after it changes. Rapid saves are collapsed
// into one reload once the file has been quiet for the debounce window.
type Watcher struct {
	path     string
	debounce time.Duration
	watcher  *fsnotify.Watcher
}

// NewWatcher watches the directory holding path so editors that replace the
// file on save are still seen.
func NewWatcher(path string, debounce time.Duration) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", path, err)
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}
	return &Watcher{path: abs, debounce: debounce, watcher: fw}, nil
}

// Run blocks until ctx is done, calling onChange after every settled change.
func (w *Watcher) Run(ctx context.Context, onChange ChangeFunc) error {
	defer w.watcher.Close()
	logging.Watch("watching %s", w.path)

	tick := time.NewTicker(w.debounce / 5)
	defer tick.Stop()
	var pending time.Time

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			pending = time.Now()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			logging.WatchWarn("watch error: %v", err)

		case <-tick.C:
			if pending.IsZero() || time.Since(pending) < w.debounce {
				continue
			}
			pending = time.Time{}
			s, err := Load(w.path)
			if err != nil {
				logging.WatchWarn("reload %s: %v", w.path, err)
			} else {
				logging.Watch("reloaded %s (%d cases)", w.path, len(s.TestCases))
			}
			onChange(ctx, s, err)
		}
	}
}
