package watcher

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// Reloader is told when the watched file changes. It reports whether the
// in-memory state actually changed.
type Reloader interface {
	Reload(ctx context.Context) (bool, error)
}

// Watcher watches the inventory file for external edits
type Watcher struct {
	path     string
	target   Reloader
	debounce time.Duration
	log      logrus.FieldLogger
}

// New creates a new file watcher
func New(path string, target Reloader, log logrus.FieldLogger) *Watcher {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Watcher{
		path:     path,
		target:   target,
		debounce: 500 * time.Millisecond,
		log:      log.WithFields(logrus.Fields{"component": "watcher", "path": path}),
	}
}

// WithDebounce sets the debounce duration
func (w *Watcher) WithDebounce(d time.Duration) *Watcher {
	w.debounce = d
	return w
}

// Watch blocks until ctx is cancelled or the watcher fails to start. Rapid
// bursts of writes collapse into one reload.
func (w *Watcher) Watch(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	// Watch the directory so atomic renames over the file are seen
	dir := filepath.Dir(w.path)
	filename := filepath.Base(w.path)
	if err := fw.Add(dir); err != nil {
		return err
	}
	w.log.Info("watching inventory file for changes")

	var (
		mu    sync.Mutex
		timer *time.Timer
	)
	defer func() {
		mu.Lock()
		if timer != nil {
			timer.Stop()
		}
		mu.Unlock()
	}()

	for {
		select {
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != filename {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}

			mu.Lock()
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.debounce, func() { w.reload(ctx) })
			mu.Unlock()

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.WithError(err).Warn("watcher error")

		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (w *Watcher) reload(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	changed, err := w.target.Reload(ctx)
	if err != nil {
		w.log.WithError(err).Warn("failed to reload inventory, keeping current state")
		return
	}
	if changed {
		w.log.Info("inventory reloaded from disk")
	}
}
