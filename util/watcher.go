package util

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ConfigChange describes the latest modification of a watched file.
type ConfigChange struct {
	Path string
	Op   string
	Time time.Time
}

// ConfigWatcher reports modifications of a single file. Bursts of file
// system events (editors often write, chmod and rename in quick
// succession) collapse into one pending notification; only the most
// recent change is retained.
type ConfigWatcher struct {
	path   string
	fsw    *fsnotify.Watcher
	mu     sync.Mutex
	latest ConfigChange
	notify chan struct{}
	done   chan struct{}
	wg     sync.WaitGroup
}

// WatchConfig starts watching path. The parent directory is watched so
// the file may be replaced by rename.
func WatchConfig(path string) (*ConfigWatcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", path, err)
	}
	dir, err := filepath.EvalSymlinks(filepath.Dir(abs))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", path, err)
	}
	abs = filepath.Join(dir, filepath.Base(abs))

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := fsw.Add(filepath.Dir(abs)); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}

	w := newConfigWatcher(abs)
	w.fsw = fsw
	w.wg.Add(1)
	go w.loop()
	return w, nil
}

func newConfigWatcher(path string) *ConfigWatcher {
	return &ConfigWatcher{
		path:   path,
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

func (w *ConfigWatcher) loop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				w.signal(ConfigChange{Path: w.path, Op: event.Op.String(), Time: time.Now()})
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			slog.Error("Config watcher error", "path", w.path, "error", err)
		}
	}
}

// signal records change and posts a notification unless one is pending.
// It never blocks.
func (w *ConfigWatcher) signal(change ConfigChange) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.latest = change
	select {
	case w.notify <- struct{}{}:
	default:
	}
}

// Changes returns the notification channel for use in select statements.
func (w *ConfigWatcher) Changes() <-chan struct{} {
	return w.notify
}

// Latest returns the most recent change.
func (w *ConfigWatcher) Latest() ConfigChange {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.latest
}

func (w *ConfigWatcher) Close() error {
	close(w.done)
	var err error
	if w.fsw != nil {
		err = w.fsw.Close()
	}
	w.wg.Wait()
	return err
}
