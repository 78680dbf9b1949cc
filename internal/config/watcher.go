package config

import (
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/tomtom215/procmux/pkg/logging"
)

// Watcher watches a single config file for writes and notifies callers that
// a reload() may be warranted (spec section 4.G names reload as an outer
// control-surface operation; this is the optional trigger for it - it never
// reloads on its own, since reload is only safe when nothing is running).
type Watcher struct {
	mu      sync.Mutex
	fsw     *fsnotify.Watcher
	path    string
	Changed chan struct{}
	stopped bool
}

// NewWatcher starts watching path's parent directory (fsnotify watches
// directories, not bare files, so renames/atomic-saves are still observed)
// and returns a Watcher whose Changed channel receives a value on
// write/create/rename events touching path. Changed holds at most one
// pending value; events that arrive while one is pending are coalesced
// into it.
func NewWatcher(path string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	dir := filepath.Dir(path)
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, err
	}

	w := &Watcher{
		fsw:     fsw,
		path:    filepath.Clean(path),
		Changed: make(chan struct{}, 1),
	}
	go w.run()
	return w, nil
}

func (w *Watcher) run() {
	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if event.Name != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			select {
			case w.Changed <- struct{}{}:
			default:
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			logging.Warn("Config", "watcher error for %s: %v", w.path, err)
		}
	}
}

// Close stops the underlying fsnotify watcher. Safe to call more than once.
func (w *Watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return nil
	}
	w.stopped = true
	return w.fsw.Close()
}
