// Package filewatcher watches the upload directory so documents dropped into
// it are ingested without a restart.
package filewatcher

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/0xcro3dile/ira-go/internal/domain/ports"
)

// DefaultDebounce is how long a path must stay quiet before its event is emitted.
const DefaultDebounce = 500 * time.Millisecond

// FSNotifyWatcher implements ports.FileWatcher using fsnotify.
// Bursts of events for one path (an upload is a create followed by many
// writes) collapse into a single event once the path settles.
type FSNotifyWatcher struct {
	watcher    *fsnotify.Watcher
	extensions map[string]bool
	debounce   time.Duration
	logger     *zap.Logger
}

// NewFSNotifyWatcher creates a new file watcher for the given extensions.
func NewFSNotifyWatcher(extensions []string, debounce time.Duration, logger *zap.Logger) (*FSNotifyWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if len(extensions) == 0 {
		extensions = []string{".pdf", ".txt", ".md"}
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	exts := make(map[string]bool, len(extensions))
	for _, e := range extensions {
		exts[strings.ToLower(e)] = true
	}

	return &FSNotifyWatcher{
		watcher:    w,
		extensions: exts,
		debounce:   debounce,
		logger:     logger,
	}, nil
}

// Watch starts monitoring dir. The returned channel closes when ctx is done
// or the watcher is stopped.
func (w *FSNotifyWatcher) Watch(ctx context.Context, dir string) (<-chan ports.FileEvent, error) {
	if err := w.watcher.Add(dir); err != nil {
		return nil, err
	}

	events := make(chan ports.FileEvent, 100)
	go w.loop(ctx, events)
	return events, nil
}

func (w *FSNotifyWatcher) loop(ctx context.Context, events chan<- ports.FileEvent) {
	var (
		mu      sync.Mutex
		pending = make(map[string]ports.FileOperation)
		timers  = make(map[string]*time.Timer)
		ready   = make(chan string, 100)
	)
	defer func() {
		mu.Lock()
		for _, t := range timers {
			t.Stop()
		}
		mu.Unlock()
		close(events)
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case path := <-ready:
			mu.Lock()
			op, ok := pending[path]
			delete(pending, path)
			delete(timers, path)
			mu.Unlock()
			if !ok {
				continue
			}
			select {
			case events <- ports.FileEvent{Path: path, Operation: op}:
			case <-ctx.Done():
				return
			}

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !w.isWatchedExtension(event.Name) {
				continue
			}
			op, ok := toOperation(event.Op)
			if !ok {
				continue
			}

			mu.Lock()
			prev, seen := pending[event.Name]
			// A create stays a create however many writes follow it.
			if !(seen && prev == ports.FileCreated && op == ports.FileModified) {
				pending[event.Name] = op
			}
			if t, ok := timers[event.Name]; ok {
				t.Reset(w.debounce)
			} else {
				path := event.Name
				timers[path] = time.AfterFunc(w.debounce, func() {
					select {
					case ready <- path:
					case <-ctx.Done():
					}
				})
			}
			mu.Unlock()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("file watcher error", zap.Error(err))
		}
	}
}

// Stop stops the watcher.
func (w *FSNotifyWatcher) Stop() error {
	return w.watcher.Close()
}

func (w *FSNotifyWatcher) isWatchedExtension(path string) bool {
	return w.extensions[strings.ToLower(filepath.Ext(path))]
}

func toOperation(op fsnotify.Op) (ports.FileOperation, bool) {
	switch {
	case op.Has(fsnotify.Create):
		return ports.FileCreated, true
	case op.Has(fsnotify.Write):
		return ports.FileModified, true
	case op.Has(fsnotify.Remove), op.Has(fsnotify.Rename):
		return ports.FileDeleted, true
	default:
		return 0, false
	}
}
