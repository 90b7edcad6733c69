// Package filewatcher watches the upload directory so files dropped in by
// hand are indexed and removed the same way uploads are.
package filewatcher

import (
	"context"
	"log"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/0xcro3dile/ragchat/internal/domain/ports"
)

const defaultDebounce = 500 * time.Millisecond

var _ ports.FileWatcher = (*FSNotifyWatcher)(nil)

// FSNotifyWatcher implements ports.FileWatcher using fsnotify. Bursts of
// events for one path are coalesced into a single event after the debounce
// window; the last operation wins.
type FSNotifyWatcher struct {
	watcher    *fsnotify.Watcher
	extensions map[string]bool
	debounce   time.Duration

	mu      sync.Mutex
	pending map[string]*time.Timer
}

// NewFSNotifyWatcher creates a watcher for files with the given extensions.
func NewFSNotifyWatcher(extensions []string) (*FSNotifyWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if len(extensions) == 0 {
		extensions = []string{".pdf", ".txt", ".md"}
	}
	exts := make(map[string]bool, len(extensions))
	for _, e := range extensions {
		exts[strings.ToLower(e)] = true
	}
	return &FSNotifyWatcher{
		watcher:    w,
		extensions: exts,
		debounce:   defaultDebounce,
		pending:    make(map[string]*time.Timer),
	}, nil
}

// Watch starts monitoring dir and emits debounced events until ctx is done.
func (w *FSNotifyWatcher) Watch(ctx context.Context, dir string) (<-chan ports.FileEvent, error) {
	if err := w.watcher.Add(dir); err != nil {
		return nil, err
	}

	raw := make(chan ports.FileEvent, 100)
	events := make(chan ports.FileEvent, 100)

	go func() {
		defer close(events)
		for {
			select {
			case <-ctx.Done():
				w.cancelPending()
				return
			case ev := <-raw:
				select {
				case events <- ev:
				case <-ctx.Done():
					return
				}
			case event, ok := <-w.watcher.Events:
				if !ok {
					return
				}
				if !w.isWatched(event.Name) {
					continue
				}
				op, ok := operation(event.Op)
				if !ok {
					continue
				}
				w.schedule(ctx, raw, ports.FileEvent{Path: event.Name, Operation: op})
			case err, ok := <-w.watcher.Errors:
				if !ok {
					return
				}
				log.Printf("[WARN] File watcher: %v", err)
			}
		}
	}()

	return events, nil
}

// Stop stops the watcher.
func (w *FSNotifyWatcher) Stop() error {
	w.cancelPending()
	return w.watcher.Close()
}

func (w *FSNotifyWatcher) schedule(ctx context.Context, out chan<- ports.FileEvent, ev ports.FileEvent) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.pending[ev.Path]; ok {
		t.Stop()
	}
	w.pending[ev.Path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.pending, ev.Path)
		w.mu.Unlock()
		select {
		case out <- ev:
		case <-ctx.Done():
		}
	})
}

func (w *FSNotifyWatcher) cancelPending() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for path, t := range w.pending {
		t.Stop()
		delete(w.pending, path)
	}
}

// operation maps an fsnotify op to a file operation. A rename is reported
// as a delete of the old name; the new name arrives as its own create.
func operation(op fsnotify.Op) (ports.FileOperation, bool) {
	switch {
	case op.Has(fsnotify.Create):
		return ports.FileCreated, true
	case op.Has(fsnotify.Write):
		return ports.FileModified, true
	case op.Has(fsnotify.Remove), op.Has(fsnotify.Rename):
		return ports.FileDeleted, true
	}
	return 0, false
}

func (w *FSNotifyWatcher) isWatched(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") || strings.HasPrefix(base, "~$") {
		return false
	}
	return w.extensions[strings.ToLower(filepath.Ext(path))]
}
