// Package filewatcher provides file system monitoring adapters.
// Adapter implementing ports.FileWatcher; used for the image drop folder.
package filewatcher

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	"github.com/0xcro3dile/searchchat-go/internal/domain/ports"
)

const defaultSettle = 300 * time.Millisecond

// FSNotifyWatcher implements ports.FileWatcher using fsnotify.
// Create and write events for a file are held until the file has been quiet
// for the settle period, then reported once.
type FSNotifyWatcher struct {
	watcher    *fsnotify.Watcher
	extensions []string // e.g. ".png", ".jpg"
	settle     time.Duration
	log        logrus.FieldLogger
}

// NewFSNotifyWatcher creates a new file watcher.
func NewFSNotifyWatcher(extensions []string, log logrus.FieldLogger) (*FSNotifyWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if len(extensions) == 0 {
		extensions = []string{".png", ".jpg", ".jpeg", ".gif", ".webp"}
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	return &FSNotifyWatcher{
		watcher:    w,
		extensions: extensions,
		settle:     defaultSettle,
		log:        log,
	}, nil
}

// SetSettle changes how long a file must stay unchanged before it is reported.
// Call before Watch.
func (w *FSNotifyWatcher) SetSettle(d time.Duration) {
	if d > 0 {
		w.settle = d
	}
}

// pendingFile is a created or written file waiting to settle.
type pendingFile struct {
	op       ports.FileOperation
	lastSeen time.Time
}

// Watch starts monitoring the directory and emits events.
func (w *FSNotifyWatcher) Watch(ctx context.Context, dir string) (<-chan ports.FileEvent, error) {
	if err := w.watcher.Add(dir); err != nil {
		return nil, err
	}

	events := make(chan ports.FileEvent, 100)

	go func() {
		defer close(events)

		ticker := time.NewTicker(w.settle / 4)
		defer ticker.Stop()
		pending := make(map[string]*pendingFile)

		emit := func(path string, op ports.FileOperation) bool {
			select {
			case events <- ports.FileEvent{Path: path, Operation: op}:
				return true
			case <-ctx.Done():
				return false
			}
		}

		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-w.watcher.Events:
				if !ok {
					return
				}
				if !w.isWatchedExtension(event.Name) {
					continue
				}

				switch {
				case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
					delete(pending, event.Name)
					if !emit(event.Name, ports.FileDeleted) {
						return
					}
				case event.Has(fsnotify.Create):
					pending[event.Name] = &pendingFile{op: ports.FileCreated, lastSeen: time.Now()}
				case event.Has(fsnotify.Write):
					if p, ok := pending[event.Name]; ok {
						p.lastSeen = time.Now()
					} else {
						pending[event.Name] = &pendingFile{op: ports.FileModified, lastSeen: time.Now()}
					}
				}
			case now := <-ticker.C:
				for path, p := range pending {
					if now.Sub(p.lastSeen) < w.settle {
						continue
					}
					delete(pending, path)
					if !emit(path, p.op) {
						return
					}
				}
			case err, ok := <-w.watcher.Errors:
				if !ok {
					return
				}
				w.log.WithError(err).WithField("dir", dir).Warn("watch error")
			}
		}
	}()

	return events, nil
}

// Stop stops the watcher.
func (w *FSNotifyWatcher) Stop() error {
	return w.watcher.Close()
}

func (w *FSNotifyWatcher) isWatchedExtension(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range w.extensions {
		if ext == e {
			return true
		}
	}
	return false
}
