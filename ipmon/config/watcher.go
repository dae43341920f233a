package config

import (
	"context"
	"fmt"
	"path/filepath"

	"git.unix.lgbt/diamondburned/ipmon/ipmon"
	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
)

// Watcher reloads a Store whenever its file changes on disk.
type Watcher struct {
	// Reloaded receives the path every time the store was reloaded
	// successfully. Sends are dropped if nobody is receiving.
	Reloaded chan string

	w     *fsnotify.Watcher
	j     ipmon.Journaler
	store *Store
	path  string
}

// TryWatch attempts to watch the store's file asynchronously, but it will
// log into the journaler if, for some reason, it fails to watch it.
func TryWatch(ctx context.Context, store *Store, j ipmon.Journaler) *Watcher {
	w := newWatcher(store, j)

	go func() {
		if err := w.init(); err != nil {
			j.Write(&ipmon.EventWarning{
				Component: "config",
				Error:     fmt.Sprintf("not watching config because: %v", err),
			})
			return
		}

		w.watch(ctx)
	}()

	return w
}

// NewWatcher watches the store's file and reloads it on changes. The watcher
// is stopped once the given context is canceled.
func NewWatcher(ctx context.Context, store *Store, j ipmon.Journaler) (*Watcher, error) {
	w := newWatcher(store, j)
	if err := w.init(); err != nil {
		return nil, err
	}

	go w.watch(ctx)
	return w, nil
}

func newWatcher(store *Store, j ipmon.Journaler) *Watcher {
	return &Watcher{
		Reloaded: make(chan string, 1),
		j:        j,
		store:    store,
		path:     filepath.Clean(store.Path()),
	}
}

func (w *Watcher) init() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "failed to create watcher")
	}

	// Editors and Save replace the file rather than write into it, so the
	// directory is watched instead of the file.
	if err := watcher.Add(filepath.Dir(w.path)); err != nil {
		watcher.Close()
		return errors.Wrap(err, "failed to watch dir")
	}

	w.w = watcher
	return nil
}

func (w *Watcher) watch(ctx context.Context) {
	defer w.w.Close()

	for {
		select {
		case <-ctx.Done():
			return

		case err := <-w.w.Errors:
			w.j.Write(&ipmon.EventWarning{
				Component: "config",
				Error:     "inotify error: " + err.Error(),
			})

		case evt := <-w.w.Events:
			if !isConfigWrite(evt, w.path) {
				continue
			}

			if err := w.store.Reload(); err != nil {
				w.j.Write(&ipmon.EventWarning{
					Component: "config",
					Error:     fmt.Sprintf("not reloading %s: %v", w.path, err),
				})
				continue
			}

			w.j.Write(&ipmon.EventConfigReloaded{Path: w.path})

			select {
			case w.Reloaded <- w.path:
			default:
			}
		}
	}
}

// isConfigWrite returns true if the event leaves new contents at path.
func isConfigWrite(evt fsnotify.Event, path string) bool {
	if filepath.Clean(evt.Name) != path {
		return false
	}

	return evt.Op&(fsnotify.Write|fsnotify.Create) != 0
}
