// Package watch keeps a [dircache.Cache] in sync with external changes to a
// local workspace using fsnotify. Only directories that have been loaded into
// the cache are watched.
package watch

import (
	"context"
	"errors"
	"sync"

	"github.com/brettbedarf/codetree"
	"github.com/brettbedarf/codetree/dircache"
	"github.com/brettbedarf/codetree/internal/util"
	"github.com/fsnotify/fsnotify"
)

var ErrClosed = errors.New("watcher closed")

// Provider is a storage provider backed by the OS filesystem
type Provider interface {
	codetree.StorageProvider
	OSPath(p string) string
	EntryPath(osPath string) (string, bool)
}

type Watcher struct {
	provider Provider
	fsw      *fsnotify.Watcher

	mu      sync.Mutex
	watched map[string]struct{} // entry paths
	closed  bool
}

func New(provider Provider) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		provider: provider,
		fsw:      fsw,
		watched:  map[string]struct{}{},
	}, nil
}

// Add starts watching the directory at entry path p. Adding a watched path
// is a no-op.
func (w *Watcher) Add(p string) error {
	logger := util.GetLogger("Watcher.Add")
	p = codetree.CleanPath(p)

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}
	if _, ok := w.watched[p]; ok {
		return nil
	}
	if err := w.fsw.Add(w.provider.OSPath(p)); err != nil {
		logger.Debug().Err(err).Str("path", p).Msg("Failed to watch directory")
		return err
	}
	w.watched[p] = struct{}{}
	logger.Trace().Str("path", p).Msg("Watching directory")
	return nil
}

// Remove stops watching p
func (w *Watcher) Remove(p string) {
	p = codetree.CleanPath(p)
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.watched[p]; !ok {
		return
	}
	delete(w.watched, p)
	if !w.closed {
		// the OS drops watches on deleted directories by itself
		_ = w.fsw.Remove(w.provider.OSPath(p))
	}
}

// Watched returns the number of watched directories
func (w *Watcher) Watched() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.watched)
}

// Run watches every directory already loaded in cache and then applies
// filesystem events to it until ctx is done or the watcher is closed.
func (w *Watcher) Run(ctx context.Context, cache *dircache.Cache) error {
	logger := util.GetLogger("Watcher.Run")

	for _, p := range cache.Paths() {
		_ = w.Add(p)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handle(ctx, cache, ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			logger.Warn().Err(err).Msg("Watch error")
		}
	}
}

func (w *Watcher) handle(ctx context.Context, cache *dircache.Cache, ev fsnotify.Event) {
	logger := util.GetLogger("Watcher.handle")

	p, ok := w.provider.EntryPath(ev.Name)
	if !ok {
		return
	}
	logger.Trace().Str("path", p).Str("op", ev.Op.String()).Msg("Event")

	switch {
	case ev.Has(fsnotify.Create):
		e, err := w.provider.Stat(ctx, p)
		if err != nil {
			// already gone again
			logger.Debug().Err(err).Str("path", p).Msg("Created entry vanished")
			return
		}
		if err := cache.Create(e); err != nil {
			if !errors.Is(err, codetree.ErrParentNotLoaded) {
				logger.Warn().Err(err).Str("path", p).Msg("Failed to add entry")
			}
			return
		}
		logger.Debug().Str("path", p).Msg("Entry added")

	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		cache.InvalidatePath(p)
		w.Remove(p)
		logger.Debug().Str("path", p).Msg("Entry removed")
	}
}

func (w *Watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	return w.fsw.Close()
}
