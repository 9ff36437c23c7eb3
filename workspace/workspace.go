// Package workspace owns the lifetime of one browsed source: its directory
// cache, file tree, document I/O and optional watcher. Closing a workspace
// cancels every background load it started.
package workspace

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/brettbedarf/codetree"
	"github.com/brettbedarf/codetree/config"
	"github.com/brettbedarf/codetree/dircache"
	"github.com/brettbedarf/codetree/document"
	"github.com/brettbedarf/codetree/filetree"
	"github.com/brettbedarf/codetree/internal/util"
	"github.com/brettbedarf/codetree/textbuf"
	"github.com/brettbedarf/codetree/watch"
	"github.com/google/uuid"
)

var (
	ErrNotOpen     = errors.New("workspace not open")
	ErrAlreadyOpen = errors.New("workspace already open")
	ErrClosed      = errors.New("workspace closed")
)

// Workspace ties a storage provider to the cache and tree that present it
type Workspace struct {
	id       uuid.UUID
	cfg      *config.Config
	provider codetree.StorageProvider

	mu      sync.Mutex
	scope   context.Context
	cancel  context.CancelFunc
	cache   *dircache.Cache
	tree    *filetree.Tree
	watcher *watch.Watcher
	closed  bool
	wg      sync.WaitGroup
}

// DocumentResult is delivered by [Workspace.OpenDocumentAsync]
type DocumentResult struct {
	Buffer *textbuf.Buffer
	Info   document.Info
	Err    error
}

// New creates a Workspace for provider. A nil cfg uses the defaults.
func New(cfg *config.Config, provider codetree.StorageProvider) *Workspace {
	if cfg == nil {
		cfg = config.NewDefaultConfig()
	}
	return &Workspace{
		id:       uuid.New(),
		cfg:      cfg,
		provider: provider,
	}
}

func (w *Workspace) ID() uuid.UUID {
	return w.id
}

func (w *Workspace) Config() *config.Config {
	return w.cfg
}

func (w *Workspace) Provider() codetree.StorageProvider {
	return w.provider
}

// Open builds the cache and tree and expands the root. Background work is
// bound to ctx as well as to [Workspace.Close].
func (w *Workspace) Open(ctx context.Context) error {
	logger := util.GetLogger("Workspace.Open").With().Str("workspace", w.id.String()).Logger()

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return ErrClosed
	}
	if w.cache != nil {
		w.mu.Unlock()
		return ErrAlreadyOpen
	}

	w.scope, w.cancel = context.WithCancel(ctx)
	opts := []dircache.Option{
		dircache.WithMaxDepth(w.cfg.MaxDepth),
		dircache.WithContext(w.scope),
	}
	if w.cfg.Watch {
		if err := w.startWatcher(); err != nil {
			logger.Warn().Err(err).Msg("Watching disabled")
		} else {
			watcher := w.watcher
			opts = append(opts, dircache.WithLoadHook(func(p string) { _ = watcher.Add(p) }))
		}
	}
	w.cache = dircache.New(w.provider, opts...)
	w.tree = filetree.New(codetree.NewEntry("/", codetree.KindDir), w.cache)
	if w.watcher != nil {
		watcher, cache, scope := w.watcher, w.cache, w.scope
		w.wg.Go(func() {
			if err := watcher.Run(scope, cache); err != nil && !errors.Is(err, context.Canceled) {
				logger := util.GetLogger("Workspace.Watch")
				logger.Error().Err(err).Msg("Watcher stopped")
			}
		})
	}
	tree, watching := w.tree, w.watcher != nil
	w.mu.Unlock()

	logger.Info().Str("root", w.provider.Root()).Int("max_depth", w.cfg.MaxDepth).Bool("watch", watching).Msg("Workspace opened")
	if err := tree.Expand(ctx, tree.Root()); err != nil {
		return fmt.Errorf("open workspace: %w", err)
	}
	return nil
}

func (w *Workspace) startWatcher() error {
	local, ok := w.provider.(watch.Provider)
	if !ok {
		return fmt.Errorf("provider %s is not on a local filesystem", w.provider.Root())
	}
	watcher, err := watch.New(local)
	if err != nil {
		return err
	}
	w.watcher = watcher
	return nil
}

func closedErr(closed bool) error {
	if closed {
		return ErrClosed
	}
	return nil
}

// state returns the open components or an error if the workspace is not usable
func (w *Workspace) state() (*dircache.Cache, *filetree.Tree, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil, nil, ErrClosed
	}
	if w.cache == nil {
		return nil, nil, ErrNotOpen
	}
	return w.cache, w.tree, nil
}

// Tree returns the file tree, or nil before Open
func (w *Workspace) Tree() *filetree.Tree {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.tree
}

// Cache returns the directory cache, or nil before Open
func (w *Workspace) Cache() *dircache.Cache {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.cache
}

// Watching reports whether external changes are being tracked
func (w *Workspace) Watching() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.watcher != nil && !w.closed
}

func (w *Workspace) documentOptions() document.Options {
	return document.OptionsFromConfig(w.cfg)
}

// OpenDocument reads the document at p with the workspace encoding
func (w *Workspace) OpenDocument(ctx context.Context, p string) (*textbuf.Buffer, document.Info, error) {
	if _, _, err := w.state(); err != nil {
		return nil, document.Info{}, err
	}
	return document.Read(ctx, w.provider, p, w.documentOptions())
}

// OpenDocumentAsync reads p in the background. The read stops when either
// ctx is done or the workspace is closed. The channel receives exactly one
// result.
func (w *Workspace) OpenDocumentAsync(ctx context.Context, p string) <-chan DocumentResult {
	out := make(chan DocumentResult, 1)

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed || w.cache == nil {
		out <- DocumentResult{Err: cmp.Or(closedErr(w.closed), ErrNotOpen)}
		close(out)
		return out
	}

	// registered under mu so Close cannot miss it
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(w.scope, cancel)
	w.wg.Go(func() {
		defer close(out)
		defer cancel()
		defer stop()
		buf, info, err := document.Read(ctx, w.provider, p, w.documentOptions())
		out <- DocumentResult{Buffer: buf, Info: info, Err: err}
	})
	return out
}

// SaveDocument writes buf to p with the given line ending and updates the
// cached entry when its directory is loaded. from is the Info returned when
// the document was opened; its encoding and BOM are written back. Pass the
// zero Info for a new document.
func (w *Workspace) SaveDocument(ctx context.Context, p string, buf *textbuf.Buffer, from document.Info, le document.LineEnding) (document.Info, error) {
	logger := util.GetLogger("Workspace.SaveDocument")

	cache, _, err := w.state()
	if err != nil {
		return document.Info{}, err
	}

	opts := w.documentOptions()
	opts.LineEnding = le
	opts.BOM = from.BOM
	if from.Encoding != "" {
		opts.Encoding = from.Encoding
	}
	info, err := document.Write(ctx, w.provider, p, buf, opts)
	if err != nil {
		return info, err
	}

	e, err := w.provider.Stat(ctx, info.Path)
	if err != nil {
		logger.Debug().Err(err).Str("path", info.Path).Msg("Saved document not found")
		return info, nil
	}
	if err := cache.Create(e); err != nil && !errors.Is(err, codetree.ErrParentNotLoaded) {
		logger.Warn().Err(err).Str("path", info.Path).Msg("Failed to update cache")
	}
	return info, nil
}

// Refresh reloads the directory p and re-expands its tree node if visible
func (w *Workspace) Refresh(ctx context.Context, p string) error {
	cache, tree, err := w.state()
	if err != nil {
		return err
	}
	p = codetree.CleanPath(p)
	if _, err := cache.Refresh(ctx, p); err != nil {
		return err
	}
	if node, ok := tree.Find(p); ok && node.Expanded() {
		return tree.Refresh(ctx, node)
	}
	return nil
}

// Close cancels in-flight loads and waits for background work to finish.
// It is safe to call more than once.
func (w *Workspace) Close() error {
	logger := util.GetLogger("Workspace.Close")

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	cancel, cache, watcher := w.cancel, w.cache, w.watcher
	w.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	var err error
	if watcher != nil {
		err = watcher.Close()
	}
	if cache != nil {
		cache.Close()
	}
	w.wg.Wait()
	logger.Info().Str("workspace", w.id.String()).Msg("Workspace closed")
	return err
}
