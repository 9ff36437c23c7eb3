// Package dircache maintains a concurrent mapping from absolute directory
// paths to their sorted child entries. Directories are loaded lazily with
// per-path single-flight and a bounded background prefetch of deeper levels.
package dircache

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/brettbedarf/codetree"
	"github.com/brettbedarf/codetree/internal/metrics"
	"github.com/brettbedarf/codetree/internal/util"
	"github.com/puzpuzpuz/xsync/v4"
)

// DefaultMaxDepth is the number of levels [Cache.Load] reads, counting the
// requested directory itself.
const DefaultMaxDepth = 2

// LoadState reports whether a path's children are present in the cache
type LoadState int

const (
	NotLoaded LoadState = iota
	Loading
	Loaded
)

func (s LoadState) String() string {
	switch s {
	case Loading:
		return "loading"
	case Loaded:
		return "loaded"
	default:
		return "not loaded"
	}
}

// slot holds the children of one directory. A slot is published to the map
// before its scan starts and done is closed once entries (or err) are final.
// Loaded slots are never mutated; edits replace them with a new slot.
type slot struct {
	done    chan struct{}
	entries []codetree.Entry
	err     error // non-nil if the scan was abandoned
}

func newSlot() *slot {
	return &slot{done: make(chan struct{})}
}

func loadedSlot(entries []codetree.Entry) *slot {
	s := &slot{done: make(chan struct{}), entries: entries}
	close(s.done)
	return s
}

func (s *slot) state() LoadState {
	select {
	case <-s.done:
		if s.err != nil {
			return NotLoaded
		}
		return Loaded
	default:
		return Loading
	}
}

// Cache is safe for concurrent use. The zero value is not usable; create
// instances with [New].
type Cache struct {
	provider codetree.StorageProvider
	maxDepth int
	onLoad   func(path string)

	slots *xsync.Map[string, *slot]
	tasks *xsync.Map[string, *task] // in-flight prefetches by path

	scope  context.Context
	cancel context.CancelFunc
	mu     sync.Mutex // guards closed and wg.Add
	closed bool
	wg     sync.WaitGroup
}

// Option configures a [Cache]
type Option func(*Cache)

// WithMaxDepth sets how many levels a load reads eagerly. Values below 1 are
// treated as 1, which disables background prefetch.
func WithMaxDepth(n int) Option {
	return func(c *Cache) {
		c.maxDepth = max(n, 1)
	}
}

// WithLoadHook registers fn to be called after a directory's children are
// read and stored. It is not called for directories cached empty after a read
// error. fn runs on the loading goroutine and must not block.
func WithLoadHook(fn func(path string)) Option {
	return func(c *Cache) {
		c.onLoad = fn
	}
}

// WithContext ties the cache's background work to parent. Cancelling parent
// cancels every prefetch, same as [Cache.Close].
func WithContext(parent context.Context) Option {
	return func(c *Cache) {
		c.scope = parent
	}
}

func New(provider codetree.StorageProvider, opts ...Option) *Cache {
	c := &Cache{
		provider: provider,
		maxDepth: DefaultMaxDepth,
		slots:    xsync.NewMap[string, *slot](),
		tasks:    xsync.NewMap[string, *task](),
		scope:    context.Background(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.scope, c.cancel = context.WithCancel(c.scope)
	return c
}

// Compare orders directories before files, then by byte-wise name.
func Compare(a, b codetree.Entry) int {
	if a.IsDir() != b.IsDir() {
		if a.IsDir() {
			return -1
		}
		return 1
	}
	return cmp.Or(strings.Compare(a.Name, b.Name), strings.Compare(a.Path, b.Path))
}

// MaxDepth returns the configured eager load depth
func (c *Cache) MaxDepth() int {
	return c.maxDepth
}

// State returns the load state of the directory at p
func (c *Cache) State(p string) LoadState {
	s, ok := c.slots.Load(codetree.CleanPath(p))
	if !ok {
		return NotLoaded
	}
	return s.state()
}

// GetChildren returns a copy of the cached children of p. The result is never
// nil; it is empty both for an empty directory and for one that was never
// loaded. Use [Cache.Lookup] or [Cache.State] to tell the two apart.
func (c *Cache) GetChildren(p string) []codetree.Entry {
	entries, ok := c.Lookup(p)
	if !ok {
		return []codetree.Entry{}
	}
	return entries
}

// Lookup returns a copy of the cached children of p and whether p is loaded
func (c *Cache) Lookup(p string) ([]codetree.Entry, bool) {
	s, ok := c.slots.Load(codetree.CleanPath(p))
	if !ok || s.state() != Loaded {
		return nil, false
	}
	return cloneEntries(s.entries), true
}

// Paths returns the sorted list of loaded directory paths
func (c *Cache) Paths() []string {
	paths := make([]string, 0, c.slots.Size())
	c.slots.Range(func(p string, s *slot) bool {
		if s.state() == Loaded {
			paths = append(paths, p)
		}
		return true
	})
	slices.Sort(paths)
	return paths
}

// Load returns the sorted children of p, reading storage only if p is not
// already cached. See [Cache.LoadLayer].
func (c *Cache) Load(ctx context.Context, p string) ([]codetree.Entry, error) {
	return c.LoadLayer(ctx, p, 0, c.maxDepth)
}

// LoadLayer returns the sorted children of p. A cached list is returned as is.
// Otherwise the directory is scanned once, no matter how many callers ask
// concurrently, and if depth+1 < maxDepth every child directory is loaded in
// the background one level deeper.
//
// A storage error is not returned: it is logged and p is cached as empty.
// The only errors are from ctx, in which case p is left uncached.
func (c *Cache) LoadLayer(ctx context.Context, p string, depth, maxDepth int) ([]codetree.Entry, error) {
	logger := util.GetLogger("DirCache.Load")
	p = codetree.CleanPath(p)
	logger.Trace().Str("path", p).Int("depth", depth).Int("maxDepth", maxDepth).Msg("Load called")

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		s, loaded := c.slots.LoadOrStore(p, newSlot())
		if !loaded {
			metrics.RecordCacheMiss()
			entries, err := c.scan(ctx, p, s)
			if err != nil {
				return nil, err
			}
			if depth+1 < maxDepth {
				c.prefetch(entries, depth+1, maxDepth)
			}
			return cloneEntries(entries), nil
		}

		select {
		case <-s.done:
			if s.err != nil {
				continue // abandoned by its loader; try again
			}
			metrics.RecordCacheHit()
			return cloneEntries(s.entries), nil
		default:
		}

		metrics.RecordCacheJoin()
		logger.Trace().Str("path", p).Msg("Joining in-flight load")
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-s.done:
			if s.err != nil {
				continue
			}
			return cloneEntries(s.entries), nil
		}
	}
}

// scan reads p from storage and completes s. On cancellation s is marked
// abandoned and removed so the next caller starts over.
func (c *Cache) scan(ctx context.Context, p string, s *slot) ([]codetree.Entry, error) {
	logger := util.GetLogger("DirCache.scan")

	start := time.Now()
	entries, err := c.provider.ReadDir(ctx, p)
	metrics.RecordDirScan(time.Since(start), err == nil)

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			logger.Debug().Err(ctxErr).Str("path", p).Msg("Directory scan abandoned")
			s.err = ctxErr
			close(s.done)
			c.dropSlot(p, s)
			return nil, ctxErr
		}
		logger.Warn().Err(err).Str("path", p).Msg("Failed to read directory, caching as empty")
		entries = nil
	}
	readOK := err == nil

	sorted := cloneEntries(entries)
	slices.SortFunc(sorted, Compare)
	s.entries = sorted
	close(s.done)

	logger.Debug().Str("path", p).Int("count", len(sorted)).Msg("Directory loaded")
	metrics.SetCachedDirs(c.slots.Size())
	if readOK && c.onLoad != nil {
		c.onLoad(p)
	}
	return sorted, nil
}

// dropSlot removes p only if it still maps to s
func (c *Cache) dropSlot(p string, s *slot) {
	c.slots.Compute(p, func(cur *slot, loaded bool) (*slot, xsync.ComputeOp) {
		if loaded && cur == s {
			return nil, xsync.DeleteOp
		}
		return cur, xsync.CancelOp
	})
}

// Close cancels all background prefetches and waits for them to return.
// The cache remains readable after Close.
func (c *Cache) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()

	c.cancel()
	c.wg.Wait()
}

func cloneEntries(entries []codetree.Entry) []codetree.Entry {
	out := make([]codetree.Entry, len(entries))
	copy(out, entries)
	return out
}
