package dircache

import (
	"context"

	"github.com/brettbedarf/codetree"
	"github.com/brettbedarf/codetree/internal/metrics"
	"github.com/brettbedarf/codetree/internal/util"
	"github.com/puzpuzpuz/xsync/v4"
)

type task struct {
	cancel context.CancelFunc
}

// prefetch starts one background load per child directory
func (c *Cache) prefetch(entries []codetree.Entry, depth, maxDepth int) {
	for _, e := range entries {
		if e.IsDir() {
			c.spawn(e.Path, depth, maxDepth)
		}
	}
}

// spawn loads p in a goroutine whose context derives from the cache scope and
// is registered under p so it can be cancelled on its own.
func (c *Cache) spawn(p string, depth, maxDepth int) {
	logger := util.GetLogger("DirCache.prefetch")

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.wg.Add(1)
	c.mu.Unlock()

	ctx, cancel := context.WithCancel(c.scope)
	t := &task{cancel: cancel}
	if _, loaded := c.tasks.LoadOrStore(p, t); loaded {
		// already being prefetched
		cancel()
		c.wg.Done()
		return
	}

	metrics.PrefetchStarted()
	go func() {
		defer c.wg.Done()
		defer metrics.PrefetchFinished()
		defer cancel()
		defer c.tasks.Compute(p, func(cur *task, loaded bool) (*task, xsync.ComputeOp) {
			if loaded && cur == t {
				return nil, xsync.DeleteOp
			}
			return cur, xsync.CancelOp
		})

		if _, err := c.LoadLayer(ctx, p, depth, maxDepth); err != nil {
			logger.Trace().Err(err).Str("path", p).Msg("Prefetch cancelled")
		}
	}()
}

// CancelPrefetch cancels the background load of p, if one is running.
// The path is left uncached unless its scan had already finished.
func (c *Cache) CancelPrefetch(p string) bool {
	t, ok := c.tasks.LoadAndDelete(codetree.CleanPath(p))
	if !ok {
		return false
	}
	t.cancel()
	return true
}

// Pending returns the number of background loads in flight
func (c *Cache) Pending() int {
	return c.tasks.Size()
}
