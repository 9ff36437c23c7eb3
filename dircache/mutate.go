package dircache

import (
	"context"
	"fmt"
	"path"
	"slices"

	"github.com/brettbedarf/codetree"
	"github.com/brettbedarf/codetree/internal/metrics"
	"github.com/brettbedarf/codetree/internal/util"
	"github.com/puzpuzpuz/xsync/v4"
)

// Invalidate removes e from its parent's cached list. If e is a directory its
// own cached children are dropped as well; deeper levels are left in place
// and become unreachable until reloaded.
// Returns false if the parent was never loaded or did not contain e.
func (c *Cache) Invalidate(e codetree.Entry) bool {
	logger := util.GetLogger("DirCache.Invalidate")
	p := codetree.CleanPath(e.Path)

	if e.IsDir() {
		c.CancelPrefetch(p)
		if _, ok := c.slots.LoadAndDelete(p); ok {
			metrics.RecordInvalidation()
			logger.Debug().Str("path", p).Msg("Dropped cached directory")
		}
	}

	if p == "/" {
		return false
	}

	removed := false
	c.slots.Compute(path.Dir(p), func(cur *slot, loaded bool) (*slot, xsync.ComputeOp) {
		if !loaded || cur.state() != Loaded {
			return cur, xsync.CancelOp
		}
		i := indexOf(cur.entries, p)
		if i < 0 {
			return cur, xsync.CancelOp
		}
		removed = true
		return loadedSlot(slices.Delete(cloneEntries(cur.entries), i, i+1)), xsync.UpdateOp
	})

	metrics.SetCachedDirs(c.slots.Size())
	logger.Trace().Str("path", p).Bool("removed", removed).Msg("Invalidate finished")
	return removed
}

// InvalidatePath is [Cache.Invalidate] for callers that only know the path.
// The entry's kind is taken from the parent's cached list; when the parent is
// not loaded any cached children of p are still dropped.
func (c *Cache) InvalidatePath(p string) bool {
	p = codetree.CleanPath(p)
	if e, ok := c.find(p); ok {
		return c.Invalidate(e)
	}
	if p != "/" {
		c.CancelPrefetch(p)
		if _, ok := c.slots.LoadAndDelete(p); ok {
			metrics.RecordInvalidation()
		}
	}
	return false
}

// Create inserts e into its parent's cached list at its sorted position,
// replacing any entry with the same path. The parent must already be loaded,
// otherwise the error wraps [codetree.ErrParentNotLoaded].
func (c *Cache) Create(e codetree.Entry) error {
	logger := util.GetLogger("DirCache.Create")

	e.Path = codetree.CleanPath(e.Path)
	if e.Name == "" {
		e.Name = path.Base(e.Path)
	}
	if e.Path == "/" {
		return fmt.Errorf("create %s: root has no parent", e.Path)
	}
	parent := e.Parent()

	inserted := false
	c.slots.Compute(parent, func(cur *slot, loaded bool) (*slot, xsync.ComputeOp) {
		if !loaded || cur.state() != Loaded {
			return cur, xsync.CancelOp
		}
		inserted = true
		return loadedSlot(insertSorted(cur.entries, e)), xsync.UpdateOp
	})
	if !inserted {
		logger.Debug().Str("path", e.Path).Str("parent", parent).Msg("Parent not loaded")
		return fmt.Errorf("create %s: %w", e.Path, codetree.ErrParentNotLoaded)
	}

	logger.Debug().Str("path", e.Path).Str("kind", string(e.Kind)).Msg("Created entry")
	return nil
}

// Rename is [Cache.Invalidate] of from followed by [Cache.Create] of to.
// from is removed even if creating to fails.
func (c *Cache) Rename(from, to codetree.Entry) error {
	c.Invalidate(from)
	return c.Create(to)
}

// Refresh drops the cached children of p and loads them again
func (c *Cache) Refresh(ctx context.Context, p string) ([]codetree.Entry, error) {
	p = codetree.CleanPath(p)
	c.CancelPrefetch(p)
	c.slots.Delete(p)
	return c.Load(ctx, p)
}

// find returns the cached entry for p from its parent's list
func (c *Cache) find(p string) (codetree.Entry, bool) {
	if p == "/" {
		return codetree.Entry{}, false
	}
	s, ok := c.slots.Load(path.Dir(p))
	if !ok || s.state() != Loaded {
		return codetree.Entry{}, false
	}
	if i := indexOf(s.entries, p); i >= 0 {
		return s.entries[i], true
	}
	return codetree.Entry{}, false
}

func indexOf(entries []codetree.Entry, p string) int {
	return slices.IndexFunc(entries, func(e codetree.Entry) bool {
		return e.Path == p
	})
}

// insertSorted returns a new slice with e at its sorted position
func insertSorted(entries []codetree.Entry, e codetree.Entry) []codetree.Entry {
	out := cloneEntries(entries)
	if i := indexOf(out, e.Path); i >= 0 {
		out = slices.Delete(out, i, i+1)
	}
	i, _ := slices.BinarySearchFunc(out, e, Compare)
	return slices.Insert(out, i, e)
}
