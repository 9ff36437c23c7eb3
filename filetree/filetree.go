// Package filetree presents a [dircache.Cache] as a lazily expanded
// [tree.Tree] of filesystem entries.
package filetree

import (
	"context"

	"github.com/brettbedarf/codetree"
	"github.com/brettbedarf/codetree/dircache"
	"github.com/brettbedarf/codetree/internal/util"
	"github.com/brettbedarf/codetree/tree"
)

type Node = tree.Node[codetree.Entry]
type Tree = tree.Tree[codetree.Entry]

// Generator implements tree.Generator over a directory cache
type Generator struct {
	root  codetree.Entry
	cache *dircache.Cache
}

var _ tree.Generator[codetree.Entry] = (*Generator)(nil)

func NewGenerator(root codetree.Entry, cache *dircache.Cache) *Generator {
	root.Path = codetree.CleanPath(root.Path)
	root.Kind = codetree.KindDir
	if root.Name == "" {
		root.Name = codetree.NewEntry(root.Path, codetree.KindDir).Name
	}
	return &Generator{root: root, cache: cache}
}

// New returns a tree rooted at root, ordered like the cache and keyed by path
func New(root codetree.Entry, cache *dircache.Cache) *Tree {
	return tree.New[codetree.Entry](
		NewGenerator(root, cache),
		tree.WithCompare(dircache.Compare),
		tree.WithKey(func(e codetree.Entry) string { return e.Path }),
	)
}

// FetchChildren returns the cached children of node, loading the directory
// first when nothing is cached. It blocks on storage I/O and must not be
// called from a latency sensitive goroutine.
func (g *Generator) FetchChildren(ctx context.Context, node *Node) ([]codetree.Entry, error) {
	logger := util.GetLogger("FileTree.FetchChildren")
	p := node.Data.Path

	children := g.cache.GetChildren(p)
	if len(children) == 0 {
		loaded, err := g.cache.Load(ctx, p)
		if err != nil {
			return nil, err
		}
		children = loaded
	}

	// drop duplicate paths, keeping the first occurrence and cache order
	seen := make(map[string]struct{}, len(children))
	out := children[:0]
	for _, e := range children {
		if _, ok := seen[e.Path]; ok {
			logger.Debug().Str("path", e.Path).Msg("Duplicate entry skipped")
			continue
		}
		seen[e.Path] = struct{}{}
		out = append(out, e)
	}
	return out, nil
}

// CreateNode wraps e. HasChildren only reflects what is already cached, so a
// directory that was never loaded reports false until it is.
func (g *Generator) CreateNode(parent *Node, e codetree.Entry, t *Tree) *Node {
	n := tree.NewNode(parent, e, e.Name, t.GenerateID())
	n.SetExpandable(e.IsDir())
	if e.IsDir() {
		n.SetHasChildren(len(g.cache.GetChildren(e.Path)) > 0)
	}
	return n
}

// CreateRootNode returns the expandable root for the workspace directory
func (g *Generator) CreateRootNode() *Node {
	return tree.NewRootNode(g.root, g.root.Name)
}
