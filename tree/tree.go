// Package tree is a generic lazily expanded tree. Children are produced on
// demand by a [Generator] and wrapped in [Node] values that carry the
// presentation state (depth, id, expanded).
package tree

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/brettbedarf/codetree/internal/util"
	"github.com/google/uuid"
)

var (
	ErrNotExpandable = errors.New("node is not expandable")
	ErrNodeDetached  = errors.New("node is detached from the tree")
)

// Generator supplies the payloads and nodes of a [Tree]. FetchChildren may do
// blocking I/O and is called without any tree lock held.
type Generator[T any] interface {
	FetchChildren(ctx context.Context, node *Node[T]) ([]T, error)
	CreateNode(parent *Node[T], data T, tree *Tree[T]) *Node[T]
	CreateRootNode() *Node[T]
}

type Tree[T any] struct {
	id      uuid.UUID
	gen     Generator[T]
	root    *Node[T]
	compare func(a, b T) int
	key     func(T) string
}

type Option[T any] func(*Tree[T])

// WithCompare orders the children of every expanded node. Without it children
// keep the order returned by the generator.
func WithCompare[T any](cmp func(a, b T) int) Option[T] {
	return func(t *Tree[T]) {
		t.compare = cmp
	}
}

// WithKey sets the identity used by [Tree.Refresh] and [Tree.Find].
// Defaults to the node name.
func WithKey[T any](key func(T) string) Option[T] {
	return func(t *Tree[T]) {
		t.key = key
	}
}

func New[T any](gen Generator[T], opts ...Option[T]) *Tree[T] {
	t := &Tree[T]{
		id:  uuid.New(),
		gen: gen,
	}
	for _, opt := range opts {
		opt(t)
	}
	t.root = gen.CreateRootNode()
	return t
}

// ID identifies this tree instance
func (t *Tree[T]) ID() uuid.UUID {
	return t.id
}

func (t *Tree[T]) Root() *Node[T] {
	return t.root
}

// GenerateID returns the next process-wide node id
func (t *Tree[T]) GenerateID() uint64 {
	return lastID.Add(1)
}

func (t *Tree[T]) keyOf(n *Node[T]) string {
	if t.key != nil {
		return t.key(n.Data)
	}
	return n.Name()
}

// Expand fetches the children of node and makes them visible. Expanding an
// already expanded node fetches again and replaces its children.
func (t *Tree[T]) Expand(ctx context.Context, node *Node[T]) error {
	logger := util.GetLogger("Tree.Expand")

	if !node.Expandable() {
		return fmt.Errorf("expand %q: %w", node.Name(), ErrNotExpandable)
	}
	if !node.Attached() {
		return fmt.Errorf("expand %q: %w", node.Name(), ErrNodeDetached)
	}

	data, err := t.gen.FetchChildren(ctx, node)
	if err != nil {
		logger.Debug().Err(err).Str("node", node.Name()).Msg("Failed to fetch children")
		return fmt.Errorf("expand %q: %w", node.Name(), err)
	}
	if t.compare != nil {
		slices.SortStableFunc(data, t.compare)
	}

	children := make([]*Node[T], 0, len(data))
	for _, d := range data {
		children = append(children, t.gen.CreateNode(node, d, t))
	}

	// node may have been collapsed away while fetching
	if !node.setChildren(children) {
		return fmt.Errorf("expand %q: %w", node.Name(), ErrNodeDetached)
	}
	logger.Trace().Str("node", node.Name()).Int("children", len(children)).Msg("Expanded")
	return nil
}

// Collapse hides the children of node. Their nodes are discarded; expanding
// again creates new ones.
func (t *Tree[T]) Collapse(node *Node[T]) {
	node.collapse()
}

// Toggle collapses an expanded node and expands a collapsed one
func (t *Tree[T]) Toggle(ctx context.Context, node *Node[T]) error {
	if node.Expanded() {
		t.Collapse(node)
		return nil
	}
	return t.Expand(ctx, node)
}

// Refresh fetches the children of node again. Descendants that were expanded
// before are expanded again when a child with the same key still exists.
func (t *Tree[T]) Refresh(ctx context.Context, node *Node[T]) error {
	keys := make(map[string]struct{})
	t.collectExpanded(node, keys)

	if err := t.Expand(ctx, node); err != nil {
		return err
	}
	return t.reexpand(ctx, node, keys)
}

func (t *Tree[T]) collectExpanded(node *Node[T], keys map[string]struct{}) {
	for _, c := range node.Children() {
		if c.Expanded() {
			keys[t.keyOf(c)] = struct{}{}
			t.collectExpanded(c, keys)
		}
	}
}

func (t *Tree[T]) reexpand(ctx context.Context, node *Node[T], keys map[string]struct{}) error {
	for _, c := range node.Children() {
		if _, ok := keys[t.keyOf(c)]; !ok || !c.Expandable() {
			continue
		}
		if err := t.Expand(ctx, c); err != nil {
			return err
		}
		if err := t.reexpand(ctx, c, keys); err != nil {
			return err
		}
	}
	return nil
}

// ExpandAll expands from the root until levels rows deep are visible.
// Nodes that are already expanded are not fetched again.
func (t *Tree[T]) ExpandAll(ctx context.Context, levels int) error {
	queue := []*Node[T]{t.root}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		if n.depth+1 >= levels || !n.Expandable() {
			continue
		}
		if !n.Expanded() {
			if err := t.Expand(ctx, n); err != nil {
				return err
			}
		}
		queue = append(queue, n.Children()...)
	}
	return nil
}

// Visible returns the attached nodes below the root in display order
func (t *Tree[T]) Visible() []*Node[T] {
	var rows []*Node[T]
	var walk func(n *Node[T])
	walk = func(n *Node[T]) {
		for _, c := range n.Children() {
			rows = append(rows, c)
			walk(c)
		}
	}
	walk(t.root)
	return rows
}

// Find returns the visible node with the given key
func (t *Tree[T]) Find(key string) (*Node[T], bool) {
	if t.keyOf(t.root) == key {
		return t.root, true
	}
	for _, n := range t.Visible() {
		if t.keyOf(n) == key {
			return n, true
		}
	}
	return nil, false
}
