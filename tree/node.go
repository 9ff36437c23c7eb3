package tree

import (
	"sync"
	"sync/atomic"
)

const (
	// RootDepth is the depth of the root node; its children are at depth 0
	RootDepth = -1
	// RootID is the id of every root node. Other ids start at 1.
	RootID uint64 = 0
)

var lastID atomic.Uint64 // process-wide; never reset

// Node is one row of a [Tree]. Data, name, depth and id are fixed at
// creation; the flags and children change as the tree is expanded.
type Node[T any] struct {
	Data T

	name   string
	depth  int
	id     uint64
	parent *Node[T]

	mu          sync.RWMutex // Protects the fields below
	hasChildren bool
	expandable  bool
	expanded    bool
	attached    bool
	children    []*Node[T]
}

// NewNode creates a node one level below parent. id should come from
// [Tree.GenerateID]. The node is not visible until the parent is expanded.
func NewNode[T any](parent *Node[T], data T, name string, id uint64) *Node[T] {
	depth := 0
	if parent != nil {
		depth = parent.depth + 1
	}
	return &Node[T]{
		Data:   data,
		name:   name,
		depth:  depth,
		id:     id,
		parent: parent,
	}
}

// NewRootNode creates a root node. Roots are always expandable.
func NewRootNode[T any](data T, name string) *Node[T] {
	return &Node[T]{
		Data:       data,
		name:       name,
		depth:      RootDepth,
		id:         RootID,
		expandable: true,
		attached:   true,
	}
}

func (n *Node[T]) Name() string {
	return n.name
}

func (n *Node[T]) Depth() int {
	return n.depth
}

func (n *Node[T]) ID() uint64 {
	return n.id
}

// Parent returns nil for the root
func (n *Node[T]) Parent() *Node[T] {
	return n.parent
}

func (n *Node[T]) IsRoot() bool {
	return n.depth == RootDepth
}

// HasChildren is a hint: it may be false for a directory that was never read
func (n *Node[T]) HasChildren() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.hasChildren
}

func (n *Node[T]) SetHasChildren(v bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.hasChildren = v
}

func (n *Node[T]) Expandable() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.expandable
}

func (n *Node[T]) SetExpandable(v bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.expandable = v
}

func (n *Node[T]) Expanded() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.expanded
}

// Attached reports whether the node is still part of its tree. Collapsing a
// node detaches its whole subtree.
func (n *Node[T]) Attached() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.attached
}

// Children returns a copy of the current children; nil if not expanded
func (n *Node[T]) Children() []*Node[T] {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.children == nil {
		return nil
	}
	out := make([]*Node[T], len(n.children))
	copy(out, n.children)
	return out
}

// setChildren attaches children and marks n expanded.
// Previous children are detached. Returns false if n itself is detached.
func (n *Node[T]) setChildren(children []*Node[T]) bool {
	n.mu.Lock()
	if !n.attached {
		n.mu.Unlock()
		return false
	}
	old := n.children
	n.children = children
	n.expanded = true
	n.hasChildren = len(children) > 0
	n.mu.Unlock()

	for _, c := range old {
		c.detach()
	}
	for _, c := range children {
		c.mu.Lock()
		c.attached = true
		c.mu.Unlock()
	}
	return true
}

// collapse drops the children of n
func (n *Node[T]) collapse() {
	n.mu.Lock()
	old := n.children
	n.children = nil
	n.expanded = false
	n.mu.Unlock()

	for _, c := range old {
		c.detach()
	}
}

func (n *Node[T]) detach() {
	n.mu.Lock()
	n.attached = false
	n.mu.Unlock()
	n.collapse()
}
