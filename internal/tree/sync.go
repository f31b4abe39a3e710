package tree

import (
	"sync/atomic"

	"github.com/dgallion1/hl7lens/internal/selection"
)

// Apply recomputes selected and expanded flags for sel in one bottom-up pass.
// Only the deepest node matching sel is selected; the root and every
// ancestor of a match are expanded. None, or a path outside the tree,
// leaves nothing selected and only the root expanded.
func Apply(root *Node, sel selection.Selection) {
	if root == nil {
		return
	}
	p, ok := sel.Path()
	apply(root, p, ok)
}

func apply(n *Node, sel selection.Path, active bool) bool {
	level := 0
	if active && n.Path != nil {
		level = n.Path.MatchLevel(sel)
	}
	childMatch := false
	for _, c := range n.Children {
		if apply(c, sel, active) {
			childMatch = true
		}
	}
	n.Selected = level > 0 && !childMatch
	n.Expanded = n.Level == 0 || childMatch
	return level > 0 || childMatch
}

// Clone returns a deep copy of the tree.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	cp := *n
	cp.Children = make([]*Node, len(n.Children))
	for i, c := range n.Children {
		cp.Children[i] = c.Clone()
	}
	return &cp
}

// Walk visits nodes depth-first, parents before children. Returning false
// from fn skips the node's children.
func (n *Node) Walk(fn func(*Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	for _, c := range n.Children {
		c.Walk(fn)
	}
}

// Find returns the node built for path, if the tree has one.
func (n *Node) Find(path selection.Path) (*Node, bool) {
	var found *Node
	n.Walk(func(c *Node) bool {
		if found != nil {
			return false
		}
		if c.Path == nil {
			return true
		}
		if *c.Path == path {
			found = c
			return false
		}
		return c.Path.MatchLevel(path) > 0
	})
	return found, found != nil
}

// SelectedNodes returns the nodes currently flagged as selected.
func (n *Node) SelectedNodes() []*Node {
	var out []*Node
	n.Walk(func(c *Node) bool {
		if c.Selected {
			out = append(out, c)
		}
		return true
	})
	return out
}

// Snapshot publishes the current tree. Readers get an immutable tree;
// writers build a new one and swap it in.
type Snapshot struct {
	root atomic.Pointer[Node]
}

func NewSnapshot(root *Node) *Snapshot {
	s := &Snapshot{}
	s.root.Store(root)
	return s
}

// Load returns the current tree. It must not be modified.
func (s *Snapshot) Load() *Node {
	return s.root.Load()
}

// Store hands off a newly built tree.
func (s *Snapshot) Store(root *Node) {
	s.root.Store(root)
}

// Select publishes a copy of the current tree with sel applied and returns
// it. A concurrent Store wins over an in-flight Select, which then retries
// on the new tree.
func (s *Snapshot) Select(sel selection.Selection) *Node {
	for {
		cur := s.root.Load()
		next := cur.Clone()
		Apply(next, sel)
		if s.root.CompareAndSwap(cur, next) {
			return next
		}
	}
}
