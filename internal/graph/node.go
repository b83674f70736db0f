package graph

import (
	"fmt"
	"slices"
	"sync/atomic"
)

// Node is the universal primitive of a surface tree.
// Once sealed, a node and its entire subtree are immutable and may be shared
// by any number of revisions at the same time.
type Node struct {
	tag      Tag
	surface  SurfaceID
	kind     Kind
	props    Props
	state    State
	children []*Node
	sealed   atomic.Bool
}

// Spec describes a node to create from scratch.
type Spec struct {
	Tag      Tag
	Surface  SurfaceID
	Kind     Kind
	Props    Props
	State    State
	Children []*Node
}

// Fragment lists the parts of a node that a clone replaces.
// Nil fields keep the source value. A non-nil, empty Children slice
// (see NoChildren) clears the children.
type Fragment struct {
	Props    *Props
	State    *State
	Children []*Node
}

// NoChildren is the fragment value that clears all children.
var NoChildren = []*Node{}

// NewNode creates an unsealed node.
func NewNode(s Spec) (*Node, error) {
	if !s.Kind.Valid() {
		return nil, fmt.Errorf("node %d: invalid kind %s", s.Tag, s.Kind)
	}
	if s.Kind.LeafOnly() && len(s.Children) > 0 {
		return nil, fmt.Errorf("node %d (%s): %w", s.Tag, s.Kind, ErrLeafChildren)
	}
	for i, c := range s.Children {
		if c == nil {
			return nil, fmt.Errorf("node %d child %d: %w", s.Tag, i, ErrNilChild)
		}
	}
	return &Node{
		tag:      s.Tag,
		surface:  s.Surface,
		kind:     s.Kind,
		props:    s.Props,
		state:    s.State,
		children: slices.Clone(s.Children),
	}, nil
}

// MustNode is NewNode for statically known trees; it panics on error.
func MustNode(s Spec) *Node {
	n, err := NewNode(s)
	if err != nil {
		panic(err)
	}
	return n
}

func (n *Node) Tag() Tag           { return n.tag }
func (n *Node) Surface() SurfaceID { return n.surface }
func (n *Node) Kind() Kind         { return n.kind }
func (n *Node) Props() Props       { return n.props }
func (n *Node) State() State       { return n.state }

// Sealed reports whether the node has been published.
func (n *Node) Sealed() bool { return n.sealed.Load() }

// NumChildren returns the number of children.
func (n *Node) NumChildren() int { return len(n.children) }

// ChildAt returns the i-th child.
func (n *Node) ChildAt(i int) *Node { return n.children[i] }

// Children returns a copy of the child list.
func (n *Node) Children() []*Node { return slices.Clone(n.children) }

// Clone returns an unsealed copy of n with the fragment applied.
// Children that are not replaced are shared with n.
func (n *Node) Clone(f Fragment) *Node {
	c := &Node{
		tag:      n.tag,
		surface:  n.surface,
		kind:     n.kind,
		props:    n.props,
		state:    n.state,
		children: n.children,
	}
	if f.Props != nil {
		c.props = *f.Props
	}
	if f.State != nil {
		c.state = *f.State
	}
	if f.Children != nil {
		c.children = slices.Clone(f.Children)
	}
	return c
}

// CloneWithProps clones n replacing its props.
func (n *Node) CloneWithProps(p Props) *Node { return n.Clone(Fragment{Props: &p}) }

// CloneWithState clones n replacing its state.
func (n *Node) CloneWithState(s State) *Node { return n.Clone(Fragment{State: &s}) }

// CloneWithChildren clones n replacing its children.
func (n *Node) CloneWithChildren(children []*Node) *Node {
	if children == nil {
		children = NoChildren
	}
	return n.Clone(Fragment{Children: children})
}

// Seal marks the subtree rooted at n as immutable. Already sealed subtrees
// are skipped, so a shared subtree is sealed exactly once.
func (n *Node) Seal() {
	if n.sealed.Load() {
		return
	}
	for _, c := range n.children {
		c.Seal()
	}
	// Children first: a sealed node always has a sealed subtree.
	n.sealed.Store(true)
}

// SameContent reports whether two nodes carry equal kind, props and state.
// Children are not compared.
func (n *Node) SameContent(o *Node) bool {
	if n == o {
		return true
	}
	return n.kind == o.kind && n.props.Equal(o.props) && n.state.Equal(o.state)
}

func (n *Node) String() string {
	return fmt.Sprintf("%s#%d", n.kind, n.tag)
}

// CloneAlongPath replaces the node with the given tag by fn(node) and clones
// every ancestor up to root. Subtrees off the path are reused untouched.
// It returns false if the tag is not in the tree or fn returns nil.
func CloneAlongPath(root *Node, tag Tag, fn func(*Node) *Node) (*Node, bool) {
	path := FindPath(root, tag)
	if path == nil {
		return nil, false
	}
	replacement := fn(path[len(path)-1])
	if replacement == nil {
		return nil, false
	}
	for i := len(path) - 2; i >= 0; i-- {
		parent := path[i]
		children := parent.Children()
		for j, c := range children {
			if c == path[i+1] {
				children[j] = replacement
				break
			}
		}
		replacement = parent.CloneWithChildren(children)
	}
	return replacement, true
}
