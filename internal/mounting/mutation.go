// Package mounting turns the stream of revisions published by a tree into
// transactions a host can apply to its live view hierarchy.
//
// A Coordinator keeps the last revision it diffed (the base) and the latest
// revision pushed by the tree. Each pull diffs base against latest, so
// commits published between two pulls are coalesced into one transaction.
package mounting

import (
	"fmt"

	"github.com/agentic-research/revtree/internal/graph"
)

// MutationType enumerates the operations of a transaction.
type MutationType uint8

const (
	MutationCreate MutationType = iota + 1
	MutationDelete
	MutationInsert
	MutationRemove
	MutationUpdate
	MutationMove
)

func (t MutationType) String() string {
	switch t {
	case MutationCreate:
		return "Create"
	case MutationDelete:
		return "Delete"
	case MutationInsert:
		return "Insert"
	case MutationRemove:
		return "Remove"
	case MutationUpdate:
		return "Update"
	case MutationMove:
		return "Move"
	default:
		return fmt.Sprintf("MutationType(%d)", uint8(t))
	}
}

// Mutation is one instruction for the host.
//
// Old is set for Delete, Remove, Update and Move; New for Create, Insert,
// Update and Move. ParentTag and Index are set for Insert, Remove and Move,
// where Index is the destination; FromIndex is only meaningful for Move.
type Mutation struct {
	Type      MutationType
	ParentTag graph.Tag
	Old       *graph.Node
	New       *graph.Node
	Index     int
	FromIndex int
}

// Node returns the node the mutation is about, preferring the new version.
func (m Mutation) Node() *graph.Node {
	if m.New != nil {
		return m.New
	}
	return m.Old
}

// Tag returns the tag of the affected node.
func (m Mutation) Tag() graph.Tag { return m.Node().Tag() }

// Structural reports whether the mutation changes the shape of the view
// hierarchy rather than the content of a single view.
func (m Mutation) Structural() bool { return m.Type != MutationUpdate }

// String renders the mutation in mounting-log form.
func (m Mutation) String() string {
	n := m.Node()
	switch m.Type {
	case MutationInsert, MutationRemove:
		return fmt.Sprintf("%s {type: %q, parentTag: %d, index: %d, tag: %d}",
			m.Type, n.Kind().String(), m.ParentTag, m.Index, n.Tag())
	case MutationMove:
		return fmt.Sprintf("%s {type: %q, parentTag: %d, from: %d, to: %d, tag: %d}",
			m.Type, n.Kind().String(), m.ParentTag, m.FromIndex, m.Index, n.Tag())
	default:
		return fmt.Sprintf("%s {type: %q, tag: %d}", m.Type, n.Kind().String(), n.Tag())
	}
}
