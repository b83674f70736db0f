package mounting

import (
	"slices"

	"github.com/agentic-research/revtree/internal/graph"
)

// differ collects mutations per phase so that the final list can be applied
// in order: removes, deletes, creates, inserts and moves, updates.
type differ struct {
	removes    []Mutation
	deletes    []Mutation
	creates    []Mutation
	placements []Mutation
	updates    []Mutation
}

// Diff computes the mutations that turn the hierarchy of oldRoot into the
// hierarchy of newRoot. Both roots are expected to carry the same tag.
//
// Children are matched positionally first; once the lists diverge they are
// matched by tag, so reordering produces moves. A child whose kind changed
// under the same tag is replaced. Identical subtrees, by pointer or by
// content, produce nothing.
func Diff(oldRoot, newRoot *graph.Node) []Mutation {
	var d differ
	switch {
	case oldRoot == newRoot:
		return nil
	case oldRoot == nil:
		d.create(newRoot)
	case newRoot == nil:
		d.delete(oldRoot)
	case oldRoot.Tag() != newRoot.Tag() || oldRoot.Kind() != newRoot.Kind():
		d.delete(oldRoot)
		d.create(newRoot)
	default:
		d.node(oldRoot, newRoot)
	}
	return d.result()
}

func (d *differ) result() []Mutation {
	n := len(d.removes) + len(d.deletes) + len(d.creates) + len(d.placements) + len(d.updates)
	if n == 0 {
		return nil
	}
	out := make([]Mutation, 0, n)
	out = append(out, d.removes...)
	out = append(out, d.deletes...)
	out = append(out, d.creates...)
	out = append(out, d.placements...)
	return append(out, d.updates...)
}

func (d *differ) node(old, cur *graph.Node) {
	if old == cur {
		return
	}
	if !old.SameContent(cur) {
		d.updates = append(d.updates, Mutation{Type: MutationUpdate, Old: old, New: cur})
	}
	d.children(old, cur)
}

// create emits Create for the subtree in pre-order and Insert for every
// child into its new parent.
func (d *differ) create(n *graph.Node) {
	d.creates = append(d.creates, Mutation{Type: MutationCreate, New: n})
	for i := range n.NumChildren() {
		c := n.ChildAt(i)
		d.create(c)
		d.placements = append(d.placements, Mutation{
			Type:      MutationInsert,
			ParentTag: n.Tag(),
			New:       c,
			Index:     i,
		})
	}
}

// delete emits Delete for the subtree, children before parents.
func (d *differ) delete(n *graph.Node) {
	for i := range n.NumChildren() {
		d.delete(n.ChildAt(i))
	}
	d.deletes = append(d.deletes, Mutation{Type: MutationDelete, Old: n})
}

func sameIdentity(a, b *graph.Node) bool {
	return a.Tag() == b.Tag() && a.Kind() == b.Kind()
}

func (d *differ) children(oldParent, newParent *graph.Node) {
	oldKids := oldParent.Children()
	newKids := newParent.Children()
	parent := newParent.Tag()

	// Common prefix: same identity at the same index.
	start := 0
	for start < len(oldKids) && start < len(newKids) && sameIdentity(oldKids[start], newKids[start]) {
		d.node(oldKids[start], newKids[start])
		start++
	}
	if start == len(oldKids) && start == len(newKids) {
		return
	}

	oldByTag := make(map[graph.Tag]*graph.Node, len(oldKids)-start)
	for _, o := range oldKids[start:] {
		oldByTag[o.Tag()] = o
	}
	newByTag := make(map[graph.Tag]*graph.Node, len(newKids)-start)
	for _, n := range newKids[start:] {
		newByTag[n.Tag()] = n
	}
	kept := func(o *graph.Node) bool {
		n, ok := newByTag[o.Tag()]
		return ok && sameIdentity(o, n)
	}

	// Removes run back to front so earlier indices stay valid.
	for i := len(oldKids) - 1; i >= start; i-- {
		o := oldKids[i]
		if kept(o) {
			continue
		}
		d.removes = append(d.removes, Mutation{Type: MutationRemove, ParentTag: parent, Old: o, Index: i})
		d.delete(o)
	}

	// working mirrors the host's child list after the removes and is
	// updated as inserts and moves are emitted.
	working := make([]graph.Tag, 0, len(newKids))
	for _, o := range oldKids[:start] {
		working = append(working, o.Tag())
	}
	for _, o := range oldKids[start:] {
		if kept(o) {
			working = append(working, o.Tag())
		}
	}

	for i := start; i < len(newKids); i++ {
		n := newKids[i]
		o, ok := oldByTag[n.Tag()]
		if !ok || !sameIdentity(o, n) {
			d.create(n)
			d.placements = append(d.placements, Mutation{Type: MutationInsert, ParentTag: parent, New: n, Index: i})
			working = slices.Insert(working, i, n.Tag())
			continue
		}
		from := i + slices.Index(working[i:], n.Tag())
		if from != i {
			d.placements = append(d.placements, Mutation{
				Type:      MutationMove,
				ParentTag: parent,
				Old:       o,
				New:       n,
				Index:     i,
				FromIndex: from,
			})
			working = slices.Delete(working, from, from+1)
			working = slices.Insert(working, i, n.Tag())
		}
		d.node(o, n)
	}
}
