package fixture

import (
	"fmt"
	"math/rand"
	"slices"

	"github.com/agentic-research/revtree/api"
	"github.com/agentic-research/revtree/internal/graph"
)

// SceneVersion is written into generated scenes.
const SceneVersion = "1"

var childKinds = []graph.Kind{
	graph.KindView, graph.KindScrollView, graph.KindImage,
	graph.KindParagraph, graph.KindText, graph.KindRawText,
}

// Edit names one random change applied by Generate.
type Edit string

const (
	EditInsert   Edit = "insert"
	EditRemove   Edit = "remove"
	EditMove     Edit = "move"
	EditProps    Edit = "props"
	EditKind     Edit = "kind"
	EditReparent Edit = "reparent"
)

var edits = []Edit{EditInsert, EditInsert, EditRemove, EditMove, EditProps, EditKind, EditReparent}

type located struct {
	el     *api.Element
	parent *api.Element
	index  int
}

type generator struct {
	rng  *rand.Rand
	next int32
}

// Generate builds a scene of steps revisions for surface. Each revision is
// the previous one with a single random edit applied, and every revision is
// a valid tree. The applied edits are returned alongside.
func Generate(rng *rand.Rand, surface graph.SurfaceID, steps int) (*api.Scene, []Edit) {
	g := &generator{rng: rng, next: max(int32(graph.RootTag(surface))+1, 1)}
	scene := &api.Scene{Version: SceneVersion, Surface: int32(surface)}
	applied := make([]Edit, 0, steps)

	root := api.Element{Kind: graph.KindRoot.String()}
	for range steps {
		root = cloneElement(root)
		applied = append(applied, g.edit(&root))
		scene.Revisions = append(scene.Revisions, root)
	}
	return scene, applied
}

func (g *generator) edit(root *api.Element) Edit {
	for {
		e := edits[g.rng.Intn(len(edits))]
		if g.apply(e, root) {
			return e
		}
	}
}

func (g *generator) apply(e Edit, root *api.Element) bool {
	nodes := collect(root)
	switch e {
	case EditInsert:
		parent := g.pick(filter(nodes, canHaveChildren))
		if parent == nil {
			return false
		}
		kind := childKinds[g.rng.Intn(len(childKinds))]
		child := api.Element{Tag: g.next, Kind: kind.String()}
		g.next++
		parent.el.Children = slices.Insert(parent.el.Children, g.rng.Intn(len(parent.el.Children)+1), child)

	case EditRemove:
		victim := g.pick(nodes[1:])
		if victim == nil {
			return false
		}
		victim.parent.Children = slices.Delete(victim.parent.Children, victim.index, victim.index+1)

	case EditMove:
		parent := g.pick(filter(nodes, func(l located) bool { return len(l.el.Children) > 1 }))
		if parent == nil {
			return false
		}
		children := parent.el.Children
		from := g.rng.Intn(len(children))
		to := g.rng.Intn(len(children) - 1)
		moved := children[from]
		children = slices.Delete(children, from, from+1)
		if to >= from {
			to++
		}
		parent.el.Children = slices.Insert(children, to, moved)

	case EditProps:
		target := g.pick(nodes[1:])
		if target == nil {
			return false
		}
		target.el.Props = fmt.Appendf(nil, `{"n":%d}`, g.rng.Intn(1000))

	case EditKind:
		target := g.pick(filter(nodes[1:], func(l located) bool { return len(l.el.Children) == 0 }))
		if target == nil {
			return false
		}
		kind := childKinds[g.rng.Intn(len(childKinds))]
		if kind.String() == target.el.Kind {
			return false
		}
		target.el.Kind = kind.String()

	case EditReparent:
		// Move a subtree under a different container that is not inside it.
		victim := g.pick(nodes[1:])
		if victim == nil {
			return false
		}
		inside := collect(victim.el)
		dest := g.pick(filter(nodes, func(l located) bool {
			return canHaveChildren(l) && l.el != victim.parent &&
				!slices.ContainsFunc(inside, func(in located) bool { return in.el == l.el })
		}))
		if dest == nil {
			return false
		}
		destTag, moved := dest.el.Tag, *victim.el
		victim.parent.Children = slices.Delete(victim.parent.Children, victim.index, victim.index+1)
		for _, l := range collect(root) {
			if l.el.Tag == destTag {
				l.el.Children = slices.Insert(l.el.Children, g.rng.Intn(len(l.el.Children)+1), moved)
				break
			}
		}
	}
	return true
}

func (g *generator) pick(ls []located) *located {
	if len(ls) == 0 {
		return nil
	}
	return &ls[g.rng.Intn(len(ls))]
}

func canHaveChildren(l located) bool {
	k, err := graph.ParseKind(l.el.Kind)
	return err == nil && !k.LeafOnly()
}

func filter(ls []located, keep func(located) bool) []located {
	var out []located
	for _, l := range ls {
		if keep(l) {
			out = append(out, l)
		}
	}
	return out
}

// collect lists root and its descendants in pre-order.
func collect(root *api.Element) []located {
	out := []located{{el: root, index: -1}}
	var walk func(parent *api.Element)
	walk = func(parent *api.Element) {
		for i := range parent.Children {
			c := &parent.Children[i]
			out = append(out, located{el: c, parent: parent, index: i})
			walk(c)
		}
	}
	walk(root)
	return out
}

func cloneElement(e api.Element) api.Element {
	if e.Children == nil {
		return e
	}
	children := make([]api.Element, len(e.Children))
	for i, c := range e.Children {
		children[i] = cloneElement(c)
	}
	e.Children = children
	return e
}
