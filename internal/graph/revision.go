package graph

import (
	"fmt"
	"time"

	"github.com/RoaringBitmap/roaring"
	"github.com/google/uuid"
)

// InitialRevision is the number of the empty revision every surface starts with.
const InitialRevision uint64 = 0

// CommitSource labels the producer that published a revision.
type CommitSource uint8

const (
	SourceUnknown CommitSource = iota
	SourceRender
	SourceStateUpdate
	SourceAnimation
	SourceTooling
)

func (s CommitSource) String() string {
	switch s {
	case SourceRender:
		return "render"
	case SourceStateUpdate:
		return "state"
	case SourceAnimation:
		return "animation"
	case SourceTooling:
		return "tooling"
	default:
		return "unknown"
	}
}

// CommitMeta describes the commit that produced a revision.
type CommitMeta struct {
	ID          uuid.UUID
	Source      CommitSource
	CommittedAt time.Time
}

// Revision is a numbered, immutable snapshot of one surface's tree.
// It is a value: copying it hands out another owning reference to the same
// root, which stays alive for as long as any copy does.
type Revision struct {
	Number uint64
	Root   *Node
	Meta   CommitMeta
}

// NewInitialRevision returns revision 0 of a surface: a sealed, empty root.
func NewInitialRevision(surface SurfaceID) Revision {
	root := &Node{
		tag:     RootTag(surface),
		surface: surface,
		kind:    KindRoot,
	}
	root.Seal()
	return Revision{
		Number: InitialRevision,
		Root:   root,
		Meta:   CommitMeta{ID: uuid.New(), CommittedAt: time.Now()},
	}
}

// IsZero reports whether the revision is the empty value.
func (r Revision) IsZero() bool { return r.Root == nil }

// Surface returns the surface of the revision's root.
func (r Revision) Surface() SurfaceID {
	if r.Root == nil {
		return 0
	}
	return r.Root.surface
}

// Find returns the node with the given tag in this revision.
func (r Revision) Find(tag Tag) (*Node, bool) {
	return Find(r.Root, tag)
}

// NodeCount returns the number of nodes reachable from the root.
func (r Revision) NodeCount() int {
	return Count(r.Root)
}

// Tags returns the set of tags present in the revision.
func (r Revision) Tags() *roaring.Bitmap {
	bm := roaring.New()
	Walk(r.Root, func(n *Node, _ int) bool {
		bm.Add(n.tag.Bit())
		return true
	})
	return bm
}

func (r Revision) String() string {
	return fmt.Sprintf("revision %d of surface %d", r.Number, r.Surface())
}
