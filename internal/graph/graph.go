// Package graph holds the immutable data model shared by every surface:
// nodes, their opaque property/state blobs and the numbered revisions that
// snapshot a whole tree.
//
// A Node is created unsealed by a producer, sealed exactly once when it
// becomes part of a published Revision, and never mutated afterwards. Any
// change is expressed by cloning from the mutation point up to the root;
// untouched subtrees are shared between revisions.
package graph

import (
	"errors"
	"fmt"
)

var (
	// ErrStructuralViolation is returned when a root handed to a commit does
	// not belong to the surface or is not a well-formed tree.
	ErrStructuralViolation = errors.New("structural violation")

	// ErrLeafChildren is returned when a leaf-only kind is given children.
	ErrLeafChildren = errors.New("leaf kind cannot have children")

	// ErrNilChild is returned when a child slot holds a nil node.
	ErrNilChild = errors.New("nil child")
)

// Tag identifies a logical node. It is stable across clones of the same node.
type Tag int32

// SurfaceID identifies one independently managed UI tree.
type SurfaceID int32

// RootTag returns the tag reserved for the root node of a surface.
func RootTag(surface SurfaceID) Tag {
	return Tag(surface)
}

func (t Tag) String() string {
	return fmt.Sprintf("%d", int32(t))
}

func (s SurfaceID) String() string {
	return fmt.Sprintf("%d", int32(s))
}

// Bit maps a tag onto the uint32 domain used by roaring bitmaps.
func (t Tag) Bit() uint32 {
	return uint32(t)
}

// TagFromBit reverses the mapping used for roaring bitmaps.
func TagFromBit(b uint32) Tag {
	return Tag(int32(b))
}
