package graph

import (
	"fmt"

	"github.com/RoaringBitmap/roaring"
)

// ValidateRoot checks that root can be published as the tree of surface:
// a root-kind node with the surface's root tag whose subtree belongs to the
// same surface, has no nil children, no nested roots, no children under
// leaf kinds and no duplicate tags.
func ValidateRoot(root *Node, surface SurfaceID) error {
	if root == nil {
		return fmt.Errorf("%w: nil root", ErrStructuralViolation)
	}
	if root.kind != KindRoot {
		return fmt.Errorf("%w: root has kind %s", ErrStructuralViolation, root.kind)
	}
	if root.tag != RootTag(surface) {
		return fmt.Errorf("%w: root tag %d, want %d", ErrStructuralViolation, root.tag, RootTag(surface))
	}

	seen := roaring.New()
	var visit func(n *Node) error
	visit = func(n *Node) error {
		if n.surface != surface {
			return fmt.Errorf("%w: %s belongs to surface %d, want %d", ErrStructuralViolation, n, n.surface, surface)
		}
		if !seen.CheckedAdd(n.tag.Bit()) {
			return fmt.Errorf("%w: duplicate tag %d", ErrStructuralViolation, n.tag)
		}
		if n != root && n.kind.Has(TraitRoot) {
			return fmt.Errorf("%w: nested root %s", ErrStructuralViolation, n)
		}
		if n.kind.LeafOnly() && len(n.children) > 0 {
			return fmt.Errorf("%w: %s: %w", ErrStructuralViolation, n, ErrLeafChildren)
		}
		for i, c := range n.children {
			if c == nil {
				return fmt.Errorf("%w: %s child %d: %w", ErrStructuralViolation, n, i, ErrNilChild)
			}
			if err := visit(c); err != nil {
				return err
			}
		}
		return nil
	}
	return visit(root)
}
