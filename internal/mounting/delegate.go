package mounting

import (
	"weak"

	"github.com/agentic-research/revtree/internal/graph"
)

// OverrideDelegate lets one external subsystem take over the transactions of
// a surface, for example to batch them with an animation driver.
type OverrideDelegate interface {
	// ShouldOverridePullTransaction is asked on every pull.
	ShouldOverridePullTransaction() bool
	// PullTransaction receives the computed transaction and returns the one to
	// deliver. Returning false suppresses delivery; the base still advances.
	PullTransaction(surface graph.SurfaceID, tx Transaction) (Transaction, bool)
}

// DelegateRef is a non-owning reference to an OverrideDelegate. The zero
// value refers to nothing.
type DelegateRef struct {
	resolve func() OverrideDelegate
}

// WeakDelegate builds a DelegateRef that does not keep d alive. Once d is
// collected the reference resolves to nil.
func WeakDelegate[T any, P interface {
	*T
	OverrideDelegate
}](d P) DelegateRef {
	if d == nil {
		return DelegateRef{}
	}
	wp := weak.Make((*T)(d))
	return DelegateRef{resolve: func() OverrideDelegate {
		if v := wp.Value(); v != nil {
			return P(v)
		}
		return nil
	}}
}

// Resolve returns the delegate if it is still alive.
func (r DelegateRef) Resolve() OverrideDelegate {
	if r.resolve == nil {
		return nil
	}
	return r.resolve()
}
