package mounting

import (
	"time"

	"github.com/RoaringBitmap/roaring"

	"github.com/agentic-research/revtree/internal/graph"
)

// Telemetry records how a transaction was produced.
type Telemetry struct {
	DiffStart time.Time
	DiffEnd   time.Time
	// Coalesced is the number of revisions folded into the transaction.
	Coalesced int
}

// DiffDuration returns the time spent diffing.
func (t Telemetry) DiffDuration() time.Duration { return t.DiffEnd.Sub(t.DiffStart) }

// Transaction moves a host hierarchy from revision BaseNumber to Number.
type Transaction struct {
	Surface    graph.SurfaceID
	Number     uint64
	BaseNumber uint64
	Mutations  []Mutation
	Telemetry  Telemetry
}

// IsEmpty reports whether applying the transaction is a no-op.
func (tx Transaction) IsEmpty() bool { return len(tx.Mutations) == 0 }

// Counts returns the number of mutations per type.
func (tx Transaction) Counts() map[MutationType]int {
	counts := make(map[MutationType]int)
	for _, m := range tx.Mutations {
		counts[m.Type]++
	}
	return counts
}

// StructuralCount returns the number of mutations that are not updates.
func (tx Transaction) StructuralCount() int {
	n := 0
	for _, m := range tx.Mutations {
		if m.Structural() {
			n++
		}
	}
	return n
}

// AffectedTags returns the set of tags touched by the transaction.
func (tx Transaction) AffectedTags() *roaring.Bitmap {
	bm := roaring.New()
	for _, m := range tx.Mutations {
		bm.Add(m.Tag().Bit())
	}
	return bm
}

// Log renders every mutation in order, one line each.
func (tx Transaction) Log() []string {
	lines := make([]string, len(tx.Mutations))
	for i, m := range tx.Mutations {
		lines[i] = m.String()
	}
	return lines
}
