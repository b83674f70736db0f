package mounting

import (
	"context"
	"runtime"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-research/revtree/internal/graph"
)

func sealed(number uint64, r *graph.Node) graph.Revision {
	r.Seal()
	return graph.Revision{Number: number, Root: r}
}

func TestCoordinator_PullWithoutNewRevision(t *testing.T) {
	c := NewCoordinator(graph.NewInitialRevision(surface))
	_, ok := c.PullTransaction()
	assert.False(t, ok)
	assert.False(t, c.HasPendingTransaction())
}

func TestCoordinator_CoalescesIntermediateRevisions(t *testing.T) {
	initial := graph.NewInitialRevision(surface)
	c := NewCoordinator(initial)

	r1 := sealed(1, root(view(2, graph.KindView, map[string]any{"a": 1})))
	r2 := sealed(2, root(view(2, graph.KindView, map[string]any{"a": 2}), view(3, graph.KindImage, nil)))
	c.Push(r1)
	c.Push(r2)
	require.True(t, c.HasPendingTransaction())

	tx, ok := c.PullTransaction()
	require.True(t, ok)
	assert.Equal(t, uint64(0), tx.BaseNumber)
	assert.Equal(t, uint64(2), tx.Number)
	assert.Equal(t, 2, tx.Telemetry.Coalesced)
	assert.Equal(t, Diff(initial.Root, r2.Root), tx.Mutations, "C1 then C2 pulls the same diff as base to C2")
	assert.False(t, tx.Telemetry.DiffEnd.Before(tx.Telemetry.DiffStart))

	base, ok := c.BaseRevision()
	require.True(t, ok)
	assert.Equal(t, uint64(2), base.Number)

	_, ok = c.PullTransaction()
	assert.False(t, ok, "base caught up with latest")
}

func TestCoordinator_IgnoresStalePush(t *testing.T) {
	c := NewCoordinator(graph.NewInitialRevision(surface))
	c.Push(sealed(2, root()))
	c.Push(sealed(1, root(view(2, graph.KindView, nil))))

	tx, ok := c.PullTransaction()
	require.True(t, ok)
	assert.Equal(t, uint64(2), tx.Number)
	assert.True(t, tx.IsEmpty())
}

func TestCoordinator_UnchangedCloneHasNoStructuralMutations(t *testing.T) {
	c := NewCoordinator(graph.NewInitialRevision(surface))

	child := view(2, graph.KindView, map[string]any{"opacity": 1})
	first := root(child)
	c.Push(sealed(1, first))
	tx, ok := c.PullTransaction()
	require.True(t, ok)
	assert.Equal(t, 2, tx.StructuralCount())

	c.Push(sealed(2, first.CloneWithChildren([]*graph.Node{child.Clone(graph.Fragment{})})))
	tx, ok = c.PullTransaction()
	require.True(t, ok)
	assert.Zero(t, tx.StructuralCount())
	assert.True(t, tx.IsEmpty())

	p := graph.PropsOf(map[string]any{"opacity": 0.5})
	c.Push(sealed(3, first.CloneWithChildren([]*graph.Node{child.CloneWithProps(p)})))
	tx, ok = c.PullTransaction()
	require.True(t, ok)
	assert.Zero(t, tx.StructuralCount())
	assert.Equal(t, map[MutationType]int{MutationUpdate: 1}, tx.Counts())
	assert.True(t, tx.AffectedTags().Contains(2))
}

func TestCoordinator_RevokeStopsEverything(t *testing.T) {
	c := NewCoordinator(graph.NewInitialRevision(surface))
	c.Push(sealed(1, root()))

	c.Revoke()
	c.Revoke()
	assert.True(t, c.Revoked())

	_, ok := c.PullTransaction()
	assert.False(t, ok)
	_, ok = c.BaseRevision()
	assert.False(t, ok)

	c.Push(sealed(2, root()))
	assert.False(t, c.HasPendingTransaction())
	assert.False(t, c.WaitForTransaction(context.Background()))
}

func TestCoordinator_WaitForTransaction(t *testing.T) {
	c := NewCoordinator(graph.NewInitialRevision(surface))

	woke := make(chan bool, 1)
	go func() { woke <- c.WaitForTransaction(context.Background()) }()

	c.Push(sealed(1, root()))
	select {
	case ok := <-woke:
		assert.True(t, ok)
	case <-time.After(5 * time.Second):
		t.Fatal("waiter was not woken by push")
	}

	_, ok := c.PullTransaction()
	require.True(t, ok)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.False(t, c.WaitForTransaction(ctx))
}

func TestCoordinator_WaitForTransactionWakesOnRevoke(t *testing.T) {
	c := NewCoordinator(graph.NewInitialRevision(surface))
	woke := make(chan bool, 1)
	go func() { woke <- c.WaitForTransaction(context.Background()) }()

	c.Revoke()
	select {
	case ok := <-woke:
		assert.False(t, ok)
	case <-time.After(5 * time.Second):
		t.Fatal("waiter was not woken by revoke")
	}
}

func TestCoordinator_TransactionListener(t *testing.T) {
	var seen []uint64
	c := NewCoordinator(graph.NewInitialRevision(surface), WithTransactionListener(func(tx Transaction) {
		seen = append(seen, tx.Number)
	}))
	c.Push(sealed(1, root()))
	c.PullTransaction()
	c.Push(sealed(3, root()))
	c.PullTransaction()
	assert.Equal(t, []uint64{1, 3}, seen)
}

type overrideDelegate struct {
	override bool
	deliver  bool
	calls    atomic.Int64
	last     *Transaction
}

func (d *overrideDelegate) ShouldOverridePullTransaction() bool { return d.override }

func (d *overrideDelegate) PullTransaction(_ graph.SurfaceID, tx Transaction) (Transaction, bool) {
	d.calls.Add(1)
	seen := tx
	d.last = &seen
	tx.Mutations = nil
	return tx, d.deliver
}

func TestCoordinator_OverrideDelegate(t *testing.T) {
	c := NewCoordinator(graph.NewInitialRevision(surface))
	d := &overrideDelegate{override: true, deliver: true}
	c.SetMountingOverrideDelegate(WeakDelegate(d))

	c.Push(sealed(1, root(view(2, graph.KindView, nil))))
	tx, ok := c.PullTransaction()
	require.True(t, ok)
	assert.True(t, tx.IsEmpty(), "delegate rewrote the transaction")
	require.NotNil(t, d.last)
	assert.NotEmpty(t, d.last.Mutations)

	d.deliver = false
	c.Push(sealed(2, root()))
	_, ok = c.PullTransaction()
	assert.False(t, ok, "delegate suppressed delivery")
	assert.False(t, c.HasPendingTransaction(), "base advances even when suppressed")

	d.override = false
	c.Push(sealed(3, root(view(2, graph.KindView, nil))))
	tx, ok = c.PullTransaction()
	require.True(t, ok)
	assert.NotEmpty(t, tx.Mutations)
	assert.Equal(t, int64(2), d.calls.Load())

	c.SetMountingOverrideDelegate(DelegateRef{})
	runtime.KeepAlive(d)
}

func TestCoordinator_DoesNotRetainDelegate(t *testing.T) {
	c := NewCoordinator(graph.NewInitialRevision(surface))
	ref := WeakDelegate(&overrideDelegate{override: true, deliver: false})
	c.SetMountingOverrideDelegate(ref)

	require.Eventually(t, func() bool {
		runtime.GC()
		return ref.Resolve() == nil
	}, 5*time.Second, 10*time.Millisecond)

	c.Push(sealed(1, root()))
	_, ok := c.PullTransaction()
	assert.True(t, ok, "a collected delegate is ignored")
}

func TestWeakDelegate_Nil(t *testing.T) {
	var d *overrideDelegate
	assert.Nil(t, WeakDelegate(d).Resolve())
	assert.Nil(t, DelegateRef{}.Resolve())
}
