package surface

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-research/revtree/internal/graph"
	"github.com/agentic-research/revtree/internal/tree"
)

func commitChild(t *testing.T, tr *tree.Tree, tag graph.Tag) graph.Revision {
	t.Helper()
	out, err := tr.Commit(func(old *graph.Node) *graph.Node {
		child := graph.MustNode(graph.Spec{Tag: tag, Surface: tr.Surface(), Kind: graph.KindView})
		return old.CloneWithChildren(append(old.Children(), child))
	}, tree.CommitOptions{Source: graph.SourceRender})
	require.NoError(t, err)
	require.True(t, out.Succeeded())
	return out.Revision
}

func TestManager_StartStop(t *testing.T) {
	ctx := context.Background()
	m := NewManager()

	tr, err := m.StartSurface(ctx, 1)
	require.NoError(t, err)
	_, err = m.StartSurface(ctx, 1)
	assert.Error(t, err)

	got, ok := m.Tree(1)
	require.True(t, ok)
	assert.Same(t, tr, got)

	stopped, err := m.StopSurface(ctx, 1)
	require.NoError(t, err)
	assert.Same(t, tr, stopped)
	assert.False(t, tr.Running())

	_, err = m.StopSurface(ctx, 1)
	assert.ErrorIs(t, err, ErrSurfaceNotFound)
	assert.Empty(t, m.Surfaces())
}

func TestManager_TreeOptionsApplyToEverySurface(t *testing.T) {
	var published atomic.Int32
	m := NewManager(WithTreeOptions(tree.WithCommitListener(func(graph.Revision) { published.Add(1) })))
	ctx := context.Background()
	for _, id := range []graph.SurfaceID{1, 2} {
		tr, err := m.StartSurface(ctx, id)
		require.NoError(t, err)
		commitChild(t, tr, 100)
	}
	assert.Equal(t, int32(2), published.Load())
	assert.Equal(t, []graph.SurfaceID{1, 2}, m.Surfaces())
}

func TestManager_FindNodeByTag(t *testing.T) {
	ctx := context.Background()
	m := NewManager()
	a, err := m.StartSurface(ctx, 1)
	require.NoError(t, err)
	b, err := m.StartSurface(ctx, 2)
	require.NoError(t, err)

	commitChild(t, a, 10)
	commitChild(t, b, 20)

	n, rev, ok := m.FindNodeByTag(20)
	require.True(t, ok)
	assert.Equal(t, graph.SurfaceID(2), n.Surface())
	assert.Equal(t, graph.SurfaceID(2), rev.Surface())

	n, _, ok = m.FindNodeByTag(graph.RootTag(1))
	require.True(t, ok)
	assert.Equal(t, graph.KindRoot, n.Kind())

	_, _, ok = m.FindNodeByTag(30)
	assert.False(t, ok)

	rev, ok = m.CurrentRevision(2)
	require.True(t, ok)
	assert.Equal(t, uint64(1), rev.Number)
	_, ok = m.CurrentRevision(3)
	assert.False(t, ok)
}

func TestManager_FoundNodeOutlivesStop(t *testing.T) {
	ctx := context.Background()
	m := NewManager()
	tr, err := m.StartSurface(ctx, 1)
	require.NoError(t, err)
	commitChild(t, tr, 10)

	n, rev, ok := m.FindNodeByTag(10)
	require.True(t, ok)

	m.StopAll(ctx)
	_, _, ok = m.FindNodeByTag(10)
	assert.False(t, ok)

	assert.Equal(t, graph.Tag(10), n.Tag())
	found, ok := rev.Find(10)
	require.True(t, ok)
	assert.Same(t, n, found)
}

// Two committers keep republishing the surface while four finders look up
// its root by tag, for a fixed duration.
func TestManager_CommittersAndFindersMakeProgress(t *testing.T) {
	ctx := context.Background()
	m := NewManager()
	tr, err := m.StartSurface(ctx, 1)
	require.NoError(t, err)

	runCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	var commits, finds atomic.Int64
	var wg sync.WaitGroup
	for range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for runCtx.Err() == nil {
				out, err := tr.Commit(func(old *graph.Node) *graph.Node {
					return old.Clone(graph.Fragment{})
				}, tree.CommitOptions{})
				if err == nil && out.Succeeded() {
					commits.Add(1)
				}
			}
		}()
	}
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for runCtx.Err() == nil {
				if n, _, ok := m.FindNodeByTag(graph.RootTag(1)); ok && n != nil {
					finds.Add(1)
				}
			}
		}()
	}
	wg.Wait()

	assert.Positive(t, commits.Load())
	assert.Positive(t, finds.Load())
	_, err = m.StopSurface(ctx, 1)
	require.NoError(t, err)
}

func TestManager_StopRacesFinders(t *testing.T) {
	ctx := context.Background()
	m := NewManager()
	tr, err := m.StartSurface(ctx, 1)
	require.NoError(t, err)
	commitChild(t, tr, 10)

	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 1000 {
				if n, rev, ok := m.FindNodeByTag(10); ok {
					assert.Equal(t, 2, rev.NodeCount())
					assert.Equal(t, graph.KindView, n.Kind())
				}
			}
		}()
	}
	_, err = m.StopSurface(ctx, 1)
	require.NoError(t, err)
	wg.Wait()
}
