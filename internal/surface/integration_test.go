package surface_test

import (
	"context"
	"io"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-research/revtree/api"
	"github.com/agentic-research/revtree/internal/fixture"
	"github.com/agentic-research/revtree/internal/graph"
	"github.com/agentic-research/revtree/internal/inspect"
	"github.com/agentic-research/revtree/internal/journal"
	"github.com/agentic-research/revtree/internal/mounting"
	"github.com/agentic-research/revtree/internal/surface"
)

func image(tag int32, uri string) api.Element {
	return api.Element{Tag: tag, Kind: "Image", Props: []byte(`{"uri":"` + uri + `"}`)}
}

func scene() *api.Scene {
	return &api.Scene{
		Version: "1",
		Surface: 1,
		Revisions: []api.Element{
			{Kind: "RootView", Children: []api.Element{
				{Tag: 2, Kind: "View", Children: []api.Element{image(3, "a.png")}},
			}},
			{Kind: "RootView", Children: []api.Element{
				{Tag: 2, Kind: "View", Children: []api.Element{image(3, "b.png")}},
				{Tag: 4, Kind: "Text"},
			}},
			{Kind: "RootView", Children: []api.Element{
				{Tag: 4, Kind: "Text"},
			}},
		},
	}
}

// A scene replayed through a journaled manager leaves a gap-free history on
// disk and its final state visible through the inspector.
func TestReplayJournalInspect(t *testing.T) {
	ctx := context.Background()
	j, err := journal.Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })

	m := surface.NewManager(surface.WithTreeOptions(j.TreeOptions()...))
	t.Cleanup(func() { m.StopAll(ctx) })

	txs, err := fixture.Replay(ctx, m, scene(), fixture.ReplayOptions{})
	require.NoError(t, err)
	require.Len(t, txs, 3)

	last := txs[2]
	counts := last.Counts()
	assert.Equal(t, 1, counts[mounting.MutationRemove])
	assert.Equal(t, 2, counts[mounting.MutationDelete])
	assert.Zero(t, counts[mounting.MutationCreate])

	require.NoError(t, j.Flush(ctx))
	revs, err := j.Revisions(ctx, 1)
	require.NoError(t, err)
	require.Len(t, revs, 3)
	for i, r := range revs {
		assert.Equal(t, uint64(i+1), r.Number)
		assert.Equal(t, graph.SourceTooling.String(), r.Source)
	}
	assert.Equal(t, []graph.Tag{1, 4}, revs[2].Tags)

	recorded, err := j.Transactions(ctx, 1)
	require.NoError(t, err)
	require.Len(t, recorded, 3)
	for i, tx := range recorded {
		assert.Equal(t, uint64(i), tx.BaseNumber)
		assert.Equal(t, uint64(i+1), tx.Number)
	}

	fs := inspect.NewSurfaceFS(m)
	f, err := fs.Open("/1/kind")
	require.NoError(t, err)
	kind, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Contains(t, string(kind), "RootView")

	_, err = fs.Stat("/1/2")
	assert.Error(t, err)
	_, err = fs.Stat("/1/4")
	assert.NoError(t, err)
}

// Replaying the same scene coalesced yields one transaction that converges
// to the same final tree.
func TestReplayCoalescedMatchesFinalTree(t *testing.T) {
	ctx := context.Background()
	m := surface.NewManager()
	t.Cleanup(func() { m.StopAll(ctx) })

	txs, err := fixture.Replay(ctx, m, scene(), fixture.ReplayOptions{Coalesce: true})
	require.NoError(t, err)
	require.Len(t, txs, 1)
	tx := txs[0]
	assert.Equal(t, uint64(0), tx.BaseNumber)
	assert.Equal(t, uint64(3), tx.Number)
	assert.Equal(t, 3, tx.Telemetry.Coalesced)

	// Only tag 4 survives: it is created and inserted, nothing else is touched.
	assert.Equal(t, []uint32{4}, tx.AffectedTags().ToArray())

	rev, ok := m.CurrentRevision(1)
	require.True(t, ok)
	assert.Equal(t, 2, graph.Count(rev.Root))
}
