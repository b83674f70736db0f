package fixture

import (
	"context"
	"encoding/json"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-research/revtree/api"
	"github.com/agentic-research/revtree/internal/graph"
	"github.com/agentic-research/revtree/internal/mounting"
	"github.com/agentic-research/revtree/internal/surface"
)

const sceneJSON = `{
  "version": "1",
  "surface": 1,
  "revisions": [
    {"kind": "RootView", "children": [
      {"tag": 2, "kind": "View", "props": {"style": {"width": 100}}, "children": [
        {"tag": 3, "kind": "Image", "props": {"uri": "a.png"}}
      ]},
      {"tag": 4, "kind": "Paragraph", "children": [
        {"tag": 5, "kind": "RawText", "props": {"text": "hello"}}
      ]}
    ]},
    {"kind": "RootView", "children": [
      {"tag": 4, "kind": "Paragraph", "children": [
        {"tag": 5, "kind": "RawText", "props": {"text": "hello"}}
      ]},
      {"tag": 2, "kind": "View", "props": {"style": {"width": 200}}, "children": [
        {"tag": 3, "kind": "Image", "props": {"uri": "a.png"}}
      ]}
    ]}
  ]
}`

func writeScene(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scene.json")
	require.NoError(t, os.WriteFile(path, []byte(sceneJSON), 0o644))
	return path
}

func TestLoadAndBuild(t *testing.T) {
	scene, err := Load(writeScene(t))
	require.NoError(t, err)
	require.Len(t, scene.Revisions, 2)

	root, err := Build(1, scene.Revisions[0])
	require.NoError(t, err)
	require.NoError(t, graph.ValidateRoot(root, 1))
	assert.Equal(t, graph.RootTag(1), root.Tag())
	assert.Equal(t, 5, graph.Count(root))

	img, ok := graph.Find(root, 3)
	require.True(t, ok)
	got, err := img.Props().Query("$.uri")
	require.NoError(t, err)
	assert.Equal(t, []any{"a.png"}, got)
}

func TestBuild_Errors(t *testing.T) {
	_, err := Build(1, api.Element{Kind: "Widget"})
	assert.Error(t, err)

	_, err = Build(1, api.Element{Tag: 2, Kind: "View", Props: json.RawMessage(`{broken`)})
	assert.Error(t, err)

	_, err = Build(1, api.Element{Tag: 2, Kind: "RawText", Children: []api.Element{{Tag: 3, Kind: "View"}}})
	assert.ErrorIs(t, err, graph.ErrLeafChildren)

	_, err = Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestDumpRoundTrip(t *testing.T) {
	scene, err := Load(writeScene(t))
	require.NoError(t, err)
	root, err := Build(1, scene.Revisions[0])
	require.NoError(t, err)

	again, err := Build(1, Dump(root))
	require.NoError(t, err)
	assert.Empty(t, mounting.Diff(root, again), "dump then build is content-identical")
}

func TestReplay(t *testing.T) {
	ctx := context.Background()
	scene, err := Load(writeScene(t))
	require.NoError(t, err)

	m := surface.NewManager()
	txs, err := Replay(ctx, m, scene, ReplayOptions{})
	require.NoError(t, err)
	require.Len(t, txs, 2)

	assert.Equal(t, 4, txs[0].Counts()[mounting.MutationInsert])
	second := txs[1].Counts()
	assert.Zero(t, second[mounting.MutationCreate], "reordering reuses views")
	assert.Zero(t, second[mounting.MutationDelete])
	assert.Equal(t, 1, second[mounting.MutationMove])
	assert.Equal(t, 1, second[mounting.MutationUpdate])

	rev, ok := m.CurrentRevision(1)
	require.True(t, ok)
	assert.Equal(t, uint64(2), rev.Number)
	assert.Equal(t, graph.SourceTooling, rev.Meta.Source)
}

func TestReplay_Coalesced(t *testing.T) {
	ctx := context.Background()
	scene, err := Load(writeScene(t))
	require.NoError(t, err)

	m := surface.NewManager()
	txs, err := Replay(ctx, m, scene, ReplayOptions{Coalesce: true})
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, uint64(0), txs[0].BaseNumber)
	assert.Equal(t, uint64(2), txs[0].Number)
	assert.Equal(t, 2, txs[0].Telemetry.Coalesced)
	assert.Zero(t, txs[0].Counts()[mounting.MutationMove], "a fresh mount inserts in final order")
}

func TestGenerate_ValidAndDeterministic(t *testing.T) {
	a, editsA := Generate(rand.New(rand.NewSource(7)), 3, 50)
	b, editsB := Generate(rand.New(rand.NewSource(7)), 3, 50)
	assert.Equal(t, a, b)
	assert.Equal(t, editsA, editsB)
	require.Len(t, a.Revisions, 50)
	assert.Equal(t, int32(3), a.Surface)

	for i, e := range a.Revisions {
		root, err := Build(3, e)
		require.NoError(t, err, "revision %d", i)
		require.NoError(t, graph.ValidateRoot(root, 3), "revision %d", i)
	}
}

func TestGenerate_ReplayConverges(t *testing.T) {
	for seed := int64(1); seed <= 5; seed++ {
		scene, _ := Generate(rand.New(rand.NewSource(seed)), 1, 40)
		last, err := Build(1, scene.Revisions[len(scene.Revisions)-1])
		require.NoError(t, err)
		want := Dump(last)

		for _, coalesce := range []bool{false, true} {
			m := surface.NewManager()
			_, err := Replay(context.Background(), m, scene, ReplayOptions{Coalesce: coalesce})
			require.NoError(t, err, "seed %d", seed)
			rev, ok := m.CurrentRevision(1)
			require.True(t, ok)
			assert.Equal(t, uint64(40), rev.Number)
			assert.Equal(t, want, Dump(rev.Root), "seed %d coalesce %v", seed, coalesce)
			m.StopAll(context.Background())
		}
	}
}
