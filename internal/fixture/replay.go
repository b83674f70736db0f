package fixture

import (
	"context"
	"fmt"

	"github.com/agentic-research/revtree/api"
	"github.com/agentic-research/revtree/internal/graph"
	"github.com/agentic-research/revtree/internal/mounting"
	"github.com/agentic-research/revtree/internal/surface"
	"github.com/agentic-research/revtree/internal/tree"
)

// ReplayOptions control how a scene is committed.
type ReplayOptions struct {
	// Coalesce pulls a single transaction after the last commit instead of
	// one per commit.
	Coalesce bool
	// Source labels the commits.
	Source graph.CommitSource
}

// Replay commits every revision of scene to its surface, starting the
// surface if needed, and returns the transactions pulled along the way. The
// surface is left running.
func Replay(ctx context.Context, m *surface.Manager, scene *api.Scene, opts ReplayOptions) ([]mounting.Transaction, error) {
	id := graph.SurfaceID(scene.Surface)
	t, ok := m.Tree(id)
	if !ok {
		var err error
		if t, err = m.StartSurface(ctx, id); err != nil {
			return nil, err
		}
	}

	source := opts.Source
	if source == graph.SourceUnknown {
		source = graph.SourceTooling
	}

	var txs []mounting.Transaction
	pull := func() {
		if tx, ok := t.Coordinator().PullTransaction(); ok {
			txs = append(txs, tx)
		}
	}
	for i, e := range scene.Revisions {
		if err := ctx.Err(); err != nil {
			return txs, err
		}
		root, err := Build(id, e)
		if err != nil {
			return txs, fmt.Errorf("revision %d: %w", i, err)
		}
		out, err := t.Commit(func(*graph.Node) *graph.Node { return root }, tree.CommitOptions{Source: source})
		if err != nil {
			return txs, fmt.Errorf("revision %d: %w", i, err)
		}
		if !out.Succeeded() {
			return txs, fmt.Errorf("revision %d: commit cancelled (%s)", i, out.Reason)
		}
		if !opts.Coalesce {
			pull()
		}
	}
	if opts.Coalesce {
		pull()
	}
	return txs, nil
}
