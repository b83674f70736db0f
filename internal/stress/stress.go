// Package stress runs committers, readers and an optional mounting consumer
// against one surface for a fixed duration and reports their progress.
package stress

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/agentic-research/revtree/internal/graph"
	"github.com/agentic-research/revtree/internal/tree"
)

var tracer = otel.Tracer("stress")

// Finder looks nodes up by tag; surface.Manager implements it.
type Finder interface {
	FindNodeByTag(tag graph.Tag) (*graph.Node, graph.Revision, bool)
}

// Scenario describes one run.
type Scenario struct {
	Committers int
	Readers    int
	Duration   time.Duration
	// Rate limits commits per second per committer; zero means unlimited.
	Rate float64
	// TryCommit makes committers use TryCommit and count contention.
	TryCommit bool
	// Consumer adds a goroutine pulling transactions.
	Consumer bool
	// Tag is the node readers look for; zero means the surface root.
	Tag graph.Tag
}

// Result counts what happened during a run.
type Result struct {
	Commits       int64
	Contended     int64
	Reads         int64
	Misses        int64
	Transactions  int64
	FinalRevision uint64
	Elapsed       time.Duration
}

func (r Result) String() string {
	return fmt.Sprintf("commits=%d contended=%d reads=%d misses=%d transactions=%d revision=%d elapsed=%s",
		r.Commits, r.Contended, r.Reads, r.Misses, r.Transactions, r.FinalRevision, r.Elapsed.Round(time.Millisecond))
}

// Run drives t and f according to sc until sc.Duration elapses or ctx is
// done. Each committer republishes a clone of the current root.
func Run(ctx context.Context, t *tree.Tree, f Finder, sc Scenario) (Result, error) {
	if sc.Duration <= 0 {
		return Result{}, errors.New("stress: duration must be positive")
	}
	ctx, span := tracer.Start(ctx, "stress.Run", trace.WithAttributes(
		attribute.Int("surface", int(t.Surface())),
		attribute.Int("committers", sc.Committers),
		attribute.Int("readers", sc.Readers),
	))
	defer span.End()

	tag := sc.Tag
	if tag == 0 {
		tag = graph.RootTag(t.Surface())
	}

	var commits, contended, reads, misses, transactions atomic.Int64
	start := time.Now()
	runCtx, cancel := context.WithTimeout(ctx, sc.Duration)
	defer cancel()
	g, gctx := errgroup.WithContext(runCtx)

	clone := func(old *graph.Node) *graph.Node { return old.Clone(graph.Fragment{}) }
	for range sc.Committers {
		var lim *rate.Limiter
		if sc.Rate > 0 {
			lim = rate.NewLimiter(rate.Limit(sc.Rate), 1)
		}
		g.Go(func() error {
			for gctx.Err() == nil {
				if lim != nil {
					if err := lim.Wait(gctx); err != nil {
						return nil
					}
				}
				commit := t.Commit
				if sc.TryCommit {
					commit = t.TryCommit
				}
				out, err := commit(clone, tree.CommitOptions{Source: graph.SourceTooling})
				if err != nil {
					return err
				}
				switch {
				case out.Succeeded():
					commits.Add(1)
				case out.Reason == tree.CancelLockContention:
					contended.Add(1)
				case out.Reason == tree.CancelSurfaceStopped:
					return nil
				}
			}
			return nil
		})
	}

	for range sc.Readers {
		g.Go(func() error {
			for gctx.Err() == nil {
				n, rev, ok := f.FindNodeByTag(tag)
				if !ok {
					misses.Add(1)
					continue
				}
				if n.Tag() != tag || rev.IsZero() {
					return fmt.Errorf("stress: lookup of %d returned %s", tag, n)
				}
				reads.Add(1)
			}
			return nil
		})
	}

	if sc.Consumer {
		g.Go(func() error {
			c := t.Coordinator()
			for c.WaitForTransaction(gctx) {
				if _, ok := c.PullTransaction(); ok {
					transactions.Add(1)
				}
			}
			return nil
		})
	}

	err := g.Wait()
	res := Result{
		Commits:      commits.Load(),
		Contended:    contended.Load(),
		Reads:        reads.Load(),
		Misses:       misses.Load(),
		Transactions: transactions.Load(),
		Elapsed:      time.Since(start),
	}
	if rev, ok := t.CurrentRevision(); ok {
		res.FinalRevision = rev.Number
	}
	span.SetAttributes(attribute.Int64("commits", res.Commits), attribute.Int64("reads", res.Reads))
	slog.Default().With(slog.String("component", "stress")).Info("stress run finished",
		slog.Int64("commits", res.Commits),
		slog.Int64("reads", res.Reads),
		slog.Duration("elapsed", res.Elapsed),
	)
	if err != nil {
		span.RecordError(err)
		return res, err
	}
	return res, nil
}
