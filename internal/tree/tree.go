// Package tree implements the per-surface commit protocol: a mutex-guarded
// slot holding the current revision, and the commit operations that replace
// it with a new revision produced by a caller-supplied transform.
package tree

import (
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/agentic-research/revtree/internal/graph"
	"github.com/agentic-research/revtree/internal/mounting"
)

// Transform derives a new root from the currently published one. Returning
// nil cancels the commit. It runs under the surface lock and must be cheap.
type Transform func(oldRoot *graph.Node) *graph.Node

// Layout is invoked inside a commit, after the transform and before the new
// root is sealed. It returns the laid-out root, usually a clone of newRoot
// with measurements applied.
type Layout interface {
	Layout(oldRoot, newRoot *graph.Node) *graph.Node
}

// LayoutFunc adapts a function to Layout.
type LayoutFunc func(oldRoot, newRoot *graph.Node) *graph.Node

func (f LayoutFunc) Layout(oldRoot, newRoot *graph.Node) *graph.Node { return f(oldRoot, newRoot) }

// CommitListener is told about every published revision. It runs while the
// surface lock is held and must not block or call back into the tree.
type CommitListener func(rev graph.Revision)

// CommitOptions tune a single commit.
type CommitOptions struct {
	Source     graph.CommitSource
	SkipLayout bool
}

// CommitStatus is the result of a commit attempt.
type CommitStatus uint8

const (
	CommitSucceeded CommitStatus = iota
	CommitCancelled
)

func (s CommitStatus) String() string {
	if s == CommitSucceeded {
		return "succeeded"
	}
	return "cancelled"
}

// CancelReason explains a cancelled commit.
type CancelReason uint8

const (
	CancelNone CancelReason = iota
	CancelByTransform
	CancelSurfaceStopped
	CancelLockContention
	CancelStructuralViolation
)

func (r CancelReason) String() string {
	switch r {
	case CancelByTransform:
		return "transform"
	case CancelSurfaceStopped:
		return "stopped"
	case CancelLockContention:
		return "contention"
	case CancelStructuralViolation:
		return "structural_violation"
	default:
		return "none"
	}
}

// Outcome reports what a commit did. Revision is the published revision on
// success and the zero value otherwise.
type Outcome struct {
	Status   CommitStatus
	Reason   CancelReason
	Revision graph.Revision
}

// Succeeded reports whether a revision was published.
func (o Outcome) Succeeded() bool { return o.Status == CommitSucceeded }

func (o Outcome) label() string {
	if o.Succeeded() {
		return o.Status.String()
	}
	return o.Reason.String()
}

func cancelled(reason CancelReason) Outcome {
	return Outcome{Status: CommitCancelled, Reason: reason}
}

// Tree owns the current revision of one surface.
//
// commitMu serializes transforms; revMu guards only the revision slot and is
// held for a copy or a swap, so readers never wait behind a transform. Lock
// order: commitMu, then revMu, then the coordinator's revision lock.
type Tree struct {
	surface   graph.SurfaceID
	logger    *slog.Logger
	layout    Layout
	listeners []CommitListener

	coordinator *mounting.Coordinator

	commitMu sync.Mutex

	revMu   sync.RWMutex
	current graph.Revision
	running bool
}

// New creates the tree of a surface holding its initial, empty revision.
func New(surface graph.SurfaceID, opts ...Option) *Tree {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	logger := o.logger
	if logger == nil {
		logger = slog.Default().With(slog.String("component", "tree"))
	}

	initial := graph.NewInitialRevision(surface)
	mopts := append([]mounting.Option{mounting.WithLogger(logger)}, o.mountingOpts...)
	return &Tree{
		surface:     surface,
		logger:      logger.With(slog.Int("surface", int(surface))),
		layout:      o.layout,
		listeners:   o.listeners,
		coordinator: mounting.NewCoordinator(initial, mopts...),
		current:     initial,
		running:     true,
	}
}

// Surface returns the surface id.
func (t *Tree) Surface() graph.SurfaceID { return t.surface }

// Coordinator returns the mounting coordinator fed by this tree.
func (t *Tree) Coordinator() *mounting.Coordinator { return t.coordinator }

// Running reports whether the surface has not been stopped.
func (t *Tree) Running() bool {
	t.revMu.RLock()
	defer t.revMu.RUnlock()
	return t.running
}

// Commit waits for the surface lock, runs transform on the current root and
// publishes the result as the next revision.
//
// The error is non-nil only when the transform produced a malformed root;
// the outcome then carries CancelStructuralViolation. With the revtreedebug
// build tag such a root panics instead.
func (t *Tree) Commit(transform Transform, opts CommitOptions) (Outcome, error) {
	start := time.Now()
	t.commitMu.Lock()
	defer t.commitMu.Unlock()
	out, err := t.commitLocked(transform, opts)
	observeCommit(out, time.Since(start))
	return out, err
}

// TryCommit is Commit without waiting: if another commit holds the lock it
// returns CancelLockContention immediately.
func (t *Tree) TryCommit(transform Transform, opts CommitOptions) (Outcome, error) {
	start := time.Now()
	if !t.commitMu.TryLock() {
		out := cancelled(CancelLockContention)
		observeCommit(out, time.Since(start))
		return out, nil
	}
	defer t.commitMu.Unlock()
	out, err := t.commitLocked(transform, opts)
	observeCommit(out, time.Since(start))
	return out, err
}

// TryCommitRetrying calls TryCommit up to attempts times, yielding the
// processor between attempts while the lock is contended.
func (t *Tree) TryCommitRetrying(transform Transform, opts CommitOptions, attempts int) (Outcome, error) {
	out := cancelled(CancelLockContention)
	for i := 0; i < attempts; i++ {
		var err error
		out, err = t.TryCommit(transform, opts)
		if err != nil || out.Reason != CancelLockContention {
			return out, err
		}
		runtime.Gosched()
	}
	return out, nil
}

func (t *Tree) commitLocked(transform Transform, opts CommitOptions) (Outcome, error) {
	old, ok := t.CurrentRevision()
	if !ok {
		return cancelled(CancelSurfaceStopped), nil
	}

	newRoot := transform(old.Root)
	if newRoot == nil {
		return cancelled(CancelByTransform), nil
	}
	if t.layout != nil && !opts.SkipLayout {
		if newRoot = t.layout.Layout(old.Root, newRoot); newRoot == nil {
			return cancelled(CancelByTransform), nil
		}
	}
	if err := graph.ValidateRoot(newRoot, t.surface); err != nil {
		if graph.DebugAssertions {
			panic(err)
		}
		t.logger.Warn("commit rejected", slog.Any("error", err))
		return cancelled(CancelStructuralViolation), fmt.Errorf("commit on surface %d: %w", t.surface, err)
	}

	newRoot.Seal()
	rev := graph.Revision{
		Number: old.Number + 1,
		Root:   newRoot,
		Meta: graph.CommitMeta{
			ID:          uuid.New(),
			Source:      opts.Source,
			CommittedAt: time.Now(),
		},
	}
	// The surface may have stopped while the transform ran.
	t.revMu.Lock()
	if !t.running {
		t.revMu.Unlock()
		return cancelled(CancelSurfaceStopped), nil
	}
	t.current = rev
	t.revMu.Unlock()

	t.coordinator.Push(rev)
	for _, fn := range t.listeners {
		fn(rev)
	}
	t.logger.Debug("revision published",
		slog.Uint64("revision", rev.Number),
		slog.String("source", opts.Source.String()),
	)
	return Outcome{Status: CommitSucceeded, Revision: rev}, nil
}

// CurrentRevision returns an owning copy of the current revision. It
// returns false once the surface is stopped. It does not wait for a running
// transform.
func (t *Tree) CurrentRevision() (graph.Revision, bool) {
	t.revMu.RLock()
	defer t.revMu.RUnlock()
	if !t.running {
		return graph.Revision{}, false
	}
	return t.current, true
}

// FindNode looks up tag in the current revision. The returned revision keeps
// the node's tree reachable for as long as the caller holds it.
func (t *Tree) FindNode(tag graph.Tag) (*graph.Node, graph.Revision, bool) {
	rev, ok := t.CurrentRevision()
	if !ok {
		return nil, graph.Revision{}, false
	}
	n, ok := rev.Find(tag)
	if !ok {
		return nil, graph.Revision{}, false
	}
	return n, rev, true
}

// StopSurface clears the current revision and revokes the coordinator.
// Revisions obtained earlier stay valid. Later commits are cancelled with
// CancelSurfaceStopped. Calling it more than once is harmless.
func (t *Tree) StopSurface() {
	t.revMu.Lock()
	if !t.running {
		t.revMu.Unlock()
		return
	}
	t.running = false
	last := t.current.Number
	t.current = graph.Revision{}
	t.revMu.Unlock()

	t.coordinator.Revoke()
	t.logger.Debug("surface stopped", slog.Uint64("last_revision", last))
}
