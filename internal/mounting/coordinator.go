package mounting

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/agentic-research/revtree/internal/graph"
)

// TransactionListener observes every transaction delivered by a pull.
// It runs on the consumer goroutine and must not block.
type TransactionListener func(tx Transaction)

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger replaces the component logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Coordinator) { c.logger = l }
}

// WithTransactionListener registers a listener for delivered transactions.
func WithTransactionListener(fn TransactionListener) Option {
	return func(c *Coordinator) { c.listeners = append(c.listeners, fn) }
}

// Coordinator diffs the revisions of one surface for a single consumer.
//
// Producers call Push from inside the tree's commit lock; the consumer calls
// PullTransaction. Pulls are serialized and the diff runs without holding the
// revision lock, so producers never wait on a diff.
type Coordinator struct {
	surface   graph.SurfaceID
	logger    *slog.Logger
	listeners []TransactionListener

	pullMu sync.Mutex

	revMu   sync.Mutex
	base    graph.Revision
	latest  graph.Revision
	revoked bool
	// signal is closed and replaced on every push; closed for good on revoke.
	signal chan struct{}

	delegateMu sync.RWMutex
	delegate   DelegateRef
}

// NewCoordinator creates a coordinator whose base and latest revision are
// initial.
func NewCoordinator(initial graph.Revision, opts ...Option) *Coordinator {
	c := &Coordinator{
		surface: initial.Surface(),
		base:    initial,
		latest:  initial,
		signal:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default().With(slog.String("component", "mounting"))
	}
	c.logger = c.logger.With(slog.Int("surface", int(c.surface)))
	return c
}

// Surface returns the surface the coordinator serves.
func (c *Coordinator) Surface() graph.SurfaceID { return c.surface }

// Push records rev as the latest revision. Revisions that are not newer than
// the latest one are ignored, as is everything after Revoke.
func (c *Coordinator) Push(rev graph.Revision) {
	c.revMu.Lock()
	defer c.revMu.Unlock()
	if c.revoked || rev.Number <= c.latest.Number {
		return
	}
	c.latest = rev
	close(c.signal)
	c.signal = make(chan struct{})
}

// Revoke drops the base and latest revisions and wakes every waiter. Pulls
// return false from then on. Calling it more than once is harmless.
func (c *Coordinator) Revoke() {
	c.revMu.Lock()
	defer c.revMu.Unlock()
	if c.revoked {
		return
	}
	c.revoked = true
	c.base = graph.Revision{}
	c.latest = graph.Revision{}
	close(c.signal)
}

// Revoked reports whether Revoke has been called.
func (c *Coordinator) Revoked() bool {
	c.revMu.Lock()
	defer c.revMu.Unlock()
	return c.revoked
}

// HasPendingTransaction reports whether a pull would produce a transaction.
func (c *Coordinator) HasPendingTransaction() bool {
	c.revMu.Lock()
	defer c.revMu.Unlock()
	return !c.revoked && c.latest.Number > c.base.Number
}

// BaseRevision returns the revision last handed to the consumer.
func (c *Coordinator) BaseRevision() (graph.Revision, bool) {
	c.revMu.Lock()
	defer c.revMu.Unlock()
	if c.revoked {
		return graph.Revision{}, false
	}
	return c.base, true
}

// WaitForTransaction blocks until a pull would produce a transaction. It
// returns false if the coordinator is revoked or ctx is done first.
func (c *Coordinator) WaitForTransaction(ctx context.Context) bool {
	for {
		c.revMu.Lock()
		if c.revoked {
			c.revMu.Unlock()
			return false
		}
		if c.latest.Number > c.base.Number {
			c.revMu.Unlock()
			return true
		}
		ch := c.signal
		c.revMu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return false
		}
	}
}

// SetMountingOverrideDelegate installs the override delegate, replacing any
// previous one. Pass the zero DelegateRef to clear it.
func (c *Coordinator) SetMountingOverrideDelegate(ref DelegateRef) {
	c.delegateMu.Lock()
	c.delegate = ref
	c.delegateMu.Unlock()
}

func (c *Coordinator) overrideDelegate() OverrideDelegate {
	c.delegateMu.RLock()
	ref := c.delegate
	c.delegateMu.RUnlock()
	return ref.Resolve()
}

// PullTransaction diffs the base revision against the latest pushed one and
// advances the base. It returns false if there is nothing newer, if the
// coordinator was revoked, or if the override delegate suppressed delivery.
func (c *Coordinator) PullTransaction() (Transaction, bool) {
	c.pullMu.Lock()
	defer c.pullMu.Unlock()

	c.revMu.Lock()
	if c.revoked || c.latest.Number <= c.base.Number {
		c.revMu.Unlock()
		return Transaction{}, false
	}
	base, latest := c.base, c.latest
	c.revMu.Unlock()

	tx := Transaction{
		Surface:    c.surface,
		Number:     latest.Number,
		BaseNumber: base.Number,
		Telemetry: Telemetry{
			DiffStart: time.Now(),
			Coalesced: int(latest.Number - base.Number),
		},
	}
	tx.Mutations = Diff(base.Root, latest.Root)
	tx.Telemetry.DiffEnd = time.Now()

	c.revMu.Lock()
	if c.revoked {
		// Stopped while diffing.
		c.revMu.Unlock()
		return Transaction{}, false
	}
	c.base = latest
	c.revMu.Unlock()

	observeTransaction(tx)
	c.logger.Debug("transaction pulled",
		slog.Uint64("base", tx.BaseNumber),
		slog.Uint64("revision", tx.Number),
		slog.Int("mutations", len(tx.Mutations)),
		slog.Int("coalesced", tx.Telemetry.Coalesced),
	)

	if d := c.overrideDelegate(); d != nil && d.ShouldOverridePullTransaction() {
		var ok bool
		if tx, ok = d.PullTransaction(c.surface, tx); !ok {
			return Transaction{}, false
		}
	}
	for _, fn := range c.listeners {
		fn(tx)
	}
	return tx, true
}
