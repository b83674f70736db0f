// Package journal persists published revisions and pulled transactions to
// SQLite so that a session can be inspected after the fact.
//
// Writes never block a commit: records are queued on a bounded channel and
// written in batches by a single goroutine. When the queue is full the
// record is dropped and counted.
package journal

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/agentic-research/revtree/internal/graph"
	"github.com/agentic-research/revtree/internal/mounting"
	"github.com/agentic-research/revtree/internal/tree"

	_ "modernc.org/sqlite"
)

// ErrJournalClosed is returned by operations on a closed journal.
var ErrJournalClosed = errors.New("journal closed")

const (
	defaultQueueSize = 1024
	maxBatch         = 256
)

// Rows are keyed by insertion order. Revision numbers restart when a surface
// is restarted, so (surface, number) alone does not identify a row; session
// tells the runs apart.
const schema = `
CREATE TABLE IF NOT EXISTS revisions (
	seq          INTEGER PRIMARY KEY AUTOINCREMENT,
	session      TEXT NOT NULL,
	surface      INTEGER NOT NULL,
	number       INTEGER NOT NULL,
	commit_id    TEXT NOT NULL,
	source       TEXT NOT NULL,
	committed_at INTEGER NOT NULL,
	node_count   INTEGER NOT NULL,
	tags         BLOB
);

CREATE INDEX IF NOT EXISTS revisions_surface ON revisions (surface, seq);

CREATE TABLE IF NOT EXISTS transactions (
	seq         INTEGER PRIMARY KEY AUTOINCREMENT,
	session     TEXT NOT NULL,
	surface     INTEGER NOT NULL,
	number      INTEGER NOT NULL,
	base_number INTEGER NOT NULL,
	creates     INTEGER NOT NULL,
	deletes     INTEGER NOT NULL,
	inserts     INTEGER NOT NULL,
	removes     INTEGER NOT NULL,
	updates     INTEGER NOT NULL,
	moves       INTEGER NOT NULL,
	coalesced   INTEGER NOT NULL,
	diff_ns     INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS transactions_surface ON transactions (surface, seq);
`

// record is one queued write. Exactly one of rev, tx or flushed is set.
type record struct {
	rev     *graph.Revision
	tx      *mounting.Transaction
	flushed chan error
}

// Option configures a Journal.
type Option func(*Journal)

// WithLogger replaces the component logger.
func WithLogger(l *slog.Logger) Option {
	return func(j *Journal) { j.logger = l }
}

// WithQueueSize sets the capacity of the write queue.
func WithQueueSize(n int) Option {
	return func(j *Journal) {
		if n > 0 {
			j.queueSize = n
		}
	}
}

// Journal is an append-mostly log of one process's surfaces.
type Journal struct {
	db        *sql.DB
	logger    *slog.Logger
	queueSize int
	session   string

	mu     sync.RWMutex
	closed bool
	queue  chan record
	done   chan struct{}

	dropped atomic.Int64
	lastErr atomic.Pointer[error]
}

// Open opens (creating if needed) the journal database at path.
func Open(path string, opts ...Option) (*Journal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open journal %s: %w", path, err)
	}
	// One connection: a second one would see a different ":memory:" database.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("journal pragma: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	j := &Journal{db: db, queueSize: defaultQueueSize, session: uuid.NewString()}
	for _, opt := range opts {
		opt(j)
	}
	if j.logger == nil {
		j.logger = slog.Default().With(slog.String("component", "journal"))
	}
	j.queue = make(chan record, j.queueSize)
	j.done = make(chan struct{})
	go j.run()
	return j, nil
}

// TreeOptions wires the journal into a tree: published revisions and pulled
// transactions are recorded.
func (j *Journal) TreeOptions() []tree.Option {
	return []tree.Option{
		tree.WithCommitListener(j.RecordRevision),
		tree.WithMountingOptions(mounting.WithTransactionListener(j.RecordTransaction)),
	}
}

// RecordRevision queues a revision. It never blocks.
func (j *Journal) RecordRevision(rev graph.Revision) {
	j.enqueue(record{rev: &rev})
}

// RecordTransaction queues a transaction summary. It never blocks.
func (j *Journal) RecordTransaction(tx mounting.Transaction) {
	j.enqueue(record{tx: &tx})
}

func (j *Journal) enqueue(r record) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.closed {
		return
	}
	select {
	case j.queue <- r:
	default:
		j.dropped.Add(1)
		droppedTotal.Inc()
	}
}

// Session identifies the rows written through this handle.
func (j *Journal) Session() string { return j.session }

// Dropped returns the number of records discarded because the queue was full.
func (j *Journal) Dropped() int64 { return j.dropped.Load() }

// LastError returns the error of the most recent batch, or nil once a later
// batch is written.
func (j *Journal) LastError() error {
	if p := j.lastErr.Load(); p != nil {
		return *p
	}
	return nil
}

// Flush waits until every record queued before the call is written. It
// reports the write errors since the previous Flush.
func (j *Journal) Flush(ctx context.Context) error {
	flushed := make(chan error, 1)
	j.mu.RLock()
	if j.closed {
		j.mu.RUnlock()
		return ErrJournalClosed
	}
	select {
	case j.queue <- record{flushed: flushed}:
		j.mu.RUnlock()
	case <-ctx.Done():
		j.mu.RUnlock()
		return ctx.Err()
	}

	select {
	case err := <-flushed:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close drains the queue, stops the writer and closes the database.
func (j *Journal) Close() error {
	j.mu.Lock()
	if j.closed {
		j.mu.Unlock()
		return nil
	}
	j.closed = true
	close(j.queue)
	j.mu.Unlock()

	<-j.done
	if d := j.dropped.Load(); d > 0 {
		j.logger.Warn("journal dropped records", slog.Int64("dropped", d))
	}
	return j.db.Close()
}

func (j *Journal) run() {
	defer close(j.done)
	var unreported []error
	for r := range j.queue {
		batch := []record{r}
	drain:
		for len(batch) < maxBatch {
			select {
			case next, ok := <-j.queue:
				if !ok {
					break drain
				}
				batch = append(batch, next)
			default:
				break drain
			}
		}
		if err := j.write(batch); err != nil {
			j.lastErr.Store(&err)
			unreported = append(unreported, err)
			j.logger.Error("journal write failed", slog.Any("error", err), slog.Int("records", len(batch)))
		} else {
			j.lastErr.Store(nil)
		}
		for _, b := range batch {
			if b.flushed != nil {
				b.flushed <- errors.Join(unreported...)
				unreported = nil
			}
		}
	}
}

func (j *Journal) write(batch []record) error {
	tx, err := j.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	stmtRev, err := tx.Prepare(`
		INSERT INTO revisions (session, surface, number, commit_id, source, committed_at, node_count, tags)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("prepare revisions: %w", err)
	}
	defer func() { _ = stmtRev.Close() }()
	stmtTx, err := tx.Prepare(`
		INSERT INTO transactions
			(session, surface, number, base_number, creates, deletes, inserts, removes, updates, moves, coalesced, diff_ns)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("prepare transactions: %w", err)
	}
	defer func() { _ = stmtTx.Close() }()

	written := 0
	for _, r := range batch {
		switch {
		case r.rev != nil:
			var tags bytes.Buffer
			if _, err := r.rev.Tags().WriteTo(&tags); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("encode tags of %s: %w", r.rev, err)
			}
			if _, err := stmtRev.Exec(
				j.session, int(r.rev.Surface()), r.rev.Number, r.rev.Meta.ID.String(), r.rev.Meta.Source.String(),
				r.rev.Meta.CommittedAt.UnixNano(), r.rev.NodeCount(), tags.Bytes(),
			); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("insert %s: %w", r.rev, err)
			}
			written++
		case r.tx != nil:
			c := r.tx.Counts()
			if _, err := stmtTx.Exec(
				j.session, int(r.tx.Surface), r.tx.Number, r.tx.BaseNumber,
				c[mounting.MutationCreate], c[mounting.MutationDelete], c[mounting.MutationInsert],
				c[mounting.MutationRemove], c[mounting.MutationUpdate], c[mounting.MutationMove],
				r.tx.Telemetry.Coalesced, r.tx.Telemetry.DiffDuration().Nanoseconds(),
			); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("insert transaction %d: %w", r.tx.Number, err)
			}
			written++
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	recordsWritten.Add(float64(written))
	return nil
}

// RevisionRecord is a journaled revision.
type RevisionRecord struct {
	Session     string
	Surface     graph.SurfaceID
	Number      uint64
	CommitID    string
	Source      string
	CommittedAt time.Time
	NodeCount   int
	Tags        []graph.Tag
}

// TransactionRecord is a journaled transaction summary.
type TransactionRecord struct {
	Session    string
	Surface    graph.SurfaceID
	Number     uint64
	BaseNumber uint64
	Counts     map[mounting.MutationType]int
	Coalesced  int
	Diff       time.Duration
}
