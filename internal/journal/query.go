package journal

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/RoaringBitmap/roaring"

	"github.com/agentic-research/revtree/internal/graph"
	"github.com/agentic-research/revtree/internal/mounting"
)

// Revisions returns the journaled revisions of a surface in the order they
// were written, across every session.
func (j *Journal) Revisions(ctx context.Context, surface graph.SurfaceID) ([]RevisionRecord, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT session, number, commit_id, source, committed_at, node_count, tags
		FROM revisions WHERE surface = ? ORDER BY seq
	`, int(surface))
	if err != nil {
		return nil, fmt.Errorf("query revisions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []RevisionRecord
	for rows.Next() {
		r := RevisionRecord{Surface: surface}
		var nanos int64
		var blob []byte
		if err := rows.Scan(&r.Session, &r.Number, &r.CommitID, &r.Source, &nanos, &r.NodeCount, &blob); err != nil {
			return nil, fmt.Errorf("scan revision: %w", err)
		}
		r.CommittedAt = time.Unix(0, nanos)
		if len(blob) > 0 {
			bm := roaring.New()
			if _, err := bm.ReadFrom(bytes.NewReader(blob)); err != nil {
				return nil, fmt.Errorf("decode tags of revision %d: %w", r.Number, err)
			}
			for _, b := range bm.ToArray() {
				r.Tags = append(r.Tags, graph.TagFromBit(b))
			}
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Transactions returns the journaled transactions of a surface in the order
// they were written.
func (j *Journal) Transactions(ctx context.Context, surface graph.SurfaceID) ([]TransactionRecord, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT session, number, base_number, creates, deletes, inserts, removes, updates, moves, coalesced, diff_ns
		FROM transactions WHERE surface = ? ORDER BY seq
	`, int(surface))
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []TransactionRecord
	for rows.Next() {
		r := TransactionRecord{Surface: surface}
		var creates, deletes, inserts, removes, updates, moves int
		var diffNanos int64
		if err := rows.Scan(&r.Session, &r.Number, &r.BaseNumber, &creates, &deletes, &inserts, &removes, &updates, &moves,
			&r.Coalesced, &diffNanos); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		r.Counts = map[mounting.MutationType]int{
			mounting.MutationCreate: creates,
			mounting.MutationDelete: deletes,
			mounting.MutationInsert: inserts,
			mounting.MutationRemove: removes,
			mounting.MutationUpdate: updates,
			mounting.MutationMove:   moves,
		}
		r.Diff = time.Duration(diffNanos)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Surfaces lists every surface that has journaled revisions.
func (j *Journal) Surfaces(ctx context.Context) ([]graph.SurfaceID, error) {
	rows, err := j.db.QueryContext(ctx, `SELECT DISTINCT surface FROM revisions ORDER BY surface`)
	if err != nil {
		return nil, fmt.Errorf("query surfaces: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []graph.SurfaceID
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan surface: %w", err)
		}
		out = append(out, graph.SurfaceID(id))
	}
	return out, rows.Err()
}
