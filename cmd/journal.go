package cmd

import (
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/agentic-research/revtree/internal/graph"
	"github.com/agentic-research/revtree/internal/journal"
	"github.com/agentic-research/revtree/internal/mounting"
)

func newJournalCmd(_ *rootOptions) *cobra.Command {
	var surfaceID int32
	cmd := &cobra.Command{
		Use:   "journal <db>",
		Short: "Print the revisions and transactions recorded in a journal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			j, err := journal.Open(args[0])
			if err != nil {
				return err
			}
			defer func() { err = errors.Join(err, j.Close()) }()

			ctx := cmd.Context()
			surfaces := []graph.SurfaceID{graph.SurfaceID(surfaceID)}
			if !cmd.Flags().Changed("surface") {
				if surfaces, err = j.Surfaces(ctx); err != nil {
					return err
				}
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, id := range surfaces {
				revs, err := j.Revisions(ctx, id)
				if err != nil {
					return err
				}
				txs, err := j.Transactions(ctx, id)
				if err != nil {
					return err
				}

				fmt.Fprintf(w, "surface %d\n", id)
				fmt.Fprintln(w, "SESSION\tREVISION\tSOURCE\tNODES\tCOMMITTED\tID")
				for _, r := range revs {
					fmt.Fprintf(w, "%s\t%d\t%s\t%d\t%s\t%s\n",
						shortSession(r.Session), r.Number, r.Source, r.NodeCount, r.CommittedAt.Format(time.RFC3339Nano), r.CommitID)
				}
				fmt.Fprintln(w, "\nSESSION\tTRANSACTION\tBASE\tCREATE\tDELETE\tINSERT\tREMOVE\tMOVE\tUPDATE\tCOALESCED\tDIFF")
				for _, tx := range txs {
					fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t%d\t%d\t%d\t%d\t%d\t%s\n",
						shortSession(tx.Session), tx.Number, tx.BaseNumber,
						tx.Counts[mounting.MutationCreate], tx.Counts[mounting.MutationDelete],
						tx.Counts[mounting.MutationInsert], tx.Counts[mounting.MutationRemove],
						tx.Counts[mounting.MutationMove], tx.Counts[mounting.MutationUpdate],
						tx.Coalesced, tx.Diff)
				}
				fmt.Fprintln(w)
			}
			return w.Flush()
		},
	}
	cmd.Flags().Int32Var(&surfaceID, "surface", 0, "Only show this surface")
	return cmd
}

// shortSession trims a session uuid to its first group.
func shortSession(s string) string {
	if i := strings.IndexByte(s, '-'); i > 0 {
		return s[:i]
	}
	return s
}
