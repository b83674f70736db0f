package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agentic-research/revtree/internal/fixture"
)

func newReplayCmd(root *rootOptions) *cobra.Command {
	var coalesce, quiet bool
	cmd := &cobra.Command{
		Use:   "replay <scene.json>",
		Short: "Commit every revision of a scene and print the mounting log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			scene, err := fixture.Load(args[0])
			if err != nil {
				return err
			}
			m, closeFn, err := root.newManager()
			if err != nil {
				return err
			}
			defer func() { err = errors.Join(err, closeFn()) }()

			txs, err := fixture.Replay(cmd.Context(), m, scene, fixture.ReplayOptions{Coalesce: coalesce})
			out := cmd.OutOrStdout()
			for _, tx := range txs {
				fmt.Fprintf(out, "# revision %d (base %d, %d mutations, %d coalesced)\n",
					tx.Number, tx.BaseNumber, len(tx.Mutations), tx.Telemetry.Coalesced)
				if quiet {
					continue
				}
				for _, line := range tx.Log() {
					fmt.Fprintln(out, line)
				}
			}
			return err
		},
	}
	cmd.Flags().BoolVar(&coalesce, "coalesce", false, "Pull a single transaction after the last commit")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Print only transaction summaries")
	return cmd
}
