package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/agentic-research/revtree/internal/stress"
)

func newStressCmd(root *rootOptions) *cobra.Command {
	var (
		committers, readers int
		duration            time.Duration
		rate                float64
		try, consumer       bool
	)
	cmd := &cobra.Command{
		Use:   "stress",
		Short: "Run committers and readers against one surface and report progress",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) (err error) {
			sc := root.cfg.Stress
			scenario := stress.Scenario{
				Committers: sc.Committers,
				Readers:    sc.Readers,
				Rate:       sc.Rate,
				TryCommit:  sc.TryCommit,
				Consumer:   sc.Consumer,
			}
			if scenario.Duration, err = sc.ParsedDuration(); err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("committers") {
				scenario.Committers = committers
			}
			if flags.Changed("readers") {
				scenario.Readers = readers
			}
			if flags.Changed("duration") {
				scenario.Duration = duration
			}
			if flags.Changed("rate") {
				scenario.Rate = rate
			}
			if flags.Changed("try") {
				scenario.TryCommit = try
			}
			if flags.Changed("consumer") {
				scenario.Consumer = consumer
			}

			m, closeFn, err := root.newManager()
			if err != nil {
				return err
			}
			defer func() { err = errors.Join(err, closeFn()) }()

			t, err := m.StartSurface(cmd.Context(), 1)
			if err != nil {
				return err
			}
			res, err := stress.Run(cmd.Context(), t, m, scenario)
			fmt.Fprintln(cmd.OutOrStdout(), res)
			return err
		},
	}
	flags := cmd.Flags()
	flags.IntVar(&committers, "committers", 2, "Committer goroutines")
	flags.IntVar(&readers, "readers", 4, "Reader goroutines")
	flags.DurationVar(&duration, "duration", 2*time.Second, "Run time")
	flags.Float64Var(&rate, "rate", 0, "Commits per second per committer (0 = unlimited)")
	flags.BoolVar(&try, "try", false, "Use TryCommit and count lock contention")
	flags.BoolVar(&consumer, "consumer", false, "Pull transactions while committing")
	return cmd
}
