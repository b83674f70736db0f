package cmd

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/agentic-research/revtree/internal/fixture"
	"github.com/agentic-research/revtree/internal/inspect"
)

func newMCPCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp <scene.json>...",
		Short: "Replay scenes and serve MCP inspection tools on stdio",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			m, closeFn, err := root.newManager()
			if err != nil {
				return err
			}
			defer func() { err = errors.Join(err, closeFn()) }()

			for _, path := range args {
				scene, err := fixture.Load(path)
				if err != nil {
					return err
				}
				if _, err := fixture.Replay(cmd.Context(), m, scene, fixture.ReplayOptions{Coalesce: true}); err != nil {
					return err
				}
			}
			return inspect.ServeStdio(m, Version)
		},
	}
}
