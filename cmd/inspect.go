package cmd

import (
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/agentic-research/revtree/internal/fixture"
	"github.com/agentic-research/revtree/internal/inspect"
)

func newInspectCmd(root *rootOptions) *cobra.Command {
	var mountpoint, listen string
	cmd := &cobra.Command{
		Use:   "inspect <scene.json>",
		Short: "Replay a scene and serve its surfaces as a read-only NFS filesystem",
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

			if _, err := fixture.Replay(cmd.Context(), m, scene, fixture.ReplayOptions{Coalesce: true}); err != nil {
				return err
			}

			if !cmd.Flags().Changed("listen") {
				listen = root.cfg.Inspect.Listen
			}
			srv, err := inspect.NewServer(inspect.NewSurfaceFS(m), listen)
			if err != nil {
				return err
			}
			defer func() { _ = srv.Close() }()
			fmt.Fprintf(cmd.OutOrStdout(), "NFS server listening on port %d\n", srv.Port())

			if mountpoint != "" {
				mp, merr := srv.Mount(mountpoint)
				if merr != nil {
					return merr
				}
				fmt.Fprintf(cmd.OutOrStdout(), "mounted at %s\n", mp.Dir)
				defer func() { err = errors.Join(err, mp.Unmount()) }()
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			<-ctx.Done()
			return nil
		},
	}
	cmd.Flags().StringVar(&mountpoint, "mount", "", "Mount the filesystem at this directory (needs sudo)")
	cmd.Flags().StringVar(&listen, "listen", "127.0.0.1:0", "NFS listen address")
	return cmd
}
