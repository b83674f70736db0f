// Package cmd implements the revtree command line.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/agentic-research/revtree/internal/config"
	"github.com/agentic-research/revtree/internal/journal"
	"github.com/agentic-research/revtree/internal/surface"
)

// Version is stamped at build time.
var Version = "dev"

type rootOptions struct {
	configPath  string
	logLevel    string
	journalPath string

	cfg *config.Config
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "revtree",
		Short:         "Concurrent scene-graph commit engine: replay, stress and inspect surfaces",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.load(cmd)
		},
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Path to an HCL config file")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&opts.journalPath, "journal", "", "Record revisions and transactions to this SQLite file")

	root.AddCommand(
		newReplayCmd(opts),
		newStressCmd(opts),
		newInspectCmd(opts),
		newMCPCmd(opts),
		newJournalCmd(opts),
	)
	return root
}

func (o *rootOptions) load(cmd *cobra.Command) error {
	var err error
	if o.configPath != "" {
		if o.cfg, err = config.Load(o.configPath); err != nil {
			return err
		}
	} else {
		o.cfg = config.Default()
	}
	if cmd.Flags().Changed("log-level") {
		o.cfg.LogLevel = o.logLevel
	}
	if cmd.Flags().Changed("journal") {
		o.cfg.Journal = &config.JournalConfig{Path: o.journalPath}
	}
	if err := o.cfg.Validate(); err != nil {
		return err
	}

	lvl, _ := o.cfg.SlogLevel()
	slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: lvl})))
	return nil
}

// newManager creates a surface manager, wired to the journal when one is
// configured. The returned close function flushes and closes the journal.
func (o *rootOptions) newManager() (*surface.Manager, func() error, error) {
	if o.cfg.Journal == nil {
		return surface.NewManager(), func() error { return nil }, nil
	}
	var jopts []journal.Option
	if o.cfg.Journal.QueueSize > 0 {
		jopts = append(jopts, journal.WithQueueSize(o.cfg.Journal.QueueSize))
	}
	j, err := journal.Open(o.cfg.Journal.Path, jopts...)
	if err != nil {
		return nil, nil, err
	}
	m := surface.NewManager(surface.WithTreeOptions(j.TreeOptions()...))
	return m, func() error {
		m.StopAll(context.Background())
		return j.Close()
	}, nil
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
