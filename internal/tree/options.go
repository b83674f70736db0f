package tree

import (
	"log/slog"

	"github.com/agentic-research/revtree/internal/mounting"
)

type options struct {
	logger       *slog.Logger
	layout       Layout
	listeners    []CommitListener
	mountingOpts []mounting.Option
}

// Option configures a Tree.
type Option func(*options)

// WithLogger sets the logger used by the tree and its coordinator.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithLayout installs the layout hook run inside every commit.
func WithLayout(l Layout) Option {
	return func(o *options) { o.layout = l }
}

// WithCommitListener adds a listener for published revisions.
func WithCommitListener(fn CommitListener) Option {
	return func(o *options) { o.listeners = append(o.listeners, fn) }
}

// WithMountingOptions passes options through to the coordinator.
func WithMountingOptions(opts ...mounting.Option) Option {
	return func(o *options) { o.mountingOpts = append(o.mountingOpts, opts...) }
}
