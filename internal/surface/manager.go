// Package surface is the explicit process context for a set of surfaces:
// it starts and stops trees and answers lookups that span surfaces.
package surface

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/agentic-research/revtree/internal/graph"
	"github.com/agentic-research/revtree/internal/registry"
	"github.com/agentic-research/revtree/internal/tree"
)

// ErrSurfaceNotFound is returned when an operation names an unknown surface.
var ErrSurfaceNotFound = errors.New("surface not found")

// Option configures a Manager.
type Option func(*Manager)

// WithLogger replaces the component logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithTracer replaces the tracer used for start/stop spans.
func WithTracer(t trace.Tracer) Option {
	return func(m *Manager) { m.tracer = t }
}

// WithTreeOptions adds options applied to every tree the manager starts.
func WithTreeOptions(opts ...tree.Option) Option {
	return func(m *Manager) { m.treeOpts = append(m.treeOpts, opts...) }
}

// Manager owns a registry of trees. Independent managers share nothing.
type Manager struct {
	registry *registry.Registry
	logger   *slog.Logger
	tracer   trace.Tracer
	treeOpts []tree.Option
}

// NewManager creates a manager with an empty registry.
func NewManager(opts ...Option) *Manager {
	m := &Manager{registry: registry.New()}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = slog.Default().With(slog.String("component", "surface"))
	}
	if m.tracer == nil {
		m.tracer = otel.Tracer("surface")
	}
	return m
}

// Registry exposes the underlying registry.
func (m *Manager) Registry() *registry.Registry { return m.registry }

// StartSurface creates the tree of a new surface and registers it.
func (m *Manager) StartSurface(ctx context.Context, id graph.SurfaceID, opts ...tree.Option) (*tree.Tree, error) {
	_, span := m.tracer.Start(ctx, "surface.Start", trace.WithAttributes(attribute.Int("surface", int(id))))
	defer span.End()

	t := tree.New(id, append(slices.Clone(m.treeOpts), opts...)...)
	if err := m.registry.Add(t); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "register surface")
		return nil, fmt.Errorf("start surface: %w", err)
	}
	m.logger.Info("surface started", slog.Int("surface", int(id)))
	return t, nil
}

// StopSurface unregisters a surface and stops its tree. Revisions handed out
// before the call stay valid.
func (m *Manager) StopSurface(ctx context.Context, id graph.SurfaceID) (*tree.Tree, error) {
	_, span := m.tracer.Start(ctx, "surface.Stop", trace.WithAttributes(attribute.Int("surface", int(id))))
	defer span.End()

	t, ok := m.registry.Remove(id)
	if !ok {
		err := fmt.Errorf("stop surface %d: %w", id, ErrSurfaceNotFound)
		span.RecordError(err)
		span.SetStatus(codes.Error, "unknown surface")
		return nil, err
	}
	t.StopSurface()
	m.logger.Info("surface stopped", slog.Int("surface", int(id)))
	return t, nil
}

// StopAll stops every registered surface.
func (m *Manager) StopAll(ctx context.Context) {
	for _, t := range m.registry.Snapshot() {
		_, _ = m.StopSurface(ctx, t.Surface())
	}
}

// Tree returns the tree of a running surface.
func (m *Manager) Tree(id graph.SurfaceID) (*tree.Tree, bool) {
	return m.registry.Get(id)
}

// Surfaces lists the registered surface ids in ascending order.
func (m *Manager) Surfaces() []graph.SurfaceID {
	trees := m.registry.Snapshot()
	ids := make([]graph.SurfaceID, len(trees))
	for i, t := range trees {
		ids[i] = t.Surface()
	}
	return ids
}

// CurrentRevision returns the current revision of a surface.
func (m *Manager) CurrentRevision(id graph.SurfaceID) (graph.Revision, bool) {
	t, ok := m.registry.Get(id)
	if !ok {
		return graph.Revision{}, false
	}
	return t.CurrentRevision()
}

// FindNodeByTag searches the current revision of every surface, in surface
// id order, and returns the first node carrying tag together with the
// revision that keeps it alive.
func (m *Manager) FindNodeByTag(tag graph.Tag) (*graph.Node, graph.Revision, bool) {
	var (
		found *graph.Node
		rev   graph.Revision
	)
	m.registry.Enumerate(func(t *tree.Tree, stop *bool) {
		if n, r, ok := t.FindNode(tag); ok {
			found, rev = n, r
			*stop = true
		}
	})
	return found, rev, found != nil
}
