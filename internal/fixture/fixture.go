// Package fixture converts JSON scene descriptions into node trees and back,
// and replays scenes against a surface manager.
package fixture

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/agentic-research/revtree/api"
	"github.com/agentic-research/revtree/internal/graph"
)

// Load reads a scene file.
func Load(path string) (*api.Scene, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scene %s: %w", path, err)
	}
	var s api.Scene
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse scene %s: %w", path, err)
	}
	if len(s.Revisions) == 0 {
		return nil, fmt.Errorf("scene %s has no revisions", path)
	}
	return &s, nil
}

// Build turns an element into an unsealed node tree on surface.
func Build(surface graph.SurfaceID, e api.Element) (*graph.Node, error) {
	kind, err := graph.ParseKind(e.Kind)
	if err != nil {
		return nil, fmt.Errorf("element %d: %w", e.Tag, err)
	}
	tag := graph.Tag(e.Tag)
	if kind == graph.KindRoot && tag == 0 {
		tag = graph.RootTag(surface)
	}
	props, err := graph.ParseProps(e.Props)
	if err != nil {
		return nil, fmt.Errorf("element %d props: %w", e.Tag, err)
	}
	state, err := graph.ParseState(e.State)
	if err != nil {
		return nil, fmt.Errorf("element %d state: %w", e.Tag, err)
	}

	children := make([]*graph.Node, 0, len(e.Children))
	for _, c := range e.Children {
		n, err := Build(surface, c)
		if err != nil {
			return nil, err
		}
		children = append(children, n)
	}
	return graph.NewNode(graph.Spec{
		Tag:      tag,
		Surface:  surface,
		Kind:     kind,
		Props:    props,
		State:    state,
		Children: children,
	})
}

// Dump converts a node tree back into its element form.
func Dump(n *graph.Node) api.Element {
	e := api.Element{
		Tag:  int32(n.Tag()),
		Kind: n.Kind().String(),
	}
	if !n.Props().IsEmpty() {
		e.Props = json.RawMessage(n.Props().Bytes())
	}
	if !n.State().IsEmpty() {
		e.State = json.RawMessage(n.State().Bytes())
	}
	for _, c := range n.Children() {
		e.Children = append(e.Children, Dump(c))
	}
	return e
}
