package api

import "encoding/json"

// Scene is a recorded sequence of trees for one surface. Replaying it commits
// each entry of Revisions in order.
type Scene struct {
	// Version of the scene format.
	Version string `json:"version"`
	// Surface the scene is committed to.
	Surface int32 `json:"surface"`
	// Revisions holds one root element per commit.
	Revisions []Element `json:"revisions"`
}

// Element describes one node and its subtree.
type Element struct {
	// Tag of the node. A zero tag on a RootView element means the surface's
	// root tag.
	Tag int32 `json:"tag"`
	// Kind is the display name of the node kind, e.g. "View".
	Kind string `json:"kind"`
	// Props is an arbitrary JSON document.
	Props json.RawMessage `json:"props,omitempty"`
	// State is an arbitrary JSON document.
	State json.RawMessage `json:"state,omitempty"`
	// Children in order.
	Children []Element `json:"children,omitempty"`
}
