package inspect

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/agentic-research/revtree/api"
	"github.com/agentic-research/revtree/internal/fixture"
	"github.com/agentic-research/revtree/internal/graph"
)

// NodeInfo is the result of find_node.
type NodeInfo struct {
	Surface  int32       `json:"surface"`
	Revision uint64      `json:"revision"`
	Node     api.Element `json:"node"`
}

// RevisionTree is the result of get_revision.
type RevisionTree struct {
	RevisionInfo
	Root api.Element `json:"root"`
}

// Tools holds the MCP tool handlers over a Source.
type Tools struct {
	src Source
}

// NewTools creates the tool handlers.
func NewTools(src Source) *Tools { return &Tools{src: src} }

// NewMCPServer registers list_surfaces, get_revision and find_node.
func NewMCPServer(src Source, version string) *server.MCPServer {
	t := NewTools(src)
	s := server.NewMCPServer("revtree", version, server.WithToolCapabilities(false))

	s.AddTool(mcp.NewTool("list_surfaces",
		mcp.WithDescription("List running surfaces with their current revision number and node count"),
	), t.ListSurfaces)

	s.AddTool(mcp.NewTool("get_revision",
		mcp.WithDescription("Return the current revision of a surface as a JSON tree"),
		mcp.WithNumber("surface", mcp.Required(), mcp.Description("Surface id")),
	), t.GetRevision)

	s.AddTool(mcp.NewTool("find_node",
		mcp.WithDescription("Find a node by tag across all surfaces"),
		mcp.WithNumber("tag", mcp.Required(), mcp.Description("Node tag")),
	), t.FindNode)

	return s
}

// ServeStdio serves the MCP tools on stdin/stdout until EOF.
func ServeStdio(src Source, version string) error {
	return server.ServeStdio(NewMCPServer(src, version))
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	return mcp.NewToolResultText(string(b)), nil
}

// ListSurfaces handles list_surfaces.
func (t *Tools) ListSurfaces(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	infos := make([]RevisionInfo, 0)
	for _, id := range t.src.Surfaces() {
		if rev, ok := t.src.CurrentRevision(id); ok {
			infos = append(infos, revisionInfo(rev))
		}
	}
	return jsonResult(infos)
}

// GetRevision handles get_revision.
func (t *Tools) GetRevision(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireFloat("surface")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	rev, ok := t.src.CurrentRevision(graph.SurfaceID(id))
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("surface %d is not running", int32(id))), nil
	}
	return jsonResult(RevisionTree{RevisionInfo: revisionInfo(rev), Root: fixture.Dump(rev.Root)})
}

// FindNode handles find_node.
func (t *Tools) FindNode(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tag, err := req.RequireFloat("tag")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	n, rev, ok := t.src.FindNodeByTag(graph.Tag(tag))
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("no node with tag %d", int32(tag))), nil
	}
	return jsonResult(NodeInfo{Surface: int32(rev.Surface()), Revision: rev.Number, Node: fixture.Dump(n)})
}
