// Package mcp exposes traversals as Model Context Protocol tools.
package mcp

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/sanonone/kektorgraph/pkg/engine"
)

func NewMCPServer(eng *engine.Engine, version string) *mcp.Server {
	service := NewService(eng)

	s := mcp.NewServer(&mcp.Implementation{
		Name:    "kektorgraph",
		Version: version,
	}, nil)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "traverse",
		Description: "Run a multi-step graph traversal from start vertices and return the scored edges of the final step.",
	}, service.Traverse)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "neighbors",
		Description: "List the top scored edges of one vertex for a label.",
	}, service.Neighbors)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "list_backends",
		Description: "List the configured storage backends.",
	}, service.ListBackends)

	return s
}
