package mcp

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"

	v1 "github.com/atelier-studio/atelier/app/logic/v1"
	"github.com/atelier-studio/atelier/pkg/mcp/tools"
)

// MCPServer exposes the read side of the studio to MCP clients.
type MCPServer struct {
	server *mcp.Server
	studio *v1.Studio
}

func NewMCPServer(studio *v1.Studio) *MCPServer {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "atelier-mcp",
		Title:   "Atelier Studio MCP Server",
		Version: "v0.1.0",
	}, nil)

	tools.RegisterTools(server, studio)

	return &MCPServer{
		server: server,
		studio: studio,
	}
}

func (s *MCPServer) Server() *mcp.Server {
	return s.server
}
