package mcp

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	v1 "github.com/atelier-studio/atelier/app/logic/v1"
	"github.com/atelier-studio/atelier/pkg/mcp/auth"
)

// MCPStreamableHandler serves the MCP streamable HTTP transport. One server
// instance is shared by every session.
func MCPStreamableHandler(studio *v1.Studio) gin.HandlerFunc {
	mcpServer := NewMCPServer(studio)

	streamableHandler := mcp.NewStreamableHTTPHandler(
		func(r *http.Request) *mcp.Server {
			return mcpServer.server
		},
		&mcp.StreamableHTTPOptions{
			JSONResponse: true,
			Stateless:    false,
		},
	)

	slog.Info("MCP Streamable Handler initialized")

	return func(c *gin.Context) {
		userCtx, err := auth.ValidateRequest(c)
		if err != nil {
			slog.Warn("MCP auth failed", slog.String("error", err.Error()))
			c.JSON(http.StatusUnauthorized, gin.H{
				"jsonrpc": "2.0",
				"error": map[string]interface{}{
					"code":    -32000,
					"message": "Authentication failed: " + err.Error(),
				},
				"id": nil,
			})
			return
		}

		slog.Debug("MCP request",
			slog.String("method", c.Request.Method),
			slog.String("user_id", userCtx.UserID),
			slog.String("session_id", c.Request.Header.Get("Mcp-Session-Id")))

		c.Request = c.Request.WithContext(auth.SetUserContext(c.Request.Context(), userCtx))
		streamableHandler.ServeHTTP(c.Writer, c.Request)
	}
}
