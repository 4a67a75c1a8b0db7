package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	v1 "github.com/atelier-studio/atelier/app/logic/v1"
	"github.com/atelier-studio/atelier/pkg/mcp/auth"
)

// RegisterTools exposes the read-only studio tools. Calls run through the
// studio dispatcher, the same path the assistant uses.
func RegisterTools(server *mcp.Server, studio *v1.Studio) {
	addStudioTool[ListEntitiesInput](server, studio, "list_entities")
	addStudioTool[GetEntityInput](server, studio, "get_entity")
	addStudioTool[PastAssetsInput](server, studio, "get_past_assets")
	addStudioTool[SemanticSearchInput](server, studio, "semantic_search")
	addStudioTool[RoadmapProgressInput](server, studio, "get_roadmap_progress")
}

type scoped interface {
	session() string
}

// Scope selects the project a call runs in.
type Scope struct {
	SessionID string `json:"session_id" jsonschema:"The project (chat session) id"`
}

func (s Scope) session() string {
	return s.SessionID
}

func addStudioTool[In scoped](server *mcp.Server, studio *v1.Studio, name string) {
	t, ok := studio.Registry().Get(name)
	if !ok || !t.Is(v1.TOOL_CAP_READ_ONLY) {
		panic("mcp: " + name + " is not a read-only studio tool")
	}

	mcp.AddTool(server, &mcp.Tool{
		Name:        t.Name,
		Description: t.Description,
	}, func(ctx context.Context, req *mcp.CallToolRequest, in In) (*mcp.CallToolResult, any, error) {
		userCtx, ok := auth.GetUserContext(ctx)
		if !ok {
			return nil, nil, fmt.Errorf("user context not found")
		}
		if in.session() == "" {
			return nil, nil, fmt.Errorf("session_id is required")
		}

		args, err := json.Marshal(in)
		if err != nil {
			return nil, nil, err
		}
		tc := studio.NewTurnContext(ctx, userCtx.UserID, in.session(), userCtx.Lang)
		out, err := t.Bind(studio.Dispatcher(), tc).InvokableRun(ctx, string(args))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to run %s: %w", name, err)
		}

		var res struct {
			Success bool   `json:"success"`
			Error   string `json:"error"`
		}
		_ = json.Unmarshal([]byte(out), &res)
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: out}},
			IsError: !res.Success,
		}, nil, nil
	})
}
