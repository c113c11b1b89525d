package mcp

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/papercomputeco/mnemo/pkg/tool"
)

var (
	memoryToolName    = "memory"
	memoryDescription = "Create, read, update, delete, list or promote durable memory entries. Entries live in agent, team or global scope and are partitioned by namespace. Updates and deletes accept if_match; a stale etag never overwrites, it records a new conflict entry instead."
)

// MemoryInput represents the input arguments for the memory tool.
type MemoryInput struct {
	Actor ActorInput `json:"actor" jsonschema:"the calling agent"`

	Action    tool.Action `json:"action" jsonschema:"create, read, update, delete, list or promote"`
	Scope     string      `json:"scope,omitempty" jsonschema:"agent, team or global; defaults to agent"`
	Namespace string      `json:"namespace,omitempty" jsonschema:"partition within the scope; defaults to the caller for agent scope"`
	Items     []tool.Item `json:"items,omitempty" jsonschema:"items for bulk actions, at most 10"`
	Cursor    string      `json:"cursor,omitempty" jsonschema:"list: next_cursor of the previous page"`
	Limit     int         `json:"limit,omitempty" jsonschema:"list: page size"`
}

func (in MemoryInput) request() tool.Request {
	return tool.Request{
		Action:    in.Action,
		Scope:     in.Scope,
		Namespace: in.Namespace,
		Items:     in.Items,
		Cursor:    in.Cursor,
		Limit:     in.Limit,
	}
}

// handleMemory runs one tool request. Per-item errors are returned in the
// structured output; the result is flagged as an error when any item failed.
func (s *Server) handleMemory(ctx context.Context, _ *mcp.CallToolRequest, input MemoryInput) (*mcp.CallToolResult, tool.Response, error) {
	actor := input.Actor.actor()
	if err := actor.Validate(); err != nil {
		return errorResult("%s", codeMessage(err)), tool.Response{}, nil
	}

	s.config.Logger.Debug("MCP memory request",
		"action", input.Action,
		"agent", actor.AgentID,
		"items", len(input.Items),
	)

	resp := s.config.Tool.Handle(ctx, actor, input.request())
	return jsonResult(resp, !resp.OK()), *resp, nil
}
