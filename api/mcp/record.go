package mcp

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/papercomputeco/mnemo/pkg/memory"
	"github.com/papercomputeco/mnemo/pkg/session"
)

var (
	recordToolName    = "memory_record"
	recordDescription = "Record session log lines as a session memory. Secret-looking tokens are redacted. Buffered lines are periodically compacted into a long-term reflection."
)

// RecordInput represents the input arguments for the memory_record tool.
type RecordInput struct {
	Actor ActorInput `json:"actor" jsonschema:"the calling agent"`

	Scope     string   `json:"scope,omitempty" jsonschema:"agent, team or global; defaults to agent"`
	Namespace string   `json:"namespace,omitempty" jsonschema:"partition within the scope"`
	Lines     []string `json:"lines" jsonschema:"the log lines to record"`
}

// handleRecord records session lines.
func (s *Server) handleRecord(ctx context.Context, _ *mcp.CallToolRequest, input RecordInput) (*mcp.CallToolResult, session.Result, error) {
	result, err := s.config.Recorder.Record(ctx, input.Actor.actor(), memory.Scope(input.Scope), input.Namespace, input.Lines)
	if err != nil && result == nil {
		return errorResult("Record failed: %s", codeMessage(err)), session.Result{}, nil
	}
	if err != nil {
		s.config.Logger.Warn("session record follow-up failed", "error", err)
	}

	return jsonResult(result, false), *result, nil
}
