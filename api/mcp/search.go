package mcp

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/papercomputeco/mnemo/pkg/memory"
	"github.com/papercomputeco/mnemo/pkg/retrieval"
)

var (
	searchToolName    = "memory_search"
	searchDescription = "Search memory entries by free text, tags and layer. Returns the ranked entries and prompt-ready lines of the form [scope:namespace|id] content, bounded to the configured character budget."
)

// SearchInput represents the input arguments for the memory_search tool.
type SearchInput struct {
	Actor ActorInput `json:"actor" jsonschema:"the calling agent"`

	Scope     string   `json:"scope,omitempty" jsonschema:"agent, team or global; defaults to agent"`
	Namespace string   `json:"namespace,omitempty" jsonschema:"partition within the scope"`
	Query     string   `json:"query,omitempty" jsonschema:"free-text query; empty lists in creation order"`
	Tags      []string `json:"tags,omitempty" jsonschema:"tags every result must carry"`
	Layer     string   `json:"layer,omitempty" jsonschema:"working, session, long_term or meta"`
	Limit     int      `json:"limit,omitempty" jsonschema:"number of results to return (default: 10)"`
	Cursor    string   `json:"cursor,omitempty" jsonschema:"next_cursor of the previous page"`
}

// SearchOutput represents the output of the memory_search tool.
type SearchOutput struct {
	Query      string          `json:"query"`
	Items      []*memory.Entry `json:"items"`
	Lines      []string        `json:"lines"`
	Count      int             `json:"count"`
	NextCursor *string         `json:"next_cursor"`
	HasMore    bool            `json:"has_more"`
}

// handleSearch processes a search request.
func (s *Server) handleSearch(ctx context.Context, _ *mcp.CallToolRequest, input SearchInput) (*mcp.CallToolResult, SearchOutput, error) {
	cursor, err := memory.ParseCursor(input.Cursor)
	if err != nil {
		return errorResult("%s", codeMessage(err)), SearchOutput{}, nil
	}

	s.config.Logger.Debug("MCP search request",
		"query", input.Query,
		"scope", input.Scope,
		"limit", input.Limit,
	)

	result, err := s.config.Retrieval.Search(ctx, input.Actor.actor(), retrieval.SearchRequest{
		Scope:     memory.Scope(input.Scope),
		Namespace: input.Namespace,
		Text:      input.Query,
		Tags:      input.Tags,
		Layer:     memory.Layer(input.Layer),
		Limit:     input.Limit,
		Cursor:    cursor,
	})
	if err != nil {
		return errorResult("Search failed: %s", codeMessage(err)), SearchOutput{}, nil
	}

	output := SearchOutput{
		Query:   input.Query,
		Items:   result.Entries,
		Lines:   s.config.Injector.Format(result.Entries),
		Count:   len(result.Entries),
		HasMore: result.HasMore,
	}
	if result.NextCursor != nil {
		next := result.NextCursor.String()
		output.NextCursor = &next
	}

	return jsonResult(output, false), output, nil
}
