// Package mcp provides an MCP (Model Context Protocol) server exposing the
// memory tools.
package mcp

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/papercomputeco/mnemo/pkg/memory"
	"github.com/papercomputeco/mnemo/pkg/permission"
	"github.com/papercomputeco/mnemo/pkg/retrieval"
	"github.com/papercomputeco/mnemo/pkg/session"
	"github.com/papercomputeco/mnemo/pkg/tool"
	"github.com/papercomputeco/mnemo/pkg/utils"
)

type Config struct {
	// Tool backs the memory tool.
	Tool *tool.Handler

	// Retrieval and Injector back the memory_search tool.
	Retrieval *retrieval.Service
	Injector  *retrieval.Injector

	// Recorder backs the memory_record tool (optional).
	Recorder *session.Recorder

	// Noop for empty MCP server
	Noop bool

	Logger *slog.Logger
}

type Server struct {
	config    Config
	mcpServer *mcp.Server
	handler   *mcp.StreamableHTTPHandler
}

// ActorInput identifies the calling agent. Every tool takes it.
type ActorInput struct {
	AgentID  string `json:"agent_id" jsonschema:"the calling agent's id"`
	TeamID   string `json:"team_id,omitempty" jsonschema:"the calling agent's team"`
	Role     string `json:"role,omitempty" jsonschema:"control, intelligence, policy or worker"`
	SystemID int    `json:"system_id,omitempty" jsonschema:"numeric id of the host system"`
}

func (a ActorInput) actor() permission.Actor {
	return permission.Actor{
		AgentID:  a.AgentID,
		TeamID:   a.TeamID,
		Role:     permission.ParseRole(a.Role),
		SystemID: a.SystemID,
	}
}

// NewServer creates a new MCP server with the memory tools.
func NewServer(c Config) (*Server, error) {
	s := &Server{
		config: c,
	}

	mcpServer := mcp.NewServer(
		&mcp.Implementation{
			Name:    "mnemo",
			Version: utils.Version,
		},
		&mcp.ServerOptions{},
	)

	if !c.Noop {
		if c.Tool == nil {
			return nil, errors.New("tool handler is required")
		}
		if c.Retrieval == nil {
			return nil, errors.New("retrieval service is required")
		}
		if c.Injector == nil {
			return nil, errors.New("injector is required")
		}
		if c.Logger == nil {
			return nil, errors.New("logger is required")
		}

		mcp.AddTool(mcpServer, &mcp.Tool{
			Name:        memoryToolName,
			Description: memoryDescription,
		}, s.handleMemory)

		mcp.AddTool(mcpServer, &mcp.Tool{
			Name:        searchToolName,
			Description: searchDescription,
		}, s.handleSearch)

		if c.Recorder != nil {
			mcp.AddTool(mcpServer, &mcp.Tool{
				Name:        recordToolName,
				Description: recordDescription,
			}, s.handleRecord)
		}
	}

	s.mcpServer = mcpServer

	// Create a streamable HTTP net/http handler for stateless operations
	s.handler = mcp.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcp.Server {
			return mcpServer
		},
		&mcp.StreamableHTTPOptions{
			Stateless: true,
		},
	)

	return s, nil
}

// Handler returns the HTTP handler for the MCP server.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func errorResult(format string, args ...any) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{
			&mcp.TextContent{Text: fmt.Sprintf(format, args...)},
		},
	}
}

// jsonResult serializes output as JSON into a TextContent block alongside
// the structured output.
func jsonResult(output any, isError bool) *mcp.CallToolResult {
	jsonBytes, err := json.Marshal(output)
	if err != nil {
		return errorResult("Failed to serialize results: %v", err)
	}

	return &mcp.CallToolResult{
		IsError: isError,
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(jsonBytes)},
		},
	}
}

func codeMessage(err error) string {
	p := tool.NewErrorPayload(-1, err)
	if p.Code == memory.CodeInternal {
		return p.Message
	}
	return string(p.Code) + ": " + p.Message
}
