package api

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/mnemo/pkg/memory"
	"github.com/papercomputeco/mnemo/pkg/permission"
	"github.com/papercomputeco/mnemo/pkg/retrieval"
	"github.com/papercomputeco/mnemo/pkg/tool"
)

// Actor headers.
const (
	HeaderAgentID  = "X-Agent-ID"
	HeaderTeamID   = "X-Team-ID"
	HeaderRole     = "X-Agent-Role"
	HeaderSystemID = "X-System-ID"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string         `json:"error"`
	Code    memory.Code    `json:"code"`
	Details map[string]any `json:"details,omitempty"`
}

// SearchRequest is the body of /v1/memory/search and /v1/memory/inject.
type SearchRequest struct {
	Scope     string   `json:"scope,omitempty"`
	Namespace string   `json:"namespace,omitempty"`
	Text      string   `json:"text,omitempty"`
	Tags      []string `json:"tags,omitempty"`
	Layer     string   `json:"layer,omitempty"`
	Limit     int      `json:"limit,omitempty"`
	Cursor    string   `json:"cursor,omitempty"`
}

// SearchResponse is a page of search results.
type SearchResponse struct {
	Items      []*memory.Entry `json:"items"`
	NextCursor *string         `json:"next_cursor"`
	HasMore    bool            `json:"has_more"`
}

// InjectResponse carries prompt lines built from search results.
type InjectResponse struct {
	Lines []string `json:"lines"`
}

// RecordRequest is the body of /v1/session/record.
type RecordRequest struct {
	Scope     string   `json:"scope,omitempty"`
	Namespace string   `json:"namespace,omitempty"`
	Lines     []string `json:"lines"`
}

// PruneRequest is the body of /v1/memory/prune.
type PruneRequest struct {
	Scope     string `json:"scope,omitempty"`
	Namespace string `json:"namespace,omitempty"`
}

// PruneResponse lists the deleted entry ids.
type PruneResponse struct {
	Deleted []string `json:"deleted"`
}

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

// handleMemory handles POST /v1/memory with the tool envelope. Per-item
// failures are reported in the response body with a 200 status.
func (s *Server) handleMemory(c *fiber.Ctx) error {
	actor, err := actorFromHeaders(c)
	if err != nil {
		return s.fail(c, err)
	}

	var req tool.Request
	if err := c.BodyParser(&req); err != nil {
		return s.fail(c, memory.Errorf(memory.CodeInvalidParams, "invalid request body"))
	}

	return c.JSON(s.config.Tool.Handle(c.Context(), actor, req))
}

// handleSearch handles POST /v1/memory/search.
func (s *Server) handleSearch(c *fiber.Ctx) error {
	actor, req, err := s.searchRequest(c)
	if err != nil {
		return s.fail(c, err)
	}

	result, err := s.config.Retrieval.Search(c.Context(), actor, req)
	if err != nil {
		return s.fail(c, err)
	}

	resp := SearchResponse{Items: result.Entries, HasMore: result.HasMore}
	if result.NextCursor != nil {
		next := result.NextCursor.String()
		resp.NextCursor = &next
	}

	return c.JSON(resp)
}

// handleInject handles POST /v1/memory/inject: a search whose results are
// formatted into prompt lines.
func (s *Server) handleInject(c *fiber.Ctx) error {
	actor, req, err := s.searchRequest(c)
	if err != nil {
		return s.fail(c, err)
	}

	result, err := s.config.Retrieval.Search(c.Context(), actor, req)
	if err != nil {
		return s.fail(c, err)
	}

	return c.JSON(InjectResponse{Lines: s.config.Injector.Format(result.Entries)})
}

// handleRecord handles POST /v1/session/record.
func (s *Server) handleRecord(c *fiber.Ctx) error {
	if s.config.Recorder == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(ErrorResponse{
			Error: "session recording is not configured",
			Code:  memory.CodeNotImplemented,
		})
	}

	actor, err := actorFromHeaders(c)
	if err != nil {
		return s.fail(c, err)
	}

	var req RecordRequest
	if err := c.BodyParser(&req); err != nil {
		return s.fail(c, memory.Errorf(memory.CodeInvalidParams, "invalid request body"))
	}

	result, err := s.config.Recorder.Record(c.Context(), actor, memory.Scope(req.Scope), req.Namespace, req.Lines)
	if err != nil && result == nil {
		return s.fail(c, err)
	}
	if err != nil {
		// The session entry was written; only the follow-up steps failed.
		s.logger.Warn("session record follow-up failed",
			"actor", actor.AgentID,
			"error", err,
		)
	}

	return c.Status(fiber.StatusCreated).JSON(result)
}

// handleMetrics handles GET /v1/metrics.
func (s *Server) handleMetrics(c *fiber.Ctx) error {
	if s.config.Metrics == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(ErrorResponse{
			Error: "metrics are not configured",
			Code:  memory.CodeNotImplemented,
		})
	}

	return c.JSON(s.config.Metrics.Snapshot())
}

// handlePrune handles POST /v1/memory/prune.
func (s *Server) handlePrune(c *fiber.Ctx) error {
	if s.config.Pruner == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(ErrorResponse{
			Error: "pruning is not configured",
			Code:  memory.CodeNotImplemented,
		})
	}

	actor, err := actorFromHeaders(c)
	if err != nil {
		return s.fail(c, err)
	}

	var req PruneRequest
	if err := c.BodyParser(&req); err != nil {
		return s.fail(c, memory.Errorf(memory.CodeInvalidParams, "invalid request body"))
	}

	deleted, err := s.config.Pruner.Prune(c.Context(), actor, memory.Scope(req.Scope), req.Namespace)
	if err != nil {
		return s.fail(c, err)
	}

	return c.JSON(PruneResponse{Deleted: deleted})
}

func (s *Server) searchRequest(c *fiber.Ctx) (permission.Actor, retrieval.SearchRequest, error) {
	actor, err := actorFromHeaders(c)
	if err != nil {
		return permission.Actor{}, retrieval.SearchRequest{}, err
	}

	var body SearchRequest
	if err := c.BodyParser(&body); err != nil {
		return permission.Actor{}, retrieval.SearchRequest{}, memory.Errorf(memory.CodeInvalidParams, "invalid request body")
	}

	cursor, err := memory.ParseCursor(body.Cursor)
	if err != nil {
		return permission.Actor{}, retrieval.SearchRequest{}, err
	}

	return actor, retrieval.SearchRequest{
		Scope:     memory.Scope(body.Scope),
		Namespace: body.Namespace,
		Text:      body.Text,
		Tags:      body.Tags,
		Layer:     memory.Layer(body.Layer),
		Limit:     body.Limit,
		Cursor:    cursor,
	}, nil
}

// fail writes err with the status matching its code.
func (s *Server) fail(c *fiber.Ctx, err error) error {
	payload := tool.NewErrorPayload(-1, err)
	status := StatusFor(payload.Code)

	if status == fiber.StatusInternalServerError && !errors.Is(err, memory.ErrNotConfigured) {
		s.logger.Error("request failed",
			"path", c.Path(),
			"error", err,
		)
	}

	return c.Status(status).JSON(ErrorResponse{
		Error:   payload.Message,
		Code:    payload.Code,
		Details: payload.Details,
	})
}

// StatusFor maps an error code to an HTTP status.
func StatusFor(code memory.Code) int {
	switch code {
	case memory.CodeInvalidParams:
		return fiber.StatusBadRequest
	case memory.CodeForbidden:
		return fiber.StatusForbidden
	case memory.CodeNotFound:
		return fiber.StatusNotFound
	case memory.CodeConflict:
		return fiber.StatusConflict
	case memory.CodeNotImplemented:
		return fiber.StatusNotImplemented
	default:
		return fiber.StatusInternalServerError
	}
}

// actorFromHeaders reads the calling actor from the request headers.
func actorFromHeaders(c *fiber.Ctx) (permission.Actor, error) {
	actor := permission.Actor{
		AgentID: c.Get(HeaderAgentID),
		TeamID:  c.Get(HeaderTeamID),
		Role:    permission.ParseRole(c.Get(HeaderRole)),
	}

	if raw := c.Get(HeaderSystemID); raw != "" {
		id, err := strconv.Atoi(raw)
		if err != nil {
			return permission.Actor{}, memory.Errorf(memory.CodeInvalidParams, "%s must be an integer", HeaderSystemID)
		}
		actor.SystemID = id
	}

	if err := actor.Validate(); err != nil {
		return permission.Actor{}, err
	}

	return actor, nil
}
