// Package tool implements the single-entry memory tool contract used by the
// HTTP API, the MCP server and the CLI.
//
// A Request names an action and carries up to the bulk limit of items. The
// Response always carries the entries produced and a list of per-item
// errors; a request never fails as a whole except for malformed envelopes.
package tool

import (
	"context"
	"errors"
	"time"

	"github.com/papercomputeco/mnemo/pkg/memory"
	"github.com/papercomputeco/mnemo/pkg/permission"
	"github.com/papercomputeco/mnemo/pkg/service"
)

// Action names an operation of the memory tool.
type Action string

const (
	ActionCreate  Action = "create"
	ActionRead    Action = "read"
	ActionUpdate  Action = "update"
	ActionDelete  Action = "delete"
	ActionList    Action = "list"
	ActionPromote Action = "promote"
)

// Actions lists every supported action.
var Actions = []Action{ActionCreate, ActionRead, ActionUpdate, ActionDelete, ActionList, ActionPromote}

// Item is the union of per-item fields across actions. Fields that do not
// apply to the requested action are ignored.
type Item struct {
	ID           string     `json:"id,omitempty" yaml:"id,omitempty" jsonschema:"entry id; generated on create when empty"`
	OwnerAgentID string     `json:"owner_agent_id,omitempty" yaml:"owner_agent_id,omitempty" jsonschema:"owning agent, defaults to the caller"`
	Content      *string    `json:"content,omitempty" yaml:"content,omitempty" jsonschema:"the memory text"`
	Tags         []string   `json:"tags,omitempty" yaml:"tags,omitempty" jsonschema:"free-form tags"`
	Priority     string     `json:"priority,omitempty" yaml:"priority,omitempty" jsonschema:"low, medium or high"`
	Layer        string     `json:"layer,omitempty" yaml:"layer,omitempty" jsonschema:"working, session, long_term or meta"`
	Source       string     `json:"source,omitempty" yaml:"source,omitempty" jsonschema:"reflection, manual, tool or import"`
	Confidence   *float64   `json:"confidence,omitempty" yaml:"confidence,omitempty" jsonschema:"confidence between 0 and 1"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty" yaml:"expires_at,omitempty" jsonschema:"RFC 3339 expiry"`
	IfMatch      string     `json:"if_match,omitempty" yaml:"if_match,omitempty" jsonschema:"etag the caller last saw; a mismatch forks a conflict entry"`

	SourceScope     string `json:"source_scope,omitempty" yaml:"source_scope,omitempty" jsonschema:"promote: scope to copy from"`
	SourceNamespace string `json:"source_namespace,omitempty" yaml:"source_namespace,omitempty" jsonschema:"promote: namespace to copy from"`
	TargetScope     string `json:"target_scope,omitempty" yaml:"target_scope,omitempty" jsonschema:"promote: scope to copy into"`
}

// Request is the tool envelope.
type Request struct {
	Action    Action `json:"action" jsonschema:"create, read, update, delete, list or promote"`
	Scope     string `json:"scope,omitempty" jsonschema:"agent, team or global; defaults to agent"`
	Namespace string `json:"namespace,omitempty" jsonschema:"partition within the scope; defaults to the caller for agent scope"`
	Items     []Item `json:"items,omitempty" jsonschema:"items for bulk actions"`
	Cursor    string `json:"cursor,omitempty" jsonschema:"list: next_cursor of the previous page"`
	Limit     int    `json:"limit,omitempty" jsonschema:"list: page size"`
}

// ErrorPayload is the wire form of a memory.Error.
type ErrorPayload struct {
	Code    memory.Code    `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// Response is the tool result.
type Response struct {
	Items      []*memory.Entry `json:"items"`
	NextCursor *string         `json:"next_cursor"`
	HasMore    bool            `json:"has_more"`
	Errors     []ErrorPayload  `json:"errors"`
}

// OK reports whether the response carries no errors.
func (r *Response) OK() bool {
	return len(r.Errors) == 0
}

// Handler dispatches tool requests to the CRUD service.
type Handler struct {
	service *service.Service
}

// NewHandler builds a Handler.
func NewHandler(svc *service.Service) (*Handler, error) {
	if svc == nil {
		return nil, errors.New("service is required")
	}
	return &Handler{service: svc}, nil
}

// Handle runs req as actor.
func (h *Handler) Handle(ctx context.Context, actor permission.Actor, req Request) *Response {
	resp := &Response{Items: []*memory.Entry{}, Errors: []ErrorPayload{}}

	if len(req.Items) > h.service.BulkLimit() {
		resp.fail(-1, memory.Errorf(memory.CodeInvalidParams, "%d items exceed the bulk limit of %d", len(req.Items), h.service.BulkLimit()))
		return resp
	}

	scope := memory.Scope(req.Scope)

	switch req.Action {
	case ActionCreate:
		h.create(ctx, actor, scope, req, resp)
	case ActionRead:
		h.each(req, resp, func(it Item) (*memory.Entry, error) {
			return h.service.Read(ctx, actor, service.Ref{ID: it.ID, Scope: scope, Namespace: req.Namespace})
		})
	case ActionUpdate:
		h.each(req, resp, func(it Item) (*memory.Entry, error) {
			return h.service.Update(ctx, actor, updateRequest(scope, req.Namespace, it))
		})
	case ActionDelete:
		h.each(req, resp, func(it Item) (*memory.Entry, error) {
			return h.service.Delete(ctx, actor, service.DeleteRequest{
				Ref:     service.Ref{ID: it.ID, Scope: scope, Namespace: req.Namespace},
				IfMatch: it.IfMatch,
			})
		})
	case ActionList:
		h.list(ctx, actor, scope, req, resp)
	case ActionPromote:
		h.each(req, resp, func(it Item) (*memory.Entry, error) {
			target := memory.Scope(it.TargetScope)
			if target == "" {
				target = scope
			}
			return h.service.Promote(ctx, actor, service.PromoteRequest{
				ID:              it.ID,
				SourceScope:     memory.Scope(it.SourceScope),
				SourceNamespace: it.SourceNamespace,
				TargetScope:     target,
				Namespace:       req.Namespace,
			})
		})
	default:
		resp.fail(-1, memory.Errorf(memory.CodeInvalidParams, "unknown action %q", req.Action))
	}

	return resp
}

func (h *Handler) create(ctx context.Context, actor permission.Actor, scope memory.Scope, req Request, resp *Response) {
	if len(req.Items) == 0 {
		resp.fail(-1, memory.Errorf(memory.CodeInvalidParams, "items are required"))
		return
	}

	reqs := make([]service.CreateRequest, 0, len(req.Items))
	for _, it := range req.Items {
		cr := service.CreateRequest{
			ID:           it.ID,
			Scope:        scope,
			Namespace:    req.Namespace,
			OwnerAgentID: it.OwnerAgentID,
			Tags:         it.Tags,
			Priority:     memory.Priority(it.Priority),
			Layer:        memory.Layer(it.Layer),
			Source:       memory.Source(it.Source),
			Confidence:   it.Confidence,
			ExpiresAt:    it.ExpiresAt,
		}
		if it.Content != nil {
			cr.Content = *it.Content
		}
		reqs = append(reqs, cr)
	}

	created, err := h.service.Create(ctx, actor, reqs)
	resp.Items = append(resp.Items, created...)
	if err != nil {
		resp.fail(-1, err)
	}
}

func (h *Handler) list(ctx context.Context, actor permission.Actor, scope memory.Scope, req Request, resp *Response) {
	cursor, err := memory.ParseCursor(req.Cursor)
	if err != nil {
		resp.fail(-1, err)
		return
	}

	page, err := h.service.List(ctx, actor, service.ListRequest{
		Scope:     scope,
		Namespace: req.Namespace,
		Limit:     req.Limit,
		Cursor:    cursor,
	})
	if err != nil {
		resp.fail(-1, err)
		return
	}

	resp.Items = append(resp.Items, page.Entries...)
	resp.HasMore = page.HasMore
	if page.NextCursor != nil {
		next := page.NextCursor.String()
		resp.NextCursor = &next
	}
}

// each runs fn per item. A CONFLICT still yields the forked entry.
func (h *Handler) each(req Request, resp *Response, fn func(Item) (*memory.Entry, error)) {
	if len(req.Items) == 0 {
		resp.fail(-1, memory.Errorf(memory.CodeInvalidParams, "items are required"))
		return
	}

	for i, it := range req.Items {
		entry, err := fn(it)
		if entry != nil {
			resp.Items = append(resp.Items, entry)
		}
		if err != nil {
			resp.fail(i, err)
		}
	}
}

func updateRequest(scope memory.Scope, namespace string, it Item) service.UpdateRequest {
	ur := service.UpdateRequest{
		Ref:        service.Ref{ID: it.ID, Scope: scope, Namespace: namespace},
		Content:    it.Content,
		Tags:       it.Tags,
		Confidence: it.Confidence,
		ExpiresAt:  it.ExpiresAt,
		IfMatch:    it.IfMatch,
	}
	if it.Priority != "" {
		p := memory.Priority(it.Priority)
		ur.Priority = &p
	}
	if it.Layer != "" {
		l := memory.Layer(it.Layer)
		ur.Layer = &l
	}
	return ur
}

// fail records err. index is the item position, or -1 for envelope errors.
func (r *Response) fail(index int, err error) {
	r.Errors = append(r.Errors, NewErrorPayload(index, err))
}

// NewErrorPayload converts err to its wire form. Unexpected errors are
// reported as INTERNAL without their message.
func NewErrorPayload(index int, err error) ErrorPayload {
	p := ErrorPayload{Code: memory.CodeOf(err)}

	var merr *memory.Error
	if errors.As(err, &merr) {
		p.Message = merr.Message
		if len(merr.Details) > 0 {
			p.Details = make(map[string]any, len(merr.Details)+1)
			for k, v := range merr.Details {
				p.Details[k] = v
			}
		}
	} else if errors.Is(err, memory.ErrNotConfigured) {
		p.Message = err.Error()
	} else {
		p.Message = "internal error"
	}
	if p.Message == "" {
		p.Message = string(p.Code)
	}

	if index >= 0 {
		if p.Details == nil {
			p.Details = map[string]any{}
		}
		p.Details["index"] = index
	}

	return p
}
