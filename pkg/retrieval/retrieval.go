// Package retrieval implements permission-checked memory search and the
// prompt injector that turns search results into bounded prompt lines.
package retrieval

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/papercomputeco/mnemo/pkg/audit"
	"github.com/papercomputeco/mnemo/pkg/memory"
	"github.com/papercomputeco/mnemo/pkg/metrics"
	"github.com/papercomputeco/mnemo/pkg/permission"
	"github.com/papercomputeco/mnemo/pkg/registry"
	"github.com/papercomputeco/mnemo/pkg/service"
)

const (
	DefaultLimit    = 10
	DefaultMaxLimit = 100
)

// SearchRequest selects entries in one partition. Scope and namespace follow
// the service.ResolveTarget defaults.
type SearchRequest struct {
	Scope     memory.Scope  `json:"scope,omitempty"`
	Namespace string        `json:"namespace,omitempty"`
	Text      string        `json:"text,omitempty"`
	Tags      []string      `json:"tags,omitempty"`
	Layer     memory.Layer  `json:"layer,omitempty"`
	Limit     int           `json:"limit,omitempty"`
	Cursor    memory.Cursor `json:"-"`
}

// Config configures a Service.
type Config struct {
	Registry *registry.Registry
	Metrics  *metrics.Recorder
	Audit    audit.Sink

	DefaultLimit int
	MaxLimit     int

	Logger *slog.Logger
}

// Service runs searches against the registry's stores.
type Service struct {
	registry *registry.Registry
	metrics  *metrics.Recorder
	audit    audit.Sink
	logger   *slog.Logger

	defaultLimit int
	maxLimit     int
}

// New builds a retrieval Service.
func New(c Config) (*Service, error) {
	if c.Registry == nil {
		return nil, errors.New("registry is required")
	}
	if c.Metrics == nil {
		c.Metrics = metrics.Nop()
	}
	if c.Logger == nil {
		c.Logger = slog.New(slog.DiscardHandler)
	}
	if c.DefaultLimit == 0 {
		c.DefaultLimit = DefaultLimit
	}
	if c.MaxLimit == 0 {
		c.MaxLimit = DefaultMaxLimit
	}

	return &Service{
		registry:     c.Registry,
		metrics:      c.Metrics,
		audit:        c.Audit,
		logger:       c.Logger.With("component", "retrieval"),
		defaultLimit: c.DefaultLimit,
		maxLimit:     c.MaxLimit,
	}, nil
}

// Search ranks entries matching req. Agent scope only searches the actor's
// own entries. Every returned entry is audited as a retrieval.
func (s *Service) Search(ctx context.Context, actor permission.Actor, req SearchRequest) (result *memory.ListResult, err error) {
	ctx, span := s.metrics.StartSpan(ctx, "search", attribute.String("actor", actor.AgentID))
	defer func() { metrics.EndSpan(span, err) }()

	if err := actor.Validate(); err != nil {
		return nil, err
	}

	scope, namespace, err := service.ResolveTarget(actor, req.Scope, req.Namespace)
	if err != nil {
		return nil, err
	}

	limit := req.Limit
	if limit == 0 {
		limit = s.defaultLimit
	}
	if limit < 1 || limit > s.maxLimit {
		return nil, memory.Errorf(memory.CodeInvalidParams, "limit %d outside [1, %d]", limit, s.maxLimit)
	}

	var layer memory.Layer
	if req.Layer != "" {
		layer, err = memory.ParseLayer(string(req.Layer))
		if err != nil {
			return nil, err
		}
	}

	if err := permission.Authorize(actor, scope, permission.ActionRead); err != nil {
		s.metrics.IncOperation(ctx, "search", string(scope), false)
		return nil, err
	}

	store, err := s.registry.Store(scope)
	if err != nil {
		s.metrics.IncOperation(ctx, "search", string(scope), false)
		return nil, err
	}

	q := memory.Query{
		Scope:     scope,
		Namespace: namespace,
		Text:      req.Text,
		Tags:      memory.NormalizeTags(req.Tags),
		Layer:     layer,
		Limit:     limit,
		Cursor:    req.Cursor,
	}
	if scope == memory.ScopeAgent {
		q.Owner = actor.AgentID
	}

	start := time.Now()
	result, err = store.Query(ctx, q)
	if err != nil {
		s.metrics.IncOperation(ctx, "search", string(scope), false)
		s.logger.Error("search failed",
			"actor", actor.String(),
			"scope", scope,
			"namespace", namespace,
			"error", err,
		)
		return nil, err
	}

	s.metrics.ObserveQuery(ctx, string(scope), time.Since(start), len(result.Entries))
	s.metrics.IncOperation(ctx, "search", string(scope), true)

	for _, e := range result.Entries {
		audit.Emit(ctx, s.audit, s.logger, audit.NewEvent(audit.ActionRetrieve, actor.AgentID,
			string(scope), namespace, e.ID, true, map[string]any{"query": req.Text}))
	}

	return result, nil
}
