// Package service implements the permission-checked CRUD operations on
// memory entries.
//
// Every operation takes the calling permission.Actor, resolves the target
// scope's store from the registry and records a metric, a trace span and an
// audit event. Concurrent writers are reconciled by forking: a stale if_match
// never overwrites, it creates a new conflict entry instead.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/papercomputeco/mnemo/pkg/audit"
	"github.com/papercomputeco/mnemo/pkg/memory"
	"github.com/papercomputeco/mnemo/pkg/metrics"
	"github.com/papercomputeco/mnemo/pkg/permission"
	"github.com/papercomputeco/mnemo/pkg/registry"
)

const (
	DefaultPageSize = 20
	DefaultMaxPage  = 100
	DefaultBulk     = 10
)

// Config configures a Service.
type Config struct {
	Registry *registry.Registry

	// Metrics defaults to a recorder on the global OpenTelemetry providers.
	Metrics *metrics.Recorder

	// Audit receives one event per operation. Nil disables auditing.
	Audit audit.Sink

	DefaultPageSize int
	MaxPageSize     int
	BulkLimit       int

	// Now overrides the clock.
	Now func() time.Time

	Logger *slog.Logger
}

// Service is the CRUD service.
type Service struct {
	registry *registry.Registry
	metrics  *metrics.Recorder
	audit    audit.Sink
	logger   *slog.Logger
	now      func() time.Time

	defaultPageSize int
	maxPageSize     int
	bulkLimit       int
}

// New builds a Service.
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
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.DefaultPageSize == 0 {
		c.DefaultPageSize = DefaultPageSize
	}
	if c.MaxPageSize == 0 {
		c.MaxPageSize = DefaultMaxPage
	}
	if c.BulkLimit == 0 {
		c.BulkLimit = DefaultBulk
	}
	if c.DefaultPageSize > c.MaxPageSize {
		return nil, fmt.Errorf("default page size %d exceeds max page size %d", c.DefaultPageSize, c.MaxPageSize)
	}

	return &Service{
		registry:        c.Registry,
		metrics:         c.Metrics,
		audit:           c.Audit,
		logger:          c.Logger.With("component", "memory_service"),
		now:             c.Now,
		defaultPageSize: c.DefaultPageSize,
		maxPageSize:     c.MaxPageSize,
		bulkLimit:       c.BulkLimit,
	}, nil
}

// BulkLimit is the maximum number of items accepted by Create.
func (s *Service) BulkLimit() int {
	return s.bulkLimit
}

// ResolveTarget applies the scope and namespace defaults: a missing scope is
// agent scope, and agent scope defaults the namespace to the actor's id.
// Team and global scope require an explicit namespace.
func ResolveTarget(actor permission.Actor, scope memory.Scope, namespace string) (memory.Scope, string, error) {
	if scope == "" {
		scope = memory.ScopeAgent
	}
	parsed, err := memory.ParseScope(string(scope))
	if err != nil {
		return "", "", err
	}

	if namespace == "" {
		if parsed != memory.ScopeAgent {
			return "", "", memory.Errorf(memory.CodeInvalidParams, "namespace is required for %s scope", parsed)
		}
		namespace = actor.AgentID
	}

	return parsed, namespace, nil
}

// resolve authorizes actor for action on scope and returns its store.
func (s *Service) resolve(actor permission.Actor, scope memory.Scope, action permission.Action) (memory.Store, error) {
	if err := actor.Validate(); err != nil {
		return nil, err
	}
	if err := permission.Authorize(actor, scope, action); err != nil {
		return nil, err
	}

	return s.registry.Store(scope)
}

// observe records the metric and audit event for one operation. A CONFLICT
// counts as a success: the fork preserved the submitted data.
func (s *Service) observe(ctx context.Context, op, action string, actor permission.Actor, scope memory.Scope, namespace, resourceID string, err error, details map[string]any) {
	success := err == nil || memory.CodeOf(err) == memory.CodeConflict
	s.metrics.IncOperation(ctx, op, string(scope), success)

	if err != nil {
		if details == nil {
			details = map[string]any{}
		}
		details["error_code"] = string(memory.CodeOf(err))
	}

	audit.Emit(ctx, s.audit, s.logger,
		audit.NewEvent(action, actor.AgentID, string(scope), namespace, resourceID, success, details))

	if err != nil && memory.CodeOf(err) == memory.CodeInternal {
		s.logger.Error("memory operation failed",
			"operation", op,
			"actor", actor.String(),
			"scope", scope,
			"namespace", namespace,
			"resource_id", resourceID,
			"error", err,
		)
	}
}

func (s *Service) span(ctx context.Context, op string, actor permission.Actor) (context.Context, func(error)) {
	ctx, span := s.metrics.StartSpan(ctx, op,
		attribute.String("actor", actor.AgentID),
		attribute.String("team", actor.TeamID),
	)
	return ctx, func(err error) { metrics.EndSpan(span, err) }
}

// stamp sets fresh timestamps, version 1 and a new etag.
func (s *Service) stamp(e *memory.Entry) {
	now := s.now().UTC()
	e.CreatedAt = now
	e.UpdatedAt = now
	e.Version = 1
	e.ETag = memory.NewETag(e)
}

// fork copies base into a new conflict entry of conflictOf in base's
// partition, owned by actor.
func (s *Service) fork(ctx context.Context, store memory.Store, actor permission.Actor, base *memory.Entry, conflictOf string) (*memory.Entry, error) {
	f := base.Clone()
	f.ID = uuid.NewString()
	f.OwnerAgentID = actor.AgentID
	f.Conflict = true
	f.ConflictOf = conflictOf
	f.Tags = append(f.Tags, memory.ConflictTagPrefix+conflictOf)
	f.ETag = ""
	s.stamp(f)

	entry, err := memory.NewEntry(*f)
	if err != nil {
		return nil, err
	}

	return store.Add(ctx, entry)
}
