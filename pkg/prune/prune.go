// Package prune evicts expired and excess entries from a memory partition.
package prune

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"github.com/papercomputeco/mnemo/pkg/audit"
	"github.com/papercomputeco/mnemo/pkg/memory"
	"github.com/papercomputeco/mnemo/pkg/metrics"
	"github.com/papercomputeco/mnemo/pkg/permission"
	"github.com/papercomputeco/mnemo/pkg/registry"
	"github.com/papercomputeco/mnemo/pkg/service"
)

const (
	DefaultMaxEntries = 1000

	listPageSize = 200
)

// Config configures a Pruner.
type Config struct {
	Registry *registry.Registry

	// MaxEntries bounds the number of entries kept per partition.
	MaxEntries int

	Metrics *metrics.Recorder
	Audit   audit.Sink
	Now     func() time.Time
	Logger  *slog.Logger
}

// Pruner deletes expired entries, then the lowest-priority oldest entries
// beyond the per-partition bound.
type Pruner struct {
	registry   *registry.Registry
	maxEntries int
	metrics    *metrics.Recorder
	audit      audit.Sink
	now        func() time.Time
	logger     *slog.Logger
}

// New builds a Pruner.
func New(c Config) (*Pruner, error) {
	if c.Registry == nil {
		return nil, errors.New("registry is required")
	}
	if c.MaxEntries <= 0 {
		c.MaxEntries = DefaultMaxEntries
	}
	if c.Metrics == nil {
		c.Metrics = metrics.Nop()
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.Logger == nil {
		c.Logger = slog.New(slog.DiscardHandler)
	}

	return &Pruner{
		registry:   c.Registry,
		maxEntries: c.MaxEntries,
		metrics:    c.Metrics,
		audit:      c.Audit,
		now:        c.Now,
		logger:     c.Logger.With("component", "pruner"),
	}, nil
}

// Prune evicts from the (scope, namespace) partition and returns the deleted
// ids. Agent scope only considers the actor's own entries.
func (p *Pruner) Prune(ctx context.Context, actor permission.Actor, scope memory.Scope, namespace string) (deleted []string, err error) {
	ctx, span := p.metrics.StartSpan(ctx, "prune")
	defer func() { metrics.EndSpan(span, err) }()

	if err := actor.Validate(); err != nil {
		return nil, err
	}
	scope, namespace, err = service.ResolveTarget(actor, scope, namespace)
	if err != nil {
		return nil, err
	}

	defer func() {
		p.metrics.IncOperation(ctx, "prune", string(scope), err == nil)
		audit.Emit(ctx, p.audit, p.logger, audit.NewEvent(audit.ActionPrune, actor.AgentID,
			string(scope), namespace, "", err == nil, map[string]any{"deleted": len(deleted)}))
	}()

	if err := permission.Authorize(actor, scope, permission.ActionWrite); err != nil {
		return nil, err
	}
	store, err := p.registry.Store(scope)
	if err != nil {
		return nil, err
	}

	owner := ""
	if scope == memory.ScopeAgent {
		owner = actor.AgentID
	}

	entries, err := memory.CollectList(ctx, store, scope, namespace, listPageSize, owner)
	if err != nil {
		return nil, err
	}

	now := p.now()
	deleted = []string{}
	remaining := make([]*memory.Entry, 0, len(entries))
	for _, e := range entries {
		if !e.Expired(now) {
			remaining = append(remaining, e)
			continue
		}
		if err := p.delete(ctx, store, e); err != nil {
			return deleted, err
		}
		deleted = append(deleted, e.ID)
	}

	if excess := len(remaining) - p.maxEntries; excess > 0 {
		SortForEviction(remaining)
		for _, e := range remaining[:excess] {
			if err := p.delete(ctx, store, e); err != nil {
				return deleted, err
			}
			deleted = append(deleted, e.ID)
		}
	}

	if len(deleted) > 0 {
		p.logger.Info("pruned entries",
			"actor", actor.AgentID,
			"scope", scope,
			"namespace", namespace,
			"deleted", len(deleted),
		)
	}

	return deleted, nil
}

func (p *Pruner) delete(ctx context.Context, store memory.Store, e *memory.Entry) error {
	if _, err := store.Delete(ctx, e.ID, e.Scope, e.Namespace); err != nil {
		return err
	}
	return nil
}

// SortForEviction orders entries so the first ones are evicted first: low
// priority before high, then oldest first.
func SortForEviction(entries []*memory.Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Priority.Rank() != b.Priority.Rank() {
			return a.Priority.Rank() < b.Priority.Rank()
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}
