package session

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/papercomputeco/mnemo/pkg/audit"
	"github.com/papercomputeco/mnemo/pkg/memory"
	"github.com/papercomputeco/mnemo/pkg/permission"
	"github.com/papercomputeco/mnemo/pkg/retrieval"
	"github.com/papercomputeco/mnemo/pkg/service"
)

const (
	DefaultReflectionMaxChars = 2000

	// ReflectionTag marks entries written by the Reflector.
	ReflectionTag = "reflection"

	reflectionConfidence = 0.8
)

// Summarizer condenses buffered session lines into one memory.
type Summarizer interface {
	Summarize(ctx context.Context, lines []string) (string, error)
}

// ConcatSummarizer joins lines with newlines and truncates the result.
type ConcatSummarizer struct {
	MaxChars int
}

// Summarize implements Summarizer.
func (c ConcatSummarizer) Summarize(_ context.Context, lines []string) (string, error) {
	limit := c.MaxChars
	if limit <= 0 {
		limit = DefaultReflectionMaxChars
	}
	return retrieval.Truncate(strings.Join(lines, "\n"), limit), nil
}

// ReflectorConfig configures a Reflector.
type ReflectorConfig struct {
	Service *service.Service

	// Summarizer defaults to a ConcatSummarizer bounded by MaxChars.
	Summarizer Summarizer
	MaxChars   int

	Audit  audit.Sink
	Logger *slog.Logger
}

// Reflector turns a session buffer into a long-term memory.
type Reflector struct {
	service    *service.Service
	summarizer Summarizer
	audit      audit.Sink
	logger     *slog.Logger
}

// NewReflector builds a Reflector.
func NewReflector(c ReflectorConfig) (*Reflector, error) {
	if c.Service == nil {
		return nil, errors.New("service is required")
	}
	if c.Summarizer == nil {
		c.Summarizer = ConcatSummarizer{MaxChars: c.MaxChars}
	}
	if c.Logger == nil {
		c.Logger = slog.New(slog.DiscardHandler)
	}

	return &Reflector{
		service:    c.Service,
		summarizer: c.Summarizer,
		audit:      c.Audit,
		logger:     c.Logger.With("component", "reflector"),
	}, nil
}

// Reflect summarizes lines into one long_term entry tagged "reflection".
func (r *Reflector) Reflect(ctx context.Context, actor permission.Actor, scope memory.Scope, namespace string, lines []string) (*memory.Entry, error) {
	summary, err := r.summarizer.Summarize(ctx, lines)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(summary) == "" {
		return nil, memory.Errorf(memory.CodeInvalidParams, "empty reflection summary")
	}

	confidence := reflectionConfidence
	created, err := r.service.Create(ctx, actor, []service.CreateRequest{{
		Scope:      scope,
		Namespace:  namespace,
		Content:    summary,
		Tags:       []string{ReflectionTag},
		Priority:   memory.PriorityMedium,
		Layer:      memory.LayerLongTerm,
		Source:     memory.SourceReflection,
		Confidence: &confidence,
	}})

	resourceID := ""
	if len(created) == 1 {
		resourceID = created[0].ID
	}
	audit.Emit(ctx, r.audit, r.logger, audit.NewEvent(audit.ActionReflect, actor.AgentID,
		string(scope), namespace, resourceID, err == nil, map[string]any{"lines": len(lines)}))

	if err != nil {
		return nil, err
	}

	r.logger.Debug("reflection written",
		"actor", actor.AgentID,
		"scope", scope,
		"namespace", namespace,
		"lines", len(lines),
	)

	return created[0], nil
}
