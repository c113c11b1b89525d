// Package session records agent session logs as memory entries and
// periodically compacts them into long-term reflections.
package session

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/papercomputeco/mnemo/pkg/audit"
	"github.com/papercomputeco/mnemo/pkg/memory"
	"github.com/papercomputeco/mnemo/pkg/permission"
	"github.com/papercomputeco/mnemo/pkg/retrieval"
	"github.com/papercomputeco/mnemo/pkg/service"
)

const (
	DefaultMaxLogChars         = 2000
	DefaultCompactionThreshold = 8000
	DefaultReflectionInterval  = time.Hour

	// SessionTag marks entries written by the Recorder.
	SessionTag = "session"
)

// Pruner evicts entries from a partition after a recording.
type Pruner interface {
	Prune(ctx context.Context, actor permission.Actor, scope memory.Scope, namespace string) ([]string, error)
}

// RecorderConfig configures a Recorder.
type RecorderConfig struct {
	Service   *service.Service
	Reflector *Reflector

	// Pruner is optional.
	Pruner Pruner

	MaxLogChars         int
	CompactionThreshold int
	ReflectionInterval  time.Duration

	Audit  audit.Sink
	Now    func() time.Time
	Logger *slog.Logger
}

// Result reports what one Record call wrote.
type Result struct {
	Entry      *memory.Entry `json:"entry"`
	Reflection *memory.Entry `json:"reflection,omitempty"`
	Pruned     []string      `json:"pruned,omitempty"`
}

type buffer struct {
	lines          []string
	chars          int
	lastReflection time.Time
}

// Recorder writes session logs through the CRUD service and buffers them per
// (actor, scope, namespace) until a reflection is due.
type Recorder struct {
	service   *service.Service
	reflector *Reflector
	pruner    Pruner
	audit     audit.Sink
	logger    *slog.Logger
	now       func() time.Time

	maxLogChars         int
	compactionThreshold int
	reflectionInterval  time.Duration

	mu      sync.Mutex
	buffers map[string]*buffer
}

// NewRecorder builds a Recorder.
func NewRecorder(c RecorderConfig) (*Recorder, error) {
	if c.Service == nil {
		return nil, errors.New("service is required")
	}
	if c.Reflector == nil {
		return nil, errors.New("reflector is required")
	}
	if c.MaxLogChars <= 0 {
		c.MaxLogChars = DefaultMaxLogChars
	}
	if c.CompactionThreshold <= 0 {
		c.CompactionThreshold = DefaultCompactionThreshold
	}
	if c.ReflectionInterval <= 0 {
		c.ReflectionInterval = DefaultReflectionInterval
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.Logger == nil {
		c.Logger = slog.New(slog.DiscardHandler)
	}

	return &Recorder{
		service:             c.Service,
		reflector:           c.Reflector,
		pruner:              c.Pruner,
		audit:               c.Audit,
		logger:              c.Logger.With("component", "session_recorder"),
		now:                 c.Now,
		maxLogChars:         c.MaxLogChars,
		compactionThreshold: c.CompactionThreshold,
		reflectionInterval:  c.ReflectionInterval,
		buffers:             map[string]*buffer{},
	}, nil
}

// Record stores lines as one session-layer entry, prunes the partition and
// triggers a reflection when the buffer for the key has grown past the
// compaction threshold or the reflection interval has elapsed.
func (r *Recorder) Record(ctx context.Context, actor permission.Actor, scope memory.Scope, namespace string, lines []string) (*Result, error) {
	if err := actor.Validate(); err != nil {
		return nil, err
	}

	scope, namespace, err := service.ResolveTarget(actor, scope, namespace)
	if err != nil {
		return nil, err
	}

	cleaned := Clean(lines)
	if len(cleaned) == 0 {
		return nil, memory.Errorf(memory.CodeInvalidParams, "no log lines to record")
	}

	confidence := 1.0
	created, err := r.service.Create(ctx, actor, []service.CreateRequest{{
		Scope:      scope,
		Namespace:  namespace,
		Content:    retrieval.Truncate(strings.Join(cleaned, "\n"), r.maxLogChars),
		Tags:       []string{SessionTag},
		Priority:   memory.PriorityLow,
		Layer:      memory.LayerSession,
		Source:     memory.SourceTool,
		Confidence: &confidence,
	}})
	if err != nil {
		return nil, err
	}

	result := &Result{Entry: created[0]}
	audit.Emit(ctx, r.audit, r.logger, audit.NewEvent(audit.ActionRecord, actor.AgentID,
		string(scope), namespace, result.Entry.ID, true, map[string]any{"lines": len(cleaned)}))

	// A failed prune does not keep the written lines out of the buffer.
	var pruneErr error
	if r.pruner != nil {
		result.Pruned, pruneErr = r.pruner.Prune(ctx, actor, scope, namespace)
	}

	key := bufferKey(actor, scope, namespace)
	due := r.append(key, cleaned)
	if due == nil {
		return result, pruneErr
	}

	reflection, err := r.reflector.Reflect(ctx, actor, scope, namespace, due)
	if err != nil {
		r.restore(key, due)
		return result, errors.Join(pruneErr, err)
	}
	result.Reflection = reflection

	return result, pruneErr
}

// Buffered returns the number of buffered lines for the key.
func (r *Recorder) Buffered(actor permission.Actor, scope memory.Scope, namespace string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.buffers[bufferKey(actor, scope, namespace)]
	if !ok {
		return 0
	}
	return len(b.lines)
}

// append adds lines to the key's buffer. When a reflection is due the buffer
// is drained and its lines are returned.
func (r *Recorder) append(key string, lines []string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	b, ok := r.buffers[key]
	if !ok {
		b = &buffer{lastReflection: now}
		r.buffers[key] = b
	}

	for _, l := range lines {
		b.lines = append(b.lines, l)
		b.chars += utf8.RuneCountInString(l)
	}

	if b.chars <= r.compactionThreshold && now.Sub(b.lastReflection) <= r.reflectionInterval {
		return nil
	}

	due := b.lines
	b.lines = nil
	b.chars = 0
	b.lastReflection = now

	return due
}

// restore puts lines back at the front of the key's buffer after a failed
// reflection.
func (r *Recorder) restore(key string, lines []string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b := r.buffers[key]
	merged := make([]string, 0, len(lines)+len(b.lines))
	merged = append(merged, lines...)
	merged = append(merged, b.lines...)

	b.lines = merged
	b.chars = 0
	for _, l := range merged {
		b.chars += utf8.RuneCountInString(l)
	}
}

func bufferKey(actor permission.Actor, scope memory.Scope, namespace string) string {
	return actor.AgentID + "|" + string(scope) + "|" + namespace
}
