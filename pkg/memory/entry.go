package memory

import (
	"encoding/binary"
	"encoding/hex"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/zeebo/blake3"
)

// Scope is the ownership partition of an entry.
type Scope string

const (
	ScopeAgent  Scope = "agent"
	ScopeTeam   Scope = "team"
	ScopeGlobal Scope = "global"
)

// Scopes lists every supported scope in registry order.
var Scopes = []Scope{ScopeAgent, ScopeTeam, ScopeGlobal}

// ParseScope parses a scope name case-insensitively.
func ParseScope(s string) (Scope, error) {
	switch Scope(strings.ToLower(strings.TrimSpace(s))) {
	case ScopeAgent:
		return ScopeAgent, nil
	case ScopeTeam:
		return ScopeTeam, nil
	case ScopeGlobal:
		return ScopeGlobal, nil
	default:
		return "", Errorf(CodeInvalidParams, "unknown scope %q", s)
	}
}

// Valid reports whether s is a known scope.
func (s Scope) Valid() bool {
	return s == ScopeAgent || s == ScopeTeam || s == ScopeGlobal
}

// Priority orders entries for eviction; low priority entries are pruned first.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// ParsePriority parses a priority name case-insensitively.
func ParsePriority(s string) (Priority, error) {
	switch Priority(strings.ToLower(strings.TrimSpace(s))) {
	case PriorityLow:
		return PriorityLow, nil
	case PriorityMedium:
		return PriorityMedium, nil
	case PriorityHigh:
		return PriorityHigh, nil
	default:
		return "", Errorf(CodeInvalidParams, "unknown priority %q", s)
	}
}

// Rank returns the eviction rank of p: low is 0, high is 2.
func (p Priority) Rank() int {
	switch p {
	case PriorityLow:
		return 0
	case PriorityMedium:
		return 1
	case PriorityHigh:
		return 2
	default:
		return -1
	}
}

// Layer is the time horizon or abstraction level of an entry.
type Layer string

const (
	LayerWorking  Layer = "working"
	LayerSession  Layer = "session"
	LayerLongTerm Layer = "long_term"
	LayerMeta     Layer = "meta"
)

// ParseLayer parses a layer name case-insensitively.
func ParseLayer(s string) (Layer, error) {
	switch Layer(strings.ToLower(strings.TrimSpace(s))) {
	case LayerWorking:
		return LayerWorking, nil
	case LayerSession:
		return LayerSession, nil
	case LayerLongTerm:
		return LayerLongTerm, nil
	case LayerMeta:
		return LayerMeta, nil
	default:
		return "", Errorf(CodeInvalidParams, "unknown layer %q", s)
	}
}

// Source records how an entry came into being.
type Source string

const (
	SourceReflection Source = "reflection"
	SourceManual     Source = "manual"
	SourceTool       Source = "tool"
	SourceImport     Source = "import"
)

// ParseSource parses a source name case-insensitively.
func ParseSource(s string) (Source, error) {
	switch Source(strings.ToLower(strings.TrimSpace(s))) {
	case SourceReflection:
		return SourceReflection, nil
	case SourceManual:
		return SourceManual, nil
	case SourceTool:
		return SourceTool, nil
	case SourceImport:
		return SourceImport, nil
	default:
		return "", Errorf(CodeInvalidParams, "unknown source %q", s)
	}
}

// ConflictTagPrefix prefixes the tag that links a conflict fork to the entry
// it diverged from.
const ConflictTagPrefix = "conflict_with:"

// Entry is a single durable memory fact.
type Entry struct {
	ID           string     `json:"id"`
	Scope        Scope      `json:"scope"`
	Namespace    string     `json:"namespace"`
	OwnerAgentID string     `json:"owner_agent_id"`
	Content      string     `json:"content"`
	Tags         []string   `json:"tags"`
	Priority     Priority   `json:"priority"`
	Layer        Layer      `json:"layer"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	Source       Source     `json:"source"`
	Confidence   float64    `json:"confidence"`
	Version      int        `json:"version"`
	ETag         string     `json:"etag"`
	Conflict     bool       `json:"conflict"`
	ConflictOf   string     `json:"conflict_of,omitempty"`
}

// Ref addresses an entry within its (scope, namespace) partition.
type Ref struct {
	ID        string
	Scope     Scope
	Namespace string
}

// Ref returns the address of e.
func (e *Entry) Ref() Ref {
	return Ref{ID: e.ID, Scope: e.Scope, Namespace: e.Namespace}
}

// NewEntry validates e and fills derived defaults: a generated id, updated_at
// falling back to created_at, version 1 and a fresh etag. The returned entry is
// a copy; e is not modified.
func NewEntry(e Entry) (*Entry, error) {
	out := e.Clone()

	if out.ID == "" {
		out.ID = uuid.NewString()
	}
	if out.UpdatedAt.IsZero() {
		out.UpdatedAt = out.CreatedAt
	}
	if out.Version == 0 {
		out.Version = 1
	}
	out.Tags = NormalizeTags(out.Tags)

	if err := out.Validate(); err != nil {
		return nil, err
	}

	if out.ETag == "" {
		out.ETag = NewETag(out)
	}

	return out, nil
}

// ValidConfidence reports whether c lies in [0, 1]. NaN is rejected.
func ValidConfidence(c float64) bool {
	return !math.IsNaN(c) && c >= 0 && c <= 1
}

// Validate checks the entry invariants.
func (e *Entry) Validate() error {
	if e.ID == "" {
		return Errorf(CodeInvalidParams, "id is required")
	}
	if !e.Scope.Valid() {
		return Errorf(CodeInvalidParams, "unknown scope %q", e.Scope)
	}
	if e.Namespace == "" {
		return Errorf(CodeInvalidParams, "namespace is required")
	}
	if !ValidConfidence(e.Confidence) {
		return Errorf(CodeInvalidParams, "confidence %v outside [0, 1]", e.Confidence)
	}
	if e.Version < 1 {
		return Errorf(CodeInvalidParams, "version must be >= 1, got %d", e.Version)
	}
	if e.Conflict && e.ConflictOf == "" {
		return Errorf(CodeInvalidParams, "conflict entries must reference conflict_of")
	}

	return nil
}

// Clone returns a deep copy of e.
func (e Entry) Clone() *Entry {
	out := e
	if e.Tags != nil {
		out.Tags = append([]string(nil), e.Tags...)
	}
	if e.ExpiresAt != nil {
		t := *e.ExpiresAt
		out.ExpiresAt = &t
	}

	return &out
}

// HasTags reports whether e carries every tag in want.
func (e *Entry) HasTags(want []string) bool {
	if len(want) == 0 {
		return true
	}

	have := make(map[string]struct{}, len(e.Tags))
	for _, t := range e.Tags {
		have[t] = struct{}{}
	}
	for _, t := range want {
		if _, ok := have[t]; !ok {
			return false
		}
	}

	return true
}

// Expired reports whether e has an expiry at or before now.
func (e *Entry) Expired(now time.Time) bool {
	return e.ExpiresAt != nil && !e.ExpiresAt.After(now)
}

// NormalizeTags trims, de-duplicates and drops empty tags while keeping the
// first-seen order.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}

	return out
}

// NewETag derives a concurrency token from the identity, version, content and
// update time of e, salted so that two forks written in the same instant
// still differ.
func NewETag(e *Entry) string {
	var buf []byte
	buf = append(buf, e.Scope...)
	buf = append(buf, 0)
	buf = append(buf, e.Namespace...)
	buf = append(buf, 0)
	buf = append(buf, e.ID...)
	buf = append(buf, 0)
	buf = append(buf, e.Content...)
	buf = binary.LittleEndian.AppendUint64(buf, uint64(e.Version))
	buf = binary.LittleEndian.AppendUint64(buf, uint64(e.UpdatedAt.UnixNano()))
	salt := uuid.New()
	buf = append(buf, salt[:]...)

	sum := blake3.Sum256(buf)
	return hex.EncodeToString(sum[:16])
}
