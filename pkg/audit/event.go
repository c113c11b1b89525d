// Package audit records who did what to which memory entry.
//
// Every mutating memory operation and every retrieval emits an Event to a
// Sink. Sinks are best-effort side channels: a failed publish is logged by
// the caller and never aborts the operation that produced the event.
package audit

import (
	"time"

	"github.com/google/uuid"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeMemoryAudit is the type of every audit event.
	EventTypeMemoryAudit = "mnemo.memory.audit"
)

// Actions emitted by the memory services.
const (
	ActionCreate   = "memory.create"
	ActionRead     = "memory.read"
	ActionUpdate   = "memory.update"
	ActionDelete   = "memory.delete"
	ActionList     = "memory.list"
	ActionPromote  = "memory.promote"
	ActionRetrieve = "memory.retrieve"
	ActionPrune    = "memory.prune"
	ActionRecord   = "memory.record"
	ActionReflect  = "memory.reflect"
)

// Event is a transport-neutral audit record.
type Event struct {
	SchemaVersion int            `json:"schema_version"`
	EventType     string         `json:"event_type"`
	EventID       string         `json:"event_id"`
	Action        string         `json:"action"`
	ActorID       string         `json:"actor_id"`
	Scope         string         `json:"scope"`
	Namespace     string         `json:"namespace"`
	ResourceID    string         `json:"resource_id,omitempty"`
	Success       bool           `json:"success"`
	Details       map[string]any `json:"details,omitempty"`
	Timestamp     time.Time      `json:"timestamp"`
}

// NewEvent builds an event stamped with a fresh id and the current time.
func NewEvent(action, actorID, scope, namespace, resourceID string, success bool, details map[string]any) *Event {
	return &Event{
		SchemaVersion: SchemaVersionV1,
		EventType:     EventTypeMemoryAudit,
		EventID:       uuid.NewString(),
		Action:        action,
		ActorID:       actorID,
		Scope:         scope,
		Namespace:     namespace,
		ResourceID:    resourceID,
		Success:       success,
		Details:       details,
		Timestamp:     time.Now().UTC(),
	}
}

// Key is the partition key for ordered transports: events of one
// (scope, namespace) stay in order.
func (e *Event) Key() string {
	return e.Scope + "/" + e.Namespace
}
