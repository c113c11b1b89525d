package audit

import (
	"context"
	"errors"
	"log/slog"
)

// ErrNilEvent indicates a nil event was provided to a sink.
var ErrNilEvent = errors.New("nil audit event")

// Sink publishes audit events to a backend.
type Sink interface {
	Publish(ctx context.Context, event *Event) error
	Close() error
}

// Emit publishes event on sink and logs a failure instead of returning it.
// A nil sink is a no-op.
func Emit(ctx context.Context, sink Sink, logger *slog.Logger, event *Event) {
	if sink == nil {
		return
	}

	if err := sink.Publish(ctx, event); err != nil && logger != nil {
		logger.Warn("failed to publish audit event",
			"action", event.Action,
			"resource_id", event.ResourceID,
			"error", err,
		)
	}
}
