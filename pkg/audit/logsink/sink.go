// Package logsink writes audit events to a structured logger.
package logsink

import (
	"context"
	"log/slog"

	"github.com/papercomputeco/mnemo/pkg/audit"
)

// Sink logs each event at info level, or warn level for failed operations.
type Sink struct {
	logger *slog.Logger
}

// NewSink creates a sink writing to logger.
func NewSink(logger *slog.Logger) *Sink {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sink{logger: logger.With("component", "audit")}
}

// Publish logs the event.
func (s *Sink) Publish(ctx context.Context, event *audit.Event) error {
	if event == nil {
		return audit.ErrNilEvent
	}

	level := slog.LevelInfo
	if !event.Success {
		level = slog.LevelWarn
	}

	s.logger.Log(ctx, level, event.Action,
		"event_id", event.EventID,
		"actor", event.ActorID,
		"scope", event.Scope,
		"namespace", event.Namespace,
		"resource_id", event.ResourceID,
		"success", event.Success,
		"details", event.Details,
	)

	return nil
}

// Close is a no-op.
func (s *Sink) Close() error {
	return nil
}
