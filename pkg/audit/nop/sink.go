// Package nop provides an audit sink that discards events.
package nop

import (
	"context"

	"github.com/papercomputeco/mnemo/pkg/audit"
)

// Sink is a no-op audit sink used for tests and disabled mode.
type Sink struct{}

// NewSink creates a new no-op sink.
func NewSink() *Sink {
	return &Sink{}
}

// Publish validates input and otherwise does nothing.
func (s *Sink) Publish(_ context.Context, event *audit.Event) error {
	if event == nil {
		return audit.ErrNilEvent
	}

	return nil
}

// Close is a no-op.
func (s *Sink) Close() error {
	return nil
}
