package testutils

import (
	"context"
	"errors"
	"sync"

	"github.com/papercomputeco/mnemo/pkg/audit"
)

// RecordingSink is an audit.Sink that keeps every published event in memory.
type RecordingSink struct {
	mu       sync.Mutex
	events   []*audit.Event
	closed   bool
	FailWith error
}

// NewRecordingSink creates an empty RecordingSink.
func NewRecordingSink() *RecordingSink {
	return &RecordingSink{}
}

// Publish records event, or returns FailWith when set.
func (s *RecordingSink) Publish(_ context.Context, event *audit.Event) error {
	if event == nil {
		return audit.ErrNilEvent
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailWith != nil {
		return s.FailWith
	}
	s.events = append(s.events, event)
	return nil
}

// Events returns a snapshot of the recorded events.
func (s *RecordingSink) Events() []*audit.Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]*audit.Event(nil), s.events...)
}

// Actions returns the action of each recorded event in publish order.
func (s *RecordingSink) Actions() []string {
	events := s.Events()
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = e.Action
	}
	return out
}

// Closed reports whether Close was called.
func (s *RecordingSink) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.closed
}

// Close marks the sink closed.
func (s *RecordingSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errors.New("recording sink already closed")
	}
	s.closed = true
	return nil
}
