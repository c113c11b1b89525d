// Package kafka publishes audit events as JSON messages to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/papercomputeco/mnemo/pkg/audit"
)

// DefaultTopic is used when no topic is configured.
const DefaultTopic = "mnemo.memory.audit"

// MessageWriter is the subset of *kafkago.Writer used by the sink.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Config configures a Kafka sink.
type Config struct {
	Brokers []string
	Topic   string

	// BatchTimeout bounds how long the writer waits to fill a batch.
	BatchTimeout time.Duration

	// Writer overrides the kafka-go writer built from Brokers and Topic.
	Writer MessageWriter

	Logger *slog.Logger
}

// Sink implements audit.Sink over a kafka-go writer.
type Sink struct {
	writer MessageWriter
	topic  string
	logger *slog.Logger
}

// NewSink builds a sink. Messages are keyed by (scope, namespace) so a hash
// balancer keeps each partition's events in order.
func NewSink(c Config) (*Sink, error) {
	if c.Logger == nil {
		c.Logger = slog.New(slog.DiscardHandler)
	}
	if c.Topic == "" {
		c.Topic = DefaultTopic
	}
	if c.BatchTimeout == 0 {
		c.BatchTimeout = 50 * time.Millisecond
	}

	w := c.Writer
	if w == nil {
		if len(c.Brokers) == 0 {
			return nil, errors.New("kafka audit sink requires at least one broker")
		}
		w = &kafkago.Writer{
			Addr:         kafkago.TCP(c.Brokers...),
			Topic:        c.Topic,
			Balancer:     &kafkago.Hash{},
			RequiredAcks: kafkago.RequireOne,
			BatchTimeout: c.BatchTimeout,
		}
	}

	c.Logger.Info("kafka audit sink initialized",
		"brokers", c.Brokers,
		"topic", c.Topic,
	)

	return &Sink{writer: w, topic: c.Topic, logger: c.Logger}, nil
}

// Publish encodes event as JSON and writes it.
func (s *Sink) Publish(ctx context.Context, event *audit.Event) error {
	if event == nil {
		return audit.ErrNilEvent
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling audit event: %w", err)
	}

	err = s.writer.WriteMessages(ctx, kafkago.Message{
		Key:   []byte(event.Key()),
		Value: payload,
		Time:  event.Timestamp,
	})
	if err != nil {
		return fmt.Errorf("writing audit event to %s: %w", s.topic, err)
	}

	return nil
}

// Close flushes and closes the writer.
func (s *Sink) Close() error {
	return s.writer.Close()
}

var _ audit.Sink = (*Sink)(nil)
