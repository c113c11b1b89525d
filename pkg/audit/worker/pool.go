// Package worker provides an asynchronous worker pool that forwards audit
// events to a backing audit.Sink.
//
// The pool decouples slow sinks (e.g. Kafka) from the memory operation hot
// path: Publish only enqueues, and a full queue drops the event.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/papercomputeco/mnemo/pkg/audit"
)

var (
	defaultNumWorkers     uint = 3
	defaultJobQueueSize   uint = 256
	defaultPublishTimeout      = 5 * time.Second
)

// Config is the configuration options for the worker pool.
type Config struct {
	// Sink is the backend each event is forwarded to.
	Sink audit.Sink

	// NumWorkers is the number of background workers in the pool.
	NumWorkers uint

	// QueueSize is the capacity of the buffered job channel (defaults to 256).
	QueueSize uint

	// PublishTimeout bounds a single forward to Sink.
	PublishTimeout time.Duration

	Logger *slog.Logger
}

// Pool publishes audit events asynchronously via a worker pool.
type Pool struct {
	config *Config
	queue  chan *audit.Event
	wg     sync.WaitGroup
	logger *slog.Logger

	mu     sync.RWMutex
	closed bool
}

// NewPool creates a new Pool and starts its worker goroutines.
func NewPool(c *Config) (*Pool, error) {
	if c.Sink == nil {
		return nil, fmt.Errorf("worker pool requires a sink")
	}

	if c.NumWorkers == 0 {
		c.NumWorkers = defaultNumWorkers
	}

	if c.QueueSize == 0 {
		c.QueueSize = defaultJobQueueSize
	}

	if c.PublishTimeout == 0 {
		c.PublishTimeout = defaultPublishTimeout
	}

	if c.NumWorkers > uint(math.MaxInt) {
		return nil, fmt.Errorf("NumWorkers %d exceeds max int", c.NumWorkers)
	}

	if c.Logger == nil {
		c.Logger = slog.New(slog.DiscardHandler)
	}

	wp := &Pool{
		config: c,
		queue:  make(chan *audit.Event, c.QueueSize),
		logger: c.Logger,
	}

	wp.wg.Add(int(c.NumWorkers))
	for i := range c.NumWorkers {
		go wp.worker(i)
	}

	return wp, nil
}

// Enqueue submits an event for publishing.
// Returns true if enqueued, false if the queue is full or the pool is closed,
// resulting in the event being dropped.
func (p *Pool) Enqueue(event *audit.Event) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		p.logger.Warn("event not queued, pool closed", "action", event.Action)
		return false
	}

	select {
	case p.queue <- event:
		p.logger.Debug("event queued",
			"action", event.Action,
			"event_id", event.EventID,
		)
		return true
	default:
		p.logger.Error("event not queued, queue full, event dropped",
			"action", event.Action,
			"event_id", event.EventID,
		)
		return false
	}
}

// Publish implements audit.Sink by enqueueing the event.
func (p *Pool) Publish(_ context.Context, event *audit.Event) error {
	if event == nil {
		return audit.ErrNilEvent
	}
	p.Enqueue(event)
	return nil
}

// Close stops accepting events, waits for in-flight events to drain and
// closes the backing sink.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	p.wg.Wait()
	return p.config.Sink.Close()
}

// worker is the inner worker thread that continuously pulls events off the queue
func (p *Pool) worker(id uint) {
	defer p.wg.Done()
	p.logger.Debug("audit worker started", "worker_id", id)

	for event := range p.queue {
		p.publish(event)
	}

	p.logger.Debug("audit worker stopped", "worker_id", id)
}

func (p *Pool) publish(event *audit.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), p.config.PublishTimeout)
	defer cancel()

	if err := p.config.Sink.Publish(ctx, event); err != nil {
		p.logger.Warn("audit publish failed",
			"action", event.Action,
			"event_id", event.EventID,
			"error", err,
		)
	}
}

var _ audit.Sink = (*Pool)(nil)
