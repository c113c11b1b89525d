// Package metrics records memory operation counters, query latency and
// tracing spans through the OpenTelemetry API.
//
// Instruments are created on the configured MeterProvider (the global one by
// default, which is a no-op until an SDK is installed). An in-process tally is
// kept alongside so GET /v1/metrics and "mnemo memory stats" can report
// counts without an exporter.
package metrics

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/papercomputeco/mnemo"

// Options configures a Recorder.
type Options struct {
	MeterProvider  metric.MeterProvider
	TracerProvider trace.TracerProvider
}

// Recorder records memory subsystem telemetry. The zero value is not usable;
// construct with New.
type Recorder struct {
	ops     metric.Int64Counter
	queries metric.Int64Counter
	latency metric.Float64Histogram
	tracer  trace.Tracer

	mu      sync.Mutex
	tally   map[string]int64
	queryN  int64
	results int64
}

// Snapshot is a point-in-time copy of the in-process tally.
type Snapshot struct {
	// Operations counts operations keyed by "<operation>:<outcome>".
	Operations map[string]int64 `json:"operations"`
	Queries    int64            `json:"queries"`
	Results    int64            `json:"results"`
}

// New creates a Recorder.
func New(opts Options) (*Recorder, error) {
	if opts.MeterProvider == nil {
		opts.MeterProvider = otel.GetMeterProvider()
	}
	if opts.TracerProvider == nil {
		opts.TracerProvider = otel.GetTracerProvider()
	}

	meter := opts.MeterProvider.Meter(instrumentationName)

	ops, err := meter.Int64Counter("mnemo.memory.operations",
		metric.WithDescription("Memory operations by name, scope and outcome."),
	)
	if err != nil {
		return nil, fmt.Errorf("creating operation counter: %w", err)
	}

	queries, err := meter.Int64Counter("mnemo.memory.queries",
		metric.WithDescription("Retrieval queries by scope."),
	)
	if err != nil {
		return nil, fmt.Errorf("creating query counter: %w", err)
	}

	latency, err := meter.Float64Histogram("mnemo.memory.query.duration",
		metric.WithDescription("Retrieval query latency."),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating latency histogram: %w", err)
	}

	return &Recorder{
		ops:     ops,
		queries: queries,
		latency: latency,
		tracer:  opts.TracerProvider.Tracer(instrumentationName),
		tally:   map[string]int64{},
	}, nil
}

// Nop returns a Recorder backed by the global (no-op by default) providers.
func Nop() *Recorder {
	r, err := New(Options{})
	if err != nil {
		panic(err)
	}
	return r
}

// IncOperation counts one operation.
func (r *Recorder) IncOperation(ctx context.Context, operation, scope string, success bool) {
	outcome := "success"
	if !success {
		outcome = "failure"
	}

	r.ops.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("scope", scope),
		attribute.String("outcome", outcome),
	))

	r.mu.Lock()
	r.tally[operation+":"+outcome]++
	r.mu.Unlock()
}

// ObserveQuery records one retrieval query, its latency and result count.
func (r *Recorder) ObserveQuery(ctx context.Context, scope string, elapsed time.Duration, results int) {
	attrs := metric.WithAttributes(attribute.String("scope", scope))
	r.queries.Add(ctx, 1, attrs)
	r.latency.Record(ctx, elapsed.Seconds(), attrs)

	r.mu.Lock()
	r.queryN++
	r.results += int64(results)
	r.mu.Unlock()
}

// StartSpan starts a span named "memory.<operation>".
func (r *Recorder) StartSpan(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return r.tracer.Start(ctx, "memory."+operation, trace.WithAttributes(attrs...))
}

// EndSpan records err on span, if any, and ends it.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// Snapshot copies the in-process tally.
func (r *Recorder) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	ops := make(map[string]int64, len(r.tally))
	for k, v := range r.tally {
		ops[k] = v
	}
	return Snapshot{Operations: ops, Queries: r.queryN, Results: r.results}
}
