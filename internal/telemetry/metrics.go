// Package telemetry records OpenTelemetry metrics and spans for edge
// materialization and traversal.
//
// Instruments are created from an explicit MeterProvider so tests can attach
// a manual reader; spans use the TracerProvider given by WithTracerProvider.
// A nil *Recorder is valid and records nothing.
package telemetry

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// InstrumentationName is the meter name used for all instruments.
const InstrumentationName = "github.com/roach88/rulegraph"

// Metric names.
const (
	MetricHandshakes   = "rulegraph_handshakes_total"
	MetricEdgesAdded   = "rulegraph_edges_added_total"
	MetricEdgesRemoved = "rulegraph_edges_removed_total"
	MetricMaterialize  = "rulegraph_materialize_duration_seconds"
	MetricBFSVisited   = "rulegraph_bfs_visited_nodes"
)

// Recorder holds the metric instruments and the tracer.
type Recorder struct {
	tracer trace.Tracer

	handshakes   metric.Int64Counter
	edgesAdded   metric.Int64Counter
	edgesRemoved metric.Int64Counter
	materialize  metric.Float64Histogram
	bfsVisited   metric.Int64Histogram
}

// Option configures a Recorder.
type Option func(*config)

type config struct {
	tracerProvider trace.TracerProvider
}

// WithTracerProvider sets where spans go. Default: no spans are recorded.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *config) {
		c.tracerProvider = tp
	}
}

// New creates a Recorder whose instruments come from mp.
func New(mp metric.MeterProvider, opts ...Option) (*Recorder, error) {
	cfg := config{tracerProvider: tracenoop.NewTracerProvider()}
	for _, opt := range opts {
		opt(&cfg)
	}

	meter := mp.Meter(InstrumentationName)
	r := &Recorder{tracer: cfg.tracerProvider.Tracer(InstrumentationName)}

	var err error
	r.handshakes, err = meter.Int64Counter(MetricHandshakes,
		metric.WithDescription("Directed handshakes evaluated during materialization"),
	)
	if err != nil {
		return nil, err
	}

	r.edgesAdded, err = meter.Int64Counter(MetricEdgesAdded,
		metric.WithDescription("Directed edges inserted by materialization"),
	)
	if err != nil {
		return nil, err
	}

	r.edgesRemoved, err = meter.Int64Counter(MetricEdgesRemoved,
		metric.WithDescription("Directed edges removed by node removal or recalculation"),
	)
	if err != nil {
		return nil, err
	}

	r.materialize, err = meter.Float64Histogram(MetricMaterialize,
		metric.WithDescription("Duration of a node materialization sweep"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	r.bfsVisited, err = meter.Int64Histogram(MetricBFSVisited,
		metric.WithDescription("Nodes returned per breadth-first traversal"),
	)
	if err != nil {
		return nil, err
	}

	return r, nil
}

// Noop returns a Recorder backed by the no-op meter provider.
func Noop() *Recorder {
	r, err := New(noop.NewMeterProvider())
	if err != nil {
		// The no-op provider never fails to create instruments.
		panic(err)
	}
	return r
}

var (
	globalOnce sync.Once
	global     *Recorder
	globalErr  error
)

// Global returns a Recorder bound to otel.GetMeterProvider() and
// otel.GetTracerProvider(). Instruments are created once; later calls return
// the same Recorder.
func Global() (*Recorder, error) {
	globalOnce.Do(func() {
		global, globalErr = New(otel.GetMeterProvider(), WithTracerProvider(otel.GetTracerProvider()))
	})
	return global, globalErr
}

// RecordMaterialization records one sweep triggered by op ("create" or
// "recalculate").
func (r *Recorder) RecordMaterialization(ctx context.Context, op string, duration time.Duration, handshakes, added int) {
	if r == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("op", op))
	r.handshakes.Add(ctx, int64(handshakes), attrs)
	r.edgesAdded.Add(ctx, int64(added), attrs)
	r.materialize.Record(ctx, duration.Seconds(), attrs)
}

// RecordEdgesRemoved records edges dropped by op ("remove" or "recalculate").
func (r *Recorder) RecordEdgesRemoved(ctx context.Context, op string, removed int) {
	if r == nil {
		return
	}
	r.edgesRemoved.Add(ctx, int64(removed), metric.WithAttributes(attribute.String("op", op)))
}

// RecordTraversal records the size of one traversal result.
func (r *Recorder) RecordTraversal(ctx context.Context, visited int, stopped bool) {
	if r == nil {
		return
	}
	r.bfsVisited.Record(ctx, int64(visited), metric.WithAttributes(attribute.Bool("stopped", stopped)))
}
