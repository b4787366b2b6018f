package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Span names.
const (
	SpanCreateNode = "Manager.CreateNode"
	SpanRemoveNode = "Manager.RemoveNode"
	SpanUpdateNode = "Manager.UpdateNodeData"
	SpanBFS        = "traverse.BFS"
)

// StartSpan starts a span as a child of any span in ctx. The returned span is
// never nil; on a nil Recorder it is the non-recording span from ctx.
func (r *Recorder) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if r == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return r.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// Fail marks span as failed with err and returns err unchanged.
func Fail(span trace.Span, err error) error {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}
