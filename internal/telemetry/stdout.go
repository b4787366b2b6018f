package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// NewStdout returns a Recorder that writes spans and metrics as JSON to w,
// and a shutdown function that flushes both providers. Spans are written as
// they end; metrics are written once, on shutdown.
func NewStdout(w io.Writer) (*Recorder, func(context.Context) error, error) {
	spanExporter, err := stdouttrace.New(stdouttrace.WithWriter(w))
	if err != nil {
		return nil, nil, fmt.Errorf("create stdout span exporter: %w", err)
	}
	metricExporter, err := stdoutmetric.New(stdoutmetric.WithWriter(w))
	if err != nil {
		return nil, nil, fmt.Errorf("create stdout metric exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(spanExporter))
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter)),
	)
	shutdown := func(ctx context.Context) error {
		return errors.Join(tp.Shutdown(ctx), mp.Shutdown(ctx))
	}

	r, err := New(mp, WithTracerProvider(tp))
	if err != nil {
		_ = shutdown(context.Background())
		return nil, nil, fmt.Errorf("create recorder: %w", err)
	}
	return r, shutdown, nil
}
