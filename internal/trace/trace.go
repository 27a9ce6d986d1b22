// Package trace owns the OpenTelemetry tracer for the trader. Spans export
// to stdout; trace/span IDs surface in log lines via GetTraceFields so a
// cycle's logs can be correlated with its spans.
package trace

import (
	"context"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

const serviceName = "llm-futures-trader"

var (
	tracer   trace.Tracer
	provider *sdktrace.TracerProvider
)

// Init starts the tracer provider. Tracing is on unless
// LOG_TRACING_ENABLED=false. TRACE_COMPACT=true emits one-line span JSON
// for log shippers instead of the pretty-printed default.
func Init() error {
	if !Enabled() {
		return nil
	}

	var expOpts []stdouttrace.Option
	if os.Getenv("TRACE_COMPACT") != "true" {
		expOpts = append(expOpts, stdouttrace.WithPrettyPrint())
	}
	exporter, err := stdouttrace.New(expOpts...)
	if err != nil {
		return err
	}

	res, err := resource.New(context.Background(), resource.WithAttributes(
		semconv.ServiceName(serviceName),
		semconv.ServiceVersion("1.0.0"),
	))
	if err != nil {
		return err
	}

	provider = sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(provider)
	tracer = provider.Tracer(serviceName)
	return nil
}

// Shutdown flushes pending spans. Safe to call when Init was skipped.
func Shutdown(ctx context.Context) error {
	if provider == nil {
		return nil
	}
	return provider.Shutdown(ctx)
}

func Enabled() bool {
	return os.Getenv("LOG_TRACING_ENABLED") != "false"
}

// StartSpan opens a child span, or returns the current span untouched when
// tracing is off so call sites never need to branch.
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	if tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return tracer.Start(ctx, name, opts...)
}

// GetTraceFields extracts the active trace and span IDs for log correlation.
func GetTraceFields(ctx context.Context) (traceID, spanID string, ok bool) {
	sc := trace.SpanFromContext(ctx).SpanContext()
	if !sc.IsValid() {
		return "", "", false
	}
	return sc.TraceID().String(), sc.SpanID().String(), true
}
