// Package tracing records one span per scenario and per page-object step
// into <results>/trace.jsonl, so a failed run can be replayed step by step.
package tracing

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/Venallanaj/QA-Task"

// FileName is the trace file written inside the results directory.
const FileName = "trace.jsonl"

var (
	AttrRunID    = attribute.Key("shiftcheck.run.id")
	AttrProject  = attribute.Key("shiftcheck.project")
	AttrScenario = attribute.Key("shiftcheck.scenario")
	AttrStep     = attribute.Key("shiftcheck.step")
	AttrOutcome  = attribute.Key("shiftcheck.outcome")
	AttrURL      = attribute.Key("shiftcheck.url")
)

// Setup installs a global tracer provider exporting to dir/trace.jsonl.
// The returned shutdown flushes and closes the file; it is safe to call
// when tracing is disabled.
func Setup(ctx context.Context, dir, runID, version string) (func(context.Context) error, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create trace dir: %w", err)
	}
	path := filepath.Join(dir, FileName)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("open trace file: %w", err)
	}

	exporter, err := stdouttrace.New(stdouttrace.WithWriter(f))
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("create trace exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String("shiftcheck"),
			semconv.ServiceVersionKey.String(version),
			AttrRunID.String(runID),
		),
	)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("create trace resource: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	otel.SetTracerProvider(provider)
	slog.Debug("tracing enabled", "path", path)

	return func(ctx context.Context) error {
		err := provider.Shutdown(ctx)
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		return err
	}, nil
}

func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

func Start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return Tracer().Start(ctx, name, trace.WithAttributes(attrs...))
}

// End closes span, marking it failed when err is non-nil.
func End(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// Event adds a named event to the span in ctx.
func Event(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	trace.SpanFromContext(ctx).AddEvent(name, trace.WithAttributes(attrs...))
}
