package telemetry

import (
	"context"
	"io"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the instrumentation scope every gateway span is recorded
// under: one span per execute() call, one child span per type-check stage,
// one child span per upstream tool call.
const TracerName = "github.com/codemode-gw/codemode"

// NewTracerProvider builds a TracerProvider exporting spans as structured
// text to w (stdout in the default deployment), and installs it as the
// global provider. Callers must call Shutdown to flush on exit.
func NewTracerProvider(ctx context.Context, serviceName string, w io.Writer) (*sdktrace.TracerProvider, error) {
	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, err
	}

	res, err := resource.New(ctx, resource.WithAttributes(
		attribute.String("service.name", serviceName),
	))
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	return tp, nil
}

// Tracer returns the gateway's shared tracer, backed by whatever provider is
// currently installed globally (a no-op tracer until NewTracerProvider runs).
func Tracer() trace.Tracer {
	return otel.Tracer(TracerName)
}
