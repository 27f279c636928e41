package middleware

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/xraph/stageflow/instance"
)

// tracerName is the instrumentation scope name for stageflow tracing.
const tracerName = "github.com/xraph/stageflow"

// Tracing returns middleware that wraps each transition in an
// OpenTelemetry span. If no TracerProvider is configured globally, the
// default noop tracer is used and this middleware becomes a
// pass-through with zero overhead.
//
// Span attributes include: stageflow.instance.id, stageflow.workflow.id,
// stageflow.task.id, stageflow.stage.from, stageflow.stage.to,
// stageflow.terminal.
func Tracing() Middleware {
	tracer := otel.Tracer(tracerName)
	return TracingWithTracer(tracer)
}

// TracingWithTracer returns tracing middleware using the provided
// tracer. This variant allows injecting a specific TracerProvider for
// testing or when multiple providers are in use.
func TracingWithTracer(tracer trace.Tracer) Middleware {
	return func(ctx context.Context, t *instance.Transition, next Handler) error {
		ctx, span := tracer.Start(ctx, "stageflow.instance.advance",
			trace.WithAttributes(
				attribute.String("stageflow.instance.id", t.InstanceID.String()),
				attribute.String("stageflow.workflow.id", t.WorkflowID.String()),
				attribute.String("stageflow.task.id", t.TaskID),
				attribute.String("stageflow.stage.from", t.From.String()),
				attribute.String("stageflow.stage.to", t.To.String()),
				attribute.Bool("stageflow.terminal", t.Terminal),
			),
			trace.WithSpanKind(trace.SpanKindInternal),
		)
		defer span.End()

		err := next(ctx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}

		return err
	}
}
