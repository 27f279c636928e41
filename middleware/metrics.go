package middleware

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/xraph/stageflow/instance"
)

// meterName is the instrumentation scope name for stageflow metrics.
const meterName = "github.com/xraph/stageflow"

// Metrics returns middleware that records per-transition metrics using
// the global OTel MeterProvider. If no MeterProvider is configured,
// noop instruments are used and this middleware becomes a pass-through.
//
// Instruments:
//   - stageflow.transition.duration (Float64Histogram): transition time
//     in seconds, with attributes: workflow_id, status ("ok" or "error")
//   - stageflow.transition.total (Int64Counter): total transitions,
//     with attributes: workflow_id, status ("ok" or "error")
func Metrics() Middleware {
	meter := otel.Meter(meterName)
	return MetricsWithMeter(meter)
}

// MetricsWithMeter returns metrics middleware using the provided meter.
// This variant allows injecting a specific MeterProvider for testing.
func MetricsWithMeter(meter metric.Meter) Middleware {
	// Create instruments once at middleware construction time.
	// OTel instruments are safe for concurrent use. On error, the API
	// returns noop instruments so the middleware degrades gracefully.
	duration, dErr := meter.Float64Histogram(
		"stageflow.transition.duration",
		metric.WithDescription("Duration of workflow transitions in seconds"),
		metric.WithUnit("s"),
	)
	_ = dErr // noop fallback guaranteed by OTel API contract

	total, tErr := meter.Int64Counter(
		"stageflow.transition.total",
		metric.WithDescription("Total number of workflow transitions"),
		metric.WithUnit("{transition}"),
	)
	_ = tErr // noop fallback guaranteed by OTel API contract

	return func(ctx context.Context, t *instance.Transition, next Handler) error {
		start := time.Now()
		err := next(ctx)
		elapsed := time.Since(start).Seconds()

		status := "ok"
		if err != nil {
			status = "error"
		}

		attrs := metric.WithAttributes(
			attribute.String("workflow_id", t.WorkflowID.String()),
			attribute.String("status", status),
		)

		duration.Record(ctx, elapsed, attrs)
		total.Add(ctx, 1, attrs)

		return err
	}
}
