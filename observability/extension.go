package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/xraph/stageflow/definition"
	"github.com/xraph/stageflow/ext"
	"github.com/xraph/stageflow/id"
	"github.com/xraph/stageflow/instance"
)

// meterName is the instrumentation scope name for lifecycle metrics.
const meterName = "github.com/xraph/stageflow/observability"

// Compile-time interface checks.
var (
	_ ext.Extension         = (*MetricsExtension)(nil)
	_ ext.DefinitionSaved   = (*MetricsExtension)(nil)
	_ ext.DefinitionDeleted = (*MetricsExtension)(nil)
	_ ext.InstanceStarted   = (*MetricsExtension)(nil)
	_ ext.StageAdvanced     = (*MetricsExtension)(nil)
	_ ext.InstanceCompleted = (*MetricsExtension)(nil)
)

// MetricsExtension records workflow lifecycle metrics. Register it as a
// stageflow extension to automatically track definition saves and
// deletes, instance start and completion counts, stage advances, and
// end-to-end instance durations.
type MetricsExtension struct {
	definitionSaved   metric.Int64Counter
	definitionDeleted metric.Int64Counter
	instanceStarted   metric.Int64Counter
	stageAdvanced     metric.Int64Counter
	instanceCompleted metric.Int64Counter
	instanceDuration  metric.Float64Histogram
}

// NewMetricsExtension creates a MetricsExtension using the global OTel
// MeterProvider. If no provider is configured, noop instruments are
// used and the extension becomes a pass-through.
func NewMetricsExtension() *MetricsExtension {
	return NewMetricsExtensionWithMeter(otel.Meter(meterName))
}

// NewMetricsExtensionWithMeter creates a MetricsExtension with the
// provided meter. This variant allows injecting a specific
// MeterProvider for testing.
func NewMetricsExtensionWithMeter(meter metric.Meter) *MetricsExtension {
	m := &MetricsExtension{}

	// On error the OTel API returns noop instruments, so construction
	// never fails.
	m.definitionSaved, _ = meter.Int64Counter(
		"stageflow.definition.saved",
		metric.WithDescription("Total definition creates and updates"),
		metric.WithUnit("{definition}"),
	)
	m.definitionDeleted, _ = meter.Int64Counter(
		"stageflow.definition.deleted",
		metric.WithDescription("Total definition deletes"),
		metric.WithUnit("{definition}"),
	)
	m.instanceStarted, _ = meter.Int64Counter(
		"stageflow.instance.started",
		metric.WithDescription("Total workflow instances started"),
		metric.WithUnit("{instance}"),
	)
	m.stageAdvanced, _ = meter.Int64Counter(
		"stageflow.instance.advanced",
		metric.WithDescription("Total stage advances across all instances"),
		metric.WithUnit("{transition}"),
	)
	m.instanceCompleted, _ = meter.Int64Counter(
		"stageflow.instance.completed",
		metric.WithDescription("Total workflow instances completed"),
		metric.WithUnit("{instance}"),
	)
	m.instanceDuration, _ = meter.Float64Histogram(
		"stageflow.instance.duration",
		metric.WithDescription("End-to-end instance duration in seconds"),
		metric.WithUnit("s"),
	)

	return m
}

// Name implements ext.Extension.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// ── Definition lifecycle hooks ──────────────────────

// OnDefinitionSaved implements ext.DefinitionSaved.
func (m *MetricsExtension) OnDefinitionSaved(ctx context.Context, def *definition.Definition) error {
	m.definitionSaved.Add(ctx, 1, metric.WithAttributes(
		attribute.Bool("is_active", def.IsActive),
	))
	return nil
}

// OnDefinitionDeleted implements ext.DefinitionDeleted.
func (m *MetricsExtension) OnDefinitionDeleted(ctx context.Context, _ id.WorkflowID) error {
	m.definitionDeleted.Add(ctx, 1)
	return nil
}

// ── Instance lifecycle hooks ────────────────────────

// OnInstanceStarted implements ext.InstanceStarted.
func (m *MetricsExtension) OnInstanceStarted(ctx context.Context, in *instance.Instance) error {
	m.instanceStarted.Add(ctx, 1, metric.WithAttributes(
		attribute.String("workflow_id", in.WorkflowID.String()),
	))
	return nil
}

// OnStageAdvanced implements ext.StageAdvanced.
func (m *MetricsExtension) OnStageAdvanced(ctx context.Context, in *instance.Instance, _ instance.HistoryEntry) error {
	m.stageAdvanced.Add(ctx, 1, metric.WithAttributes(
		attribute.String("workflow_id", in.WorkflowID.String()),
	))
	return nil
}

// OnInstanceCompleted implements ext.InstanceCompleted.
func (m *MetricsExtension) OnInstanceCompleted(ctx context.Context, in *instance.Instance, elapsed time.Duration) error {
	attrs := metric.WithAttributes(
		attribute.String("workflow_id", in.WorkflowID.String()),
	)
	m.instanceCompleted.Add(ctx, 1, attrs)
	m.instanceDuration.Record(ctx, elapsed.Seconds(), attrs)
	return nil
}
