package audithook

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xraph/stageflow/definition"
	"github.com/xraph/stageflow/ext"
	"github.com/xraph/stageflow/id"
	"github.com/xraph/stageflow/instance"
)

// Compile-time interface checks.
var (
	_ ext.Extension         = (*Extension)(nil)
	_ ext.DefinitionSaved   = (*Extension)(nil)
	_ ext.DefinitionDeleted = (*Extension)(nil)
	_ ext.InstanceStarted   = (*Extension)(nil)
	_ ext.StageAdvanced     = (*Extension)(nil)
	_ ext.InstanceCompleted = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
// Callers inject their concrete audit trail at wiring time.
type Recorder interface {
	// Record persists a fully-formed audit event.
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is a structured record of one lifecycle event.
type AuditEvent struct {
	// What happened
	Action   string `json:"action"`
	Resource string `json:"resource"`
	Category string `json:"category"`

	// Details
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Severity constants.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Outcome constants.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Extension bridges stageflow lifecycle events to an audit trail
// backend. Each lifecycle hook emits a structured audit event through
// the [Recorder].
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided
// Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements ext.Extension.
func (e *Extension) Name() string { return "audit-hook" }

// ── Definition lifecycle hooks ──────────────────────

// OnDefinitionSaved implements ext.DefinitionSaved.
func (e *Extension) OnDefinitionSaved(ctx context.Context, def *definition.Definition) error {
	return e.record(ctx, ActionDefinitionSaved, SeverityInfo, OutcomeSuccess,
		ResourceDefinition, def.ID.String(), CategoryDefinition,
		"workflow_name", def.Name,
		"board_id", def.BoardID,
		"is_active", def.IsActive,
		"stage_count", len(def.Stages),
	)
}

// OnDefinitionDeleted implements ext.DefinitionDeleted.
func (e *Extension) OnDefinitionDeleted(ctx context.Context, defID id.WorkflowID) error {
	return e.record(ctx, ActionDefinitionDeleted, SeverityWarning, OutcomeSuccess,
		ResourceDefinition, defID.String(), CategoryDefinition,
	)
}

// ── Instance lifecycle hooks ────────────────────────

// OnInstanceStarted implements ext.InstanceStarted.
func (e *Extension) OnInstanceStarted(ctx context.Context, in *instance.Instance) error {
	return e.record(ctx, ActionInstanceStarted, SeverityInfo, OutcomeSuccess,
		ResourceInstance, in.ID.String(), CategoryInstance,
		"workflow_id", in.WorkflowID.String(),
		"task_id", in.TaskID,
		"stage_id", in.CurrentStageID.String(),
	)
}

// OnStageAdvanced implements ext.StageAdvanced.
func (e *Extension) OnStageAdvanced(ctx context.Context, in *instance.Instance, entry instance.HistoryEntry) error {
	return e.record(ctx, ActionInstanceAdvanced, SeverityInfo, OutcomeSuccess,
		ResourceInstance, in.ID.String(), CategoryInstance,
		"workflow_id", in.WorkflowID.String(),
		"task_id", in.TaskID,
		"from_stage_id", entry.From.String(),
		"to_stage_id", entry.To.String(),
		"actor_id", entry.ActorID,
	)
}

// OnInstanceCompleted implements ext.InstanceCompleted.
func (e *Extension) OnInstanceCompleted(ctx context.Context, in *instance.Instance, elapsed time.Duration) error {
	return e.record(ctx, ActionInstanceCompleted, SeverityInfo, OutcomeSuccess,
		ResourceInstance, in.ID.String(), CategoryInstance,
		"workflow_id", in.WorkflowID.String(),
		"task_id", in.TaskID,
		"stage_id", in.CurrentStageID.String(),
		"elapsed_ms", elapsed.Milliseconds(),
		"transitions", len(in.History),
	)
}

// ── Internal helpers ────────────────────────────────

// record builds and sends an audit event if the action is enabled.
// The kvPairs argument is a list of key-value pairs added to Metadata.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
