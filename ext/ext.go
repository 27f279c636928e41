package ext

import (
	"context"
	"time"

	"github.com/xraph/stageflow/definition"
	"github.com/xraph/stageflow/id"
	"github.com/xraph/stageflow/instance"
)

// Extension is the base interface all extensions must implement.
type Extension interface {
	// Name returns a unique human-readable name for the extension.
	Name() string
}

// ──────────────────────────────────────────────────
// Definition lifecycle hooks
// ──────────────────────────────────────────────────

// DefinitionSaved is called after a definition is created or updated
// through the definition service.
type DefinitionSaved interface {
	OnDefinitionSaved(ctx context.Context, def *definition.Definition) error
}

// DefinitionDeleted is called after a definition is deleted.
type DefinitionDeleted interface {
	OnDefinitionDeleted(ctx context.Context, defID id.WorkflowID) error
}

// ──────────────────────────────────────────────────
// Instance lifecycle hooks
// ──────────────────────────────────────────────────

// InstanceStarted is called after the engine creates a new instance at
// its start stage.
type InstanceStarted interface {
	OnInstanceStarted(ctx context.Context, in *instance.Instance) error
}

// StageAdvanced is called after every successful transition, including
// the one that completes the instance. entry is the history record the
// transition appended.
type StageAdvanced interface {
	OnStageAdvanced(ctx context.Context, in *instance.Instance, entry instance.HistoryEntry) error
}

// InstanceCompleted is called after a transition lands the instance on
// a terminal stage. elapsed is the time since the instance started.
type InstanceCompleted interface {
	OnInstanceCompleted(ctx context.Context, in *instance.Instance, elapsed time.Duration) error
}

// ──────────────────────────────────────────────────
// Other lifecycle hooks
// ──────────────────────────────────────────────────

// Shutdown is called during graceful shutdown.
type Shutdown interface {
	OnShutdown(ctx context.Context) error
}
