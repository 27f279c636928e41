package ext

import (
	"context"
	"log/slog"
	"time"

	"github.com/xraph/stageflow/definition"
	"github.com/xraph/stageflow/id"
	"github.com/xraph/stageflow/instance"
)

// Named entry types pair a hook implementation with the extension name
// captured at registration time. This avoids type-asserting back to
// Extension inside the emit methods.
type definitionSavedEntry struct {
	name string
	hook DefinitionSaved
}

type definitionDeletedEntry struct {
	name string
	hook DefinitionDeleted
}

type instanceStartedEntry struct {
	name string
	hook InstanceStarted
}

type stageAdvancedEntry struct {
	name string
	hook StageAdvanced
}

type instanceCompletedEntry struct {
	name string
	hook InstanceCompleted
}

type shutdownEntry struct {
	name string
	hook Shutdown
}

// Registry holds registered extensions and dispatches lifecycle events
// to them. It type-caches extensions at registration time so emit calls
// iterate only over extensions that implement the relevant hook.
type Registry struct {
	extensions []Extension
	logger     *slog.Logger

	// Type-cached slices for each lifecycle hook.
	definitionSaved   []definitionSavedEntry
	definitionDeleted []definitionDeletedEntry
	instanceStarted   []instanceStartedEntry
	stageAdvanced     []stageAdvancedEntry
	instanceCompleted []instanceCompletedEntry
	shutdown          []shutdownEntry
}

// NewRegistry creates an extension registry with the given logger.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{logger: logger}
}

// Register adds an extension and type-asserts it into all applicable
// hook caches. Extensions are notified in registration order.
func (r *Registry) Register(e Extension) {
	r.extensions = append(r.extensions, e)
	name := e.Name()

	if h, ok := e.(DefinitionSaved); ok {
		r.definitionSaved = append(r.definitionSaved, definitionSavedEntry{name, h})
	}
	if h, ok := e.(DefinitionDeleted); ok {
		r.definitionDeleted = append(r.definitionDeleted, definitionDeletedEntry{name, h})
	}
	if h, ok := e.(InstanceStarted); ok {
		r.instanceStarted = append(r.instanceStarted, instanceStartedEntry{name, h})
	}
	if h, ok := e.(StageAdvanced); ok {
		r.stageAdvanced = append(r.stageAdvanced, stageAdvancedEntry{name, h})
	}
	if h, ok := e.(InstanceCompleted); ok {
		r.instanceCompleted = append(r.instanceCompleted, instanceCompletedEntry{name, h})
	}
	if h, ok := e.(Shutdown); ok {
		r.shutdown = append(r.shutdown, shutdownEntry{name, h})
	}
}

// Extensions returns all registered extensions.
func (r *Registry) Extensions() []Extension { return r.extensions }

// ──────────────────────────────────────────────────
// Definition event emitters
// ──────────────────────────────────────────────────

// EmitDefinitionSaved notifies all extensions that implement DefinitionSaved.
func (r *Registry) EmitDefinitionSaved(ctx context.Context, def *definition.Definition) {
	for _, e := range r.definitionSaved {
		if err := e.hook.OnDefinitionSaved(ctx, def); err != nil {
			r.logHookError("OnDefinitionSaved", e.name, err)
		}
	}
}

// EmitDefinitionDeleted notifies all extensions that implement DefinitionDeleted.
func (r *Registry) EmitDefinitionDeleted(ctx context.Context, defID id.WorkflowID) {
	for _, e := range r.definitionDeleted {
		if err := e.hook.OnDefinitionDeleted(ctx, defID); err != nil {
			r.logHookError("OnDefinitionDeleted", e.name, err)
		}
	}
}

// ──────────────────────────────────────────────────
// Instance event emitters
// ──────────────────────────────────────────────────

// EmitInstanceStarted notifies all extensions that implement InstanceStarted.
func (r *Registry) EmitInstanceStarted(ctx context.Context, in *instance.Instance) {
	for _, e := range r.instanceStarted {
		if err := e.hook.OnInstanceStarted(ctx, in); err != nil {
			r.logHookError("OnInstanceStarted", e.name, err)
		}
	}
}

// EmitStageAdvanced notifies all extensions that implement StageAdvanced.
func (r *Registry) EmitStageAdvanced(ctx context.Context, in *instance.Instance, entry instance.HistoryEntry) {
	for _, e := range r.stageAdvanced {
		if err := e.hook.OnStageAdvanced(ctx, in, entry); err != nil {
			r.logHookError("OnStageAdvanced", e.name, err)
		}
	}
}

// EmitInstanceCompleted notifies all extensions that implement InstanceCompleted.
func (r *Registry) EmitInstanceCompleted(ctx context.Context, in *instance.Instance, elapsed time.Duration) {
	for _, e := range r.instanceCompleted {
		if err := e.hook.OnInstanceCompleted(ctx, in, elapsed); err != nil {
			r.logHookError("OnInstanceCompleted", e.name, err)
		}
	}
}

// ──────────────────────────────────────────────────
// Other event emitters
// ──────────────────────────────────────────────────

// EmitShutdown notifies all extensions that implement Shutdown.
func (r *Registry) EmitShutdown(ctx context.Context) {
	for _, e := range r.shutdown {
		if err := e.hook.OnShutdown(ctx); err != nil {
			r.logHookError("OnShutdown", e.name, err)
		}
	}
}

// logHookError logs a warning when a lifecycle hook returns an error.
// Errors from hooks are never propagated — they must not block a
// transition.
func (r *Registry) logHookError(hook, extName string, err error) {
	r.logger.Warn("extension hook error",
		slog.String("hook", hook),
		slog.String("extension", extName),
		slog.String("error", err.Error()),
	)
}
