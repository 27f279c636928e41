package ext_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/xraph/stageflow/definition"
	"github.com/xraph/stageflow/ext"
	"github.com/xraph/stageflow/id"
	"github.com/xraph/stageflow/instance"
)

// ──────────────────────────────────────────────────
// Test extensions
// ──────────────────────────────────────────────────

// allHooksExt implements every lifecycle hook for testing.
type allHooksExt struct {
	calls []string
}

func (e *allHooksExt) Name() string { return "all-hooks" }

func (e *allHooksExt) OnDefinitionSaved(_ context.Context, _ *definition.Definition) error {
	e.calls = append(e.calls, "OnDefinitionSaved")
	return nil
}

func (e *allHooksExt) OnDefinitionDeleted(_ context.Context, _ id.WorkflowID) error {
	e.calls = append(e.calls, "OnDefinitionDeleted")
	return nil
}

func (e *allHooksExt) OnInstanceStarted(_ context.Context, _ *instance.Instance) error {
	e.calls = append(e.calls, "OnInstanceStarted")
	return nil
}

func (e *allHooksExt) OnStageAdvanced(_ context.Context, _ *instance.Instance, _ instance.HistoryEntry) error {
	e.calls = append(e.calls, "OnStageAdvanced")
	return nil
}

func (e *allHooksExt) OnInstanceCompleted(_ context.Context, _ *instance.Instance, _ time.Duration) error {
	e.calls = append(e.calls, "OnInstanceCompleted")
	return nil
}

func (e *allHooksExt) OnShutdown(_ context.Context) error {
	e.calls = append(e.calls, "OnShutdown")
	return nil
}

// instanceOnlyExt only implements instance-related hooks.
type instanceOnlyExt struct {
	calls []string
}

func (e *instanceOnlyExt) Name() string { return "instance-only" }

func (e *instanceOnlyExt) OnInstanceStarted(_ context.Context, _ *instance.Instance) error {
	e.calls = append(e.calls, "OnInstanceStarted")
	return nil
}

func (e *instanceOnlyExt) OnInstanceCompleted(_ context.Context, _ *instance.Instance, _ time.Duration) error {
	e.calls = append(e.calls, "OnInstanceCompleted")
	return nil
}

// failingExt returns errors from hooks.
type failingExt struct{}

func (e *failingExt) Name() string { return "failing" }

func (e *failingExt) OnInstanceStarted(_ context.Context, _ *instance.Instance) error {
	return errors.New("boom")
}

func (e *failingExt) OnShutdown(_ context.Context) error {
	return errors.New("shutdown boom")
}

// ──────────────────────────────────────────────────
// Tests
// ──────────────────────────────────────────────────

func TestRegistry_RegisterDiscoversInterfaces(t *testing.T) {
	r := ext.NewRegistry(slog.Default())
	all := &allHooksExt{}
	r.Register(all)

	if got := len(r.Extensions()); got != 1 {
		t.Fatalf("expected 1 extension, got %d", got)
	}
	if got := r.Extensions()[0].Name(); got != "all-hooks" {
		t.Fatalf("expected name 'all-hooks', got %q", got)
	}
}

func TestRegistry_EmitFiresOnlyImplementors(t *testing.T) {
	r := ext.NewRegistry(slog.Default())
	all := &allHooksExt{}
	inst := &instanceOnlyExt{}
	r.Register(all)
	r.Register(inst)

	ctx := context.Background()
	in := &instance.Instance{ID: id.NewInstanceID()}

	// Both implement OnInstanceStarted → both called.
	r.EmitInstanceStarted(ctx, in)
	if len(all.calls) != 1 || all.calls[0] != "OnInstanceStarted" {
		t.Fatalf("all: expected [OnInstanceStarted], got %v", all.calls)
	}
	if len(inst.calls) != 1 || inst.calls[0] != "OnInstanceStarted" {
		t.Fatalf("inst: expected [OnInstanceStarted], got %v", inst.calls)
	}

	// Only all implements OnStageAdvanced → io not called.
	r.EmitStageAdvanced(ctx, in, instance.HistoryEntry{})
	if len(all.calls) != 2 || all.calls[1] != "OnStageAdvanced" {
		t.Fatalf("all: expected OnStageAdvanced as 2nd, got %v", all.calls)
	}
	if len(inst.calls) != 1 {
		t.Fatalf("inst: should still have 1 call, got %v", inst.calls)
	}
}

func TestRegistry_AllHooksFire(t *testing.T) {
	r := ext.NewRegistry(slog.Default())
	all := &allHooksExt{}
	r.Register(all)

	ctx := context.Background()
	def := &definition.Definition{ID: id.NewWorkflowID(), Name: "test-flow"}
	in := &instance.Instance{ID: id.NewInstanceID()}

	r.EmitDefinitionSaved(ctx, def)
	r.EmitDefinitionDeleted(ctx, def.ID)
	r.EmitInstanceStarted(ctx, in)
	r.EmitStageAdvanced(ctx, in, instance.HistoryEntry{})
	r.EmitInstanceCompleted(ctx, in, time.Second)
	r.EmitShutdown(ctx)

	expected := []string{
		"OnDefinitionSaved", "OnDefinitionDeleted", "OnInstanceStarted",
		"OnStageAdvanced", "OnInstanceCompleted", "OnShutdown",
	}
	if len(all.calls) != len(expected) {
		t.Fatalf("expected %d calls, got %d: %v", len(expected), len(all.calls), all.calls)
	}
	for i, want := range expected {
		if all.calls[i] != want {
			t.Errorf("call[%d] = %q, want %q", i, all.calls[i], want)
		}
	}
}

func TestRegistry_HookErrorsAreLoggedNotPropagated(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	r := ext.NewRegistry(logger)
	r.Register(&failingExt{})
	r.Register(&allHooksExt{})

	ctx := context.Background()

	// Emit methods have no error return; a failing hook must not stop
	// later extensions from being notified.
	all := r.Extensions()[1].(*allHooksExt)
	r.EmitInstanceStarted(ctx, &instance.Instance{ID: id.NewInstanceID()})
	r.EmitShutdown(ctx)

	if len(all.calls) != 2 {
		t.Fatalf("extension after a failing one got %d calls, want 2: %v", len(all.calls), all.calls)
	}
}

func TestRegistry_SatisfiesDefinitionEmitter(t *testing.T) {
	var _ definition.Emitter = ext.NewRegistry(slog.Default())
}
