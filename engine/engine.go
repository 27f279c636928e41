package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/xraph/stageflow"
	"github.com/xraph/stageflow/definition"
	"github.com/xraph/stageflow/ext"
	"github.com/xraph/stageflow/graph"
	"github.com/xraph/stageflow/id"
	"github.com/xraph/stageflow/instance"
	mw "github.com/xraph/stageflow/middleware"
)

// tracerName is the instrumentation scope name for engine tracing.
const tracerName = "github.com/xraph/stageflow"

// Engine applies transitions to workflow instances. All instance
// mutation goes through it; callers never write instances directly.
type Engine struct {
	definitions definition.Store
	instances   instance.Store
	extensions  *ext.Registry
	logger      *slog.Logger
	tracer      trace.Tracer
	mws         []mw.Middleware

	// locks serializes in-process Advance calls per instance.
	// Keys are instance ID strings, values are *sync.Mutex.
	locks sync.Map
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the structured logger for the engine.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithExtension registers an extension with the engine's registry.
func WithExtension(x ext.Extension) Option {
	return func(e *Engine) { e.extensions.Register(x) }
}

// WithMiddleware appends middleware to the engine's transition chain.
func WithMiddleware(m mw.Middleware) Option {
	return func(e *Engine) { e.mws = append(e.mws, m) }
}

// WithTracerProvider sets the TracerProvider used for engine spans.
// By default the global provider is used (noop when none is installed).
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(e *Engine) { e.tracer = tp.Tracer(tracerName) }
}

// New creates an Engine backed by the given definition and instance
// stores. A single composite store (store.Store) satisfies both.
func New(defs definition.Store, insts instance.Store, opts ...Option) *Engine {
	e := &Engine{
		definitions: defs,
		instances:   insts,
		logger:      slog.Default(),
		tracer:      otel.Tracer(tracerName),
	}
	e.extensions = ext.NewRegistry(e.logger)
	for _, o := range opts {
		o(e)
	}
	return e
}

// Extensions returns the engine's extension registry. It also satisfies
// definition.Emitter, so the same registry can be handed to
// definition.NewService via definition.WithEmitter.
func (e *Engine) Extensions() *ext.Registry { return e.extensions }

// Start binds the given definition to a work item and creates an
// instance at the definition's start stage. The definition's stage
// graph is snapshotted into the instance: later edits to the definition
// never affect this instance's legal transitions.
//
// The caller is responsible for the one-active-instance-per-task
// policy; Start itself only refuses missing or inactive definitions.
func (e *Engine) Start(ctx context.Context, workflowID id.WorkflowID, taskID, actorID string) (*instance.Instance, error) {
	ctx, span := e.tracer.Start(ctx, "stageflow.instance.start",
		trace.WithAttributes(
			attribute.String("stageflow.workflow.id", workflowID.String()),
			attribute.String("stageflow.task.id", taskID),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
	defer span.End()

	def, err := e.definitions.GetDefinition(ctx, workflowID)
	if err != nil {
		return nil, e.spanErr(span, err)
	}
	if !def.IsActive {
		return nil, e.spanErr(span, fmt.Errorf("%w: %s", stageflow.ErrDefinitionInactive, workflowID))
	}

	g := def.Graph()
	g.Normalize()
	start, ok := g.Start()
	if !ok {
		return nil, e.spanErr(span, fmt.Errorf("%w: definition %s has no start stage", stageflow.ErrStageNotFound, workflowID))
	}

	now := time.Now().UTC()
	in := &instance.Instance{
		Entity:         stageflow.NewEntity(),
		ID:             id.NewInstanceID(),
		WorkflowID:     def.ID,
		TaskID:         taskID,
		CurrentStageID: start.ID,
		Status:         instance.StatusActive,
		Stages:         g.Stages(),
		History: []instance.HistoryEntry{{
			From:    id.Nil,
			To:      start.ID,
			At:      now,
			ActorID: actorID,
		}},
		StartedAt: now,
		Version:   1,
	}

	// A graph whose single stage is both start and terminal is valid;
	// such an instance is born completed.
	if start.IsTerminal {
		in.Status = instance.StatusCompleted
		in.CompletedAt = &now
	}

	if err := e.instances.CreateInstance(ctx, in); err != nil {
		return nil, e.spanErr(span, err)
	}

	e.logger.Info("instance started",
		slog.String("instance_id", in.ID.String()),
		slog.String("workflow_id", def.ID.String()),
		slog.String("task_id", taskID),
		slog.String("stage", start.Name),
	)
	e.extensions.EmitInstanceStarted(ctx, in)
	span.SetStatus(codes.Ok, "")
	return in, nil
}

// Advance moves an instance to nextStageID if the current stage's
// snapshot allows it. On success it appends exactly one history entry,
// updates the current stage, and marks the instance completed when the
// target stage is terminal. Illegal requests are rejected without
// mutating anything.
//
// Advance is atomic per instance: concurrent calls on the same instance
// are serialized in-process, and the store's version check catches
// cross-process races (stageflow.ErrStaleInstance).
func (e *Engine) Advance(ctx context.Context, instanceID id.InstanceID, nextStageID id.StageID, actorID string) (*instance.Instance, error) {
	lock := e.lockFor(instanceID)
	lock.Lock()
	defer lock.Unlock()

	in, err := e.instances.GetInstance(ctx, instanceID)
	if err != nil {
		return nil, err
	}

	if in.Completed() {
		return nil, fmt.Errorf("%w: instance %s is at stage %s", stageflow.ErrInstanceCompleted, instanceID, in.CurrentStageID)
	}

	g := in.Graph()
	current, ok := g.Stage(in.CurrentStageID)
	if !ok {
		return nil, fmt.Errorf("%w: current stage %s missing from instance snapshot", stageflow.ErrStageNotFound, in.CurrentStageID)
	}
	next, ok := g.Stage(nextStageID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", stageflow.ErrStageNotFound, nextStageID)
	}
	if !current.CanTransitionTo(next.ID) {
		return nil, fmt.Errorf("%w: %s → %s", stageflow.ErrInvalidTransition, current.Name, next.Name)
	}

	t := &instance.Transition{
		InstanceID: in.ID,
		WorkflowID: in.WorkflowID,
		TaskID:     in.TaskID,
		From:       current.ID,
		To:         next.ID,
		ActorID:    actorID,
		Terminal:   next.IsTerminal,
	}

	var entry instance.HistoryEntry
	apply := func(ctx context.Context) error {
		now := time.Now().UTC()
		entry = instance.HistoryEntry{
			From:    current.ID,
			To:      next.ID,
			At:      now,
			ActorID: actorID,
		}
		in.History = append(in.History, entry)
		in.CurrentStageID = next.ID
		in.Touch()
		if next.IsTerminal {
			in.Status = instance.StatusCompleted
			in.CompletedAt = &now
		}
		return e.instances.UpdateInstance(ctx, in)
	}

	chain := mw.Chain(e.mws...)
	if err := e.traced(ctx, t, chain, apply); err != nil {
		return nil, err
	}

	e.logger.Info("instance advanced",
		slog.String("instance_id", in.ID.String()),
		slog.String("from", current.Name),
		slog.String("to", next.Name),
		slog.String("actor_id", actorID),
		slog.Bool("terminal", next.IsTerminal),
	)

	e.extensions.EmitStageAdvanced(ctx, in, entry)
	if next.IsTerminal {
		e.extensions.EmitInstanceCompleted(ctx, in, entry.At.Sub(in.StartedAt))
	}
	return in, nil
}

// LegalNextStages returns the stages the instance may advance to from
// its current stage, resolved against its snapshot. Completed instances
// have none. Every returned stage is guaranteed to be accepted by
// Advance barring a concurrent transition in between.
func (e *Engine) LegalNextStages(ctx context.Context, instanceID id.InstanceID) ([]graph.Stage, error) {
	in, err := e.instances.GetInstance(ctx, instanceID)
	if err != nil {
		return nil, err
	}
	if in.Completed() {
		return nil, nil
	}

	g := in.Graph()
	current, ok := g.Stage(in.CurrentStageID)
	if !ok {
		return nil, fmt.Errorf("%w: current stage %s missing from instance snapshot", stageflow.ErrStageNotFound, in.CurrentStageID)
	}

	out := make([]graph.Stage, 0, len(current.Transitions))
	for _, target := range current.Transitions {
		if s, ok := g.Stage(target); ok {
			out = append(out, s)
		}
	}
	return out, nil
}

// GetInstance retrieves an instance by ID.
func (e *Engine) GetInstance(ctx context.Context, instanceID id.InstanceID) (*instance.Instance, error) {
	return e.instances.GetInstance(ctx, instanceID)
}

// ListInstances returns instances matching the given options.
func (e *Engine) ListInstances(ctx context.Context, opts instance.ListOpts) ([]*instance.Instance, error) {
	return e.instances.ListInstances(ctx, opts)
}

// Shutdown notifies extensions of graceful shutdown.
func (e *Engine) Shutdown(ctx context.Context) {
	e.extensions.EmitShutdown(ctx)
}

// traced runs the middleware chain and terminal handler inside an
// engine span.
func (e *Engine) traced(ctx context.Context, t *instance.Transition, chain mw.Middleware, apply mw.Handler) error {
	ctx, span := e.tracer.Start(ctx, "stageflow.instance.advance",
		trace.WithAttributes(
			attribute.String("stageflow.instance.id", t.InstanceID.String()),
			attribute.String("stageflow.stage.from", t.From.String()),
			attribute.String("stageflow.stage.to", t.To.String()),
			attribute.Bool("stageflow.terminal", t.Terminal),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
	defer span.End()

	if err := chain(ctx, t, apply); err != nil {
		return e.spanErr(span, err)
	}
	span.SetStatus(codes.Ok, "")
	return nil
}

// lockFor returns the mutex guarding the given instance.
func (e *Engine) lockFor(instanceID id.InstanceID) *sync.Mutex {
	v, _ := e.locks.LoadOrStore(instanceID.String(), &sync.Mutex{})
	return v.(*sync.Mutex)
}

// spanErr records err on the span and returns it unchanged.
func (e *Engine) spanErr(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
