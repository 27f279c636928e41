package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/xraph/stageflow"
	"github.com/xraph/stageflow/definition"
	"github.com/xraph/stageflow/graph"
	"github.com/xraph/stageflow/id"
	"github.com/xraph/stageflow/instance"
	mw "github.com/xraph/stageflow/middleware"
	"github.com/xraph/stageflow/store/memory"
)

// ──────────────────────────────────────────────────
// Fixtures
// ──────────────────────────────────────────────────

// pipeline is a four-stage graph: Backlog → In Progress → Review, with
// Review able to send work back to In Progress or forward to Done.
type pipeline struct {
	backlog, inProgress, review, done graph.Stage
	def                               *definition.Definition
}

func newPipeline(t *testing.T, s *memory.Store) *pipeline {
	t.Helper()

	p := &pipeline{
		backlog:    graph.Stage{ID: id.NewStageID(), Name: "Backlog", Order: 0, IsStart: true},
		inProgress: graph.Stage{ID: id.NewStageID(), Name: "In Progress", Order: 1},
		review:     graph.Stage{ID: id.NewStageID(), Name: "Review", Order: 2},
		done:       graph.Stage{ID: id.NewStageID(), Name: "Done", Order: 3, IsTerminal: true},
	}
	p.backlog.Transitions = []id.StageID{p.inProgress.ID}
	p.inProgress.Transitions = []id.StageID{p.review.ID}
	p.review.Transitions = []id.StageID{p.inProgress.ID, p.done.ID}

	p.def = &definition.Definition{
		Entity:   stageflow.NewEntity(),
		ID:       id.NewWorkflowID(),
		Name:     "Delivery Pipeline",
		Stages:   []graph.Stage{p.backlog, p.inProgress, p.review, p.done},
		IsActive: true,
	}
	if err := s.CreateDefinition(context.Background(), p.def); err != nil {
		t.Fatalf("CreateDefinition: %v", err)
	}
	return p
}

// ──────────────────────────────────────────────────
// Start
// ──────────────────────────────────────────────────

func TestStart(t *testing.T) {
	t.Parallel()
	s := memory.New()
	p := newPipeline(t, s)
	e := New(s, s)
	ctx := context.Background()

	in, err := e.Start(ctx, p.def.ID, "task-1", "alice")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	if in.CurrentStageID != p.backlog.ID {
		t.Errorf("current stage = %s, want start stage %s", in.CurrentStageID, p.backlog.ID)
	}
	if in.Status != instance.StatusActive {
		t.Errorf("status = %s, want %s", in.Status, instance.StatusActive)
	}
	if in.Version != 1 {
		t.Errorf("version = %d, want 1", in.Version)
	}
	if len(in.Stages) != 4 {
		t.Errorf("snapshot has %d stages, want 4", len(in.Stages))
	}
	if len(in.History) != 1 {
		t.Fatalf("history has %d entries, want 1", len(in.History))
	}
	if first := in.History[0]; !first.From.IsNil() || first.To != p.backlog.ID || first.ActorID != "alice" {
		t.Errorf("first history entry = %+v, want nil→%s by alice", first, p.backlog.ID)
	}

	// Start persists; the store copy must match.
	stored, err := e.GetInstance(ctx, in.ID)
	if err != nil {
		t.Fatalf("GetInstance: %v", err)
	}
	if stored.CurrentStageID != p.backlog.ID {
		t.Errorf("stored current stage = %s, want %s", stored.CurrentStageID, p.backlog.ID)
	}
}

func TestStartInactiveDefinition(t *testing.T) {
	t.Parallel()
	s := memory.New()
	p := newPipeline(t, s)
	e := New(s, s)
	ctx := context.Background()

	p.def.IsActive = false
	if err := s.UpdateDefinition(ctx, p.def); err != nil {
		t.Fatalf("UpdateDefinition: %v", err)
	}

	if _, err := e.Start(ctx, p.def.ID, "task-1", "alice"); !errors.Is(err, stageflow.ErrDefinitionInactive) {
		t.Errorf("error = %v, want ErrDefinitionInactive", err)
	}
}

func TestStartUnknownDefinition(t *testing.T) {
	t.Parallel()
	s := memory.New()
	e := New(s, s)

	if _, err := e.Start(context.Background(), id.NewWorkflowID(), "task-1", "alice"); !errors.Is(err, stageflow.ErrDefinitionNotFound) {
		t.Errorf("error = %v, want ErrDefinitionNotFound", err)
	}
}

func TestStartBornCompleted(t *testing.T) {
	t.Parallel()
	s := memory.New()
	e := New(s, s)
	ctx := context.Background()

	only := graph.Stage{ID: id.NewStageID(), Name: "Done", IsStart: true, IsTerminal: true}
	def := &definition.Definition{
		Entity:   stageflow.NewEntity(),
		ID:       id.NewWorkflowID(),
		Name:     "Single Stage",
		Stages:   []graph.Stage{only},
		IsActive: true,
	}
	if err := s.CreateDefinition(ctx, def); err != nil {
		t.Fatalf("CreateDefinition: %v", err)
	}

	in, err := e.Start(ctx, def.ID, "task-1", "alice")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !in.Completed() {
		t.Error("instance on a terminal start stage should be born completed")
	}
	if in.CompletedAt == nil {
		t.Error("CompletedAt not set")
	}
}

// ──────────────────────────────────────────────────
// Advance
// ──────────────────────────────────────────────────

func TestAdvanceToCompletion(t *testing.T) {
	t.Parallel()
	s := memory.New()
	p := newPipeline(t, s)
	e := New(s, s)
	ctx := context.Background()

	in, err := e.Start(ctx, p.def.ID, "task-1", "alice")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	steps := []struct {
		to    graph.Stage
		actor string
	}{
		{p.inProgress, "alice"},
		{p.review, "alice"},
		{p.inProgress, "bob"}, // sent back from review
		{p.review, "alice"},
		{p.done, "bob"},
	}

	for _, step := range steps {
		if in, err = e.Advance(ctx, in.ID, step.to.ID, step.actor); err != nil {
			t.Fatalf("Advance to %s: %v", step.to.Name, err)
		}
		if in.CurrentStageID != step.to.ID {
			t.Fatalf("current stage = %s, want %s", in.CurrentStageID, step.to.ID)
		}
	}

	if !in.Completed() {
		t.Error("instance should be completed after reaching Done")
	}
	if in.CompletedAt == nil {
		t.Error("CompletedAt not set")
	}
	if got := len(in.History); got != len(steps)+1 {
		t.Errorf("history has %d entries, want %d", got, len(steps)+1)
	}
	// Each transition bumps the version exactly once.
	if in.Version != len(steps)+1 {
		t.Errorf("version = %d, want %d", in.Version, len(steps)+1)
	}

	last := in.History[len(in.History)-1]
	if last.From != p.review.ID || last.To != p.done.ID || last.ActorID != "bob" {
		t.Errorf("last history entry = %+v, want %s→%s by bob", last, p.review.ID, p.done.ID)
	}
}

func TestAdvanceRejectsIllegalTransition(t *testing.T) {
	t.Parallel()
	s := memory.New()
	p := newPipeline(t, s)
	e := New(s, s)
	ctx := context.Background()

	in, err := e.Start(ctx, p.def.ID, "task-1", "alice")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	// Backlog → Done skips ahead; the edge does not exist.
	if _, err := e.Advance(ctx, in.ID, p.done.ID, "alice"); !errors.Is(err, stageflow.ErrInvalidTransition) {
		t.Fatalf("error = %v, want ErrInvalidTransition", err)
	}

	// The rejection must not have mutated anything.
	stored, err := e.GetInstance(ctx, in.ID)
	if err != nil {
		t.Fatalf("GetInstance: %v", err)
	}
	if stored.CurrentStageID != p.backlog.ID {
		t.Errorf("current stage moved to %s after a rejected advance", stored.CurrentStageID)
	}
	if len(stored.History) != 1 {
		t.Errorf("history grew to %d entries after a rejected advance", len(stored.History))
	}
	if stored.Version != 1 {
		t.Errorf("version = %d after a rejected advance, want 1", stored.Version)
	}
}

func TestAdvanceUnknownStage(t *testing.T) {
	t.Parallel()
	s := memory.New()
	p := newPipeline(t, s)
	e := New(s, s)
	ctx := context.Background()

	in, err := e.Start(ctx, p.def.ID, "task-1", "alice")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	if _, err := e.Advance(ctx, in.ID, id.NewStageID(), "alice"); !errors.Is(err, stageflow.ErrStageNotFound) {
		t.Errorf("error = %v, want ErrStageNotFound", err)
	}
}

func TestAdvanceCompletedInstance(t *testing.T) {
	t.Parallel()
	s := memory.New()
	p := newPipeline(t, s)
	e := New(s, s)
	ctx := context.Background()

	in, err := e.Start(ctx, p.def.ID, "task-1", "alice")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	for _, next := range []id.StageID{p.inProgress.ID, p.review.ID, p.done.ID} {
		if in, err = e.Advance(ctx, in.ID, next, "alice"); err != nil {
			t.Fatalf("Advance: %v", err)
		}
	}

	if _, err := e.Advance(ctx, in.ID, p.inProgress.ID, "alice"); !errors.Is(err, stageflow.ErrInstanceCompleted) {
		t.Errorf("error = %v, want ErrInstanceCompleted", err)
	}
}

// ──────────────────────────────────────────────────
// Snapshot isolation
// ──────────────────────────────────────────────────

func TestAdvanceUsesSnapshotNotLiveDefinition(t *testing.T) {
	t.Parallel()
	s := memory.New()
	p := newPipeline(t, s)
	e := New(s, s)
	ctx := context.Background()

	in, err := e.Start(ctx, p.def.ID, "task-1", "alice")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	// Rewire the live definition so Backlog can no longer reach
	// In Progress. The running instance holds its own snapshot and must
	// not notice.
	g := p.def.Graph()
	g.SetTransitions(p.backlog.ID, []id.StageID{p.done.ID})
	p.def.Stages = g.Stages()
	if err := s.UpdateDefinition(ctx, p.def); err != nil {
		t.Fatalf("UpdateDefinition: %v", err)
	}

	if _, err := e.Advance(ctx, in.ID, p.inProgress.ID, "alice"); err != nil {
		t.Errorf("Advance against snapshot: %v", err)
	}
	if _, err := e.Advance(ctx, in.ID, p.done.ID, "alice"); !errors.Is(err, stageflow.ErrInvalidTransition) {
		t.Errorf("live definition's new edge leaked into the snapshot: %v", err)
	}
}

// ──────────────────────────────────────────────────
// LegalNextStages
// ──────────────────────────────────────────────────

func TestLegalNextStages(t *testing.T) {
	t.Parallel()
	s := memory.New()
	p := newPipeline(t, s)
	e := New(s, s)
	ctx := context.Background()

	in, err := e.Start(ctx, p.def.ID, "task-1", "alice")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	next, err := e.LegalNextStages(ctx, in.ID)
	if err != nil {
		t.Fatalf("LegalNextStages: %v", err)
	}
	if len(next) != 1 || next[0].ID != p.inProgress.ID {
		t.Fatalf("from Backlog got %d stages, want exactly In Progress", len(next))
	}

	// Every advertised stage must be accepted by Advance.
	if _, err := e.Advance(ctx, in.ID, next[0].ID, "alice"); err != nil {
		t.Fatalf("Advance to advertised stage: %v", err)
	}
	if in, err = e.Advance(ctx, in.ID, p.review.ID, "alice"); err != nil {
		t.Fatalf("Advance: %v", err)
	}

	next, err = e.LegalNextStages(ctx, in.ID)
	if err != nil {
		t.Fatalf("LegalNextStages: %v", err)
	}
	if len(next) != 2 {
		t.Fatalf("from Review got %d stages, want 2", len(next))
	}

	if in, err = e.Advance(ctx, in.ID, p.done.ID, "alice"); err != nil {
		t.Fatalf("Advance: %v", err)
	}
	next, err = e.LegalNextStages(ctx, in.ID)
	if err != nil {
		t.Fatalf("LegalNextStages on completed: %v", err)
	}
	if len(next) != 0 {
		t.Errorf("completed instance advertises %d stages, want 0", len(next))
	}
}

// ──────────────────────────────────────────────────
// Concurrency
// ──────────────────────────────────────────────────

func TestConcurrentAdvanceSingleWinner(t *testing.T) {
	t.Parallel()
	s := memory.New()
	p := newPipeline(t, s)
	e := New(s, s)
	ctx := context.Background()

	in, err := e.Start(ctx, p.def.ID, "task-1", "alice")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	const racers = 16
	var (
		mu     sync.Mutex
		wins   int
		losses int
	)

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < racers; i++ {
		g.Go(func() error {
			_, err := e.Advance(gctx, in.ID, p.inProgress.ID, "racer")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, stageflow.ErrInvalidTransition), errors.Is(err, stageflow.ErrStaleInstance):
				losses++
			default:
				return err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("unexpected advance error: %v", err)
	}

	if wins != 1 {
		t.Errorf("wins = %d, want exactly 1", wins)
	}
	if losses != racers-1 {
		t.Errorf("losses = %d, want %d", losses, racers-1)
	}

	stored, err := e.GetInstance(ctx, in.ID)
	if err != nil {
		t.Fatalf("GetInstance: %v", err)
	}
	if len(stored.History) != 2 {
		t.Errorf("history has %d entries after the race, want 2", len(stored.History))
	}
	if stored.CurrentStageID != p.inProgress.ID {
		t.Errorf("current stage = %s, want %s", stored.CurrentStageID, p.inProgress.ID)
	}
}

func TestStaleWriteRejectedByStore(t *testing.T) {
	t.Parallel()
	s := memory.New()
	p := newPipeline(t, s)
	e := New(s, s)
	ctx := context.Background()

	in, err := e.Start(ctx, p.def.ID, "task-1", "alice")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	// Simulate a second process writing first: bump the stored version
	// behind the engine's back, then write with the old one.
	other, err := s.GetInstance(ctx, in.ID)
	if err != nil {
		t.Fatalf("GetInstance: %v", err)
	}
	if err := s.UpdateInstance(ctx, other); err != nil {
		t.Fatalf("UpdateInstance: %v", err)
	}

	if err := s.UpdateInstance(ctx, in); !errors.Is(err, stageflow.ErrStaleInstance) {
		t.Errorf("error = %v, want ErrStaleInstance", err)
	}
}

// ──────────────────────────────────────────────────
// Extensions and middleware
// ──────────────────────────────────────────────────

// recorder captures lifecycle events for assertions.
type recorder struct {
	mu        sync.Mutex
	started   int
	advanced  []instance.HistoryEntry
	completed int
	elapsed   time.Duration
	shutdown  bool
}

func (r *recorder) Name() string { return "recorder" }

func (r *recorder) OnInstanceStarted(_ context.Context, _ *instance.Instance) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started++
	return nil
}

func (r *recorder) OnStageAdvanced(_ context.Context, _ *instance.Instance, entry instance.HistoryEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.advanced = append(r.advanced, entry)
	return nil
}

func (r *recorder) OnInstanceCompleted(_ context.Context, _ *instance.Instance, elapsed time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.completed++
	r.elapsed = elapsed
	return nil
}

func (r *recorder) OnShutdown(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.shutdown = true
	return nil
}

func TestExtensionHooks(t *testing.T) {
	t.Parallel()
	s := memory.New()
	p := newPipeline(t, s)
	rec := &recorder{}
	e := New(s, s, WithExtension(rec))
	ctx := context.Background()

	in, err := e.Start(ctx, p.def.ID, "task-1", "alice")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	for _, next := range []id.StageID{p.inProgress.ID, p.review.ID, p.done.ID} {
		if in, err = e.Advance(ctx, in.ID, next, "alice"); err != nil {
			t.Fatalf("Advance: %v", err)
		}
	}
	e.Shutdown(ctx)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.started != 1 {
		t.Errorf("started hooks = %d, want 1", rec.started)
	}
	if len(rec.advanced) != 3 {
		t.Errorf("advanced hooks = %d, want 3", len(rec.advanced))
	}
	if rec.completed != 1 {
		t.Errorf("completed hooks = %d, want 1", rec.completed)
	}
	if rec.elapsed < 0 {
		t.Errorf("elapsed = %v, want non-negative", rec.elapsed)
	}
	if !rec.shutdown {
		t.Error("shutdown hook not called")
	}
}

func TestMiddlewareCanBlockTransition(t *testing.T) {
	t.Parallel()
	s := memory.New()
	p := newPipeline(t, s)

	errDenied := errors.New("transition denied")
	deny := func(ctx context.Context, t *instance.Transition, next mw.Handler) error {
		return errDenied
	}
	e := New(s, s, WithMiddleware(deny))
	ctx := context.Background()

	in, err := e.Start(ctx, p.def.ID, "task-1", "alice")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	if _, err := e.Advance(ctx, in.ID, p.inProgress.ID, "alice"); !errors.Is(err, errDenied) {
		t.Fatalf("error = %v, want middleware denial", err)
	}

	stored, err := e.GetInstance(ctx, in.ID)
	if err != nil {
		t.Fatalf("GetInstance: %v", err)
	}
	if stored.CurrentStageID != p.backlog.ID || len(stored.History) != 1 {
		t.Error("blocked transition must not persist any change")
	}
}

func TestMiddlewareSeesTransition(t *testing.T) {
	t.Parallel()
	s := memory.New()
	p := newPipeline(t, s)

	var seen *instance.Transition
	spy := func(ctx context.Context, t *instance.Transition, next mw.Handler) error {
		seen = t
		return next(ctx)
	}
	e := New(s, s, WithMiddleware(spy))
	ctx := context.Background()

	in, err := e.Start(ctx, p.def.ID, "task-42", "alice")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := e.Advance(ctx, in.ID, p.inProgress.ID, "bob"); err != nil {
		t.Fatalf("Advance: %v", err)
	}

	if seen == nil {
		t.Fatal("middleware never ran")
	}
	if seen.From != p.backlog.ID || seen.To != p.inProgress.ID {
		t.Errorf("transition = %s→%s, want %s→%s", seen.From, seen.To, p.backlog.ID, p.inProgress.ID)
	}
	if seen.TaskID != "task-42" || seen.ActorID != "bob" {
		t.Errorf("transition context = %+v, want task-42 by bob", seen)
	}
	if seen.Terminal {
		t.Error("In Progress is not terminal")
	}
}
