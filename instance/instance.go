package instance

import (
	"time"

	"github.com/xraph/stageflow"
	"github.com/xraph/stageflow/graph"
	"github.com/xraph/stageflow/id"
)

// Status represents the lifecycle state of a workflow instance.
type Status string

const (
	// StatusActive means the instance is at a non-terminal stage.
	StatusActive Status = "active"
	// StatusCompleted means the instance reached a terminal stage.
	StatusCompleted Status = "completed"
)

// HistoryEntry is an immutable record of one transition. The first
// entry of every instance has a nil From and the start stage as To.
type HistoryEntry struct {
	From    id.StageID `json:"from"`
	To      id.StageID `json:"to"`
	At      time.Time  `json:"at"`
	ActorID string     `json:"actor_id"`
}

// Instance is one running execution of a workflow definition, bound to
// one external work item. It is mutated exclusively by the engine.
type Instance struct {
	stageflow.Entity

	ID         id.InstanceID `json:"id"`
	WorkflowID id.WorkflowID `json:"workflow_id"`

	// TaskID is the external work item this instance is bound to,
	// stored opaquely.
	TaskID string `json:"task_id"`

	CurrentStageID id.StageID `json:"current_stage_id"`
	Status         Status     `json:"status"`

	// Stages is the definition's stage graph snapshotted at start time.
	// Legal transitions are always resolved against this snapshot, never
	// against the live definition.
	Stages []graph.Stage `json:"stages"`

	// History is append-only; entries are never modified or removed.
	History []HistoryEntry `json:"history"`

	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Version is the optimistic concurrency token checked by
	// Store.UpdateInstance.
	Version int `json:"version"`
}

// Graph builds a Graph from the instance's snapshot. The result is a
// copy; edits do not touch the instance.
func (in *Instance) Graph() *graph.Graph {
	return graph.New(in.Stages...)
}

// CurrentStage resolves CurrentStageID against the snapshot.
func (in *Instance) CurrentStage() (graph.Stage, bool) {
	return in.Graph().Stage(in.CurrentStageID)
}

// Completed reports whether the instance has reached a terminal stage.
func (in *Instance) Completed() bool {
	return in.Status == StatusCompleted
}

// Transition describes one requested advance, as seen by middleware and
// lifecycle hooks.
type Transition struct {
	InstanceID id.InstanceID
	WorkflowID id.WorkflowID
	TaskID     string
	From       id.StageID
	To         id.StageID
	ActorID    string

	// Terminal is true when To is a terminal stage, i.e. this
	// transition completes the instance.
	Terminal bool
}
