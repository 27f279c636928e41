package graph

import (
	"slices"

	"github.com/xraph/stageflow/id"
)

// Stage is a single node in a workflow's state graph.
type Stage struct {
	// ID is stable across edits; renaming or reordering a stage never
	// changes it.
	ID id.StageID `json:"id"`

	// Name is the display name, unique within a graph (case-insensitive,
	// trimmed).
	Name string `json:"name"`

	// Order controls display and iteration order only. It has no
	// semantic effect on transitions.
	Order int `json:"order"`

	// Transitions is the set of stage IDs directly reachable from this
	// stage. Terminal stages have none.
	Transitions []id.StageID `json:"transitions"`

	// IsStart marks the single entry stage of the graph.
	IsStart bool `json:"is_start"`

	// IsTerminal marks an end stage; reaching one completes an instance.
	IsTerminal bool `json:"is_terminal"`

	// StatusMapping is an optional external status label (e.g. a task
	// board column) carried through verbatim. The engine never
	// interprets it.
	StatusMapping string `json:"status_mapping,omitempty"`
}

// CanTransitionTo reports whether target is in this stage's outgoing set.
func (s *Stage) CanTransitionTo(target id.StageID) bool {
	return slices.Contains(s.Transitions, target)
}

// clone returns a deep copy of the stage.
func (s *Stage) clone() Stage {
	cp := *s
	cp.Transitions = slices.Clone(s.Transitions)
	return cp
}

// Graph holds an ordered set of stages and supports the edit operations
// an interactive builder needs. It is a plain value type: not safe for
// concurrent mutation, no I/O.
type Graph struct {
	stages []Stage
}

// New creates a Graph from the given stages, preserving their order.
// Stages are copied; the caller's slice is not retained.
func New(stages ...Stage) *Graph {
	g := &Graph{stages: make([]Stage, 0, len(stages))}
	for i := range stages {
		g.AddStage(stages[i])
	}
	return g
}

// Len returns the number of stages in the graph.
func (g *Graph) Len() int { return len(g.stages) }

// AddStage appends a stage to the graph. It performs no structural
// validation; Validate is the explicit gate before persistence.
func (g *Graph) AddStage(s Stage) {
	g.stages = append(g.stages, s.clone())
}

// RemoveStage deletes the stage with the given ID and strips that ID
// from every remaining stage's Transitions set, so a removal can never
// leave a dangling reference behind. Returns false if no such stage
// exists.
func (g *Graph) RemoveStage(stageID id.StageID) bool {
	idx := g.index(stageID)
	if idx < 0 {
		return false
	}

	g.stages = slices.Delete(g.stages, idx, idx+1)
	for i := range g.stages {
		g.stages[i].Transitions = slices.DeleteFunc(g.stages[i].Transitions, func(t id.StageID) bool {
			return t == stageID
		})
	}
	return true
}

// Reorder moves the stage to newIndex in the display order and renumbers
// every stage's Order field to match. It has no semantic effect.
// Returns false if the stage does not exist; newIndex is clamped to the
// valid range.
func (g *Graph) Reorder(stageID id.StageID, newIndex int) bool {
	idx := g.index(stageID)
	if idx < 0 {
		return false
	}

	if newIndex < 0 {
		newIndex = 0
	}
	if newIndex >= len(g.stages) {
		newIndex = len(g.stages) - 1
	}

	s := g.stages[idx]
	g.stages = slices.Delete(g.stages, idx, idx+1)
	g.stages = slices.Insert(g.stages, newIndex, s)

	for i := range g.stages {
		g.stages[i].Order = i
	}
	return true
}

// SetTransitions replaces the outgoing edge set of one stage. The target
// set is accepted as-is; self-loops and dangling references are caught
// by Validate, not here. Returns false if the stage does not exist.
func (g *Graph) SetTransitions(stageID id.StageID, targets []id.StageID) bool {
	idx := g.index(stageID)
	if idx < 0 {
		return false
	}

	g.stages[idx].Transitions = slices.Clone(targets)
	return true
}

// Stage returns a copy of the stage with the given ID.
func (g *Graph) Stage(stageID id.StageID) (Stage, bool) {
	idx := g.index(stageID)
	if idx < 0 {
		return Stage{}, false
	}
	return g.stages[idx].clone(), true
}

// Stages returns a deep copy of all stages in graph order.
func (g *Graph) Stages() []Stage {
	out := make([]Stage, len(g.stages))
	for i := range g.stages {
		out[i] = g.stages[i].clone()
	}
	return out
}

// Start returns a copy of the stage flagged as start. If no stage
// carries the flag (legacy graphs persisted before the flag existed),
// it falls back to the derived start without mutating the graph; see
// Normalize.
func (g *Graph) Start() (Stage, bool) {
	for i := range g.stages {
		if g.stages[i].IsStart {
			return g.stages[i].clone(), true
		}
	}

	if idx := g.deriveStartIndex(); idx >= 0 {
		return g.stages[idx].clone(), true
	}
	return Stage{}, false
}

// Normalize makes the start flag explicit on graphs persisted before
// IsStart existed. If no stage is flagged, the derived start (the
// unique stage with no inbound edge, else the lowest-order stage) is
// flagged in place. Graphs that already carry the flag are untouched.
func (g *Graph) Normalize() {
	for i := range g.stages {
		if g.stages[i].IsStart {
			return
		}
	}

	if idx := g.deriveStartIndex(); idx >= 0 {
		g.stages[idx].IsStart = true
	}
}

// deriveStartIndex implements the legacy start convention: the unique
// stage no other stage transitions into, else the stage with the lowest
// Order value.
func (g *Graph) deriveStartIndex() int {
	if len(g.stages) == 0 {
		return -1
	}

	inbound := make(map[id.StageID]int, len(g.stages))
	for i := range g.stages {
		for _, t := range g.stages[i].Transitions {
			inbound[t]++
		}
	}

	noInbound := -1
	for i := range g.stages {
		if inbound[g.stages[i].ID] == 0 {
			if noInbound >= 0 {
				noInbound = -1 // not unique
				break
			}
			noInbound = i
		}
	}
	if noInbound >= 0 {
		return noInbound
	}

	lowest := 0
	for i := 1; i < len(g.stages); i++ {
		if g.stages[i].Order < g.stages[lowest].Order {
			lowest = i
		}
	}
	return lowest
}

// index returns the position of the stage with the given ID, or -1.
func (g *Graph) index(stageID id.StageID) int {
	return slices.IndexFunc(g.stages, func(s Stage) bool { return s.ID == stageID })
}
