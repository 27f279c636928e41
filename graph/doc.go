// Package graph defines the stage graph behind a workflow definition:
// the Stage type, the editable Graph container, and the structural
// validator that gates persistence.
//
// A Graph is an editing surface, not a guardian: AddStage and
// SetTransitions accept intermediate states that violate the structural
// rules, because an interactive editor passes through such states
// constantly. Validate is the single, explicit gate; a graph with zero
// violations satisfies every invariant the engine relies on.
package graph
