package graph

import (
	"fmt"
	"strings"

	"github.com/xraph/stageflow/id"
)

// ViolationKind tags the structural rule a violation breaks. Kinds are
// stable strings so front-ends can switch on them without parsing
// messages.
type ViolationKind string

// Violation kinds, in the order Validate reports them.
const (
	ViolationEmptyGraph          ViolationKind = "empty_graph"
	ViolationStartCount          ViolationKind = "start_count"
	ViolationNoTerminal          ViolationKind = "no_terminal"
	ViolationTerminalTransitions ViolationKind = "terminal_transitions"
	ViolationSelfLoop            ViolationKind = "self_loop"
	ViolationDuplicateName       ViolationKind = "duplicate_name"
	ViolationDanglingTransition  ViolationKind = "dangling_transition"
)

// Violation is one structural rule failure. StageID names the offending
// stage where one exists; graph-level violations leave it nil.
type Violation struct {
	Kind    ViolationKind `json:"kind"`
	StageID id.StageID    `json:"stage_id,omitempty"`
	Message string        `json:"message"`
}

// ValidationError wraps a non-empty violation list as an error. It is
// returned by the definition service when a save is rejected; the UI is
// expected to render the Violations list verbatim as a checklist.
type ValidationError struct {
	Violations []Violation
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		msgs[i] = v.Message
	}
	return "stageflow: invalid stage graph: " + strings.Join(msgs, "; ")
}

// Validate runs every structural rule over the graph and returns the
// violations found, in a stable order: empty graph (short-circuits),
// start count, missing terminal, terminal with transitions, self-loops,
// duplicate names, dangling references. An empty result means the graph
// satisfies every invariant the engine relies on.
//
// Validate is a pure function with no side effects; it is cheap enough
// to run on every keystroke of an interactive editor.
func Validate(g *Graph) []Violation {
	if g == nil || len(g.stages) == 0 {
		return []Violation{{
			Kind:    ViolationEmptyGraph,
			Message: "at least one stage required",
		}}
	}

	var out []Violation

	starts := 0
	for i := range g.stages {
		if g.stages[i].IsStart {
			starts++
		}
	}
	if starts != 1 {
		out = append(out, Violation{
			Kind:    ViolationStartCount,
			Message: fmt.Sprintf("exactly one start stage required, found %d", starts),
		})
	}

	terminals := 0
	for i := range g.stages {
		if g.stages[i].IsTerminal {
			terminals++
		}
	}
	if terminals == 0 {
		out = append(out, Violation{
			Kind:    ViolationNoTerminal,
			Message: "at least one terminal stage required",
		})
	}

	for i := range g.stages {
		s := &g.stages[i]
		if s.IsTerminal && len(s.Transitions) > 0 {
			out = append(out, Violation{
				Kind:    ViolationTerminalTransitions,
				StageID: s.ID,
				Message: fmt.Sprintf("terminal stage %q must not have outgoing transitions", s.Name),
			})
		}
	}

	for i := range g.stages {
		s := &g.stages[i]
		if s.CanTransitionTo(s.ID) {
			out = append(out, Violation{
				Kind:    ViolationSelfLoop,
				StageID: s.ID,
				Message: fmt.Sprintf("stage %q transitions to itself", s.Name),
			})
		}
	}

	seen := make(map[string]string, len(g.stages)) // normalized name -> first original
	for i := range g.stages {
		s := &g.stages[i]
		norm := strings.ToLower(strings.TrimSpace(s.Name))
		if first, dup := seen[norm]; dup {
			out = append(out, Violation{
				Kind:    ViolationDuplicateName,
				StageID: s.ID,
				Message: fmt.Sprintf("stage name %q duplicates %q", s.Name, first),
			})
			continue
		}
		seen[norm] = s.Name
	}

	known := make(map[id.StageID]struct{}, len(g.stages))
	for i := range g.stages {
		known[g.stages[i].ID] = struct{}{}
	}
	for i := range g.stages {
		s := &g.stages[i]
		for _, t := range s.Transitions {
			if _, ok := known[t]; !ok {
				out = append(out, Violation{
					Kind:    ViolationDanglingTransition,
					StageID: s.ID,
					Message: fmt.Sprintf("stage %q transitions to unknown stage %s", s.Name, t),
				})
			}
		}
	}

	return out
}
