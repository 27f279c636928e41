package definition

import (
	"github.com/xraph/stageflow"
	"github.com/xraph/stageflow/graph"
	"github.com/xraph/stageflow/id"
)

// Definition is a named, reusable workflow template: a validated stage
// graph plus metadata. Instances bind to a definition by ID but carry
// their own snapshot of its graph.
type Definition struct {
	stageflow.Entity

	ID          id.WorkflowID `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	Stages      []graph.Stage `json:"stages"`
	BoardID     string        `json:"board_id,omitempty"`
	IsActive    bool          `json:"is_active"`
	CreatedBy   string        `json:"created_by,omitempty"`
}

// Graph builds an editable Graph from the definition's stage set.
// The returned graph is a copy; edits do not touch the definition.
func (d *Definition) Graph() *graph.Graph {
	return graph.New(d.Stages...)
}
