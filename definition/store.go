package definition

import (
	"context"

	"github.com/xraph/stageflow/id"
)

// ListOpts controls filtering and pagination for definition list queries.
type ListOpts struct {
	// BoardID filters by owning board. Empty means all boards.
	BoardID string
	// ActiveOnly limits results to active definitions.
	ActiveOnly bool
	// Limit is the maximum number of definitions to return. Zero means
	// no limit.
	Limit int
	// Offset is the number of definitions to skip.
	Offset int
}

// Store defines the persistence contract for workflow definitions.
type Store interface {
	// CreateDefinition persists a new definition.
	CreateDefinition(ctx context.Context, def *Definition) error

	// GetDefinition retrieves a definition by ID. A missing definition
	// is stageflow.ErrDefinitionNotFound, never a default.
	GetDefinition(ctx context.Context, defID id.WorkflowID) (*Definition, error)

	// UpdateDefinition persists changes to an existing definition.
	UpdateDefinition(ctx context.Context, def *Definition) error

	// DeleteDefinition removes a definition by ID.
	DeleteDefinition(ctx context.Context, defID id.WorkflowID) error

	// ListDefinitions returns definitions matching the given options,
	// ordered by creation time.
	ListDefinitions(ctx context.Context, opts ListOpts) ([]*Definition, error)
}
