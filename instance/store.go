package instance

import (
	"context"

	"github.com/xraph/stageflow/id"
)

// ListOpts controls filtering and pagination for instance list queries.
type ListOpts struct {
	// WorkflowID filters by owning definition. Nil means all.
	WorkflowID id.WorkflowID
	// TaskID filters by bound work item. Empty means all.
	TaskID string
	// Status filters by lifecycle state. Empty means all states.
	Status Status
	// Limit is the maximum number of instances to return. Zero means
	// no limit.
	Limit int
	// Offset is the number of instances to skip.
	Offset int
}

// Store defines the persistence contract for workflow instances.
//
// UpdateInstance must be a compare-and-swap on Version: the write
// succeeds only if the stored version equals the caller's, and the
// stored version is incremented on success. This is what keeps the
// engine's advance atomic across processes; see the engine package.
type Store interface {
	// CreateInstance persists a new instance. A duplicate ID is
	// stageflow.ErrInstanceExists.
	CreateInstance(ctx context.Context, in *Instance) error

	// GetInstance retrieves an instance by ID.
	GetInstance(ctx context.Context, instanceID id.InstanceID) (*Instance, error)

	// UpdateInstance persists changes to an existing instance under a
	// version check. A stale version is stageflow.ErrStaleInstance; on
	// success the instance's Version reflects the stored value.
	UpdateInstance(ctx context.Context, in *Instance) error

	// ListInstances returns instances matching the given options,
	// ordered by start time.
	ListInstances(ctx context.Context, opts ListOpts) ([]*Instance, error)

	// HasActiveInstances reports whether any non-completed instance
	// references the given definition.
	HasActiveInstances(ctx context.Context, workflowID id.WorkflowID) (bool, error)
}
