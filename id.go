package stageflow

import "github.com/xraph/stageflow/id"

// ID is the primary identifier type for all Stageflow entities.
type ID = id.ID

// Prefix identifies the entity type encoded in a TypeID.
type Prefix = id.Prefix
