package stageflow

import "errors"

var (
	// Store errors.
	ErrNoStore         = errors.New("stageflow: no store configured")
	ErrStoreClosed     = errors.New("stageflow: store closed")
	ErrMigrationFailed = errors.New("stageflow: migration failed")

	// Not found errors.
	ErrDefinitionNotFound = errors.New("stageflow: workflow definition not found")
	ErrInstanceNotFound   = errors.New("stageflow: workflow instance not found")
	ErrStageNotFound      = errors.New("stageflow: stage not found")

	// Conflict errors.
	ErrInstanceExists  = errors.New("stageflow: instance already exists")
	ErrDefinitionInUse = errors.New("stageflow: definition referenced by active instances")
	ErrStaleInstance   = errors.New("stageflow: instance modified concurrently")

	// Transition errors.
	ErrInvalidTransition = errors.New("stageflow: transition not allowed from current stage")
	ErrInstanceCompleted = errors.New("stageflow: instance already at a terminal stage")

	// State errors.
	ErrDefinitionInactive = errors.New("stageflow: definition is inactive")
)
