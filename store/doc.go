// Package store defines the composite persistence interface for
// Stageflow. Each subsystem (definition, instance) declares its own
// store contract; a backend implements all of them plus lifecycle.
// Memory, postgres, and redis backends ship in subdirectories.
package store
