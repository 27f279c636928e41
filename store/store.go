package store

import (
	"context"

	"github.com/xraph/stageflow/definition"
	"github.com/xraph/stageflow/instance"
)

// Store is the composite persistence interface: every backend
// implements the definition and instance contracts plus lifecycle.
type Store interface {
	definition.Store
	instance.Store

	// Migrate prepares the backend schema. No-op for schemaless
	// backends.
	Migrate(ctx context.Context) error

	// Ping checks backend connectivity.
	Ping(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}
