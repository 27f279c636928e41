// Package memory implements store.Store fully in memory. Safe for
// concurrent access. Intended for unit testing and development.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/xraph/stageflow"
	"github.com/xraph/stageflow/definition"
	"github.com/xraph/stageflow/id"
	"github.com/xraph/stageflow/instance"
	"github.com/xraph/stageflow/store"
)

// Compile-time interface check.
var _ store.Store = (*Store)(nil)

// Store is a fully in-memory implementation of store.Store.
type Store struct {
	mu sync.RWMutex

	definitions map[string]*definition.Definition
	instances   map[string]*instance.Instance
}

// New returns a new empty Store.
func New() *Store {
	return &Store{
		definitions: make(map[string]*definition.Definition),
		instances:   make(map[string]*instance.Instance),
	}
}

// ──────────────────────────────────────────────────
// Lifecycle — Migrate / Ping / Close
// ──────────────────────────────────────────────────

// Migrate is a no-op for the memory store.
func (m *Store) Migrate(_ context.Context) error { return nil }

// Ping always succeeds for the memory store.
func (m *Store) Ping(_ context.Context) error { return nil }

// Close is a no-op for the memory store.
func (m *Store) Close() error { return nil }

// ──────────────────────────────────────────────────
// Definition Store
// ──────────────────────────────────────────────────

// CreateDefinition persists a new workflow definition.
func (m *Store) CreateDefinition(_ context.Context, def *definition.Definition) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := def.ID.String()
	if _, exists := m.definitions[key]; exists {
		return fmt.Errorf("stageflow/memory: definition %s already exists", key)
	}
	m.definitions[key] = copyDefinition(def)
	return nil
}

// GetDefinition retrieves a definition by ID.
func (m *Store) GetDefinition(_ context.Context, defID id.WorkflowID) (*definition.Definition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	def, ok := m.definitions[defID.String()]
	if !ok {
		return nil, stageflow.ErrDefinitionNotFound
	}
	return copyDefinition(def), nil
}

// UpdateDefinition persists changes to an existing definition.
func (m *Store) UpdateDefinition(_ context.Context, def *definition.Definition) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := def.ID.String()
	if _, ok := m.definitions[key]; !ok {
		return stageflow.ErrDefinitionNotFound
	}
	m.definitions[key] = copyDefinition(def)
	return nil
}

// DeleteDefinition removes a definition by ID.
func (m *Store) DeleteDefinition(_ context.Context, defID id.WorkflowID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := defID.String()
	if _, ok := m.definitions[key]; !ok {
		return stageflow.ErrDefinitionNotFound
	}
	delete(m.definitions, key)
	return nil
}

// ListDefinitions returns definitions matching the given options,
// ordered by creation time.
func (m *Store) ListDefinitions(_ context.Context, opts definition.ListOpts) ([]*definition.Definition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*definition.Definition, 0, len(m.definitions))
	for _, def := range m.definitions {
		if opts.BoardID != "" && def.BoardID != opts.BoardID {
			continue
		}
		if opts.ActiveOnly && !def.IsActive {
			continue
		}
		out = append(out, copyDefinition(def))
	}

	sort.Slice(out, func(i, k int) bool {
		return out[i].CreatedAt.Before(out[k].CreatedAt)
	})

	return paginate(out, opts.Offset, opts.Limit), nil
}

// ──────────────────────────────────────────────────
// Instance Store
// ──────────────────────────────────────────────────

// CreateInstance persists a new workflow instance.
func (m *Store) CreateInstance(_ context.Context, in *instance.Instance) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := in.ID.String()
	if _, exists := m.instances[key]; exists {
		return stageflow.ErrInstanceExists
	}
	m.instances[key] = copyInstance(in)
	return nil
}

// GetInstance retrieves an instance by ID.
func (m *Store) GetInstance(_ context.Context, instanceID id.InstanceID) (*instance.Instance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	in, ok := m.instances[instanceID.String()]
	if !ok {
		return nil, stageflow.ErrInstanceNotFound
	}
	return copyInstance(in), nil
}

// UpdateInstance persists changes to an existing instance under a
// version compare-and-swap: the write succeeds only if the stored
// version matches the caller's, and the version is incremented on
// success (reflected in the caller's copy).
func (m *Store) UpdateInstance(_ context.Context, in *instance.Instance) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := in.ID.String()
	stored, ok := m.instances[key]
	if !ok {
		return stageflow.ErrInstanceNotFound
	}
	if stored.Version != in.Version {
		return fmt.Errorf("%w: instance %s at version %d, caller at %d",
			stageflow.ErrStaleInstance, key, stored.Version, in.Version)
	}

	in.Version++
	m.instances[key] = copyInstance(in)
	return nil
}

// ListInstances returns instances matching the given options, ordered
// by start time.
func (m *Store) ListInstances(_ context.Context, opts instance.ListOpts) ([]*instance.Instance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*instance.Instance, 0, len(m.instances))
	for _, in := range m.instances {
		if !opts.WorkflowID.IsNil() && in.WorkflowID != opts.WorkflowID {
			continue
		}
		if opts.TaskID != "" && in.TaskID != opts.TaskID {
			continue
		}
		if opts.Status != "" && in.Status != opts.Status {
			continue
		}
		out = append(out, copyInstance(in))
	}

	sort.Slice(out, func(i, k int) bool {
		return out[i].StartedAt.Before(out[k].StartedAt)
	})

	return paginate(out, opts.Offset, opts.Limit), nil
}

// HasActiveInstances reports whether any non-completed instance
// references the given definition.
func (m *Store) HasActiveInstances(_ context.Context, workflowID id.WorkflowID) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, in := range m.instances {
		if in.WorkflowID == workflowID && in.Status != instance.StatusCompleted {
			return true, nil
		}
	}
	return false, nil
}

// ──────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────

// copyDefinition returns a deep copy so callers can mutate without
// racing with the store.
func copyDefinition(def *definition.Definition) *definition.Definition {
	cp := *def
	cp.Stages = slices.Clone(def.Stages)
	for i := range cp.Stages {
		cp.Stages[i].Transitions = slices.Clone(def.Stages[i].Transitions)
	}
	return &cp
}

// copyInstance returns a deep copy so callers can mutate without racing
// with the store.
func copyInstance(in *instance.Instance) *instance.Instance {
	cp := *in
	cp.Stages = slices.Clone(in.Stages)
	for i := range cp.Stages {
		cp.Stages[i].Transitions = slices.Clone(in.Stages[i].Transitions)
	}
	cp.History = slices.Clone(in.History)
	if in.CompletedAt != nil {
		t := *in.CompletedAt
		cp.CompletedAt = &t
	}
	return &cp
}

func paginate[T any](items []T, offset, limit int) []T {
	if offset > 0 {
		if offset >= len(items) {
			return nil
		}
		items = items[offset:]
	}
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
