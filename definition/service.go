package definition

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/xraph/stageflow"
	"github.com/xraph/stageflow/graph"
	"github.com/xraph/stageflow/id"
)

// ActiveChecker reports whether any non-completed instance still
// references a definition. The instance store satisfies it; the
// indirection keeps this package from importing the instance package.
type ActiveChecker interface {
	HasActiveInstances(ctx context.Context, workflowID id.WorkflowID) (bool, error)
}

// Emitter receives definition lifecycle events. ext.Registry satisfies
// it through an adapter at wiring time; the default is a no-op.
type Emitter interface {
	EmitDefinitionSaved(ctx context.Context, def *Definition)
	EmitDefinitionDeleted(ctx context.Context, defID id.WorkflowID)
}

type noopEmitter struct{}

func (noopEmitter) EmitDefinitionSaved(context.Context, *Definition)     {}
func (noopEmitter) EmitDefinitionDeleted(context.Context, id.WorkflowID) {}

// Service is the only write path for workflow definitions. Every save
// runs the stage graph through the validator first; a graph with any
// violation is rejected with *graph.ValidationError and nothing is
// persisted.
type Service struct {
	store   Store
	refs    ActiveChecker
	emitter Emitter
	logger  *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the structured logger for the service.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithEmitter sets the lifecycle event emitter for the service.
func WithEmitter(e Emitter) Option {
	return func(s *Service) { s.emitter = e }
}

// NewService creates a definition service backed by the given store.
// refs is consulted before deletes; pass the instance store.
func NewService(store Store, refs ActiveChecker, opts ...Option) *Service {
	s := &Service{
		store:   store,
		refs:    refs,
		emitter: noopEmitter{},
		logger:  slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// CreateParams carries the fields for a new definition.
type CreateParams struct {
	Name        string
	Description string
	Stages      []graph.Stage
	BoardID     string
	CreatedBy   string
}

// Create validates the stage graph and persists a new definition.
// New definitions start active.
func (s *Service) Create(ctx context.Context, p CreateParams) (*Definition, error) {
	if strings.TrimSpace(p.Name) == "" {
		return nil, fmt.Errorf("definition: name is required")
	}

	g := graph.New(p.Stages...)
	g.Normalize()
	if vs := graph.Validate(g); len(vs) > 0 {
		return nil, &graph.ValidationError{Violations: vs}
	}

	def := &Definition{
		Entity:      stageflow.NewEntity(),
		ID:          id.NewWorkflowID(),
		Name:        p.Name,
		Description: p.Description,
		Stages:      g.Stages(),
		BoardID:     p.BoardID,
		IsActive:    true,
		CreatedBy:   p.CreatedBy,
	}

	if err := s.store.CreateDefinition(ctx, def); err != nil {
		return nil, err
	}

	s.logger.Info("definition created",
		slog.String("definition_id", def.ID.String()),
		slog.String("name", def.Name),
		slog.Int("stages", len(def.Stages)),
	)
	s.emitter.EmitDefinitionSaved(ctx, def)
	return def, nil
}

// UpdateParams carries a partial update. Nil fields keep the stored
// value; Stages replaces the whole stage set when non-nil.
type UpdateParams struct {
	Name        *string
	Description *string
	Stages      []graph.Stage
	BoardID     *string
	IsActive    *bool
}

// Update merges the partial update into the stored definition,
// re-validates the merged stage set, and persists atomically. An update
// that would leave the graph invalid is rejected with no partial write.
func (s *Service) Update(ctx context.Context, defID id.WorkflowID, p UpdateParams) (*Definition, error) {
	def, err := s.store.GetDefinition(ctx, defID)
	if err != nil {
		return nil, err
	}

	if p.Name != nil {
		if strings.TrimSpace(*p.Name) == "" {
			return nil, fmt.Errorf("definition: name is required")
		}
		def.Name = *p.Name
	}
	if p.Description != nil {
		def.Description = *p.Description
	}
	if p.BoardID != nil {
		def.BoardID = *p.BoardID
	}
	if p.IsActive != nil {
		def.IsActive = *p.IsActive
	}
	if p.Stages != nil {
		g := graph.New(p.Stages...)
		g.Normalize()
		if vs := graph.Validate(g); len(vs) > 0 {
			return nil, &graph.ValidationError{Violations: vs}
		}
		def.Stages = g.Stages()
	}

	def.Touch()
	if err := s.store.UpdateDefinition(ctx, def); err != nil {
		return nil, err
	}

	s.logger.Info("definition updated",
		slog.String("definition_id", def.ID.String()),
		slog.String("name", def.Name),
	)
	s.emitter.EmitDefinitionSaved(ctx, def)
	return def, nil
}

// Delete removes a definition. It fails with
// stageflow.ErrDefinitionInUse while any non-completed instance still
// references it.
func (s *Service) Delete(ctx context.Context, defID id.WorkflowID) error {
	active, err := s.refs.HasActiveInstances(ctx, defID)
	if err != nil {
		return err
	}
	if active {
		return fmt.Errorf("%w: %s", stageflow.ErrDefinitionInUse, defID)
	}

	if err := s.store.DeleteDefinition(ctx, defID); err != nil {
		return err
	}

	s.logger.Info("definition deleted", slog.String("definition_id", defID.String()))
	s.emitter.EmitDefinitionDeleted(ctx, defID)
	return nil
}

// Activate marks a definition as active so new instances can start
// from it.
func (s *Service) Activate(ctx context.Context, defID id.WorkflowID) (*Definition, error) {
	return s.setActive(ctx, defID, true)
}

// Deactivate marks a definition as inactive. In-flight instances keep
// running against their snapshots; only new starts are refused.
func (s *Service) Deactivate(ctx context.Context, defID id.WorkflowID) (*Definition, error) {
	return s.setActive(ctx, defID, false)
}

func (s *Service) setActive(ctx context.Context, defID id.WorkflowID, active bool) (*Definition, error) {
	def, err := s.store.GetDefinition(ctx, defID)
	if err != nil {
		return nil, err
	}
	if def.IsActive == active {
		return def, nil
	}

	def.IsActive = active
	def.Touch()
	if err := s.store.UpdateDefinition(ctx, def); err != nil {
		return nil, err
	}

	s.logger.Info("definition active flag changed",
		slog.String("definition_id", defID.String()),
		slog.Bool("is_active", active),
	)
	return def, nil
}

// Get retrieves a definition by ID.
func (s *Service) Get(ctx context.Context, defID id.WorkflowID) (*Definition, error) {
	return s.store.GetDefinition(ctx, defID)
}

// List returns definitions matching the given options.
func (s *Service) List(ctx context.Context, opts ListOpts) ([]*Definition, error) {
	return s.store.ListDefinitions(ctx, opts)
}
