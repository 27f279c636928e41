package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/xraph/stageflow"
	"github.com/xraph/stageflow/definition"
	"github.com/xraph/stageflow/id"
)

// CreateDefinition persists a new workflow definition.
func (s *Store) CreateDefinition(ctx context.Context, def *definition.Definition) error {
	stages, err := marshalStages(def.Stages)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO stageflow_definitions
			(id, name, description, stages, board_id, is_active, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		def.ID.String(), def.Name, def.Description, stages, def.BoardID,
		def.IsActive, def.CreatedBy, def.CreatedAt, def.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("stageflow/postgres: create definition: %w", err)
	}
	return nil
}

// GetDefinition retrieves a definition by ID.
func (s *Store) GetDefinition(ctx context.Context, defID id.WorkflowID) (*definition.Definition, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, name, description, stages, board_id, is_active, created_by, created_at, updated_at
		FROM stageflow_definitions
		WHERE id = $1`,
		defID.String(),
	)

	def, err := scanDefinition(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, stageflow.ErrDefinitionNotFound
		}
		return nil, fmt.Errorf("stageflow/postgres: get definition: %w", err)
	}
	return def, nil
}

// UpdateDefinition persists changes to an existing definition.
func (s *Store) UpdateDefinition(ctx context.Context, def *definition.Definition) error {
	stages, err := marshalStages(def.Stages)
	if err != nil {
		return err
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE stageflow_definitions
		SET name = $2, description = $3, stages = $4, board_id = $5,
		    is_active = $6, updated_at = $7
		WHERE id = $1`,
		def.ID.String(), def.Name, def.Description, stages, def.BoardID,
		def.IsActive, def.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("stageflow/postgres: update definition: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return stageflow.ErrDefinitionNotFound
	}
	return nil
}

// DeleteDefinition removes a definition by ID.
func (s *Store) DeleteDefinition(ctx context.Context, defID id.WorkflowID) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM stageflow_definitions WHERE id = $1`,
		defID.String(),
	)
	if err != nil {
		return fmt.Errorf("stageflow/postgres: delete definition: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return stageflow.ErrDefinitionNotFound
	}
	return nil
}

// ListDefinitions returns definitions matching the given options,
// ordered by creation time.
func (s *Store) ListDefinitions(ctx context.Context, opts definition.ListOpts) ([]*definition.Definition, error) {
	q := `
		SELECT id, name, description, stages, board_id, is_active, created_by, created_at, updated_at
		FROM stageflow_definitions
		WHERE 1=1`
	args := []any{}

	if opts.BoardID != "" {
		args = append(args, opts.BoardID)
		q += fmt.Sprintf(" AND board_id = $%d", len(args))
	}
	if opts.ActiveOnly {
		q += " AND is_active = TRUE"
	}

	q += " ORDER BY created_at ASC"
	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		q += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if opts.Offset > 0 {
		args = append(args, opts.Offset)
		q += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("stageflow/postgres: list definitions: %w", err)
	}
	defer rows.Close()

	var out []*definition.Definition
	for rows.Next() {
		def, scanErr := scanDefinition(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("stageflow/postgres: list definitions scan: %w", scanErr)
		}
		out = append(out, def)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("stageflow/postgres: list definitions rows: %w", err)
	}
	return out, nil
}

// scanDefinition converts one row into a Definition.
func scanDefinition(row pgx.Row) (*definition.Definition, error) {
	var (
		def       definition.Definition
		rawStages []byte
	)
	err := row.Scan(
		&def.ID, &def.Name, &def.Description, &rawStages, &def.BoardID,
		&def.IsActive, &def.CreatedBy, &def.CreatedAt, &def.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	def.Stages, err = unmarshalStages(rawStages)
	if err != nil {
		return nil, err
	}
	return &def, nil
}
