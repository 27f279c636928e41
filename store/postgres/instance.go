package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/xraph/stageflow"
	"github.com/xraph/stageflow/id"
	"github.com/xraph/stageflow/instance"
)

// CreateInstance persists a new workflow instance.
func (s *Store) CreateInstance(ctx context.Context, in *instance.Instance) error {
	stages, err := marshalStages(in.Stages)
	if err != nil {
		return err
	}
	history, err := marshalHistory(in.History)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO stageflow_instances
			(id, workflow_id, task_id, current_stage_id, status, stages, history,
			 started_at, completed_at, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		in.ID.String(), in.WorkflowID.String(), in.TaskID, in.CurrentStageID.String(),
		string(in.Status), stages, history, in.StartedAt, in.CompletedAt,
		in.Version, in.CreatedAt, in.UpdatedAt,
	)
	if err != nil {
		if isDuplicateKey(err) {
			return stageflow.ErrInstanceExists
		}
		return fmt.Errorf("stageflow/postgres: create instance: %w", err)
	}
	return nil
}

// GetInstance retrieves an instance by ID.
func (s *Store) GetInstance(ctx context.Context, instanceID id.InstanceID) (*instance.Instance, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, workflow_id, task_id, current_stage_id, status, stages, history,
		       started_at, completed_at, version, created_at, updated_at
		FROM stageflow_instances
		WHERE id = $1`,
		instanceID.String(),
	)

	in, err := scanInstance(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, stageflow.ErrInstanceNotFound
		}
		return nil, fmt.Errorf("stageflow/postgres: get instance: %w", err)
	}
	return in, nil
}

// UpdateInstance persists changes to an existing instance under a
// version guard: the UPDATE matches only the caller's version, so a
// concurrent writer's bump makes this write affect zero rows.
func (s *Store) UpdateInstance(ctx context.Context, in *instance.Instance) error {
	stages, err := marshalStages(in.Stages)
	if err != nil {
		return err
	}
	history, err := marshalHistory(in.History)
	if err != nil {
		return err
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE stageflow_instances
		SET current_stage_id = $3, status = $4, stages = $5, history = $6,
		    completed_at = $7, version = version + 1, updated_at = $8
		WHERE id = $1 AND version = $2`,
		in.ID.String(), in.Version, in.CurrentStageID.String(), string(in.Status),
		stages, history, in.CompletedAt, in.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("stageflow/postgres: update instance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Distinguish a missing row from a stale version.
		var exists bool
		checkErr := s.pool.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM stageflow_instances WHERE id = $1)`,
			in.ID.String(),
		).Scan(&exists)
		if checkErr != nil {
			return fmt.Errorf("stageflow/postgres: update instance check: %w", checkErr)
		}
		if !exists {
			return stageflow.ErrInstanceNotFound
		}
		return fmt.Errorf("%w: instance %s, caller at version %d",
			stageflow.ErrStaleInstance, in.ID, in.Version)
	}

	in.Version++
	return nil
}

// ListInstances returns instances matching the given options, ordered
// by start time.
func (s *Store) ListInstances(ctx context.Context, opts instance.ListOpts) ([]*instance.Instance, error) {
	q := `
		SELECT id, workflow_id, task_id, current_stage_id, status, stages, history,
		       started_at, completed_at, version, created_at, updated_at
		FROM stageflow_instances
		WHERE 1=1`
	args := []any{}

	if !opts.WorkflowID.IsNil() {
		args = append(args, opts.WorkflowID.String())
		q += fmt.Sprintf(" AND workflow_id = $%d", len(args))
	}
	if opts.TaskID != "" {
		args = append(args, opts.TaskID)
		q += fmt.Sprintf(" AND task_id = $%d", len(args))
	}
	if opts.Status != "" {
		args = append(args, string(opts.Status))
		q += fmt.Sprintf(" AND status = $%d", len(args))
	}

	q += " ORDER BY started_at ASC"
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
		return nil, fmt.Errorf("stageflow/postgres: list instances: %w", err)
	}
	defer rows.Close()

	var out []*instance.Instance
	for rows.Next() {
		in, scanErr := scanInstance(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("stageflow/postgres: list instances scan: %w", scanErr)
		}
		out = append(out, in)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("stageflow/postgres: list instances rows: %w", err)
	}
	return out, nil
}

// HasActiveInstances reports whether any non-completed instance
// references the given definition.
func (s *Store) HasActiveInstances(ctx context.Context, workflowID id.WorkflowID) (bool, error) {
	var active bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM stageflow_instances
			WHERE workflow_id = $1 AND status <> $2
		)`,
		workflowID.String(), string(instance.StatusCompleted),
	).Scan(&active)
	if err != nil {
		return false, fmt.Errorf("stageflow/postgres: has active instances: %w", err)
	}
	return active, nil
}

// scanInstance converts one row into an Instance.
func scanInstance(row pgx.Row) (*instance.Instance, error) {
	var (
		in          instance.Instance
		status      string
		rawStages   []byte
		rawHistory  []byte
		completedAt *time.Time
	)
	err := row.Scan(
		&in.ID, &in.WorkflowID, &in.TaskID, &in.CurrentStageID, &status,
		&rawStages, &rawHistory, &in.StartedAt, &completedAt, &in.Version,
		&in.CreatedAt, &in.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	in.Status = instance.Status(status)
	in.CompletedAt = completedAt
	in.Stages, err = unmarshalStages(rawStages)
	if err != nil {
		return nil, err
	}
	in.History, err = unmarshalHistory(rawHistory)
	if err != nil {
		return nil, err
	}
	return &in, nil
}

// isDuplicateKey reports whether err is a unique constraint violation.
func isDuplicateKey(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
