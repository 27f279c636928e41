package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	goredis "github.com/redis/go-redis/v9"

	"github.com/xraph/stageflow"
	"github.com/xraph/stageflow/id"
	"github.com/xraph/stageflow/instance"
)

// CreateInstance persists a new workflow instance.
func (s *Store) CreateInstance(ctx context.Context, in *instance.Instance) error {
	key := instanceKey(in.ID.String())

	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("stageflow/redis: create instance exists: %w", err)
	}
	if exists > 0 {
		return stageflow.ErrInstanceExists
	}

	data, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("stageflow/redis: marshal instance: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, key, data, 0)
	pipe.SAdd(ctx, instanceIDsKey, in.ID.String())
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("stageflow/redis: create instance: %w", err)
	}
	return nil
}

// GetInstance retrieves an instance by ID.
func (s *Store) GetInstance(ctx context.Context, instanceID id.InstanceID) (*instance.Instance, error) {
	return s.getInstance(ctx, instanceID.String())
}

func (s *Store) getInstance(ctx context.Context, instanceID string) (*instance.Instance, error) {
	data, err := s.client.Get(ctx, instanceKey(instanceID)).Bytes()
	if err != nil {
		if isNil(err) {
			return nil, stageflow.ErrInstanceNotFound
		}
		return nil, fmt.Errorf("stageflow/redis: get instance: %w", err)
	}

	var in instance.Instance
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, fmt.Errorf("stageflow/redis: unmarshal instance: %w", err)
	}
	return &in, nil
}

// UpdateInstance persists changes to an existing instance under a
// version compare-and-swap. The read-check-write runs inside a WATCH
// transaction: a concurrent write to the key aborts this one, and the
// stored version is compared against the caller's before the swap.
func (s *Store) UpdateInstance(ctx context.Context, in *instance.Instance) error {
	key := instanceKey(in.ID.String())

	err := s.client.Watch(ctx, func(tx *goredis.Tx) error {
		data, getErr := tx.Get(ctx, key).Bytes()
		if getErr != nil {
			if isNil(getErr) {
				return stageflow.ErrInstanceNotFound
			}
			return fmt.Errorf("stageflow/redis: update instance get: %w", getErr)
		}

		var stored instance.Instance
		if err := json.Unmarshal(data, &stored); err != nil {
			return fmt.Errorf("stageflow/redis: unmarshal instance: %w", err)
		}
		if stored.Version != in.Version {
			return fmt.Errorf("%w: instance %s at version %d, caller at %d",
				stageflow.ErrStaleInstance, in.ID, stored.Version, in.Version)
		}

		next := *in
		next.Version = in.Version + 1
		payload, err := json.Marshal(&next)
		if err != nil {
			return fmt.Errorf("stageflow/redis: marshal instance: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.Set(ctx, key, payload, 0)
			return nil
		})
		return err
	}, key)

	if err != nil {
		if errors.Is(err, goredis.TxFailedErr) {
			return fmt.Errorf("%w: instance %s", stageflow.ErrStaleInstance, in.ID)
		}
		return err
	}

	in.Version++
	return nil
}

// ListInstances returns instances matching the given options, ordered
// by start time.
func (s *Store) ListInstances(ctx context.Context, opts instance.ListOpts) ([]*instance.Instance, error) {
	ids, err := s.client.SMembers(ctx, instanceIDsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("stageflow/redis: list instances smembers: %w", err)
	}

	var out []*instance.Instance
	for _, instanceID := range ids {
		in, getErr := s.getInstance(ctx, instanceID)
		if getErr != nil {
			continue
		}
		if !opts.WorkflowID.IsNil() && in.WorkflowID != opts.WorkflowID {
			continue
		}
		if opts.TaskID != "" && in.TaskID != opts.TaskID {
			continue
		}
		if opts.Status != "" && in.Status != opts.Status {
			continue
		}
		out = append(out, in)
	}

	sort.Slice(out, func(i, k int) bool {
		return out[i].StartedAt.Before(out[k].StartedAt)
	})

	return paginate(out, opts.Offset, opts.Limit), nil
}

// HasActiveInstances reports whether any non-completed instance
// references the given definition.
func (s *Store) HasActiveInstances(ctx context.Context, workflowID id.WorkflowID) (bool, error) {
	ids, err := s.client.SMembers(ctx, instanceIDsKey).Result()
	if err != nil {
		return false, fmt.Errorf("stageflow/redis: has active instances: %w", err)
	}

	for _, instanceID := range ids {
		in, getErr := s.getInstance(ctx, instanceID)
		if getErr != nil {
			continue
		}
		if in.WorkflowID == workflowID && in.Status != instance.StatusCompleted {
			return true, nil
		}
	}
	return false, nil
}

// ── helpers ──

// isNil reports whether err is the redis missing-key sentinel.
func isNil(err error) bool {
	return errors.Is(err, goredis.Nil)
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
