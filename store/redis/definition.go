package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/xraph/stageflow"
	"github.com/xraph/stageflow/definition"
	"github.com/xraph/stageflow/id"
)

// CreateDefinition persists a new workflow definition.
func (s *Store) CreateDefinition(ctx context.Context, def *definition.Definition) error {
	key := definitionKey(def.ID.String())

	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("stageflow/redis: create definition exists: %w", err)
	}
	if exists > 0 {
		return fmt.Errorf("stageflow/redis: definition %s already exists", def.ID)
	}

	data, err := json.Marshal(def)
	if err != nil {
		return fmt.Errorf("stageflow/redis: marshal definition: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, key, data, 0)
	pipe.SAdd(ctx, definitionIDsKey, def.ID.String())
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("stageflow/redis: create definition: %w", err)
	}
	return nil
}

// GetDefinition retrieves a definition by ID.
func (s *Store) GetDefinition(ctx context.Context, defID id.WorkflowID) (*definition.Definition, error) {
	return s.getDefinition(ctx, defID.String())
}

func (s *Store) getDefinition(ctx context.Context, defID string) (*definition.Definition, error) {
	data, err := s.client.Get(ctx, definitionKey(defID)).Bytes()
	if err != nil {
		if isNil(err) {
			return nil, stageflow.ErrDefinitionNotFound
		}
		return nil, fmt.Errorf("stageflow/redis: get definition: %w", err)
	}

	var def definition.Definition
	if err := json.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("stageflow/redis: unmarshal definition: %w", err)
	}
	return &def, nil
}

// UpdateDefinition persists changes to an existing definition.
func (s *Store) UpdateDefinition(ctx context.Context, def *definition.Definition) error {
	key := definitionKey(def.ID.String())

	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("stageflow/redis: update definition exists: %w", err)
	}
	if exists == 0 {
		return stageflow.ErrDefinitionNotFound
	}

	data, err := json.Marshal(def)
	if err != nil {
		return fmt.Errorf("stageflow/redis: marshal definition: %w", err)
	}
	if err := s.client.Set(ctx, key, data, 0).Err(); err != nil {
		return fmt.Errorf("stageflow/redis: update definition: %w", err)
	}
	return nil
}

// DeleteDefinition removes a definition by ID.
func (s *Store) DeleteDefinition(ctx context.Context, defID id.WorkflowID) error {
	key := definitionKey(defID.String())

	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("stageflow/redis: delete definition exists: %w", err)
	}
	if exists == 0 {
		return stageflow.ErrDefinitionNotFound
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, key)
	pipe.SRem(ctx, definitionIDsKey, defID.String())
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("stageflow/redis: delete definition: %w", err)
	}
	return nil
}

// ListDefinitions returns definitions matching the given options,
// ordered by creation time.
func (s *Store) ListDefinitions(ctx context.Context, opts definition.ListOpts) ([]*definition.Definition, error) {
	ids, err := s.client.SMembers(ctx, definitionIDsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("stageflow/redis: list definitions smembers: %w", err)
	}

	var out []*definition.Definition
	for _, defID := range ids {
		def, getErr := s.getDefinition(ctx, defID)
		if getErr != nil {
			continue
		}
		if opts.BoardID != "" && def.BoardID != opts.BoardID {
			continue
		}
		if opts.ActiveOnly && !def.IsActive {
			continue
		}
		out = append(out, def)
	}

	sort.Slice(out, func(i, k int) bool {
		return out[i].CreatedAt.Before(out[k].CreatedAt)
	})

	return paginate(out, opts.Offset, opts.Limit), nil
}
