package postgres

import (
	"encoding/json"
	"fmt"

	"github.com/xraph/stageflow/graph"
	"github.com/xraph/stageflow/instance"
)

// Stage graphs and histories cross the wire as JSONB documents; the
// entity structs carry the JSON tags, so marshalling is direct.

func marshalStages(stages []graph.Stage) ([]byte, error) {
	if stages == nil {
		stages = []graph.Stage{}
	}
	data, err := json.Marshal(stages)
	if err != nil {
		return nil, fmt.Errorf("stageflow/postgres: marshal stages: %w", err)
	}
	return data, nil
}

func unmarshalStages(data []byte) ([]graph.Stage, error) {
	var stages []graph.Stage
	if err := json.Unmarshal(data, &stages); err != nil {
		return nil, fmt.Errorf("stageflow/postgres: unmarshal stages: %w", err)
	}
	return stages, nil
}

func marshalHistory(history []instance.HistoryEntry) ([]byte, error) {
	if history == nil {
		history = []instance.HistoryEntry{}
	}
	data, err := json.Marshal(history)
	if err != nil {
		return nil, fmt.Errorf("stageflow/postgres: marshal history: %w", err)
	}
	return data, nil
}

func unmarshalHistory(data []byte) ([]instance.HistoryEntry, error) {
	var history []instance.HistoryEntry
	if err := json.Unmarshal(data, &history); err != nil {
		return nil, fmt.Errorf("stageflow/postgres: unmarshal history: %w", err)
	}
	return history, nil
}
