package stageflow

import "time"

// Entity carries the audit timestamps shared by all persisted Stageflow
// entities. Embed it in entity structs; stores own UpdatedAt on writes.
type Entity struct {
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewEntity returns an Entity with both timestamps set to the current
// UTC time.
func NewEntity() Entity {
	now := time.Now().UTC()
	return Entity{CreatedAt: now, UpdatedAt: now}
}

// Touch updates the UpdatedAt timestamp to the current UTC time.
func (e *Entity) Touch() {
	e.UpdatedAt = time.Now().UTC()
}
