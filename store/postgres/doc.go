// Package postgres implements store.Store on PostgreSQL using pgx/v5.
// Stage graphs and histories are stored as JSONB documents; instance
// updates use a version-guarded UPDATE so the engine's atomic-advance
// contract holds across processes.
package postgres
