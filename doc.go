// Package stageflow provides a user-defined workflow state machine for Go.
// A workflow definition is a named, validated directed graph of stages; an
// instance binds a definition to one external work item and walks the graph
// one legal transition at a time, keeping an append-only history.
//
// Stageflow is designed as a library, not a service. Import it, configure a
// store, and drive transitions through the engine:
//
//	st := memory.New()
//	defs := definition.NewService(st, st)
//	eng := engine.New(st, st)
//
//	def, _ := defs.Create(ctx, definition.CreateParams{...})
//	inst, _ := eng.Start(ctx, def.ID, taskID, actorID)
//	inst, _ = eng.Advance(ctx, inst.ID, nextStageID, actorID)
//
// # Architecture
//
// Stageflow follows a composable store pattern where each subsystem
// (definition, instance) defines its own store interface. A single backend
// implements all of them; memory, postgres, and redis backends ship under
// store/.
//
// All entity IDs use TypeID: type-prefixed, K-sortable, UUIDv7-based,
// compile-time safe identifiers.
package stageflow
