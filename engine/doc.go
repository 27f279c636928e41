// Package engine implements the transition engine: the only component
// that mutates workflow instances. It binds a definition to a work item
// at the definition's start stage and applies requested transitions,
// refusing anything the instance's stage snapshot does not allow.
//
// Advance is atomic per instance. In-process callers are serialized by
// a per-instance lock; across processes the instance store's version
// compare-and-swap rejects the loser of a race with
// stageflow.ErrStaleInstance. Either way at most one of two concurrent
// conflicting advances succeeds, and history gains exactly one entry.
//
// The engine sits above the definition, instance, ext, and middleware
// packages; applications construct one with New and the stores of
// their choice.
package engine
