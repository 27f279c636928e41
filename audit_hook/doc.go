// Package audithook is a stageflow extension that bridges lifecycle
// events to an immutable audit trail backend.
//
// Every definition and instance lifecycle hook emits a structured audit
// event through the [Recorder] interface, with rich metadata (workflow
// name, task ID, stage IDs, actor, elapsed time). Recorder failures are
// logged and swallowed so the audit backend can never block a
// transition.
//
// # Usage
//
//	audithook.New(audithook.RecorderFunc(func(ctx context.Context, evt *audithook.AuditEvent) error {
//	    return trail.Write(ctx, evt.Action, evt.Resource, evt.ResourceID, evt.Metadata)
//	}))
//
// # Selective filtering
//
//	audithook.New(recorder,
//	    audithook.WithActions(
//	        audithook.ActionInstanceAdvanced,
//	        audithook.ActionInstanceCompleted,
//	    ),
//	)
package audithook
