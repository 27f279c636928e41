// Package middleware provides composable middleware for workflow
// transitions.
//
// A [Middleware] is a function that wraps the engine's transition
// handler. Middleware are composed into a chain using [Chain] and run
// around every Advance. They are applied right-to-left: the first
// middleware in the slice is the outermost wrapper.
//
//	// logging → recover → handler
//	chain := middleware.Chain(middleware.Logging(logger), middleware.Recover(logger))
//
// # Built-in Middleware
//
//   - [Logging] — logs instance, stages, duration, and outcome per transition
//   - [Recover] — catches panics (e.g. in extension hooks) and converts them to errors
//   - [Timeout] — cancels the transition context after a configured duration
//   - [Tracing] — wraps the transition in an OpenTelemetry span
//   - [Metrics] — records per-transition duration and outcome counters
//
// # Writing Custom Middleware
//
//	func MyMiddleware() middleware.Middleware {
//	    return func(ctx context.Context, t *instance.Transition, next middleware.Handler) error {
//	        // pre-processing
//	        err := next(ctx)
//	        // post-processing
//	        return err
//	    }
//	}
//
// Middleware MUST call next to continue the chain unless intentionally
// short-circuiting.
package middleware
