package middleware

import (
	"context"

	"github.com/xraph/stageflow/instance"
)

// Handler is the terminal function that applies the transition.
type Handler func(ctx context.Context) error

// Middleware wraps a Handler with cross-cutting logic. It receives the
// current context, the transition being applied, and the next handler
// to call. Middleware MUST call next to continue the chain (unless
// short-circuiting on error).
type Middleware func(ctx context.Context, t *instance.Transition, next Handler) error

// Chain composes multiple middleware into a single Middleware.
// Middleware are applied right-to-left: the first middleware in the
// list is the outermost wrapper.
//
// Example: Chain(logging, recover, tracing) executes as:
//
//	logging → recover → tracing → handler
func Chain(mws ...Middleware) Middleware {
	return func(ctx context.Context, t *instance.Transition, next Handler) error {
		// Build the chain from the end backwards.
		h := next
		for i := len(mws) - 1; i >= 0; i-- {
			mw := mws[i]
			prev := h
			h = func(ctx context.Context) error {
				return mw(ctx, t, prev)
			}
		}
		return h(ctx)
	}
}
