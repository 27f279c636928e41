package middleware

import (
	"context"
	"time"

	"github.com/xraph/stageflow/instance"
)

// Timeout returns middleware that enforces a per-transition deadline.
// When the deadline is exceeded the context is cancelled and the
// handler returns context.DeadlineExceeded.
func Timeout(d time.Duration) Middleware {
	return func(ctx context.Context, _ *instance.Transition, next Handler) error {
		if d > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, d)
			defer cancel()
		}
		return next(ctx)
	}
}
