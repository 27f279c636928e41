package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/xraph/stageflow/instance"
)

// Recover returns middleware that recovers from panics in the handler
// chain. Panics are converted to errors and logged with a stack trace.
func Recover(logger *slog.Logger) Middleware {
	return func(ctx context.Context, t *instance.Transition, next Handler) (retErr error) {
		defer func() {
			if r := recover(); r != nil {
				stack := string(debug.Stack())
				logger.Error("transition handler panicked",
					slog.String("instance_id", t.InstanceID.String()),
					slog.String("to", t.To.String()),
					slog.Any("panic", r),
					slog.String("stack", stack),
				)
				retErr = fmt.Errorf("panic advancing instance %s: %v", t.InstanceID, r)
			}
		}()
		return next(ctx)
	}
}
