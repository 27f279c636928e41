package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/xraph/stageflow/instance"
)

// Logging returns middleware that logs every transition attempt and its
// outcome.
func Logging(logger *slog.Logger) Middleware {
	return func(ctx context.Context, t *instance.Transition, next Handler) error {
		logger.Info("transition started",
			slog.String("instance_id", t.InstanceID.String()),
			slog.String("from", t.From.String()),
			slog.String("to", t.To.String()),
			slog.String("actor_id", t.ActorID),
		)

		start := time.Now()
		err := next(ctx)
		elapsed := time.Since(start)

		if err != nil {
			logger.Error("transition failed",
				slog.String("instance_id", t.InstanceID.String()),
				slog.String("from", t.From.String()),
				slog.String("to", t.To.String()),
				slog.Duration("elapsed", elapsed),
				slog.String("error", err.Error()),
			)
		} else {
			logger.Info("transition completed",
				slog.String("instance_id", t.InstanceID.String()),
				slog.String("from", t.From.String()),
				slog.String("to", t.To.String()),
				slog.Bool("terminal", t.Terminal),
				slog.Duration("elapsed", elapsed),
			)
		}

		return err
	}
}
