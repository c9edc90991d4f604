package supervisor

import (
	"context"
	"time"

	"rendercue/internal/logger"
)

// Notifier receives the summary of every finished run.
type Notifier interface {
	Notify(ctx context.Context, summary Summary) error
}

type LogNotifier struct {
	Logger *logger.Logger
}

func (n LogNotifier) Notify(_ context.Context, s Summary) error {
	log := logger.OrNop(n.Logger).WithComponent("notify").WithRunID(s.RunID)
	args := []any{
		"completed", s.Completed,
		"failed", s.Failed,
		"cancelled", s.Cancelled,
		"frames", s.TotalFrames,
		"duration", s.Duration.Round(time.Second).String(),
		"output", s.OutputLocation,
	}
	if s.Success {
		log.Info("render complete", args...)
		return nil
	}
	if s.Error != "" {
		args = append(args, "error", s.Error)
	}
	log.Warn("render finished with problems", args...)
	return nil
}
