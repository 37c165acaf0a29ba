package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/target/bgsms/internal/core"
	"github.com/target/bgsms/internal/domain/model"
)

type systemClock struct {
	loc *time.Location
}

func (c systemClock) Now() time.Time {
	if c.loc == nil {
		return time.Now()
	}
	return time.Now().In(c.loc)
}

func clockOrDefault(clock core.TimeProvider, loc *time.Location) core.TimeProvider {
	if clock != nil {
		return clock
	}
	return systemClock{loc: loc}
}

func loggerOrDefault(logger *slog.Logger, component string) *slog.Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return logger.With("component", component)
}

// notifySafely delivers a lifecycle notification when the job has recipients.
// Delivery failures are logged and never returned.
func notifySafely(ctx context.Context, logger *slog.Logger, n core.JobNotifier, code model.TemplateCode, job *model.Job) {
	if n == nil || job == nil || job.NotifyTo == "" {
		return
	}
	if err := n.NotifyJob(ctx, code, job); err != nil {
		logger.WarnContext(ctx, "job notification failed",
			"job_id", job.ID,
			"template", code,
			"error", err,
		)
	}
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
