package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/target/bgsms/config"
	"github.com/target/bgsms/internal/core"
	"github.com/target/bgsms/internal/observability/metrics"
)

// ReaperServiceOptions groups dependencies for ReaperService.
type ReaperServiceOptions struct {
	Admin   core.QueueAdmin     // Required: queue introspection
	Jobs    core.JobRepository  // Optional: enables sent log retention
	Config  config.ReaperConfig // Optional: retention and pass timeout
	Clock   core.TimeProvider   // Optional: defaults to the system clock
	Logger  *slog.Logger        // Optional: structured logger
	Metrics metrics.Sink        // Optional: metrics sink
}

// ReaperService removes queue functions orphaned by crashed or killed jobs and,
// when configured, purges old jobs and their sent log.
type ReaperService struct {
	admin   core.QueueAdmin
	jobs    core.JobRepository
	config  config.ReaperConfig
	clock   core.TimeProvider
	logger  *slog.Logger
	metrics metrics.Sink
}

// NewReaperService constructs a new ReaperService.
func NewReaperService(opts ReaperServiceOptions) (*ReaperService, error) {
	if opts.Admin == nil {
		return nil, errors.New("QueueAdmin is required")
	}
	return &ReaperService{
		admin:   opts.Admin,
		jobs:    opts.Jobs,
		config:  opts.Config,
		clock:   clockOrDefault(opts.Clock, nil),
		logger:  loggerOrDefault(opts.Logger, "reaper_service"),
		metrics: metrics.OrNop(opts.Metrics),
	}, nil
}

// ReapIdle drops every queue function with nothing queued, running or
// registered, and returns the dropped names. A function with any non-zero
// count is never touched.
func (s *ReaperService) ReapIdle(ctx context.Context) ([]string, error) {
	statuses, err := s.admin.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("queue status: %w", err)
	}

	var dropped []string
	var errs []error
	for _, st := range statuses {
		if !st.Idle() {
			continue
		}
		if err := s.admin.DropFunction(ctx, st.Function); err != nil {
			errs = append(errs, fmt.Errorf("drop %s: %w", st.Function, err))
			continue
		}
		dropped = append(dropped, st.Function)
	}

	metrics.RecordReaperDropped(s.metrics, len(dropped))
	if len(dropped) > 0 {
		s.logger.InfoContext(ctx, "reaped idle queue functions", "count", len(dropped), "functions", dropped)
	}
	return dropped, errors.Join(errs...)
}

// PurgeSentLog deletes jobs started more than the configured retention ago.
// It is a no-op when retention is disabled or no job repository is wired.
func (s *ReaperService) PurgeSentLog(ctx context.Context) (int64, error) {
	if s.jobs == nil || !s.config.RetentionEnabled() {
		return 0, nil
	}
	cutoff := s.clock.Now().Add(-s.config.LogRetention)
	n, err := s.jobs.DeleteStartedBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge sent log: %w", err)
	}
	if n > 0 {
		s.logger.InfoContext(ctx, "purged old jobs", "count", n, "cutoff", cutoff.Format(time.RFC3339))
	}
	return n, nil
}

// RunOnce performs one maintenance pass bounded by the configured timeout.
func (s *ReaperService) RunOnce(ctx context.Context) error {
	if s.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.Timeout)
		defer cancel()
	}
	_, reapErr := s.ReapIdle(ctx)
	_, purgeErr := s.PurgeSentLog(ctx)
	return errors.Join(reapErr, purgeErr)
}
