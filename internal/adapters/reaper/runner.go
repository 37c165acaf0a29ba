// Package reaper runs the maintenance pass of the reaper service on a cron
// schedule and optionally serves the Prometheus scrape endpoint next to it.
package reaper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/target/bgsms/config"
	"github.com/target/bgsms/internal/service"
)

const shutdownTimeout = 5 * time.Second

// Pass is one maintenance pass. *service.ReaperService satisfies it.
type Pass interface {
	RunOnce(ctx context.Context) error
}

var _ Pass = (*service.ReaperService)(nil)

// RunnerOptions holds the dependencies for creating a Runner.
type RunnerOptions struct {
	Reaper   Pass // Required
	Config   config.ReaperConfig
	Location *time.Location
	Logger   *slog.Logger

	// MetricsHandler, when set, is served on MetricsAddr at /metrics.
	MetricsHandler http.Handler
	MetricsAddr    string
}

// Runner schedules reaper passes until its context is canceled.
type Runner struct {
	pass     Pass
	schedule cron.Schedule
	spec     string
	loc      *time.Location
	logger   *slog.Logger

	metricsHandler http.Handler
	metricsAddr    string

	mu      sync.Mutex
	running bool
}

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// NewRunner validates the schedule and creates a Runner.
func NewRunner(opts RunnerOptions) (*Runner, error) {
	if opts.Reaper == nil {
		return nil, errors.New("reaper service is required")
	}
	cfg := opts.Config
	cfg.Sanitize()
	schedule, err := parser.Parse(cfg.Schedule)
	if err != nil {
		return nil, fmt.Errorf("parse REAPER_SCHEDULE %q: %w", cfg.Schedule, err)
	}
	if opts.MetricsHandler != nil && opts.MetricsAddr == "" {
		return nil, errors.New("metrics address is required when a metrics handler is set")
	}
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		pass:           opts.Reaper,
		schedule:       schedule,
		spec:           cfg.Schedule,
		loc:            loc,
		logger:         logger.With("component", "reaper_runner"),
		metricsHandler: opts.MetricsHandler,
		metricsAddr:    opts.MetricsAddr,
	}, nil
}

// Run performs one pass immediately, then one per schedule tick, until ctx
// is canceled. A tick that fires while the previous pass is still running is
// skipped.
func (r *Runner) Run(ctx context.Context) error {
	srv, serveErr := r.startMetricsServer(ctx)

	c := cron.New(cron.WithParser(parser), cron.WithLocation(r.loc))
	c.Schedule(r.schedule, cron.FuncJob(func() { r.tick(ctx) }))
	r.logger.InfoContext(ctx, "starting reaper runner", "schedule", r.spec, "tz", r.loc.String())

	r.tick(ctx)
	c.Start()

	var err error
	select {
	case <-ctx.Done():
	case err = <-serveErr:
	}

	<-c.Stop().Done()
	if srv != nil {
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if serr := srv.Shutdown(sctx); serr != nil {
			r.logger.WarnContext(ctx, "metrics server shutdown", "error", serr)
		}
	}
	r.logger.InfoContext(ctx, "reaper runner stopped")
	return err
}

func (r *Runner) tick(ctx context.Context) {
	if ctx.Err() != nil || !r.begin() {
		return
	}
	defer r.end()

	started := time.Now()
	if err := r.pass.RunOnce(ctx); err != nil {
		r.logger.ErrorContext(ctx, "reaper pass failed", "error", err, "duration", time.Since(started))
		return
	}
	r.logger.DebugContext(ctx, "reaper pass finished", "duration", time.Since(started))
}

func (r *Runner) begin() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return false
	}
	r.running = true
	return true
}

func (r *Runner) end() {
	r.mu.Lock()
	r.running = false
	r.mu.Unlock()
}

// startMetricsServer serves /metrics in the background. The returned channel
// yields an error if the listener fails.
func (r *Runner) startMetricsServer(ctx context.Context) (*http.Server, <-chan error) {
	errCh := make(chan error, 1)
	if r.metricsHandler == nil {
		return nil, errCh
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", r.metricsHandler)
	srv := &http.Server{
		Addr:              r.metricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		r.logger.InfoContext(ctx, "serving metrics", "addr", r.metricsAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("metrics server: %w", err)
		}
	}()
	return srv, errCh
}
