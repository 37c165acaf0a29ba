package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/time/rate"

	"github.com/target/bgsms/internal/core"
	"github.com/target/bgsms/internal/domain/model"
	apperrors "github.com/target/bgsms/internal/errors"
	"github.com/target/bgsms/internal/observability/metrics"
	"github.com/target/bgsms/internal/util"
)

// LeafWorkerOptions groups dependencies for LeafWorker.
type LeafWorkerOptions struct {
	WorkerID model.WorkerID
	Jobs     core.JobRepository    // Required: records outcomes
	Vendors  core.VendorRepository // Required: vendor rows
	Registry core.VendorRegistry   // Required: send capabilities
	Worker   core.QueueWorker      // Required for Run
	// RatePerSec throttles vendor calls; 0 disables throttling.
	RatePerSec int
	Clock      core.TimeProvider
	Logger     *slog.Logger
	Metrics    metrics.Sink
}

// LeafWorker sends the recipient tasks addressed to its function, one at a time.
type LeafWorker struct {
	id       model.WorkerID
	jobs     core.JobRepository
	vendors  core.VendorRepository
	registry core.VendorRegistry
	worker   core.QueueWorker
	limiter  *rate.Limiter
	clock    core.TimeProvider
	logger   *slog.Logger
	metrics  metrics.Sink
}

// NewLeafWorker constructs a LeafWorker.
func NewLeafWorker(opts LeafWorkerOptions) (*LeafWorker, error) {
	if opts.Jobs == nil || opts.Vendors == nil || opts.Registry == nil {
		return nil, errors.New("JobRepository, VendorRepository and VendorRegistry are required")
	}
	if opts.WorkerID.Role != model.WorkerRoleLeaf {
		return nil, fmt.Errorf("worker id %q is not a leaf worker", opts.WorkerID)
	}
	if err := opts.WorkerID.Validate(); err != nil {
		return nil, fmt.Errorf("invalid leaf worker id: %w", err)
	}

	var limiter *rate.Limiter
	if opts.RatePerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RatePerSec), opts.RatePerSec)
	}
	return &LeafWorker{
		id:       opts.WorkerID,
		jobs:     opts.Jobs,
		vendors:  opts.Vendors,
		registry: opts.Registry,
		worker:   opts.Worker,
		limiter:  limiter,
		clock:    clockOrDefault(opts.Clock, nil),
		logger:   loggerOrDefault(opts.Logger, "leaf_worker").With("worker_id", opts.WorkerID.String()),
		metrics:  metrics.OrNop(opts.Metrics),
	}, nil
}

// Run registers the leaf function and processes tasks until ctx is canceled.
func (l *LeafWorker) Run(ctx context.Context) error {
	if l.worker == nil {
		return errors.New("QueueWorker is required")
	}
	if err := l.worker.Register(l.id.String(), l.handle); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeQueue, "register leaf worker")
	}
	l.logger.InfoContext(ctx, "leaf worker ready")
	err := l.worker.Work(ctx, 0)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (l *LeafWorker) handle(ctx context.Context, task core.Task) error {
	var rt model.RecipientTask
	if err := json.Unmarshal(task.Payload, &rt); err != nil {
		return fmt.Errorf("decode recipient task: %w", err)
	}
	_, err := l.Process(ctx, rt)
	return err
}

// Process sends one task and records its outcome. Vendor resolution and
// capability failures are recorded as Not Sent; an error is returned only
// when no outcome could be persisted.
func (l *LeafWorker) Process(ctx context.Context, task model.RecipientTask) (*model.Job, error) {
	if task.JobID == "" {
		return nil, apperrors.ValidationField("job_id", "task has no job id")
	}
	if l.limiter != nil {
		if err := l.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("send throttle: %w", err)
		}
	}

	outcome, to := l.send(ctx, task)
	entry := model.NewSentLogEntry(task, to, outcome, l.clock.Now())

	// The send may already have happened; persist it even if ctx was canceled meanwhile.
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()
	job, err := l.jobs.RecordOutcome(rctx, entry)
	if err != nil {
		l.logger.ErrorContext(ctx, "failed to record outcome",
			"job_id", task.JobID,
			"to", to,
			"error", err,
		)
		return nil, fmt.Errorf("record outcome: %w", err)
	}

	metrics.RecordSend(l.metrics, task.VendorName, string(outcome.Status), outcome.ExceptionCode)
	l.logger.InfoContext(ctx, "task processed",
		"job_id", task.JobID,
		"retry_number", task.RetryNumber,
		"vendor", task.VendorName,
		"to", to,
		"sent_status", outcome.Status,
		"exception_code", outcome.ExceptionCode,
		"executed", job.ExecutedCount,
		"total", job.TotalCount,
	)
	return job, nil
}

// send resolves the vendor, normalises the destination and invokes the send
// capability. It returns the outcome and the destination as logged.
func (l *LeafWorker) send(ctx context.Context, task model.RecipientTask) (model.SendOutcome, string) {
	normalised := util.FilterMobileNumber(task.To)
	to := util.MobileNumberForLog(task.To, normalised)

	capability, err := l.resolve(ctx, task.VendorName)
	if err != nil {
		l.logger.WarnContext(ctx, "vendor unavailable", "job_id", task.JobID, "vendor", task.VendorName, "error", err)
		return model.NotSent(model.ExceptionCodeEngine, err.Error()), to
	}
	if normalised == "" {
		return model.NotSent(model.ExceptionCodeInvalidNumber, fmt.Sprintf("invalid destination number %q", task.To)), to
	}
	creds, err := model.ParseCredentials(task.FromJSON)
	if err != nil {
		return model.NotSent(model.ExceptionCodeEngine, "invalid from_json: "+err.Error()), to
	}

	outcome, err := capability.Send(ctx, model.SendRequest{
		Vendor:      task.VendorName,
		To:          normalised,
		Body:        task.Body,
		Mask:        task.Mask,
		Credentials: creds,
	})
	if err != nil {
		l.logger.WarnContext(ctx, "send capability failed", "job_id", task.JobID, "vendor", task.VendorName, "error", err)
		return model.NotSent(model.ExceptionCodeEngine, err.Error()), to
	}
	if !outcome.Status.Valid() {
		return model.NotSent(model.ExceptionCodeEngine,
			fmt.Sprintf("send capability returned invalid status %q", outcome.Status)), to
	}
	return outcome, to
}

// resolve returns the send capability of an active vendor.
func (l *LeafWorker) resolve(ctx context.Context, name string) (core.SendCapability, error) {
	vendor, err := l.vendors.GetByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if vendor == nil {
		return nil, apperrors.VendorNotFound(name)
	}
	if !vendor.Active() {
		return nil, apperrors.VendorInactive(vendor.Name)
	}
	if vendor.SendCapability == "" {
		return nil, apperrors.VendorCapabilityMissing(vendor.Name, "send")
	}
	capability, ok := l.registry.SendCapability(vendor.SendCapability)
	if !ok {
		return nil, apperrors.VendorCapabilityMissing(vendor.Name, "send")
	}
	return capability, nil
}
