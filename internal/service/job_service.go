package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/target/bgsms/config"
	"github.com/target/bgsms/internal/core"
	"github.com/target/bgsms/internal/domain/model"
	apperrors "github.com/target/bgsms/internal/errors"
	"github.com/target/bgsms/internal/observability/metrics"
	"github.com/target/bgsms/internal/util"
)

// DeleteSentLogLayout is the accepted input format of DeleteSentLog.
const DeleteSentLogLayout = "2006-01-02 15:04:05"

// Log files of spawned worker processes, relative to the configured log directory.
const (
	OrchestratorLogFile = "orchestrator.log"
	LeafWorkerLogFile   = "leaf_worker.log"
)

// JobStores groups the storage ports used by the job facade.
type JobStores struct {
	Jobs    core.JobRepository    // Required
	Vendors core.VendorRepository // Required for GetSmsBalance
	Schema  core.SchemaManager    // Optional: validated at construction
}

// JobRuntime groups the process and transport ports used by the job facade.
type JobRuntime struct {
	Queue     core.QueueClient       // Required: submits the job payload
	Admin     core.QueueAdmin        // Required: used by Cancel
	Processes core.ProcessController // Required: spawns and kills workers
	Vendors   core.VendorRegistry    // Required for GetSmsBalance
}

// JobServiceOptions groups dependencies for JobService.
type JobServiceOptions struct {
	Config   config.AppConfig
	Stores   JobStores
	Runtime  JobRuntime
	Notifier core.JobNotifier  // Optional: lifecycle notifications
	Clock    core.TimeProvider // Optional: defaults to the system clock in the configured zone
	Logger   *slog.Logger
	Metrics  metrics.Sink
}

// JobService is the facade callers use to submit, inspect and cancel bulk-send jobs.
type JobService struct {
	cfg       config.AppConfig
	jobs      core.JobRepository
	vendors   core.VendorRepository
	queue     core.QueueClient
	admin     core.QueueAdmin
	processes core.ProcessController
	registry  core.VendorRegistry
	notifier  core.JobNotifier
	clock     core.TimeProvider
	logger    *slog.Logger
	metrics   metrics.Sink
}

// NewJobService constructs a JobService. When a schema manager is supplied the
// storage schema is validated and a missing or incomplete schema is fatal.
func NewJobService(ctx context.Context, opts JobServiceOptions) (*JobService, error) {
	if opts.Stores.Jobs == nil {
		return nil, errors.New("JobRepository is required")
	}
	if opts.Runtime.Queue == nil || opts.Runtime.Admin == nil {
		return nil, errors.New("QueueClient and QueueAdmin are required")
	}
	if opts.Runtime.Processes == nil {
		return nil, errors.New("ProcessController is required")
	}
	if opts.Stores.Schema != nil {
		if err := opts.Stores.Schema.Validate(ctx); err != nil {
			return nil, err
		}
	}

	return &JobService{
		cfg:       opts.Config,
		jobs:      opts.Stores.Jobs,
		vendors:   opts.Stores.Vendors,
		queue:     opts.Runtime.Queue,
		admin:     opts.Runtime.Admin,
		processes: opts.Runtime.Processes,
		registry:  opts.Runtime.Vendors,
		notifier:  opts.Notifier,
		clock:     clockOrDefault(opts.Clock, opts.Config.Location()),
		logger:    loggerOrDefault(opts.Logger, "job_service"),
		metrics:   metrics.OrNop(opts.Metrics),
	}, nil
}

// Submit spawns an orchestrator for a new job and enqueues its payload. It
// returns the job id as soon as the payload is accepted by the transport.
//
// An invalid configuration or a worker binary that cannot be run is a
// ConfigurationError. Any other spawn failure, such as fork running out of
// resources, and an enqueue failure are QueueErrors.
func (s *JobService) Submit(ctx context.Context, recipients []model.RecipientTask, notifyTo string) (string, error) {
	if err := s.cfg.Validate(); err != nil {
		return "", apperrors.Configuration("invalid configuration", err)
	}
	if len(recipients) == 0 {
		return "", apperrors.ValidationField("recipients", "at least one recipient is required")
	}
	for i := range recipients {
		if err := recipients[i].Validate(); err != nil {
			return "", apperrors.Wrap(err, apperrors.ErrCodeValidation, fmt.Sprintf("recipient %d", i+1))
		}
	}

	jobID := util.GenerateUniqueID(model.JobIDLength)
	workerID := model.NewOrchestratorID(s.clock.Now(), util.GenerateUniqueID(model.WorkerSuffixLength))
	blob, err := config.Encode(s.cfg)
	if err != nil {
		return "", apperrors.Configuration("encode configuration", err)
	}

	proc, err := s.processes.Spawn(ctx, core.SpawnRequest{
		WorkerID:   workerID.String(),
		ConfigBlob: blob,
		LogFile:    filepath.Join(s.cfg.LogDir, OrchestratorLogFile),
	})
	if errors.Is(err, core.ErrWorkerNotExecutable) {
		return "", apperrors.Configuration("worker executable cannot be run", err)
	}
	if err != nil {
		metrics.RecordJob(s.metrics, metrics.TransitionFailed, err)
		return "", apperrors.Wrap(err, apperrors.ErrCodeQueue, "spawn orchestrator")
	}

	payload := model.JobPayload{
		JobID:       jobID,
		NotifyTo:    strings.TrimSpace(notifyTo),
		Recipients:  append([]model.RecipientTask(nil), recipients...),
		RetryNumber: 0,
	}
	for i := range payload.Recipients {
		payload.Recipients[i].JobID = ""
		payload.Recipients[i].RetryNumber = 0
	}
	if err := s.queue.Enqueue(ctx, workerID.String(), payload); err != nil {
		// The orchestrator would otherwise wait forever for a payload.
		if serr := proc.Signal(syscall.SIGTERM); serr != nil {
			s.logger.WarnContext(ctx, "stop orphaned orchestrator", "worker_id", workerID.String(), "error", serr)
		}
		metrics.RecordJob(s.metrics, metrics.TransitionFailed, err)
		return "", apperrors.Wrap(err, apperrors.ErrCodeQueue, "enqueue job payload")
	}

	metrics.RecordJob(s.metrics, metrics.TransitionSubmitted, nil)
	s.logger.InfoContext(ctx, "job submitted",
		"job_id", jobID,
		"worker_id", workerID.String(),
		"recipients", len(recipients),
		"pid", proc.PID(),
	)
	return jobID, nil
}

// GetJobByID returns the job, or (nil, nil) when it does not exist.
func (s *JobService) GetJobByID(ctx context.Context, jobID string) (*model.Job, error) {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return nil, apperrors.ValidationField("job_id", "job id is required")
	}
	return s.jobs.GetByID(ctx, jobID)
}

// Cancel force-stops a running job: it kills the job's processes, drops its
// leaf queue functions and marks the job Canceled.
func (s *JobService) Cancel(ctx context.Context, jobID string) (*model.Job, error) {
	job, err := s.GetJobByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if err := cancelPrecondition(jobID, job); err != nil {
		return nil, err
	}

	orchestrator, err := model.ParseWorkerID(job.OrchestratorID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeStorage, "job has an invalid orchestrator id")
	}
	orchestrator = orchestrator.Orchestrator()
	leafPrefix := orchestrator.LeafPrefix()

	for _, pattern := range []string{orchestrator.String(), leafPrefix} {
		if err := s.processes.KillMatching(ctx, pattern); err != nil {
			return nil, fmt.Errorf("kill %s: %w", pattern, err)
		}
	}
	s.dropFunctions(ctx, job.ID, orchestrator.String(), leafPrefix)

	updated, err := s.jobs.MarkCanceled(ctx, job.ID, s.clock.Now())
	if err != nil {
		// The job may have completed between the read and the update.
		current, gerr := s.jobs.GetByID(ctx, job.ID)
		if gerr == nil {
			if perr := cancelPrecondition(jobID, current); perr != nil {
				return nil, perr
			}
		}
		return nil, fmt.Errorf("mark canceled: %w", err)
	}

	metrics.RecordJob(s.metrics, metrics.TransitionCanceled, nil)
	s.logger.InfoContext(ctx, "job canceled",
		"job_id", updated.ID,
		"canceled_count", updated.CanceledCount,
		"executed", updated.ExecutedCount,
	)

	if updated.NotifyTo != "" {
		if fresh, gerr := s.jobs.GetByID(ctx, updated.ID); gerr == nil && fresh != nil {
			updated = fresh
		}
		notifySafely(ctx, s.logger, s.notifier, model.TemplateJobCanceled, updated)
	}
	return updated, nil
}

func cancelPrecondition(jobID string, job *model.Job) error {
	switch {
	case job == nil:
		return apperrors.Newf(apperrors.ErrCodeJobNotFound, "job %s not found", jobID)
	case job.Status == model.JobStatusCompleted:
		return apperrors.Newf(apperrors.ErrCodeJobAlreadyCompleted, "job %s is already completed", job.ID)
	case job.Status == model.JobStatusCanceled:
		return apperrors.Newf(apperrors.ErrCodeJobAlreadyCanceled, "job %s is already canceled", job.ID)
	}
	return nil
}

// dropFunctions de-registers the orchestrator function and every function
// containing the leaf prefix. Failures are logged; the functions become idle
// once their processes are gone and the reaper removes them later.
func (s *JobService) dropFunctions(ctx context.Context, jobID, orchestratorFn, leafPrefix string) {
	statuses, err := s.admin.Status(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "queue status during cancel", "job_id", jobID, "error", err)
		return
	}
	for _, st := range statuses {
		if st.Function != orchestratorFn && !strings.Contains(st.Function, leafPrefix) {
			continue
		}
		if err := s.admin.DropFunction(ctx, st.Function); err != nil {
			s.logger.WarnContext(ctx, "drop queue function during cancel",
				"job_id", jobID,
				"function", st.Function,
				"error", err,
			)
		}
	}
}

// DeleteSentLog deletes every job started at or before upto (and, by cascade,
// its sent log). upto must be "YYYY-MM-DD HH:MM:SS" in the configured zone.
func (s *JobService) DeleteSentLog(ctx context.Context, upto string) (int64, error) {
	at, err := ParseLogTimestamp(upto, s.cfg.Location())
	if err != nil {
		return 0, err
	}
	n, err := s.jobs.DeleteStartedBefore(ctx, at)
	if err != nil {
		return 0, err
	}
	s.logger.InfoContext(ctx, "sent log deleted", "upto", upto, "jobs", n)
	return n, nil
}

// ParseLogTimestamp parses a DeleteSentLogLayout timestamp in loc. The input
// must round-trip exactly, so out-of-range fields are rejected.
func ParseLogTimestamp(value string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	at, err := time.ParseInLocation(DeleteSentLogLayout, value, loc)
	if err != nil || at.Format(DeleteSentLogLayout) != value {
		return time.Time{}, apperrors.ValidationField("upto",
			fmt.Sprintf("invalid timestamp %q, expected format %s", value, DeleteSentLogLayout))
	}
	return at, nil
}

// GetSmsBalance queries the balance capability of a vendor. Inactive vendors
// may still be queried.
func (s *JobService) GetSmsBalance(ctx context.Context, vendorName, fromJSON string) (model.Balance, error) {
	if s.vendors == nil || s.registry == nil {
		return model.Balance{}, apperrors.Configuration("vendor lookup is not configured", nil)
	}
	vendorName = strings.TrimSpace(vendorName)
	vendor, err := s.vendors.GetByName(ctx, vendorName)
	if err != nil {
		return model.Balance{}, err
	}
	if vendor == nil {
		return model.Balance{}, apperrors.VendorNotFound(vendorName)
	}
	if vendor.BalanceCapability == "" {
		return model.Balance{}, apperrors.VendorCapabilityMissing(vendor.Name, "balance")
	}
	capability, ok := s.registry.BalanceCapability(vendor.BalanceCapability)
	if !ok {
		return model.Balance{}, apperrors.VendorCapabilityMissing(vendor.Name, "balance")
	}
	creds, err := model.ParseCredentials(fromJSON)
	if err != nil {
		return model.Balance{}, apperrors.Wrap(err, apperrors.ErrCodeValidation, "invalid from_json")
	}
	balance, err := capability.GetBalance(ctx, vendor.Name, creds)
	if err != nil {
		return model.Balance{}, fmt.Errorf("get balance from %s: %w", vendor.Name, err)
	}
	return balance, nil
}
