package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/target/bgsms/config"
	"github.com/target/bgsms/internal/core"
	"github.com/target/bgsms/internal/domain/model"
	apperrors "github.com/target/bgsms/internal/errors"
	"github.com/target/bgsms/internal/observability/metrics"
	"github.com/target/bgsms/internal/util"
)

const (
	leafStopTimeout = 10 * time.Second
	recordTimeout   = 30 * time.Second
)

// OrchestratorStores groups the storage ports used by the orchestrator.
type OrchestratorStores struct {
	Jobs    core.JobRepository     // Required
	SentLog core.SentLogRepository // Required: source of retry rounds
}

// OrchestratorRuntime groups the transport and process ports used by the orchestrator.
type OrchestratorRuntime struct {
	Queue     core.QueueClient       // Required: fan-out barrier
	Admin     core.QueueAdmin        // Required: drops leaf functions
	Worker    core.QueueWorker       // Required: receives the job payload
	Processes core.ProcessController // Required: spawns leaf workers
}

// OrchestratorOptions groups dependencies for Orchestrator.
type OrchestratorOptions struct {
	Config   config.AppConfig
	WorkerID model.WorkerID
	Stores   OrchestratorStores
	Runtime  OrchestratorRuntime
	Reaper   *ReaperService    // Optional: defaults to a reaper over Runtime.Admin
	Notifier core.JobNotifier  // Optional: lifecycle notifications
	Clock    core.TimeProvider // Optional: defaults to the system clock in the configured zone
	Logger   *slog.Logger
	Metrics  metrics.Sink
}

// Orchestrator drives one job through its rounds: it spawns leaf workers,
// fans the recipients out to them, waits on the barrier and decides whether
// a retry round follows.
type Orchestrator struct {
	cfg       config.OrchestrationConfig
	logDir    string
	blob      string
	id        model.WorkerID
	jobs      core.JobRepository
	sentLog   core.SentLogRepository
	queue     core.QueueClient
	admin     core.QueueAdmin
	worker    core.QueueWorker
	processes core.ProcessController
	reaper    *ReaperService
	notifier  core.JobNotifier
	clock     core.TimeProvider
	logger    *slog.Logger
	metrics   metrics.Sink

	mu     sync.Mutex
	result error
}

// NewOrchestrator constructs an Orchestrator for the given orchestrator identity.
func NewOrchestrator(opts OrchestratorOptions) (*Orchestrator, error) {
	if opts.Stores.Jobs == nil || opts.Stores.SentLog == nil {
		return nil, errors.New("JobRepository and SentLogRepository are required")
	}
	rt := opts.Runtime
	if rt.Queue == nil || rt.Admin == nil || rt.Worker == nil {
		return nil, errors.New("QueueClient, QueueAdmin and QueueWorker are required")
	}
	if rt.Processes == nil {
		return nil, errors.New("ProcessController is required")
	}
	if opts.WorkerID.Role != model.WorkerRoleOrchestrator {
		return nil, fmt.Errorf("worker id %q is not an orchestrator", opts.WorkerID)
	}
	if err := opts.WorkerID.Validate(); err != nil {
		return nil, fmt.Errorf("invalid orchestrator id: %w", err)
	}
	if err := opts.Config.Orchestration.Validate(); err != nil {
		return nil, apperrors.Configuration("invalid orchestration configuration", err)
	}
	blob, err := config.Encode(opts.Config)
	if err != nil {
		return nil, apperrors.Configuration("encode configuration", err)
	}

	logger := loggerOrDefault(opts.Logger, "orchestrator").With("worker_id", opts.WorkerID.String())
	reaper := opts.Reaper
	if reaper == nil {
		reaper, err = NewReaperService(ReaperServiceOptions{Admin: rt.Admin, Logger: opts.Logger, Metrics: opts.Metrics})
		if err != nil {
			return nil, err
		}
	}

	return &Orchestrator{
		cfg:       opts.Config.Orchestration,
		logDir:    opts.Config.LogDir,
		blob:      blob,
		id:        opts.WorkerID,
		jobs:      opts.Stores.Jobs,
		sentLog:   opts.Stores.SentLog,
		queue:     rt.Queue,
		admin:     rt.Admin,
		worker:    rt.Worker,
		processes: rt.Processes,
		reaper:    reaper,
		notifier:  opts.Notifier,
		clock:     clockOrDefault(opts.Clock, opts.Config.Location()),
		logger:    logger,
		metrics:   metrics.OrNop(opts.Metrics),
	}, nil
}

// Run reaps idle queue functions, registers the orchestrator function and
// processes exactly one job payload. It returns the orchestration error, or
// nil when the job ran to a terminal decision.
func (o *Orchestrator) Run(ctx context.Context) error {
	if _, err := o.reaper.ReapIdle(ctx); err != nil {
		o.logger.WarnContext(ctx, "startup reap failed", "error", err)
	}
	if err := o.worker.Register(o.id.String(), o.handle); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeQueue, "register orchestrator")
	}
	o.logger.InfoContext(ctx, "orchestrator waiting for job payload")
	if err := o.worker.Work(ctx, 1); err != nil {
		return err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.result
}

func (o *Orchestrator) handle(ctx context.Context, task core.Task) error {
	var payload model.JobPayload
	err := json.Unmarshal(task.Payload, &payload)
	if err != nil {
		err = apperrors.Wrap(err, apperrors.ErrCodeValidation, "decode job payload")
	} else {
		err = o.Process(ctx, payload)
	}

	o.mu.Lock()
	if !errors.Is(err, core.ErrFailTask) {
		o.result = err
	}
	o.mu.Unlock()
	return err
}

// Process runs payload and every retry round that follows it. It returns
// core.ErrFailTask when retries are disabled so the transport records the
// inbound task as failed.
func (o *Orchestrator) Process(ctx context.Context, payload model.JobPayload) error {
	if err := payload.Validate(); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeValidation, "invalid job payload")
	}
	for {
		if err := o.runRound(ctx, payload); err != nil {
			metrics.RecordJob(o.metrics, metrics.TransitionFailed, err)
			o.logger.ErrorContext(ctx, "orchestration aborted",
				"job_id", payload.JobID,
				"retry_number", payload.RetryNumber,
				"error", err,
			)
			return err
		}

		next, err := o.nextRound(ctx, payload)
		if err != nil {
			return err
		}
		if next == nil {
			return nil
		}
		payload = *next
	}
}

// nextRound applies the retry decision. A nil payload ends the job.
func (o *Orchestrator) nextRound(ctx context.Context, p model.JobPayload) (*model.JobPayload, error) {
	if !o.cfg.RetriesEnabled() {
		o.logger.InfoContext(ctx, "retries disabled, job finished", "job_id", p.JobID)
		return nil, core.ErrFailTask
	}
	if p.RetryNumber >= o.cfg.RetryCount {
		o.logger.InfoContext(ctx, "retry budget exhausted, job finished",
			"job_id", p.JobID,
			"retry_number", p.RetryNumber,
		)
		return nil, nil
	}

	entries, err := o.sentLog.ListNotSent(ctx, model.NotSentQuery{
		JobID:          p.JobID,
		RetryNumber:    p.RetryNumber,
		ExceptionCodes: o.cfg.RetryExceptionCodes,
	})
	if err != nil {
		return nil, fmt.Errorf("list not sent entries: %w", err)
	}
	if len(entries) == 0 {
		o.logger.InfoContext(ctx, "nothing to retry, job finished", "job_id", p.JobID, "retry_number", p.RetryNumber)
		return nil, nil
	}

	recipients := make([]model.RecipientTask, 0, len(entries))
	for _, e := range entries {
		recipients = append(recipients, e.Recipient())
	}
	o.logger.InfoContext(ctx, "scheduling retry round",
		"job_id", p.JobID,
		"retry_number", p.RetryNumber+1,
		"recipients", len(recipients),
	)
	return &model.JobPayload{
		JobID:       p.JobID,
		NotifyTo:    p.NotifyTo,
		Recipients:  recipients,
		RetryNumber: p.RetryNumber + 1,
	}, nil
}

// LeafCount is the number of leaf workers spawned for n recipients.
func LeafCount(workerCount, n int) int {
	return max(min(workerCount, n), 0)
}

// Partition assigns recipient i to leaf i mod len(leaves) and injects the job
// id and retry round into every task.
func Partition(p model.JobPayload, leaves []model.WorkerID) ([]core.Task, error) {
	if len(leaves) == 0 {
		return nil, errors.New("no leaf workers")
	}
	tasks := make([]core.Task, 0, len(p.Recipients))
	for i, r := range p.Recipients {
		r.JobID = p.JobID
		r.RetryNumber = p.RetryNumber
		raw, err := json.Marshal(r)
		if err != nil {
			return nil, fmt.Errorf("encode recipient %d: %w", i, err)
		}
		tasks = append(tasks, core.Task{Function: leaves[i%len(leaves)].String(), Payload: raw})
	}
	return tasks, nil
}

func (o *Orchestrator) runRound(ctx context.Context, p model.JobPayload) error {
	started := time.Now()
	leaves := make([]model.WorkerID, LeafCount(o.cfg.WorkerCount, len(p.Recipients)))
	for i := range leaves {
		leaves[i] = o.id.Leaf(i+1, p.RetryNumber)
	}
	o.logger.InfoContext(ctx, "dispatching round",
		"job_id", p.JobID,
		"retry_number", p.RetryNumber,
		"recipients", len(p.Recipients),
		"workers", len(leaves),
	)

	procs, err := o.spawnLeaves(ctx, leaves)
	stopped := false
	stop := func() {
		if !stopped {
			stopped = true
			o.stopLeaves(context.WithoutCancel(ctx), p.JobID, leaves, procs)
		}
	}
	defer stop()
	if err != nil {
		return err
	}
	if err := sleepContext(ctx, o.cfg.SettleDelay); err != nil {
		return err
	}

	if p.RetryNumber == 0 {
		job, err := o.jobs.Create(ctx, &model.CreateJobRequest{
			ID:             p.JobID,
			TotalCount:     len(p.Recipients),
			NotifyTo:       p.NotifyTo,
			OrchestratorID: o.id.String(),
			StartedAt:      o.clock.Now(),
		})
		if err != nil {
			return fmt.Errorf("create job: %w", err)
		}
		metrics.RecordJob(o.metrics, metrics.TransitionStarted, nil)
		notifySafely(ctx, o.logger, o.notifier, model.TemplateJobStarted, job)
	}

	tasks, err := Partition(p, leaves)
	if err != nil {
		return err
	}
	results, err := o.queue.RunTasks(ctx, core.BatchRequest{Tasks: tasks, Timeout: o.cfg.BarrierTimeout})
	round := metrics.RoundMetric{RetryNumber: p.RetryNumber, Tasks: len(tasks)}
	if err != nil {
		round.Err = err
		round.Duration = time.Since(started)
		metrics.RecordRound(o.metrics, round)
		return apperrors.Wrap(err, apperrors.ErrCodeQueue, "dispatch round")
	}
	// A leaf may still finish a task after the barrier gave up on it; only
	// outcomes still missing once every leaf has exited are recorded here.
	stop()
	round.TimedOut = o.recordUnacknowledged(ctx, p, results)
	round.Duration = time.Since(started)
	metrics.RecordRound(o.metrics, round)

	job, err := o.jobs.GetByID(ctx, p.JobID)
	if err != nil {
		return fmt.Errorf("reload job: %w", err)
	}
	if job == nil {
		return apperrors.Newf(apperrors.ErrCodeJobNotFound, "job %s not found after round", p.JobID)
	}
	o.logger.InfoContext(ctx, "round finished",
		"job_id", job.ID,
		"retry_number", p.RetryNumber,
		"status", job.Status,
		"executed", job.ExecutedCount,
		"sent", job.SentCount,
		"not_sent", job.NotSentCount,
		"timed_out", round.TimedOut,
	)
	if job.Status == model.JobStatusCompleted {
		metrics.RecordJob(o.metrics, metrics.TransitionCompleted, nil)
		notifySafely(ctx, o.logger, o.notifier, model.TemplateJobCompleted, job)
	}
	return nil
}

// recordUnacknowledged records a Not Sent outcome for every task the barrier
// did not see acknowledged, and for failed tasks whose leaf could not record
// an outcome itself. Recipients whose rows are already complete for the round
// are skipped. It returns the number of timed out tasks recorded.
func (o *Orchestrator) recordUnacknowledged(ctx context.Context, p model.JobPayload, results []core.TaskResult) int {
	expected := make(map[string]int, len(p.Recipients))
	for _, r := range p.Recipients {
		expected[logNumber(r.To)]++
	}

	timedOut := 0
	for i, res := range results {
		if !res.TimedOut && !res.Failed {
			continue
		}
		if i >= len(p.Recipients) {
			break
		}
		outcome := model.NotSent(model.ExceptionCodeEngine, res.Error)
		if res.TimedOut {
			outcome = model.NotSent(model.ExceptionCodeTimeout, "task not acknowledged before the barrier timeout")
		}

		task := p.Recipients[i]
		task.JobID = p.JobID
		task.RetryNumber = p.RetryNumber
		to := logNumber(task.To)
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
		_, recorded, err := o.jobs.RecordMissingOutcome(rctx, model.NewSentLogEntry(task, to, outcome, o.clock.Now()), expected[to])
		cancel()
		if err != nil {
			o.logger.ErrorContext(ctx, "failed to record unacknowledged task",
				"job_id", p.JobID,
				"function", res.Function,
				"error", err,
			)
			continue
		}
		if !recorded {
			o.logger.InfoContext(ctx, "late outcome already recorded",
				"job_id", p.JobID,
				"function", res.Function,
				"to", to,
			)
			continue
		}
		if res.TimedOut {
			timedOut++
		}
		metrics.RecordSend(o.metrics, task.VendorName, string(outcome.Status), outcome.ExceptionCode)
	}
	return timedOut
}

// logNumber renders a destination the way leaves write it to the sent log.
func logNumber(raw string) string {
	return util.MobileNumberForLog(raw, util.FilterMobileNumber(raw))
}

func (o *Orchestrator) spawnLeaves(ctx context.Context, leaves []model.WorkerID) ([]core.Process, error) {
	procs := make([]core.Process, len(leaves))
	logFile := filepath.Join(o.logDir, LeafWorkerLogFile)

	g, gctx := errgroup.WithContext(ctx)
	for i, leaf := range leaves {
		g.Go(func() error {
			proc, err := o.processes.Spawn(gctx, core.SpawnRequest{
				WorkerID:   leaf.String(),
				ConfigBlob: o.blob,
				LogFile:    logFile,
			})
			if err != nil {
				return fmt.Errorf("spawn %s: %w", leaf, err)
			}
			procs[i] = proc
			return nil
		})
	}
	return procs, g.Wait()
}

// stopLeaves asks every spawned leaf to exit, escalating to a kill after
// leafStopTimeout, then drops the leaf functions. Dropping an absent function
// is a no-op, so this is safe after partial spawns.
func (o *Orchestrator) stopLeaves(ctx context.Context, jobID string, leaves []model.WorkerID, procs []core.Process) {
	var g errgroup.Group
	for i, proc := range procs {
		if proc == nil {
			continue
		}
		g.Go(func() error {
			if err := proc.Signal(syscall.SIGTERM); err != nil {
				o.logger.WarnContext(ctx, "signal leaf", "worker", leaves[i].String(), "error", err)
			}
			wctx, cancel := context.WithTimeout(ctx, leafStopTimeout)
			defer cancel()
			if err := proc.Wait(wctx); errors.Is(err, context.DeadlineExceeded) {
				o.logger.WarnContext(ctx, "leaf did not exit, killing", "worker", leaves[i].String(), "pid", proc.PID())
				if kerr := proc.Signal(os.Kill); kerr != nil {
					o.logger.WarnContext(ctx, "kill leaf", "worker", leaves[i].String(), "error", kerr)
				}
			}
			return nil
		})
	}
	_ = g.Wait()

	for _, leaf := range leaves {
		if err := o.admin.DropFunction(ctx, leaf.String()); err != nil {
			o.logger.WarnContext(ctx, "drop leaf function", "job_id", jobID, "function", leaf.String(), "error", err)
		}
	}
}
