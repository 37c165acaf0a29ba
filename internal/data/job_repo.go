package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/target/bgsms/internal/data/pgxutil"
	"github.com/target/bgsms/internal/domain/model"
	apperrors "github.com/target/bgsms/internal/errors"
)

// RepoConfig holds configuration options for the repositories.
type RepoConfig struct {
	Logger       *slog.Logger
	TimeProvider TimeProvider
}

// JobRepo provides database operations for job aggregates.
type JobRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
	logger       *slog.Logger
}

// NewJobRepo creates a new JobRepo instance with the given database connection and configuration.
func NewJobRepo(db *sql.DB, cfg RepoConfig) *JobRepo {
	tp := cfg.TimeProvider
	if tp == nil {
		tp = NewRealTimeProvider(time.UTC)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &JobRepo{
		DB:           db,
		timeProvider: tp,
		logger:       logger.With("component", "job_repo"),
	}
}

const jobColumns = `
  job_id,
  status,
  total_count,
  executed_count,
  sent_count,
  not_sent_count,
  canceled_count,
  percent_completed,
  time_spent,
  started_at,
  ended_at,
  canceled_at,
  notify_to,
  retry_number,
  orchestrator_id
`

// rowScanner is satisfied by *sql.Row, *sql.Rows and pgx.Row.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*model.Job, error) {
	var job model.Job
	var status string
	err := row.Scan(
		&job.ID,
		&status,
		&job.TotalCount,
		&job.ExecutedCount,
		&job.SentCount,
		&job.NotSentCount,
		&job.CanceledCount,
		&job.PercentCompleted,
		&job.TimeSpent,
		&job.StartedAt,
		&job.EndedAt,
		&job.CanceledAt,
		&job.NotifyTo,
		&job.RetryNumber,
		&job.OrchestratorID,
	)
	if err != nil {
		return nil, err
	}
	job.Status = model.JobStatus(status)
	return &job, nil
}

// Create inserts the job row written on the first attempt: status Started and zero counters.
func (r *JobRepo) Create(ctx context.Context, req *model.CreateJobRequest) (*model.Job, error) {
	if req == nil {
		return nil, apperrors.Validation("create job request is required")
	}
	if err := req.Validate(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeValidation, err.Error())
	}

	query := `
		INSERT INTO sms_jobs (
			job_id, status, total_count, percent_completed, time_spent,
			started_at, notify_to, retry_number, orchestrator_id
		) VALUES ($1, $2, $3, '0%', '', $4, $5, 0, $6)
		RETURNING ` + jobColumns

	job, err := scanJob(r.DB.QueryRowContext(ctx, query,
		strings.ToLower(req.ID),
		string(model.JobStatusStarted),
		req.TotalCount,
		req.StartedAt,
		req.NotifyTo,
		req.OrchestratorID,
	))
	if err != nil {
		return nil, fmt.Errorf("create job: %w", apperrors.MapDBError(err))
	}
	return job, nil
}

// GetByID returns the job, or (nil, nil) when it does not exist.
func (r *JobRepo) GetByID(ctx context.Context, id string) (*model.Job, error) {
	if strings.TrimSpace(id) == "" {
		return nil, ErrJobIDRequired
	}
	query := `SELECT ` + jobColumns + ` FROM sms_jobs WHERE job_id = $1`
	job, err := scanJob(r.DB.QueryRowContext(ctx, query, strings.ToLower(strings.TrimSpace(id))))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil //nolint:nilnil // absence is not an error for lookups
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", apperrors.MapDBError(err))
	}
	return job, nil
}

// applyOutcomeSQL is the atomic aggregate update. Every SET expression sees the
// pre-update row, so the post-increment executed count is spelled out as
// LEAST(executed_count + 1, total_count).
//
// $1 job_id, $2 sent status, $3 retry number, $4 event time, $5 whether a Sent
// outcome past the guard may move a count from not_sent to sent.
const applyOutcomeSQL = `
	UPDATE sms_jobs SET
		executed_count = CASE
			WHEN executed_count < total_count THEN executed_count + 1
			ELSE executed_count
		END,
		sent_count = CASE
			WHEN $2::text = 'Sent' AND executed_count < total_count THEN sent_count + 1
			WHEN $2::text = 'Sent' AND $5::bool AND not_sent_count > 0 THEN sent_count + 1
			ELSE sent_count
		END,
		not_sent_count = CASE
			WHEN $2::text = 'Not Sent' AND executed_count < total_count THEN not_sent_count + 1
			WHEN $2::text = 'Sent' AND executed_count >= total_count AND $5::bool AND not_sent_count > 0
				THEN not_sent_count - 1
			ELSE not_sent_count
		END,
		percent_completed = CASE
			WHEN total_count > 0
				THEN ROUND(LEAST(executed_count + 1, total_count) * 100.0 / total_count)::int || '%'
			ELSE percent_completed
		END,
		status = CASE
			WHEN status IN ('Completed', 'Canceled') THEN status
			WHEN LEAST(executed_count + 1, total_count) >= total_count THEN 'Completed'
			ELSE 'Processing'
		END,
		ended_at = CASE
			WHEN status NOT IN ('Completed', 'Canceled')
				AND LEAST(executed_count + 1, total_count) >= total_count THEN $4::timestamptz
			ELSE ended_at
		END,
		time_spent = bgsms_time_spent(EXTRACT(EPOCH FROM ($4::timestamptz - started_at))::bigint),
		retry_number = $3::int
	WHERE job_id = $1
	RETURNING ` + jobColumns

const insertSentLogSQL = `
	INSERT INTO sms_sent_log (
		job_id, retry_number, vendor_name, mask, from_json, body, recipient,
		sent_at, sent_status, exception_code, exception_message, response_json
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

// lockJobSQL serializes outcome recording per job so the recipient history
// read below cannot race a concurrent insert.
const lockJobSQL = `SELECT job_id FROM sms_jobs WHERE job_id = $1 FOR UPDATE`

// recipientHistorySQL counts a recipient's rows in round $3: all of them,
// the Sent ones, and the Not Sent ones of the previous round.
const recipientHistorySQL = `
	SELECT
		COUNT(*) FILTER (WHERE retry_number = $3::int),
		COUNT(*) FILTER (WHERE retry_number = $3::int AND sent_status = 'Sent'),
		COUNT(*) FILTER (WHERE retry_number = $3::int - 1 AND sent_status = 'Not Sent')
	FROM sms_sent_log
	WHERE job_id = $1 AND recipient = $2 AND retry_number IN ($3::int, $3::int - 1)`

type recipientHistory struct {
	logged      int
	sent        int
	prevNotSent int
}

// promotes reports whether a Sent outcome in a retry round stands for a
// failure of the previous round that has not been converted yet. A repeated
// delivery of the same outcome finds its earlier Sent row and does not.
func (h recipientHistory) promotes(entry model.SentLogEntry) bool {
	return entry.RetryNumber > 0 && entry.SentStatus == model.SendStatusSent && h.sent < h.prevNotSent
}

// RecordOutcome appends entry to the sent log and applies the aggregate update
// for it in one transaction. It returns the job as updated.
func (r *JobRepo) RecordOutcome(ctx context.Context, entry model.SentLogEntry) (*model.Job, error) {
	job, _, err := r.record(ctx, entry, 0)
	return job, err
}

// RecordMissingOutcome records entry like RecordOutcome, but only while fewer
// than expected rows exist for its recipient in its round. The orchestrator
// uses it for tasks the barrier did not see acknowledged, whose leaf may still
// have recorded a real outcome. The bool reports whether entry was recorded.
func (r *JobRepo) RecordMissingOutcome(ctx context.Context, entry model.SentLogEntry, expected int) (*model.Job, bool, error) {
	if expected < 1 {
		return nil, false, apperrors.ValidationField("expected", "expected must be positive")
	}
	return r.record(ctx, entry, expected)
}

// record implements both recording paths. A positive limit skips the entry
// once the recipient already has limit rows in the round.
func (r *JobRepo) record(ctx context.Context, entry model.SentLogEntry, limit int) (*model.Job, bool, error) {
	if strings.TrimSpace(entry.JobID) == "" {
		return nil, false, ErrJobIDRequired
	}
	if !entry.SentStatus.Valid() {
		return nil, false, apperrors.ValidationField("sent_status", fmt.Sprintf("invalid sent status %q", entry.SentStatus))
	}
	if entry.SentAt.IsZero() {
		entry.SentAt = r.timeProvider.Now()
	}
	entry = truncateEntry(entry)
	jobID := strings.ToLower(entry.JobID)

	var (
		job      *model.Job
		recorded bool
	)
	err := pgxutil.WithPgxTx(ctx, r.DB, pgxutil.TxConfig{
		Opts: &sql.TxOptions{Isolation: sql.LevelReadCommitted},
		Fn: func(tx pgx.Tx) error {
			var locked string
			err := tx.QueryRow(ctx, lockJobSQL, jobID).Scan(&locked)
			if errors.Is(err, pgx.ErrNoRows) {
				return apperrors.Newf(apperrors.ErrCodeJobNotFound, "job %s not found", jobID)
			}
			if err != nil {
				return fmt.Errorf("lock job: %w", err)
			}

			var h recipientHistory
			if err = tx.QueryRow(ctx, recipientHistorySQL, jobID, entry.To, entry.RetryNumber).
				Scan(&h.logged, &h.sent, &h.prevNotSent); err != nil {
				return fmt.Errorf("read recipient history: %w", err)
			}
			if limit > 0 && h.logged >= limit {
				current, err := scanJob(tx.QueryRow(ctx, `SELECT `+jobColumns+` FROM sms_jobs WHERE job_id = $1`, jobID))
				if err != nil {
					return fmt.Errorf("read job: %w", err)
				}
				job = current
				return nil
			}

			if _, err = tx.Exec(ctx, insertSentLogSQL,
				jobID, entry.RetryNumber, entry.VendorName, entry.Mask, entry.FromJSON,
				entry.Body, entry.To, entry.SentAt, string(entry.SentStatus),
				entry.ExceptionCode, entry.ExceptionMessage, entry.ResponseJSON,
			); err != nil {
				return fmt.Errorf("insert sent log: %w", err)
			}

			updated, err := scanJob(tx.QueryRow(ctx, applyOutcomeSQL,
				jobID, string(entry.SentStatus), entry.RetryNumber, entry.SentAt, h.promotes(entry)))
			if err != nil {
				return fmt.Errorf("apply outcome: %w", err)
			}
			job, recorded = updated, true
			return nil
		},
	})
	if err != nil {
		return nil, false, apperrors.MapDBError(err)
	}

	r.logger.DebugContext(ctx, "outcome recorded",
		"job_id", job.ID,
		"retry_number", entry.RetryNumber,
		"sent_status", entry.SentStatus,
		"recorded", recorded,
		"executed", job.ExecutedCount,
		"total", job.TotalCount,
	)
	return job, recorded, nil
}

// MarkCanceled moves a Started or Processing job to Canceled, recording the
// remaining recipients as canceled. It returns ErrJobNotCancelable when the
// job is missing or already terminal.
func (r *JobRepo) MarkCanceled(ctx context.Context, id string, at time.Time) (*model.Job, error) {
	if strings.TrimSpace(id) == "" {
		return nil, ErrJobIDRequired
	}
	query := `
		UPDATE sms_jobs SET
			status = 'Canceled',
			canceled_count = GREATEST(total_count - executed_count, 0),
			canceled_at = $2
		WHERE job_id = $1 AND status IN ('Started', 'Processing')
		RETURNING ` + jobColumns

	job, err := scanJob(r.DB.QueryRowContext(ctx, query, strings.ToLower(strings.TrimSpace(id)), at))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrJobNotCancelable
	}
	if err != nil {
		return nil, fmt.Errorf("cancel job: %w", apperrors.MapDBError(err))
	}
	return job, nil
}

// DeleteStartedBefore deletes every job started at or before upto; sent log
// rows are removed by the cascading foreign key.
func (r *JobRepo) DeleteStartedBefore(ctx context.Context, upto time.Time) (int64, error) {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM sms_jobs WHERE started_at <= $1`, upto)
	if err != nil {
		return 0, fmt.Errorf("delete jobs: %w", apperrors.MapDBError(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete jobs rows affected: %w", err)
	}
	if n > 0 {
		r.logger.InfoContext(ctx, "deleted jobs", "count", n, "upto", upto)
	}
	return n, nil
}

// Column widths of sms_sent_log.
const (
	maxVendorLen    = 100
	maxMaskLen      = 100
	maxFromJSONLen  = 1000
	maxBodyLen      = 1000
	maxRecipientLen = 100
	maxCodeLen      = 20
	maxMessageLen   = 1000
)

func truncateEntry(e model.SentLogEntry) model.SentLogEntry {
	e.VendorName = truncate(strings.TrimSpace(e.VendorName), maxVendorLen)
	e.Mask = truncate(strings.TrimSpace(e.Mask), maxMaskLen)
	e.FromJSON = truncate(strings.TrimSpace(e.FromJSON), maxFromJSONLen)
	e.Body = truncate(strings.TrimSpace(e.Body), maxBodyLen)
	e.To = truncate(strings.TrimSpace(e.To), maxRecipientLen)
	e.ExceptionCode = truncate(strings.TrimSpace(e.ExceptionCode), maxCodeLen)
	e.ExceptionMessage = truncate(strings.TrimSpace(e.ExceptionMessage), maxMessageLen)
	return e
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
