package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/target/bgsms/internal/domain/model"
	apperrors "github.com/target/bgsms/internal/errors"
)

// SentLogRepo reads the append-only sent log. Writes happen through
// JobRepo.RecordOutcome so the log row and the aggregate stay consistent.
type SentLogRepo struct {
	DB     *sql.DB
	logger *slog.Logger
}

// NewSentLogRepo creates a new SentLogRepo.
func NewSentLogRepo(db *sql.DB, cfg RepoConfig) *SentLogRepo {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &SentLogRepo{DB: db, logger: logger.With("component", "sent_log_repo")}
}

const sentLogColumns = `
  job_id,
  retry_number,
  vendor_name,
  mask,
  from_json,
  body,
  recipient,
  sent_at,
  sent_status,
  exception_code,
  exception_message,
  response_json
`

// ListNotSent returns the Not Sent entries of one round in send order. When
// q.ExceptionCodes is non-empty only entries with one of those codes match.
func (r *SentLogRepo) ListNotSent(ctx context.Context, q model.NotSentQuery) ([]model.SentLogEntry, error) {
	if strings.TrimSpace(q.JobID) == "" {
		return nil, ErrJobIDRequired
	}

	query := `SELECT ` + sentLogColumns + `
		FROM sms_sent_log
		WHERE job_id = $1 AND retry_number = $2 AND sent_status = $3`
	args := []any{strings.ToLower(q.JobID), q.RetryNumber, string(model.SendStatusNotSent)}

	if codes := normalizeCodes(q.ExceptionCodes); len(codes) > 0 {
		query += ` AND exception_code = ANY($4)`
		args = append(args, codes)
	}
	query += ` ORDER BY sent_at ASC, id ASC`

	return r.list(ctx, query, args...)
}

// ListByJob returns every entry of a job across all rounds in send order.
func (r *SentLogRepo) ListByJob(ctx context.Context, jobID string) ([]model.SentLogEntry, error) {
	if strings.TrimSpace(jobID) == "" {
		return nil, ErrJobIDRequired
	}
	query := `SELECT ` + sentLogColumns + `
		FROM sms_sent_log
		WHERE job_id = $1
		ORDER BY retry_number ASC, sent_at ASC, id ASC`
	return r.list(ctx, query, strings.ToLower(jobID))
}

func (r *SentLogRepo) list(ctx context.Context, query string, args ...any) (entries []model.SentLogEntry, err error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query sent log: %w", apperrors.MapDBError(err))
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			err = errors.Join(err, fmt.Errorf("close rows: %w", cerr))
		}
	}()

	for rows.Next() {
		var e model.SentLogEntry
		var status string
		if scanErr := rows.Scan(
			&e.JobID,
			&e.RetryNumber,
			&e.VendorName,
			&e.Mask,
			&e.FromJSON,
			&e.Body,
			&e.To,
			&e.SentAt,
			&status,
			&e.ExceptionCode,
			&e.ExceptionMessage,
			&e.ResponseJSON,
		); scanErr != nil {
			return nil, fmt.Errorf("scan sent log: %w", scanErr)
		}
		e.SentStatus = model.SendStatus(status)
		entries = append(entries, e)
	}
	if iterErr := rows.Err(); iterErr != nil {
		return nil, fmt.Errorf("iterate sent log: %w", apperrors.MapDBError(iterErr))
	}
	return entries, nil
}

func normalizeCodes(codes []string) []string {
	out := make([]string, 0, len(codes))
	for _, c := range codes {
		if c = strings.TrimSpace(c); c != "" {
			out = append(out, c)
		}
	}
	return out
}
