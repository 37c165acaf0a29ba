// Package model defines the data types exchanged between the job facade, the
// orchestrator, the leaf workers and storage.
package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// JobStatus represents the lifecycle state of a bulk-send job.
//
//nolint:recvcheck // UnmarshalText needs pointer receiver, Valid needs value receiver
type JobStatus string

const (
	// JobStatusStarted is set when the job row is created, before any send is recorded.
	JobStatusStarted JobStatus = "Started"
	// JobStatusProcessing is set once at least one send outcome has been recorded.
	JobStatusProcessing JobStatus = "Processing"
	// JobStatusCompleted is set when every recipient has been executed.
	JobStatusCompleted JobStatus = "Completed"
	// JobStatusCanceled is set by cancellation.
	JobStatusCanceled JobStatus = "Canceled"
)

// Valid returns true if the JobStatus is valid.
func (s JobStatus) Valid() bool {
	return s == JobStatusStarted || s == JobStatusProcessing || s == JobStatusCompleted ||
		s == JobStatusCanceled
}

// Terminal reports whether no further transitions are allowed.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusCanceled
}

// UnmarshalText implements encoding.TextUnmarshaler, accepting any letter case.
func (s *JobStatus) UnmarshalText(text []byte) error {
	v := strings.TrimSpace(string(text))
	for _, candidate := range []JobStatus{
		JobStatusStarted, JobStatusProcessing, JobStatusCompleted, JobStatusCanceled,
	} {
		if strings.EqualFold(v, string(candidate)) {
			*s = candidate
			return nil
		}
	}
	return fmt.Errorf("invalid JobStatus: %q", v)
}

// JobIDLength is the number of hex characters in a job id.
const JobIDLength = 64

// Job is the durable aggregate tracking one bulk-send job.
type Job struct {
	ID               string     `json:"job_id"                db:"job_id"`
	Status           JobStatus  `json:"status"                db:"status"`
	TotalCount       int        `json:"total_count"           db:"total_count"`
	ExecutedCount    int        `json:"executed_count"        db:"executed_count"`
	SentCount        int        `json:"sent_count"            db:"sent_count"`
	NotSentCount     int        `json:"not_sent_count"        db:"not_sent_count"`
	CanceledCount    int        `json:"canceled_count"        db:"canceled_count"`
	PercentCompleted string     `json:"percent_completed"     db:"percent_completed"`
	TimeSpent        string     `json:"time_spent"            db:"time_spent"`
	StartedAt        time.Time  `json:"started_at"            db:"started_at"`
	EndedAt          *time.Time `json:"ended_at,omitempty"    db:"ended_at"`
	CanceledAt       *time.Time `json:"canceled_at,omitempty" db:"canceled_at"`
	NotifyTo         string     `json:"notify_to"             db:"notify_to"`
	RetryNumber      int        `json:"retry_number"          db:"retry_number"`
	OrchestratorID   string     `json:"orchestrator_id"       db:"orchestrator_id"`
}

// RemainingCount is the number of recipients not yet executed.
func (j *Job) RemainingCount() int {
	if n := j.TotalCount - j.ExecutedCount; n > 0 {
		return n
	}
	return 0
}

// CreateJobRequest carries the fields persisted on the first attempt of a job.
type CreateJobRequest struct {
	ID             string
	TotalCount     int
	NotifyTo       string
	OrchestratorID string
	StartedAt      time.Time
}

// Validate validates the CreateJobRequest fields.
func (r *CreateJobRequest) Validate() error {
	if len(r.ID) != JobIDLength {
		return fmt.Errorf("job id must be %d characters", JobIDLength)
	}
	if r.TotalCount < 1 {
		return errors.New("total count must be >= 1")
	}
	if strings.TrimSpace(r.OrchestratorID) == "" {
		return errors.New("orchestrator id is required")
	}
	if r.StartedAt.IsZero() {
		return errors.New("started at is required")
	}
	return nil
}

// JobPayload is the queue payload delivered to an orchestrator, once per job.
// Retry rounds are executed inside the same orchestrator with a fresh payload value.
type JobPayload struct {
	JobID       string          `json:"job_id"`
	NotifyTo    string          `json:"notify_to"`
	Recipients  []RecipientTask `json:"recipients"`
	RetryNumber int             `json:"retry_number"`
}

// Validate checks the payload before dispatch.
func (p *JobPayload) Validate() error {
	if len(p.JobID) != JobIDLength {
		return fmt.Errorf("job id must be %d characters", JobIDLength)
	}
	if p.RetryNumber < 0 {
		return errors.New("retry number must be >= 0")
	}
	if len(p.Recipients) == 0 {
		return errors.New("recipients must not be empty")
	}
	return nil
}

