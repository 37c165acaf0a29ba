// Package fakes contains stateful in-memory test doubles for the bgsms ports.
// They are lightweight and suitable for service tests without a database,
// a Redis server or real processes.
package fakes

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/target/bgsms/internal/core"
	"github.com/target/bgsms/internal/domain/model"
)

var (
	_ core.JobRepository     = (*JobStore)(nil)
	_ core.SentLogRepository = (*JobStore)(nil)
)

// ErrNotCancelable mirrors the storage error returned when a job cannot be canceled.
var ErrNotCancelable = errors.New("job is not in a cancelable state")

// JobStore keeps jobs and their sent log in memory and applies the same
// aggregate rules as the SQL implementation.
type JobStore struct {
	mu   sync.Mutex
	jobs map[string]*model.Job
	log  []model.SentLogEntry

	// RecordErr, when set, is returned by RecordOutcome without recording.
	RecordErr error
}

// NewJobStore returns an empty store.
func NewJobStore() *JobStore {
	return &JobStore{jobs: make(map[string]*model.Job)}
}

// Put inserts or replaces a job.
func (s *JobStore) Put(job model.Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[strings.ToLower(job.ID)] = &job
}

// Entries returns a copy of the sent log.
func (s *JobStore) Entries() []model.SentLogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.SentLogEntry(nil), s.log...)
}

func (s *JobStore) Create(_ context.Context, req *model.CreateJobRequest) (*model.Job, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	id := strings.ToLower(req.ID)
	if _, ok := s.jobs[id]; ok {
		return nil, fmt.Errorf("job %s already exists", id)
	}
	job := &model.Job{
		ID:               id,
		Status:           model.JobStatusStarted,
		TotalCount:       req.TotalCount,
		PercentCompleted: "0%",
		StartedAt:        req.StartedAt,
		NotifyTo:         req.NotifyTo,
		OrchestratorID:   req.OrchestratorID,
	}
	s.jobs[id] = job
	out := *job
	return &out, nil
}

func (s *JobStore) GetByID(_ context.Context, id string) (*model.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[strings.ToLower(id)]
	if !ok {
		return nil, nil //nolint:nilnil // absence is not an error for lookups
	}
	out := *job
	return &out, nil
}

func (s *JobStore) RecordOutcome(_ context.Context, e model.SentLogEntry) (*model.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, _, err := s.record(e, 0)
	return job, err
}

func (s *JobStore) RecordMissingOutcome(_ context.Context, e model.SentLogEntry, expected int) (*model.Job, bool, error) {
	if expected < 1 {
		return nil, false, fmt.Errorf("expected must be positive, got %d", expected)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.record(e, expected)
}

// record applies e under s.mu. A positive limit skips e once its recipient
// has limit rows in the round.
func (s *JobStore) record(e model.SentLogEntry, limit int) (*model.Job, bool, error) {
	if s.RecordErr != nil {
		return nil, false, s.RecordErr
	}
	job, ok := s.jobs[strings.ToLower(e.JobID)]
	if !ok {
		return nil, false, fmt.Errorf("job %s not found", e.JobID)
	}

	var logged, sentBefore, prevNotSent int
	for _, l := range s.log {
		if !strings.EqualFold(l.JobID, e.JobID) || l.To != e.To {
			continue
		}
		switch {
		case l.RetryNumber == e.RetryNumber:
			logged++
			if l.SentStatus == model.SendStatusSent {
				sentBefore++
			}
		case l.RetryNumber == e.RetryNumber-1 && l.SentStatus == model.SendStatusNotSent:
			prevNotSent++
		}
	}
	if limit > 0 && logged >= limit {
		out := *job
		return &out, false, nil
	}
	s.log = append(s.log, e)

	sent := e.SentStatus == model.SendStatusSent
	promote := e.RetryNumber > 0 && sent && sentBefore < prevNotSent
	switch {
	case job.ExecutedCount < job.TotalCount:
		job.ExecutedCount++
		if sent {
			job.SentCount++
		} else {
			job.NotSentCount++
		}
	case promote && job.NotSentCount > 0:
		job.SentCount++
		job.NotSentCount--
	}
	if job.TotalCount > 0 {
		pct := math.Round(float64(job.ExecutedCount) * 100 / float64(job.TotalCount))
		job.PercentCompleted = fmt.Sprintf("%d%%", int(pct))
	}
	if !job.Status.Terminal() {
		if job.ExecutedCount >= job.TotalCount {
			job.Status = model.JobStatusCompleted
			at := e.SentAt
			job.EndedAt = &at
		} else {
			job.Status = model.JobStatusProcessing
		}
	}
	job.TimeSpent = TimeSpent(e.SentAt.Sub(job.StartedAt))
	job.RetryNumber = e.RetryNumber
	out := *job
	return &out, true, nil
}

func (s *JobStore) MarkCanceled(_ context.Context, id string, at time.Time) (*model.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[strings.ToLower(id)]
	if !ok || job.Status.Terminal() {
		return nil, ErrNotCancelable
	}
	job.Status = model.JobStatusCanceled
	job.CanceledCount = max(job.TotalCount-job.ExecutedCount, 0)
	job.CanceledAt = &at
	out := *job
	return &out, nil
}

func (s *JobStore) DeleteStartedBefore(_ context.Context, upto time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, job := range s.jobs {
		if job.StartedAt.After(upto) {
			continue
		}
		delete(s.jobs, id)
		n++
	}
	kept := s.log[:0]
	for _, e := range s.log {
		if _, ok := s.jobs[strings.ToLower(e.JobID)]; ok {
			kept = append(kept, e)
		}
	}
	s.log = kept
	return n, nil
}

func (s *JobStore) ListNotSent(_ context.Context, q model.NotSentQuery) ([]model.SentLogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	codes := make(map[string]bool, len(q.ExceptionCodes))
	for _, c := range q.ExceptionCodes {
		codes[c] = true
	}
	var out []model.SentLogEntry
	for _, e := range s.log {
		if !strings.EqualFold(e.JobID, q.JobID) || e.RetryNumber != q.RetryNumber ||
			e.SentStatus != model.SendStatusNotSent {
			continue
		}
		if len(codes) > 0 && !codes[e.ExceptionCode] {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (s *JobStore) ListByJob(_ context.Context, jobID string) ([]model.SentLogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.SentLogEntry
	for _, e := range s.log {
		if strings.EqualFold(e.JobID, jobID) {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].SentAt.Before(out[j].SentAt) })
	return out, nil
}

// TimeSpent renders d the way the storage layer does: "1 Day 2 Hours 5 Seconds".
func TimeSpent(d time.Duration) string {
	secs := max(int64(d/time.Second), 0)
	parts := []struct {
		n    int64
		unit string
	}{
		{secs / 86400, "Day"},
		{secs % 86400 / 3600, "Hour"},
		{secs % 3600 / 60, "Minute"},
		{secs % 60, "Second"},
	}
	var out []string
	for _, p := range parts {
		switch {
		case p.n == 1:
			out = append(out, "1 "+p.unit)
		case p.n > 1:
			out = append(out, fmt.Sprintf("%d %ss", p.n, p.unit))
		}
	}
	return strings.Join(out, " ")
}
