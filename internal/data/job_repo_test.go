package data

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/target/bgsms/internal/domain/model"
	apperrors "github.com/target/bgsms/internal/errors"
	"github.com/target/bgsms/internal/testutil"
)

const testOrchestratorID = "SmsBackgroundWorker-2024-01-01-0123456789abcdef"

func createTestJob(t *testing.T, repo *JobRepo, id string, total int) *model.Job {
	t.Helper()
	job, err := repo.Create(context.Background(), &model.CreateJobRequest{
		ID:             id,
		TotalCount:     total,
		NotifyTo:       "ops@example.com",
		OrchestratorID: testOrchestratorID,
		StartedAt:      testutil.TestTime(),
	})
	require.NoError(t, err)
	return job
}

func outcomeEntry(jobID string, retry int, status model.SendStatus, at time.Time) model.SentLogEntry {
	task := testutil.NewRecipient().ForJob(jobID, retry).Build()
	outcome := model.SendOutcome{Status: status}
	if status == model.SendStatusNotSent {
		outcome = model.NotSent("432", "throttled")
	}
	return model.NewSentLogEntry(task, "92 3001234567", outcome, at)
}

func outcomeFor(jobID, to string, retry int, status model.SendStatus) model.SentLogEntry {
	e := outcomeEntry(jobID, retry, status, testutil.TestTime().Add(time.Minute))
	e.To = to
	return e
}

type counters struct {
	executed, sent, notSent int
}

type outcomeStep struct {
	to     string
	retry  int
	status model.SendStatus
}

func TestJobRepo_CreateAndGet(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := NewJobRepo(db, RepoConfig{})
	ctx := context.Background()

	id := testutil.JobID("a1")
	job := createTestJob(t, repo, id, 3)
	assert.Equal(t, model.JobStatusStarted, job.Status)
	assert.Equal(t, 3, job.TotalCount)
	assert.Equal(t, "0%", job.PercentCompleted)
	assert.Nil(t, job.EndedAt)
	assert.Equal(t, testOrchestratorID, job.OrchestratorID)

	got, err := repo.GetByID(ctx, strings.ToUpper(id))
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, id, got.ID)

	missing, err := repo.GetByID(ctx, testutil.JobID("ff"))
	require.NoError(t, err)
	assert.Nil(t, missing)

	_, err = repo.Create(ctx, &model.CreateJobRequest{ID: "short"})
	assert.True(t, apperrors.IsValidation(err))
}

func TestJobRepo_RecordOutcome_CompletesJob(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := NewJobRepo(db, RepoConfig{})
	ctx := context.Background()

	id := testutil.JobID("b2")
	createTestJob(t, repo, id, 3)
	start := testutil.TestTime()

	job, err := repo.RecordOutcome(ctx, outcomeEntry(id, 0, model.SendStatusSent, start.Add(time.Second)))
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusProcessing, job.Status)
	assert.Equal(t, 1, job.ExecutedCount)
	assert.Equal(t, "33%", job.PercentCompleted)
	assert.Equal(t, "1 Second", job.TimeSpent)

	_, err = repo.RecordOutcome(ctx, outcomeEntry(id, 0, model.SendStatusNotSent, start.Add(2*time.Second)))
	require.NoError(t, err)

	job, err = repo.RecordOutcome(ctx, outcomeEntry(id, 0, model.SendStatusSent, start.Add(time.Hour+2*time.Minute+5*time.Second)))
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusCompleted, job.Status)
	assert.Equal(t, 3, job.ExecutedCount)
	assert.Equal(t, 2, job.SentCount)
	assert.Equal(t, 1, job.NotSentCount)
	assert.Equal(t, "100%", job.PercentCompleted)
	assert.Equal(t, "1 Hour 2 Minutes 5 Seconds", job.TimeSpent)
	require.NotNil(t, job.EndedAt)
}

func TestJobRepo_RecordOutcome_RetryPromotion(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := NewJobRepo(db, RepoConfig{})
	ctx := context.Background()

	id := testutil.JobID("c3")
	createTestJob(t, repo, id, 2)
	at := testutil.TestTime().Add(time.Minute)

	_, err := repo.RecordOutcome(ctx, outcomeEntry(id, 0, model.SendStatusNotSent, at))
	require.NoError(t, err)
	_, err = repo.RecordOutcome(ctx, outcomeEntry(id, 0, model.SendStatusNotSent, at))
	require.NoError(t, err)

	// Failed again in the retry round: counters stay put.
	job, err := repo.RecordOutcome(ctx, outcomeEntry(id, 1, model.SendStatusNotSent, at))
	require.NoError(t, err)
	assert.Equal(t, 2, job.ExecutedCount)
	assert.Equal(t, 2, job.NotSentCount)
	assert.Equal(t, 1, job.RetryNumber)

	job, err = repo.RecordOutcome(ctx, outcomeEntry(id, 1, model.SendStatusSent, at))
	require.NoError(t, err)
	assert.Equal(t, 2, job.ExecutedCount)
	assert.Equal(t, 1, job.SentCount)
	assert.Equal(t, 1, job.NotSentCount)
	assert.Equal(t, model.JobStatusCompleted, job.Status)
	assert.Equal(t, job.ExecutedCount, job.SentCount+job.NotSentCount)
}

func TestJobRepo_RecordOutcome_RepeatedOutcomesCountOnce(t *testing.T) {
	const sent, failed = model.SendStatusSent, model.SendStatusNotSent
	tests := []struct {
		name  string
		total int
		steps []outcomeStep
		want  counters
	}{
		{
			name:  "repeat past total in first round",
			total: 2,
			steps: []outcomeStep{{"a", 0, sent}, {"b", 0, failed}, {"a", 0, sent}, {"b", 0, failed}},
			want:  counters{executed: 2, sent: 1, notSent: 1},
		},
		{
			name:  "repeated retry success converts one failure",
			total: 3,
			steps: []outcomeStep{{"a", 0, sent}, {"b", 0, failed}, {"c", 0, failed}, {"b", 1, sent}, {"b", 1, sent}},
			want:  counters{executed: 3, sent: 2, notSent: 1},
		},
		{
			name:  "retry success without an earlier failure",
			total: 2,
			steps: []outcomeStep{{"a", 0, sent}, {"b", 0, failed}, {"a", 1, sent}},
			want:  counters{executed: 2, sent: 1, notSent: 1},
		},
		{
			name:  "repeated number converts once per failure",
			total: 3,
			steps: []outcomeStep{{"a", 0, failed}, {"a", 0, failed}, {"b", 0, failed}, {"a", 1, sent}, {"a", 1, sent}, {"a", 1, sent}},
			want:  counters{executed: 3, sent: 2, notSent: 1},
		},
		{
			name:  "second retry converts a failure carried over",
			total: 2,
			steps: []outcomeStep{{"a", 0, failed}, {"b", 0, failed}, {"a", 1, failed}, {"a", 2, sent}, {"a", 2, sent}},
			want:  counters{executed: 2, sent: 1, notSent: 1},
		},
	}

	db := testutil.SetupTestDB(t)
	repo := NewJobRepo(db, RepoConfig{})
	ctx := context.Background()

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id := testutil.JobID(fmt.Sprintf("9%d", i))
			createTestJob(t, repo, id, tt.total)
			for _, st := range tt.steps {
				_, err := repo.RecordOutcome(ctx, outcomeFor(id, st.to, st.retry, st.status))
				require.NoError(t, err)
			}

			job, err := repo.GetByID(ctx, id)
			require.NoError(t, err)
			assert.Equal(t, tt.want, counters{job.ExecutedCount, job.SentCount, job.NotSentCount})
			assert.Equal(t, job.ExecutedCount, job.SentCount+job.NotSentCount)
		})
	}
}

func TestJobRepo_RecordMissingOutcome(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := NewJobRepo(db, RepoConfig{})
	ctx := context.Background()

	id := testutil.JobID("f6")
	createTestJob(t, repo, id, 4)
	timeout := func(to string) model.SentLogEntry {
		e := outcomeFor(id, to, 0, model.SendStatusNotSent)
		e.ExceptionCode = model.ExceptionCodeTimeout
		return e
	}

	_, err := repo.RecordOutcome(ctx, outcomeFor(id, "a", 0, model.SendStatusSent))
	require.NoError(t, err)

	job, recorded, err := repo.RecordMissingOutcome(ctx, timeout("a"), 1)
	require.NoError(t, err)
	assert.False(t, recorded, "a late leaf outcome already covers the task")
	assert.Equal(t, 1, job.ExecutedCount)

	job, recorded, err = repo.RecordMissingOutcome(ctx, timeout("b"), 1)
	require.NoError(t, err)
	assert.True(t, recorded)
	assert.Equal(t, 2, job.ExecutedCount)
	assert.Equal(t, 1, job.NotSentCount)

	_, recorded, err = repo.RecordMissingOutcome(ctx, timeout("b"), 1)
	require.NoError(t, err)
	assert.False(t, recorded)

	// A number listed twice in the round is owed two rows.
	_, err = repo.RecordOutcome(ctx, outcomeFor(id, "c", 0, model.SendStatusSent))
	require.NoError(t, err)
	job, recorded, err = repo.RecordMissingOutcome(ctx, timeout("c"), 2)
	require.NoError(t, err)
	assert.True(t, recorded)
	assert.Equal(t, model.JobStatusCompleted, job.Status)
	_, recorded, err = repo.RecordMissingOutcome(ctx, timeout("c"), 2)
	require.NoError(t, err)
	assert.False(t, recorded)

	job, err = repo.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 4, job.ExecutedCount)
	assert.Equal(t, 2, job.SentCount)
	assert.Equal(t, 2, job.NotSentCount)

	_, _, err = repo.RecordMissingOutcome(ctx, timeout("d"), 0)
	assert.True(t, apperrors.IsValidation(err))

	_, err = repo.RecordOutcome(ctx, outcomeFor(testutil.JobID("0e"), "a", 0, model.SendStatusSent))
	assert.ErrorIs(t, err, apperrors.ErrJobNotFound)
}

func TestJobRepo_RecordOutcome_ConcurrentUpdatesAreAtomic(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := NewJobRepo(db, RepoConfig{})
	ctx := context.Background()

	const total = 20
	id := testutil.JobID("d4")
	createTestJob(t, repo, id, total)

	var wg sync.WaitGroup
	errs := make(chan error, total+5)
	for i := range total + 5 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			status := model.SendStatusSent
			if i%3 == 0 {
				status = model.SendStatusNotSent
			}
			_, err := repo.RecordOutcome(ctx, outcomeEntry(id, 0, status, testutil.TestTime().Add(time.Second)))
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	job, err := repo.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, total, job.ExecutedCount)
	assert.Equal(t, job.ExecutedCount, job.SentCount+job.NotSentCount)
	assert.Equal(t, model.JobStatusCompleted, job.Status)
}

func TestJobRepo_RecordOutcome_DoesNotReopenCanceledJob(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := NewJobRepo(db, RepoConfig{})
	ctx := context.Background()

	id := testutil.JobID("e5")
	createTestJob(t, repo, id, 2)
	_, err := repo.MarkCanceled(ctx, id, testutil.TestTime())
	require.NoError(t, err)

	job, err := repo.RecordOutcome(ctx, outcomeEntry(id, 0, model.SendStatusSent, testutil.TestTime()))
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusCanceled, job.Status)
	assert.Nil(t, job.EndedAt)
}

func TestJobRepo_MarkCanceled(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := NewJobRepo(db, RepoConfig{})
	ctx := context.Background()

	id := testutil.JobID("f6")
	createTestJob(t, repo, id, 5)
	_, err := repo.RecordOutcome(ctx, outcomeEntry(id, 0, model.SendStatusSent, testutil.TestTime()))
	require.NoError(t, err)

	at := testutil.TestTime().Add(time.Minute)
	job, err := repo.MarkCanceled(ctx, id, at)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusCanceled, job.Status)
	assert.Equal(t, 4, job.CanceledCount)
	require.NotNil(t, job.CanceledAt)
	assert.True(t, at.Equal(*job.CanceledAt))

	_, err = repo.MarkCanceled(ctx, id, at)
	assert.ErrorIs(t, err, ErrJobNotCancelable)

	_, err = repo.MarkCanceled(ctx, testutil.JobID("99"), at)
	assert.ErrorIs(t, err, ErrJobNotCancelable)
}

func TestJobRepo_DeleteStartedBefore_CascadesSentLog(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := NewJobRepo(db, RepoConfig{})
	logs := NewSentLogRepo(db, RepoConfig{})
	ctx := context.Background()

	oldID := testutil.JobID("01")
	createTestJob(t, repo, oldID, 1)
	_, err := repo.RecordOutcome(ctx, outcomeEntry(oldID, 0, model.SendStatusSent, testutil.TestTime()))
	require.NoError(t, err)

	newID := testutil.JobID("02")
	_, err = repo.Create(ctx, &model.CreateJobRequest{
		ID: newID, TotalCount: 1, OrchestratorID: testOrchestratorID,
		StartedAt: testutil.TestTime().Add(48 * time.Hour),
	})
	require.NoError(t, err)

	n, err := repo.DeleteStartedBefore(ctx, testutil.TestTime())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	gone, err := repo.GetByID(ctx, oldID)
	require.NoError(t, err)
	assert.Nil(t, gone)

	entries, err := logs.ListByJob(ctx, oldID)
	require.NoError(t, err)
	assert.Empty(t, entries)

	kept, err := repo.GetByID(ctx, newID)
	require.NoError(t, err)
	assert.NotNil(t, kept)
}

func TestTruncateEntry(t *testing.T) {
	e := truncateEntry(model.SentLogEntry{
		ExceptionCode: strings.Repeat("x", 50),
		Body:          " " + strings.Repeat("é", maxBodyLen+10),
	})
	assert.Len(t, e.ExceptionCode, maxCodeLen)
	assert.Equal(t, maxBodyLen, len([]rune(e.Body)))
}

func TestRepos_RequireJobID(t *testing.T) {
	repo := NewJobRepo(&sql.DB{}, RepoConfig{})
	_, err := repo.GetByID(context.Background(), " ")
	assert.ErrorIs(t, err, ErrJobIDRequired)
	_, err = repo.RecordOutcome(context.Background(), model.SentLogEntry{})
	assert.ErrorIs(t, err, ErrJobIDRequired)
	_, err = repo.MarkCanceled(context.Background(), "", time.Now())
	assert.ErrorIs(t, err, ErrJobIDRequired)

	_, err = repo.RecordOutcome(context.Background(), model.SentLogEntry{JobID: "x", SentStatus: "Maybe"})
	assert.True(t, apperrors.IsValidation(err))
}
