package data

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/target/bgsms/internal/domain/model"
	"github.com/target/bgsms/internal/testutil"
)

func TestSentLogRepo_ListNotSent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	jobs := NewJobRepo(db, RepoConfig{})
	logs := NewSentLogRepo(db, RepoConfig{})
	ctx := context.Background()

	id := testutil.JobID("5a")
	createTestJob(t, jobs, id, 4)
	at := testutil.TestTime()

	record := func(retry int, outcome model.SendOutcome, to string, offset time.Duration) {
		task := testutil.NewRecipient().WithTo(to).ForJob(id, retry).Build()
		_, err := jobs.RecordOutcome(ctx, model.NewSentLogEntry(task, to, outcome, at.Add(offset)))
		require.NoError(t, err)
	}
	record(0, model.SendOutcome{Status: model.SendStatusSent}, "1", time.Second)
	record(0, model.NotSent("500", "gateway error"), "2", 2*time.Second)
	record(0, model.NotSent(model.ExceptionCodeTimeout, "barrier"), "3", 3*time.Second)
	record(1, model.NotSent("500", "gateway error"), "2", 4*time.Second)

	all, err := logs.ListNotSent(ctx, model.NotSentQuery{JobID: id, RetryNumber: 0})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "2", all[0].To)
	assert.Equal(t, "3", all[1].To)
	assert.Equal(t, model.SendStatusNotSent, all[0].SentStatus)

	filtered, err := logs.ListNotSent(ctx, model.NotSentQuery{
		JobID: id, RetryNumber: 0, ExceptionCodes: []string{" TIMEOUT ", ""},
	})
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, "3", filtered[0].To)

	round1, err := logs.ListNotSent(ctx, model.NotSentQuery{JobID: id, RetryNumber: 1})
	require.NoError(t, err)
	assert.Len(t, round1, 1)

	history, err := logs.ListByJob(ctx, id)
	require.NoError(t, err)
	assert.Len(t, history, 4)
}

func TestNormalizeCodes(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, normalizeCodes([]string{" a", "", "b "}))
	assert.Empty(t, normalizeCodes(nil))
}
