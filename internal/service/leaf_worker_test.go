package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/target/bgsms/internal/core"
	"github.com/target/bgsms/internal/domain/model"
	apperrors "github.com/target/bgsms/internal/errors"
	"github.com/target/bgsms/internal/mocks"
	"github.com/target/bgsms/internal/mocks/fakes"
	"github.com/target/bgsms/internal/testutil"
)

func storeWithJob(t *testing.T, total int) *fakes.JobStore {
	t.Helper()
	store := fakes.NewJobStore()
	_, err := store.Create(context.Background(), &model.CreateJobRequest{
		ID:             testutil.JobID("cd"),
		TotalCount:     total,
		OrchestratorID: testOrchestratorID().String(),
		StartedAt:      testutil.TestTime(),
	})
	require.NoError(t, err)
	return store
}

func leafTask() *testutil.RecipientBuilder {
	return testutil.NewRecipient().ForJob(testutil.JobID("cd"), 0)
}

func TestLeafWorkerProcess_Sent(t *testing.T) {
	store := storeWithJob(t, 1)
	sender := newScriptedSender(nil)
	leaf := newTestLeaf(t, store, sender)

	job, err := leaf.Process(context.Background(), leafTask().WithTo("0300-1234567").Build())
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusCompleted, job.Status)
	assert.Equal(t, 1, job.SentCount)
	assert.Equal(t, "1 Minute", job.TimeSpent)

	calls := sender.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "923001234567", calls[0].To)
	assert.Equal(t, "ACME", calls[0].Mask)
	assert.Equal(t, "demo", calls[0].Credentials.String("user"))

	entries := store.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "92 3001234567", entries[0].To)
	assert.Equal(t, model.SendStatusSent, entries[0].SentStatus)
	assert.JSONEq(t, `{"status":"ok"}`, entries[0].ResponseJSON)
}

func TestLeafWorkerProcess_NotSentOutcomes(t *testing.T) {
	inactive := acmeVendors()
	inactive["Dormant"] = &model.Vendor{Name: "Dormant", SendCapability: "acme", Status: model.VendorStatusInactive}
	inactive["Bare"] = &model.Vendor{Name: "Bare", Status: model.VendorStatusActive}
	inactive["Ghost"] = &model.Vendor{Name: "Ghost", SendCapability: "unregistered", Status: model.VendorStatusActive}

	failing := fakes.SendFunc(func(context.Context, model.SendRequest) (model.SendOutcome, error) {
		return model.SendOutcome{}, errors.New("gateway unreachable")
	})
	bogus := fakes.SendFunc(func(context.Context, model.SendRequest) (model.SendOutcome, error) {
		return model.SendOutcome{Status: "Queued"}, nil
	})
	rejecting := fakes.SendFunc(func(context.Context, model.SendRequest) (model.SendOutcome, error) {
		return model.NotSent("432", "insufficient credit"), nil
	})

	tests := []struct {
		name        string
		task        model.RecipientTask
		sender      core.SendCapability
		wantCode    string
		wantMessage string
		wantTo      string
	}{
		{
			name:     "invalid number",
			task:     leafTask().WithTo("021-1234567").Build(),
			wantCode: model.ExceptionCodeInvalidNumber,
			wantTo:   "021-1234567",
		},
		{
			name:        "unknown vendor",
			task:        leafTask().WithVendor("Nope").Build(),
			wantCode:    model.ExceptionCodeEngine,
			wantMessage: "Nope",
		},
		{
			name:     "unknown vendor wins over invalid number",
			task:     leafTask().WithVendor("Nope").WithTo("12345").Build(),
			wantCode: model.ExceptionCodeEngine,
			wantTo:   "12345",
		},
		{
			name:        "inactive vendor",
			task:        leafTask().WithVendor("Dormant").Build(),
			wantCode:    model.ExceptionCodeEngine,
			wantMessage: "Dormant",
		},
		{
			name:     "vendor without send capability",
			task:     leafTask().WithVendor("Bare").Build(),
			wantCode: model.ExceptionCodeEngine,
		},
		{
			name:     "capability not registered",
			task:     leafTask().WithVendor("Ghost").Build(),
			wantCode: model.ExceptionCodeEngine,
		},
		{
			name:        "malformed credentials",
			task:        leafTask().WithFromJSON("{not json").Build(),
			wantCode:    model.ExceptionCodeEngine,
			wantMessage: "from_json",
		},
		{
			name:        "capability error",
			task:        leafTask().Build(),
			sender:      failing,
			wantCode:    model.ExceptionCodeEngine,
			wantMessage: "gateway unreachable",
		},
		{
			name:        "invalid status",
			task:        leafTask().Build(),
			sender:      bogus,
			wantCode:    model.ExceptionCodeEngine,
			wantMessage: "Queued",
		},
		{
			name:        "vendor rejection",
			task:        leafTask().Build(),
			sender:      rejecting,
			wantCode:    "432",
			wantMessage: "insufficient credit",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := storeWithJob(t, 2)
			sender := tt.sender
			if sender == nil {
				sender = newScriptedSender(nil)
			}
			leaf, err := NewLeafWorker(LeafWorkerOptions{
				WorkerID: testOrchestratorID().Leaf(1, 0),
				Jobs:     store,
				Vendors:  inactive,
				Registry: &fakes.Registry{Send: map[string]core.SendCapability{"acme": sender}},
				Logger:   discardLogger(),
			})
			require.NoError(t, err)

			job, err := leaf.Process(context.Background(), tt.task)
			require.NoError(t, err)
			assert.Equal(t, model.JobStatusProcessing, job.Status)
			assert.Equal(t, 1, job.NotSentCount)

			entries := store.Entries()
			require.Len(t, entries, 1)
			assert.Equal(t, model.SendStatusNotSent, entries[0].SentStatus)
			assert.Equal(t, tt.wantCode, entries[0].ExceptionCode)
			if tt.wantMessage != "" {
				assert.Contains(t, entries[0].ExceptionMessage, tt.wantMessage)
			}
			if tt.wantTo != "" {
				assert.Equal(t, tt.wantTo, entries[0].To)
			}
		})
	}
}

func TestLeafWorkerProcess_RecordFailure(t *testing.T) {
	store := storeWithJob(t, 1)
	store.RecordErr = errors.New("connection reset")
	leaf := newTestLeaf(t, store, newScriptedSender(nil))

	_, err := leaf.Process(context.Background(), leafTask().Build())
	require.ErrorContains(t, err, "connection reset")
}

func TestLeafWorkerProcess_RecordsAfterCancel(t *testing.T) {
	store := storeWithJob(t, 1)
	leaf := newTestLeaf(t, store, newScriptedSender(nil))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	job, err := leaf.Process(ctx, leafTask().Build())
	require.NoError(t, err)
	assert.Equal(t, 1, job.ExecutedCount)
}

func TestLeafWorkerProcess_MissingJobID(t *testing.T) {
	leaf := newTestLeaf(t, fakes.NewJobStore(), newScriptedSender(nil))
	_, err := leaf.Process(context.Background(), testutil.NewRecipient().Build())
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
}

func TestLeafWorkerProcess_Throttled(t *testing.T) {
	store := storeWithJob(t, 10)
	leaf, err := NewLeafWorker(LeafWorkerOptions{
		WorkerID:   testOrchestratorID().Leaf(1, 0),
		Jobs:       store,
		Vendors:    acmeVendors(),
		Registry:   &fakes.Registry{Send: map[string]core.SendCapability{"acme": newScriptedSender(nil)}},
		RatePerSec: 1,
		Logger:     discardLogger(),
	})
	require.NoError(t, err)

	ctx := context.Background()
	_, err = leaf.Process(ctx, leafTask().Build())
	require.NoError(t, err, "the first send uses the burst")

	short, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	_, err = leaf.Process(short, leafTask().Build())
	require.Error(t, err, "the second send would exceed the deadline")
	assert.Len(t, store.Entries(), 1)
}

func TestLeafWorkerRun(t *testing.T) {
	store := storeWithJob(t, 2)
	sender := newScriptedSender(nil)
	leaf := newTestLeaf(t, store, sender)
	q := fakes.NewInlineQueue()
	leaf.worker = q

	ctx := context.Background()
	fn := testOrchestratorID().Leaf(1, 0).String()
	require.NoError(t, q.Enqueue(ctx, fn, leafTask().Build()))
	require.NoError(t, q.Enqueue(ctx, fn, leafTask().WithTo("03009999999").Build()))

	require.NoError(t, leaf.Run(ctx))
	assert.Len(t, sender.Calls(), 2)
	job, err := store.GetByID(ctx, testutil.JobID("cd"))
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusCompleted, job.Status)
}

func TestLeafWorkerRun_CanceledIsClean(t *testing.T) {
	ctrl := gomock.NewController(t)
	worker := mocks.NewMockQueueWorker(ctrl)
	fn := testOrchestratorID().Leaf(2, 1).String()
	worker.EXPECT().Register(fn, gomock.Any()).Return(nil)
	worker.EXPECT().Work(gomock.Any(), 0).Return(context.Canceled)

	leaf, err := NewLeafWorker(LeafWorkerOptions{
		WorkerID: testOrchestratorID().Leaf(2, 1),
		Jobs:     fakes.NewJobStore(),
		Vendors:  acmeVendors(),
		Registry: &fakes.Registry{},
		Worker:   worker,
		Logger:   discardLogger(),
	})
	require.NoError(t, err)
	require.NoError(t, leaf.Run(context.Background()))
}

func TestNewLeafWorker_RejectsOrchestratorID(t *testing.T) {
	_, err := NewLeafWorker(LeafWorkerOptions{
		WorkerID: testOrchestratorID(),
		Jobs:     fakes.NewJobStore(),
		Vendors:  acmeVendors(),
		Registry: &fakes.Registry{},
	})
	require.Error(t, err)
}
