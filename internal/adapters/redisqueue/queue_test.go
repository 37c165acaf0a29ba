package redisqueue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/target/bgsms/internal/core"
	"github.com/target/bgsms/internal/testutil"
)

func newTestQueue(t *testing.T) *Queue {
	t.Helper()
	client := testutil.SetupTestRedis(t)
	q, err := New(Options{Client: client, KeyPrefix: "bgsms-test"})
	require.NoError(t, err)
	return q
}

func TestNew_RequiresClient(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err)
}

func TestCounter(t *testing.T) {
	assert.Equal(t, int64(3), counter([]any{"3", nil}, 0))
	assert.Equal(t, int64(0), counter([]any{"3", nil}, 1))
	assert.Equal(t, int64(0), counter([]any{"-2"}, 0))
	assert.Equal(t, int64(0), counter(nil, 0))
}

func TestQueue_EnqueueAndWork(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	type payload struct {
		JobID string `json:"job_id"`
	}
	require.NoError(t, q.Enqueue(ctx, "orchestrator-a", payload{JobID: "abc"}))

	status, err := q.Status(ctx)
	require.NoError(t, err)
	require.Len(t, status, 1)
	assert.Equal(t, "orchestrator-a", status[0].Function)
	assert.Equal(t, int64(1), status[0].Queued)

	var got payload
	require.NoError(t, q.Register("orchestrator-a", func(_ context.Context, task core.Task) error {
		return json.Unmarshal(task.Payload, &got)
	}))

	wctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	require.NoError(t, q.Work(wctx, 1))
	assert.Equal(t, "abc", got.JobID)

	status, err = q.Status(ctx)
	require.NoError(t, err)
	require.Len(t, status, 1)
	assert.True(t, status[0].Idle(), "%+v", status[0])
}

func TestQueue_RunTasksCollectsResults(t *testing.T) {
	q := newTestQueue(t)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	var calls atomic.Int32
	require.NoError(t, q.Register("leaf-1", func(_ context.Context, task core.Task) error {
		calls.Add(1)
		if string(task.Payload) == `"bad"` {
			return fmt.Errorf("refused: %w", core.ErrFailTask)
		}
		return nil
	}))
	workDone := make(chan error, 1)
	go func() { workDone <- q.Work(ctx, 3) }()

	results, err := q.RunTasks(ctx, core.BatchRequest{
		Tasks: []core.Task{
			{Function: "leaf-1", Payload: json.RawMessage(`"ok-1"`)},
			{Function: "leaf-1", Payload: json.RawMessage(`"bad"`)},
			{Function: "leaf-1", Payload: json.RawMessage(`"ok-2"`)},
		},
		Timeout: 15 * time.Second,
	})
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.False(t, results[0].Failed)
	assert.True(t, results[1].Failed)
	assert.Contains(t, results[1].Error, "refused")
	assert.False(t, results[2].Failed)
	for _, r := range results {
		assert.False(t, r.TimedOut)
		assert.NotEmpty(t, r.TaskID)
	}
	require.NoError(t, <-workDone)
	assert.Equal(t, int32(3), calls.Load())
}

func TestQueue_RunTasksTimesOutWithoutWorkers(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	start := time.Now()
	results, err := q.RunTasks(ctx, core.BatchRequest{
		Tasks:   []core.Task{{Function: "leaf-idle", Payload: json.RawMessage(`{}`)}},
		Timeout: time.Second,
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].TimedOut)
	assert.True(t, results[0].Failed)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestQueue_HandlerPanicIsReportedAsFailure(t *testing.T) {
	q := newTestQueue(t)
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	require.NoError(t, q.Register("leaf-panic", func(context.Context, core.Task) error {
		panic("boom")
	}))
	go func() { _ = q.Work(ctx, 1) }()

	results, err := q.RunTasks(ctx, core.BatchRequest{
		Tasks:   []core.Task{{Function: "leaf-panic", Payload: json.RawMessage(`{}`)}},
		Timeout: 10 * time.Second,
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].Failed)
	assert.Contains(t, results[0].Error, "boom")
}

func TestQueue_WorkStopsOnContextCancel(t *testing.T) {
	q := newTestQueue(t)
	require.NoError(t, q.Register("leaf-wait", func(context.Context, core.Task) error { return nil }))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- q.Work(ctx, 0) }()

	require.Eventually(t, func() bool {
		status, err := q.Status(context.Background())
		if err != nil {
			return false
		}
		for _, s := range status {
			if s.Function == "leaf-wait" {
				return s.Workers == 1
			}
		}
		return false
	}, 5*time.Second, 50*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop")
	}
}

func TestQueue_DropFunction(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, "leaf-drop", map[string]int{"n": 1}))
	require.NoError(t, q.DropFunction(ctx, "leaf-drop"))
	require.NoError(t, q.DropFunction(ctx, "leaf-drop"))

	status, err := q.Status(ctx)
	require.NoError(t, err)
	assert.Empty(t, status)
}

func TestQueue_WorkRequiresRegistration(t *testing.T) {
	q := newTestQueue(t)
	err := q.Work(context.Background(), 1)
	assert.Error(t, err)
	assert.False(t, errors.Is(err, context.Canceled))
}
