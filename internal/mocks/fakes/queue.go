package fakes

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/target/bgsms/internal/core"
)

var (
	_ core.QueueClient = (*InlineQueue)(nil)
	_ core.QueueAdmin  = (*InlineQueue)(nil)
	_ core.QueueWorker = (*InlineQueue)(nil)
)

// InlineQueue runs tasks synchronously in the calling goroutine.
type InlineQueue struct {
	mu        sync.Mutex
	handlers  map[string]core.TaskHandler
	pending   []core.Task
	functions map[string]core.FunctionStatus

	// Dispatch, when set, handles every RunTasks task instead of the
	// registered handlers. Returning ErrUnacknowledged simulates a timeout.
	Dispatch func(ctx context.Context, task core.Task) error

	Enqueued []core.Task
	Batches  [][]core.Task
	Dropped  []string

	EnqueueErr error
	RunErr     error
	StatusErr  error
}

// ErrUnacknowledged makes a dispatched task come back as timed out.
var ErrUnacknowledged = errors.New("task not acknowledged")

// NewInlineQueue returns an empty queue.
func NewInlineQueue() *InlineQueue {
	return &InlineQueue{
		handlers:  make(map[string]core.TaskHandler),
		functions: make(map[string]core.FunctionStatus),
	}
}

// SetStatus registers function with the given counters.
func (q *InlineQueue) SetStatus(st core.FunctionStatus) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.functions[st.Function] = st
}

func (q *InlineQueue) Enqueue(_ context.Context, function string, payload any) error {
	if q.EnqueueErr != nil {
		return q.EnqueueErr
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	task := core.Task{ID: uuid.NewString(), Function: function, Payload: raw}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.Enqueued = append(q.Enqueued, task)
	q.pending = append(q.pending, task)
	st := q.functions[function]
	st.Function = function
	st.Queued++
	q.functions[function] = st
	return nil
}

func (q *InlineQueue) RunTasks(ctx context.Context, req core.BatchRequest) ([]core.TaskResult, error) {
	if q.RunErr != nil {
		return nil, q.RunErr
	}
	tasks := make([]core.Task, len(req.Tasks))
	for i, t := range req.Tasks {
		t.ID = uuid.NewString()
		tasks[i] = t
	}
	q.mu.Lock()
	q.Batches = append(q.Batches, tasks)
	q.mu.Unlock()

	results := make([]core.TaskResult, len(tasks))
	for i, t := range tasks {
		res := core.TaskResult{TaskID: t.ID, Function: t.Function}
		var err error
		switch {
		case q.Dispatch != nil:
			err = q.Dispatch(ctx, t)
		default:
			h, ok := q.handler(t.Function)
			if !ok {
				err = ErrUnacknowledged
			} else {
				err = h(ctx, t)
			}
		}
		switch {
		case errors.Is(err, ErrUnacknowledged):
			res.Failed, res.TimedOut = true, true
			res.Error = "task not acknowledged before timeout"
		case err != nil:
			res.Failed = true
			res.Error = err.Error()
		}
		results[i] = res
	}
	return results, nil
}

func (q *InlineQueue) handler(function string) (core.TaskHandler, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	h, ok := q.handlers[function]
	return h, ok
}

func (q *InlineQueue) Register(function string, handler core.TaskHandler) error {
	if strings.TrimSpace(function) == "" || handler == nil {
		return errors.New("function and handler are required")
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers[function] = handler
	st := q.functions[function]
	st.Function = function
	st.Workers = 1
	q.functions[function] = st
	return nil
}

// Work drains pending tasks of registered functions and returns when none
// are left or maxTasks tasks have been handled.
func (q *InlineQueue) Work(ctx context.Context, maxTasks int) error {
	handled := 0
	for maxTasks <= 0 || handled < maxTasks {
		if err := ctx.Err(); err != nil {
			return err
		}
		task, h, ok := q.next()
		if !ok {
			return nil
		}
		_ = h(ctx, task)
		handled++
	}
	return nil
}

func (q *InlineQueue) next() (core.Task, core.TaskHandler, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, t := range q.pending {
		h, ok := q.handlers[t.Function]
		if !ok {
			continue
		}
		q.pending = append(q.pending[:i], q.pending[i+1:]...)
		if st, ok := q.functions[t.Function]; ok && st.Queued > 0 {
			st.Queued--
			q.functions[t.Function] = st
		}
		return t, h, true
	}
	return core.Task{}, nil, false
}

func (q *InlineQueue) Status(context.Context) ([]core.FunctionStatus, error) {
	if q.StatusErr != nil {
		return nil, q.StatusErr
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]core.FunctionStatus, 0, len(q.functions))
	for _, st := range q.functions {
		out = append(out, st)
	}
	return out, nil
}

func (q *InlineQueue) DropFunction(_ context.Context, function string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.functions, function)
	delete(q.handlers, function)
	q.Dropped = append(q.Dropped, function)
	return nil
}

// Functions returns the names currently known to the queue.
func (q *InlineQueue) Functions() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]string, 0, len(q.functions))
	for name := range q.functions {
		out = append(out, name)
	}
	return out
}
