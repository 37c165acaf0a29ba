package core

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrFailTask may be returned by a TaskHandler to mark its task as failed
// without it being treated as a worker error. The transport never redelivers
// a failed task.
var ErrFailTask = errors.New("task marked as failed")

// Task is one unit of work addressed to a queue function.
type Task struct {
	ID       string          `json:"id"`
	Function string          `json:"function"`
	Payload  json.RawMessage `json:"payload"`
}

// TaskResult is the acknowledgement of a task submitted through RunTasks.
type TaskResult struct {
	TaskID   string `json:"task_id"`
	Function string `json:"function"`
	Failed   bool   `json:"failed"`
	Error    string `json:"error,omitempty"`
	// TimedOut is set locally when the barrier expired before an acknowledgement arrived.
	TimedOut bool `json:"-"`
}

// TaskHandler processes one task for a registered function.
type TaskHandler func(ctx context.Context, task Task) error

// FunctionStatus is the administrative view of one queue function.
type FunctionStatus struct {
	Function string
	Queued   int64
	Running  int64
	Workers  int64
}

// Idle reports whether nothing is queued, running or registered for the function.
func (s FunctionStatus) Idle() bool {
	return s.Queued == 0 && s.Running == 0 && s.Workers == 0
}

// BatchRequest groups a barrier submission.
type BatchRequest struct {
	Tasks   []Task
	Timeout time.Duration
}

// QueueClient is the submitting side of the named-function queue.
type QueueClient interface {
	// Enqueue submits a fire-and-forget task.
	Enqueue(ctx context.Context, function string, payload any) error
	// RunTasks submits every task and blocks until all are acknowledged or the
	// timeout elapses. Results are returned in submission order; tasks without
	// an acknowledgement have TimedOut set.
	RunTasks(ctx context.Context, req BatchRequest) ([]TaskResult, error)
}

// QueueAdmin exposes per-function introspection and de-registration.
type QueueAdmin interface {
	Status(ctx context.Context) ([]FunctionStatus, error)
	DropFunction(ctx context.Context, function string) error
}

// QueueWorker registers handlers and processes tasks until its context ends.
type QueueWorker interface {
	Register(function string, handler TaskHandler) error
	// Work processes tasks one at a time. When maxTasks > 0 it returns after
	// that many tasks; otherwise it runs until ctx is done.
	Work(ctx context.Context, maxTasks int) error
}
