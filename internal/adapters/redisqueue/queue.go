// Package redisqueue implements the named-function task queue on Redis.
//
// Layout under the configured key prefix:
//
//	<prefix>:functions          SET of registered function names
//	<prefix>:fn:<name>:queue    LIST of pending task envelopes (LPUSH/BRPOP)
//	<prefix>:fn:<name>:stats    HASH with running and workers counters
//	<prefix>:reply:<batch>      LIST of acknowledgements for one barrier batch
package redisqueue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/target/bgsms/internal/core"
	apperrors "github.com/target/bgsms/internal/errors"
)

const (
	defaultPollInterval = time.Second
	defaultResultTTL    = time.Hour

	statsRunning = "running"
	statsWorkers = "workers"
)

// Options configures a Queue.
type Options struct {
	Client    redis.UniversalClient
	KeyPrefix string
	Logger    *slog.Logger
	// PollInterval bounds each blocking pop so context cancellation is observed.
	PollInterval time.Duration
	// ResultTTL is the lifetime of an acknowledgement list nobody collects.
	ResultTTL time.Duration
}

// Queue is a Redis-backed implementation of core.QueueClient, core.QueueAdmin
// and core.QueueWorker.
type Queue struct {
	client    redis.UniversalClient
	prefix    string
	logger    *slog.Logger
	poll      time.Duration
	resultTTL time.Duration

	mu       sync.RWMutex
	handlers map[string]core.TaskHandler
}

type envelope struct {
	ID         string          `json:"id"`
	Function   string          `json:"function"`
	Payload    json.RawMessage `json:"payload"`
	ReplyTo    string          `json:"reply_to,omitempty"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
}

// New constructs a Queue.
func New(opts Options) (*Queue, error) {
	if opts.Client == nil {
		return nil, errors.New("redis client is required")
	}
	prefix := strings.Trim(strings.TrimSpace(opts.KeyPrefix), ":")
	if prefix == "" {
		prefix = "bgsms"
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	poll := opts.PollInterval
	if poll < time.Second {
		poll = defaultPollInterval
	}
	ttl := opts.ResultTTL
	if ttl <= 0 {
		ttl = defaultResultTTL
	}
	return &Queue{
		client:    opts.Client,
		prefix:    prefix,
		logger:    logger.With("component", "redisqueue"),
		poll:      poll,
		resultTTL: ttl,
		handlers:  make(map[string]core.TaskHandler),
	}, nil
}

func (q *Queue) functionsKey() string { return q.prefix + ":functions" }
func (q *Queue) queueKey(fn string) string { return q.prefix + ":fn:" + fn + ":queue" }
func (q *Queue) statsKey(fn string) string { return q.prefix + ":fn:" + fn + ":stats" }
func (q *Queue) replyKey(batch string) string { return q.prefix + ":reply:" + batch }

// Enqueue submits a fire-and-forget task for function.
func (q *Queue) Enqueue(ctx context.Context, function string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeQueue, "encode task payload")
	}
	return q.push(ctx, envelope{ID: uuid.NewString(), Function: function, Payload: raw})
}

func (q *Queue) push(ctx context.Context, env envelope) error {
	if strings.TrimSpace(env.Function) == "" {
		return apperrors.New(apperrors.ErrCodeQueue, "function name is required")
	}
	env.EnqueuedAt = time.Now().UTC()
	data, err := json.Marshal(env)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeQueue, "encode task envelope")
	}

	pipe := q.client.Pipeline()
	pipe.SAdd(ctx, q.functionsKey(), env.Function)
	pipe.LPush(ctx, q.queueKey(env.Function), data)
	if _, err := pipe.Exec(ctx); err != nil {
		return apperrors.Wrapf(err, apperrors.ErrCodeQueue, "enqueue task for %s", env.Function)
	}
	return nil
}

// RunTasks submits every task with a shared reply list and collects
// acknowledgements until all arrive or req.Timeout elapses.
func (q *Queue) RunTasks(ctx context.Context, req core.BatchRequest) ([]core.TaskResult, error) {
	if len(req.Tasks) == 0 {
		return nil, nil
	}
	batch := uuid.NewString()
	replyKey := q.replyKey(batch)
	defer func() {
		if err := q.client.Del(context.WithoutCancel(ctx), replyKey).Err(); err != nil {
			q.logger.WarnContext(ctx, "failed to delete reply list", "key", replyKey, "error", err)
		}
	}()

	index := make(map[string]int, len(req.Tasks))
	results := make([]core.TaskResult, len(req.Tasks))
	for i, task := range req.Tasks {
		if task.ID == "" {
			task.ID = uuid.NewString()
		}
		index[task.ID] = i
		results[i] = core.TaskResult{TaskID: task.ID, Function: task.Function, TimedOut: true}
		if err := q.push(ctx, envelope{
			ID: task.ID, Function: task.Function, Payload: task.Payload, ReplyTo: replyKey,
		}); err != nil {
			return nil, err
		}
	}

	pending := len(req.Tasks)
	var deadline time.Time
	if req.Timeout > 0 {
		deadline = time.Now().Add(req.Timeout)
	}
	for pending > 0 {
		wait := q.poll
		if !deadline.IsZero() {
			remaining := time.Until(deadline)
			if remaining <= 0 {
				break
			}
			// BRPOP has one-second resolution.
			wait = max(min(wait, remaining), time.Second)
		}

		vals, err := q.client.BRPop(ctx, wait, replyKey).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return results, ctx.Err()
			}
			return results, apperrors.Wrap(err, apperrors.ErrCodeQueue, "wait for task results")
		}

		var res core.TaskResult
		if uerr := json.Unmarshal([]byte(vals[1]), &res); uerr != nil {
			q.logger.WarnContext(ctx, "discarding malformed task result", "error", uerr)
			continue
		}
		i, ok := index[res.TaskID]
		if !ok || !results[i].TimedOut {
			continue
		}
		results[i] = res
		pending--
	}

	for i := range results {
		if results[i].TimedOut {
			results[i].Failed = true
			results[i].Error = "task not acknowledged before timeout"
		}
	}
	return results, nil
}

// Register installs handler for function. Registering twice replaces the handler.
func (q *Queue) Register(function string, handler core.TaskHandler) error {
	if strings.TrimSpace(function) == "" {
		return errors.New("function name is required")
	}
	if handler == nil {
		return errors.New("handler is required")
	}
	q.mu.Lock()
	q.handlers[function] = handler
	q.mu.Unlock()
	return nil
}

func (q *Queue) registered() []string {
	q.mu.RLock()
	defer q.mu.RUnlock()
	names := make([]string, 0, len(q.handlers))
	for name := range q.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (q *Queue) handler(function string) (core.TaskHandler, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	h, ok := q.handlers[function]
	return h, ok
}

// Work pops and handles tasks for the registered functions one at a time.
// It returns nil when ctx is done or maxTasks (when > 0) have been handled.
func (q *Queue) Work(ctx context.Context, maxTasks int) error {
	functions := q.registered()
	if len(functions) == 0 {
		return errors.New("no functions registered")
	}

	members := make([]any, len(functions))
	for i, fn := range functions {
		members[i] = fn
	}
	if err := q.client.SAdd(ctx, q.functionsKey(), members...).Err(); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeQueue, "announce functions")
	}
	if err := q.adjustStats(ctx, functions, statsWorkers, 1); err != nil {
		return err
	}
	defer func() {
		if err := q.adjustStats(context.WithoutCancel(ctx), functions, statsWorkers, -1); err != nil {
			q.logger.WarnContext(ctx, "failed to unregister worker", "error", err)
		}
	}()

	keys := make([]string, len(functions))
	for i, fn := range functions {
		keys[i] = q.queueKey(fn)
	}

	handled := 0
	for maxTasks <= 0 || handled < maxTasks {
		if ctx.Err() != nil {
			return nil
		}
		vals, err := q.client.BRPop(ctx, q.poll, keys...).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return apperrors.Wrap(err, apperrors.ErrCodeQueue, "pop task")
		}

		var env envelope
		if uerr := json.Unmarshal([]byte(vals[1]), &env); uerr != nil {
			q.logger.WarnContext(ctx, "discarding malformed task", "key", vals[0], "error", uerr)
			continue
		}
		q.handle(ctx, env)
		handled++
	}
	return nil
}

func (q *Queue) handle(ctx context.Context, env envelope) {
	bg := context.WithoutCancel(ctx)
	if err := q.adjustStats(bg, []string{env.Function}, statsRunning, 1); err != nil {
		q.logger.WarnContext(ctx, "failed to mark task running", "function", env.Function, "error", err)
	}
	defer func() {
		if err := q.adjustStats(bg, []string{env.Function}, statsRunning, -1); err != nil {
			q.logger.WarnContext(ctx, "failed to clear running task", "function", env.Function, "error", err)
		}
	}()

	result := core.TaskResult{TaskID: env.ID, Function: env.Function}
	if err := q.invoke(ctx, env); err != nil {
		result.Failed = true
		result.Error = err.Error()
		level := slog.LevelError
		if errors.Is(err, core.ErrFailTask) {
			level = slog.LevelInfo
		}
		q.logger.Log(ctx, level, "task failed", "function", env.Function, "task_id", env.ID, "error", err)
	}

	if env.ReplyTo == "" {
		return
	}
	data, err := json.Marshal(result)
	if err != nil {
		q.logger.ErrorContext(ctx, "encode task result", "task_id", env.ID, "error", err)
		return
	}
	pipe := q.client.Pipeline()
	pipe.LPush(bg, env.ReplyTo, data)
	pipe.Expire(bg, env.ReplyTo, q.resultTTL)
	if _, err := pipe.Exec(bg); err != nil {
		q.logger.ErrorContext(ctx, "failed to acknowledge task", "task_id", env.ID, "error", err)
	}
}

func (q *Queue) invoke(ctx context.Context, env envelope) (err error) {
	h, ok := q.handler(env.Function)
	if !ok {
		return fmt.Errorf("no handler registered for %s", env.Function)
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h(ctx, core.Task{ID: env.ID, Function: env.Function, Payload: env.Payload})
}

func (q *Queue) adjustStats(ctx context.Context, functions []string, field string, delta int64) error {
	pipe := q.client.Pipeline()
	for _, fn := range functions {
		pipe.HIncrBy(ctx, q.statsKey(fn), field, delta)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return apperrors.Wrapf(err, apperrors.ErrCodeQueue, "update %s counter", field)
	}
	return nil
}

// Status reports queued, running and worker counts for every known function.
func (q *Queue) Status(ctx context.Context) ([]core.FunctionStatus, error) {
	names, err := q.client.SMembers(ctx, q.functionsKey()).Result()
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeQueue, "list functions")
	}
	sort.Strings(names)

	pipe := q.client.Pipeline()
	lens := make([]*redis.IntCmd, len(names))
	stats := make([]*redis.SliceCmd, len(names))
	for i, fn := range names {
		lens[i] = pipe.LLen(ctx, q.queueKey(fn))
		stats[i] = pipe.HMGet(ctx, q.statsKey(fn), statsRunning, statsWorkers)
	}
	if len(names) > 0 {
		if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeQueue, "read function status")
		}
	}

	out := make([]core.FunctionStatus, 0, len(names))
	for i, fn := range names {
		vals := stats[i].Val()
		out = append(out, core.FunctionStatus{
			Function: fn,
			Queued:   lens[i].Val(),
			Running:  counter(vals, 0),
			Workers:  counter(vals, 1),
		})
	}
	return out, nil
}

// counter reads an HMGET slot, clamping missing or negative values to zero.
func counter(vals []any, i int) int64 {
	if i >= len(vals) {
		return 0
	}
	s, ok := vals[i].(string)
	if !ok {
		return 0
	}
	var n int64
	if _, err := fmt.Sscan(s, &n); err != nil || n < 0 {
		return 0
	}
	return n
}

// DropFunction removes function from the registry along with its queue and counters.
// Dropping an unknown function is not an error.
func (q *Queue) DropFunction(ctx context.Context, function string) error {
	pipe := q.client.Pipeline()
	pipe.SRem(ctx, q.functionsKey(), function)
	pipe.Del(ctx, q.queueKey(function))
	pipe.Del(ctx, q.statsKey(function))
	if _, err := pipe.Exec(ctx); err != nil {
		return apperrors.Wrapf(err, apperrors.ErrCodeQueue, "drop function %s", function)
	}
	return nil
}

var (
	_ core.QueueClient = (*Queue)(nil)
	_ core.QueueAdmin  = (*Queue)(nil)
	_ core.QueueWorker = (*Queue)(nil)
)
