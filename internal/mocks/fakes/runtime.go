package fakes

import (
	"context"
	"os"
	"strings"
	"sync"

	"github.com/target/bgsms/internal/core"
	"github.com/target/bgsms/internal/domain/model"
)

var (
	_ core.ProcessController = (*Processes)(nil)
	_ core.Process           = (*Proc)(nil)
	_ core.VendorRepository  = Vendors(nil)
	_ core.VendorRegistry    = (*Registry)(nil)
	_ core.JobNotifier       = (*Notifications)(nil)
	_ core.Mailer            = (*Outbox)(nil)
)

// Processes records spawn and kill requests instead of starting processes.
type Processes struct {
	mu      sync.Mutex
	Spawned []core.SpawnRequest
	Killed  []string
	procs   []*Proc

	// SpawnErr is returned for every spawn whose worker id contains SpawnErrFor
	// (or for every spawn when SpawnErrFor is empty).
	SpawnErr    error
	SpawnErrFor string
	KillErr     error
}

func (p *Processes) Spawn(_ context.Context, req core.SpawnRequest) (core.Process, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.SpawnErr != nil && (p.SpawnErrFor == "" || strings.Contains(req.WorkerID, p.SpawnErrFor)) {
		return nil, p.SpawnErr
	}
	p.Spawned = append(p.Spawned, req)
	proc := &Proc{pid: 1000 + len(p.procs), WorkerID: req.WorkerID, done: make(chan struct{})}
	p.procs = append(p.procs, proc)
	return proc, nil
}

func (p *Processes) KillMatching(_ context.Context, pattern string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.KillErr != nil {
		return p.KillErr
	}
	p.Killed = append(p.Killed, pattern)
	return nil
}

// Procs returns every handle handed out by Spawn.
func (p *Processes) Procs() []*Proc {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*Proc(nil), p.procs...)
}

// SpawnedIDs returns the worker ids of every spawn, in order.
func (p *Processes) SpawnedIDs() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	ids := make([]string, len(p.Spawned))
	for i, r := range p.Spawned {
		ids[i] = r.WorkerID
	}
	return ids
}

// Proc is a process handle that exits on its first signal.
type Proc struct {
	pid      int
	WorkerID string

	mu      sync.Mutex
	signals []os.Signal
	done    chan struct{}
	once    sync.Once
}

func (p *Proc) PID() int { return p.pid }

func (p *Proc) Signal(sig os.Signal) error {
	p.mu.Lock()
	p.signals = append(p.signals, sig)
	p.mu.Unlock()
	p.once.Do(func() { close(p.done) })
	return nil
}

func (p *Proc) Wait(ctx context.Context) error {
	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Signals returns the signals delivered so far.
func (p *Proc) Signals() []os.Signal {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]os.Signal(nil), p.signals...)
}

// Vendors is a VendorRepository keyed by vendor name.
type Vendors map[string]*model.Vendor

func (v Vendors) GetByName(_ context.Context, name string) (*model.Vendor, error) {
	if vendor, ok := v[name]; ok {
		out := *vendor
		return &out, nil
	}
	return nil, nil //nolint:nilnil // absence is not an error for lookups
}

// SendFunc adapts a function to core.SendCapability.
type SendFunc func(ctx context.Context, req model.SendRequest) (model.SendOutcome, error)

func (f SendFunc) Send(ctx context.Context, req model.SendRequest) (model.SendOutcome, error) {
	return f(ctx, req)
}

// BalanceFunc adapts a function to core.BalanceCapability.
type BalanceFunc func(ctx context.Context, vendor string, creds model.Credentials) (model.Balance, error)

func (f BalanceFunc) GetBalance(ctx context.Context, vendor string, creds model.Credentials) (model.Balance, error) {
	return f(ctx, vendor, creds)
}

// Registry is a map-backed VendorRegistry.
type Registry struct {
	Send    map[string]core.SendCapability
	Balance map[string]core.BalanceCapability
}

func (r *Registry) SendCapability(name string) (core.SendCapability, bool) {
	c, ok := r.Send[name]
	return c, ok
}

func (r *Registry) BalanceCapability(name string) (core.BalanceCapability, bool) {
	c, ok := r.Balance[name]
	return c, ok
}

// Notification is one recorded NotifyJob call.
type Notification struct {
	Code model.TemplateCode
	Job  model.Job
}

// Notifications records lifecycle notifications.
type Notifications struct {
	mu   sync.Mutex
	sent []Notification
	Err  error
}

func (n *Notifications) NotifyJob(_ context.Context, code model.TemplateCode, job *model.Job) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, Notification{Code: code, Job: *job})
	return n.Err
}

// Sent returns the recorded notifications.
func (n *Notifications) Sent() []Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Notification(nil), n.sent...)
}

// Codes returns the template codes of the recorded notifications, in order.
func (n *Notifications) Codes() []model.TemplateCode {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]model.TemplateCode, len(n.sent))
	for i, s := range n.sent {
		out[i] = s.Code
	}
	return out
}

// Outbox records mailed messages.
type Outbox struct {
	mu       sync.Mutex
	Messages []core.Message
	Err      error
}

func (o *Outbox) Send(_ context.Context, msg core.Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.Err != nil {
		return o.Err
	}
	o.Messages = append(o.Messages, msg)
	return nil
}
