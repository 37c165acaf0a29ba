// Package process spawns detached bgsms-worker processes and terminates
// process trees by command-line pattern.
package process

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/target/bgsms/internal/core"
)

const logFileMode = 0o640

// Options configures a Controller.
type Options struct {
	// Executable is the worker binary; it receives <worker-id> <config-blob>.
	Executable string
	// PkillPath is the pkill binary used by KillMatching.
	PkillPath string
	Logger    *slog.Logger
}

// Controller implements core.ProcessController with os/exec.
type Controller struct {
	executable string
	pkill      string
	logger     *slog.Logger
}

// New constructs a Controller.
func New(opts Options) (*Controller, error) {
	if strings.TrimSpace(opts.Executable) == "" {
		return nil, errors.New("worker executable is required")
	}
	pkill := strings.TrimSpace(opts.PkillPath)
	if pkill == "" {
		pkill = "pkill"
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		executable: opts.Executable,
		pkill:      pkill,
		logger:     logger.With("component", "process_controller"),
	}, nil
}

// Spawn starts a detached worker process whose output is appended to req.LogFile.
// The process is not tied to ctx; it keeps running after the submitting CLI exits.
func (c *Controller) Spawn(ctx context.Context, req core.SpawnRequest) (core.Process, error) {
	if req.WorkerID == "" {
		return nil, errors.New("worker id is required")
	}

	var out *os.File
	if req.LogFile != "" {
		if err := os.MkdirAll(filepath.Dir(req.LogFile), 0o750); err != nil {
			return nil, fmt.Errorf("create log dir: %w", err)
		}
		f, err := os.OpenFile(req.LogFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, logFileMode)
		if err != nil {
			return nil, fmt.Errorf("open worker log: %w", err)
		}
		out = f
		defer func() {
			if cerr := f.Close(); cerr != nil {
				c.logger.WarnContext(ctx, "failed to close worker log handle", "error", cerr)
			}
		}()
	}

	//nolint:gosec // executable comes from validated configuration, not user input
	cmd := exec.Command(c.executable, req.WorkerID, req.ConfigBlob)
	if out != nil {
		cmd.Stdout = out
		cmd.Stderr = out
	}
	cmd.SysProcAttr = detachedAttr()

	if err := cmd.Start(); err != nil {
		if notExecutable(err) {
			return nil, fmt.Errorf("start worker %s: %w: %w", req.WorkerID, core.ErrWorkerNotExecutable, err)
		}
		return nil, fmt.Errorf("start worker %s: %w", req.WorkerID, err)
	}

	p := &proc{cmd: cmd, done: make(chan struct{})}
	go func() {
		p.err = cmd.Wait()
		close(p.done)
	}()

	c.logger.InfoContext(ctx, "worker spawned", "worker_id", req.WorkerID, "pid", cmd.Process.Pid)
	return p, nil
}

func notExecutable(err error) bool {
	return errors.Is(err, exec.ErrNotFound) ||
		errors.Is(err, fs.ErrNotExist) ||
		errors.Is(err, fs.ErrPermission) ||
		errors.Is(err, syscall.ENOEXEC)
}

// KillMatching runs `pkill -9 -f pattern`. Exit status 1 (no process matched) is not an error.
func (c *Controller) KillMatching(ctx context.Context, pattern string) error {
	if strings.TrimSpace(pattern) == "" {
		return errors.New("kill pattern is required")
	}
	//nolint:gosec // pattern is a generated worker id
	cmd := exec.CommandContext(ctx, c.pkill, "-9", "-f", pattern)
	output, err := cmd.CombinedOutput()
	if err == nil {
		c.logger.InfoContext(ctx, "killed matching processes", "pattern", pattern)
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
		return nil
	}
	return fmt.Errorf("pkill %q: %w: %s", pattern, err, strings.TrimSpace(string(output)))
}

type proc struct {
	cmd  *exec.Cmd
	done chan struct{}
	err  error
}

func (p *proc) PID() int { return p.cmd.Process.Pid }

func (p *proc) Signal(sig os.Signal) error {
	err := p.cmd.Process.Signal(sig)
	if errors.Is(err, os.ErrProcessDone) {
		return nil
	}
	return err
}

func (p *proc) Wait(ctx context.Context) error {
	select {
	case <-p.done:
		return p.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

var _ core.ProcessController = (*Controller)(nil)
