package core

import (
	"context"
	"errors"
	"os"
)

// ErrWorkerNotExecutable marks Spawn failures caused by the configured worker
// binary itself: missing, not permitted or not a valid executable.
var ErrWorkerNotExecutable = errors.New("worker executable cannot be run")

// SpawnRequest describes a worker process to start.
type SpawnRequest struct {
	WorkerID string
	// ConfigBlob is the encoded configuration passed as the second argument.
	ConfigBlob string
	// LogFile receives the process's stdout and stderr (appended).
	LogFile string
}

// Process is a handle to a spawned worker process.
type Process interface {
	PID() int
	// Signal delivers sig to the process; delivering to an exited process is not an error.
	Signal(sig os.Signal) error
	// Wait blocks until the process exits or ctx is done.
	Wait(ctx context.Context) error
}

// ProcessController starts worker processes and forcefully terminates process trees.
type ProcessController interface {
	// Spawn wraps ErrWorkerNotExecutable when the worker binary cannot be run.
	Spawn(ctx context.Context, req SpawnRequest) (Process, error)
	// KillMatching forcefully kills every process whose command line contains pattern.
	// No match is not an error.
	KillMatching(ctx context.Context, pattern string) error
}
