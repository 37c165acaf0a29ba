package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/target/bgsms/config"
	"github.com/target/bgsms/internal/bootstrap"
	"github.com/target/bgsms/internal/domain/model"
)

const shutdownTimeout = 10 * time.Second

// runner is the role-specific loop of a worker process.
type runner interface {
	Run(ctx context.Context) error
}

func main() {
	logger := bootstrap.InitLogger()

	if len(os.Args) != 3 {
		fmt.Fprintln(os.Stderr, "Usage: bgsms-worker <worker-id> <config-blob>")
		os.Exit(2) //nolint:forbidigo // worker must exit with failure status on bad invocation
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, os.Args[1], os.Args[2]); err != nil {
		logger.ErrorContext(ctx, "worker failed", "worker_id", os.Args[1], "error", err)
		stop()
		os.Exit(1) //nolint:forbidigo // worker must report failure to the spawning process
	}
}

func run(ctx context.Context, logger *slog.Logger, rawID, blob string) error {
	id, err := model.ParseWorkerID(rawID)
	if err != nil {
		return fmt.Errorf("parse worker id: %w", err)
	}
	cfg, err := bootstrap.LoadWorkerConfig(blob)
	if err != nil {
		return err
	}
	// Migrations are applied by the CLI; workers start concurrently.
	cfg.Postgres.RunMigrationsOnStart = false

	logger = logger.With("worker_id", id.String(), "role", string(id.Role))
	logger.InfoContext(ctx, "starting worker", "pid", os.Getpid())

	infra, err := bootstrap.Connect(ctx, bootstrap.InfraOptions{
		Config: cfg,
		Role:   config.QueueRoleWorker,
		Logger: logger,
	})
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if closeErr := infra.Close(closeCtx); closeErr != nil {
			logger.Warn("infra close failed", "error", closeErr)
		}
	}()

	r, err := newRunner(infra, id)
	if err != nil {
		return err
	}
	err = r.Run(ctx)
	if errors.Is(err, context.Canceled) {
		logger.InfoContext(ctx, "worker stopped by signal")
		return nil
	}
	if err == nil {
		logger.InfoContext(ctx, "worker finished")
	}
	return err
}

//nolint:ireturn // the role decides which loop runs.
func newRunner(infra *bootstrap.Infra, id model.WorkerID) (runner, error) {
	switch id.Role {
	case model.WorkerRoleOrchestrator:
		return infra.Orchestrator(id)
	case model.WorkerRoleLeaf:
		return infra.LeafWorker(id)
	default:
		return nil, fmt.Errorf("unsupported worker role %q", id.Role)
	}
}
