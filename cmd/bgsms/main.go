package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"

	"github.com/target/bgsms/config"
	"github.com/target/bgsms/internal/bootstrap"
)

type commandFn func(ctx *commandContext, args []string) error

type command struct {
	name        string
	description string
	run         commandFn
}

type commandContext struct {
	Ctx    context.Context
	Logger *slog.Logger
	Config config.AppConfig
	Stdout io.Writer
}

func main() {
	logger := bootstrap.InitLoggerTo(os.Stderr)

	if len(os.Args) < 2 {
		if err := printUsage(os.Stdout); err != nil {
			logger.Error("print usage failed", "error", err)
		}
		os.Exit(2) //nolint:forbidigo // CLI must exit with failure status when no command is provided
	}

	cmdName := os.Args[1]
	cmd, ok := commands()[cmdName]
	if !ok {
		if err := writef(os.Stderr, "unknown command %q\n\n", cmdName); err != nil {
			logger.Error("print unknown command message failed", "error", err)
		}
		if err := printUsage(os.Stderr); err != nil {
			logger.Error("print usage failed", "error", err)
		}
		os.Exit(2) //nolint:forbidigo // CLI must exit with failure status when command is unknown
	}

	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		logger.ErrorContext(context.Background(), "load config", "error", err)
		os.Exit(1) //nolint:forbidigo // CLI must signal configuration load failure to shell scripts
	}

	cmdCtx := &commandContext{
		Ctx:    context.Background(),
		Logger: logger,
		Config: cfg,
		Stdout: os.Stdout,
	}
	if runErr := cmd.run(cmdCtx, os.Args[2:]); runErr != nil {
		logger.ErrorContext(cmdCtx.Ctx, "command failed", "command", cmdName, "error", runErr)
		os.Exit(1) //nolint:forbidigo // CLI must propagate command execution failure to callers
	}
}

func commands() map[string]command {
	return map[string]command{
		"init-db": {
			name:        "init-db",
			description: "Create the job, log, vendor and template tables if none exist",
			run:         runInitDB,
		},
		"submit": {
			name:        "submit",
			description: "Submit a bulk job from a CSV file of recipients",
			run:         runSubmit,
		},
		"job": {
			name:        "job",
			description: "Show progress counters for a job",
			run:         runJob,
		},
		"cancel": {
			name:        "cancel",
			description: "Cancel a running job and stop its workers",
			run:         runCancel,
		},
		"delete-log": {
			name:        "delete-log",
			description: `Delete sent-log rows logged at or before "YYYY-MM-DD HH:MM:SS"`,
			run:         runDeleteLog,
		},
		"balance": {
			name:        "balance",
			description: "Query a vendor's remaining SMS balance",
			run:         runBalance,
		},
		"queue-status": {
			name:        "queue-status",
			description: "List queue functions with queued, running and worker counts",
			run:         runQueueStatus,
		},
		"reaper": {
			name:        "reaper",
			description: "Run the maintenance daemon (idle-function reaping, log retention)",
			run:         runReaper,
		},
	}
}

func printUsage(w io.Writer) error {
	if err := writef(w, "Usage: bgsms <command> [flags]\n\n"); err != nil {
		return err
	}
	if err := writef(w, "Available commands:\n"); err != nil {
		return err
	}
	cmds := commands()
	names := make([]string, 0, len(cmds))
	for name := range cmds {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := writef(w, "  %-14s %s\n", name, cmds[name].description); err != nil {
			return err
		}
	}
	return nil
}

func writef(w io.Writer, format string, args ...any) error {
	_, err := fmt.Fprintf(w, format, args...)
	return err
}

func writeln(w io.Writer, s string) error {
	_, err := fmt.Fprintln(w, s)
	return err
}
