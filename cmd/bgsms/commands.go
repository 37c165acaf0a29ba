package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/target/bgsms/config"
	"github.com/target/bgsms/internal/bootstrap"
	"github.com/target/bgsms/internal/data"
	"github.com/target/bgsms/internal/devseed"
)

const (
	defaultMigrationTimeout = 5 * time.Minute
	defaultCommandTimeout   = 2 * time.Minute
	infraCloseTimeout       = 5 * time.Second
)

// withInfra connects with the client queue role and runs fn under ctx.
func withInfra(ctx context.Context, cmdCtx *commandContext, scrapable bool, fn func(context.Context, *bootstrap.Infra) error) error {
	infra, err := bootstrap.Connect(ctx, bootstrap.InfraOptions{
		Config:    cmdCtx.Config,
		Role:      config.QueueRoleClient,
		Scrapable: scrapable,
		Logger:    cmdCtx.Logger,
	})
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), infraCloseTimeout)
		defer cancel()
		if closeErr := infra.Close(closeCtx); closeErr != nil {
			cmdCtx.Logger.Warn("infra close failed", "error", closeErr)
		}
	}()
	return fn(ctx, infra)
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	return fs
}

// singleArg parses flags and returns the one required positional argument.
func singleArg(fs *flag.FlagSet, args []string, what string) (string, error) {
	if err := fs.Parse(args); err != nil {
		return "", err
	}
	if fs.NArg() != 1 || strings.TrimSpace(fs.Arg(0)) == "" {
		return "", fmt.Errorf("%s: expected exactly one %s argument", fs.Name(), what)
	}
	return strings.TrimSpace(fs.Arg(0)), nil
}

func runInitDB(cmdCtx *commandContext, args []string) error {
	fs := newFlagSet("init-db")
	timeout := fs.Duration("timeout", defaultMigrationTimeout, "Maximum time to wait for schema creation")
	seedDev := fs.Bool("seed-dev", false, "Insert development vendors (DryRun, Gateway, Retired)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmdCtx.Ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	db, err := bootstrap.ConnectDB(ctx, bootstrap.DatabaseConfig{
		DBConfig: cmdCtx.Config.Postgres,
		Logger:   cmdCtx.Logger,
	})
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			cmdCtx.Logger.Warn("db close failed", "error", closeErr)
		}
	}()

	schema := data.NewSchemaRepo(db, data.RepoConfig{
		Logger:       cmdCtx.Logger,
		TimeProvider: data.NewRealTimeProvider(cmdCtx.Config.Location()),
	})
	created, err := schema.CreateStructure(ctx)
	if err != nil {
		return err
	}
	msg := "schema already present"
	if created {
		msg = "schema created"
	}
	if err := writeln(cmdCtx.Stdout, msg); err != nil {
		return err
	}

	if *seedDev {
		if err := devseed.Run(ctx, devseed.NewServices(db), cmdCtx.Logger); err != nil {
			return err
		}
		return writeln(cmdCtx.Stdout, "development vendors seeded")
	}
	return nil
}

func runSubmit(cmdCtx *commandContext, args []string) error {
	fs := newFlagSet("submit")
	file := fs.String("file", "", "CSV file with vendor_name,mask,from_json,body,to columns (required, - for stdin)")
	notify := fs.String("notify", "", `Addresses notified of job progress ("a@x.com: Name; b@y.com")`)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*file) == "" {
		return errors.New("submit: -file is required")
	}

	recipients, err := readRecipientsFile(*file)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, defaultCommandTimeout)
	defer cancel()

	return withInfra(ctx, cmdCtx, false, func(ctx context.Context, infra *bootstrap.Infra) error {
		jobs, err := infra.JobService(ctx)
		if err != nil {
			return err
		}
		jobID, err := jobs.Submit(ctx, recipients, *notify)
		if err != nil {
			return err
		}
		cmdCtx.Logger.InfoContext(ctx, "job submitted", "job_id", jobID, "recipients", len(recipients))
		return writeln(cmdCtx.Stdout, jobID)
	})
}

func runJob(cmdCtx *commandContext, args []string) error {
	fs := newFlagSet("job")
	asJSON := fs.Bool("json", false, "Print the job as JSON")
	jobID, err := singleArg(fs, args, "job id")
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, defaultCommandTimeout)
	defer cancel()

	return withInfra(ctx, cmdCtx, false, func(ctx context.Context, infra *bootstrap.Infra) error {
		jobs, err := infra.JobService(ctx)
		if err != nil {
			return err
		}
		job, err := jobs.GetJobByID(ctx, jobID)
		if err != nil {
			return err
		}
		if *asJSON {
			enc := json.NewEncoder(cmdCtx.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(job)
		}
		return printJob(cmdCtx.Stdout, job)
	})
}

func runCancel(cmdCtx *commandContext, args []string) error {
	jobID, err := singleArg(newFlagSet("cancel"), args, "job id")
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, defaultCommandTimeout)
	defer cancel()

	return withInfra(ctx, cmdCtx, false, func(ctx context.Context, infra *bootstrap.Infra) error {
		jobs, err := infra.JobService(ctx)
		if err != nil {
			return err
		}
		job, err := jobs.Cancel(ctx, jobID)
		if err != nil {
			return err
		}
		return printJob(cmdCtx.Stdout, job)
	})
}

func runDeleteLog(cmdCtx *commandContext, args []string) error {
	fs := newFlagSet("delete-log")
	if err := fs.Parse(args); err != nil {
		return err
	}
	// The timestamp contains a space; accept it quoted or as two arguments.
	upto := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if upto == "" {
		return errors.New(`delete-log: expected a "YYYY-MM-DD HH:MM:SS" argument`)
	}

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, defaultCommandTimeout)
	defer cancel()

	return withInfra(ctx, cmdCtx, false, func(ctx context.Context, infra *bootstrap.Infra) error {
		jobs, err := infra.JobService(ctx)
		if err != nil {
			return err
		}
		deleted, err := jobs.DeleteSentLog(ctx, upto)
		if err != nil {
			return err
		}
		return writef(cmdCtx.Stdout, "deleted %d sent-log rows\n", deleted)
	})
}

func runBalance(cmdCtx *commandContext, args []string) error {
	fs := newFlagSet("balance")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 2 {
		return errors.New("balance: expected <vendor> <from_json> arguments")
	}
	vendor, fromJSON := fs.Arg(0), fs.Arg(1)

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, defaultCommandTimeout)
	defer cancel()

	return withInfra(ctx, cmdCtx, false, func(ctx context.Context, infra *bootstrap.Infra) error {
		jobs, err := infra.JobService(ctx)
		if err != nil {
			return err
		}
		balance, err := jobs.GetSmsBalance(ctx, vendor, fromJSON)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmdCtx.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(balance)
	})
}

func runQueueStatus(cmdCtx *commandContext, args []string) error {
	fs := newFlagSet("queue-status")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, defaultCommandTimeout)
	defer cancel()

	return withInfra(ctx, cmdCtx, false, func(ctx context.Context, infra *bootstrap.Infra) error {
		statuses, err := infra.Queue.Status(ctx)
		if err != nil {
			return err
		}
		return printQueueStatus(cmdCtx.Stdout, statuses)
	})
}

func runReaper(cmdCtx *commandContext, args []string) error {
	fs := newFlagSet("reaper")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmdCtx.Ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	return withInfra(ctx, cmdCtx, true, func(ctx context.Context, infra *bootstrap.Infra) error {
		runner, err := infra.ReaperRunner()
		if err != nil {
			return err
		}
		return runner.Run(ctx)
	})
}
