package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"
)

// AppConfig is the configuration shared by the CLI, the orchestrator and the
// leaf workers. The CLI loads it from the environment; worker processes
// receive it encoded on their command line (see Encode/Decode) and treat it
// as read-only for the lifetime of the process.
//
// See individual files for the available environment variables:
//   - database.go: Postgres and Redis queue transport
//   - orchestration.go: worker fan-out, retry and barrier tuning
//   - reaper.go: maintenance daemon schedule
//   - observability.go: metrics sinks
type AppConfig struct {
	// LogDir receives per-role worker log files.
	LogDir string `env:"LOG_DIR" envDefault:"/var/log/bgsms"`

	// WorkerExecutable is the bgsms-worker binary spawned for orchestrator and leaf roles.
	WorkerExecutable string `env:"WORKER_EXECUTABLE"`

	// Timezone is the IANA zone used for job timestamps and log-retention input.
	Timezone string `env:"TIMEZONE" envDefault:"UTC"`

	// JobDetailsURL is an optional link template; "{job_id}" is substituted.
	JobDetailsURL string `env:"JOB_DETAILS_URL"`

	Orchestration OrchestrationConfig
	Commands      CommandConfig

	Postgres DBConfig    `envPrefix:"DB_"`
	Redis    RedisConfig `envPrefix:"REDIS_"`
	Queue    QueueConfig `envPrefix:"QUEUE_"`

	Reaper        ReaperConfig
	Observability ObservabilityConfig
}

// CommandConfig holds paths of external process-control utilities.
type CommandConfig struct {
	Pkill string `env:"PKILL_PATH" envDefault:"/usr/bin/pkill"`
}

// Sanitize applies guardrails to configuration values loaded from env.
// Values that make the configuration unusable are left for Validate to report.
func (c *AppConfig) Sanitize() {
	c.LogDir = strings.TrimSpace(c.LogDir)
	c.WorkerExecutable = strings.TrimSpace(c.WorkerExecutable)
	c.JobDetailsURL = strings.TrimSpace(c.JobDetailsURL)
	c.Commands.Pkill = strings.TrimSpace(c.Commands.Pkill)
	if c.Timezone = strings.TrimSpace(c.Timezone); c.Timezone == "" {
		c.Timezone = "UTC"
	}

	c.Orchestration.Sanitize()
	c.Queue.Sanitize()
	c.Reaper.Sanitize()
	c.Observability.Sanitize()
}

// Validate reports every problem that prevents jobs from being submitted.
func (c *AppConfig) Validate() error {
	var errs []error

	if err := validateWritableDir(c.LogDir); err != nil {
		errs = append(errs, fmt.Errorf("LOG_DIR: %w", err))
	}
	if err := validateExecutable(c.WorkerExecutable); err != nil {
		errs = append(errs, fmt.Errorf("WORKER_EXECUTABLE: %w", err))
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("TIMEZONE: %w", err))
	}
	if c.JobDetailsURL != "" {
		if _, err := url.Parse(c.JobDetailsURL); err != nil {
			errs = append(errs, fmt.Errorf("JOB_DETAILS_URL: %w", err))
		}
	}
	if c.Commands.Pkill == "" {
		errs = append(errs, errors.New("PKILL_PATH: must not be empty"))
	}
	if err := c.Orchestration.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.Postgres.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.Redis.Validate(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// Location returns the configured time zone, falling back to UTC.
func (c *AppConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// JobDetailsLink renders JobDetailsURL for a job; empty when unset.
func (c *AppConfig) JobDetailsLink(jobID string) string {
	if c.JobDetailsURL == "" {
		return ""
	}
	return strings.ReplaceAll(c.JobDetailsURL, "{job_id}", jobID)
}

func validateWritableDir(dir string) error {
	if dir == "" {
		return errors.New("must not be empty")
	}
	info, err := os.Stat(dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}
	f, err := os.CreateTemp(dir, ".bgsms-write-check-*")
	if err != nil {
		return fmt.Errorf("%s is not writable: %w", dir, err)
	}
	name := f.Name()
	return errors.Join(f.Close(), os.Remove(name))
}

func validateExecutable(path string) error {
	if path == "" {
		return errors.New("must not be empty")
	}
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}
	if info.Mode().Perm()&0o111 == 0 {
		return fmt.Errorf("%s is not executable", path)
	}
	return nil
}
