package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/target/bgsms/internal/core"
	"github.com/target/bgsms/internal/domain/model"
)

func printJob(out io.Writer, job *model.Job) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	rows := []struct {
		label string
		value any
	}{
		{"Job ID", job.ID},
		{"Status", job.Status},
		{"Total", job.TotalCount},
		{"Executed", job.ExecutedCount},
		{"Sent", job.SentCount},
		{"Not Sent", job.NotSentCount},
		{"Canceled", job.CanceledCount},
		{"Remaining", job.RemainingCount()},
		{"Percent Completed", job.PercentCompleted},
		{"Time Spent", job.TimeSpent},
		{"Retry Number", job.RetryNumber},
		{"Started At", formatTime(&job.StartedAt)},
		{"Ended At", formatTime(job.EndedAt)},
		{"Canceled At", formatTime(job.CanceledAt)},
		{"Orchestrator", job.OrchestratorID},
	}
	for _, row := range rows {
		if err := writef(w, "%s\t%v\n", row.label, row.value); err != nil {
			return fmt.Errorf("write %s: %w", row.label, err)
		}
	}
	return w.Flush()
}

func printQueueStatus(out io.Writer, statuses []core.FunctionStatus) error {
	if len(statuses) == 0 {
		return writeln(out, "no queue functions registered")
	}
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	if err := writeln(w, "Function\tQueued\tRunning\tWorkers\tIdle"); err != nil {
		return fmt.Errorf("write queue status header: %w", err)
	}
	for _, s := range statuses {
		if err := writef(w, "%s\t%d\t%d\t%d\t%t\n", s.Function, s.Queued, s.Running, s.Workers, s.Idle()); err != nil {
			return fmt.Errorf("write queue status for %q: %w", s.Function, err)
		}
	}
	return w.Flush()
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "-"
	}
	return t.Format(time.DateTime)
}
