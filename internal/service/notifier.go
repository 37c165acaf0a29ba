package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/target/bgsms/internal/core"
	"github.com/target/bgsms/internal/domain/model"
)

// NotificationDateLayout formats timestamps substituted into templates.
const NotificationDateLayout = "02 Jan 2006 15:04:05"

const unknownDate = "Unknown"

// EmailNotifierOptions groups dependencies for EmailNotifier.
type EmailNotifierOptions struct {
	Templates core.TemplateRepository // Required: template lookup
	Mailer    core.Mailer             // Required: delivery
	Location  *time.Location          // Optional: zone used for dates (UTC)
	// DetailsLink renders the job details URL; nil or "" leaves the placeholder empty.
	DetailsLink func(jobID string) string
	Logger      *slog.Logger
}

// EmailNotifier renders lifecycle templates and mails them to a job's notify_to list.
type EmailNotifier struct {
	templates   core.TemplateRepository
	mailer      core.Mailer
	loc         *time.Location
	detailsLink func(string) string
	logger      *slog.Logger
}

var _ core.JobNotifier = (*EmailNotifier)(nil)

// NewEmailNotifier constructs an EmailNotifier.
func NewEmailNotifier(opts EmailNotifierOptions) (*EmailNotifier, error) {
	if opts.Templates == nil {
		return nil, errors.New("TemplateRepository is required")
	}
	if opts.Mailer == nil {
		return nil, errors.New("Mailer is required")
	}
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	return &EmailNotifier{
		templates:   opts.Templates,
		mailer:      opts.Mailer,
		loc:         loc,
		detailsLink: opts.DetailsLink,
		logger:      loggerOrDefault(opts.Logger, "job_notifier"),
	}, nil
}

// NotifyJob renders template code for job and sends it. An empty notify_to is a no-op.
func (n *EmailNotifier) NotifyJob(ctx context.Context, code model.TemplateCode, job *model.Job) error {
	if job == nil || strings.TrimSpace(job.NotifyTo) == "" {
		return nil
	}
	if !code.Valid() {
		return fmt.Errorf("unknown template code %q", code)
	}
	tmpl, err := n.templates.GetByCode(ctx, code)
	if err != nil {
		return fmt.Errorf("load template %s: %w", code, err)
	}
	if tmpl == nil {
		return fmt.Errorf("template %s not found", code)
	}

	link := ""
	if n.detailsLink != nil {
		link = n.detailsLink(job.ID)
	}
	r := newJobReplacer(job, n.loc, link)
	msg := core.Message{
		SMTPJSON: tmpl.SMTPJSON,
		From:     tmpl.From,
		To:       job.NotifyTo,
		ReplyTo:  tmpl.ReplyTo,
		CC:       tmpl.CC,
		BCC:      tmpl.BCC,
		Subject:  r.Replace(tmpl.Subject),
		HTMLBody: r.Replace(tmpl.Body),
	}
	if err := n.mailer.Send(ctx, msg); err != nil {
		return fmt.Errorf("send %s: %w", code, err)
	}
	n.logger.InfoContext(ctx, "job notification sent", "job_id", job.ID, "template", code)
	return nil
}

// RenderTemplate substitutes the ___JOB_*___ placeholders of text.
func RenderTemplate(text string, job *model.Job, loc *time.Location, detailsLink string) string {
	return newJobReplacer(job, loc, detailsLink).Replace(text)
}

func newJobReplacer(job *model.Job, loc *time.Location, detailsLink string) *strings.Replacer {
	if loc == nil {
		loc = time.UTC
	}
	started := unknownDate
	if !job.StartedAt.IsZero() {
		started = job.StartedAt.In(loc).Format(NotificationDateLayout)
	}
	return strings.NewReplacer(
		"___JOB_DETAILS_URL___", detailsLink,
		"___JOB_ID___", job.ID,
		"___JOB_RETRY_NUMBER___", strconv.Itoa(job.RetryNumber),
		"___JOB_STATUS___", string(job.Status),
		"___JOB_TOTAL_COUNT___", strconv.Itoa(job.TotalCount),
		"___JOB_EXECUTED_COUNT___", strconv.Itoa(job.ExecutedCount),
		"___JOB_SENT_COUNT___", strconv.Itoa(job.SentCount),
		"___JOB_NOT_SENT_COUNT___", strconv.Itoa(job.NotSentCount),
		"___JOB_CANCELED_COUNT___", strconv.Itoa(job.CanceledCount),
		"___JOB_PERCENT_COMPLETED___", job.PercentCompleted,
		"___JOB_TIME_SPENT___", job.TimeSpent,
		"___JOB_STARTED_AT___", started,
		"___JOB_ENDED_AT___", formatOptional(job.EndedAt, loc),
		"___JOB_CANCELED_AT___", formatOptional(job.CanceledAt, loc),
	)
}

func formatOptional(t *time.Time, loc *time.Location) string {
	if t == nil || t.IsZero() {
		return unknownDate
	}
	return t.In(loc).Format(NotificationDateLayout)
}
