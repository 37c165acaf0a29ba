package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/target/bgsms/internal/core"
	"github.com/target/bgsms/internal/domain/model"
	"github.com/target/bgsms/internal/mocks"
	"github.com/target/bgsms/internal/mocks/fakes"
	"github.com/target/bgsms/internal/testutil"
)

func notifiedJob() *model.Job {
	ended := testutil.TestTime().Add(90 * time.Minute)
	return &model.Job{
		ID:               testutil.JobID("9f"),
		Status:           model.JobStatusCompleted,
		TotalCount:       10,
		ExecutedCount:    10,
		SentCount:        9,
		NotSentCount:     1,
		PercentCompleted: "100%",
		TimeSpent:        "1 Hour 30 Minutes",
		StartedAt:        testutil.TestTime(),
		EndedAt:          &ended,
		NotifyTo:         "ops@example.com, lead@example.com",
		RetryNumber:      1,
	}
}

func TestRenderTemplate(t *testing.T) {
	job := notifiedJob()
	text := "Job ___JOB_ID___ is ___JOB_STATUS___: ___JOB_SENT_COUNT___/___JOB_TOTAL_COUNT___ sent, " +
		"___JOB_NOT_SENT_COUNT___ failed, ___JOB_CANCELED_COUNT___ canceled (___JOB_PERCENT_COMPLETED___, " +
		"retry ___JOB_RETRY_NUMBER___). Started ___JOB_STARTED_AT___, ended ___JOB_ENDED_AT___, " +
		"canceled ___JOB_CANCELED_AT___, took ___JOB_TIME_SPENT___. ___JOB_DETAILS_URL___"

	got := RenderTemplate(text, job, time.FixedZone("PKT", 5*60*60), "https://sms.example.com/jobs/"+job.ID)
	want := "Job " + job.ID + " is Completed: 9/10 sent, 1 failed, 0 canceled (100%, retry 1). " +
		"Started 01 Jan 2024 17:00:00, ended 01 Jan 2024 18:30:00, canceled Unknown, took 1 Hour 30 Minutes. " +
		"https://sms.example.com/jobs/" + job.ID
	assert.Equal(t, want, got)

	started := RenderTemplate("___JOB_STARTED_AT___ ___JOB_EXECUTED_COUNT___", &model.Job{}, nil, "")
	assert.Equal(t, "Unknown 0", started)
}

func TestEmailNotifier_NotifyJob(t *testing.T) {
	ctrl := gomock.NewController(t)
	templates := mocks.NewMockTemplateRepository(ctrl)
	outbox := &fakes.Outbox{}
	notifier, err := NewEmailNotifier(EmailNotifierOptions{
		Templates:   templates,
		Mailer:      outbox,
		DetailsLink: func(id string) string { return "https://sms.example.com/jobs/" + id },
		Logger:      discardLogger(),
	})
	require.NoError(t, err)

	templates.EXPECT().GetByCode(gomock.Any(), model.TemplateJobCompleted).Return(&model.NotificationTemplate{
		Code:     model.TemplateJobCompleted,
		SMTPJSON: `{"host":"smtp.example.com"}`,
		From:     "sms@example.com",
		Subject:  "Job ___JOB_STATUS___",
		Body:     `<p>___JOB_SENT_COUNT___ sent</p><a href="___JOB_DETAILS_URL___">details</a>`,
		ReplyTo:  "noreply@example.com",
		CC:       "cc@example.com",
		BCC:      "audit@example.com",
	}, nil)

	job := notifiedJob()
	require.NoError(t, notifier.NotifyJob(context.Background(), model.TemplateJobCompleted, job))
	require.Len(t, outbox.Messages, 1)
	assert.Equal(t, core.Message{
		SMTPJSON: `{"host":"smtp.example.com"}`,
		From:     "sms@example.com",
		To:       "ops@example.com, lead@example.com",
		ReplyTo:  "noreply@example.com",
		CC:       "cc@example.com",
		BCC:      "audit@example.com",
		Subject:  "Job Completed",
		HTMLBody: `<p>9 sent</p><a href="https://sms.example.com/jobs/` + job.ID + `">details</a>`,
	}, outbox.Messages[0])
}

func TestEmailNotifier_Errors(t *testing.T) {
	ctrl := gomock.NewController(t)
	templates := mocks.NewMockTemplateRepository(ctrl)
	mailer := mocks.NewMockMailer(ctrl)
	notifier, err := NewEmailNotifier(EmailNotifierOptions{Templates: templates, Mailer: mailer, Logger: discardLogger()})
	require.NoError(t, err)
	ctx := context.Background()
	job := notifiedJob()

	require.NoError(t, notifier.NotifyJob(ctx, model.TemplateJobStarted, &model.Job{ID: job.ID}), "no recipients is a no-op")
	require.Error(t, notifier.NotifyJob(ctx, "job_paused_template", job))

	templates.EXPECT().GetByCode(gomock.Any(), model.TemplateJobStarted).Return(nil, nil)
	require.ErrorContains(t, notifier.NotifyJob(ctx, model.TemplateJobStarted, job), "not found")

	templates.EXPECT().GetByCode(gomock.Any(), model.TemplateJobCanceled).
		Return(&model.NotificationTemplate{Code: model.TemplateJobCanceled, Subject: "s", Body: "b"}, nil)
	mailer.EXPECT().Send(gomock.Any(), gomock.Any()).Return(errors.New("smtp: 421 try later"))
	require.ErrorContains(t, notifier.NotifyJob(ctx, model.TemplateJobCanceled, job), "421")
}

func TestNotifySafely_SwallowsErrors(t *testing.T) {
	notes := &fakes.Notifications{Err: errors.New("smtp down")}
	notifySafely(context.Background(), discardLogger(), notes, model.TemplateJobStarted, notifiedJob())
	assert.Len(t, notes.Sent(), 1)

	notifySafely(context.Background(), discardLogger(), notes, model.TemplateJobStarted, &model.Job{})
	notifySafely(context.Background(), discardLogger(), nil, model.TemplateJobStarted, notifiedJob())
	assert.Len(t, notes.Sent(), 1)
}
