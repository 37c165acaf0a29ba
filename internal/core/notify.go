package core

import (
	"context"

	"github.com/target/bgsms/internal/domain/model"
)

// JobNotifier renders a lifecycle template for a job and delivers it to the
// job's notify_to list. Implementations treat an empty list as a no-op.
type JobNotifier interface {
	NotifyJob(ctx context.Context, code model.TemplateCode, job *model.Job) error
}

// Message is a rendered email ready for delivery.
type Message struct {
	SMTPJSON string
	From     string
	To       string
	ReplyTo  string
	CC       string
	BCC      string
	Subject  string
	HTMLBody string
}

// Mailer delivers rendered messages.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}
