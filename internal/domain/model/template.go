package model

// TemplateCode identifies a notification template.
type TemplateCode string

const (
	TemplateJobStarted   TemplateCode = "job_started_template"
	TemplateJobCompleted TemplateCode = "job_completed_template"
	TemplateJobCanceled  TemplateCode = "job_canceled_template"
)

// Valid returns true if the TemplateCode is valid.
func (c TemplateCode) Valid() bool {
	return c == TemplateJobStarted || c == TemplateJobCompleted || c == TemplateJobCanceled
}

// NotificationTemplate is an email template with ___PLACEHOLDER___ tokens.
type NotificationTemplate struct {
	Code        TemplateCode `json:"template_code"        db:"template_code"`
	Description string       `json:"template_description" db:"template_description"`
	SMTPJSON    string       `json:"smtp_json"            db:"smtp_json"`
	From        string       `json:"from"                 db:"from_address"`
	Subject     string       `json:"subject"              db:"subject"`
	Body        string       `json:"body"                 db:"body"`
	ReplyTo     string       `json:"reply_to"             db:"reply_to"`
	CC          string       `json:"cc"                   db:"cc"`
	BCC         string       `json:"bcc"                  db:"bcc"`
}
