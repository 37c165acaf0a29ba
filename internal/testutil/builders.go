package testutil

import (
	"strconv"
	"strings"

	"github.com/target/bgsms/internal/domain/model"
)

// RecipientBuilder provides a fluent interface for building RecipientTask values.
type RecipientBuilder struct {
	task model.RecipientTask
}

// NewRecipient creates a RecipientBuilder with sensible defaults.
func NewRecipient() *RecipientBuilder {
	return &RecipientBuilder{task: model.RecipientTask{
		VendorName: "Acme",
		Mask:       "ACME",
		FromJSON:   `{"user":"demo","password":"demo"}`,
		Body:       "Your order has shipped",
		To:         "03001234567",
	}}
}

// WithVendor sets the vendor name.
func (b *RecipientBuilder) WithVendor(name string) *RecipientBuilder {
	b.task.VendorName = name
	return b
}

// WithTo sets the destination number.
func (b *RecipientBuilder) WithTo(to string) *RecipientBuilder {
	b.task.To = to
	return b
}

// WithBody sets the message body.
func (b *RecipientBuilder) WithBody(body string) *RecipientBuilder {
	b.task.Body = body
	return b
}

// WithFromJSON sets the credential blob.
func (b *RecipientBuilder) WithFromJSON(fromJSON string) *RecipientBuilder {
	b.task.FromJSON = fromJSON
	return b
}

// ForJob injects the job id and retry number.
func (b *RecipientBuilder) ForJob(jobID string, retry int) *RecipientBuilder {
	b.task.JobID = jobID
	b.task.RetryNumber = retry
	return b
}

// Build returns the task.
func (b *RecipientBuilder) Build() model.RecipientTask {
	return b.task
}

// Recipients builds n recipients with distinct valid numbers.
func Recipients(n int) []model.RecipientTask {
	out := make([]model.RecipientTask, n)
	for i := range n {
		suffix := strconv.Itoa(1000000 + i)
		out[i] = NewRecipient().WithTo("0300" + suffix[len(suffix)-7:]).Build()
	}
	return out
}

// JobID returns a deterministic 64-character job id built from seed.
func JobID(seed string) string {
	id := strings.Repeat(seed, model.JobIDLength/len(seed)+1)
	return id[:model.JobIDLength]
}
