package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/target/bgsms/internal/domain/model"
	apperrors "github.com/target/bgsms/internal/errors"
)

// TemplateRepo reads notification templates.
type TemplateRepo struct {
	DB *sql.DB
}

// NewTemplateRepo creates a new TemplateRepo.
func NewTemplateRepo(db *sql.DB) *TemplateRepo {
	return &TemplateRepo{DB: db}
}

// GetByCode returns the template matching code case-insensitively, or (nil, nil).
func (r *TemplateRepo) GetByCode(ctx context.Context, code model.TemplateCode) (*model.NotificationTemplate, error) {
	var t model.NotificationTemplate
	var storedCode string
	err := r.DB.QueryRowContext(ctx, `
		SELECT template_code, template_description, smtp_json, from_address,
		       subject, body, reply_to, cc, bcc
		FROM sms_templates
		WHERE LOWER(template_code) = LOWER($1)
		LIMIT 1`, string(code),
	).Scan(&storedCode, &t.Description, &t.SMTPJSON, &t.From, &t.Subject, &t.Body, &t.ReplyTo, &t.CC, &t.BCC)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil //nolint:nilnil // absence is not an error for lookups
	}
	if err != nil {
		return nil, fmt.Errorf("get template: %w", apperrors.MapDBError(err))
	}
	t.Code = model.TemplateCode(storedCode)
	return &t, nil
}
