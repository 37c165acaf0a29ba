package vendors

import (
	"context"
	"log/slog"

	"github.com/target/bgsms/internal/domain/model"
)

// LogCapability is a dry-run vendor: it logs each message and reports it as sent.
type LogCapability struct {
	logger *slog.Logger
}

// NewLogCapability constructs a LogCapability.
func NewLogCapability(logger *slog.Logger) *LogCapability {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogCapability{logger: logger.With("component", "vendor_log")}
}

// Send logs the request.
func (c *LogCapability) Send(ctx context.Context, req model.SendRequest) (model.SendOutcome, error) {
	c.logger.InfoContext(ctx, "dry-run send",
		"vendor", req.Vendor,
		"to", req.To,
		"mask", req.Mask,
		"body_length", len(req.Body),
	)
	return model.SendOutcome{Status: model.SendStatusSent, ResponseJSON: `{"dry_run":true}`}, nil
}

// GetBalance reports an unlimited balance.
func (c *LogCapability) GetBalance(_ context.Context, vendor string, _ model.Credentials) (model.Balance, error) {
	return model.Balance{Vendor: vendor, Balance: "unlimited", ResponseJSON: `{"dry_run":true}`}, nil
}
