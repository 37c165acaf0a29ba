package config

import (
	"errors"
	"strings"
	"time"
)

const (
	defaultBarrierTimeout = 30 * time.Minute
	defaultSettleDelay    = time.Second
)

// OrchestrationConfig controls how a job is fanned out to leaf workers.
type OrchestrationConfig struct {
	// RetryCount is the number of retry rounds after the first attempt. 0 disables retries.
	RetryCount int `env:"RETRY_COUNT" envDefault:"0"`

	// WorkerCount is the maximum number of leaf workers spawned per round.
	WorkerCount int `env:"WORKER_COUNT" envDefault:"10"`

	// RetryExceptionCodes restricts retries to "Not Sent" entries carrying one of
	// these exception codes. Empty retries every "Not Sent" entry.
	RetryExceptionCodes []string `env:"RETRY_EXCEPTION_CODES" envSeparator:","`

	// SettleDelay is waited after spawning leaf workers so they can register.
	SettleDelay time.Duration `env:"SETTLE_DELAY" envDefault:"1s"`

	// BarrierTimeout bounds the wait for a round of tasks to be acknowledged.
	BarrierTimeout time.Duration `env:"BARRIER_TIMEOUT" envDefault:"30m"`

	// SendRatePerSec throttles each leaf worker's vendor calls. 0 disables throttling.
	SendRatePerSec int `env:"SEND_RATE_PER_SEC" envDefault:"0"`
}

// Sanitize normalises optional tuning values.
func (c *OrchestrationConfig) Sanitize() {
	codes := c.RetryExceptionCodes[:0]
	for _, code := range c.RetryExceptionCodes {
		if code = strings.TrimSpace(code); code != "" {
			codes = append(codes, code)
		}
	}
	c.RetryExceptionCodes = codes

	if c.SettleDelay < 0 {
		c.SettleDelay = defaultSettleDelay
	}
	if c.BarrierTimeout <= 0 {
		c.BarrierTimeout = defaultBarrierTimeout
	}
	if c.SendRatePerSec < 0 {
		c.SendRatePerSec = 0
	}
}

// Validate reports invalid retry and worker counts.
func (c *OrchestrationConfig) Validate() error {
	var errs []error
	if c.RetryCount < 0 {
		errs = append(errs, errors.New("RETRY_COUNT: must be >= 0"))
	}
	if c.WorkerCount < 1 {
		errs = append(errs, errors.New("WORKER_COUNT: must be >= 1"))
	}
	return errors.Join(errs...)
}

// RetriesEnabled reports whether any retry round may run.
func (c *OrchestrationConfig) RetriesEnabled() bool {
	return c.RetryCount > 0
}
