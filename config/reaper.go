package config

import (
	"strings"
	"time"
)

// ReaperConfig controls the maintenance daemon started by `bgsms reaper`.
type ReaperConfig struct {
	// Schedule is a cron expression (descriptors such as "@every 5m" are accepted).
	Schedule string `env:"REAPER_SCHEDULE" envDefault:"@every 5m"`

	// LogRetention deletes jobs and their sent log once started_at is older
	// than this. 0 disables retention.
	LogRetention time.Duration `env:"REAPER_LOG_RETENTION" envDefault:"0"`

	// Timeout bounds a single maintenance pass.
	Timeout time.Duration `env:"REAPER_TIMEOUT" envDefault:"1m"`
}

// Sanitize applies guardrails to reaper configuration values.
func (r *ReaperConfig) Sanitize() {
	if r.Schedule = strings.TrimSpace(r.Schedule); r.Schedule == "" {
		r.Schedule = "@every 5m"
	}
	if r.LogRetention < 0 {
		r.LogRetention = 0
	}
	// Anything shorter than a day would delete jobs that are still running.
	if r.LogRetention > 0 && r.LogRetention < 24*time.Hour {
		r.LogRetention = 24 * time.Hour
	}
	if r.Timeout <= 0 {
		r.Timeout = time.Minute
	}
}

// RetentionEnabled reports whether the daemon deletes old sent logs.
func (r *ReaperConfig) RetentionEnabled() bool {
	return r.LogRetention > 0
}
