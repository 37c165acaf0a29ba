package config

import "strings"

// MetricsSinkKind selects where metrics are emitted.
type MetricsSinkKind string

const (
	MetricsSinkNone       MetricsSinkKind = "none"
	MetricsSinkStatsd     MetricsSinkKind = "statsd"
	MetricsSinkPrometheus MetricsSinkKind = "prometheus"
)

// ObservabilityConfig groups configuration that controls metrics emission.
type ObservabilityConfig struct {
	Metrics ObservabilityMetricsConfig
}

// Sanitize applies guardrails to observability sub-configs.
func (c *ObservabilityConfig) Sanitize() {
	c.Metrics.Sanitize()
}

// ObservabilityMetricsConfig controls emission of metrics to StatsD or a Prometheus endpoint.
type ObservabilityMetricsConfig struct {
	Sink          MetricsSinkKind `env:"OBSERVABILITY_METRICS_SINK"           envDefault:"none"`
	Prefix        string          `env:"OBSERVABILITY_METRICS_PREFIX"         envDefault:"bgsms"`
	StatsdAddress string          `env:"OBSERVABILITY_METRICS_STATSD_ADDRESS" envDefault:"127.0.0.1:8125"`
	// PrometheusAddress is the listen address of the /metrics endpoint served by the reaper daemon.
	PrometheusAddress string `env:"OBSERVABILITY_METRICS_PROMETHEUS_ADDRESS" envDefault:":9464"`
}

// Sanitize normalises derived fields and enforces safe defaults.
func (c *ObservabilityMetricsConfig) Sanitize() {
	c.Sink = MetricsSinkKind(strings.ToLower(strings.TrimSpace(string(c.Sink))))
	c.StatsdAddress = strings.TrimSpace(c.StatsdAddress)
	c.PrometheusAddress = strings.TrimSpace(c.PrometheusAddress)
	c.Prefix = strings.Trim(strings.TrimSpace(c.Prefix), ".")

	switch c.Sink {
	case MetricsSinkStatsd:
		if c.StatsdAddress == "" {
			c.Sink = MetricsSinkNone
		}
	case MetricsSinkPrometheus:
		if c.PrometheusAddress == "" {
			c.Sink = MetricsSinkNone
		}
	default:
		c.Sink = MetricsSinkNone
	}
}

// IsEnabled returns true when metrics emission is active after sanitisation.
func (c *ObservabilityMetricsConfig) IsEnabled() bool {
	return c.Sink != MetricsSinkNone
}
