package bootstrap

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/target/bgsms/config"
	"github.com/target/bgsms/internal/observability/metrics"
)

// Metrics bundles the configured sink with what is needed to expose and close it.
type Metrics struct {
	Sink metrics.Sink
	// Handler serves the Prometheus scrape endpoint; nil unless the sink is prometheus.
	Handler http.Handler
	close   func(context.Context) error
}

// Close flushes and releases the sink.
func (m *Metrics) Close(ctx context.Context) error {
	if m == nil || m.close == nil {
		return nil
	}
	return m.close(ctx)
}

// InitMetrics builds the sink selected by cfg. The prometheus sink only makes
// sense in a long-running process that serves it (scrapable is true); other
// processes fall back to no metrics. A sink that cannot be created is logged
// and replaced by a no-op sink.
func InitMetrics(cfg config.ObservabilityMetricsConfig, scrapable bool, logger *slog.Logger) *Metrics {
	if logger == nil {
		logger = slog.Default()
	}
	nop := &Metrics{Sink: metrics.Nop{}}

	switch cfg.Sink {
	case config.MetricsSinkStatsd:
		sink, err := metrics.NewStatsdSink(metrics.StatsdOptions{
			Address: cfg.StatsdAddress,
			Prefix:  cfg.Prefix,
			Logger:  logger,
		})
		if err != nil {
			logger.Error("failed to initialise statsd sink", "error", err)
			return nop
		}
		return &Metrics{Sink: sink, close: func(context.Context) error { return sink.Close() }}

	case config.MetricsSinkPrometheus:
		if !scrapable {
			return nop
		}
		sink, handler, err := metrics.NewPrometheusSink(cfg.Prefix)
		if err != nil {
			logger.Error("failed to initialise prometheus sink", "error", err)
			return nop
		}
		return &Metrics{Sink: sink, Handler: handler, close: sink.Shutdown}
	}
	return nop
}
