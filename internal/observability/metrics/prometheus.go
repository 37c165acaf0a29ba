package metrics

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// OTelSink records metrics through an OpenTelemetry meter backed by the
// Prometheus exporter. Instruments are created on first use.
type OTelSink struct {
	prefix   string
	meter    metric.Meter
	provider *sdkmetric.MeterProvider

	mu         sync.Mutex
	counters   map[string]metric.Int64Counter
	gauges     map[string]metric.Float64Gauge
	histograms map[string]metric.Float64Histogram
}

var _ Sink = (*OTelSink)(nil)

// NewPrometheusSink creates the sink and the /metrics handler that exposes it.
func NewPrometheusSink(prefix string) (*OTelSink, http.Handler, error) {
	registry := prometheus.NewRegistry()
	exporter, err := otelprom.New(otelprom.WithRegisterer(registry))
	if err != nil {
		return nil, nil, fmt.Errorf("prometheus exporter: %w", err)
	}
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	return &OTelSink{
		prefix:     strings.Trim(strings.TrimSpace(prefix), "."),
		meter:      provider.Meter("bgsms"),
		provider:   provider,
		counters:   make(map[string]metric.Int64Counter),
		gauges:     make(map[string]metric.Float64Gauge),
		histograms: make(map[string]metric.Float64Histogram),
	}, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}), nil
}

func (s *OTelSink) Count(name string, value int64, tags map[string]string) {
	full := joinName(s.prefix, name)
	if full == "" {
		return
	}
	s.mu.Lock()
	c, ok := s.counters[full]
	if !ok {
		var err error
		if c, err = s.meter.Int64Counter(full); err != nil {
			s.mu.Unlock()
			return
		}
		s.counters[full] = c
	}
	s.mu.Unlock()
	c.Add(context.Background(), value, attributes(tags))
}

func (s *OTelSink) Gauge(name string, value float64, tags map[string]string) {
	full := joinName(s.prefix, name)
	if full == "" {
		return
	}
	s.mu.Lock()
	g, ok := s.gauges[full]
	if !ok {
		var err error
		if g, err = s.meter.Float64Gauge(full); err != nil {
			s.mu.Unlock()
			return
		}
		s.gauges[full] = g
	}
	s.mu.Unlock()
	g.Record(context.Background(), value, attributes(tags))
}

// Timing records value in seconds.
func (s *OTelSink) Timing(name string, value time.Duration, tags map[string]string) {
	full := joinName(s.prefix, name)
	if full == "" {
		return
	}
	s.mu.Lock()
	h, ok := s.histograms[full]
	if !ok {
		var err error
		h, err = s.meter.Float64Histogram(full,
			metric.WithUnit("s"),
			metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 300, 900),
		)
		if err != nil {
			s.mu.Unlock()
			return
		}
		s.histograms[full] = h
	}
	s.mu.Unlock()
	h.Record(context.Background(), value.Seconds(), attributes(tags))
}

// Shutdown flushes and stops the meter provider.
func (s *OTelSink) Shutdown(ctx context.Context) error {
	return s.provider.Shutdown(ctx)
}

func attributes(tags map[string]string) metric.MeasurementOption {
	tags = mergeTags(nil, tags)
	kvs := make([]attribute.KeyValue, 0, len(tags))
	for _, k := range sortedKeys(tags) {
		kvs = append(kvs, attribute.String(k, tags[k]))
	}
	return metric.WithAttributes(kvs...)
}
