package metrics

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"
)

// StatsdOptions configures a StatsdSink.
type StatsdOptions struct {
	Address    string
	Prefix     string
	GlobalTags map[string]string
	Logger     *slog.Logger
}

// StatsdSink writes DogStatsD-style lines over UDP. It is safe for concurrent use.
type StatsdSink struct {
	prefix string
	tags   map[string]string
	logger *slog.Logger

	mu   sync.Mutex
	conn net.Conn
}

var _ Sink = (*StatsdSink)(nil)

// NewStatsdSink dials the UDP endpoint.
func NewStatsdSink(opts StatsdOptions) (*StatsdSink, error) {
	address := strings.TrimSpace(opts.Address)
	if address == "" {
		return nil, fmt.Errorf("statsd address is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, err := (&net.Dialer{}).DialContext(ctx, "udp", address)
	if err != nil {
		return nil, fmt.Errorf("statsd dial %s: %w", address, err)
	}
	return &StatsdSink{
		prefix: strings.Trim(strings.TrimSpace(opts.Prefix), "."),
		tags:   mergeTags(opts.GlobalTags, nil),
		logger: logger.With("component", "statsd"),
		conn:   conn,
	}, nil
}

func (s *StatsdSink) Count(name string, value int64, tags map[string]string) {
	s.emit(name, strconv.FormatInt(value, 10), "c", tags)
}

func (s *StatsdSink) Gauge(name string, value float64, tags map[string]string) {
	s.emit(name, strconv.FormatFloat(value, 'f', -1, 64), "g", tags)
}

// Timing records value in milliseconds.
func (s *StatsdSink) Timing(name string, value time.Duration, tags map[string]string) {
	ms := float64(value) / float64(time.Millisecond)
	s.emit(name, strconv.FormatFloat(ms, 'f', -1, 64), "ms", tags)
}

// Close releases the UDP socket; later emissions are dropped.
func (s *StatsdSink) Close() error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	return err
}

func (s *StatsdSink) emit(name, value, kind string, tags map[string]string) {
	if s == nil {
		return
	}
	metric := joinName(s.prefix, name)
	if metric == "" {
		return
	}
	line := formatLine(metric, value, kind, mergeTags(s.tags, tags))

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return
	}
	if _, err := s.conn.Write([]byte(line)); err != nil {
		s.logger.Debug("statsd write failed", "metric", metric, "error", err)
	}
}

func formatLine(metric, value, kind string, tags map[string]string) string {
	var b strings.Builder
	b.WriteString(metric)
	b.WriteByte(':')
	b.WriteString(value)
	b.WriteByte('|')
	b.WriteString(kind)
	for i, k := range sortedKeys(tags) {
		if i == 0 {
			b.WriteString("|#")
		} else {
			b.WriteByte(',')
		}
		b.WriteString(k)
		b.WriteByte(':')
		b.WriteString(tags[k])
	}
	return b.String()
}
