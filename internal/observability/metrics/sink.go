// Package metrics emits engine metrics to StatsD or a Prometheus endpoint.
package metrics

import (
	"sort"
	"strings"
	"time"
)

// Sink is the minimal metric emission surface used by the engine.
type Sink interface {
	Count(name string, value int64, tags map[string]string)
	Gauge(name string, value float64, tags map[string]string)
	Timing(name string, value time.Duration, tags map[string]string)
}

// Nop discards every metric.
type Nop struct{}

func (Nop) Count(string, int64, map[string]string) {}

func (Nop) Gauge(string, float64, map[string]string) {}

func (Nop) Timing(string, time.Duration, map[string]string) {}

var _ Sink = Nop{}

// OrNop returns sink, or Nop when sink is nil.
func OrNop(sink Sink) Sink {
	if sink == nil {
		return Nop{}
	}
	return sink
}

func joinName(prefix, name string) string {
	n := strings.NewReplacer(" ", "_", "/", "_").Replace(strings.TrimSpace(name))
	for strings.Contains(n, "..") {
		n = strings.ReplaceAll(n, "..", ".")
	}
	n = strings.Trim(n, ".")
	switch {
	case n == "":
		return ""
	case prefix == "":
		return n
	default:
		return prefix + "." + n
	}
}

// mergeTags returns the trimmed union of base and extra with extra taking precedence.
func mergeTags(base, extra map[string]string) map[string]string {
	if len(base)+len(extra) == 0 {
		return nil
	}
	out := make(map[string]string, len(base)+len(extra))
	for _, src := range []map[string]string{base, extra} {
		for k, v := range src {
			if key := strings.TrimSpace(k); key != "" {
				out[key] = strings.TrimSpace(v)
			}
		}
	}
	return out
}

func sortedKeys(tags map[string]string) []string {
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
