package metrics

import (
	"context"
	"errors"
	"reflect"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/target/bgsms/internal/errors"
)

// Result tag values.
const (
	ResultSuccess = "success"
	ResultError   = "error"
	ResultTimeout = "timeout"
)

// Job transition tag values.
const (
	TransitionSubmitted = "submitted"
	TransitionStarted   = "started"
	TransitionCompleted = "completed"
	TransitionCanceled  = "canceled"
	TransitionFailed    = "failed"
)

// RecordSend counts one send outcome.
func RecordSend(sink Sink, vendor, status, exceptionCode string) {
	tags := map[string]string{"vendor": vendor, "status": status}
	if exceptionCode != "" {
		tags["exception_code"] = exceptionCode
	}
	OrNop(sink).Count("sends", 1, tags)
}

// RoundMetric describes one fan-out round of a job.
type RoundMetric struct {
	RetryNumber int
	Tasks       int
	TimedOut    int
	Duration    time.Duration
	Err         error
}

// RecordRound emits the outcome and latency of a fan-out round.
func RecordRound(sink Sink, in RoundMetric) {
	s := OrNop(sink)
	result := ResultSuccess
	switch {
	case in.Err != nil:
		result = ResultError
	case in.TimedOut > 0:
		result = ResultTimeout
	}
	tags := map[string]string{
		"retry_number": strconv.Itoa(in.RetryNumber),
		"result":       result,
	}
	if in.Err != nil {
		tags["error_class"] = Classify(in.Err)
	}
	s.Count("rounds", 1, tags)
	s.Count("rounds.tasks", int64(in.Tasks), tags)
	if in.TimedOut > 0 {
		s.Count("rounds.timed_out", int64(in.TimedOut), tags)
	}
	if in.Duration > 0 {
		s.Timing("rounds.duration", in.Duration, tags)
	}
}

// RecordJob counts a job lifecycle transition.
func RecordJob(sink Sink, transition string, err error) {
	tags := map[string]string{"transition": transition}
	if err != nil {
		tags["error_class"] = Classify(err)
	}
	OrNop(sink).Count("jobs", 1, tags)
}

// RecordReaperDropped counts queue functions removed by the reaper.
func RecordReaperDropped(sink Sink, dropped int) {
	if dropped <= 0 {
		return
	}
	OrNop(sink).Count("reaper.dropped", int64(dropped), nil)
}

// Classify returns a low-cardinality name for err: its application error code,
// a context error name, or the innermost concrete type.
func Classify(err error) string {
	if err == nil {
		return ""
	}
	if code := apperrors.GetCode(err); code != "" {
		return string(code)
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "deadline_exceeded"
	case errors.Is(err, context.Canceled):
		return "canceled"
	}
	for {
		next := errors.Unwrap(err)
		if next == nil {
			break
		}
		err = next
	}
	t := reflect.TypeOf(err)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	name := strings.ReplaceAll(strings.ToLower(t.String()), ".", "_")
	if name == "" {
		return "unknown"
	}
	return name
}
