package model

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// WorkerRole distinguishes the two process kinds of a job's process tree.
type WorkerRole string

const (
	WorkerRoleOrchestrator WorkerRole = "orchestrator"
	WorkerRoleLeaf         WorkerRole = "leaf"
)

const (
	orchestratorNamePrefix = "SmsBackgroundWorker-"
	leafNamePrefix         = "SendSmsWorker-"
	retryMarker            = "Retry-"
	workerDateLayout       = "2006-01-02"

	// WorkerSuffixLength is the number of hex characters identifying an orchestrator within a day.
	WorkerSuffixLength = 16
)

// WorkerID is the structured identity of an orchestrator or leaf process. Its
// String form doubles as the queue function name and as the process-match
// pattern used by cancellation.
type WorkerID struct {
	Role       WorkerRole
	Date       string
	Suffix     string
	LeafIndex  int
	RetryRound int
}

// NewOrchestratorID builds an orchestrator identity for the given day.
func NewOrchestratorID(day time.Time, suffix string) WorkerID {
	return WorkerID{
		Role:   WorkerRoleOrchestrator,
		Date:   day.Format(workerDateLayout),
		Suffix: suffix,
	}
}

// Orchestrator returns the orchestrator identity owning w.
func (w WorkerID) Orchestrator() WorkerID {
	return WorkerID{Role: WorkerRoleOrchestrator, Date: w.Date, Suffix: w.Suffix}
}

// Leaf derives the identity of leaf index (1-based) for a retry round.
func (w WorkerID) Leaf(index, retryRound int) WorkerID {
	return WorkerID{
		Role:       WorkerRoleLeaf,
		Date:       w.Date,
		Suffix:     w.Suffix,
		LeafIndex:  index,
		RetryRound: retryRound,
	}
}

// LeafPrefix is the common prefix of every leaf function name of this
// orchestrator, across all retry rounds.
func (w WorkerID) LeafPrefix() string {
	return leafNamePrefix + w.Date + "-" + w.Suffix + "-"
}

// String renders the queue function name.
func (w WorkerID) String() string {
	if w.Role == WorkerRoleOrchestrator {
		return orchestratorNamePrefix + w.Date + "-" + w.Suffix
	}
	name := w.LeafPrefix() + strconv.Itoa(w.LeafIndex)
	if w.RetryRound > 0 {
		name += retryMarker + strconv.Itoa(w.RetryRound)
	}
	return name
}

// Validate checks the identity fields.
func (w WorkerID) Validate() error {
	if w.Role != WorkerRoleOrchestrator && w.Role != WorkerRoleLeaf {
		return fmt.Errorf("invalid worker role %q", w.Role)
	}
	if _, err := time.Parse(workerDateLayout, w.Date); err != nil {
		return fmt.Errorf("invalid worker date %q", w.Date)
	}
	if len(w.Suffix) != WorkerSuffixLength || !isLowerHex(w.Suffix) {
		return fmt.Errorf("invalid worker suffix %q", w.Suffix)
	}
	if w.Role == WorkerRoleLeaf && w.LeafIndex < 1 {
		return errors.New("leaf index must be >= 1")
	}
	if w.RetryRound < 0 {
		return errors.New("retry round must be >= 0")
	}
	return nil
}

// ParseWorkerID parses a function name produced by WorkerID.String.
func ParseWorkerID(name string) (WorkerID, error) {
	var w WorkerID
	var rest string
	switch {
	case strings.HasPrefix(name, orchestratorNamePrefix):
		w.Role = WorkerRoleOrchestrator
		rest = strings.TrimPrefix(name, orchestratorNamePrefix)
	case strings.HasPrefix(name, leafNamePrefix):
		w.Role = WorkerRoleLeaf
		rest = strings.TrimPrefix(name, leafNamePrefix)
	default:
		return w, fmt.Errorf("unrecognised worker id %q", name)
	}

	// <date:10>-<suffix:16>[-<index>[Retry-<n>]]
	const head = len(workerDateLayout) + 1 + WorkerSuffixLength
	if len(rest) < head || rest[len(workerDateLayout)] != '-' {
		return w, fmt.Errorf("malformed worker id %q", name)
	}
	w.Date = rest[:len(workerDateLayout)]
	w.Suffix = rest[len(workerDateLayout)+1 : head]
	tail := rest[head:]

	if w.Role == WorkerRoleOrchestrator {
		if tail != "" {
			return w, fmt.Errorf("malformed worker id %q", name)
		}
		return w, w.Validate()
	}

	if !strings.HasPrefix(tail, "-") {
		return w, fmt.Errorf("malformed worker id %q", name)
	}
	tail = tail[1:]
	indexPart, roundPart, hasRound := strings.Cut(tail, retryMarker)
	idx, err := strconv.Atoi(indexPart)
	if err != nil {
		return w, fmt.Errorf("malformed leaf index in %q: %w", name, err)
	}
	w.LeafIndex = idx
	if hasRound {
		round, err := strconv.Atoi(roundPart)
		if err != nil {
			return w, fmt.Errorf("malformed retry round in %q: %w", name, err)
		}
		w.RetryRound = round
	}
	return w, w.Validate()
}

func isLowerHex(s string) bool {
	for _, r := range s {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
			return false
		}
	}
	return true
}
