package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/target/bgsms/config"
	"github.com/target/bgsms/internal/core"
	"github.com/target/bgsms/internal/domain/model"
	"github.com/target/bgsms/internal/mocks/fakes"
	"github.com/target/bgsms/internal/testutil"
)

const testSuffix = "0123456789abcdef"

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func testOrchestratorID() model.WorkerID {
	return model.NewOrchestratorID(testutil.TestTime(), testSuffix)
}

func testAppConfig(t *testing.T, orch config.OrchestrationConfig) config.AppConfig {
	t.Helper()
	return config.AppConfig{
		LogDir:        t.TempDir(),
		Timezone:      "UTC",
		Orchestration: orch,
	}
}

// scriptedSender answers sends from a per-number script keyed by retry round.
// Numbers without a script are sent.
type scriptedSender struct {
	mu      sync.Mutex
	script  map[string][]model.SendOutcome
	attempt map[string]int
	calls   []model.SendRequest
}

func newScriptedSender(script map[string][]model.SendOutcome) *scriptedSender {
	return &scriptedSender{script: script, attempt: make(map[string]int)}
}

func (s *scriptedSender) Send(_ context.Context, req model.SendRequest) (model.SendOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, req)
	n := s.attempt[req.To]
	s.attempt[req.To]++
	if outcomes, ok := s.script[req.To]; ok && n < len(outcomes) {
		return outcomes[n], nil
	}
	return model.SendOutcome{Status: model.SendStatusSent, ResponseJSON: `{"status":"ok"}`}, nil
}

func (s *scriptedSender) Calls() []model.SendRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.SendRequest(nil), s.calls...)
}

func acmeVendors() fakes.Vendors {
	return fakes.Vendors{
		"Acme": {Name: "Acme", SendCapability: "acme", BalanceCapability: "acme", Status: model.VendorStatusActive},
	}
}

func newTestLeaf(t *testing.T, store *fakes.JobStore, sender core.SendCapability) *LeafWorker {
	t.Helper()
	leaf, err := NewLeafWorker(LeafWorkerOptions{
		WorkerID: testOrchestratorID().Leaf(1, 0),
		Jobs:     store,
		Vendors:  acmeVendors(),
		Registry: &fakes.Registry{Send: map[string]core.SendCapability{"acme": sender}},
		Clock:    fixedClock{testutil.TestTime().Add(time.Minute)},
		Logger:   discardLogger(),
	})
	require.NoError(t, err)
	return leaf
}

// leafDispatch routes every task to leaf as if the leaf process had received it.
func leafDispatch(leaf *LeafWorker) func(context.Context, core.Task) error {
	return func(ctx context.Context, task core.Task) error {
		var rt model.RecipientTask
		if err := json.Unmarshal(task.Payload, &rt); err != nil {
			return fmt.Errorf("decode: %w", err)
		}
		_, err := leaf.Process(ctx, rt)
		return err
	}
}

func functions(tasks []core.Task) []string {
	out := make([]string, len(tasks))
	for i, t := range tasks {
		out[i] = t.Function
	}
	return out
}
