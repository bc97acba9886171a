package testutil

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/vk/sitepipe/internal/handlers"
)

// RecorderModule is a shared, self-contained module for execution tests. It
// registers the "record" action kind, which sleeps for the configured time,
// records when it ran and optionally fails:
//
//	action "record" {
//	  label = "a"
//	  sleep = "20ms"
//	  fail  = "boom"
//	}
type RecorderModule struct {
	mu      sync.Mutex
	records []ExecutionRecord
}

type recordInput struct {
	Label string `hcl:"label"`
	Sleep string `hcl:"sleep,optional"`
	Fail  string `hcl:"fail,optional"`

	sleep time.Duration
}

func (in *recordInput) Validate() error {
	if in.Sleep == "" {
		return nil
	}
	d, err := time.ParseDuration(in.Sleep)
	if err != nil {
		return err
	}
	in.sleep = d
	return nil
}

// Register implements handlers.Module.
func (m *RecorderModule) Register(h *handlers.Handlers) {
	h.RegisterHandler("record", handlers.Typed(m.onRun))
}

func (m *RecorderModule) onRun(ctx context.Context, _ *handlers.Env, in *recordInput) error {
	rec := ExecutionRecord{Label: in.Label, Start: time.Now()}
	if in.sleep > 0 {
		time.Sleep(in.sleep)
	}
	rec.End = time.Now()

	m.mu.Lock()
	m.records = append(m.records, rec)
	m.mu.Unlock()

	if in.Fail != "" {
		return errors.New(in.Fail)
	}
	return nil
}

// Records returns the executions in completion order.
func (m *RecorderModule) Records() []ExecutionRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ExecutionRecord(nil), m.records...)
}

// Labels returns the labels of the executions in completion order.
func (m *RecorderModule) Labels() []string {
	recs := m.Records()
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.Label
	}
	return out
}

// Record returns the first execution with the given label.
func (m *RecorderModule) Record(label string) (ExecutionRecord, bool) {
	for _, r := range m.Records() {
		if r.Label == label {
			return r, true
		}
	}
	return ExecutionRecord{}, false
}
