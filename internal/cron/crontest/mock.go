// Package crontest provides test doubles for the cron package.
package crontest

import (
	"context"
	"sync"

	"github.com/flemzord/idrsched/internal/cron"
)

// MockFirer is a configurable test double for cron.Firer.
type MockFirer struct {
	FireFunc func(ctx context.Context, job cron.JobContext) error

	mu    sync.Mutex
	jobs  []cron.JobContext
	fired chan cron.JobContext
}

// Compile-time interface check.
var _ cron.Firer = (*MockFirer)(nil)

// NewMockFirer returns a firer whose Fired channel buffers up to n firings.
func NewMockFirer(n int) *MockFirer {
	return &MockFirer{fired: make(chan cron.JobContext, n)}
}

// Fire implements cron.Firer and records the job.
func (m *MockFirer) Fire(ctx context.Context, job cron.JobContext) error {
	m.mu.Lock()
	m.jobs = append(m.jobs, job)
	m.mu.Unlock()

	if m.fired != nil {
		select {
		case m.fired <- job:
		default:
		}
	}
	if m.FireFunc != nil {
		return m.FireFunc(ctx, job)
	}
	return nil
}

// Fired delivers each recorded job, if the firer was built with NewMockFirer.
func (m *MockFirer) Fired() <-chan cron.JobContext { return m.fired }

// Jobs returns a copy of every job fired so far.
func (m *MockFirer) Jobs() []cron.JobContext {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]cron.JobContext, len(m.jobs))
	copy(out, m.jobs)
	return out
}

// Count returns how many firings were recorded for a subscription id.
func (m *MockFirer) Count(id string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, j := range m.jobs {
		if j.SubscriptionID == id {
			n++
		}
	}
	return n
}
