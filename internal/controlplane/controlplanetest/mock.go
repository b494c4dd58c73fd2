// Package controlplanetest provides test doubles for the controlplane package.
package controlplanetest

import (
	"context"
	"sync"

	"github.com/flemzord/idrsched/internal/controlplane"
)

// Call records one operation issued against a MockClient.
type Call struct {
	Op           string // "status", "start", "refresh", "close"
	DataStore    string
	Subscription string
}

// MockDialer is a configurable controlplane.Dialer. Every dial returns the
// same Client so tests can inspect the full call history.
type MockDialer struct {
	DialErr error
	Client  *MockClient

	mu     sync.Mutex
	dials  int
	params []controlplane.Params
}

// Compile-time interface check.
var _ controlplane.Dialer = (*MockDialer)(nil)

// NewMockDialer returns a dialer whose sessions report status.
func NewMockDialer(status controlplane.Status) *MockDialer {
	return &MockDialer{Client: &MockClient{StatusVal: status}}
}

// Dial implements controlplane.Dialer.
func (d *MockDialer) Dial(_ context.Context, p controlplane.Params) (controlplane.Client, error) {
	d.mu.Lock()
	d.dials++
	d.params = append(d.params, p)
	d.mu.Unlock()

	if d.DialErr != nil {
		return nil, d.DialErr
	}
	return d.Client, nil
}

// DialCount returns the number of Dial calls.
func (d *MockDialer) DialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

// LastParams returns the parameters of the most recent Dial call.
func (d *MockDialer) LastParams() controlplane.Params {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.params) == 0 {
		return controlplane.Params{}
	}
	return d.params[len(d.params)-1]
}

// MockClient is a configurable controlplane.Client that records calls.
type MockClient struct {
	StatusVal  controlplane.Status
	StatusErr  error
	StartErr   error
	RefreshErr error
	CloseErr   error

	// StatusFunc, when set, overrides StatusVal and StatusErr.
	StatusFunc func(ctx context.Context, dataStore, subscription string) (controlplane.Status, error)

	mu    sync.Mutex
	calls []Call
}

// Compile-time interface check.
var _ controlplane.Client = (*MockClient)(nil)

func (c *MockClient) record(op, ds, sub string) {
	c.mu.Lock()
	c.calls = append(c.calls, Call{Op: op, DataStore: ds, Subscription: sub})
	c.mu.Unlock()
}

// Status implements controlplane.Client.
func (c *MockClient) Status(ctx context.Context, dataStore, subscription string) (controlplane.Status, error) {
	c.record("status", dataStore, subscription)
	if c.StatusFunc != nil {
		return c.StatusFunc(ctx, dataStore, subscription)
	}
	return c.StatusVal, c.StatusErr
}

// Start implements controlplane.Client.
func (c *MockClient) Start(_ context.Context, dataStore, subscription string) error {
	c.record("start", dataStore, subscription)
	return c.StartErr
}

// Refresh implements controlplane.Client.
func (c *MockClient) Refresh(_ context.Context, dataStore, subscription string) error {
	c.record("refresh", dataStore, subscription)
	return c.RefreshErr
}

// Close implements controlplane.Client.
func (c *MockClient) Close() error {
	c.record("close", "", "")
	return c.CloseErr
}

// Calls returns a copy of the recorded calls in order.
func (c *MockClient) Calls() []Call {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Call, len(c.calls))
	copy(out, c.calls)
	return out
}

// Ops returns just the operation names of the recorded calls, in order.
func (c *MockClient) Ops() []string {
	calls := c.Calls()
	ops := make([]string, len(calls))
	for i, call := range calls {
		ops[i] = call.Op
	}
	return ops
}

// Count returns how many times op was issued.
func (c *MockClient) Count(op string) int {
	n := 0
	for _, call := range c.Calls() {
		if call.Op == op {
			n++
		}
	}
	return n
}
