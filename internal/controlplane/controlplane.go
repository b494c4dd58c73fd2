// Package controlplane defines the remote replication control plane that
// firings drive: a session is dialed per firing, used to inspect and start
// one subscription, then closed.
package controlplane

import (
	"context"
	"strings"
)

// Params carries the connection parameters for one session.
type Params struct {
	Host     string
	Port     string
	User     string
	Password string
}

// Dialer opens control plane sessions.
type Dialer interface {
	// Dial connects and authenticates. Failures wrap ErrConnect.
	Dial(ctx context.Context, p Params) (Client, error)
}

// Client is one open control plane session. It is not safe for concurrent
// use; each firing dials its own.
type Client interface {
	// Status reports the live status of a subscription on its source data
	// store. Returns ErrSubscriptionNotFound when the data store does not
	// know the subscription.
	Status(ctx context.Context, dataStore, subscription string) (Status, error)

	// Start requests the subscription to begin continuous mirroring.
	Start(ctx context.Context, dataStore, subscription string) error

	// Refresh asks the control plane to re-read the subscription state.
	Refresh(ctx context.Context, dataStore, subscription string) error

	// Close releases the session. Safe to call more than once.
	Close() error
}

// Status is the live activity status of a subscription.
type Status int

// Known statuses. Anything the control plane reports outside this set maps
// to StatusUnknown.
const (
	StatusUnknown Status = iota
	StatusActive
	StatusBlocked
	StatusIdle
	StatusRecovery
	StatusStarting
	StatusWaiting
	StatusEnding
)

var statusNames = map[Status]string{
	StatusUnknown:  "UNKNOWN",
	StatusActive:   "ACTIVE",
	StatusBlocked:  "BLOCKED",
	StatusIdle:     "IDLE",
	StatusRecovery: "RECOVERY",
	StatusStarting: "STARTING",
	StatusWaiting:  "WAITING",
	StatusEnding:   "ENDING",
}

// String returns the upper-case wire name of the status.
func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return statusNames[StatusUnknown]
}

// ParseStatus maps a wire name (case-insensitive) to a Status.
func ParseStatus(name string) Status {
	name = strings.ToUpper(strings.TrimSpace(name))
	for s, n := range statusNames {
		if n == name {
			return s
		}
	}
	return StatusUnknown
}
