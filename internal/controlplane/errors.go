package controlplane

import "errors"

// Sentinel errors for control plane operations.
var (
	// ErrConnect indicates the session could not be established.
	ErrConnect = errors.New("controlplane: connection failed")

	// ErrOperation indicates an operation on an open session failed.
	ErrOperation = errors.New("controlplane: operation failed")

	// ErrSubscriptionNotFound indicates the data store has no subscription
	// with the requested name.
	ErrSubscriptionNotFound = errors.New("controlplane: subscription not found")
)
