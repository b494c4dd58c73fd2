package strategy

import "errors"

// Sentinel errors for strategy resolution and execution.
var (
	// ErrUnknownStrategy indicates no strategy is registered under the
	// requested identifier.
	ErrUnknownStrategy = errors.New("strategy: unknown strategy")

	// ErrDuplicateStrategy indicates an identifier was registered twice.
	ErrDuplicateStrategy = errors.New("strategy: duplicate strategy")

	// ErrNoDataStore indicates the target has no source data store, so no
	// connection is attempted.
	ErrNoDataStore = errors.New("strategy: source data store is empty")
)
