package config

import "errors"

// Sentinel errors returned by Load and Save. Every load failure wraps
// exactly one of them.
var (
	// ErrNotFound indicates the configuration file is absent or unreadable.
	ErrNotFound = errors.New("config: not found")

	// ErrMalformed indicates the file exists but is not a valid document.
	ErrMalformed = errors.New("config: malformed")
)
