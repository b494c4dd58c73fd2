package cron

import "errors"

var (
	// ErrInvalidSchedule is returned for a cron pattern the parser rejects.
	ErrInvalidSchedule = errors.New("cron: invalid schedule")

	// ErrDuplicateSubscription is returned for a second subscription with an
	// id that is already scheduled.
	ErrDuplicateSubscription = errors.New("cron: duplicate subscription id")

	// ErrStopped is returned by operations on a stopped manager.
	ErrStopped = errors.New("cron: manager stopped")
)
