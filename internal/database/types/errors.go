package types

import "errors"

var (
	// ErrStorage wraps database failures that survived the retry policy.
	// Callers treat these as transient infrastructure faults: activity
	// handlers drop the event, scheduled jobs skip the record and move on.
	ErrStorage = errors.New("storage unavailable")

	// ErrNotFound is returned by lookups with no matching row.
	ErrNotFound = errors.New("record not found")
)
