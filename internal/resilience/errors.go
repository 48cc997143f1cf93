package resilience

import "errors"

var (
	// ErrSuspended is returned by Check for a suspended domain.
	ErrSuspended = errors.New("domain is suspended")

	// ErrInvalidThreshold is returned when the failure threshold is below one.
	ErrInvalidThreshold = errors.New("failure threshold must be at least 1")
)
