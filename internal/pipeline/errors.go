package pipeline

import "errors"

var (
	// ErrFetch is returned by the fetch step when the page could not be
	// retrieved with a 2xx response. Job.Fetch holds the details.
	ErrFetch = errors.New("fetch failed")

	// ErrEmit is returned when the sink rejects a page record.
	ErrEmit = errors.New("failed to emit page")
)
