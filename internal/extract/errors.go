package extract

import "errors"

var (
	// ErrParse is returned when a body cannot be parsed as HTML.
	ErrParse = errors.New("failed to parse html")

	// ErrNoBaseURL is returned by Parse when no base URL is given.
	ErrNoBaseURL = errors.New("base url is required")
)
