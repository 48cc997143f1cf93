package change

import "errors"

var (
	// ErrStore is returned when the hash store cannot be read or written.
	ErrStore = errors.New("hash store failure")

	// ErrEmptyURL is returned when no URL is given.
	ErrEmptyURL = errors.New("url is empty")
)
