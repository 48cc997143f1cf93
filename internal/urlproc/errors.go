package urlproc

import "errors"

var (
	// ErrInvalidURL is returned when a string cannot be parsed as an absolute
	// URL with a scheme and a host.
	ErrInvalidURL = errors.New("invalid url")

	// ErrUnsupportedReference is returned by Resolve for hrefs that never
	// point at a fetchable document (javascript:, mailto:, tel:, data:,
	// and same-page fragments).
	ErrUnsupportedReference = errors.New("unsupported link reference")
)
