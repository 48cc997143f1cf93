package fetcher

import "errors"

var (
	// ErrTransient marks a fetch that failed with a retryable error after
	// the retry budget was spent.
	ErrTransient = errors.New("transient fetch error")

	// ErrTerminal marks a fetch that failed in a way retrying cannot fix.
	ErrTerminal = errors.New("terminal fetch error")

	// ErrBodyTooLarge is returned when a response body exceeds the
	// configured maximum size. It is terminal.
	ErrBodyTooLarge = errors.New("response body exceeds size limit")

	// ErrInvalidProxyAddress is returned when the proxy address is not in
	// "host:port" form.
	ErrInvalidProxyAddress = errors.New("invalid proxy address format: expected host:port")
)
