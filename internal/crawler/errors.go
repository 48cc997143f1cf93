package crawler

import "errors"

var (
	// ErrConfiguration is returned by New when the configuration is
	// invalid. It wraps the config sentinel describing the problem.
	ErrConfiguration = errors.New("invalid crawler configuration")

	// ErrInvalidTransition is returned by lifecycle methods called in a
	// state that does not allow them. The state is left unchanged.
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrUnknownDomain is returned when a domain or URL does not belong to
	// a registered domain.
	ErrUnknownDomain = errors.New("unknown domain")

	// ErrInvalidDomain is returned by AddDomain for an unusable name.
	ErrInvalidDomain = errors.New("invalid domain name")

	// ErrNotStarted is returned by Wait before Start was called.
	ErrNotStarted = errors.New("crawler not started")
)
