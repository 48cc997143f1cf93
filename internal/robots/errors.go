package robots

import "errors"

var (
	// ErrRobotsFetch marks a robots.txt that could not be retrieved because
	// of a network error, 429 or 5xx response.
	ErrRobotsFetch = errors.New("robots.txt fetch failed")

	// ErrUnknownPolicy is returned by ParsePolicy for unrecognized names.
	ErrUnknownPolicy = errors.New("unknown robots failure policy")
)
