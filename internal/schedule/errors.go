package schedule

import "errors"

// ErrInvalidInterval is returned when the recrawl interval is not positive.
var ErrInvalidInterval = errors.New("recrawl interval must be positive")
