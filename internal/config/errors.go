package config

import (
	"errors"
	"fmt"
)

// Configuration validation errors.
// These errors are returned by Config.Validate() and identify the first
// invalid setting. Callers match them with errors.Is.
var (
	// ErrEmptyUserAgent is returned when no User-Agent is configured.
	// robots.txt group matching needs an agent name.
	ErrEmptyUserAgent = errors.New("invalid user agent: must not be empty")

	// ErrInvalidMaxDepth is returned when the maximum depth is not positive.
	ErrInvalidMaxDepth = errors.New("invalid max depth: must be positive")

	// ErrInvalidMaxPages is returned when the per-domain page cap is negative.
	ErrInvalidMaxPages = errors.New("invalid max pages per domain: must be non-negative")

	// ErrInvalidWorkers is returned when the worker count is not positive.
	ErrInvalidWorkers = errors.New("invalid workers: must be positive")

	// ErrInvalidTimeout is returned when the request timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidRetries is returned when the retry budget is negative.
	ErrInvalidRetries = errors.New("invalid max retries: must be non-negative")

	// ErrInvalidBackoff is returned when the base delay is negative or larger
	// than the maximum delay.
	ErrInvalidBackoff = errors.New("invalid retry backoff: base delay must be non-negative and not exceed max delay")

	// ErrInvalidCrawlDelay is returned when the crawl delay is negative.
	ErrInvalidCrawlDelay = errors.New("invalid crawl delay: must be non-negative")

	// ErrInvalidRateLimit is returned when the rate limit request count or
	// window is negative, or a request count has no window.
	ErrInvalidRateLimit = errors.New("invalid rate limit: requests and window must be non-negative, and a request count needs a window")

	// ErrInvalidRobotsTTL is returned when a robots cache TTL is out of range.
	ErrInvalidRobotsTTL = errors.New("invalid robots ttl: must be positive")

	// ErrInvalidRobotsPolicy is returned for an unknown robots failure policy.
	ErrInvalidRobotsPolicy = errors.New("invalid robots failure policy: must be \"allow\" or \"deny\"")

	// ErrInvalidFailureThreshold is returned when the suspension threshold is
	// not positive.
	ErrInvalidFailureThreshold = errors.New("invalid failure threshold: must be positive")

	// ErrInvalidCooldown is returned when the suspension cooldown is negative.
	ErrInvalidCooldown = errors.New("invalid suspend cooldown: must be non-negative")

	// ErrInvalidRecrawlInterval is returned when the recrawl interval is not
	// positive or the check interval is negative.
	ErrInvalidRecrawlInterval = errors.New("invalid recrawl interval: must be positive")

	// ErrInvalidFairness is returned when the consecutive dequeue cap is not
	// positive.
	ErrInvalidFairness = errors.New("invalid max consecutive: must be positive")

	// ErrInvalidStopTimeout is returned when the stop timeout is negative.
	ErrInvalidStopTimeout = errors.New("invalid stop timeout: must be non-negative")

	// ErrInvalidMaxBodySize is returned when the max body size is not positive.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be positive")

	// ErrInvalidDomainConfig is returned when a per-domain entry in the
	// configuration file has a negative priority or crawl delay.
	ErrInvalidDomainConfig = errors.New("invalid domain configuration")
)

// DomainError reports which domain entry failed validation.
type DomainError struct {
	Domain string
	Err    error
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	return fmt.Sprintf("domain %q: %v", e.Domain, e.Err)
}

// Unwrap returns the underlying sentinel.
func (e *DomainError) Unwrap() error {
	return e.Err
}
