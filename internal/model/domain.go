package model

import (
	"fmt"
	"time"
)

// Health is the failure-isolation state of a domain.
type Health int

const (
	// HealthHealthy means the domain is crawled normally.
	HealthHealthy Health = iota

	// HealthSuspended means the domain exceeded its consecutive failure
	// threshold and no further URLs are dispatched until it is reset.
	HealthSuspended
)

// String returns a lowercase name of the health state.
func (h Health) String() string {
	switch h {
	case HealthHealthy:
		return "healthy"
	case HealthSuspended:
		return "suspended"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler so Health serializes by
// name in JSON reports.
func (h Health) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (h *Health) UnmarshalText(text []byte) error {
	switch string(text) {
	case "healthy":
		*h = HealthHealthy
	case "suspended":
		*h = HealthSuspended
	default:
		return fmt.Errorf("unknown health %q", text)
	}
	return nil
}

// DomainState holds the crawl counters of one registered domain.
// A DomainState is created by AddDomain and lives for the whole crawl
// session. It is returned by value so callers never share the core's copy.
type DomainState struct {
	// Name is the registered domain, for example "example.se".
	Name string `json:"name"`

	// Enabled reports whether URLs of the domain are dispatched.
	Enabled bool `json:"enabled"`

	// Priority weights the domain in the frontier's round-robin.
	Priority int `json:"priority"`

	// PagesCrawled counts successful fetches.
	PagesCrawled int64 `json:"pages_crawled"`

	// PagesFailed counts failed fetches.
	PagesFailed int64 `json:"pages_failed"`

	// BytesDownloaded sums body bytes of all fetches.
	BytesDownloaded int64 `json:"bytes_downloaded"`

	// ConsecutiveErrors counts failures since the last success.
	ConsecutiveErrors int `json:"consecutive_errors"`

	// TotalErrors counts all failures in the session.
	TotalErrors int64 `json:"total_errors"`

	// LastStatusCode is the HTTP status of the most recent fetch.
	LastStatusCode int `json:"last_status_code,omitempty"`

	// LastVisit is when the most recent fetch completed.
	LastVisit time.Time `json:"last_visit,omitzero"`

	// Health is the failure-isolation state.
	Health Health `json:"health"`

	// SuspendedAt is when the domain was suspended. Zero when healthy.
	SuspendedAt time.Time `json:"suspended_at,omitzero"`

	// CrawlDelay is the effective politeness delay, the larger of the
	// configured delay and the robots.txt Crawl-delay.
	CrawlDelay time.Duration `json:"crawl_delay"`

	// RobotsFetchedAt is when robots.txt was last retrieved.
	RobotsFetchedAt time.Time `json:"robots_fetched_at,omitzero"`

	// Pending is the number of URLs of the domain waiting in the frontier.
	Pending int `json:"pending"`

	// Dropped is the number of URLs refused by the per-domain cap.
	Dropped int `json:"dropped"`
}

// SuccessRate returns PagesCrawled divided by all fetches, or 0 when
// nothing was fetched.
func (d DomainState) SuccessRate() float64 {
	total := d.PagesCrawled + d.PagesFailed
	if total == 0 {
		return 0
	}
	return float64(d.PagesCrawled) / float64(total)
}
