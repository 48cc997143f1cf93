// Package resilience isolates failing domains.
//
// A Tracker counts consecutive fetch failures per domain. Once a domain
// reaches the failure threshold it is suspended and the crawler stops
// dequeuing its URLs, so one broken site cannot consume the worker pool.
// Suspension ends with Reset, or automatically after the cooldown when one
// is configured.
package resilience
