// Package stats keeps the crawl counters.
//
// Statistics is a set of counters updated by the crawler workers and read
// as a consistent Snapshot. NewCollector exposes the same numbers to
// Prometheus.
package stats
